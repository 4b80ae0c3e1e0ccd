package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/buildit-dev/buildit/common/util"
	"github.com/buildit-dev/buildit/common/version"
	"github.com/buildit-dev/buildit/worker/app"
)

func main() {
	fmt.Printf("BuildIt Worker v%s\n", version.VersionToString())
	fmt.Printf("Starting with args: %v\n", util.FilterOSArgs(os.Args, app.LogSafeFlags))

	config, err := app.ConfigFromFlags()
	if err != nil {
		log.Fatalf("Error parsing flags: %s", err)
	}

	worker, err := app.New(context.Background(), config)
	if err != nil {
		log.Fatalf("Error creating worker: %s", err)
	}
	worker.Start()

	// Wait for SIGINT or SIGTERM before shutting down
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-done

	// Stop waits for the job in progress to finish reporting
	worker.Stop()
	log.Print("Worker shutdown complete")
}
