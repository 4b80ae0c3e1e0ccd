package worker

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/buildit-dev/buildit/cli/buildit/commands"
	"github.com/buildit-dev/buildit/common/models"
)

func init() {
	listCmd.Flags().IntVar(&listConfig.page, "page", 1, "The 1-based page to fetch")
	listCmd.Flags().IntVar(&listConfig.itemsPerPage, "items_per_page", 25, "Items per page; -1 for everything")
	workerRootCmd.AddCommand(listCmd)
	commands.RootCmd.AddCommand(workerRootCmd)
}

var workerRootCmd = &cobra.Command{
	Use:           "worker",
	Short:         "Inspect the worker fleet",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var listConfig = struct {
	page         int
	itemsPerPage int
}{}

var listCmd = &cobra.Command{
	Use:           "list",
	Short:         "List workers with derived liveness",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		apiClient, err := commands.NewAPIClient()
		if err != nil {
			return err
		}
		workers, total, err := apiClient.ListWorkers(context.Background(),
			models.NewPagination(listConfig.page, listConfig.itemsPerPage))
		if err != nil {
			return err
		}
		if commands.Global.JSON {
			return commands.PrintJSON(workers)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tHOSTNAME\tARCH\tCORES\tMEMORY\tLIVE\tRUNNING\tLAST HEARTBEAT")
		for _, worker := range workers {
			running := "-"
			if worker.RunningJobID != nil {
				running = worker.RunningJobID.String()
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%dGiB\t%t\t%s\t%s\n",
				worker.ID,
				worker.Hostname,
				worker.Arch,
				worker.LogicalCores,
				worker.MemoryBytes>>30,
				worker.IsLive,
				running,
				worker.LastHeartbeatAt.Format(time.RFC3339))
		}
		err = w.Flush()
		if err != nil {
			return err
		}
		fmt.Printf("%d of %d worker(s)\n", len(workers), total)
		return nil
	},
}
