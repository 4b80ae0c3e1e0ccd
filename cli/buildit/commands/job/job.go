package job

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/buildit-dev/buildit/cli/buildit/commands"
	"github.com/buildit-dev/buildit/common/models"
)

func init() {
	jobRootCmd.AddCommand(infoCmd)
	jobRootCmd.AddCommand(restartCmd)
	commands.RootCmd.AddCommand(jobRootCmd)
}

var jobRootCmd = &cobra.Command{
	Use:           "job",
	Short:         "Inspect and restart jobs",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var infoCmd = &cobra.Command{
	Use:           "info <job-id>",
	Short:         "Show a job",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := models.ParseJobID(args[0])
		if err != nil {
			return err
		}
		apiClient, err := commands.NewAPIClient()
		if err != nil {
			return err
		}
		job, err := apiClient.GetJob(context.Background(), id)
		if err != nil {
			return err
		}
		if commands.Global.JSON {
			return commands.PrintJSON(job)
		}
		fmt.Printf("Job %s (%s)\n", job.ID, job.Status)
		fmt.Printf("  Pipeline: %s\n", job.PipelineID)
		fmt.Printf("  Created:  %s\n", job.CreatedAt.Format(time.RFC3339))
		fmt.Printf("  Packages: %s\n", job.Packages)
		fmt.Printf("  Arch:     %s\n", job.Arch)
		if job.AssignedWorkerHostname != nil {
			fmt.Printf("  Assigned: %s\n", *job.AssignedWorkerHostname)
		}
		if job.BuiltByWorkerHostname != nil {
			fmt.Printf("  Built by: %s\n", *job.BuiltByWorkerHostname)
		}
		if job.SuccessfulPackages != nil {
			fmt.Printf("  Built:    %s\n", *job.SuccessfulPackages)
		}
		if job.FailedPackage != nil {
			fmt.Printf("  Failed:   %s\n", *job.FailedPackage)
		}
		if job.SkippedPackages != nil {
			fmt.Printf("  Skipped:  %s\n", *job.SkippedPackages)
		}
		if job.ErrorMessage != nil {
			fmt.Printf("  Error:    %s\n", *job.ErrorMessage)
		}
		if job.ElapsedSecs != nil {
			fmt.Printf("  Elapsed:  %s\n", time.Duration(*job.ElapsedSecs)*time.Second)
		}
		if job.LogURL != nil {
			fmt.Printf("  Log:      %s\n", *job.LogURL)
		}
		return nil
	},
}

var restartCmd = &cobra.Command{
	Use:           "restart <job-id>",
	Short:         "Clone a failed or error job back into the queue",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := models.ParseJobID(args[0])
		if err != nil {
			return err
		}
		apiClient, err := commands.NewAPIClient()
		if err != nil {
			return err
		}
		clone, err := apiClient.RestartJob(context.Background(), id)
		if err != nil {
			return err
		}
		if commands.Global.JSON {
			return commands.PrintJSON(clone)
		}
		fmt.Printf("Restarted job %s as %s\n", id, clone.ID)
		return nil
	},
}
