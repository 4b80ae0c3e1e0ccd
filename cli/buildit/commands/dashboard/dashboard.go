package dashboard

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/buildit-dev/buildit/cli/buildit/commands"
)

func init() {
	commands.RootCmd.AddCommand(dashboardCmd)
}

var dashboardCmd = &cobra.Command{
	Use:           "dashboard",
	Short:         "Show deployment-wide queue and fleet aggregates",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		apiClient, err := commands.NewAPIClient()
		if err != nil {
			return err
		}
		dashboard, err := apiClient.Dashboard(context.Background())
		if err != nil {
			return err
		}
		if commands.Global.JSON {
			return commands.PrintJSON(dashboard)
		}
		fmt.Printf("Pipelines: %d\n", dashboard.TotalPipelineCount)
		fmt.Printf("Jobs:      %d total, %d pending, %d running, %d finished\n",
			dashboard.TotalJobCount, dashboard.PendingJobCount,
			dashboard.RunningJobCount, dashboard.FinishedJobCount)
		fmt.Printf("Workers:   %d total, %d live, %d cores, %dGiB memory\n",
			dashboard.TotalWorkerCount, dashboard.LiveWorkerCount,
			dashboard.TotalLogicalCores, dashboard.TotalMemoryBytes>>30)

		archs := make([]string, 0, len(dashboard.ByArch))
		for arch := range dashboard.ByArch {
			archs = append(archs, arch)
		}
		sort.Strings(archs)
		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "ARCH\tJOBS\tPENDING\tRUNNING\tFINISHED\tWORKERS\tLIVE\tCORES")
		for _, arch := range archs {
			counts := dashboard.ByArch[arch]
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
				arch, counts.TotalJobCount, counts.PendingJobCount,
				counts.RunningJobCount, counts.FinishedJobCount,
				counts.TotalWorkerCount, counts.LiveWorkerCount,
				counts.TotalLogicalCores)
		}
		return w.Flush()
	},
}
