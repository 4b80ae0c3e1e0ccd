package pipeline

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/buildit-dev/buildit/cli/buildit/commands"
	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/server/api/rest/documents"
	"github.com/buildit-dev/buildit/server/dto"
)

func init() {
	listCmd.Flags().IntVar(&listConfig.page, "page", 1, "The 1-based page to fetch")
	listCmd.Flags().IntVar(&listConfig.itemsPerPage, "items_per_page", 25, "Items per page; -1 for everything")
	listCmd.Flags().BoolVar(&listConfig.stableOnly, "stable_only", false, "Only pipelines built from the stable branch")
	listCmd.Flags().BoolVar(&listConfig.githubPROnly, "github_pr_only", false, "Only pull-request pipelines")

	newCmd.Flags().StringSliceVar(&newConfig.packages, "packages", nil, "Packages to build, in order")
	newCmd.Flags().StringSliceVar(&newConfig.archs, "archs", nil, "Architectures to build for; empty or mainline expands to every mainline arch")
	newCmd.Flags().StringVar(&newConfig.branch, "branch", "", "The packaging tree branch to build from")
	newCmd.Flags().Int64Var(&newConfig.githubPR, "github_pr", 0, "The pull request to build instead of a branch")
	newCmd.Flags().Int64Var(&newConfig.minCores, "min_cores", 0, "Only dispatch to workers with at least this many logical cores")
	newCmd.Flags().Int64Var(&newConfig.minTotalMemoryBytes, "min_total_memory_bytes", 0, "Only dispatch to workers with at least this much memory")

	pipelineRootCmd.AddCommand(listCmd)
	pipelineRootCmd.AddCommand(infoCmd)
	pipelineRootCmd.AddCommand(newCmd)
	commands.RootCmd.AddCommand(pipelineRootCmd)
}

var pipelineRootCmd = &cobra.Command{
	Use:           "pipeline",
	Short:         "List, inspect and submit build pipelines",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var listConfig = struct {
	page         int
	itemsPerPage int
	stableOnly   bool
	githubPROnly bool
}{}

var listCmd = &cobra.Command{
	Use:           "list",
	Short:         "List pipelines, newest first",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		apiClient, err := commands.NewAPIClient()
		if err != nil {
			return err
		}
		pipelines, total, err := apiClient.ListPipelines(context.Background(), dto.PipelineSearch{
			Pagination:   models.NewPagination(listConfig.page, listConfig.itemsPerPage),
			StableOnly:   listConfig.stableOnly,
			GitHubPROnly: listConfig.githubPROnly,
		})
		if err != nil {
			return err
		}
		if commands.Global.JSON {
			return commands.PrintJSON(pipelines)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCREATED\tBRANCH\tPACKAGES\tSTATUS\tJOBS")
		for _, pipeline := range pipelines {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
				pipeline.ID,
				pipeline.CreatedAt.Format(time.RFC3339),
				describeSource(pipeline.Pipeline),
				pipeline.Packages,
				pipeline.Status,
				len(pipeline.Jobs))
		}
		err = w.Flush()
		if err != nil {
			return err
		}
		fmt.Printf("%d of %d pipeline(s)\n", len(pipelines), total)
		return nil
	},
}

var infoCmd = &cobra.Command{
	Use:           "info <pipeline-id>",
	Short:         "Show a pipeline and its jobs",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := models.ParsePipelineID(args[0])
		if err != nil {
			return err
		}
		apiClient, err := commands.NewAPIClient()
		if err != nil {
			return err
		}
		graph, err := apiClient.GetPipeline(context.Background(), id)
		if err != nil {
			return err
		}
		if commands.Global.JSON {
			return commands.PrintJSON(graph)
		}
		fmt.Printf("Pipeline %s (%s)\n", graph.ID, graph.Status)
		fmt.Printf("  Created:  %s\n", graph.CreatedAt.Format(time.RFC3339))
		fmt.Printf("  Source:   %s @ %s\n", describeSource(graph.Pipeline), graph.GitSha)
		fmt.Printf("  Packages: %s\n", graph.Packages)
		fmt.Printf("  Archs:    %s\n", graph.Archs)
		if graph.CreatorLogin != nil {
			fmt.Printf("  Creator:  %s\n", *graph.CreatorLogin)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "JOB\tARCH\tSTATUS\tELAPSED\tLOG")
		for _, job := range graph.Jobs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				job.ID, job.Arch, job.Status, describeElapsed(job), describeLog(job))
		}
		return w.Flush()
	},
}

var newConfig = struct {
	packages            []string
	archs               []string
	branch              string
	githubPR            int64
	minCores            int64
	minTotalMemoryBytes int64
}{}

var newCmd = &cobra.Command{
	Use:           "new",
	Short:         "Submit a new pipeline",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := &documents.CreatePipelineRequest{
			Packages:  newConfig.packages,
			Archs:     newConfig.archs,
			GitBranch: newConfig.branch,
		}
		if newConfig.githubPR != 0 {
			req.GitHubPR = &newConfig.githubPR
		}
		if newConfig.minCores != 0 {
			req.MinCores = &newConfig.minCores
		}
		if newConfig.minTotalMemoryBytes != 0 {
			req.MinTotalMemoryBytes = &newConfig.minTotalMemoryBytes
		}
		apiClient, err := commands.NewAPIClient()
		if err != nil {
			return err
		}
		graph, err := apiClient.CreatePipeline(context.Background(), req)
		if err != nil {
			return err
		}
		if commands.Global.JSON {
			return commands.PrintJSON(graph)
		}
		fmt.Printf("Created pipeline %s with %d job(s) for %s\n",
			graph.ID, len(graph.Jobs), graph.Archs)
		return nil
	},
}

func describeSource(pipeline *models.Pipeline) string {
	if pipeline.GitHubPR != nil {
		return fmt.Sprintf("PR #%d", *pipeline.GitHubPR)
	}
	return pipeline.GitBranch
}

func describeElapsed(job *models.Job) string {
	if job.ElapsedSecs == nil {
		return "-"
	}
	return (time.Duration(*job.ElapsedSecs) * time.Second).String()
}

func describeLog(job *models.Job) string {
	if job.LogURL == nil {
		return "-"
	}
	return *job.LogURL
}
