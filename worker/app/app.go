package app

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/server/api/rest/client"
	"github.com/buildit-dev/buildit/worker"
)

// Worker aggregates the long-running loops of the worker agent.
type Worker struct {
	Heartbeater *worker.Heartbeater
	Scheduler   *worker.Scheduler
	LogStreamer *worker.LogStreamer
}

// Start brings the loops up. The heartbeater registers the worker; the
// scheduler idles until the first heartbeat is acknowledged.
func (w *Worker) Start() {
	w.LogStreamer.Start()
	w.Heartbeater.Start()
	w.Scheduler.Start()
}

// Stop waits for the job in progress, if any, to be reported before
// returning.
func (w *Worker) Stop() {
	w.Scheduler.Stop()
	w.Heartbeater.Stop()
	w.LogStreamer.Stop()
}

// New wires up a worker agent from config.
func New(ctx context.Context, config *WorkerConfig) (*Worker, error) {
	logRegistry, err := logger.NewLogRegistry(config.LogLevels)
	if err != nil {
		return nil, errors.Wrap(err, "error creating log registry")
	}
	logFactory := logger.MakeLogrusLogFactoryStdOut(logRegistry)

	apiClient, err := client.NewAPIClient(
		config.CoordinatorEndpoint,
		client.NewWorkerSecretAuthenticator(config.WorkerSharedSecret),
		logFactory)
	if err != nil {
		return nil, errors.Wrap(err, "error creating API client")
	}

	streamer, err := worker.NewLogStreamer(ctx, config.CoordinatorEndpoint, config.HeartbeatConfig.Hostname, logFactory)
	if err != nil {
		return nil, errors.Wrap(err, "error creating log streamer")
	}

	var sink worker.LogSink
	if config.LogS3Bucket != "" {
		sess, err := session.NewSession(&aws.Config{Region: aws.String(config.LogS3Region)})
		if err != nil {
			return nil, errors.Wrap(err, "error creating AWS session")
		}
		sink = worker.NewS3LogSink(sess, worker.S3LogSinkConfig{
			Bucket:        config.LogS3Bucket,
			KeyPrefix:     config.LogS3KeyPrefix,
			PublicBaseURL: config.LogPublicBaseURL,
		}, logFactory)
	}

	tree := worker.NewTreeKeeper(config.TreeConfig, logFactory)
	executor := worker.NewExecutor(
		config.ExecutorConfig,
		worker.NewExecCommandRunner(),
		tree,
		sink,
		worker.NewLocalLogSink(config.FailedLogDir),
		streamer,
		clock.New(),
		logFactory)

	heartbeater := worker.NewHeartbeater(ctx, apiClient, config.HeartbeatConfig, logFactory)
	scheduler := worker.NewScheduler(ctx, apiClient, heartbeater, executor, config.PollInterval, logFactory)

	return &Worker{
		Heartbeater: heartbeater,
		Scheduler:   scheduler,
		LogStreamer: streamer,
	}, nil
}
