package worker

import (
	"context"

	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/server/api/rest/documents"
)

// APIClient is the subset of the coordinator's REST client the worker agent
// depends on.
type APIClient interface {
	// Heartbeat registers the worker or refreshes its liveness and capabilities.
	Heartbeat(ctx context.Context, req *documents.HeartbeatRequest) (*models.Worker, error)
	// Poll claims the oldest queued job the worker can satisfy, or nil. The
	// request carries the worker's current self-reported hardware.
	Poll(ctx context.Context, req *documents.PollRequest) (*documents.RunnableJob, error)
	// Complete reports the result of a finished build.
	Complete(ctx context.Context, req *documents.CompleteRequest) (*models.Job, error)
}
