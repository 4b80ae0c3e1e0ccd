package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	"github.com/buildit-dev/buildit/common/gerror"
	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/server/api/rest/documents"
	"github.com/buildit-dev/buildit/server/dto"
	"github.com/buildit-dev/buildit/server/services"
)

type WorkerAPI struct {
	workerService   services.WorkerService
	queueService    services.QueueService
	pipelineService services.PipelineService
	*APIBase
}

func NewWorkerAPI(workerService services.WorkerService, queueService services.QueueService, pipelineService services.PipelineService, logFactory logger.LogFactory) *WorkerAPI {
	return &WorkerAPI{
		workerService:   workerService,
		queueService:    queueService,
		pipelineService: pipelineService,
		APIBase:         NewAPIBase(logFactory("WorkerAPI")),
	}
}

// Heartbeat handles POST /api/worker/heartbeat: first contact registers the
// worker, every later call refreshes its capabilities and liveness.
func (a *WorkerAPI) Heartbeat(w http.ResponseWriter, r *http.Request) {
	req := &documents.HeartbeatRequest{}
	err := render.Bind(r, req)
	if err != nil {
		a.Error(w, r, fmt.Errorf("error reading HeartbeatRequest from request: %w", err))
		return
	}
	worker, err := a.workerService.ProcessHeartbeat(r.Context(), req.ToHeartbeat())
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.JSON(w, r, worker)
}

// Poll handles POST /api/worker/poll. The response body is the claimed job
// with its pipeline's git coordinates, or empty when the queue has nothing
// for this worker.
func (a *WorkerAPI) Poll(w http.ResponseWriter, r *http.Request) {
	req := &documents.PollRequest{}
	err := render.Bind(r, req)
	if err != nil {
		a.Error(w, r, fmt.Errorf("error reading PollRequest from request: %w", err))
		return
	}
	job, err := a.queueService.Poll(r.Context(), req.WorkerID, req.ToPoll())
	if err != nil {
		a.Error(w, r, err)
		return
	}
	if job == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	graph, err := a.pipelineService.Read(r.Context(), job.PipelineID)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.JSON(w, r, documents.MakeRunnableJob(job, graph.Pipeline))
}

// Complete handles POST /api/worker/complete. A report for a job that has
// been reclaimed from this worker is answered with 409 Conflict and the
// worker must discard the result.
func (a *WorkerAPI) Complete(w http.ResponseWriter, r *http.Request) {
	req := &documents.CompleteRequest{}
	err := render.Bind(r, req)
	if err != nil {
		a.Error(w, r, fmt.Errorf("error reading CompleteRequest from request: %w", err))
		return
	}
	job, err := a.queueService.Complete(r.Context(), req.WorkerID, req.JobID, req.ToCompletion())
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.JSON(w, r, job)
}

// List handles GET /api/worker/list.
func (a *WorkerAPI) List(w http.ResponseWriter, r *http.Request) {
	pagination, err := documents.GetPagination(r)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	workers, total, err := a.workerService.List(r.Context(), pagination)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	items := make([]*dto.WorkerStatus, 0, len(workers))
	items = append(items, workers...)
	a.JSON(w, r, documents.NewListResponse(total, items))
}

// Get handles GET /api/worker/info.
func (a *WorkerAPI) Get(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseWorkerID(r.URL.Query().Get("worker_id"))
	if err != nil {
		a.Error(w, r, gerror.NewErrInvalidQueryParameter("Invalid worker id").Wrap(err))
		return
	}
	worker, err := a.workerService.Read(r.Context(), id)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.GotResource(w, r, worker)
}
