package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	"github.com/buildit-dev/buildit/common/gerror"
	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/server/api/rest/documents"
	"github.com/buildit-dev/buildit/server/services"
)

type JobAPI struct {
	queueService  services.QueueService
	workerService services.WorkerService
	*APIBase
}

func NewJobAPI(queueService services.QueueService, workerService services.WorkerService, logFactory logger.LogFactory) *JobAPI {
	return &JobAPI{
		queueService:  queueService,
		workerService: workerService,
		APIBase:       NewAPIBase(logFactory("JobAPI")),
	}
}

// List handles GET /api/job/list.
func (a *JobAPI) List(w http.ResponseWriter, r *http.Request) {
	pagination, err := documents.GetPagination(r)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	jobs, total, err := a.queueService.ListJobs(r.Context(), pagination)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	items := make([]*documents.Job, 0, len(jobs))
	for _, job := range jobs {
		items = append(items, a.makeJob(r, job))
	}
	a.JSON(w, r, documents.NewListResponse(total, items))
}

// Get handles GET /api/job/info.
func (a *JobAPI) Get(w http.ResponseWriter, r *http.Request) {
	id, err := models.ParseJobID(r.URL.Query().Get("job_id"))
	if err != nil {
		a.Error(w, r, gerror.NewErrInvalidQueryParameter("Invalid job id").Wrap(err))
		return
	}
	job, err := a.queueService.ReadJob(r.Context(), id)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.GotResource(w, r, a.makeJob(r, job))
}

// Restart handles POST /api/job/restart.
func (a *JobAPI) Restart(w http.ResponseWriter, r *http.Request) {
	req := &documents.RestartJobRequest{}
	err := render.Bind(r, req)
	if err != nil {
		a.Error(w, r, fmt.Errorf("error reading RestartJobRequest from request: %w", err))
		return
	}
	clone, err := a.queueService.Restart(r.Context(), req.JobID)
	if err != nil {
		a.Error(w, r, err)
		return
	}
	a.Created(w, r, a.makeJob(r, clone))
}

// makeJob decorates a job with the hostnames behind its worker ids. A worker
// lookup failure leaves the hostname blank rather than failing the read.
func (a *JobAPI) makeJob(r *http.Request, job *models.Job) *documents.Job {
	hostname := func(id *models.WorkerID) *string {
		if id == nil {
			return nil
		}
		worker, err := a.workerService.Read(r.Context(), *id)
		if err != nil {
			a.Warnf("Error reading worker %s for job %s: %s", id, job.ID, err)
			return nil
		}
		return &worker.Hostname
	}
	return documents.MakeJob(job, hostname(job.AssignedWorkerID), hostname(job.BuiltByWorkerID))
}
