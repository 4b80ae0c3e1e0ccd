package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/server/api/rest/documents"
	"github.com/buildit-dev/buildit/server/dto"
)

// Heartbeat registers the worker on first contact and refreshes its
// capabilities and liveness on every later call. Returns the worker record
// the coordinator holds, including the id the worker must poll with.
func (a *APIClient) Heartbeat(ctx context.Context, req *documents.HeartbeatRequest) (*models.Worker, error) {
	code, body, err := a.post(ctx, "/api/worker/heartbeat", req)
	if err != nil {
		return nil, err
	}
	if !a.isOneOf(code, []int{http.StatusOK}) {
		return nil, a.makeHTTPError(code, body)
	}
	worker := &models.Worker{}
	err = json.Unmarshal(body, worker)
	if err != nil {
		return nil, errors.Wrapf(err, "error parsing response body: %s", string(body))
	}
	return worker, nil
}

// Poll claims the oldest queued job the worker can satisfy, or returns nil
// when the queue has nothing for it. The request carries the worker's
// current self-reported hardware, which the coordinator matches the queue
// against.
func (a *APIClient) Poll(ctx context.Context, req *documents.PollRequest) (*documents.RunnableJob, error) {
	code, body, err := a.post(ctx, "/api/worker/poll", req)
	if err != nil {
		return nil, err
	}
	if code == http.StatusNoContent {
		return nil, nil
	}
	if !a.isOneOf(code, []int{http.StatusOK}) {
		return nil, a.makeHTTPError(code, body)
	}
	doc := &documents.RunnableJob{}
	err = json.Unmarshal(body, doc)
	if err != nil {
		return nil, errors.Wrapf(err, "error parsing response body: %s", string(body))
	}
	if doc.Job == nil {
		return nil, errors.New("error parsing response body: no job in RunnableJob")
	}
	return doc, nil
}

// Complete reports the result of a finished build. A Stale error means the
// job was reclaimed while the worker was building and the result must be
// discarded.
func (a *APIClient) Complete(ctx context.Context, req *documents.CompleteRequest) (*models.Job, error) {
	code, body, err := a.post(ctx, "/api/worker/complete", req)
	if err != nil {
		return nil, err
	}
	if !a.isOneOf(code, []int{http.StatusOK}) {
		return nil, a.makeHTTPError(code, body)
	}
	job := &models.Job{}
	err = json.Unmarshal(body, job)
	if err != nil {
		return nil, errors.Wrapf(err, "error parsing response body: %s", string(body))
	}
	return job, nil
}

// ListWorkers returns one page of workers with derived liveness, along with
// the total number of workers.
func (a *APIClient) ListWorkers(ctx context.Context, pagination models.Pagination) ([]*dto.WorkerStatus, int64, error) {
	params := paginationParams(pagination)
	code, body, err := a.get(ctx, "/api/worker/list?"+params.Encode())
	if err != nil {
		return nil, 0, err
	}
	if !a.isOneOf(code, []int{http.StatusOK}) {
		return nil, 0, a.makeHTTPError(code, body)
	}
	doc := &struct {
		TotalItems int64               `json:"total_items"`
		Items      []*dto.WorkerStatus `json:"items"`
	}{}
	err = json.Unmarshal(body, doc)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "error parsing response body: %s", string(body))
	}
	return doc.Items, doc.TotalItems, nil
}

// GetWorker returns a worker with its derived liveness.
func (a *APIClient) GetWorker(ctx context.Context, id models.WorkerID) (*dto.WorkerStatus, error) {
	code, body, err := a.get(ctx, fmt.Sprintf("/api/worker/info?worker_id=%s", id))
	if err != nil {
		return nil, err
	}
	if !a.isOneOf(code, []int{http.StatusOK}) {
		return nil, a.makeHTTPError(code, body)
	}
	doc := &dto.WorkerStatus{}
	err = json.Unmarshal(body, doc)
	if err != nil {
		return nil, errors.Wrapf(err, "error parsing response body: %s", string(body))
	}
	return doc, nil
}
