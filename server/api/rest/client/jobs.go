package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/server/api/rest/documents"
)

// ListJobs returns one page of jobs, most recent first, along with the total
// number of jobs.
func (a *APIClient) ListJobs(ctx context.Context, pagination models.Pagination) ([]*documents.Job, int64, error) {
	params := paginationParams(pagination)
	code, body, err := a.get(ctx, "/api/job/list?"+params.Encode())
	if err != nil {
		return nil, 0, err
	}
	if !a.isOneOf(code, []int{http.StatusOK}) {
		return nil, 0, a.makeHTTPError(code, body)
	}
	doc := &struct {
		TotalItems int64            `json:"total_items"`
		Items      []*documents.Job `json:"items"`
	}{}
	err = json.Unmarshal(body, doc)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "error parsing response body: %s", string(body))
	}
	return doc.Items, doc.TotalItems, nil
}

// GetJob returns a single job.
func (a *APIClient) GetJob(ctx context.Context, id models.JobID) (*documents.Job, error) {
	code, body, err := a.get(ctx, fmt.Sprintf("/api/job/info?job_id=%s", id))
	if err != nil {
		return nil, err
	}
	if !a.isOneOf(code, []int{http.StatusOK}) {
		return nil, a.makeHTTPError(code, body)
	}
	doc := &documents.Job{}
	err = json.Unmarshal(body, doc)
	if err != nil {
		return nil, errors.Wrapf(err, "error parsing response body: %s", string(body))
	}
	return doc, nil
}

// RestartJob clones a finished job into a new queued job in the same
// pipeline and returns the clone. The client must be authenticated as a
// submitter.
func (a *APIClient) RestartJob(ctx context.Context, id models.JobID) (*documents.Job, error) {
	req := &documents.RestartJobRequest{JobID: id}
	code, body, err := a.post(ctx, "/api/job/restart", req)
	if err != nil {
		return nil, err
	}
	if !a.isOneOf(code, []int{http.StatusCreated}) {
		return nil, a.makeHTTPError(code, body)
	}
	doc := &documents.Job{}
	err = json.Unmarshal(body, doc)
	if err != nil {
		return nil, errors.Wrapf(err, "error parsing response body: %s", string(body))
	}
	return doc, nil
}
