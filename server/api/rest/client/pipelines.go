package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/server/api/rest/documents"
	"github.com/buildit-dev/buildit/server/dto"
)

// CreatePipeline submits a new pipeline and returns it with its freshly
// created jobs. The client must be authenticated as a submitter.
func (a *APIClient) CreatePipeline(ctx context.Context, req *documents.CreatePipelineRequest) (*documents.PipelineGraph, error) {
	code, body, err := a.post(ctx, "/api/pipeline/new", req)
	if err != nil {
		return nil, err
	}
	if !a.isOneOf(code, []int{http.StatusCreated}) {
		return nil, a.makeHTTPError(code, body)
	}
	doc := &documents.PipelineGraph{}
	err = json.Unmarshal(body, doc)
	if err != nil {
		return nil, errors.Wrapf(err, "error parsing response body: %s", string(body))
	}
	return doc, nil
}

// ListPipelines returns one page of pipelines matching the search, most
// recent first, along with the total number of matching pipelines.
func (a *APIClient) ListPipelines(ctx context.Context, search dto.PipelineSearch) ([]*documents.Pipeline, int64, error) {
	params := paginationParams(search.Pagination)
	if search.StableOnly {
		params.Set("stable_only", "true")
	}
	if search.GitHubPROnly {
		params.Set("github_pr_only", "true")
	}
	code, body, err := a.get(ctx, "/api/pipeline/list?"+params.Encode())
	if err != nil {
		return nil, 0, err
	}
	if !a.isOneOf(code, []int{http.StatusOK}) {
		return nil, 0, a.makeHTTPError(code, body)
	}
	doc := &struct {
		TotalItems int64                 `json:"total_items"`
		Items      []*documents.Pipeline `json:"items"`
	}{}
	err = json.Unmarshal(body, doc)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "error parsing response body: %s", string(body))
	}
	return doc.Items, doc.TotalItems, nil
}

// GetPipeline returns a pipeline with its full job records.
func (a *APIClient) GetPipeline(ctx context.Context, id models.PipelineID) (*documents.PipelineGraph, error) {
	code, body, err := a.get(ctx, fmt.Sprintf("/api/pipeline/info?pipeline_id=%s", id))
	if err != nil {
		return nil, err
	}
	if !a.isOneOf(code, []int{http.StatusOK}) {
		return nil, a.makeHTTPError(code, body)
	}
	doc := &documents.PipelineGraph{}
	err = json.Unmarshal(body, doc)
	if err != nil {
		return nil, errors.Wrapf(err, "error parsing response body: %s", string(body))
	}
	return doc, nil
}

func paginationParams(pagination models.Pagination) url.Values {
	params := url.Values{}
	if pagination.Page > 0 {
		params.Set("page", strconv.Itoa(pagination.Page))
	}
	if pagination.ItemsPerPage != 0 {
		params.Set("items_per_page", strconv.Itoa(pagination.ItemsPerPage))
	}
	return params
}
