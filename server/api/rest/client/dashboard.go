package client

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/buildit-dev/buildit/server/dto"
)

// Dashboard returns the deployment-wide queue and fleet aggregates together
// with the per-architecture breakdown.
func (a *APIClient) Dashboard(ctx context.Context) (*dto.Dashboard, error) {
	code, body, err := a.get(ctx, "/api/dashboard/status")
	if err != nil {
		return nil, err
	}
	if !a.isOneOf(code, []int{http.StatusOK}) {
		return nil, a.makeHTTPError(code, body)
	}
	doc := &dto.Dashboard{}
	err = json.Unmarshal(body, doc)
	if err != nil {
		return nil, errors.Wrapf(err, "error parsing response body: %s", string(body))
	}
	return doc, nil
}
