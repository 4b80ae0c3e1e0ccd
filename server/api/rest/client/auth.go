package client

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"

	"github.com/buildit-dev/buildit/server/api/rest/documents"
)

// Ping acts as a pre-flight check, contacting the coordinator root endpoint.
func (a *APIClient) Ping(ctx context.Context) error {
	code, body, err := a.get(ctx, "/")
	if err != nil {
		return err
	}
	if !a.isOneOf(code, []int{http.StatusOK}) {
		return a.makeHTTPError(code, body)
	}
	return nil
}

// ExchangeToken trades a forge personal access token for a submitter JWT.
func (a *APIClient) ExchangeToken(ctx context.Context, forgeToken string) (*documents.ExchangeTokenResponse, error) {
	req := &documents.ExchangeTokenRequest{ForgeToken: forgeToken}
	code, body, err := a.post(ctx, "/api/auth/exchange", req)
	if err != nil {
		return nil, err
	}
	if !a.isOneOf(code, []int{http.StatusCreated, http.StatusOK}) {
		return nil, a.makeHTTPError(code, body)
	}
	doc := &documents.ExchangeTokenResponse{}
	err = json.Unmarshal(body, doc)
	if err != nil {
		return nil, errors.Wrapf(err, "error parsing response body: %s", string(body))
	}
	return doc, nil
}
