package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/pkg/errors"

	"github.com/buildit-dev/buildit/common/gerror"
	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/server/api/rest/documents"
)

// Authenticator adds credentials to outgoing API requests.
type Authenticator interface {
	AuthenticateRequest(header http.Header) (http.Header, error)
}

// APIClient is an HTTP client used to interact with the coordinator REST API.
type APIClient struct {
	endpoint        string
	httpClient      *http.Client
	retryableClient *retryablehttp.Client
	authenticator   Authenticator
	log             logger.Log
}

func NewAPIClient(endpoint string, authenticator Authenticator, logFactory logger.LogFactory) (*APIClient, error) {
	log := logFactory("APIClient")

	// Do not share HTTP clients between instances of APIClient so that each
	// APIClient can have separate authentication.
	httpClient := &http.Client{}
	retryableClient := retryablehttp.NewClient()
	retryableClient.RetryWaitMin = time.Millisecond * 100
	retryableClient.RetryWaitMax = time.Second * 5
	retryableClient.RetryMax = 5
	retryableClient.Logger = NewLeveledLogger(log) // use adaptor to get log level support
	retryableClient.HTTPClient = httpClient

	return &APIClient{
		endpoint:        endpoint,
		authenticator:   authenticator,
		httpClient:      httpClient,
		retryableClient: retryableClient,
		log:             log,
	}, nil
}

// get performs a basic HTTP GET request against a path on the configured
// endpoint. Returns the HTTP status code and full response body. Returns an
// error if there was a problem making the request. No status code inspection
// is made.
func (a *APIClient) get(ctx context.Context, path string) (int, []byte, error) {
	return a.doRequest(ctx, "GET", path, nil)
}

// post performs a basic HTTP POST request against a path on the configured
// endpoint. If data is not nil it will be serialized to JSON and sent in the
// request body. Returns the HTTP status code and buffered response body.
// Returns an error if there was a problem making the request. No status code
// inspection is made.
func (a *APIClient) post(ctx context.Context, path string, data interface{}) (int, []byte, error) {
	return a.doRequest(ctx, "POST", path, data)
}

// doRequest performs an HTTP request and returns the status code and response
// body. Returns an error if there was a problem making the request but no
// HTTP status code inspection is made.
func (a *APIClient) doRequest(ctx context.Context, verb string, path string, data interface{}) (int, []byte, error) {
	var (
		buf []byte
		err error
	)
	if data != nil {
		buf, err = json.Marshal(data)
		if err != nil {
			return -1, nil, errors.Wrap(err, "error marshaling request data to JSON")
		}
	}
	endpoint, err := a.getRequestURL(path)
	if err != nil {
		return -1, nil, fmt.Errorf("error getting request URL: %w", err)
	}
	req, err := retryablehttp.NewRequest(verb, endpoint, buf)
	if err != nil {
		return -1, nil, errors.Wrap(err, "error making request")
	}
	req = req.WithContext(ctx)
	if a.authenticator != nil {
		req.Header, err = a.authenticator.AuthenticateRequest(req.Header)
		if err != nil {
			return -1, nil, errors.Wrap(err, "error authenticating request")
		}
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := a.retryableClient.Do(req)
	if err != nil {
		return -1, nil, errors.Wrap(err, "error during request")
	}
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	if err != nil {
		return -1, nil, errors.Wrap(err, "error reading response body")
	}
	return res.StatusCode, body, nil
}

func (a *APIClient) getRequestURL(path string) (string, error) {
	endpoint := a.endpoint
	if endpoint == "" {
		return "", errors.New("no endpoint configured")
	}
	for len(endpoint) > 0 && strings.HasSuffix(endpoint, "/") {
		endpoint = strings.TrimSuffix(endpoint, "/")
	}
	if !strings.HasPrefix(path, "/") {
		path = fmt.Sprintf("/%s", path)
	}
	uri, err := url.ParseRequestURI(fmt.Sprintf("%s%s", endpoint, path))
	if err != nil {
		return "", errors.Wrap(err, "error forming url")
	}
	return uri.String(), nil
}

// isOneOf returns true iff an HTTP status code is one of the supplied set of valid codes.
func (a *APIClient) isOneOf(statusCode int, validCodes []int) bool {
	for _, code := range validCodes {
		if statusCode == code {
			return true
		}
	}
	return false
}

// makeHTTPError attempts to parse an HTTP response body to a standard public
// error and return it. If the response body cannot be parsed, a generic error
// including the text of the response body will be returned instead.
func (a *APIClient) makeHTTPError(statusCode int, body []byte) error {
	doc := &documents.ErrorDocument{}
	err := json.Unmarshal(body, doc)
	if err != nil || doc.Code == "" {
		// We don't have error info in the body so return a more generic HTTP error
		return gerror.NewError(
			fmt.Sprintf("error %d in HTTP response: %s", statusCode, strings.TrimSpace(string(body))),
			gerror.AudienceExternal,
			gerror.ErrCodeHTTPOperationFailed,
			statusCode,
			nil,
		)
	}
	details := make(gerror.Details, len(doc.Details))
	for k, v := range doc.Details {
		details[k] = gerror.NewDetail(gerror.AudienceExternal, k, v)
	}
	return gerror.NewErrorWithDetails(doc.Message, details, gerror.AudienceExternal, doc.Code, doc.HTTPStatusCode, nil)
}
