package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/server/dto"
)

// WebhookNotifier POSTs pipeline and job events to a configured endpoint,
// typically the chat bot bridge. Payloads carry a rendered text and HTML
// summary alongside the raw documents so simple receivers need no templating.
type WebhookNotifier struct {
	url             string
	retryableClient *retryablehttp.Client
	log             logger.Log
}

type webhookEvent struct {
	Event       string             `json:"event"`
	Pipeline    *models.Pipeline   `json:"pipeline,omitempty"`
	Job         *models.Job        `json:"job,omitempty"`
	Graph       *dto.PipelineGraph `json:"graph,omitempty"`
	TextSummary string             `json:"text_summary,omitempty"`
	HTMLSummary string             `json:"html_summary,omitempty"`
}

func NewWebhookNotifier(url string, logFactory logger.LogFactory) *WebhookNotifier {
	log := logFactory("WebhookNotifier")
	retryableClient := retryablehttp.NewClient()
	retryableClient.RetryWaitMin = time.Millisecond * 100
	retryableClient.RetryWaitMax = time.Second * 5
	retryableClient.RetryMax = 5
	retryableClient.Logger = NewLeveledLogger(log) // use adaptor to get log level support
	return &WebhookNotifier{
		url:             url,
		retryableClient: retryableClient,
		log:             log,
	}
}

func (n *WebhookNotifier) JobFinished(ctx context.Context, pipeline *models.Pipeline, job *models.Job) error {
	return n.post(ctx, &webhookEvent{
		Event:    "job_finished",
		Pipeline: pipeline,
		Job:      job,
	})
}

func (n *WebhookNotifier) PipelineFinished(ctx context.Context, graph *dto.PipelineGraph) error {
	html, err := HTMLSummary(graph)
	if err != nil {
		return err
	}
	return n.post(ctx, &webhookEvent{
		Event:       "pipeline_finished",
		Graph:       graph,
		TextSummary: TextSummary(graph),
		HTMLSummary: html,
	})
}

func (n *WebhookNotifier) post(ctx context.Context, event *webhookEvent) error {
	buf, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("error encoding webhook payload: %w", err)
	}
	req, err := retryablehttp.NewRequest("POST", n.url, buf)
	if err != nil {
		return fmt.Errorf("error making webhook request: %w", err)
	}
	req = req.WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	res, err := n.retryableClient.Do(req)
	if err != nil {
		return fmt.Errorf("error delivering webhook: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("error delivering webhook: received status %d", res.StatusCode)
	}
	return nil
}
