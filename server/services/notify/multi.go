package notify

import (
	"context"

	"github.com/hashicorp/go-multierror"

	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/server/dto"
	"github.com/buildit-dev/buildit/server/services"
)

// MultiNotifier fans an event out to every configured notifier. Each sink is
// attempted even when an earlier one fails, and the failures are combined.
type MultiNotifier struct {
	notifiers []services.Notifier
}

func NewMultiNotifier(notifiers ...services.Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

func (n *MultiNotifier) JobFinished(ctx context.Context, pipeline *models.Pipeline, job *models.Job) error {
	var result *multierror.Error
	for _, notifier := range n.notifiers {
		err := notifier.JobFinished(ctx, pipeline, job)
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

func (n *MultiNotifier) PipelineFinished(ctx context.Context, graph *dto.PipelineGraph) error {
	var result *multierror.Error
	for _, notifier := range n.notifiers {
		err := notifier.PipelineFinished(ctx, graph)
		if err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
