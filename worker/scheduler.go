package worker

import (
	"context"
	"time"

	"github.com/buildit-dev/buildit/common/gerror"
	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/common/util"
	"github.com/buildit-dev/buildit/server/api/rest/documents"
)

const (
	DefaultPollInterval = 5 * time.Second
	pollTimeout         = 30 * time.Second
	// reportTimeout is the maximum time to spend delivering a completion
	// report. Keep trying for a while; the build is already paid for.
	reportTimeout  = 5 * time.Minute
	reportAttempts = 5
)

// Scheduler polls the coordinator for jobs and runs them one at a time. The
// ciel instance is exclusive, so there is no parallelism to schedule; the
// loop is poll, build, report, repeat.
type Scheduler struct {
	client      APIClient
	heartbeater *Heartbeater
	executor    *Executor
	interval    time.Duration
	service     *util.StatefulService
	log         logger.Log
}

func NewScheduler(ctx context.Context, client APIClient, heartbeater *Heartbeater, executor *Executor, interval time.Duration, logFactory logger.LogFactory) *Scheduler {
	if interval == 0 {
		interval = DefaultPollInterval
	}
	log := logFactory("Scheduler")
	s := &Scheduler{
		client:      client,
		heartbeater: heartbeater,
		executor:    executor,
		interval:    interval,
		log:         log,
	}
	s.service = util.NewStatefulService(ctx, log, s.loop)
	return s
}

func (s *Scheduler) Start() {
	s.service.Start()
}

// Stop returns after the job in progress, if any, has been reported.
func (s *Scheduler) Stop() {
	s.service.Stop()
}

func (s *Scheduler) loop() {
	ctx := s.service.Ctx()
	for {
		ran := s.pollOnce(ctx)
		if ran {
			// The queue may hold more work for us; skip the wait
			continue
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.interval):
		}
	}
}

// pollOnce claims and runs at most one job. Returns true when a job ran.
func (s *Scheduler) pollOnce(ctx context.Context) bool {
	req, registered := s.heartbeater.PollRequest()
	if !registered {
		// Not registered yet; the heartbeater is still working on it
		return false
	}
	pollCtx, cancel := context.WithTimeout(ctx, pollTimeout)
	job, err := s.client.Poll(pollCtx, req)
	cancel()
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warnf("Will retry error during poll: %s", err)
		}
		return false
	}
	if job == nil {
		return false
	}
	s.log.Infof("Running job %s (%s on %s)", job.ID, job.Packages, job.Arch)
	report := s.executor.Run(ctx, req.WorkerID, job)
	s.report(report)
	return ctx.Err() == nil
}

// report delivers a completion report, retrying transient failures. A Stale
// response means the coordinator reclaimed the job while we were building;
// the result is discarded.
func (s *Scheduler) report(report *documents.CompleteRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()
	var job *models.Job
	var err error
	for i := 0; i < reportAttempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				s.log.Errorf("Gave up reporting job %s: %s", report.JobID, err)
				return
			case <-time.After(time.Second << (i - 1)):
			}
		}
		job, err = s.client.Complete(ctx, report)
		if err == nil {
			s.log.Infof("Reported job %s as %s", job.ID, job.Status)
			return
		}
		if gerror.IsStale(err) {
			s.log.Warnf("Job %s was reclaimed while building; result discarded", report.JobID)
			return
		}
		s.log.Warnf("Will retry error reporting job %s: %s", report.JobID, err)
	}
	s.log.Errorf("Gave up reporting job %s: %s", report.JobID, err)
}
