package queue

import (
	"time"

	"github.com/benbjohnson/clock"
	"golang.org/x/net/context"

	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/common/util"
	"github.com/buildit-dev/buildit/server/services"
	"github.com/buildit-dev/buildit/server/store"
)

const (
	// DefaultLivenessTick is how often the sweeper looks for dead workers.
	DefaultLivenessTick = 30 * time.Second
	// DefaultLivenessTimeout is how long a worker may go without a heartbeat
	// before its jobs are reclaimed.
	DefaultLivenessTimeout = 120 * time.Second
)

// sweepRequest asks the sweeper to run a sweep immediately.
type sweepRequest struct {
	completedChan chan int // returns the number of jobs reclaimed
}

// LivenessSweeper periodically reclaims jobs from workers whose heartbeats
// have stopped, so a crashed builder never strands its job in the assigned
// state. A reclaimed job goes back to the queue and keeps its place in line.
type LivenessSweeper struct {
	*util.StatefulService
	db           *store.DB
	queueService services.QueueService
	workerStore  store.WorkerStore
	clock        clock.Clock
	tick         time.Duration
	timeout      time.Duration
	sweepChan    chan *sweepRequest
	logger.Log
}

func NewLivenessSweeper(
	db *store.DB,
	queueService services.QueueService,
	workerStore store.WorkerStore,
	clk clock.Clock,
	logFactory logger.LogFactory,
) *LivenessSweeper {
	s := &LivenessSweeper{
		db:           db,
		queueService: queueService,
		workerStore:  workerStore,
		clock:        clk,
		tick:         DefaultLivenessTick,
		timeout:      DefaultLivenessTimeout,
		sweepChan:    make(chan *sweepRequest),
		Log:          logFactory("LivenessSweeper"),
	}
	s.StatefulService = util.NewStatefulService(context.Background(), s.Log, s.loop)
	return s
}

func (s *LivenessSweeper) loop() {
	s.Tracef("Starting liveness sweep loop...")
	for {
		timer := s.clock.Timer(s.tick)
		select {
		case <-s.StatefulService.Ctx().Done():
			timer.Stop()
			s.Tracef("Liveness sweeper closed; exiting...")
			return

		case req := <-s.sweepChan:
			// This channel is designed for use in testing; run a sweep on demand
			timer.Stop()
			reclaimed, err := s.sweep()
			if err != nil {
				s.Errorf("Error sweeping for dead workers: %s", err.Error())
			}
			req.completedChan <- reclaimed

		case <-timer.C:
			reclaimed, err := s.sweep()
			if err != nil {
				s.Errorf("Error sweeping for dead workers: %s", err.Error())
			}
			if reclaimed > 0 {
				s.Infof("Reclaimed %d job(s) from dead workers", reclaimed)
			}
		}
	}
}

// sweep reclaims all jobs held by workers whose last heartbeat is older than
// the liveness timeout. Each worker is handled in its own transaction so one
// failure does not block the rest of the sweep.
func (s *LivenessSweeper) sweep() (int, error) {
	ctx := s.Ctx()
	deadline := s.clock.Now().Add(-s.timeout)

	stale, err := s.workerStore.ListStale(ctx, nil, deadline)
	if err != nil {
		return 0, err
	}

	reclaimed := 0
	for _, worker := range stale {
		jobIDs, err := s.queueService.ReclaimWorker(ctx, nil, worker.ID)
		if err != nil {
			s.Errorf("Error reclaiming jobs from dead worker %s (%s/%s): %s",
				worker.ID, worker.Hostname, worker.Arch, err.Error())
			continue
		}
		if len(jobIDs) > 0 {
			s.Infof("Worker %s (%s/%s) missed its heartbeat deadline; reclaimed job(s) %v",
				worker.ID, worker.Hostname, worker.Arch, jobIDs)
		}
		reclaimed += len(jobIDs)
	}
	return reclaimed, nil
}

// SweepNow instructs the sweeper to run a sweep immediately and returns the
// number of jobs reclaimed.
func (s *LivenessSweeper) SweepNow() int {
	req := &sweepRequest{completedChan: make(chan int)}
	s.sweepChan <- req
	return <-req.completedChan
}
