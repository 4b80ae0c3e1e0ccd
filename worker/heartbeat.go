package worker

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/disk"
	"github.com/shirou/gopsutil/mem"

	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/common/models"
	"github.com/buildit-dev/buildit/common/util"
	"github.com/buildit-dev/buildit/common/version"
	"github.com/buildit-dev/buildit/server/api/rest/documents"
)

const (
	DefaultHeartbeatInterval = time.Minute
	heartbeatTimeout         = 30 * time.Second
	connectivityProbeAddr    = "1.1.1.1:443"
	connectivityProbeTimeout = 3 * time.Second
)

type HeartbeaterConfig struct {
	Hostname string
	// Arch is the dpkg architecture this worker builds for.
	Arch string
	// Performance optionally ranks this worker against its arch peers.
	Performance *int64
	// DiskPath is where free space is sampled, normally the ciel workspace.
	DiskPath string
	Interval time.Duration
}

// Heartbeater reports this worker to the coordinator once a minute. The
// first successful heartbeat registers the worker and yields the worker id
// the poll loop claims jobs with.
type Heartbeater struct {
	client  APIClient
	config  HeartbeaterConfig
	service *util.StatefulService
	log     logger.Log

	mu           sync.Mutex
	workerID     models.WorkerID
	capabilities models.WorkerCapabilities
	connectivity bool
}

func NewHeartbeater(ctx context.Context, client APIClient, config HeartbeaterConfig, logFactory logger.LogFactory) *Heartbeater {
	if config.Interval == 0 {
		config.Interval = DefaultHeartbeatInterval
	}
	log := logFactory("Heartbeater")
	h := &Heartbeater{
		client: client,
		config: config,
		log:    log,
	}
	h.service = util.NewStatefulService(ctx, log, h.loop)
	return h
}

func (h *Heartbeater) Start() {
	h.service.Start()
}

func (h *Heartbeater) Stop() {
	h.service.Stop()
}

// PollRequest builds a poll payload from the coordinator-assigned worker id
// and the hardware
// sampled on the most recent heartbeat. Returns false before the first
// heartbeat has been acknowledged.
func (h *Heartbeater) PollRequest() (*documents.PollRequest, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.workerID.Valid() {
		return nil, false
	}
	return &documents.PollRequest{
		WorkerID:             h.workerID,
		LogicalCores:         h.capabilities.LogicalCores,
		MemoryBytes:          h.capabilities.MemoryBytes,
		DiskFreeSpaceBytes:   h.capabilities.DiskFreeSpaceBytes,
		InternetConnectivity: h.connectivity,
	}, true
}

func (h *Heartbeater) loop() {
	ctx := h.service.Ctx()
	ticker := time.NewTicker(h.config.Interval)
	defer ticker.Stop()
	for {
		h.beat(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *Heartbeater) beat(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, heartbeatTimeout)
	defer cancel()
	req := &documents.HeartbeatRequest{
		Hostname:             h.config.Hostname,
		Arch:                 h.config.Arch,
		SourceRev:            version.SourceRevision(),
		Performance:          h.config.Performance,
		InternetConnectivity: probeInternetConnectivity(),
	}
	caps, err := ProbeCapabilities(h.config.DiskPath)
	if err != nil {
		h.log.Warnf("Error probing hardware (reporting zeroes): %s", err)
	} else {
		req.LogicalCores = caps.LogicalCores
		req.MemoryBytes = caps.MemoryBytes
		req.DiskFreeSpaceBytes = caps.DiskFreeSpaceBytes
	}
	worker, err := h.client.Heartbeat(ctx, req)
	if err != nil {
		h.log.Warnf("Error sending heartbeat (will retry): %s", err)
		return
	}
	h.mu.Lock()
	registered := h.workerID.Valid()
	h.workerID = worker.ID
	h.capabilities = models.WorkerCapabilities{
		LogicalCores:       req.LogicalCores,
		MemoryBytes:        req.MemoryBytes,
		DiskFreeSpaceBytes: req.DiskFreeSpaceBytes,
	}
	h.connectivity = req.InternetConnectivity
	h.mu.Unlock()
	if !registered {
		h.log.Infof("Registered with coordinator as worker %s", worker.ID)
	}
}

// ProbeCapabilities samples the hardware this worker advertises to the
// capability matcher.
func ProbeCapabilities(diskPath string) (models.WorkerCapabilities, error) {
	caps := models.WorkerCapabilities{}
	cores, err := cpu.Counts(true)
	if err != nil {
		return caps, err
	}
	caps.LogicalCores = int64(cores)
	vm, err := mem.VirtualMemory()
	if err != nil {
		return caps, err
	}
	caps.MemoryBytes = int64(vm.Total)
	usage, err := disk.Usage(diskPath)
	if err != nil {
		return caps, err
	}
	caps.DiskFreeSpaceBytes = int64(usage.Free)
	return caps, nil
}

func probeInternetConnectivity() bool {
	conn, err := net.DialTimeout("tcp", connectivityProbeAddr, connectivityProbeTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
