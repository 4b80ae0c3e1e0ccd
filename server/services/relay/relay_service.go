package relay

import (
	"sync"

	"github.com/buildit-dev/buildit/common/gerror"
	"github.com/buildit-dev/buildit/common/logger"
)

const (
	// DefaultBufferSize bounds the per-hostname replay ring. On overflow the
	// oldest half is discarded.
	DefaultBufferSize = 5000
	// DefaultViewerQueueSize bounds each viewer's send queue beyond the
	// replay snapshot. A viewer that falls this far behind is dropped.
	DefaultViewerQueueSize = 256
)

// CloseReason says why the relay closed one side of a stream. The transport
// layer maps these onto WebSocket close codes.
type CloseReason int

const (
	// CloseReasonProducerGone means the producer for the stream disconnected.
	CloseReasonProducerGone CloseReason = iota
	// CloseReasonReplaced means a new producer took over the hostname.
	CloseReasonReplaced
	// CloseReasonSlow means the viewer could not keep up with the stream.
	CloseReasonSlow
)

// RelayService fans build log lines out from one producer per worker
// hostname to any number of viewers. It is a bounded in-memory buffer, not a
// persistent log: late joiners see at most the buffered suffix of the
// stream, and a slow viewer never blocks the producer or its peers.
type RelayService struct {
	logger.Log
	bufferSize      int
	viewerQueueSize int

	mu      sync.Mutex
	streams map[string]*stream
}

type stream struct {
	producer *Producer
	buffer   [][]byte
	viewers  map[*Viewer]bool
}

// Producer is the write side of a stream. At most one producer is live per
// hostname; opening another closes the previous one.
type Producer struct {
	service  *RelayService
	hostname string
	closed   chan CloseReason
}

// Viewer is the read side of a stream. Lines arrive on C; Closed fires once
// with the reason when the relay drops the viewer. Viewers that leave of
// their own accord must call Unsubscribe.
type Viewer struct {
	C      <-chan []byte
	Closed <-chan CloseReason

	ch     chan []byte
	closed chan CloseReason
}

func NewRelayService(bufferSize int, logFactory logger.LogFactory) *RelayService {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &RelayService{
		Log:             logFactory("RelayService"),
		bufferSize:      bufferSize,
		viewerQueueSize: DefaultViewerQueueSize,
		streams:         make(map[string]*stream),
	}
}

// OpenProducer registers the producer for a hostname, displacing any
// existing producer for the same hostname. The stream's buffer and viewers
// carry over to the new producer.
func (s *RelayService) OpenProducer(hostname string) (*Producer, error) {
	if hostname == "" {
		return nil, gerror.NewErrValidationFailed("Hostname must be set")
	}
	producer := &Producer{
		service:  s,
		hostname: hostname,
		closed:   make(chan CloseReason, 1),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	str, ok := s.streams[hostname]
	if !ok {
		str = &stream{viewers: make(map[*Viewer]bool)}
		s.streams[hostname] = str
	}
	if str.producer != nil {
		str.producer.closeWith(CloseReasonReplaced)
	}
	str.producer = producer
	return producer, nil
}

// Subscribe attaches a viewer to a hostname's stream, replaying the buffered
// suffix first. Subscribing to a hostname with no live producer is allowed;
// the viewer simply waits for one to appear.
func (s *RelayService) Subscribe(hostname string) (*Viewer, error) {
	if hostname == "" {
		return nil, gerror.NewErrValidationFailed("Hostname must be set")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	str, ok := s.streams[hostname]
	if !ok {
		str = &stream{viewers: make(map[*Viewer]bool)}
		s.streams[hostname] = str
	}
	// Size the queue to hold the whole snapshot plus the usual headroom so
	// the replay itself can never mark the viewer slow.
	ch := make(chan []byte, len(str.buffer)+s.viewerQueueSize)
	viewer := &Viewer{
		ch:     ch,
		closed: make(chan CloseReason, 1),
	}
	viewer.C = ch
	viewer.Closed = viewer.closed
	for _, line := range str.buffer {
		ch <- line
	}
	str.viewers[viewer] = true
	return viewer, nil
}

// Unsubscribe detaches a viewer that is leaving voluntarily.
func (s *RelayService) Unsubscribe(hostname string, viewer *Viewer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	str, ok := s.streams[hostname]
	if !ok {
		return
	}
	delete(str.viewers, viewer)
}

// Publish appends a line to the stream's ring and fans it out. A viewer
// whose queue is full is closed as slow and removed; nobody else notices.
func (p *Producer) Publish(line []byte) {
	s := p.service
	s.mu.Lock()
	defer s.mu.Unlock()
	str, ok := s.streams[p.hostname]
	if !ok || str.producer != p {
		// Displaced producer; drop the line
		return
	}
	if len(str.buffer) >= s.bufferSize {
		retained := str.buffer[s.bufferSize/2:]
		str.buffer = make([][]byte, len(retained), s.bufferSize)
		copy(str.buffer, retained)
	}
	str.buffer = append(str.buffer, line)
	for viewer := range str.viewers {
		select {
		case viewer.ch <- line:
		default:
			s.Tracef("Dropping slow log viewer on stream %q", p.hostname)
			viewer.closeWith(CloseReasonSlow)
			delete(str.viewers, viewer)
		}
	}
}

// Close tears the stream down: every viewer is closed with ProducerGone and
// the buffer is discarded. Closing a displaced producer is a no-op.
func (p *Producer) Close() {
	s := p.service
	s.mu.Lock()
	defer s.mu.Unlock()
	str, ok := s.streams[p.hostname]
	if !ok || str.producer != p {
		return
	}
	for viewer := range str.viewers {
		viewer.closeWith(CloseReasonProducerGone)
	}
	delete(s.streams, p.hostname)
	p.closeWith(CloseReasonProducerGone)
}

// Closed fires once with the reason when the relay displaces this producer.
func (p *Producer) Closed() <-chan CloseReason {
	return p.closed
}

func (p *Producer) closeWith(reason CloseReason) {
	select {
	case p.closed <- reason:
	default:
	}
}

func (v *Viewer) closeWith(reason CloseReason) {
	select {
	case v.closed <- reason:
	default:
	}
}
