package worker

import (
	"context"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/common/util"
)

const (
	logStreamQueueSize      = 1024
	logStreamWriteTimeout   = 10 * time.Second
	logStreamBackoffInitial = 1 * time.Second
	logStreamBackoffMax     = 60 * time.Second
)

// LogStreamer keeps a WebSocket producer connection to the coordinator's log
// relay and forwards build log lines to it. The stream is a live tail, not a
// log of record: lines are dropped while the relay is unreachable or the
// queue is full, and the full transcript still reaches the log sink.
type LogStreamer struct {
	wsURL   string
	dialer  *websocket.Dialer
	lines   chan []byte
	service *util.StatefulService
	log     logger.Log
}

// NewLogStreamer derives the relay producer URL for hostname from the
// coordinator's HTTP endpoint.
func NewLogStreamer(ctx context.Context, endpoint string, hostname string, logFactory logger.LogFactory) (*LogStreamer, error) {
	wsURL, err := producerURL(endpoint, hostname)
	if err != nil {
		return nil, err
	}
	log := logFactory("LogStreamer")
	s := &LogStreamer{
		wsURL:  wsURL,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		lines:  make(chan []byte, logStreamQueueSize),
		log:    log,
	}
	s.service = util.NewStatefulService(ctx, log, s.loop)
	return s, nil
}

func producerURL(endpoint string, hostname string) (string, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return "", errors.Wrapf(err, "error parsing coordinator endpoint %q", endpoint)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", errors.Errorf("error unsupported coordinator endpoint scheme %q", u.Scheme)
	}
	u.Path = "/api/ws/producer/" + hostname
	return u.String(), nil
}

func (s *LogStreamer) Start() {
	s.service.Start()
}

func (s *LogStreamer) Stop() {
	s.service.Stop()
}

// WriteLine queues a line for the relay. Never blocks; lines are dropped
// when the connection cannot keep up.
func (s *LogStreamer) WriteLine(line []byte) {
	lineCopy := make([]byte, len(line))
	copy(lineCopy, line)
	select {
	case s.lines <- lineCopy:
	default:
	}
}

func (s *LogStreamer) loop() {
	ctx := s.service.Ctx()
	backoff := logStreamBackoffInitial
	for {
		conn, _, err := s.dialer.DialContext(ctx, s.wsURL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.Warnf("Error connecting to log relay at %s (will retry in %s): %s", s.wsURL, backoff, err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > logStreamBackoffMax {
				backoff = logStreamBackoffMax
			}
			continue
		}
		s.log.Infof("Connected to log relay at %s", s.wsURL)
		backoff = logStreamBackoffInitial
		if !s.forward(ctx, conn) {
			return
		}
	}
}

// forward pushes queued lines onto conn until the connection breaks or the
// streamer stops. Returns false when the streamer should exit for good.
func (s *LogStreamer) forward(ctx context.Context, conn *websocket.Conn) bool {
	defer conn.Close()

	// The relay sends no data frames, but reading is what surfaces close
	// frames and broken connections.
	connGone := make(chan struct{})
	go func() {
		defer close(connGone)
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(logStreamWriteTimeout)
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, deadline)
			return false
		case <-connGone:
			s.log.Warn("Log relay connection lost; reconnecting")
			return true
		case line := <-s.lines:
			_ = conn.SetWriteDeadline(time.Now().Add(logStreamWriteTimeout))
			err := conn.WriteMessage(websocket.TextMessage, line)
			if err != nil {
				s.log.Warnf("Error writing to log relay (reconnecting): %s", err)
				return true
			}
		}
	}
}
