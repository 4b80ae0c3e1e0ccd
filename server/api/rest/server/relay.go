package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/buildit-dev/buildit/common/gerror"
	"github.com/buildit-dev/buildit/common/logger"
	"github.com/buildit-dev/buildit/server/services/relay"
)

const relayWriteTimeout = 10 * time.Second

type RelayAPI struct {
	relayService *relay.RelayService
	upgrader     websocket.Upgrader
	*APIBase
}

func NewRelayAPI(relayService *relay.RelayService, logFactory logger.LogFactory) *RelayAPI {
	return &RelayAPI{
		relayService: relayService,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Log streams are public; viewers come from any origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		APIBase: NewAPIBase(logFactory("RelayAPI")),
	}
}

// closeCode maps a relay close reason onto a WebSocket close code.
func closeCode(reason relay.CloseReason) int {
	if reason == relay.CloseReasonSlow {
		return websocket.CloseTryAgainLater
	}
	return websocket.CloseNormalClosure
}

// Producer handles GET /api/ws/producer/{hostname}: the worker streams log
// lines up this socket as its executor produces them.
func (a *RelayAPI) Producer(w http.ResponseWriter, r *http.Request) {
	hostname := chi.URLParam(r, "hostname")
	if hostname == "" {
		a.Error(w, r, gerror.NewErrValidationFailed("A hostname must be specified"))
		return
	}
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response
		a.Warnf("Error upgrading producer connection for %q: %s", hostname, err)
		return
	}
	producer, err := a.relayService.OpenProducer(hostname)
	if err != nil {
		conn.Close()
		return
	}
	a.Infof("Log producer connected for %q", hostname)

	// A replacement producer for the same hostname displaces this one
	go func() {
		reason := <-producer.Closed()
		conn.SetWriteDeadline(time.Now().Add(relayWriteTimeout))
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(closeCode(reason), ""))
		conn.Close()
	}()

	for {
		_, line, err := conn.ReadMessage()
		if err != nil {
			break
		}
		producer.Publish(line)
	}
	producer.Close()
	conn.Close()
	a.Infof("Log producer disconnected for %q", hostname)
}

// Viewer handles GET /api/ws/viewer/{hostname}: any number of viewers follow
// the stream, starting from the buffered suffix.
func (a *RelayAPI) Viewer(w http.ResponseWriter, r *http.Request) {
	hostname := chi.URLParam(r, "hostname")
	if hostname == "" {
		a.Error(w, r, gerror.NewErrValidationFailed("A hostname must be specified"))
		return
	}
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Warnf("Error upgrading viewer connection for %q: %s", hostname, err)
		return
	}
	viewer, err := a.relayService.Subscribe(hostname)
	if err != nil {
		conn.Close()
		return
	}
	defer a.relayService.Unsubscribe(hostname, viewer)

	// Watch for the client going away; reads also consume its close frames
	clientGone := make(chan struct{})
	go func() {
		defer close(clientGone)
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case line := <-viewer.C:
			conn.SetWriteDeadline(time.Now().Add(relayWriteTimeout))
			err := conn.WriteMessage(websocket.TextMessage, line)
			if err != nil {
				conn.Close()
				return
			}
		case reason := <-viewer.Closed:
			conn.SetWriteDeadline(time.Now().Add(relayWriteTimeout))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(closeCode(reason), ""))
			conn.Close()
			return
		case <-clientGone:
			conn.Close()
			return
		}
	}
}
