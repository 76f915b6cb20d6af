package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/quorumtrade/quorum/internal/contracts"
	"github.com/quorumtrade/quorum/pkg/logger"
)

const (
	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// AuditSubscriber hands out live audit event streams
type AuditSubscriber interface {
	Subscribe() (<-chan contracts.AuditEvent, func())
}

// AuditStreamHandler broadcasts rationale events over a websocket.
// Read-only stream: client messages are ignored except for closes.
type AuditStreamHandler struct {
	sink     AuditSubscriber
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewAuditStreamHandler creates the /ws/audit handler
func NewAuditStreamHandler(sink AuditSubscriber, log *logger.Logger) *AuditStreamHandler {
	return &AuditStreamHandler{
		sink: sink,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: log,
	}
}

// Stream upgrades the connection and forwards audit events until the
// client disconnects.
func (h *AuditStreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	events, cancel := h.sink.Subscribe()
	defer cancel()

	// Reader goroutine notices client-side closes
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				h.logger.WithError(err).Debug("Websocket write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}
