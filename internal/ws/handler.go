package ws

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/HerbHall/bambulink/internal/event"
	"github.com/coder/websocket"
	"go.uber.org/zap"
)

// Handler provides the WebSocket endpoint streaming printer events.
type Handler struct {
	hub         *Hub
	token       string
	status      func() (serial string, data StatusData)
	unsubscribe func()
	logger      *zap.Logger
}

// Compile-time check that Handler implements the server interface.
var _ interface {
	RegisterRoutes(mux *http.ServeMux)
} = (*Handler)(nil)

// NewHandler creates a WebSocket handler and subscribes it to every bus
// topic. An empty token disables authentication. status, when non-nil,
// supplies the greeting sent to each new client.
func NewHandler(bus *event.Bus, token string, status func() (string, StatusData), logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Handler{
		hub:    NewHub(logger),
		token:  token,
		status: status,
		logger: logger,
	}
	if bus != nil {
		h.unsubscribe = bus.SubscribeAll(h.forward)
	}
	return h
}

// RegisterRoutes registers WebSocket routes on the server mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/ws/events", h.handleEventStream)
}

// Close stops forwarding bus events.
func (h *Handler) Close() {
	if h.unsubscribe != nil {
		h.unsubscribe()
	}
}

// ClientCount returns the number of connected clients.
func (h *Handler) ClientCount() int { return h.hub.ClientCount() }

func (h *Handler) forward(_ context.Context, e event.Event) {
	h.hub.Broadcast(Message{
		Type:      MessagePrinterEvent,
		Serial:    e.Source,
		Event:     e.Topic,
		Timestamp: e.Timestamp,
		Data:      e.Payload,
	})
}

// authorized accepts the token from the query string (browser WebSocket
// APIs cannot set headers) or an Authorization bearer header.
func (h *Handler) authorized(r *http.Request) bool {
	if h.token == "" {
		return true
	}
	got := r.URL.Query().Get("token")
	if got == "" {
		got = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.token)) == 1
}

// handleEventStream upgrades the connection and streams printer events.
func (h *Handler) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		http.Error(w, "invalid or missing token", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// Access is controlled by the token.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := &subscriber{
		conn:   conn,
		remote: r.RemoteAddr,
		send:   make(chan Message, sendBuffer),
		evict:  cancel,
	}
	var greeting *Message
	if h.status != nil {
		serial, data := h.status()
		greeting = &Message{Type: MessageHello, Serial: serial, Timestamp: time.Now(), Data: data}
	}
	h.hub.add(sub, greeting)

	done := make(chan struct{})
	go func() {
		sub.writePump(ctx, h.logger)
		close(done)
	}()

	// readPump blocks until the client disconnects or is evicted.
	sub.readPump(ctx)

	evicted := ctx.Err() != nil && r.Context().Err() == nil
	h.hub.remove(sub)
	cancel()
	<-done
	if evicted {
		conn.Close(websocket.StatusTryAgainLater, "client too slow")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}
