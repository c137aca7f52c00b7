package ws

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

const (
	sendBuffer   = 256
	writeTimeout = 5 * time.Second
	pingInterval = 30 * time.Second
)

// subscriber is one connected WebSocket client.
type subscriber struct {
	conn   *websocket.Conn
	remote string
	send   chan Message
	// evict ends the subscriber's request context.
	evict context.CancelFunc
}

// Hub fans messages out to subscribers. A subscriber whose buffer fills is
// evicted rather than silently missing messages; on reconnect its hello
// carries the current status.
type Hub struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	seq    uint64
	logger *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs:   make(map[*subscriber]struct{}),
		logger: logger,
	}
}

// add registers s. A non-nil greeting is queued ahead of any broadcast and
// stamped with the current sequence number.
func (h *Hub) add(s *subscriber, greeting *Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if greeting != nil {
		greeting.Seq = h.seq
		s.send <- *greeting
	}
	h.subs[s] = struct{}{}
	h.logger.Debug("websocket client connected",
		zap.String("remote", s.remote),
		zap.Int("clients", len(h.subs)),
	)
}

// remove unregisters s and closes its queue. Safe to call after eviction.
func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.send)
	h.logger.Debug("websocket client disconnected", zap.String("remote", s.remote))
}

// Broadcast stamps msg with the next sequence number and queues it for
// every subscriber.
func (h *Hub) Broadcast(msg Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	msg.Seq = h.seq
	for s := range h.subs {
		select {
		case s.send <- msg:
		default:
			delete(h.subs, s)
			close(s.send)
			if s.evict != nil {
				s.evict()
			}
			h.logger.Warn("evicting slow websocket client",
				zap.String("remote", s.remote),
				zap.Uint64("seq", msg.Seq),
			)
		}
	}
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// writePump drains s.send to the connection and pings while idle. It
// returns when the queue is closed or a write fails.
func (s *subscriber) writePump(ctx context.Context, logger *zap.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := s.conn.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Debug("websocket ping failed", zap.String("remote", s.remote), zap.Error(err))
				return
			}
		case msg, ok := <-s.send:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, s.conn, msg)
			cancel()
			if err != nil {
				logger.Debug("websocket write failed", zap.String("remote", s.remote), zap.Error(err))
				return
			}
		}
	}
}

// readPump reads until the client goes away. Reading is also what lets
// Ping see its pong.
func (s *subscriber) readPump(ctx context.Context) {
	for {
		if _, _, err := s.conn.Read(ctx); err != nil {
			return
		}
	}
}
