// internal/broadcast/hub.go
package broadcast

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

// Subscriber is one WebSocket client listening on a channel.
type Subscriber struct {
	Channel string
	Remote  string
	OutChan chan []byte
}

// Write pushes an encoded message onto the OutChan without blocking. A full buffer drops the
// message; the client resynchronizes on the next state broadcast.
func (s *Subscriber) Write(data []byte, logger logrus.FieldLogger) {
	select {
	case s.OutChan <- data:
	default:
		logger.WithFields(logrus.Fields{
			"channel": s.Channel,
			"remote":  s.Remote,
		}).Warn("subscriber buffer full, dropped message")
	}
}

// Hub is the in-process Gateway: it keeps WebSocket subscribers per channel.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[*Subscriber]struct{}
	logger   logrus.FieldLogger

	// PingInterval is how often idle connections are pinged.
	PingInterval time.Duration
	// WriteTimeout bounds a single frame write.
	WriteTimeout time.Duration
	// Buffer is the per-subscriber queue length.
	Buffer int
}

// NewHub creates an empty hub.
func NewHub(logger logrus.FieldLogger) *Hub {
	return &Hub{
		channels:     make(map[string]map[*Subscriber]struct{}),
		logger:       logger,
		PingInterval: 30 * time.Second,
		WriteTimeout: 5 * time.Second,
		Buffer:       16,
	}
}

// Subscribe registers a new subscriber on the channel.
func (h *Hub) Subscribe(channel, remote string) *Subscriber {
	s := &Subscriber{Channel: channel, Remote: remote, OutChan: make(chan []byte, h.Buffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[*Subscriber]struct{})
		h.channels[channel] = subs
	}
	subs[s] = struct{}{}
	return s
}

// Unsubscribe removes the subscriber and closes its OutChan. Safe to call twice.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.channels[s.Channel]
	if !ok {
		return
	}
	if _, ok := subs[s]; !ok {
		return
	}
	delete(subs, s)
	close(s.OutChan)
	if len(subs) == 0 {
		delete(h.channels, s.Channel)
	}
}

// Subscribers returns how many clients listen on the channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// Publish encodes the message once and queues it for every subscriber of the channel.
func (h *Hub) Publish(channel string, msg Message) {
	data, err := msg.Encode()
	if err != nil {
		h.logger.WithError(err).WithField("channel", channel).Error("failed to encode broadcast")
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.channels[channel] {
		s.Write(data, h.logger)
	}
}

// Serve pumps the channel's broadcasts to an accepted WebSocket until the client goes away or
// ctx is cancelled. Clients do not send anything on these connections; inbound frames are
// discarded.
func (h *Hub) Serve(ctx context.Context, c *websocket.Conn, channel, remote string) {
	s := h.Subscribe(channel, remote)
	defer h.Unsubscribe(s)

	// CloseRead keeps a reader running so pings and close frames are processed.
	ctx = c.CloseRead(ctx)
	h.writePump(ctx, c, s)
}

func (h *Hub) writePump(ctx context.Context, c *websocket.Conn, s *Subscriber) {
	ticker := time.NewTicker(h.PingInterval)
	defer ticker.Stop()
	defer c.Close(websocket.StatusGoingAway, "subscription closed")

	for {
		select {
		case <-ctx.Done():
			return
		case data, ok := <-s.OutChan:
			if !ok {
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, h.WriteTimeout)
			err := c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				h.logger.WithError(err).WithFields(logrus.Fields{
					"channel": s.Channel,
					"remote":  s.Remote,
				}).Warn("failed to write to websocket")
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				h.logger.WithError(err).WithField("remote", s.Remote).Warn("ping failed, assuming disconnect")
				return
			}
		}
	}
}
