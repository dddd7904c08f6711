package lan

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"warimas-pos/internal/dispatch"
	"warimas-pos/internal/logger"
	"warimas-pos/internal/metrics"
	"warimas-pos/internal/store"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var ErrNotConnected = errors.New("lan hub not connected")

const (
	defaultWriteTimeout = 5 * time.Second
	ackTimeout          = 10 * time.Second
)

// Message is the envelope of every frame exchanged with the hub.
type Message struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	From      string          `json:"from"`
	To        *string         `json:"to,omitempty"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// AckHandler is called for every kitchen acknowledgement read from the hub.
type AckHandler func(ctx context.Context, ack dispatch.AckPayload) error

// Client is a websocket connection to the LAN hub.
type Client struct {
	url      string
	deviceID string
	dialer   *websocket.Dialer
	onAck    AckHandler
	now      func() time.Time

	mu      sync.Mutex
	conn    *websocket.Conn
	done    chan struct{}
	writeMu sync.Mutex
	active  atomic.Bool
}

type Option func(*Client)

func WithAckHandler(h AckHandler) Option {
	return func(c *Client) { c.onAck = h }
}

func WithDialer(d *websocket.Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

func NewClient(url, deviceID string, opts ...Option) *Client {
	c := &Client{
		url:      url,
		deviceID: deviceID,
		dialer:   websocket.DefaultDialer,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect dials the hub and starts reading frames. Calling it while
// connected is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active.Load() {
		return nil
	}

	log := logger.FromCtx(ctx).With(zap.String("hub", c.url), zap.String("device_id", c.deviceID))

	// Release the socket of a dropped connection.
	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}

	conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		log.Warn("lan hub dial failed", zap.Error(err))
		return err
	}

	c.conn = conn
	c.done = make(chan struct{})
	c.active.Store(true)
	go c.readLoop(conn, c.done)

	log.Info("lan hub connected")
	return nil
}

func (c *Client) IsActive() bool {
	return c.active.Load()
}

// Broadcast sends one frame addressed to every node on the hub.
func (c *Client) Broadcast(ctx context.Context, msgType string, payload any) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil || !c.active.Load() {
		return ErrNotConnected
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	msg := Message{
		ID:        uuid.NewString(),
		Type:      msgType,
		From:      c.deviceID,
		Timestamp: store.FormatTime(c.now()),
		Payload:   raw,
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = c.now().Add(defaultWriteTimeout)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	if err := conn.WriteJSON(msg); err != nil {
		c.active.Store(false)
		logger.FromCtx(ctx).Warn("lan frame write failed", zap.String("type", msgType), zap.Error(err))
		return err
	}
	metrics.LanFramesTotal.WithLabelValues("out", msgType).Inc()
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer close(done)
	defer func() {
		c.mu.Lock()
		if c.conn == conn || c.conn == nil {
			c.active.Store(false)
		}
		c.mu.Unlock()
	}()

	log := logger.L().With(zap.String("hub", c.url))
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("lan hub read failed", zap.Error(err))
			}
			return
		}
		metrics.LanFramesTotal.WithLabelValues("in", msg.Type).Inc()

		if msg.Type != dispatch.MessageKDSOrderAck || c.onAck == nil {
			continue
		}
		var ack dispatch.AckPayload
		if err := json.Unmarshal(msg.Payload, &ack); err != nil {
			log.Warn("malformed ack frame", zap.String("message_id", msg.ID), zap.Error(err))
			continue
		}
		c.handleAck(ack)
	}
}

func (c *Client) handleAck(ack dispatch.AckPayload) {
	ctx, cancel := context.WithTimeout(logger.WithRun(context.Background(), "lan_ack"), ackTimeout)
	defer cancel()

	if err := c.onAck(ctx, ack); err != nil {
		logger.FromCtx(ctx).Error("ack handler failed",
			zap.String("order_id", ack.OrderID),
			zap.String("station", string(ack.Station)),
			zap.Error(err),
		)
	}
}

// Close sends a close frame and waits for the read loop to exit.
func (c *Client) Close() error {
	c.mu.Lock()
	conn, done := c.conn, c.done
	c.conn = nil
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	c.active.Store(false)

	c.writeMu.Lock()
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		c.now().Add(time.Second))
	c.writeMu.Unlock()

	err := conn.Close()
	<-done
	return err
}
