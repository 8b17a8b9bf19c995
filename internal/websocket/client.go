package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrClientBacklogged is returned when a client's outbound queue is full
var ErrClientBacklogged = errors.New("client send queue is full")

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxInboundBytes = 512
	sendQueueSize   = 64
)

// Client is one event stream connection owned by a user. Events only flow
// from server to client; inbound frames are read for control messages and
// otherwise discarded.
type Client struct {
	id       string
	userID   uuid.UUID
	reviewer bool
	conn     *websocket.Conn
	hub      *Hub
	queue    chan []byte
	done     chan struct{}
	once     sync.Once
	logger   zerolog.Logger
}

// NewClient creates a client for userID. Reviewer clients also receive
// application traffic for every applicant.
func NewClient(conn *websocket.Conn, userID uuid.UUID, reviewer bool, hub *Hub) *Client {
	id := uuid.New().String()
	logger := log.With().Str("client_id", id).Str("user_id", userID.String()).Logger()
	return &Client{
		id:       id,
		userID:   userID,
		reviewer: reviewer,
		conn:     conn,
		hub:      hub,
		queue:    make(chan []byte, sendQueueSize),
		done:     make(chan struct{}),
		logger:   logger,
	}
}

// ID returns the connection id
func (c *Client) ID() string { return c.id }

// UserID returns the owner of the connection
func (c *Client) UserID() uuid.UUID { return c.userID }

// Reviewer reports whether the client receives loan review traffic
func (c *Client) Reviewer() bool { return c.reviewer }

// Send queues an encoded event without blocking
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}

	select {
	case c.queue <- data:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		return ErrClientBacklogged
	}
}

// Close stops both loops and closes the connection. It is idempotent.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}

// Serve registers the client, runs the write loop in the background and
// blocks in the read loop until the peer goes away or the client is closed.
func (c *Client) Serve() {
	c.hub.Register(c)
	defer func() {
		c.hub.Unregister(c)
		c.Close()
	}()

	go c.writeLoop()
	c.readLoop()
}

func (c *Client) readLoop() {
	c.conn.SetReadLimit(maxInboundBytes)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("WebSocket closed unexpectedly")
			}
			return
		}
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return

		case msg := <-c.queue:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.logger.Warn().Err(err).Msg("WebSocket write failed")
				c.Close()
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}
