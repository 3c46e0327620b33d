package ws

import (
	"context"
	"io"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/slatelabs/slatesync/internal/event"
	"github.com/slatelabs/slatesync/internal/ratelimit"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024 * 1024

	messagesPerSecond = 100
	messageBurst      = 200
	maxViolations     = 1000

	inboundBuffer = 64
)

// Conn adapts a websocket connection to the transport contract the protocol
// expects: ordered, reliable delivery of decoded events. Malformed inbound
// frames are logged and skipped without ending the stream.
type Conn struct {
	conn    *websocket.Conn
	limiter *ratelimit.Limiter // nil on dialed connections

	inbound chan event.Event

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func newConn(conn *websocket.Conn, limiter *ratelimit.Limiter) *Conn {
	c := &Conn{
		conn:    conn,
		limiter: limiter,
		inbound: make(chan event.Event, inboundBuffer),
		done:    make(chan struct{}),
	}
	go c.readPump()
	go c.pingLoop()
	return c
}

// Dial connects to a server's websocket endpoint.
func Dial(ctx context.Context, url string) (*Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return newConn(conn, nil), nil
}

// Receive returns the next inbound event. It returns io.EOF when the peer
// ends the stream.
func (c *Conn) Receive(ctx context.Context) (event.Event, error) {
	select {
	case <-ctx.Done():
		return event.Event{}, ctx.Err()
	case ev, ok := <-c.inbound:
		if !ok {
			return event.Event{}, io.EOF
		}
		return ev, nil
	}
}

// Send encodes and writes one event. Safe for use from multiple goroutines.
func (c *Conn) Send(ev event.Event) error {
	data, err := EncodeEvent(ev)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Close closes the underlying connection. A blocked read unblocks with an
// error and the inbound stream ends.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

func (c *Conn) readPump() {
	defer close(c.inbound)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	violations := 0

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("websocket read error: %v", err)
			}
			return
		}

		if c.limiter != nil && !c.limiter.Allow() {
			violations++
			if violations%100 == 1 {
				log.Printf("rate limit exceeded for %s (violation #%d)", c.conn.RemoteAddr(), violations)
			}
			if violations > maxViolations {
				log.Printf("disconnecting %s for excessive rate limit violations", c.conn.RemoteAddr())
				return
			}
			continue
		}

		ev, err := DecodeEvent(data)
		if err != nil {
			log.Printf("skipping undecodable frame from %s: %v", c.conn.RemoteAddr(), err)
			continue
		}

		select {
		case c.inbound <- ev:
		case <-c.done:
			return
		}
	}
}

func (c *Conn) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}
