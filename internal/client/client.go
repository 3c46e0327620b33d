// Package client implements the client side of the synchronization protocol
// without any rendering layer: it mirrors the committed slate, acknowledges
// synchronization requests, and submits local edits tagged with the identity
// assigned by the server.
package client

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/slatelabs/slatesync/internal/event"
	"github.com/slatelabs/slatesync/internal/ws"
)

// outgoingCapacity bounds locally queued payloads awaiting transmission.
const outgoingCapacity = 1000

// Client is one headless protocol participant.
type Client struct {
	url string

	syncResponseDelay     time.Duration
	withholdSyncResponses bool

	seq      event.Sequencer
	outgoing chan event.Payload

	mu       sync.Mutex
	identity *event.Participant
	lines    []event.TextLine

	initOnce    sync.Once
	initialized chan struct{}

	updates chan event.TextLine
}

// Option configures a Client.
type Option func(*Client)

// WithSyncResponseDelay makes the client acknowledge synchronization
// requests only after d, simulating a slow client.
func WithSyncResponseDelay(d time.Duration) Option {
	return func(c *Client) {
		c.syncResponseDelay = d
	}
}

// WithoutSyncResponses makes the client never acknowledge synchronization
// requests, simulating a stalled client.
func WithoutSyncResponses() Option {
	return func(c *Client) {
		c.withholdSyncResponses = true
	}
}

// New creates a client for the websocket endpoint at url. Nothing happens
// until Run is called.
func New(url string, opts ...Option) *Client {
	c := &Client{
		url:         url,
		outgoing:    make(chan event.Payload, outgoingCapacity),
		initialized: make(chan struct{}),
		updates:     make(chan event.TextLine, outgoingCapacity),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run connects and communicates until the connection ends or ctx is
// canceled. The sender and receiver fate-share, mirroring the server side.
func (c *Client) Run(ctx context.Context) error {
	conn, err := ws.Dial(ctx, c.url)
	if err != nil {
		return err
	}
	defer conn.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.sendLoop(ctx, conn) })
	g.Go(func() error { return c.receiveLoop(ctx, conn) })
	return g.Wait()
}

// WaitInitialized blocks until the server's initialization event has been
// applied.
func (c *Client) WaitInitialized(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.initialized:
		return nil
	}
}

// Identity returns the identity assigned by the server, if initialized.
func (c *Client) Identity() (event.Participant, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return event.Participant{}, false
	}
	return *c.identity, true
}

// Line returns the client's current copy of the line with the given id.
func (c *Client) Line(id int) event.TextLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lines[id]
}

// Lines returns an independent snapshot of the client's slate copy.
func (c *Client) Lines() []event.TextLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines := make([]event.TextLine, len(c.lines))
	copy(lines, c.lines)
	return lines
}

// Updates exposes committed lines as they arrive from the server.
func (c *Client) Updates() <-chan event.TextLine {
	return c.updates
}

// Edit submits a new value for line id, tagged with the identity assigned at
// initialization. Edit must not be called before WaitInitialized returns.
func (c *Client) Edit(id int, value string) {
	c.mu.Lock()
	identity := c.identity
	c.mu.Unlock()

	c.outgoing <- event.TextLine{ID: id, Value: value, LastOrigin: identity}
}

// sendLoop confines event creation and transmission to one goroutine,
// keeping sequence numbers in send order.
func (c *Client) sendLoop(ctx context.Context, conn *ws.Conn) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload := <-c.outgoing:
			if err := conn.Send(c.seq.Next(payload)); err != nil {
				return err
			}
		}
	}
}

func (c *Client) receiveLoop(ctx context.Context, conn *ws.Conn) error {
	for {
		ev, err := conn.Receive(ctx)
		if err != nil {
			return err
		}

		switch payload := ev.Payload.(type) {
		case event.Initialization:
			c.mu.Lock()
			identity := payload.Participant
			c.identity = &identity
			c.lines = append([]event.TextLine(nil), payload.Lines...)
			c.mu.Unlock()
			c.initOnce.Do(func() { close(c.initialized) })

		case event.TextLine:
			c.mu.Lock()
			if payload.ID >= 0 && payload.ID < len(c.lines) {
				c.lines[payload.ID] = payload
			}
			c.mu.Unlock()

			select {
			case c.updates <- payload:
			default:
				// The consumer is not draining; the local slate copy above
				// already holds the latest state.
			}

		case event.SyncRequest:
			if c.withholdSyncResponses {
				continue
			}
			if c.syncResponseDelay > 0 {
				timer := time.NewTimer(c.syncResponseDelay)
				select {
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				case <-timer.C:
				}
			}
			select {
			case c.outgoing <- event.SyncResponse{RequestSeq: ev.Seq}:
			case <-ctx.Done():
				return ctx.Err()
			}

		default:
			log.Printf("client received unexpected event %v", ev)
		}
	}
}
