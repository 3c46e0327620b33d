package session

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/slatelabs/slatesync/internal/event"
	"github.com/slatelabs/slatesync/internal/store"
)

// Transport is the ordered, reliable duplex channel a session communicates
// over. Receive returns io.EOF when the peer ends the stream; per-frame
// decoding problems are the adapter's to recover from and never surface
// here.
type Transport interface {
	Receive(ctx context.Context) (event.Event, error)
	Send(ev event.Event) error
}

// Session pairs one store subscription with one transport for the lifetime
// of a client connection. A sender goroutine drains the subscription,
// suppresses echo, and keeps the client in step via the synchronization
// handshake; a receiver goroutine commits inbound edits and resolves
// pending handshakes. The two fate-share.
type Session struct {
	service  *Service
	identity event.Participant

	transport Transport

	seq event.Sequencer
	// sendMu makes event creation and transmission one atomic unit for the
	// whole session, so interleaved emitters never produce out-of-order
	// sequence numbers.
	sendMu sync.Mutex

	syncTimeout time.Duration
	// syncResponses hands an inbound response to the pending handshake via
	// a synchronous handoff. At most one handshake is outstanding at a time.
	syncResponses chan event.SyncResponse
}

// Identity returns the participant identity assigned to this session's
// client.
func (s *Session) Identity() event.Participant {
	return s.identity
}

// Run registers a subscription, initializes the client, and communicates
// until the connection ends, either goroutine fails, or ctx is canceled.
// Whichever of the sender and receiver finishes first cancels the other.
func (s *Session) Run(ctx context.Context) error {
	s.service.register(s)
	defer s.service.unregister(s)

	sub := s.service.store.Subscribe()
	defer sub.Close()

	if _, err := s.send(event.Initialization{
		Participant: s.identity,
		Lines:       s.service.store.Lines(),
	}); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.receive(ctx) })
	g.Go(func() error { return s.broadcast(ctx, sub) })
	return g.Wait()
}

// broadcast sends committed changes to the client, one acknowledged batch at
// a time.
func (s *Session) broadcast(ctx context.Context, sub *store.Subscription) error {
	// Synchronize before sending any updates, so the client starts from a
	// known state.
	if err := s.synchronize(ctx); err != nil {
		return err
	}

	for {
		lines, err := sub.NextBatch(ctx)
		if err != nil {
			return err
		}

		sent := false
		for _, line := range lines {
			if line.LastOrigin != nil && line.LastOrigin.Is(s.identity) {
				// Never feed an update back to its originating client.
				// Another edit of the same line may still be in flight from
				// the client, and echoing the earlier value would overwrite
				// it.
				continue
			}
			if _, err := s.send(line); err != nil {
				return err
			}
			sent = true
		}

		if sent {
			// Synchronize before pulling the next batch. A slow client is
			// never more than one unacknowledged batch behind.
			if err := s.synchronize(ctx); err != nil {
				return err
			}
		}
	}
}

// receive decodes inbound events until the stream ends. Edits addressing a
// valid line are committed to the store and edits addressing any other line
// are dropped; synchronization responses are handed to the waiting
// handshake; anything else is logged and ignored.
func (s *Session) receive(ctx context.Context) error {
	for {
		ev, err := s.transport.Receive(ctx)
		if err != nil {
			return err
		}

		switch payload := ev.Payload.(type) {
		case event.TextLine:
			if payload.ID < 0 || payload.ID >= s.service.store.LineCount() {
				log.Printf("%s submitted an edit for nonexistent line %v", s, payload)
				continue
			}
			s.service.store.Commit(payload)
		case event.SyncResponse:
			select {
			case s.syncResponses <- payload:
			case <-ctx.Done():
				return ctx.Err()
			}
		default:
			log.Printf("%s received unexpected event %v", s, ev)
		}
	}
}

// synchronize performs the flow-control handshake: it sends a
// synchronization request and waits for the client's response. A missing
// response within the timeout is fatal for the session. A response with a
// mismatched correlation id is logged but still resolves the handshake.
func (s *Session) synchronize(ctx context.Context) error {
	request, err := s.send(event.SyncRequest{})
	if err != nil {
		return err
	}

	timer := time.NewTimer(s.syncTimeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%s: no synchronization response within %v", s, s.syncTimeout)
	case response := <-s.syncResponses:
		if response.RequestSeq != request.Seq {
			log.Printf("%s requested synchronization #%d but was acknowledged for #%d",
				s, request.Seq, response.RequestSeq)
		}
		return nil
	}
}

// send allocates the next sequence number and transmits the event, holding
// sendMu across both so sequence numbers match send order.
func (s *Session) send(payload event.Payload) (event.Event, error) {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	ev := s.seq.Next(payload)
	if err := s.transport.Send(ev); err != nil {
		return event.Event{}, err
	}
	return ev, nil
}

func (s *Session) String() string {
	return "Session(" + s.identity.String() + ")"
}
