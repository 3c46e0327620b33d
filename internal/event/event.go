package event

import (
	"fmt"
	"sync/atomic"
)

// InvalidSeq is the sentinel below every assigned sequence number. The first
// event from any sender carries sequence number 1.
const InvalidSeq int64 = 0

// Event is one sequenced message. Sequence numbers are strictly
// monotonically increasing per sender, which lets the receiver correlate a
// synchronization response with its request.
type Event struct {
	Seq     int64
	Payload Payload
}

func (e Event) String() string {
	return fmt.Sprintf("Event(#%d, %v)", e.Seq, e.Payload)
}

// Payload is implemented by every event payload kind.
type Payload interface {
	payload()
}

// SyncRequest asks the peer to acknowledge that it has processed all events
// sent so far. It carries no data; the enclosing event's sequence number is
// the correlation id.
type SyncRequest struct{}

// SyncResponse acknowledges the SyncRequest whose sequence number is
// RequestSeq.
type SyncResponse struct {
	RequestSeq int64 `json:"requestSeq"`
}

// Initialization is the single bootstrap payload, sent by the backend as the
// first event of every session. It carries the identity assigned to the
// client and a full snapshot of the slate.
type Initialization struct {
	Participant Participant `json:"participant"`
	Lines       []TextLine  `json:"lines"`
}

// TextLine is one addressable, independently editable line of the slate.
// LastOrigin names the participant whose edit produced the value; nil means
// the backend is the effective author.
type TextLine struct {
	ID         int          `json:"id"`
	Value      string       `json:"value"`
	LastOrigin *Participant `json:"lastOrigin,omitempty"`
}

func (SyncRequest) payload()    {}
func (SyncResponse) payload()   {}
func (Initialization) payload() {}
func (TextLine) payload()       {}

func (SyncRequest) String() string { return "SyncRequest" }

func (r SyncResponse) String() string {
	return fmt.Sprintf("SyncResponse(#%d)", r.RequestSeq)
}

func (i Initialization) String() string {
	return fmt.Sprintf("Initialization(%s, %d lines)", i.Participant, len(i.Lines))
}

func (l TextLine) String() string {
	if l.LastOrigin != nil {
		return fmt.Sprintf("TextLine(%d, %q, %s)", l.ID, l.Value, l.LastOrigin)
	}
	return fmt.Sprintf("TextLine(%d, %q)", l.ID, l.Value)
}

// Sequencer assigns strictly increasing sequence numbers for one logical
// sender, starting at 1.
//
// Next alone does not order concurrent sends. Callers must make event
// creation and transmission one atomic unit, either by wrapping both in a
// mutex or by confining them to a single goroutine.
type Sequencer struct {
	last atomic.Int64
}

// Next returns a new event carrying payload and the next sequence number.
func (s *Sequencer) Next(payload Payload) Event {
	return Event{Seq: s.last.Add(1), Payload: payload}
}
