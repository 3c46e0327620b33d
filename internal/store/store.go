package store

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/slatelabs/slatesync/internal/event"
)

// updateQueueCapacity absorbs commit bursts between the commit path and the
// fan-out goroutine. A full queue suspends committers; updates are never
// dropped at the store boundary.
const updateQueueCapacity = 1000

// Config carries the construction parameters of a Store.
type Config struct {
	// Name identifies the store in logs.
	Name string

	// LineCount fixes the slate length. It never changes after construction.
	LineCount int

	// DefectCountdown, when positive, makes the nth rejected commit produce
	// a corrupted value instead of the normal correction. Zero disables the
	// defect injection entirely. Testing hook only.
	DefectCountdown int
}

// Store is the single authority over the slate. All mutations go through
// Commit, and every committed line is fanned out to the registered
// subscriptions by one background goroutine.
type Store struct {
	name string

	// mu serializes commits. It guards the slate, the defect countdown, and
	// the handoff onto updates, so commit order and delivery order coincide.
	mu              sync.Mutex
	slate           []event.TextLine
	defectCountdown int
	defectEnabled   bool

	updates chan event.TextLine

	// subMu guards subs against concurrent fan-out delivery.
	subMu sync.Mutex
	subs  map[*Subscription]struct{}

	stop chan struct{}
	wg   sync.WaitGroup
}

// New creates a store with cfg.LineCount empty lines and starts its fan-out
// goroutine. The store runs until Close is called.
func New(cfg Config) *Store {
	slate := make([]event.TextLine, cfg.LineCount)
	for i := range slate {
		slate[i] = event.TextLine{ID: i}
	}

	s := &Store{
		name:            cfg.Name,
		slate:           slate,
		defectCountdown: cfg.DefectCountdown,
		defectEnabled:   cfg.DefectCountdown > 0,
		updates:         make(chan event.TextLine, updateQueueCapacity),
		subs:            make(map[*Subscription]struct{}),
		stop:            make(chan struct{}),
	}

	s.wg.Add(1)
	go s.fanOut()

	return s
}

// Line returns a copy of the line with the given id.
func (s *Store) Line(id int) event.TextLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slate[id]
}

// Lines returns an independent snapshot of the whole slate.
func (s *Store) Lines() []event.TextLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := make([]event.TextLine, len(s.slate))
	copy(lines, s.slate)
	return lines
}

// LineCount returns the fixed slate length.
func (s *Store) LineCount() int {
	return len(s.slate)
}

func (s *Store) Name() string {
	return s.name
}

// Commit applies candidate to the slate and queues the committed line for
// fan-out, returning what was actually committed.
//
// A candidate whose value ends in "-do" is never committed as submitted: it
// is normalized with "-done" in place of "-do", or corrupted with "-oh-no"
// when the defect countdown expires, and its origin is cleared so the
// backend becomes the effective author. Every other candidate is committed
// unchanged. There is no failure path.
func (s *Store) Commit(candidate event.TextLine) event.TextLine {
	s.mu.Lock()
	defer s.mu.Unlock()

	committed := candidate
	if strings.HasSuffix(candidate.Value, "-do") {
		replacement := "-done"
		if s.defectEnabled {
			s.defectCountdown--
			if s.defectCountdown == 0 {
				log.Printf("%s failing to reject %v", s, candidate)
				replacement = "-oh-no"
			}
		}
		committed = event.TextLine{
			ID:    candidate.ID,
			Value: strings.ReplaceAll(candidate.Value, "-do", replacement),
		}
	}

	s.slate[committed.ID] = committed

	select {
	case s.updates <- committed:
	case <-s.stop:
		// Closing abandons the in-flight notification; the slate entry above
		// is already consistent.
	}

	return committed
}

// Subscribe registers a new subscription observing committed changes. The
// caller must Close it when done.
func (s *Store) Subscribe() *Subscription {
	sub := &Subscription{
		store:   s,
		pending: make(map[int]event.TextLine),
		wake:    make(chan struct{}, 1),
	}
	sub.wake <- struct{}{} // prime: the first batch is produced immediately

	s.subMu.Lock()
	s.subs[sub] = struct{}{}
	s.subMu.Unlock()

	return sub
}

func (s *Store) unsubscribe(sub *Subscription) {
	s.subMu.Lock()
	delete(s.subs, sub)
	s.subMu.Unlock()
}

// fanOut distributes committed lines to every registered subscription until
// the store is closed. Delivery never blocks: subscriptions coalesce.
func (s *Store) fanOut() {
	defer s.wg.Done()

	for {
		select {
		case <-s.stop:
			return
		case line := <-s.updates:
			s.subMu.Lock()
			for sub := range s.subs {
				sub.notify(line)
			}
			s.subMu.Unlock()
		}
	}
}

// Close stops the fan-out goroutine. Lines queued but not yet delivered are
// abandoned.
func (s *Store) Close() {
	close(s.stop)
	s.wg.Wait()
}

func (s *Store) String() string {
	return fmt.Sprintf("Store(%q)", s.name)
}
