package store

import (
	"context"
	"sync"

	"github.com/slatelabs/slatesync/internal/event"
)

// Subscription observes committed store changes on behalf of one consumer.
//
// Changes coalesce in a pending batch keyed by line id, so a slow consumer
// never stalls the store's fan-out and never misses the latest state: it
// just sees fewer, larger batches, with later values overwriting earlier
// ones per line before delivery.
type Subscription struct {
	store *Store

	// mu guards pending and the wake send together.
	mu      sync.Mutex
	pending map[int]event.TextLine

	// wake is a conflated single-slot signal: raising it while already
	// raised is a no-op, so it never backs up regardless of update rate.
	wake chan struct{}
}

// notify records line as changed and raises the wake signal. It never
// blocks.
func (sub *Subscription) notify(line event.TextLine) {
	sub.mu.Lock()
	defer sub.mu.Unlock()

	sub.pending[line.ID] = line

	select {
	case sub.wake <- struct{}{}:
	default:
	}
}

// NextBatch blocks until the wake signal is raised, then atomically swaps
// out and returns the pending batch. Order within a batch is not
// significant.
//
// The first call after Subscribe returns immediately, with an empty batch
// if nothing changed since attachment, so a newly attached consumer can
// prime its synchronization.
func (sub *Subscription) NextBatch(ctx context.Context) ([]event.TextLine, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-sub.wake:
	}

	sub.mu.Lock()
	batch := sub.pending
	sub.pending = make(map[int]event.TextLine)
	sub.mu.Unlock()

	lines := make([]event.TextLine, 0, len(batch))
	for _, line := range batch {
		lines = append(lines, line)
	}
	return lines, nil
}

// Close unregisters the subscription from the store. No further changes
// will be recorded afterward.
func (sub *Subscription) Close() {
	sub.store.unsubscribe(sub)
}
