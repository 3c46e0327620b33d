package event

import (
	"sync"
	"testing"
)

func TestSequencerStartsAtOne(t *testing.T) {
	var seq Sequencer

	ev := seq.Next(SyncRequest{})
	if ev.Seq != 1 {
		t.Fatalf("Expected first sequence number 1, got %d", ev.Seq)
	}

	for want := int64(2); want <= 5; want++ {
		ev = seq.Next(SyncRequest{})
		if ev.Seq != want {
			t.Errorf("Expected sequence number %d, got %d", want, ev.Seq)
		}
	}
}

func TestSequencerConcurrent(t *testing.T) {
	var seq Sequencer

	const n = 1000
	var mu sync.Mutex
	seen := make(map[int64]bool)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ev := seq.Next(SyncRequest{})
			mu.Lock()
			seen[ev.Seq] = true
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Fatalf("Expected %d distinct sequence numbers, got %d", n, len(seen))
	}
	for i := int64(1); i <= n; i++ {
		if !seen[i] {
			t.Fatalf("Sequence number %d was never assigned", i)
		}
	}
}

func TestParticipantEqualityIgnoresName(t *testing.T) {
	a := Participant{Kind: KindClient, ID: "1", Name: "session #1"}
	b := Participant{Kind: KindClient, ID: "1", Name: "renamed"}
	if !a.Is(b) {
		t.Error("Participants with equal kind and id should match")
	}

	c := Participant{Kind: KindBackend, ID: "1"}
	if a.Is(c) {
		t.Error("Participants with different kinds should not match")
	}

	d := Participant{Kind: KindClient, ID: "2"}
	if a.Is(d) {
		t.Error("Participants with different ids should not match")
	}
}
