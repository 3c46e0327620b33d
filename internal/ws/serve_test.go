package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/slatelabs/slatesync/internal/client"
	"github.com/slatelabs/slatesync/internal/event"
	"github.com/slatelabs/slatesync/internal/session"
	"github.com/slatelabs/slatesync/internal/store"
	"github.com/slatelabs/slatesync/internal/ws"
)

func startServer(t *testing.T, lineCount int, syncTimeout time.Duration) (*session.Service, string) {
	t.Helper()

	st := store.New(store.Config{Name: "e2e", LineCount: lineCount})
	t.Cleanup(st.Close)

	svc := session.NewService("e2e", st)
	if syncTimeout > 0 {
		svc.SetSyncTimeout(syncTimeout)
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws.Serve(svc, w, r)
	}))
	t.Cleanup(srv.Close)

	return svc, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func startClient(t *testing.T, url string, opts ...client.Option) *client.Client {
	t.Helper()

	c := client.New(url, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go c.Run(ctx)

	initCtx, initCancel := context.WithTimeout(ctx, 5*time.Second)
	defer initCancel()
	if err := c.WaitInitialized(initCtx); err != nil {
		t.Fatalf("Client initialization failed: %v", err)
	}
	return c
}

func waitForUpdate(t *testing.T, c *client.Client, id int, timeout time.Duration) event.TextLine {
	t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case line := <-c.Updates():
			if line.ID == id {
				return line
			}
		case <-deadline:
			t.Fatalf("No update for line %d within %v", id, timeout)
			return event.TextLine{}
		}
	}
}

func TestRejectedEditPropagatesToAllClients(t *testing.T) {
	svc, url := startServer(t, 10, 0)

	a := startClient(t, url)
	b := startClient(t, url)

	a.Edit(4, "edit-do")

	got := waitForUpdate(t, b, 4, 5*time.Second)
	if got.Value != "edit-done" {
		t.Errorf("Expected normalized value, got %v", got)
	}
	if got.LastOrigin != nil {
		t.Errorf("Expected cleared origin, got %v", got.LastOrigin)
	}

	// the corrected value is fed back to the originator too: the backend is
	// its effective author
	gotA := waitForUpdate(t, a, 4, 5*time.Second)
	if gotA.Value != "edit-done" {
		t.Errorf("Originator expected the corrected value, got %v", gotA)
	}

	if v := svc.Store().Line(4).Value; v != "edit-done" {
		t.Errorf("Slate holds %q, expected %q", v, "edit-done")
	}
}

func TestAcceptedEditIsNotEchoed(t *testing.T) {
	_, url := startServer(t, 10, 0)

	a := startClient(t, url)
	b := startClient(t, url)

	a.Edit(2, "hello")

	got := waitForUpdate(t, b, 2, 5*time.Second)
	if got.Value != "hello" {
		t.Errorf("Expected the submitted value, got %v", got)
	}

	identityA, _ := a.Identity()
	if got.LastOrigin == nil || !got.LastOrigin.Is(identityA) {
		t.Errorf("Expected origin %v, got %v", identityA, got.LastOrigin)
	}

	// the originator must not receive its own accepted edit back
	select {
	case line := <-a.Updates():
		if line.ID == 2 {
			t.Errorf("Originating client received an echo: %v", line)
		}
	case <-time.After(500 * time.Millisecond):
	}
}

func TestSlowClientCoalescesBatches(t *testing.T) {
	svc, url := startServer(t, 10, 0)

	slow := startClient(t, url, client.WithSyncResponseDelay(200*time.Millisecond))

	// commits land faster than the slow client acknowledges; the pending
	// batch coalesces per line and the last value still arrives
	for i := 0; i < 5; i++ {
		svc.Store().Commit(event.TextLine{ID: 7, Value: "v" + string(rune('0'+i))})
	}

	deadline := time.After(5 * time.Second)
	for {
		select {
		case line := <-slow.Updates():
			if line.ID == 7 && line.Value == "v4" {
				return
			}
		case <-deadline:
			t.Fatalf("Slow client never saw the final value, last slate copy: %v", slow.Line(7))
		}
	}
}

func TestStalledClientIsDisconnected(t *testing.T) {
	svc, url := startServer(t, 10, 300*time.Millisecond)

	healthy := startClient(t, url)

	stalled := client.New(url, client.WithoutSyncResponses())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	stalledDone := make(chan error, 1)
	go func() {
		stalledDone <- stalled.Run(ctx)
	}()

	// fan-out to the healthy session keeps working while the stalled
	// session's handshake is pending
	svc.Store().Commit(event.TextLine{ID: 1, Value: "still-flowing"})
	waitForUpdate(t, healthy, 1, 5*time.Second)

	select {
	case err := <-stalledDone:
		if err == nil {
			t.Error("Expected the stalled client's connection to fail")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Stalled session was not terminated")
	}
}
