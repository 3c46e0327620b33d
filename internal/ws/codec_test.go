package ws

import (
	"reflect"
	"testing"

	"github.com/slatelabs/slatesync/internal/event"
)

func TestEventRoundTrip(t *testing.T) {
	origin := &event.Participant{Kind: event.KindClient, ID: "7", Name: "session #7"}
	backend := event.Participant{Kind: event.KindBackend, ID: "b1", Name: "backend"}

	events := []event.Event{
		{Seq: 1, Payload: event.Initialization{
			Participant: event.Participant{Kind: event.KindClient, ID: "7"},
			Lines:       []event.TextLine{{ID: 0, Value: "a"}, {ID: 1, Value: "b", LastOrigin: &backend}},
		}},
		{Seq: 2, Payload: event.SyncRequest{}},
		{Seq: 3, Payload: event.SyncResponse{RequestSeq: 2}},
		{Seq: 4, Payload: event.TextLine{ID: 1, Value: "edited", LastOrigin: origin}},
	}

	for _, ev := range events {
		data, err := EncodeEvent(ev)
		if err != nil {
			t.Fatalf("EncodeEvent(%v): %v", ev, err)
		}

		decoded, err := DecodeEvent(data)
		if err != nil {
			t.Fatalf("DecodeEvent(%s): %v", data, err)
		}

		if !reflect.DeepEqual(decoded, ev) {
			t.Errorf("Round trip mismatch: sent %#v, got %#v", ev, decoded)
		}
	}
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	cases := []string{
		`{not json`,
		`{"seq":1,"kind":"no-such-kind","payload":{}}`,
		`{"seq":1,"kind":"sync-response","payload":"nope"}`,
		`{"seq":1,"kind":"text-line","payload":[1,2,3]}`,
	}

	for _, data := range cases {
		if _, err := DecodeEvent([]byte(data)); err == nil {
			t.Errorf("Expected decode error for %s", data)
		}
	}
}
