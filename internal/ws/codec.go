package ws

import (
	"encoding/json"
	"fmt"

	"github.com/slatelabs/slatesync/internal/event"
)

// Payload kinds on the wire.
const (
	kindSyncRequest    = "sync-request"
	kindSyncResponse   = "sync-response"
	kindInitialization = "initialization"
	kindTextLine       = "text-line"
)

// frame is the wire envelope for one event.
type frame struct {
	Seq     int64           `json:"seq"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// EncodeEvent serializes an event into one wire frame.
func EncodeEvent(ev event.Event) ([]byte, error) {
	var kind string
	switch ev.Payload.(type) {
	case event.SyncRequest:
		kind = kindSyncRequest
	case event.SyncResponse:
		kind = kindSyncResponse
	case event.Initialization:
		kind = kindInitialization
	case event.TextLine:
		kind = kindTextLine
	default:
		return nil, fmt.Errorf("unknown payload type: %T", ev.Payload)
	}

	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(frame{Seq: ev.Seq, Kind: kind, Payload: payload})
}

// DecodeEvent parses one wire frame back into an event.
func DecodeEvent(data []byte) (event.Event, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return event.Event{}, fmt.Errorf("malformed frame: %w", err)
	}

	var payload event.Payload
	switch f.Kind {
	case kindSyncRequest:
		payload = event.SyncRequest{}
	case kindSyncResponse:
		var p event.SyncResponse
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return event.Event{}, fmt.Errorf("malformed %s payload: %w", f.Kind, err)
		}
		payload = p
	case kindInitialization:
		var p event.Initialization
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return event.Event{}, fmt.Errorf("malformed %s payload: %w", f.Kind, err)
		}
		payload = p
	case kindTextLine:
		var p event.TextLine
		if err := json.Unmarshal(f.Payload, &p); err != nil {
			return event.Event{}, fmt.Errorf("malformed %s payload: %w", f.Kind, err)
		}
		payload = p
	default:
		return event.Event{}, fmt.Errorf("unknown payload kind %q", f.Kind)
	}

	return event.Event{Seq: f.Seq, Payload: payload}, nil
}
