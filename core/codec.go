package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// envelope is the JSON shape of an event on external wires (websocket, Redis).
type envelope struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Origin    string          `json:"origin,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// MarshalEvent encodes an event as a JSON envelope.
func MarshalEvent(e Event) ([]byte, error) {
	if e.Payload == nil {
		return nil, fmt.Errorf("marshal event %s: missing payload", e.ID)
	}
	raw, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload of %s: %w", e.Type, err)
	}
	return json.Marshal(envelope{ID: e.ID, Type: e.Payload.EventType(), Origin: e.Origin, Timestamp: e.Timestamp, Payload: raw})
}

// UnmarshalEvent decodes a JSON envelope produced by MarshalEvent (or by an
// external client speaking the same vocabulary). Missing ids and timestamps
// are filled in.
func UnmarshalEvent(data []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	p, err := newPayload(env.Type)
	if err != nil {
		return Event{}, err
	}
	if len(env.Payload) > 0 {
		if err := json.Unmarshal(env.Payload, p); err != nil {
			return Event{}, fmt.Errorf("unmarshal %s payload: %w", env.Type, err)
		}
	}
	ev := Event{ID: env.ID, Type: env.Type, Origin: env.Origin, Timestamp: env.Timestamp, Payload: derefPayload(p)}
	if ev.ID == "" {
		ev.ID = NewID()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	return ev, nil
}

func newPayload(t EventType) (any, error) {
	switch t {
	case EventPresenceUpdate:
		return &PresenceUpdate{}, nil
	case EventCursorUpdate:
		return &CursorUpdate{}, nil
	case EventSelectionUpdate:
		return &SelectionUpdate{}, nil
	case EventDocOp:
		return &DocOp{}, nil
	case EventDocBlockType:
		return &BlockTypeChange{}, nil
	case EventDocBlockAdd:
		return &BlockAdd{}, nil
	case EventBoardStroke:
		return &Stroke{}, nil
	case EventBoardStrokePoint:
		return &StrokePoint{}, nil
	case EventConflictDetected:
		return &Conflict{}, nil
	case EventConflictResolved:
		return &ConflictResolved{}, nil
	case EventConnectionStatus:
		return &ConnectionStatusChange{}, nil
	case EventCommentAdd:
		return &Comment{}, nil
	case EventCommentResolve:
		return &CommentResolve{}, nil
	case EventCommentDelete:
		return &CommentDelete{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, t)
	}
}

func derefPayload(p any) Payload {
	switch v := p.(type) {
	case *PresenceUpdate:
		return *v
	case *CursorUpdate:
		return *v
	case *SelectionUpdate:
		return *v
	case *DocOp:
		return *v
	case *BlockTypeChange:
		return *v
	case *BlockAdd:
		return *v
	case *Stroke:
		return *v
	case *StrokePoint:
		return *v
	case *Conflict:
		return *v
	case *ConflictResolved:
		return *v
	case *ConnectionStatusChange:
		return *v
	case *Comment:
		return *v
	case *CommentResolve:
		return *v
	case *CommentDelete:
		return *v
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler using the envelope format.
func (e Event) MarshalJSON() ([]byte, error) { return MarshalEvent(e) }

// UnmarshalJSON implements json.Unmarshaler using the envelope format.
func (e *Event) UnmarshalJSON(data []byte) error {
	ev, err := UnmarshalEvent(data)
	if err != nil {
		return err
	}
	*e = ev
	return nil
}
