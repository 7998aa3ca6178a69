package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/planora/planora/modules/projects/domain/events"
)

type ClientAction string

const (
	ActionSubscribe   ClientAction = "subscribe"
	ActionUnsubscribe ClientAction = "unsubscribe"
)

// ClientMessage is what a connected client may send: subscribe to or
// unsubscribe from one resource.
type ClientMessage struct {
	Action   ClientAction        `json:"action"`
	Resource events.ResourceKind `json:"resource"`
	ID       uuid.UUID           `json:"uuid"`
}

func ParseClientMessage(raw []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return ClientMessage{}, fmt.Errorf("malformed message: %w", err)
	}
	switch msg.Action {
	case ActionSubscribe, ActionUnsubscribe:
	default:
		return ClientMessage{}, fmt.Errorf("unknown action %q", msg.Action)
	}
	if !msg.Resource.Valid() {
		return ClientMessage{}, fmt.Errorf("unknown resource kind %q", msg.Resource)
	}
	if msg.ID == uuid.Nil {
		return ClientMessage{}, fmt.Errorf("missing resource id")
	}
	return msg, nil
}

type ServerKind string

const (
	KindSubscribed ServerKind = "subscribed"
	// KindNotSubscribed acknowledges an unsubscribe, including of a resource
	// that was never subscribed.
	KindNotSubscribed ServerKind = "notSubscribed"
	// KindNotFound rejects a subscribe to a resource that does not exist or
	// that the member cannot see. The two cases are indistinguishable.
	KindNotFound ServerKind = "notFound"
	KindChanged  ServerKind = "changed"
	KindGone     ServerKind = "gone"
)

// ServerMessage is one frame pushed to the client. Content is present only on
// changed frames and carries the resource's full current snapshot.
type ServerMessage struct {
	Kind     ServerKind          `json:"kind"`
	Resource events.ResourceKind `json:"resource"`
	ID       uuid.UUID           `json:"uuid"`
	Content  json.RawMessage     `json:"content,omitempty"`
}

func newServerMessage(kind ServerKind, res events.Resource, content json.RawMessage) ServerMessage {
	return ServerMessage{Kind: kind, Resource: res.Kind, ID: res.ID, Content: content}
}
