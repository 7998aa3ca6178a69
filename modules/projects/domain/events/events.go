package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrBadTopic = errors.New("malformed change topic")

// ResourceKind enumerates the entity kinds that carry their own change topic.
// Entities outside this set (sections, sub-tasks, labels, members) surface
// their changes through the nearest ancestor that has one.
type ResourceKind string

const (
	KindWorkspace ResourceKind = "workspace"
	KindProject   ResourceKind = "project"
	KindTask      ResourceKind = "task"
)

func (k ResourceKind) Valid() bool {
	switch k {
	case KindWorkspace, KindProject, KindTask:
		return true
	}
	return false
}

// Resource addresses one subscribable entity.
type Resource struct {
	Kind ResourceKind
	ID   uuid.UUID
}

func NewResource(kind ResourceKind, id uuid.UUID) Resource {
	return Resource{Kind: kind, ID: id}
}

// Topic returns the bus addressing key for the resource.
func (r Resource) Topic() string {
	return fmt.Sprintf("%s/%s", r.Kind, r.ID)
}

func ParseTopic(topic string) (Resource, error) {
	kindStr, idStr, ok := strings.Cut(topic, "/")
	if !ok {
		return Resource{}, fmt.Errorf("%w: %q", ErrBadTopic, topic)
	}
	kind := ResourceKind(kindStr)
	if !kind.Valid() {
		return Resource{}, fmt.Errorf("%w: unknown kind %q", ErrBadTopic, kindStr)
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return Resource{}, fmt.Errorf("%w: %q", ErrBadTopic, topic)
	}
	return Resource{Kind: kind, ID: id}, nil
}

type ChangeKind string

const (
	Changed ChangeKind = "changed"
	Gone    ChangeKind = "gone"
)

// ChangeEvent is one notification about one resource. Events are ephemeral:
// consumed from the bus once and discarded, never persisted.
type ChangeEvent struct {
	Resource   Resource
	Kind       ChangeKind
	OccurredAt time.Time
}

type wireEvent struct {
	Kind       ChangeKind `json:"kind"`
	OccurredAt time.Time  `json:"occurredAt"`
}

// Encode serializes the event body for the bus. The resource itself travels
// as the topic, not in the payload.
func (e ChangeEvent) Encode() ([]byte, error) {
	return json.Marshal(wireEvent{Kind: e.Kind, OccurredAt: e.OccurredAt})
}

func Decode(topic string, payload []byte) (ChangeEvent, error) {
	resource, err := ParseTopic(topic)
	if err != nil {
		return ChangeEvent{}, err
	}
	var w wireEvent
	if err := json.Unmarshal(payload, &w); err != nil {
		return ChangeEvent{}, err
	}
	return ChangeEvent{Resource: resource, Kind: w.Kind, OccurredAt: w.OccurredAt}, nil
}

// Source is implemented by every entity whose mutations produce change
// notifications. AffectedResources returns the topic-bearing resources a
// mutation of the entity touches: the entity itself if its kind has a topic,
// otherwise its nearest topic-bearing ancestors. A sub-task, for example,
// reports its owning task and that task's project.
type Source interface {
	AffectedResources() []Resource
}
