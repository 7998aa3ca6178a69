package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/planora/planora/modules/projects/domain/events"
	"github.com/planora/planora/pkg/eventbus"
)

// SignalEmitter turns committed mutations into ChangeEvents on the bus.
// Callers invoke it after their transaction commits, never inside one, so a
// notification is only ever sent for state other processes can already read.
//
// One logical mutation emits at most one event per affected resource: the
// affected sets of all sources are merged and de-duplicated before
// publishing.
type SignalEmitter struct {
	bus eventbus.EventBus
	log *logrus.Logger
}

func NewSignalEmitter(bus eventbus.EventBus, log *logrus.Logger) *SignalEmitter {
	return &SignalEmitter{bus: bus, log: log}
}

// EmitChanged publishes a changed event for every distinct resource affected
// by the given sources.
func (e *SignalEmitter) EmitChanged(ctx context.Context, sources ...events.Source) {
	var resources []events.Resource
	for _, src := range sources {
		if src == nil {
			continue
		}
		resources = append(resources, src.AffectedResources()...)
	}
	e.EmitResources(ctx, events.Changed, resources...)
}

// EmitGone publishes a gone event for the resource itself. Ancestors of a
// deleted entity still exist and get changed events via EmitChanged.
func (e *SignalEmitter) EmitGone(ctx context.Context, resources ...events.Resource) {
	e.EmitResources(ctx, events.Gone, resources...)
}

func (e *SignalEmitter) EmitResources(ctx context.Context, kind events.ChangeKind, resources ...events.Resource) {
	seen := make(map[events.Resource]struct{}, len(resources))
	now := time.Now()
	for _, res := range resources {
		if _, dup := seen[res]; dup {
			continue
		}
		seen[res] = struct{}{}

		event := events.ChangeEvent{Resource: res, Kind: kind, OccurredAt: now}
		payload, err := event.Encode()
		if err != nil {
			if e.log != nil {
				e.log.WithError(err).WithField("topic", res.Topic()).
					Error("signals: failed to encode change event")
			}
			continue
		}
		e.bus.Publish(ctx, eventbus.Event{Topic: res.Topic(), Payload: payload})
	}
}
