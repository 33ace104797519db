package events

import (
	"context"
	"time"
)

const (
	ControlsCommitted = "controls.committed"
	RiskCreated       = "risk.created"
	RiskDeleted       = "risk.deleted"
)

// Event defines the contract for all domain events.
type Event interface {
	// EventType returns the dotted event code, e.g. "controls.committed".
	EventType() string

	// Payload returns the data associated with the event.
	Payload() map[string]interface{}

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

// Publisher delivers events to whatever bus is configured.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops events. Used when no bus is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

func NewControlsCommitted(userId string, controlIds, riskIds []string) BaseEvent {
	return BaseEvent{
		Type: ControlsCommitted,
		Data: map[string]interface{}{
			"user_id":     userId,
			"control_ids": controlIds,
			"risk_ids":    riskIds,
		},
		OccurredAt: time.Now().UTC(),
	}
}

func NewRiskCreated(userId, riskId, category string) BaseEvent {
	return BaseEvent{
		Type:       RiskCreated,
		Data:       map[string]interface{}{"user_id": userId, "risk_id": riskId, "category": category},
		OccurredAt: time.Now().UTC(),
	}
}

func NewRiskDeleted(userId, riskId string) BaseEvent {
	return BaseEvent{
		Type:       RiskDeleted,
		Data:       map[string]interface{}{"user_id": userId, "risk_id": riskId},
		OccurredAt: time.Now().UTC(),
	}
}

// Handler processes one event. Returning an error asks for redelivery.
type Handler func(ctx context.Context, event Event) error

// PublisherFunc adapts a handler into a Publisher for in-process delivery.
type PublisherFunc func(ctx context.Context, event Event) error

func (f PublisherFunc) Publish(ctx context.Context, event Event) error { return f(ctx, event) }
