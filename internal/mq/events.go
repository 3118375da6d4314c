package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/marvinalivio/p4-backend/types"
)

const (
	attrEventType   = "event_type"
	attrContentType = "content_type"
	jsonContentType = "application/json"
)

// EventPublisher encodes user events as JSON and publishes them on a single
// channel.
type EventPublisher struct {
	mq      *MQ
	channel string
}

func NewEventPublisher(m *MQ, channel string) *EventPublisher {
	return &EventPublisher{mq: m, channel: channel}
}

func (p *EventPublisher) Publish(ctx context.Context, event types.UserEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	attrs := map[string]string{
		attrEventType:   event.Type,
		attrContentType: jsonContentType,
	}
	if _, err := p.mq.Publish(ctx, p.channel, data, attrs); err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

// DecodeEvent parses a message produced by EventPublisher.
func DecodeEvent(msg Message) (types.UserEvent, error) {
	var event types.UserEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		return types.UserEvent{}, fmt.Errorf("decode event %s: %w", msg.ID, err)
	}
	if event.Type == "" {
		event.Type = msg.Attributes[attrEventType]
	}
	if event.Type == "" {
		return types.UserEvent{}, errors.New("event type is missing")
	}
	return event, nil
}
