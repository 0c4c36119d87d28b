package mq

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	ChannelUsers = "postboard.users"
	ChannelPosts = "postboard.posts"

	EventUserCreated = "user.created"
	EventUserUpdated = "user.updated"
	EventUserDeleted = "user.deleted"
	EventPostCreated = "post.created"
	EventPostUpdated = "post.updated"
	EventPostDeleted = "post.deleted"

	attrEvent = "event"
)

// Event describes a committed change to a user or post.
type Event struct {
	Type       string    `json:"type"`
	ResourceID int       `json:"resource_id"`
	ActorID    int       `json:"actor_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewEvent stamps an event with the current UTC time.
func NewEvent(eventType string, resourceID, actorID int) Event {
	return Event{
		Type:       eventType,
		ResourceID: resourceID,
		ActorID:    actorID,
		OccurredAt: time.Now().UTC(),
	}
}

// DecodeEvent parses a message produced by EventPublisher.
func DecodeEvent(msg Message) (Event, error) {
	var evt Event
	err := json.Unmarshal(msg.Data, &evt)
	return evt, err
}

// EventPublisher publishes domain events on a best-effort basis: failures are
// logged and never returned, since the change they describe is already committed.
type EventPublisher struct {
	mq  *MQ
	log logrus.FieldLogger
}

// NewEventPublisher returns a publisher over m. A nil m yields a publisher
// that drops every event.
func NewEventPublisher(m *MQ, log logrus.FieldLogger) *EventPublisher {
	return &EventPublisher{mq: m, log: log}
}

func (p *EventPublisher) Publish(ctx context.Context, channel string, evt Event) {
	if p == nil || p.mq == nil {
		return
	}
	fields := logrus.Fields{"channel": channel, "event": evt.Type, "resource_id": evt.ResourceID}

	data, err := json.Marshal(evt)
	if err != nil {
		p.log.WithFields(fields).WithError(err).Error("encode event failed")
		return
	}
	id, err := p.mq.Publish(ctx, channel, data, map[string]string{attrEvent: evt.Type})
	if err != nil {
		p.log.WithFields(fields).WithError(err).Warn("publish event failed")
		return
	}
	p.log.WithFields(fields).WithField("message_id", id).Debug("event published")
}
