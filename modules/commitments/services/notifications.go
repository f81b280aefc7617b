package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/pactline/pactline/modules/commitments/domain/events"
	"github.com/pactline/pactline/pkg/eventbus"
)

// NotificationDispatcher delivers an outbound notification (email, webhook).
// Dispatch is best-effort: a failure is logged and never rolls back the
// state change that produced the event.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, event events.CommitmentEventV1) error
}

// LogDispatcher is the default delivery backend: it writes the outbound
// notification to the log. Real channels plug in behind the same interface.
type LogDispatcher struct {
	log *logrus.Logger
}

func NewLogDispatcher(log *logrus.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Dispatch(_ context.Context, event events.CommitmentEventV1) error {
	d.log.WithFields(logrus.Fields{
		"topic":         events.TopicCommitmentChangedV1,
		"event_id":      event.EventID,
		"commitment_id": event.CommitmentID,
		"change_type":   event.ChangeType,
		"to_status":     event.ToStatus,
		"link":          event.Link,
	}).Info("notification dispatched")
	return nil
}

// RegisterNotificationRelay forwards lifecycle events from the bus to the
// dispatcher, fire-and-forget.
func RegisterNotificationRelay(bus eventbus.EventBus, dispatcher NotificationDispatcher, log *logrus.Logger) {
	bus.Subscribe(func(event events.CommitmentEventV1) {
		if err := dispatcher.Dispatch(context.Background(), event); err != nil {
			log.WithError(err).WithField("event_id", event.EventID).
				Warn("notification dispatch failed")
		}
	})
}
