// Package sink contains the in-process consumers fed from conversation
// outbox events after a save.
package sink

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"huddle-chat/domain/event"
	"huddle-chat/repositories"
)

// PendingDelivery is one push/email notification the external delivery
// service still has to send. This subsystem only queues the intent; it
// never delivers anything itself.
type PendingDelivery struct {
	UserID         string
	ConversationID string
	MessageID      uuid.UUID
	Preview        string
	At             time.Time
}

// NotificationSink fans a MessageAppended event out to every active
// recipient whose notification settings allow it. Muted and left
// participants are skipped, as is the sender.
type NotificationSink struct {
	conversations repositories.IConversationRepository
	log           *slog.Logger

	mu      sync.Mutex
	pending []PendingDelivery
}

func NewNotificationSink(conversations repositories.IConversationRepository, log *slog.Logger) *NotificationSink {
	return &NotificationSink{conversations: conversations, log: log}
}

func (n *NotificationSink) Consume(_ context.Context, e event.DomainEvent) error {
	appended, ok := e.(event.MessageAppended)
	if !ok {
		n.log.Debug(fmt.Sprintf("Ignoring event: %T", e))
		return nil
	}

	conv, err := n.conversations.Get(appended.Conversation)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	for _, p := range conv.ActiveParticipants() {
		if p.UserID == appended.SenderID || p.Notifications.Muted {
			continue
		}
		n.pending = append(n.pending, PendingDelivery{
			UserID:         p.UserID,
			ConversationID: appended.Conversation,
			MessageID:      appended.MessageID,
			Preview:        appended.Preview,
			At:             appended.At,
		})
	}
	return nil
}

// Drain hands the queued deliveries to the delivery service and resets
// the queue.
func (n *NotificationSink) Drain() []PendingDelivery {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := n.pending
	n.pending = nil
	return out
}
