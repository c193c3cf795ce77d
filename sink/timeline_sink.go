package sink

import (
	"context"
	"sync"
	"time"

	"huddle-chat/domain/event"
)

type TimelineEntry struct {
	ConversationID string
	SenderID       string
	Preview        string
	At             time.Time
}

// Timeline holds a simple local timeline of message previews, the shape
// a connected client renders while online.
type Timeline struct {
	Owner string

	mu      sync.Mutex
	entries []TimelineEntry
}

func NewTimeline(owner string) *Timeline {
	return &Timeline{Owner: owner}
}

func (t *Timeline) Consume(_ context.Context, e event.DomainEvent) error {
	appended, ok := e.(event.MessageAppended)
	if !ok {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, TimelineEntry{
		ConversationID: appended.Conversation,
		SenderID:       appended.SenderID,
		Preview:        appended.Preview,
		At:             appended.At,
	})
	return nil
}

func (t *Timeline) Entries() []TimelineEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TimelineEntry, len(t.entries))
	copy(out, t.entries)
	return out
}
