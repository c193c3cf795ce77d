// Derived views over the message log. Everything in this file is
// recomputed on demand and never persisted, so it cannot drift from the
// log it is computed from. Deleted messages are invisible here.
package domain

import (
	"sort"
	"time"

	"github.com/samber/lo"
)

// UnreadCounts returns, per active participant, the number of visible
// messages newer than their watermark and sent by someone else. Left
// participants are excluded from the view until they rejoin.
func (c *Conversation) UnreadCounts() map[string]int {
	counts := make(map[string]int, len(c.Participants))
	for _, p := range c.ActiveParticipants() {
		watermark := p.Watermark()
		n := 0
		for _, msg := range c.Messages {
			if msg.IsDeleted || msg.Sender.UserID == p.UserID {
				continue
			}
			if msg.CreatedAt.After(watermark) {
				n++
			}
		}
		counts[p.UserID] = n
	}
	return counts
}

// ResponseTime is the mean delay in minutes between adjacent visible
// messages from different senders. Fewer than two distinct-sender pairs
// yields 0.
func (c *Conversation) ResponseTime() float64 {
	visible := c.visibleMessages()
	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].CreatedAt.Before(visible[j].CreatedAt)
	})

	var total float64
	samples := 0
	for i := 1; i < len(visible); i++ {
		if visible[i].Sender.UserID == visible[i-1].Sender.UserID {
			continue
		}
		total += visible[i].CreatedAt.Sub(visible[i-1].CreatedAt).Minutes()
		samples++
	}
	if samples == 0 {
		return 0
	}
	return total / float64(samples)
}

// ParticipantStat summarizes one participant's footprint in the log.
type ParticipantStat struct {
	Messages   int
	LastActive *time.Time
}

func (c *Conversation) ParticipantStats() map[string]ParticipantStat {
	stats := make(map[string]ParticipantStat, len(c.Participants))
	for _, p := range c.Participants {
		stats[p.UserID] = ParticipantStat{}
	}
	for _, msg := range c.visibleMessages() {
		s := stats[msg.Sender.UserID]
		s.Messages++
		if s.LastActive == nil || msg.CreatedAt.After(*s.LastActive) {
			s.LastActive = lo.ToPtr(msg.CreatedAt)
		}
		stats[msg.Sender.UserID] = s
	}
	return stats
}

// HourlyActivity buckets visible messages by UTC hour of day.
func (c *Conversation) HourlyActivity() [24]int {
	var hours [24]int
	for _, msg := range c.visibleMessages() {
		hours[msg.CreatedAt.UTC().Hour()]++
	}
	return hours
}

// Summary is the lightweight projection list views render.
type Summary struct {
	ConversationID     string
	Title              string
	Status             ConversationStatus
	ActiveParticipants int
	LastMessage        *Message
	UnreadCounts       map[string]int
	LastActivityAt     time.Time
}

// Summarize composes the list-view projection. Pure read, no mutation.
func (c *Conversation) Summarize() Summary {
	var last *Message
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if !c.Messages[i].IsDeleted {
			last = lo.ToPtr(c.Messages[i])
			break
		}
	}
	return Summary{
		ConversationID:     c.ID,
		Title:              c.Title,
		Status:             c.Status,
		ActiveParticipants: len(c.ActiveParticipants()),
		LastMessage:        last,
		UnreadCounts:       c.UnreadCounts(),
		LastActivityAt:     c.Lifecycle.LastActivityAt,
	}
}

func (c *Conversation) visibleMessages() []Message {
	return lo.Filter(c.Messages, func(m Message, _ int) bool {
		return !m.IsDeleted
	})
}
