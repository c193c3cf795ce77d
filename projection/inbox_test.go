package projection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"huddle-chat/domain"
)

var base = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func summary(id string, activity time.Time, unread map[string]int) domain.Summary {
	return domain.Summary{
		ConversationID:     id,
		Title:              "Job " + id,
		Status:             domain.StatusActive,
		ActiveParticipants: 2,
		UnreadCounts:       unread,
		LastActivityAt:     activity,
	}
}

func Test_BuildInbox_OrdersByRecency(t *testing.T) {
	req := require.New(t)

	rows := BuildInbox([]domain.Summary{
		summary("conv-old", base, nil),
		summary("conv-new", base.Add(2*time.Hour), nil),
		summary("conv-mid", base.Add(time.Hour), nil),
	}, "alice")

	req.Len(rows, 3)
	req.Equal("conv-new", rows[0].ConversationID)
	req.Equal("conv-mid", rows[1].ConversationID)
	req.Equal("conv-old", rows[2].ConversationID)
	req.Equal("2026-03-14 11:00", rows[0].LastActivityAt)
}

func Test_BuildInbox_ResolvesUnreadForTheViewer(t *testing.T) {
	req := require.New(t)

	rows := BuildInbox([]domain.Summary{
		summary("conv-1", base, map[string]int{"alice": 3, "bob": 0}),
	}, "alice")
	req.Equal(3, rows[0].Unread)

	rows = BuildInbox([]domain.Summary{
		summary("conv-1", base, map[string]int{"alice": 3, "bob": 0}),
	}, "carol")
	req.Equal(0, rows[0].Unread)
}

func Test_BuildInbox_PreviewComesFromTheLastMessage(t *testing.T) {
	req := require.New(t)

	withMessage := summary("conv-1", base, nil)
	withMessage.LastMessage = &domain.Message{
		Content: domain.Content{Type: domain.MessageText, Text: "see you at nine"},
	}

	rows := BuildInbox([]domain.Summary{withMessage, summary("conv-2", base.Add(time.Minute), nil)}, "alice")
	req.Equal("", rows[0].LastPreview)
	req.Equal("see you at nine", rows[1].LastPreview)
}

func Test_BuildInbox_DoesNotMutateItsInput(t *testing.T) {
	req := require.New(t)

	input := []domain.Summary{
		summary("conv-old", base, nil),
		summary("conv-new", base.Add(time.Hour), nil),
	}
	BuildInbox(input, "alice")
	req.Equal("conv-old", input[0].ConversationID)
}
