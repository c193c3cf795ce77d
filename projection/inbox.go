// Package projection builds read-side views from conversation summaries.
// It never mutates domain state.
package projection

import (
	"sort"

	"huddle-chat/domain"
)

// Row is one line of a user's conversation list.
type Row struct {
	ConversationID string
	Title          string
	Status         domain.ConversationStatus
	LastPreview    string
	Unread         int
	Participants   int
	LastActivityAt string
}

// BuildInbox orders summaries by recency and resolves the unread count
// for the viewing user.
func BuildInbox(summaries []domain.Summary, userID string) []Row {
	sorted := make([]domain.Summary, len(summaries))
	copy(sorted, summaries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LastActivityAt.After(sorted[j].LastActivityAt)
	})

	rows := make([]Row, 0, len(sorted))
	for _, s := range sorted {
		row := Row{
			ConversationID: s.ConversationID,
			Title:          s.Title,
			Status:         s.Status,
			Unread:         s.UnreadCounts[userID],
			Participants:   s.ActiveParticipants,
			LastActivityAt: s.LastActivityAt.Format("2006-01-02 15:04"),
		}
		if s.LastMessage != nil {
			row.LastPreview = s.LastMessage.Preview()
		}
		rows = append(rows, row)
	}
	return rows
}
