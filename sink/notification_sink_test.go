package sink

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"huddle-chat/domain"
	"huddle-chat/domain/event"
	"huddle-chat/repositories"
)

var base = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func newRepository(t *testing.T) repositories.ConversationRepository {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repositories.NewConversationRepository(db, slog.Default(), nil)
}

func storedConversation(t *testing.T, repo repositories.ConversationRepository) *domain.Conversation {
	t.Helper()
	conv, err := domain.New("conv-1", domain.TypeGroup, []domain.ParticipantSeed{
		{UserID: "alice", UserType: domain.UserCustomer, DisplayName: "Alice"},
		{UserID: "bob", UserType: domain.UserProvider, DisplayName: "Bob"},
		{UserID: "carol", UserType: domain.UserCustomer, DisplayName: "Carol"},
	}, domain.Context{}, "alice", "Kitchen refit", base)
	require.NoError(t, err)
	require.NoError(t, repo.Create(conv))
	return conv
}

func appended(senderID string) event.MessageAppended {
	return event.MessageAppended{
		Conversation: "conv-1",
		MessageID:    uuid.New(),
		SenderID:     senderID,
		Preview:      "hello there",
		At:           base.Add(time.Minute),
	}
}

func Test_Consume_QueuesForEveryRecipientButTheSender(t *testing.T) {
	req := require.New(t)
	repo := newRepository(t)
	storedConversation(t, repo)

	notifications := NewNotificationSink(repo, slog.Default())
	req.NoError(notifications.Consume(context.Background(), appended("alice")))

	pending := notifications.Drain()
	req.Len(pending, 2)
	recipients := []string{pending[0].UserID, pending[1].UserID}
	req.ElementsMatch([]string{"bob", "carol"}, recipients)
	req.Equal("hello there", pending[0].Preview)

	// Drain resets the queue
	req.Empty(notifications.Drain())
}

func Test_Consume_SkipsMutedAndLeftParticipants(t *testing.T) {
	req := require.New(t)
	repo := newRepository(t)
	conv := storedConversation(t, repo)

	req.NoError(conv.MuteNotifications("bob", true))
	conv.RemoveParticipant("carol", base.Add(time.Second))
	req.NoError(repo.Save(conv))

	notifications := NewNotificationSink(repo, slog.Default())
	req.NoError(notifications.Consume(context.Background(), appended("alice")))
	req.Empty(notifications.Drain())
}

func Test_Consume_IgnoresOtherEventTypes(t *testing.T) {
	req := require.New(t)
	repo := newRepository(t)
	storedConversation(t, repo)

	notifications := NewNotificationSink(repo, slog.Default())
	req.NoError(notifications.Consume(context.Background(), event.ParticipantLeft{
		Conversation: "conv-1",
		UserID:       "carol",
		At:           base,
	}))
	req.Empty(notifications.Drain())
}

func Test_Consume_UnknownConversationFails(t *testing.T) {
	req := require.New(t)
	repo := newRepository(t)

	notifications := NewNotificationSink(repo, slog.Default())
	req.Error(notifications.Consume(context.Background(), appended("alice")))
}
