package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"huddle-chat/domain/event"
	"huddle-chat/errors"
)

var base = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

func directConversation(t *testing.T) *Conversation {
	t.Helper()
	conv, err := New("conv-1", TypeDirect, []ParticipantSeed{
		{UserID: "alice", UserType: UserCustomer, DisplayName: "Alice"},
		{UserID: "bob", UserType: UserProvider, DisplayName: "Bob"},
	}, Context{BookingID: "bk-42"}, "alice", "", base)
	require.NoError(t, err)
	return conv
}

func post(t *testing.T, conv *Conversation, sender, text string, at time.Time) Message {
	t.Helper()
	msg, err := conv.AppendMessage(MessageDraft{
		Sender:  Sender{UserID: sender, UserType: UserCustomer, Name: sender},
		Content: Content{Text: text},
	}, at)
	require.NoError(t, err)
	return msg
}

func TestNew_RequiresParticipants(t *testing.T) {
	req := require.New(t)

	_, err := New("conv-1", TypeGroup, nil, Context{}, "alice", "", base)
	req.ErrorIs(err, errors.ErrValidation)
}

func TestNew_RejectsDuplicateParticipant(t *testing.T) {
	req := require.New(t)

	_, err := New("conv-1", TypeGroup, []ParticipantSeed{
		{UserID: "alice", UserType: UserCustomer},
		{UserID: "alice", UserType: UserCustomer},
	}, Context{}, "alice", "", base)
	req.ErrorIs(err, errors.ErrValidation)
}

func TestNew_DirectTitleDerivedEagerly(t *testing.T) {
	req := require.New(t)

	conv := directConversation(t)
	req.Equal("Alice & Bob", conv.Title)
	req.Equal(StatusActive, conv.Status)
	req.Equal(0, conv.Metadata.TotalMessages)
	req.Equal("alice", conv.Metadata.CreatedBy)
	req.Equal(base, conv.Lifecycle.StartedAt)
}

func TestAppendMessage_UpdatesSummaryAtomically(t *testing.T) {
	req := require.New(t)
	conv := directConversation(t)

	first := post(t, conv, "alice", "hello", base.Add(1*time.Minute))
	second := post(t, conv, "bob", "hi there", base.Add(2*time.Minute))

	req.Len(conv.Messages, 2)
	req.Equal(first.ID, conv.Messages[0].ID)
	req.Equal(second.ID, conv.Messages[1].ID)
	req.Equal(2, conv.Metadata.TotalMessages)
	req.Equal("bob", conv.Metadata.LastMessageBy)
	req.Equal(base.Add(2*time.Minute), *conv.Metadata.LastMessageAt)
	req.Equal(base.Add(2*time.Minute), conv.Lifecycle.LastActivityAt)
	req.Equal(DeliverySending, second.Status.Delivery)
}

func TestAppendMessage_TrimsAndBoundsText(t *testing.T) {
	req := require.New(t)
	conv := directConversation(t)

	msg := post(t, conv, "alice", "  padded  ", base)
	req.Equal("padded", msg.Content.Text)

	long := make([]rune, MaxTextLength+1)
	for i := range long {
		long[i] = 'x'
	}
	_, err := conv.AppendMessage(MessageDraft{
		Sender:  Sender{UserID: "alice"},
		Content: Content{Text: string(long)},
	}, base)
	req.ErrorIs(err, errors.ErrValidation)

	_, err = conv.AppendMessage(MessageDraft{
		Sender:  Sender{UserID: "alice"},
		Content: Content{Text: "   "},
	}, base)
	req.ErrorIs(err, errors.ErrValidation)
}

func TestAppendMessage_ReplyMustTargetSameLog(t *testing.T) {
	req := require.New(t)
	conv := directConversation(t)
	parent := post(t, conv, "alice", "original question", base)

	reply, err := conv.AppendMessage(MessageDraft{
		Sender:  Sender{UserID: "bob"},
		Content: Content{Text: "answer"},
		ReplyTo: &parent.ID,
	}, base.Add(time.Minute))
	req.NoError(err)
	req.Equal(parent.ID, reply.ReplyTo.MessageID)
	req.Equal("original question", reply.ReplyTo.Preview)

	unknown := uuid.New()
	_, err = conv.AppendMessage(MessageDraft{
		Sender:  Sender{UserID: "bob"},
		Content: Content{Text: "dangling"},
		ReplyTo: &unknown,
	}, base.Add(time.Minute))
	req.ErrorIs(err, errors.ErrNotFound)
}

func TestMarkMessageRead_IdempotentAndSenderExcluded(t *testing.T) {
	req := require.New(t)
	conv := directConversation(t)
	msg := post(t, conv, "alice", "read me", base)

	// Sender cannot mark their own message
	err := conv.MarkMessageRead("alice", msg.ID, base.Add(time.Minute))
	req.ErrorIs(err, errors.ErrInvalidOperation)

	// First read sets the timestamp
	firstRead := base.Add(2 * time.Minute)
	req.NoError(conv.MarkMessageRead("bob", msg.ID, firstRead))
	req.Equal(firstRead, *conv.Messages[0].Status.ReadAt)
	req.Equal(DeliveryRead, conv.Messages[0].Status.Delivery)

	// Re-marking keeps the original timestamp
	req.NoError(conv.MarkMessageRead("bob", msg.ID, base.Add(time.Hour)))
	req.Equal(firstRead, *conv.Messages[0].Status.ReadAt)

	// Unknown message and non-member are typed failures
	req.ErrorIs(conv.MarkMessageRead("bob", uuid.New(), base), errors.ErrNotFound)
	req.ErrorIs(conv.MarkMessageRead("mallory", msg.ID, base), errors.ErrNotFound)
}

func TestMarkAllRead_BulkCatchUp(t *testing.T) {
	req := require.New(t)
	conv := directConversation(t)
	post(t, conv, "alice", "one", base.Add(1*time.Minute))
	post(t, conv, "alice", "two", base.Add(2*time.Minute))
	own := post(t, conv, "bob", "mine", base.Add(3*time.Minute))

	readAt := base.Add(4 * time.Minute)
	req.NoError(conv.MarkAllRead("bob", readAt))

	req.Equal(readAt, *conv.Messages[0].Status.ReadAt)
	req.Equal(readAt, *conv.Messages[1].Status.ReadAt)
	// Bob's own message stays untouched
	req.Nil(conv.findMessage(own.ID).Status.ReadAt)

	p := conv.findParticipant("bob")
	req.Equal(readAt, *p.LastReadAt)

	req.ErrorIs(conv.MarkAllRead("mallory", readAt), errors.ErrNotFound)
}

func TestParticipant_LeaveRejoinCycle(t *testing.T) {
	req := require.New(t)
	conv := directConversation(t)

	// active -> left
	req.True(conv.RemoveParticipant("bob", base.Add(time.Minute)))
	p := conv.findParticipant("bob")
	req.False(p.IsActive)
	req.NotNil(p.LeftAt)

	// removing again is a silent no-op
	req.False(conv.RemoveParticipant("bob", base.Add(2*time.Minute)))
	req.False(conv.RemoveParticipant("mallory", base.Add(2*time.Minute)))

	// left -> active, joinedAt refreshed, single roster entry
	rejoinAt := base.Add(3 * time.Minute)
	rejoined := conv.AddParticipant(ParticipantSeed{UserID: "bob", UserType: UserProvider}, rejoinAt)
	req.True(rejoined.IsActive)
	req.Nil(rejoined.LeftAt)
	req.Equal(rejoinAt, rejoined.JoinedAt)
	req.Len(conv.Participants, 2)

	// adding an already-active participant returns it unchanged
	again := conv.AddParticipant(ParticipantSeed{UserID: "bob", UserType: UserProvider}, base.Add(time.Hour))
	req.Equal(rejoinAt, again.JoinedAt)
	req.Len(conv.Participants, 2)

	// invariant holds across the cycle
	for _, p := range conv.Participants {
		req.Equal(p.IsActive, p.LeftAt == nil)
	}
	req.Len(conv.ActiveParticipants(), 2)
}

func TestLifecycle_CloseArchiveReopen(t *testing.T) {
	req := require.New(t)
	conv := directConversation(t)

	req.ErrorIs(conv.Close("alice", Resolution{Status: "solved", Rating: 9}, base), errors.ErrValidation)

	req.NoError(conv.Close("alice", Resolution{Status: "solved", Rating: 5, Notes: "fixed the leak"}, base.Add(time.Hour)))
	req.Equal(StatusClosed, conv.Status)
	req.Equal(5, conv.Lifecycle.Resolution.Rating)
	req.ErrorIs(conv.Close("alice", Resolution{}, base), errors.ErrInvalidOperation)

	req.NoError(conv.Reopen(base.Add(2*time.Hour)))
	req.Equal(StatusActive, conv.Status)
	// resolution history survives the reopen
	req.NotNil(conv.Lifecycle.Resolution)

	req.NoError(conv.Archive(base.Add(3*time.Hour)))
	req.Equal(StatusArchived, conv.Status)
	req.NoError(conv.Reopen(base.Add(4 * time.Hour)))
}

func TestSecurity_BlockAndReportAreAppendOnlyAudits(t *testing.T) {
	req := require.New(t)
	conv := directConversation(t)

	conv.BlockUser("bob", "spam", base)
	conv.BlockUser("bob", "spam again", base.Add(time.Minute))
	req.Len(conv.Security.BlockedUsers, 2)
	req.True(conv.IsBlocked("bob"))
	req.False(conv.IsBlocked("alice"))

	// blocking does not touch the roster
	req.Len(conv.Participants, 2)
	req.True(conv.findParticipant("bob").IsActive)

	conv.ReportUser("bob", "alice", "abusive language", base)
	req.Len(conv.Security.ReportedBy, 1)
	req.Equal("alice", conv.Security.ReportedBy[0].ReportedBy)
}

func TestFlushEvents_DrainsOutbox(t *testing.T) {
	req := require.New(t)
	conv := directConversation(t)
	msg := post(t, conv, "alice", "hello", base)

	events := conv.FlushEvents()
	req.Len(events, 1)
	appended, ok := events[0].(event.MessageAppended)
	req.True(ok)
	req.Equal(conv.ID, appended.ConversationID())
	req.Equal(msg.ID, appended.MessageID)

	req.Empty(conv.FlushEvents())
}
