package repositories

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/blugelabs/bluge"
	"github.com/stretchr/testify/require"

	"huddle-chat/domain"
)

func openTestIndex(t *testing.T, pageSize int) *SearchIndex {
	t.Helper()
	writer, err := bluge.OpenWriter(bluge.DefaultConfig(t.TempDir()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = writer.Close() })
	return NewSearchIndex(writer, slog.Default(), pageSize)
}

func indexed(t *testing.T, idx *SearchIndex, id, text string) {
	t.Helper()
	conv := newConversation(t, id, "alice", "bob")
	_, err := conv.AppendMessage(domain.MessageDraft{
		Sender:  domain.Sender{UserID: "alice"},
		Content: domain.Content{Text: text},
	}, at.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, idx.Index(conv))
}

func Test_Search_MatchesMessageText(t *testing.T) {
	req := require.New(t)
	idx := openTestIndex(t, 10)

	indexed(t, idx, "conv-1", "the boiler pilot light went out")
	indexed(t, idx, "conv-2", "quote accepted for garden fencing")
	req.NoError(idx.Flush())

	hits, total, err := idx.SearchPaginated(context.Background(), "boiler", "", 0)
	req.NoError(err)
	req.Equal(uint64(1), total)
	req.Len(hits, 1)
	req.Equal("conv-1", hits[0].ConversationID)
}

func Test_Search_PinnedToConversation(t *testing.T) {
	req := require.New(t)
	idx := openTestIndex(t, 10)

	indexed(t, idx, "conv-1", "invoice for the plumbing repair")
	indexed(t, idx, "conv-2", "invoice for the roof inspection")
	req.NoError(idx.Flush())

	hits, total, err := idx.SearchPaginated(context.Background(), "invoice", "conv-2", 0)
	req.NoError(err)
	req.Equal(uint64(1), total)
	req.Len(hits, 1)
	req.Equal("conv-2", hits[0].ConversationID)
}

func Test_Search_ReindexDropsDeletedMessages(t *testing.T) {
	req := require.New(t)
	idx := openTestIndex(t, 10)

	conv := newConversation(t, "conv-1", "alice", "bob")
	msg, err := conv.AppendMessage(domain.MessageDraft{
		Sender:  domain.Sender{UserID: "alice"},
		Content: domain.Content{Text: "radiator bleeding instructions"},
	}, at.Add(time.Minute))
	req.NoError(err)
	req.NoError(idx.Index(conv))
	req.NoError(idx.Flush())

	req.NoError(conv.DeleteMessage(msg.ID, "alice", at.Add(2*time.Minute)))
	req.NoError(idx.Index(conv))
	req.NoError(idx.Flush())

	_, total, err := idx.SearchPaginated(context.Background(), "radiator", "", 0)
	req.NoError(err)
	req.Equal(uint64(0), total)
}

func Test_Search_Pagination(t *testing.T) {
	req := require.New(t)
	idx := openTestIndex(t, 2)

	indexed(t, idx, "conv-1", "handyman visit scheduled")
	indexed(t, idx, "conv-2", "handyman quote received")
	indexed(t, idx, "conv-3", "handyman cancelled the visit")
	req.NoError(idx.Flush())

	page1, total, err := idx.SearchPaginated(context.Background(), "handyman", "", 0)
	req.NoError(err)
	req.Equal(uint64(3), total)
	req.Len(page1, 2)

	page2, _, err := idx.SearchPaginated(context.Background(), "handyman", "", 1)
	req.NoError(err)
	req.Len(page2, 1)
}
