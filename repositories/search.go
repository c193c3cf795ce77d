//go:generate go run go.uber.org/mock/mockgen -source=search.go -destination=../mocks/mock_search_index.go -package=mocks
package repositories

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/blugelabs/bluge"
	"github.com/blugelabs/bluge/index"

	"huddle-chat/domain"
)

type Hit struct {
	ConversationID string
	Title          string
	Score          float64
}

type ISearchIndex interface {
	Index(conv *domain.Conversation) error
	Flush() error
	SearchPaginated(ctx context.Context, terms, conversationID string, page int) ([]Hit, uint64, error)
}

// SearchIndex maintains one Bluge document per conversation, carrying the
// title and the concatenated visible message text. Re-indexing after each
// save keeps the document in step with the aggregate; deleted messages
// drop out of the index on the next save.
type SearchIndex struct {
	writer   *bluge.Writer
	log      *slog.Logger
	pageSize int

	mu    sync.Mutex
	batch *index.Batch
}

func NewSearchIndex(writer *bluge.Writer, log *slog.Logger, pageSize int) *SearchIndex {
	return &SearchIndex{writer: writer, log: log, pageSize: pageSize}
}

// Index stages the conversation document. Staged documents become
// searchable after Flush.
func (s *SearchIndex) Index(conv *domain.Conversation) error {
	var texts []string
	for _, msg := range conv.Messages {
		if msg.IsDeleted {
			continue
		}
		texts = append(texts, msg.Content.Text)
	}

	doc := bluge.NewDocument(conv.ID).
		AddField(bluge.NewTextField("title", conv.Title).StoreValue()).
		AddField(bluge.NewTextField("text", strings.Join(texts, "\n"))).
		AddField(bluge.NewKeywordField("status", string(conv.Status)).StoreValue())

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.batch == nil {
		s.batch = bluge.NewBatch()
	}
	s.batch.Update(doc.ID(), doc)
	return nil
}

// Flush executes the staged batch against the writer.
func (s *SearchIndex) Flush() error {
	s.mu.Lock()
	batch := s.batch
	s.batch = nil
	s.mu.Unlock()

	if batch == nil {
		return nil
	}
	return s.writer.Batch(batch)
}

// SearchPaginated runs a full-text match over title and message text,
// optionally pinned to a single conversation. It returns the page of hits
// plus the total match count.
func (s *SearchIndex) SearchPaginated(ctx context.Context, terms, conversationID string, page int) ([]Hit, uint64, error) {
	reader, err := s.writer.Reader()
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		_ = reader.Close()
	}()

	textMatch := bluge.NewBooleanQuery().
		AddShould(bluge.NewMatchQuery(terms).SetField("title")).
		AddShould(bluge.NewMatchQuery(terms).SetField("text"))
	textMatch.SetMinShould(1)

	query := bluge.NewBooleanQuery().AddMust(textMatch)
	if conversationID != "" {
		query.AddMust(bluge.NewTermQuery(conversationID).SetField("_id"))
	}

	request := bluge.NewTopNSearch(s.pageSize, query).
		SetFrom(page * s.pageSize).
		WithStandardAggregations()

	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, 0, err
	}

	var hits []Hit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, 0, err
		}
		if match == nil {
			break
		}
		hit := Hit{Score: match.Score}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.ConversationID = string(value)
			case "title":
				hit.Title = string(value)
			}
			return true
		})
		if err != nil {
			return nil, 0, err
		}
		hits = append(hits, hit)
	}

	return hits, iterator.Aggregations().Count(), nil
}
