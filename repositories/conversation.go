//go:generate go run go.uber.org/mock/mockgen -source=conversation.go -destination=../mocks/mock_conversation_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"huddle-chat/domain"
	"huddle-chat/errors"
)

type IConversationRepository interface {
	Create(conv *domain.Conversation) error
	Get(id string) (*domain.Conversation, error)
	Save(conv *domain.Conversation) error
	FindByUser(userID string, statuses ...domain.ConversationStatus) ([]*domain.Conversation, error)
}

// ConversationRepository persists whole conversation documents in
// BadgerDB. The aggregate is always read and written as a unit, which is
// what makes the optimistic version check sufficient: two writers racing
// on the same conversation produce one ErrConflict instead of a lost
// update.
type ConversationRepository struct {
	db    *badger.DB
	log   *slog.Logger
	limit *int
}

func NewConversationRepository(db *badger.DB, log *slog.Logger, limit *int) ConversationRepository {
	return ConversationRepository{db: db, log: log, limit: limit}
}

// Key layout:
//   - "conv:{conversationId}" holds the JSON document.
//   - "member:{userId}:{conversationId}" is a membership index whose value
//     is the conversation status, so FindByUser can prefilter on status
//     without unmarshaling every document.
func conversationKey(id string) []byte {
	return []byte(fmt.Sprintf("conv:%s", id))
}

func memberKey(userID, convID string) []byte {
	return []byte(fmt.Sprintf("member:%s:%s", userID, convID))
}

// Create writes a brand-new conversation. A colliding conversationId is a
// validation failure: ids must be globally unique.
func (r ConversationRepository) Create(conv *domain.Conversation) error {
	return r.db.Update(func(txn *badger.Txn) error {
		key := conversationKey(conv.ID)
		if _, err := txn.Get(key); err == nil {
			return errors.Validationf("conversation id %s already exists", conv.ID)
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		conv.Version = 1
		return writeConversation(txn, conv)
	})
}

func (r ConversationRepository) Get(id string) (*domain.Conversation, error) {
	var conv *domain.Conversation
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		conv, err = readConversation(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// Save persists a loaded conversation. The stored version must match the
// version the caller loaded; on mismatch nothing is written and
// ErrConflict is surfaced for the caller to retry with a fresh load.
func (r ConversationRepository) Save(conv *domain.Conversation) error {
	loadedVersion := conv.Version
	err := r.db.Update(func(txn *badger.Txn) error {
		current, err := readConversation(txn, conv.ID)
		if err != nil {
			return err
		}
		if current.Version != loadedVersion {
			return errors.Conflictf("conversation %s is at version %d, caller loaded %d",
				conv.ID, current.Version, loadedVersion)
		}
		conv.Version = loadedVersion + 1
		return writeConversation(txn, conv)
	})
	if err != nil {
		conv.Version = loadedVersion
		return err
	}
	return nil
}

// FindByUser scans the membership index. With statuses given, only
// conversations currently in one of them are returned. Results stop at
// the configured limit when one is set.
func (r ConversationRepository) FindByUser(userID string, statuses ...domain.ConversationStatus) ([]*domain.Conversation, error) {
	wanted := make(map[domain.ConversationStatus]struct{}, len(statuses))
	for _, s := range statuses {
		wanted[s] = struct{}{}
	}

	var found []*domain.Conversation
	err := r.db.View(func(txn *badger.Txn) error {
		prefixStr := fmt.Sprintf("member:%s:", userID)
		prefix := []byte(prefixStr)
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if r.limit != nil && len(found) == *r.limit {
				r.log.Debug(fmt.Sprintf("Maximum of %d conversations reached", *r.limit))
				break
			}
			item := it.Item()

			if len(wanted) > 0 {
				var skip bool
				err := item.Value(func(value []byte) error {
					_, ok := wanted[domain.ConversationStatus(value)]
					skip = !ok
					return nil
				})
				if err != nil {
					return err
				}
				if skip {
					continue
				}
			}

			convID := string(item.Key()[len(prefixStr):])
			conv, err := readConversation(txn, convID)
			if err != nil {
				return err
			}
			found = append(found, conv)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func readConversation(txn *badger.Txn, id string) (*domain.Conversation, error) {
	item, err := txn.Get(conversationKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, errors.NotFoundf("conversation %s", id)
	}
	if err != nil {
		return nil, err
	}
	var conv domain.Conversation
	err = item.Value(func(value []byte) error {
		return json.Unmarshal(value, &conv)
	})
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func writeConversation(txn *badger.Txn, conv *domain.Conversation) error {
	bytes, err := json.Marshal(conv)
	if err != nil {
		return err
	}
	if err := txn.Set(conversationKey(conv.ID), bytes); err != nil {
		return err
	}
	// Membership index covers the full roster, including left users: they
	// still see historical conversations in their list views.
	for _, p := range conv.Participants {
		if err := txn.Set(memberKey(p.UserID, conv.ID), []byte(conv.Status)); err != nil {
			return err
		}
	}
	return nil
}
