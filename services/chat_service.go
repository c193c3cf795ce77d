//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"huddle-chat/contract"
	"huddle-chat/domain"
	"huddle-chat/domain/event"
	"huddle-chat/domain/search"
	"huddle-chat/errors"
	"huddle-chat/language"
	"huddle-chat/moderation"
	"huddle-chat/repositories"
)

var validate = validator.New()

type ParticipantInput struct {
	UserID      string                 `validate:"required"`
	UserType    domain.UserType        `validate:"required,oneof=customer provider admin"`
	Role        domain.ParticipantRole `validate:"omitempty,oneof=member admin moderator"`
	DisplayName string
}

type CreateConversationCommand struct {
	ConversationID string                  `validate:"required"`
	Type           domain.ConversationType `validate:"required,oneof=direct group support booking_related quote_related"`
	Participants   []ParticipantInput      `validate:"required,min=1,dive"`
	Context        domain.Context
	CreatedBy      string `validate:"required"`
	Title          string
}

type PostMessageCommand struct {
	ConversationID string `validate:"required"`
	Sender         domain.Sender
	Text           string
	Type           domain.MessageType `validate:"omitempty,oneof=text image video audio document location quote booking_update system"`
	ReplyTo        *uuid.UUID
	Importance     domain.Importance `validate:"omitempty,oneof=low normal high urgent"`
	Tags           []string
	Attachments    []AttachmentUpload `validate:"dive"`
}

type IChatService interface {
	CreateConversation(ctx context.Context, cmd CreateConversationCommand) (*domain.Conversation, error)
	PostMessage(ctx context.Context, cmd PostMessageCommand) (domain.Message, error)
	MarkRead(ctx context.Context, conversationID, userID string, messageID *uuid.UUID) error
	Join(ctx context.Context, conversationID string, participant ParticipantInput) (domain.Participant, error)
	Leave(ctx context.Context, conversationID, userID string) (bool, error)
	EditMessage(ctx context.Context, conversationID string, messageID uuid.UUID, editorID, newText, reason string) error
	DeleteMessage(ctx context.Context, conversationID string, messageID uuid.UUID, deletedBy string) error
	AddReaction(ctx context.Context, conversationID string, messageID uuid.UUID, userID, emoji string) error
	Close(ctx context.Context, conversationID, closedBy string, resolution domain.Resolution) error
	Archive(ctx context.Context, conversationID string) error
	BlockUser(ctx context.Context, conversationID, userID, reason string) error
	MuteNotifications(ctx context.Context, conversationID, userID string, muted bool) error
	ReportUser(ctx context.Context, conversationID, userID, reporterID, reason string) error
	UnreadCounts(conversationID string) (map[string]int, error)
	Summary(conversationID string) (domain.Summary, error)
	ResponseTime(conversationID string) (float64, error)
	Inbox(userID string, statuses ...domain.ConversationStatus) ([]domain.Summary, error)
	Search(ctx context.Context, rawQuery string) ([]repositories.Hit, uint64, error)
}

// ChatService is the gateway in front of the conversation aggregate. It
// validates commands, serializes mutations per conversation, enriches
// appends (censor, language, attachment sniffing), persists, re-indexes,
// and hands outbox events to the registered sinks.
type ChatService struct {
	log           *slog.Logger
	conversations repositories.IConversationRepository
	index         repositories.ISearchIndex
	moderator     *moderation.Moderator
	sinkTimeout   time.Duration

	sinksMu sync.Mutex
	sinks   []contract.EventSink

	// One mutex per conversation id: the aggregate is single-writer per
	// conversation, cross-conversation operations stay independent.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewChatService(log *slog.Logger, conversations repositories.IConversationRepository,
	index repositories.ISearchIndex, moderator *moderation.Moderator, sinkTimeout time.Duration) *ChatService {
	return &ChatService{
		log:           log,
		conversations: conversations,
		index:         index,
		moderator:     moderator,
		sinkTimeout:   sinkTimeout,
		locks:         make(map[string]*sync.Mutex),
	}
}

func (s *ChatService) Register(sinks ...contract.EventSink) {
	s.sinksMu.Lock()
	defer s.sinksMu.Unlock()
	s.sinks = append(s.sinks, sinks...)
}

func (s *ChatService) CreateConversation(ctx context.Context, cmd CreateConversationCommand) (*domain.Conversation, error) {
	if err := validate.Struct(cmd); err != nil {
		return nil, errors.Validationf("create conversation: %v", err)
	}

	seeds := lo.Map(cmd.Participants, func(p ParticipantInput, _ int) domain.ParticipantSeed {
		return domain.ParticipantSeed{
			UserID:      p.UserID,
			UserType:    p.UserType,
			Role:        p.Role,
			DisplayName: p.DisplayName,
		}
	})

	conv, err := domain.New(cmd.ConversationID, cmd.Type, seeds, cmd.Context, cmd.CreatedBy, cmd.Title, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	if err := s.conversations.Create(conv); err != nil {
		return nil, err
	}
	if err := s.reindex(conv); err != nil {
		return nil, err
	}
	s.log.Info("Conversation created", "conversation", conv.ID, "type", conv.Type)
	return conv, nil
}

func (s *ChatService) PostMessage(ctx context.Context, cmd PostMessageCommand) (domain.Message, error) {
	if err := validate.Struct(cmd); err != nil {
		return domain.Message{}, errors.Validationf("post message: %v", err)
	}
	if cmd.Sender.UserID == "" {
		return domain.Message{}, errors.Validationf("post message: sender user id is required")
	}

	var posted domain.Message
	err := s.mutate(ctx, cmd.ConversationID, func(conv *domain.Conversation) error {
		if conv.IsBlocked(cmd.Sender.UserID) {
			return errors.InvalidOperationf("user %s is blocked in conversation %s", cmd.Sender.UserID, conv.ID)
		}
		if conv.Status != domain.StatusActive {
			// Appending to a non-active conversation is caller policy,
			// surfaced here as a warning rather than rejected.
			s.log.Warn("Message posted to non-active conversation",
				"conversation", conv.ID, "status", conv.Status, "sender", cmd.Sender.UserID)
		}

		now := time.Now().UTC()
		text := cmd.Text
		var censoredWords []string
		if s.moderator != nil {
			text, censoredWords = s.moderator.Censor(text)
		}

		attachments := buildAttachments(cmd.Attachments)
		msgType := cmd.Type
		if msgType == "" {
			msgType = typeForAttachments(attachments)
		}

		var lang string
		if conv.Metadata.Language.AutoDetect {
			lang = language.Detect(text)
		}

		msg, err := conv.AppendMessage(domain.MessageDraft{
			Sender: cmd.Sender,
			Content: domain.Content{
				Text:        text,
				Type:        msgType,
				Attachments: attachments,
			},
			ReplyTo:    cmd.ReplyTo,
			Importance: cmd.Importance,
			Tags:       cmd.Tags,
			Language:   lang,
		}, now)
		if err != nil {
			return err
		}

		if len(censoredWords) > 0 {
			conv.Flag("moderation-bot", fmt.Sprintf("censored %d word(s)", len(censoredWords)), now)
			conv.RecordModeratedMessage(msg.ID, cmd.Sender.UserID, censoredWords, now)
			s.log.Warn("Message censored",
				"conversation", conv.ID, "sender", cmd.Sender.UserID, "words", len(censoredWords))
		}

		posted = msg
		return nil
	})
	return posted, err
}

// MarkRead with a message id targets that single message; without one it
// is the bulk catch-up that moves the caller's watermark.
func (s *ChatService) MarkRead(ctx context.Context, conversationID, userID string, messageID *uuid.UUID) error {
	return s.mutate(ctx, conversationID, func(conv *domain.Conversation) error {
		if conv.IsBlocked(userID) {
			return errors.InvalidOperationf("user %s is blocked in conversation %s", userID, conv.ID)
		}
		now := time.Now().UTC()
		if messageID != nil {
			return conv.MarkMessageRead(userID, *messageID, now)
		}
		return conv.MarkAllRead(userID, now)
	})
}

func (s *ChatService) Join(ctx context.Context, conversationID string, participant ParticipantInput) (domain.Participant, error) {
	if err := validate.Struct(participant); err != nil {
		return domain.Participant{}, errors.Validationf("join: %v", err)
	}
	var joined domain.Participant
	err := s.mutate(ctx, conversationID, func(conv *domain.Conversation) error {
		joined = conv.AddParticipant(domain.ParticipantSeed{
			UserID:      participant.UserID,
			UserType:    participant.UserType,
			Role:        participant.Role,
			DisplayName: participant.DisplayName,
		}, time.Now().UTC())
		return nil
	})
	return joined, err
}

func (s *ChatService) Leave(ctx context.Context, conversationID, userID string) (bool, error) {
	var left bool
	err := s.mutate(ctx, conversationID, func(conv *domain.Conversation) error {
		left = conv.RemoveParticipant(userID, time.Now().UTC())
		return nil
	})
	return left, err
}

func (s *ChatService) EditMessage(ctx context.Context, conversationID string, messageID uuid.UUID, editorID, newText, reason string) error {
	return s.mutate(ctx, conversationID, func(conv *domain.Conversation) error {
		return conv.EditMessage(messageID, editorID, newText, reason, time.Now().UTC())
	})
}

func (s *ChatService) DeleteMessage(ctx context.Context, conversationID string, messageID uuid.UUID, deletedBy string) error {
	return s.mutate(ctx, conversationID, func(conv *domain.Conversation) error {
		return conv.DeleteMessage(messageID, deletedBy, time.Now().UTC())
	})
}

func (s *ChatService) AddReaction(ctx context.Context, conversationID string, messageID uuid.UUID, userID, emoji string) error {
	return s.mutate(ctx, conversationID, func(conv *domain.Conversation) error {
		return conv.AddReaction(messageID, userID, emoji, time.Now().UTC())
	})
}

func (s *ChatService) Close(ctx context.Context, conversationID, closedBy string, resolution domain.Resolution) error {
	return s.mutate(ctx, conversationID, func(conv *domain.Conversation) error {
		return conv.Close(closedBy, resolution, time.Now().UTC())
	})
}

func (s *ChatService) Archive(ctx context.Context, conversationID string) error {
	return s.mutate(ctx, conversationID, func(conv *domain.Conversation) error {
		return conv.Archive(time.Now().UTC())
	})
}

func (s *ChatService) BlockUser(ctx context.Context, conversationID, userID, reason string) error {
	return s.mutate(ctx, conversationID, func(conv *domain.Conversation) error {
		conv.BlockUser(userID, reason, time.Now().UTC())
		return nil
	})
}

func (s *ChatService) MuteNotifications(ctx context.Context, conversationID, userID string, muted bool) error {
	return s.mutate(ctx, conversationID, func(conv *domain.Conversation) error {
		return conv.MuteNotifications(userID, muted)
	})
}

func (s *ChatService) ReportUser(ctx context.Context, conversationID, userID, reporterID, reason string) error {
	return s.mutate(ctx, conversationID, func(conv *domain.Conversation) error {
		conv.ReportUser(userID, reporterID, reason, time.Now().UTC())
		return nil
	})
}

func (s *ChatService) UnreadCounts(conversationID string) (map[string]int, error) {
	conv, err := s.conversations.Get(conversationID)
	if err != nil {
		return nil, err
	}
	return conv.UnreadCounts(), nil
}

func (s *ChatService) Summary(conversationID string) (domain.Summary, error) {
	conv, err := s.conversations.Get(conversationID)
	if err != nil {
		return domain.Summary{}, err
	}
	return conv.Summarize(), nil
}

func (s *ChatService) ResponseTime(conversationID string) (float64, error) {
	conv, err := s.conversations.Get(conversationID)
	if err != nil {
		return 0, err
	}
	return conv.ResponseTime(), nil
}

func (s *ChatService) Inbox(userID string, statuses ...domain.ConversationStatus) ([]domain.Summary, error) {
	conversations, err := s.conversations.FindByUser(userID, statuses...)
	if err != nil {
		return nil, err
	}
	return lo.Map(conversations, func(c *domain.Conversation, _ int) domain.Summary {
		return c.Summarize()
	}), nil
}

// Search accepts the command-line style raw input users type, for
// example: boiler invoice --conversation bk-1042 --page 1
func (s *ChatService) Search(ctx context.Context, rawQuery string) ([]repositories.Hit, uint64, error) {
	query := search.NewQuery(rawQuery)
	if query.Terms == "" {
		return nil, 0, errors.Validationf("search requires at least one term")
	}
	return s.index.SearchPaginated(ctx, query.Terms, query.ConversationID, query.Page)
}

// mutate serializes the whole load-apply-save-index cycle behind the
// conversation's mutex, then dispatches the flushed outbox events.
func (s *ChatService) mutate(ctx context.Context, conversationID string, apply func(*domain.Conversation) error) error {
	unlock := s.lock(conversationID)
	defer unlock()

	conv, err := s.conversations.Get(conversationID)
	if err != nil {
		return err
	}
	if err := apply(conv); err != nil {
		return err
	}
	if err := s.conversations.Save(conv); err != nil {
		return err
	}
	if err := s.reindex(conv); err != nil {
		return err
	}
	s.dispatch(ctx, conv.FlushEvents())
	return nil
}

func (s *ChatService) reindex(conv *domain.Conversation) error {
	if s.index == nil {
		return nil
	}
	if err := s.index.Index(conv); err != nil {
		return err
	}
	return s.index.Flush()
}

func (s *ChatService) dispatch(ctx context.Context, events []event.DomainEvent) {
	if len(events) == 0 {
		return
	}
	s.sinksMu.Lock()
	sinks := make([]contract.EventSink, len(s.sinks))
	copy(sinks, s.sinks)
	s.sinksMu.Unlock()

	for _, e := range events {
		for _, sink := range sinks {
			sinkCtx, cancel := context.WithTimeout(ctx, s.sinkTimeout)
			if err := sink.Consume(sinkCtx, e); err != nil {
				s.log.Warn("Event sink failed", "conversation", e.ConversationID(), "error", err)
			}
			cancel()
		}
	}
}

func (s *ChatService) lock(conversationID string) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[conversationID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[conversationID] = mu
	}
	s.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}
