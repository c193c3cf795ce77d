// This file defines the Conversation aggregate root. All mutations go
// through its methods so the denormalized metadata always stays a pure
// function of the message log and roster. The aggregate performs no I/O;
// persistence and serialization live in the repositories package.
package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"huddle-chat/domain/event"
	"huddle-chat/errors"
)

type ConversationType string

const (
	TypeDirect         ConversationType = "direct"
	TypeGroup          ConversationType = "group"
	TypeSupport        ConversationType = "support"
	TypeBookingRelated ConversationType = "booking_related"
	TypeQuoteRelated   ConversationType = "quote_related"
)

type ConversationStatus string

const (
	StatusActive    ConversationStatus = "active"
	StatusArchived  ConversationStatus = "archived"
	StatusClosed    ConversationStatus = "closed"
	StatusBlocked   ConversationStatus = "blocked"
	StatusEscalated ConversationStatus = "escalated"
)

// Context holds opaque back-references to booking/quote records. They are
// stored and exposed, never dereferenced by this subsystem.
type Context struct {
	BookingID  string `json:"booking_id,omitempty"`
	QuoteID    string `json:"quote_id,omitempty"`
	ServiceID  string `json:"service_id,omitempty"`
	ProviderID string `json:"provider_id,omitempty"`
}

type LanguageSettings struct {
	Default    string `json:"default,omitempty"`
	AutoDetect bool   `json:"auto_detect"`
}

// Metadata is a denormalized summary of the message log. TotalMessages
// counts every appended message; soft-deletes never shrink it.
type Metadata struct {
	TotalMessages int              `json:"total_messages"`
	LastMessageAt *time.Time       `json:"last_message_at,omitempty"`
	LastMessageBy string           `json:"last_message_by,omitempty"`
	Tags          []string         `json:"tags,omitempty"`
	Priority      Importance       `json:"priority"`
	Language      LanguageSettings `json:"language"`
	CreatedBy     string           `json:"created_by"`
}

type Resolution struct {
	Status   string `json:"status"`
	Notes    string `json:"notes,omitempty"`
	Rating   int    `json:"rating,omitempty"`
	Feedback string `json:"feedback,omitempty"`
}

type Lifecycle struct {
	StartedAt      time.Time   `json:"started_at"`
	LastActivityAt time.Time   `json:"last_activity_at"`
	ClosedAt       *time.Time  `json:"closed_at,omitempty"`
	ArchivedAt     *time.Time  `json:"archived_at,omitempty"`
	Resolution     *Resolution `json:"resolution,omitempty"`
}

type BlockEntry struct {
	UserID    string    `json:"user_id"`
	Reason    string    `json:"reason,omitempty"`
	BlockedAt time.Time `json:"blocked_at"`
}

type ReportEntry struct {
	UserID     string    `json:"user_id"`
	ReportedBy string    `json:"reported_by"`
	Reason     string    `json:"reason,omitempty"`
	ReportedAt time.Time `json:"reported_at"`
}

// Security stores access-control signals. Enforcement happens in the
// caller/gateway, not here.
type Security struct {
	AccessLevel      string        `json:"access_level,omitempty"`
	Encrypted        bool          `json:"encrypted"`
	EncryptionKeyRef string        `json:"encryption_key_ref,omitempty"`
	BlockedUsers     []BlockEntry  `json:"blocked_users,omitempty"`
	ReportedBy       []ReportEntry `json:"reported_by,omitempty"`
}

type Moderation struct {
	Flagged     bool       `json:"flagged"`
	ModeratedBy string     `json:"moderated_by,omitempty"`
	ModeratedAt *time.Time `json:"moderated_at,omitempty"`
	Reason      string     `json:"reason,omitempty"`
}

type Conversation struct {
	ID           string             `json:"id"`
	Type         ConversationType   `json:"type"`
	Title        string             `json:"title,omitempty"`
	Participants []Participant      `json:"participants"`
	Context      Context            `json:"context"`
	Messages     []Message          `json:"messages"`
	Metadata     Metadata           `json:"metadata"`
	Status       ConversationStatus `json:"status"`
	Lifecycle    Lifecycle          `json:"lifecycle"`
	Security     Security           `json:"security"`
	Moderation   Moderation         `json:"moderation"`
	Automation   map[string]string  `json:"automation,omitempty"`
	Integrations map[string]string  `json:"integrations,omitempty"`

	// Version backs the repository's optimistic concurrency check.
	Version uint64 `json:"version"`

	outbox []event.DomainEvent
}

type ParticipantSeed struct {
	UserID      string
	UserType    UserType
	Role        ParticipantRole
	DisplayName string
}

// New creates a conversation with an active status and an empty log.
// Direct conversations between exactly two participants get their title
// derived eagerly from the display names the caller already has.
func New(id string, typ ConversationType, seeds []ParticipantSeed, context Context, createdBy, title string, now time.Time) (*Conversation, error) {
	if id == "" {
		return nil, errors.Validationf("conversation id is required")
	}
	if len(seeds) == 0 {
		return nil, errors.Validationf("conversation %s requires at least one participant", id)
	}
	seen := make(map[string]struct{}, len(seeds))
	for _, s := range seeds {
		if _, ok := seen[s.UserID]; ok {
			return nil, errors.Validationf("participant %s appears twice", s.UserID)
		}
		seen[s.UserID] = struct{}{}
	}

	participants := lo.Map(seeds, func(s ParticipantSeed, _ int) Participant {
		role := s.Role
		if role == "" {
			role = RoleMember
		}
		return Participant{
			UserID:      s.UserID,
			UserType:    s.UserType,
			Role:        role,
			DisplayName: s.DisplayName,
			JoinedAt:    now,
			IsActive:    true,
			Notifications: NotificationSettings{
				Push:  true,
				Email: true,
			},
		}
	})

	if title == "" && typ == TypeDirect && len(seeds) == 2 {
		title = directTitle(seeds)
	}

	return &Conversation{
		ID:           id,
		Type:         typ,
		Title:        title,
		Participants: participants,
		Context:      context,
		Metadata: Metadata{
			Priority:  ImportanceNormal,
			CreatedBy: createdBy,
			Language:  LanguageSettings{AutoDetect: true},
		},
		Status: StatusActive,
		Lifecycle: Lifecycle{
			StartedAt:      now,
			LastActivityAt: now,
		},
	}, nil
}

func directTitle(seeds []ParticipantSeed) string {
	names := lo.FilterMap(seeds, func(s ParticipantSeed, _ int) (string, bool) {
		return s.DisplayName, s.DisplayName != ""
	})
	return strings.Join(names, " & ")
}

// FlushEvents drains the outbox. Events accumulate during aggregate
// operations and are handed to sinks by the service after a save.
func (c *Conversation) FlushEvents() []event.DomainEvent {
	out := c.outbox
	c.outbox = nil
	return out
}

func (c *Conversation) record(e event.DomainEvent) {
	c.outbox = append(c.outbox, e)
}

// MessageDraft carries everything the aggregate needs to append one
// message. Language is the detected ISO code for the original text,
// supplied by the service when auto-detection is on.
type MessageDraft struct {
	Sender     Sender
	Content    Content
	ReplyTo    *uuid.UUID
	Importance Importance
	Tags       []string
	Language   string
}

// AppendMessage appends to the end of the log and updates the metadata
// summary as one unit. The log is append-only: positions are fixed at
// append time and define the canonical order.
//
// A non-active conversation does not reject appends; checking status
// beforehand is caller policy. The service logs a warning in that case.
func (c *Conversation) AppendMessage(draft MessageDraft, now time.Time) (Message, error) {
	text := strings.TrimSpace(draft.Content.Text)
	if utf8.RuneCountInString(text) > MaxTextLength {
		return Message{}, errors.Validationf("message text exceeds %d characters", MaxTextLength)
	}
	if text == "" && len(draft.Content.Attachments) == 0 {
		return Message{}, errors.Validationf("message requires text or attachments")
	}

	msgType := draft.Content.Type
	if msgType == "" {
		msgType = MessageText
	}

	var replyTo *ReplyRef
	if draft.ReplyTo != nil {
		parent := c.findMessage(*draft.ReplyTo)
		if parent == nil {
			return Message{}, errors.NotFoundf("reply target %s not in conversation %s", draft.ReplyTo, c.ID)
		}
		replyTo = &ReplyRef{MessageID: parent.ID, Preview: parent.Preview()}
	}

	importance := draft.Importance
	if importance == "" {
		importance = ImportanceNormal
	}

	msg := Message{
		ID:     uuid.New(),
		Sender: draft.Sender,
		Content: Content{
			Text:        text,
			Type:        msgType,
			Attachments: draft.Content.Attachments,
			Metadata:    draft.Content.Metadata,
		},
		Status: MessageStatus{
			SentAt:   now,
			Delivery: DeliverySending,
		},
		ReplyTo:     replyTo,
		Importance:  importance,
		Tags:        draft.Tags,
		Translation: Translation{OriginalLanguage: draft.Language},
		CreatedAt:   now,
	}

	c.Messages = append(c.Messages, msg)
	c.Metadata.TotalMessages++
	c.Metadata.LastMessageAt = lo.ToPtr(now)
	c.Metadata.LastMessageBy = draft.Sender.UserID
	c.Lifecycle.LastActivityAt = now

	c.record(event.MessageAppended{
		Conversation: c.ID,
		MessageID:    msg.ID,
		SenderID:     draft.Sender.UserID,
		Preview:      msg.Preview(),
		Language:     draft.Language,
		At:           now,
	})
	return msg, nil
}

// MarkMessageRead sets the read timestamp on a single message. Only a
// recipient can mark a message; re-marking an already-read message keeps
// the original timestamp.
func (c *Conversation) MarkMessageRead(userID string, messageID uuid.UUID, now time.Time) error {
	if c.findParticipant(userID) == nil {
		return errors.NotFoundf("user %s is not a participant of %s", userID, c.ID)
	}
	msg := c.findMessage(messageID)
	if msg == nil {
		return errors.NotFoundf("message %s not in conversation %s", messageID, c.ID)
	}
	if msg.Sender.UserID == userID {
		return errors.InvalidOperationf("user %s cannot mark own message %s as read", userID, messageID)
	}
	if msg.Status.ReadAt == nil {
		msg.Status.ReadAt = lo.ToPtr(now)
		msg.Status.Delivery = DeliveryRead
	}
	return nil
}

// MarkAllRead moves the caller's watermark to now and catches up every
// unread message from other senders.
func (c *Conversation) MarkAllRead(userID string, now time.Time) error {
	p := c.findParticipant(userID)
	if p == nil {
		return errors.NotFoundf("user %s is not a participant of %s", userID, c.ID)
	}
	p.LastReadAt = lo.ToPtr(now)
	for i := range c.Messages {
		msg := &c.Messages[i]
		if msg.Sender.UserID == userID || msg.Status.ReadAt != nil {
			continue
		}
		msg.Status.ReadAt = lo.ToPtr(now)
		msg.Status.Delivery = DeliveryRead
	}
	return nil
}

// AddParticipant appends a new active entry, reactivates a historical one,
// or returns the existing active entry unchanged.
func (c *Conversation) AddParticipant(seed ParticipantSeed, now time.Time) Participant {
	if p := c.findParticipant(seed.UserID); p != nil {
		if p.IsActive {
			return *p
		}
		p.LeftAt = nil
		p.IsActive = true
		p.JoinedAt = now
		c.record(event.ParticipantJoined{Conversation: c.ID, UserID: seed.UserID, Rejoined: true, At: now})
		return *p
	}

	role := seed.Role
	if role == "" {
		role = RoleMember
	}
	p := Participant{
		UserID:      seed.UserID,
		UserType:    seed.UserType,
		Role:        role,
		DisplayName: seed.DisplayName,
		JoinedAt:    now,
		IsActive:    true,
		Notifications: NotificationSettings{
			Push:  true,
			Email: true,
		},
	}
	c.Participants = append(c.Participants, p)
	c.record(event.ParticipantJoined{Conversation: c.ID, UserID: seed.UserID, At: now})
	return p
}

// RemoveParticipant transitions active -> left. It reports false when the
// user was never a member or has already left.
func (c *Conversation) RemoveParticipant(userID string, now time.Time) bool {
	p := c.findParticipant(userID)
	if p == nil || !p.IsActive {
		return false
	}
	p.LeftAt = lo.ToPtr(now)
	p.IsActive = false
	c.record(event.ParticipantLeft{Conversation: c.ID, UserID: userID, At: now})
	return true
}

// ActiveParticipants returns the roster entries with isActive and no
// leftAt. Left users are excluded from unread and notification logic.
func (c *Conversation) ActiveParticipants() []Participant {
	return lo.Filter(c.Participants, func(p Participant, _ int) bool {
		return p.IsActive && p.LeftAt == nil
	})
}

// EditMessage records the prior text in the edit history and replaces the
// content. Only the sender may edit.
func (c *Conversation) EditMessage(messageID uuid.UUID, editorID, newText, reason string, now time.Time) error {
	msg := c.findMessage(messageID)
	if msg == nil {
		return errors.NotFoundf("message %s not in conversation %s", messageID, c.ID)
	}
	if msg.Sender.UserID != editorID {
		return errors.InvalidOperationf("user %s is not the sender of %s", editorID, messageID)
	}
	trimmed := strings.TrimSpace(newText)
	if trimmed == "" {
		return errors.Validationf("edited text is empty")
	}
	if utf8.RuneCountInString(trimmed) > MaxTextLength {
		return errors.Validationf("edited text exceeds %d characters", MaxTextLength)
	}
	msg.EditHistory = append(msg.EditHistory, Edit{
		PreviousText: msg.Content.Text,
		Reason:       reason,
		EditedAt:     now,
	})
	msg.Content.Text = trimmed
	msg.IsEdited = true
	return nil
}

// DeleteMessage soft-deletes. The message keeps its position, reactions,
// read timestamps and edit history; it only becomes invisible to derived
// computations. TotalMessages is not decremented.
func (c *Conversation) DeleteMessage(messageID uuid.UUID, deletedBy string, now time.Time) error {
	msg := c.findMessage(messageID)
	if msg == nil {
		return errors.NotFoundf("message %s not in conversation %s", messageID, c.ID)
	}
	if msg.IsDeleted {
		return errors.InvalidOperationf("message %s already deleted", messageID)
	}
	msg.IsDeleted = true
	msg.DeletedAt = lo.ToPtr(now)
	msg.DeletedBy = deletedBy
	return nil
}

// AddReaction appends without dedup: the model allows multiple
// simultaneous reactions per user.
func (c *Conversation) AddReaction(messageID uuid.UUID, userID, emoji string, now time.Time) error {
	msg := c.findMessage(messageID)
	if msg == nil {
		return errors.NotFoundf("message %s not in conversation %s", messageID, c.ID)
	}
	msg.Reactions = append(msg.Reactions, Reaction{UserID: userID, Emoji: emoji, At: now})
	return nil
}

// Close terminates the conversation and records the resolution. A rating
// outside 1..5 is rejected; zero means unrated.
func (c *Conversation) Close(closedBy string, res Resolution, now time.Time) error {
	if c.Status == StatusClosed {
		return errors.InvalidOperationf("conversation %s already closed", c.ID)
	}
	if res.Rating != 0 && (res.Rating < 1 || res.Rating > 5) {
		return errors.Validationf("resolution rating %d out of range 1..5", res.Rating)
	}
	c.Status = StatusClosed
	c.Lifecycle.ClosedAt = lo.ToPtr(now)
	c.Lifecycle.Resolution = &res
	c.record(event.ConversationClosed{Conversation: c.ID, ClosedBy: closedBy, Resolution: res.Status, At: now})
	return nil
}

func (c *Conversation) Archive(now time.Time) error {
	if c.Status == StatusArchived {
		return errors.InvalidOperationf("conversation %s already archived", c.ID)
	}
	c.Status = StatusArchived
	c.Lifecycle.ArchivedAt = lo.ToPtr(now)
	return nil
}

// Reopen returns a closed or archived conversation to active. The
// recorded resolution is kept as history.
func (c *Conversation) Reopen(now time.Time) error {
	if c.Status != StatusClosed && c.Status != StatusArchived {
		return errors.InvalidOperationf("conversation %s is %s, not closed or archived", c.ID, c.Status)
	}
	c.Status = StatusActive
	c.Lifecycle.LastActivityAt = now
	return nil
}

func (c *Conversation) Escalate() {
	c.Status = StatusEscalated
}

// BlockUser appends to the audit list. The user stays on the roster; the
// gateway consults this signal before letting them post or mark reads.
func (c *Conversation) BlockUser(userID, reason string, now time.Time) {
	c.Security.BlockedUsers = append(c.Security.BlockedUsers, BlockEntry{
		UserID:    userID,
		Reason:    reason,
		BlockedAt: now,
	})
}

// IsBlocked reports whether a block entry exists for the user.
func (c *Conversation) IsBlocked(userID string) bool {
	return lo.SomeBy(c.Security.BlockedUsers, func(b BlockEntry) bool {
		return b.UserID == userID
	})
}

// ReportUser appends to the report audit list, independent of blocking.
func (c *Conversation) ReportUser(userID, reporterID, reason string, now time.Time) {
	c.Security.ReportedBy = append(c.Security.ReportedBy, ReportEntry{
		UserID:     userID,
		ReportedBy: reporterID,
		Reason:     reason,
		ReportedAt: now,
	})
}

// Flag sets the moderation gate. The decision logic (auto-flag on
// profanity, manual review) lives in the moderation collaborator.
func (c *Conversation) Flag(moderatorID, reason string, now time.Time) {
	c.Moderation = Moderation{
		Flagged:     true,
		ModeratedBy: moderatorID,
		ModeratedAt: lo.ToPtr(now),
		Reason:      reason,
	}
}

func (c *Conversation) Unflag() {
	c.Moderation = Moderation{}
}

// RecordModeratedMessage emits the audit event for a message whose text
// the censor rewrote before the append.
func (c *Conversation) RecordModeratedMessage(messageID uuid.UUID, senderID string, words []string, now time.Time) {
	c.record(event.MessageModerated{
		Conversation:  c.ID,
		MessageID:     messageID,
		SenderID:      senderID,
		CensoredWords: words,
		At:            now,
	})
}

// MuteNotifications toggles the mute flag the external delivery service
// consults. The aggregate's own logic never reads it.
func (c *Conversation) MuteNotifications(userID string, muted bool) error {
	p := c.findParticipant(userID)
	if p == nil {
		return errors.NotFoundf("user %s is not a participant of %s", userID, c.ID)
	}
	p.Notifications.Muted = muted
	return nil
}

func (c *Conversation) findParticipant(userID string) *Participant {
	for i := range c.Participants {
		if c.Participants[i].UserID == userID {
			return &c.Participants[i]
		}
	}
	return nil
}

func (c *Conversation) findMessage(id uuid.UUID) *Message {
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			return &c.Messages[i]
		}
	}
	return nil
}

func (c *Conversation) String() string {
	return fmt.Sprintf("Conversation(%s, %s, %d participants, %d messages)",
		c.ID, c.Status, len(c.Participants), len(c.Messages))
}
