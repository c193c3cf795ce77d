// Package domain contains the conversation aggregate and its invariants.
// This file defines the Message entity owned by a conversation's log.
// Messages are created only through Conversation.AppendMessage and are
// soft-deleted, never removed.
package domain

import (
	"time"

	"github.com/google/uuid"
)

type MessageType string

const (
	MessageText          MessageType = "text"
	MessageImage         MessageType = "image"
	MessageVideo         MessageType = "video"
	MessageAudio         MessageType = "audio"
	MessageDocument      MessageType = "document"
	MessageLocation      MessageType = "location"
	MessageQuote         MessageType = "quote"
	MessageBookingUpdate MessageType = "booking_update"
	MessageSystem        MessageType = "system"
)

type DeliveryStatus string

const (
	DeliverySending   DeliveryStatus = "sending"
	DeliverySent      DeliveryStatus = "sent"
	DeliveryDelivered DeliveryStatus = "delivered"
	DeliveryRead      DeliveryStatus = "read"
	DeliveryFailed    DeliveryStatus = "failed"
)

type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceNormal Importance = "normal"
	ImportanceHigh   Importance = "high"
	ImportanceUrgent Importance = "urgent"
)

// MaxTextLength bounds message text after trimming.
const MaxTextLength = 5000

// Sender is a denormalized snapshot taken at send time. It is never
// re-fetched from the identity service afterwards.
type Sender struct {
	UserID   string   `json:"user_id"`
	UserType UserType `json:"user_type"`
	Name     string   `json:"name"`
	Avatar   string   `json:"avatar,omitempty"`
}

type Attachment struct {
	ID       uuid.UUID `json:"id"`
	FileName string    `json:"file_name"`
	MimeType string    `json:"mime_type"`
	Size     int64     `json:"size"`
	URL      string    `json:"url,omitempty"`
}

type Content struct {
	Text        string            `json:"text"`
	Type        MessageType       `json:"type"`
	Attachments []Attachment      `json:"attachments,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type MessageStatus struct {
	SentAt      time.Time      `json:"sent_at"`
	DeliveredAt *time.Time     `json:"delivered_at,omitempty"`
	ReadAt      *time.Time     `json:"read_at,omitempty"`
	Delivery    DeliveryStatus `json:"delivery"`
}

// Reaction entries are append-only. The model deliberately allows the
// same user to hold several reactions at once.
type Reaction struct {
	UserID string    `json:"user_id"`
	Emoji  string    `json:"emoji"`
	At     time.Time `json:"at"`
}

type Edit struct {
	PreviousText string    `json:"previous_text"`
	Reason       string    `json:"reason,omitempty"`
	EditedAt     time.Time `json:"edited_at"`
}

// ReplyRef points at an earlier message in the same log. Cross-conversation
// references are not permitted.
type ReplyRef struct {
	MessageID uuid.UUID `json:"message_id"`
	Preview   string    `json:"preview"`
}

type Translation struct {
	OriginalLanguage string            `json:"original_language,omitempty"`
	Variants         map[string]string `json:"variants,omitempty"`
}

type Message struct {
	ID          uuid.UUID     `json:"id"`
	Sender      Sender        `json:"sender"`
	Content     Content       `json:"content"`
	Status      MessageStatus `json:"status"`
	Reactions   []Reaction    `json:"reactions,omitempty"`
	IsEdited    bool          `json:"is_edited"`
	EditHistory []Edit        `json:"edit_history,omitempty"`
	IsDeleted   bool          `json:"is_deleted"`
	DeletedAt   *time.Time    `json:"deleted_at,omitempty"`
	DeletedBy   string        `json:"deleted_by,omitempty"`
	ReplyTo     *ReplyRef     `json:"reply_to,omitempty"`
	Importance  Importance    `json:"importance"`
	Tags        []string      `json:"tags,omitempty"`
	Translation Translation   `json:"translation"`
	CreatedAt   time.Time     `json:"created_at"`
}

// Preview returns a short excerpt used for reply references and list views.
func (m Message) Preview() string {
	const max = 80
	text := m.Content.Text
	if len(text) <= max {
		return text
	}
	return text[:max]
}
