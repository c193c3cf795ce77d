// Package event defines the domain events flushed from a conversation's
// outbox. Events carry plain identifiers only, never aggregate pointers,
// so sinks can be fed from any goroutine without sharing state.
package event

import (
	"time"

	"github.com/google/uuid"
)

type DomainEvent interface {
	ConversationID() string
	OccurredAt() time.Time
}

// MessageAppended is emitted for every successful append, including
// system messages.
type MessageAppended struct {
	Conversation string
	MessageID    uuid.UUID
	SenderID     string
	Preview      string
	Language     string
	At           time.Time
}

func (e MessageAppended) ConversationID() string { return e.Conversation }
func (e MessageAppended) OccurredAt() time.Time  { return e.At }

// MessageModerated is emitted when the censor rewrote the message text.
type MessageModerated struct {
	Conversation  string
	MessageID     uuid.UUID
	SenderID      string
	CensoredWords []string
	At            time.Time
}

func (e MessageModerated) ConversationID() string { return e.Conversation }
func (e MessageModerated) OccurredAt() time.Time  { return e.At }

type ParticipantJoined struct {
	Conversation string
	UserID       string
	Rejoined     bool
	At           time.Time
}

func (e ParticipantJoined) ConversationID() string { return e.Conversation }
func (e ParticipantJoined) OccurredAt() time.Time  { return e.At }

type ParticipantLeft struct {
	Conversation string
	UserID       string
	At           time.Time
}

func (e ParticipantLeft) ConversationID() string { return e.Conversation }
func (e ParticipantLeft) OccurredAt() time.Time  { return e.At }

type ConversationClosed struct {
	Conversation string
	ClosedBy     string
	Resolution   string
	At           time.Time
}

func (e ConversationClosed) ConversationID() string { return e.Conversation }
func (e ConversationClosed) OccurredAt() time.Time  { return e.At }
