// This file defines the Participant value object and its membership
// state machine: not-a-member -> active -> left -> active, with the
// left/active cycle repeatable. A userId is never removed from the
// roster once it joined.
package domain

import "time"

type UserType string

const (
	UserCustomer UserType = "customer"
	UserProvider UserType = "provider"
	UserAdmin    UserType = "admin"
)

type ParticipantRole string

const (
	RoleMember    ParticipantRole = "member"
	RoleAdmin     ParticipantRole = "admin"
	RoleModerator ParticipantRole = "moderator"
)

// NotificationSettings is consulted by the external delivery service,
// never by the aggregate's own logic.
type NotificationSettings struct {
	Muted bool `json:"muted"`
	Push  bool `json:"push"`
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
}

type Participant struct {
	UserID      string          `json:"user_id"`
	UserType    UserType        `json:"user_type"`
	Role        ParticipantRole `json:"role"`
	DisplayName string          `json:"display_name,omitempty"`
	JoinedAt    time.Time       `json:"joined_at"`
	LeftAt      *time.Time      `json:"left_at,omitempty"`
	IsActive    bool            `json:"is_active"`

	// LastReadAt is the watermark for unread-count computation. Nil means
	// the participant never caught up; JoinedAt is used instead.
	LastReadAt    *time.Time           `json:"last_read_at,omitempty"`
	Notifications NotificationSettings `json:"notifications"`
}

// Watermark is the cutoff used when counting unread messages.
func (p Participant) Watermark() time.Time {
	if p.LastReadAt != nil {
		return *p.LastReadAt
	}
	return p.JoinedAt
}
