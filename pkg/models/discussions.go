package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Discussion type values, derived from the final participant count
const (
	DiscussionTypePersonal = "personal"
	DiscussionTypeGroup    = "group"
)

// Discussion represents a conversation shell grouping participants and messages
type Discussion struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID  uuid.UUID  `gorm:"type:uuid;not null;index;constraint:OnDelete:RESTRICT" json:"tenant_id"`
	ProgramID *uuid.UUID `gorm:"type:uuid;index;constraint:OnDelete:SET NULL" json:"program_id,omitempty"`
	Type      string     `gorm:"not null;default:'group'" json:"type"` // personal, group
	Title     *string    `json:"title"`
	CreatedBy uuid.UUID  `gorm:"type:uuid;not null" json:"created_by"`

	// Broadcast-style scoping tags
	IsOpen        bool       `gorm:"default:false" json:"is_open"`
	TaggedUserIDs UUIDList   `gorm:"type:jsonb;default:'[]'" json:"tagged_user_ids"`
	TaggedRoles   StringList `gorm:"type:jsonb;default:'[]'" json:"tagged_roles"`

	// Hash of the sorted active-participant set; backs the uniqueness index
	// that prevents duplicate conversations at creation time
	ParticipantHash *string `gorm:"size:64;index" json:"-"`

	LastMessageID *uuid.UUID `gorm:"type:uuid" json:"last_message_id"`
	LastMessageAt *time.Time `json:"last_message_at"`
	ArchivedAt    *time.Time `json:"archived_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// TableName returns the table name for Discussion
func (Discussion) TableName() string {
	return "discussions"
}

// BeforeCreate hook to generate UUID if not set
func (d *Discussion) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// IsActive reports whether the discussion has not been archived
func (d Discussion) IsActive() bool {
	return d.ArchivedAt == nil
}

// DiscussionParticipant represents a user's membership in a discussion,
// including the per-user pin/mute/read state
type DiscussionParticipant struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	DiscussionID      uuid.UUID  `gorm:"type:uuid;not null;index;constraint:OnDelete:RESTRICT" json:"discussion_id"`
	UserID            uuid.UUID  `gorm:"type:uuid;not null;index;constraint:OnDelete:RESTRICT" json:"user_id"`
	JoinedAt          time.Time  `gorm:"not null" json:"joined_at"`
	LeftAt            *time.Time `json:"left_at"`
	LastReadMessageID *uuid.UUID `gorm:"type:uuid" json:"last_read_message_id"`
	LastReadAt        *time.Time `json:"last_read_at"`
	IsPinned          bool       `gorm:"default:false" json:"is_pinned"`
	IsMuted           bool       `gorm:"default:false" json:"is_muted"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// TableName returns the table name for DiscussionParticipant
func (DiscussionParticipant) TableName() string {
	return "discussion_participants"
}

// BeforeCreate hook to generate UUID if not set
func (p *DiscussionParticipant) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// IsActive reports whether the membership has not been soft-left
func (p DiscussionParticipant) IsActive() bool {
	return p.LeftAt == nil
}

// DiscussionMessage represents a single post within a discussion
type DiscussionMessage struct {
	ID              uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID        uuid.UUID    `gorm:"type:uuid;not null;index;constraint:OnDelete:RESTRICT" json:"tenant_id"`
	DiscussionID    uuid.UUID    `gorm:"type:uuid;not null;index;constraint:OnDelete:RESTRICT" json:"discussion_id"`
	SenderID        uuid.UUID    `gorm:"type:uuid;not null" json:"sender_id"`
	Content         string       `gorm:"type:text;not null" json:"content"`
	ParentMessageID *uuid.UUID   `gorm:"type:uuid;constraint:OnDelete:SET NULL" json:"parent_message_id"`
	ReadBy          UUIDList     `gorm:"type:jsonb;default:'[]'" json:"read_by"`
	Reactions       ReactionList `gorm:"type:jsonb;default:'[]'" json:"reactions"`
	Revision        int64        `gorm:"default:0" json:"-"`
	DeletedAt       *time.Time   `json:"deleted_at"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// TableName returns the table name for DiscussionMessage
func (DiscussionMessage) TableName() string {
	return "discussion_messages"
}

// BeforeCreate hook to generate UUID if not set
func (m *DiscussionMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// IsDeleted reports whether the message has been soft-deleted
func (m DiscussionMessage) IsDeleted() bool {
	return m.DeletedAt != nil
}

// Reaction is a single emoji reaction on a message; each (user, emoji) pair
// appears at most once
type Reaction struct {
	Emoji     string    `json:"emoji"`
	UserID    uuid.UUID `json:"user_id"`
	ReactedAt time.Time `json:"reacted_at"`
}

// JSONB custom types for PostgreSQL

type ReactionList []Reaction
type UUIDList []uuid.UUID
type StringList []string

// Implement driver.Valuer interface for JSONB
func (r ReactionList) Value() (driver.Value, error) {
	if r == nil {
		r = ReactionList{}
	}
	return json.Marshal(r)
}

func (r *ReactionList) Scan(value interface{}) error {
	if value == nil {
		*r = ReactionList{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, r)
}

func (u UUIDList) Value() (driver.Value, error) {
	if u == nil {
		u = UUIDList{}
	}
	return json.Marshal(u)
}

func (u *UUIDList) Scan(value interface{}) error {
	if value == nil {
		*u = UUIDList{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, u)
}

func (s StringList) Value() (driver.Value, error) {
	if s == nil {
		s = StringList{}
	}
	return json.Marshal(s)
}

func (s *StringList) Scan(value interface{}) error {
	if value == nil {
		*s = StringList{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return nil
	}

	return json.Unmarshal(bytes, s)
}

// Contains reports whether the list holds the given ID
func (u UUIDList) Contains(id uuid.UUID) bool {
	for _, v := range u {
		if v == id {
			return true
		}
	}
	return false
}
