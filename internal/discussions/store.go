package discussions

import (
	"time"

	"tripdesk/pkg/models"

	"github.com/google/uuid"
)

// Store is the persistence gateway for the discussions subsystem. It is
// injected into the Service so tests can substitute an in-memory double.
// Implementations return ErrNotFound for missing rows and ErrConflict for
// optimistic-concurrency failures; every other error is a store failure.
type Store interface {
	// Discussions
	CreateDiscussion(d *models.Discussion) error
	SaveDiscussion(d *models.Discussion) error
	// DeleteDiscussion hard-deletes a discussion row; used only as the
	// compensation step when participant insertion fails after creation
	DeleteDiscussion(id uuid.UUID) error
	GetDiscussion(id uuid.UUID) (*models.Discussion, error)
	// DiscussionsByID loads non-archived discussions from the ID set,
	// optionally filtered by type
	DiscussionsByID(ids []uuid.UUID, discussionType string) ([]models.Discussion, error)

	// Participants
	CreateParticipant(p *models.DiscussionParticipant) error
	SaveParticipant(p *models.DiscussionParticipant) error
	// ActiveParticipant returns the caller's active membership row, or
	// ErrNotFound when the user never joined or has left
	ActiveParticipant(discussionID, userID uuid.UUID) (*models.DiscussionParticipant, error)
	ActiveParticipants(discussionID uuid.UUID) ([]models.DiscussionParticipant, error)
	ActiveMemberships(userID uuid.UUID) ([]models.DiscussionParticipant, error)
	// MembershipDiscussionIDs returns the discussion IDs where the user has
	// any membership row, left ones included; used to keep the
	// authored-message fallback from resurfacing discussions the user left
	MembershipDiscussionIDs(userID uuid.UUID) ([]uuid.UUID, error)

	// Messages
	CreateMessage(m *models.DiscussionMessage) error
	SaveMessage(m *models.DiscussionMessage) error
	// SaveMessageReactions persists reactions and read-by for the message
	// only if its revision still equals expectedRevision; ErrConflict
	// otherwise
	SaveMessageReactions(m *models.DiscussionMessage, expectedRevision int64) error
	// GetMessage resolves a message by ID including soft-deleted rows
	GetMessage(id uuid.UUID) (*models.DiscussionMessage, error)
	VisibleMessages(discussionID uuid.UUID, limit, offset int) ([]models.DiscussionMessage, error)
	LatestVisibleMessage(discussionID uuid.UUID) (*models.DiscussionMessage, error)
	// RepointMessages moves every message of one discussion to another,
	// returning the number of rows moved; used by duplicate merging
	RepointMessages(fromDiscussionID, toDiscussionID uuid.UUID) (int64, error)
	// AuthoredDiscussionIDs returns the distinct discussion IDs the user
	// has posted in; fallback path for missing membership rows
	AuthoredDiscussionIDs(userID uuid.UUID) ([]uuid.UUID, error)
	CountMessagesAfter(discussionID uuid.UUID, after *time.Time, excludeSender uuid.UUID) (int64, error)

	// Users (read-only from this subsystem's perspective)
	GetUser(id uuid.UUID) (*models.User, error)
	GetUsers(ids []uuid.UUID) ([]models.User, error)
	// SearchUsersByMentionToken returns active users whose first name or
	// username contains the token; the service applies the exact-match rule
	SearchUsersByMentionToken(token string) ([]models.User, error)
}

// ScopeFilter is the role-based visibility policy applied when listing
// discussions. The predicate is an input to this subsystem; the role
// hierarchy itself is owned elsewhere.
type ScopeFilter struct {
	Role       string
	TenantID   *uuid.UUID
	ProgramIDs []uuid.UUID
}

// Role names recognized by the scope filter
const (
	RoleSystemAdmin = "system_admin"
	RoleTenantAdmin = "tenant_admin"
)

// Allows reports whether a discussion is visible under this scope
func (f ScopeFilter) Allows(d models.Discussion) bool {
	switch f.Role {
	case RoleSystemAdmin:
		return true
	case RoleTenantAdmin:
		return f.TenantID != nil && d.TenantID == *f.TenantID
	default:
		// Program-level roles see open discussions plus anything scoped to
		// one of their programs
		if d.IsOpen {
			return f.TenantID != nil && d.TenantID == *f.TenantID
		}
		if d.ProgramID == nil {
			return f.TenantID != nil && d.TenantID == *f.TenantID
		}
		for _, id := range f.ProgramIDs {
			if *d.ProgramID == id {
				return true
			}
		}
		return false
	}
}

// UserSummary is the participant-facing slice of a user row
type UserSummary struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      string    `json:"role"`
	AvatarURL string    `json:"avatar_url,omitempty"`
}

// ParticipantView is a membership row joined to its user display info
type ParticipantView struct {
	models.DiscussionParticipant
	User *UserSummary `json:"user,omitempty"`
}

// MessageView is a message joined to its sender and, for replies, the
// parent message with its own sender
type MessageView struct {
	models.DiscussionMessage
	Sender *UserSummary `json:"sender,omitempty"`
	Parent *MessageView `json:"parent_message,omitempty"`
}

// DiscussionView is the user-facing hydrated conversation: participants,
// last message, the requesting user's pin/mute flags, and for personal
// discussions the one other active participant
type DiscussionView struct {
	models.Discussion
	Participants     []ParticipantView `json:"participants"`
	LastMessage      *MessageView      `json:"last_message,omitempty"`
	OtherParticipant *UserSummary      `json:"other_participant,omitempty"`
	IsPinned         bool              `json:"is_pinned"`
	IsMuted          bool              `json:"is_muted"`
}
