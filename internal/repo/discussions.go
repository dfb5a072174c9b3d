package repo

import (
	"errors"
	"time"

	"tripdesk/internal/discussions"
	"tripdesk/pkg/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DiscussionRepository is the GORM-backed implementation of the
// discussions store
type DiscussionRepository struct {
	db *gorm.DB
}

// NewDiscussionRepository creates a new discussion repository
func NewDiscussionRepository(db *gorm.DB) *DiscussionRepository {
	return &DiscussionRepository{db: db}
}

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return discussions.ErrNotFound
	}
	return err
}

// CreateDiscussion creates a new discussion
func (r *DiscussionRepository) CreateDiscussion(d *models.Discussion) error {
	return r.db.Create(d).Error
}

// SaveDiscussion updates a discussion
func (r *DiscussionRepository) SaveDiscussion(d *models.Discussion) error {
	return r.db.Save(d).Error
}

// DeleteDiscussion hard-deletes a discussion and its participant rows
func (r *DiscussionRepository) DeleteDiscussion(id uuid.UUID) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("discussion_id = ?", id).Delete(&models.DiscussionParticipant{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Discussion{}, "id = ?", id).Error
	})
}

// GetDiscussion gets a discussion by ID
func (r *DiscussionRepository) GetDiscussion(id uuid.UUID) (*models.Discussion, error) {
	var d models.Discussion
	if err := r.db.Where("id = ?", id).First(&d).Error; err != nil {
		return nil, translateErr(err)
	}
	return &d, nil
}

// DiscussionsByID loads non-archived discussions from the ID set,
// optionally filtered by type
func (r *DiscussionRepository) DiscussionsByID(ids []uuid.UUID, discussionType string) ([]models.Discussion, error) {
	if len(ids) == 0 {
		return []models.Discussion{}, nil
	}
	query := r.db.Where("id IN ? AND archived_at IS NULL", ids)
	if discussionType != "" {
		query = query.Where("type = ?", discussionType)
	}
	var list []models.Discussion
	err := query.Find(&list).Error
	return list, err
}

// CreateParticipant creates a participant row
func (r *DiscussionRepository) CreateParticipant(p *models.DiscussionParticipant) error {
	return r.db.Create(p).Error
}

// SaveParticipant updates a participant row
func (r *DiscussionRepository) SaveParticipant(p *models.DiscussionParticipant) error {
	return r.db.Save(p).Error
}

// ActiveParticipant gets the user's active membership in a discussion
func (r *DiscussionRepository) ActiveParticipant(discussionID, userID uuid.UUID) (*models.DiscussionParticipant, error) {
	var p models.DiscussionParticipant
	err := r.db.
		Where("discussion_id = ? AND user_id = ? AND left_at IS NULL", discussionID, userID).
		First(&p).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &p, nil
}

// ActiveParticipants lists a discussion's active members
func (r *DiscussionRepository) ActiveParticipants(discussionID uuid.UUID) ([]models.DiscussionParticipant, error) {
	var parts []models.DiscussionParticipant
	err := r.db.
		Where("discussion_id = ? AND left_at IS NULL", discussionID).
		Order("joined_at ASC").
		Find(&parts).Error
	return parts, err
}

// ActiveMemberships lists the user's active memberships across discussions
func (r *DiscussionRepository) ActiveMemberships(userID uuid.UUID) ([]models.DiscussionParticipant, error) {
	var parts []models.DiscussionParticipant
	err := r.db.
		Where("user_id = ? AND left_at IS NULL", userID).
		Find(&parts).Error
	return parts, err
}

// MembershipDiscussionIDs lists the discussion IDs where the user has any
// membership row, including soft-left ones
func (r *DiscussionRepository) MembershipDiscussionIDs(userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.Model(&models.DiscussionParticipant{}).
		Where("user_id = ?", userID).
		Distinct().
		Pluck("discussion_id", &ids).Error
	return ids, err
}

// CreateMessage creates a new message
func (r *DiscussionRepository) CreateMessage(m *models.DiscussionMessage) error {
	return r.db.Create(m).Error
}

// SaveMessage updates a message
func (r *DiscussionRepository) SaveMessage(m *models.DiscussionMessage) error {
	return r.db.Save(m).Error
}

// SaveMessageReactions persists the message's reactions only when the row's
// revision still matches; concurrent writers lose and get ErrConflict
func (r *DiscussionRepository) SaveMessageReactions(m *models.DiscussionMessage, expectedRevision int64) error {
	result := r.db.Model(&models.DiscussionMessage{}).
		Where("id = ? AND revision = ?", m.ID, expectedRevision).
		Updates(map[string]interface{}{
			"reactions": m.Reactions,
			"revision":  expectedRevision + 1,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return discussions.ErrConflict
	}
	m.Revision = expectedRevision + 1
	return nil
}

// GetMessage gets a message by ID, including soft-deleted rows
func (r *DiscussionRepository) GetMessage(id uuid.UUID) (*models.DiscussionMessage, error) {
	var m models.DiscussionMessage
	if err := r.db.Where("id = ?", id).First(&m).Error; err != nil {
		return nil, translateErr(err)
	}
	return &m, nil
}

// VisibleMessages lists a discussion's non-deleted messages, newest first
func (r *DiscussionRepository) VisibleMessages(discussionID uuid.UUID, limit, offset int) ([]models.DiscussionMessage, error) {
	var list []models.DiscussionMessage
	err := r.db.
		Where("discussion_id = ? AND deleted_at IS NULL", discussionID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&list).Error
	return list, err
}

// LatestVisibleMessage gets the discussion's most recent non-deleted message
func (r *DiscussionRepository) LatestVisibleMessage(discussionID uuid.UUID) (*models.DiscussionMessage, error) {
	var m models.DiscussionMessage
	err := r.db.
		Where("discussion_id = ? AND deleted_at IS NULL", discussionID).
		Order("created_at DESC").
		First(&m).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &m, nil
}

// RepointMessages moves all messages from one discussion to another
func (r *DiscussionRepository) RepointMessages(fromDiscussionID, toDiscussionID uuid.UUID) (int64, error) {
	result := r.db.Model(&models.DiscussionMessage{}).
		Where("discussion_id = ?", fromDiscussionID).
		Update("discussion_id", toDiscussionID)
	return result.RowsAffected, result.Error
}

// AuthoredDiscussionIDs returns the distinct discussion IDs the user has
// posted visible messages in
func (r *DiscussionRepository) AuthoredDiscussionIDs(userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.Model(&models.DiscussionMessage{}).
		Distinct("discussion_id").
		Where("sender_id = ? AND deleted_at IS NULL", userID).
		Pluck("discussion_id", &ids).Error
	return ids, err
}

// CountMessagesAfter counts visible messages in a discussion posted after
// the given time by anyone but the excluded sender. A nil time counts all.
func (r *DiscussionRepository) CountMessagesAfter(discussionID uuid.UUID, after *time.Time, excludeSender uuid.UUID) (int64, error) {
	query := r.db.Model(&models.DiscussionMessage{}).
		Where("discussion_id = ? AND deleted_at IS NULL AND sender_id <> ?", discussionID, excludeSender)
	if after != nil {
		query = query.Where("created_at > ?", *after)
	}
	var count int64
	err := query.Count(&count).Error
	return count, err
}

// GetUser gets a user by ID
func (r *DiscussionRepository) GetUser(id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := r.db.Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translateErr(err)
	}
	return &u, nil
}

// GetUsers gets users by a set of IDs
func (r *DiscussionRepository) GetUsers(ids []uuid.UUID) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	var users []models.User
	err := r.db.Where("id IN ?", ids).Find(&users).Error
	return users, err
}

// SearchUsersByMentionToken finds active users matching a mention token
func (r *DiscussionRepository) SearchUsersByMentionToken(token string) ([]models.User, error) {
	var users []models.User
	pattern := "%" + token + "%"
	err := r.db.
		Where("is_active = true").
		Where("LOWER(first_name) LIKE LOWER(?) OR LOWER(username) LIKE LOWER(?)", pattern, pattern).
		Limit(50).
		Find(&users).Error
	return users, err
}
