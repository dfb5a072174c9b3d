package discussions

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"tripdesk/pkg/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SendMessageInput carries the user-provided fields of a new message
type SendMessageInput struct {
	Content         string
	ParentMessageID *uuid.UUID
}

// SendMessage posts a message to a discussion the sender participates in.
// Mentioned users who are not yet participants are auto-joined best-effort
// before the insert, and the discussion's last-message pointer is advanced.
func (s *Service) SendMessage(discussionID, senderID uuid.UUID, in SendMessageInput) (*MessageView, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return nil, fmt.Errorf("%w: message content is required", ErrValidation)
	}

	if _, err := s.store.ActiveParticipant(discussionID, senderID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotParticipant
		}
		return nil, err
	}

	discussion, err := s.store.GetDiscussion(discussionID)
	if err != nil {
		return nil, err
	}
	if !discussion.IsActive() {
		return nil, ErrNotFound
	}

	s.autoJoinMentioned(discussion, in.Content, senderID)

	now := time.Now()
	message := &models.DiscussionMessage{
		TenantID:        discussion.TenantID,
		DiscussionID:    discussionID,
		SenderID:        senderID,
		Content:         in.Content,
		ParentMessageID: in.ParentMessageID,
		ReadBy:          models.UUIDList{senderID},
		CreatedAt:       now,
	}
	if err := s.store.CreateMessage(message); err != nil {
		log.Error().Err(err).Str("discussion_id", discussionID.String()).Msg("Failed to create message")
		return nil, err
	}

	discussion.LastMessageID = &message.ID
	discussion.LastMessageAt = &message.CreatedAt
	if err := s.store.SaveDiscussion(discussion); err != nil {
		// The message exists; a stale pointer only affects list ordering
		log.Warn().Err(err).Str("discussion_id", discussionID.String()).Msg("Failed to advance last-message pointer")
	}

	return s.hydrateMessage(*message, true)
}

// autoJoinMentioned adds users mentioned in the message text as
// participants. Failures are logged and never block the send.
func (s *Service) autoJoinMentioned(discussion *models.Discussion, content string, senderID uuid.UUID) {
	mentioned, err := s.FindMentionedUsers(content, senderID)
	if err != nil {
		log.Warn().Err(err).Str("discussion_id", discussion.ID.String()).Msg("Mention resolution failed")
		return
	}
	if len(mentioned) == 0 {
		return
	}

	joined := false
	now := time.Now()
	for _, userID := range mentioned {
		if _, err := s.store.ActiveParticipant(discussion.ID, userID); err == nil {
			continue
		} else if !errors.Is(err, ErrNotFound) {
			log.Warn().Err(err).Str("user_id", userID.String()).Msg("Failed to check mention membership")
			continue
		}

		participant := &models.DiscussionParticipant{
			DiscussionID: discussion.ID,
			UserID:       userID,
			JoinedAt:     now,
		}
		if err := s.store.CreateParticipant(participant); err != nil {
			log.Warn().Err(err).
				Str("discussion_id", discussion.ID.String()).
				Str("user_id", userID.String()).
				Msg("Failed to auto-join mentioned user")
			continue
		}
		joined = true
	}

	if joined {
		s.refreshParticipantHash(discussion.ID)
	}
}

// ListMessages returns a page of the discussion's visible messages, newest
// first, for an active participant.
func (s *Service) ListMessages(discussionID, userID uuid.UUID, limit, offset int) ([]MessageView, error) {
	if _, err := s.store.ActiveParticipant(discussionID, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotParticipant
		}
		return nil, err
	}

	messages, err := s.store.VisibleMessages(discussionID, limit, offset)
	if err != nil {
		log.Error().Err(err).Str("discussion_id", discussionID.String()).Msg("Failed to list messages")
		return nil, err
	}

	views := make([]MessageView, 0, len(messages))
	for _, m := range messages {
		v, err := s.hydrateMessage(m, true)
		if err != nil {
			return nil, err
		}
		views = append(views, *v)
	}
	return views, nil
}

// DeleteMessage soft-deletes the author's own message. Already-deleted
// messages and messages outside the discussion read as not found.
func (s *Service) DeleteMessage(discussionID, messageID, userID uuid.UUID) error {
	message, err := s.store.GetMessage(messageID)
	if err != nil {
		return err
	}
	if message.IsDeleted() || message.DiscussionID != discussionID {
		return ErrNotFound
	}
	if message.SenderID != userID {
		return ErrForbidden
	}

	now := time.Now()
	message.DeletedAt = &now
	if err := s.store.SaveMessage(message); err != nil {
		log.Error().Err(err).Str("message_id", messageID.String()).Msg("Failed to delete message")
		return err
	}

	s.repairLastMessagePointer(discussionID, messageID)
	return nil
}

// repairLastMessagePointer re-points the discussion's last-message fields
// when the deleted message was the latest one. Best-effort.
func (s *Service) repairLastMessagePointer(discussionID, deletedMessageID uuid.UUID) {
	discussion, err := s.store.GetDiscussion(discussionID)
	if err != nil || discussion.LastMessageID == nil || *discussion.LastMessageID != deletedMessageID {
		return
	}

	latest, err := s.store.LatestVisibleMessage(discussionID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		log.Warn().Err(err).Str("discussion_id", discussionID.String()).Msg("Failed to find replacement last message")
		return
	}
	if latest != nil {
		discussion.LastMessageID = &latest.ID
		discussion.LastMessageAt = &latest.CreatedAt
	} else {
		discussion.LastMessageID = nil
		discussion.LastMessageAt = nil
	}
	if err := s.store.SaveDiscussion(discussion); err != nil {
		log.Warn().Err(err).Str("discussion_id", discussionID.String()).Msg("Failed to repair last-message pointer")
	}
}

// ToggleReaction adds the (user, emoji) reaction to the message, or removes
// it when already present. Concurrent toggles are serialized with an
// optimistic revision check and a single retry.
func (s *Service) ToggleReaction(messageID, userID uuid.UUID, emoji string) (*MessageView, error) {
	emoji = strings.TrimSpace(emoji)
	if emoji == "" {
		return nil, fmt.Errorf("%w: emoji is required", ErrValidation)
	}

	for attempt := 0; ; attempt++ {
		message, err := s.store.GetMessage(messageID)
		if err != nil {
			return nil, err
		}
		if message.IsDeleted() {
			return nil, ErrNotFound
		}

		message.Reactions = toggleReaction(message.Reactions, userID, emoji)

		err = s.store.SaveMessageReactions(message, message.Revision)
		if err == nil {
			return s.hydrateMessage(*message, false)
		}
		if errors.Is(err, ErrConflict) && attempt == 0 {
			continue
		}
		log.Error().Err(err).Str("message_id", messageID.String()).Msg("Failed to save reactions")
		return nil, err
	}
}

func toggleReaction(reactions models.ReactionList, userID uuid.UUID, emoji string) models.ReactionList {
	for i, r := range reactions {
		if r.UserID == userID && r.Emoji == emoji {
			return append(reactions[:i:i], reactions[i+1:]...)
		}
	}
	return append(reactions, models.Reaction{
		Emoji:     emoji,
		UserID:    userID,
		ReactedAt: time.Now(),
	})
}
