package discussions

import (
	"errors"
	"fmt"
	"time"

	"tripdesk/pkg/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// SetPinned sets the user's pin flag on the discussion. Pins are per
// participant and never visible to other members.
func (s *Service) SetPinned(discussionID, userID uuid.UUID, pinned bool) error {
	participant, err := s.store.ActiveParticipant(discussionID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotParticipant
		}
		return err
	}

	participant.IsPinned = pinned
	return s.store.SaveParticipant(participant)
}

// SetMuted sets the user's mute flag on the discussion
func (s *Service) SetMuted(discussionID, userID uuid.UUID, muted bool) error {
	participant, err := s.store.ActiveParticipant(discussionID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotParticipant
		}
		return err
	}

	participant.IsMuted = muted
	return s.store.SaveParticipant(participant)
}

// MarkRead advances the user's read pointer to the given message
func (s *Service) MarkRead(discussionID, userID, messageID uuid.UUID) error {
	if messageID == uuid.Nil {
		return fmt.Errorf("%w: message_id is required", ErrValidation)
	}

	participant, err := s.store.ActiveParticipant(discussionID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotParticipant
		}
		return err
	}

	message, err := s.store.GetMessage(messageID)
	if err != nil {
		return err
	}
	if message.DiscussionID != discussionID {
		return ErrNotFound
	}

	now := time.Now()
	participant.LastReadMessageID = &messageID
	participant.LastReadAt = &now
	if err := s.store.SaveParticipant(participant); err != nil {
		return err
	}

	// Also record the reader on the message itself so senders can see
	// delivery state
	if !message.ReadBy.Contains(userID) {
		message.ReadBy = append(message.ReadBy, userID)
		if err := s.store.SaveMessage(message); err != nil {
			log.Warn().Err(err).Str("message_id", messageID.String()).Msg("Failed to record reader on message")
		}
	}
	return nil
}

// Leave withdraws the user from the discussion. The participant row is kept
// with a departure timestamp so message history stays attributable.
func (s *Service) Leave(discussionID, userID uuid.UUID) error {
	participant, err := s.store.ActiveParticipant(discussionID, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotParticipant
		}
		return err
	}

	now := time.Now()
	participant.LeftAt = &now
	if err := s.store.SaveParticipant(participant); err != nil {
		return err
	}

	s.refreshParticipantHash(discussionID)
	return nil
}

// UnreadCount sums, across the user's active non-muted memberships, the
// visible messages posted by others after the user's last-read time.
func (s *Service) UnreadCount(userID uuid.UUID) (int64, error) {
	memberships, err := s.store.ActiveMemberships(userID)
	if err != nil {
		return 0, err
	}

	var total int64
	for _, m := range memberships {
		if m.IsMuted {
			continue
		}
		n, err := s.store.CountMessagesAfter(m.DiscussionID, m.LastReadAt, userID)
		if err != nil {
			log.Warn().Err(err).Str("discussion_id", m.DiscussionID.String()).Msg("Failed to count unread messages")
			continue
		}
		total += n
	}
	return total, nil
}

// CleanupResult reports the outcome of a duplicate-discussion merge run
type CleanupResult struct {
	Merged  int      `json:"merged"`
	Deleted int      `json:"deleted"`
	Errors  []string `json:"errors"`
}

// CleanupDuplicates merges the user's duplicate discussions: discussions
// sharing an identical active-participant set are collapsed into the most
// recently active one. Messages are re-pointed, participant state is
// migrated preserving join dates, and the duplicates are archived.
// Per-duplicate failures are collected and do not abort the run.
func (s *Service) CleanupDuplicates(userID uuid.UUID) (*CleanupResult, error) {
	result := &CleanupResult{Errors: []string{}}

	memberships, err := s.store.ActiveMemberships(userID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.DiscussionID)
	}
	if len(ids) == 0 {
		return result, nil
	}

	discussions, err := s.store.DiscussionsByID(ids, "")
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]models.Discussion)
	for _, d := range discussions {
		parts, err := s.store.ActiveParticipants(d.ID)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("discussion %s: %v", d.ID, err))
			continue
		}
		key := participantSetKey(participantUserIDs(parts))
		groups[key] = append(groups[key], d)
	}

	for _, group := range groups {
		if len(group) < 2 {
			continue
		}

		keep := group[0]
		for _, d := range group[1:] {
			if moreRecentlyActive(d, keep) {
				keep = d
			}
		}

		merged := false
		for _, dup := range group {
			if dup.ID == keep.ID {
				continue
			}
			if err := s.mergeDiscussion(keep.ID, dup); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("merge %s into %s: %v", dup.ID, keep.ID, err))
				continue
			}
			merged = true
			result.Deleted++
		}
		if merged {
			result.Merged++
			s.refreshKeptPointer(keep.ID)
		}
	}

	return result, nil
}

// mergeDiscussion moves the duplicate's messages and participant state onto
// the kept discussion, then archives the duplicate
func (s *Service) mergeDiscussion(keepID uuid.UUID, dup models.Discussion) error {
	moved, err := s.store.RepointMessages(dup.ID, keepID)
	if err != nil {
		return fmt.Errorf("repoint messages: %w", err)
	}
	if moved > 0 {
		log.Info().Int64("messages", moved).
			Str("from", dup.ID.String()).Str("to", keepID.String()).
			Msg("Re-pointed messages from duplicate discussion")
	}

	dupParts, err := s.store.ActiveParticipants(dup.ID)
	if err != nil {
		return fmt.Errorf("load duplicate participants: %w", err)
	}
	for _, p := range dupParts {
		existing, err := s.store.ActiveParticipant(keepID, p.UserID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("check participant %s: %w", p.UserID, err)
		}
		if existing != nil {
			// Keep the earliest join date and the strongest user state
			changed := false
			if p.JoinedAt.Before(existing.JoinedAt) {
				existing.JoinedAt = p.JoinedAt
				changed = true
			}
			if p.IsPinned && !existing.IsPinned {
				existing.IsPinned = true
				changed = true
			}
			if p.IsMuted && !existing.IsMuted {
				existing.IsMuted = true
				changed = true
			}
			if changed {
				if err := s.store.SaveParticipant(existing); err != nil {
					return fmt.Errorf("update participant %s: %w", p.UserID, err)
				}
			}
			continue
		}

		participant := &models.DiscussionParticipant{
			DiscussionID:      keepID,
			UserID:            p.UserID,
			JoinedAt:          p.JoinedAt,
			LastReadMessageID: p.LastReadMessageID,
			LastReadAt:        p.LastReadAt,
			IsPinned:          p.IsPinned,
			IsMuted:           p.IsMuted,
		}
		if err := s.store.CreateParticipant(participant); err != nil {
			return fmt.Errorf("migrate participant %s: %w", p.UserID, err)
		}
	}

	now := time.Now()
	dup.ArchivedAt = &now
	dup.ParticipantHash = nil
	if err := s.store.SaveDiscussion(&dup); err != nil {
		return fmt.Errorf("archive duplicate: %w", err)
	}
	return nil
}

// refreshKeptPointer recomputes the kept discussion's last-message fields
// and participant hash after absorbing a duplicate. Best-effort.
func (s *Service) refreshKeptPointer(keepID uuid.UUID) {
	keep, err := s.store.GetDiscussion(keepID)
	if err != nil {
		log.Warn().Err(err).Str("discussion_id", keepID.String()).Msg("Failed to reload kept discussion")
		return
	}

	latest, err := s.store.LatestVisibleMessage(keepID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		log.Warn().Err(err).Str("discussion_id", keepID.String()).Msg("Failed to find latest message for kept discussion")
	}
	if latest != nil {
		keep.LastMessageID = &latest.ID
		keep.LastMessageAt = &latest.CreatedAt
	}
	if err := s.store.SaveDiscussion(keep); err != nil {
		log.Warn().Err(err).Str("discussion_id", keepID.String()).Msg("Failed to save kept discussion pointer")
	}

	s.refreshParticipantHash(keepID)
}
