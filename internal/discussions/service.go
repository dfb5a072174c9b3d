package discussions

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"tripdesk/pkg/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Service implements the discussions subsystem: conversation identity
// resolution, read-time deduplication, mention-driven auto-join, per-user
// pin/mute/read state and duplicate-conversation merging.
type Service struct {
	store Store
}

// NewService creates a new discussions service
func NewService(store Store) *Service {
	return &Service{store: store}
}

// CreateDiscussionInput carries the caller-provided fields for discussion
// creation. The requested Type is advisory; the actual type is derived from
// the final participant count.
type CreateDiscussionInput struct {
	Type           string
	Title          *string
	ParticipantIDs []uuid.UUID
	TenantID       uuid.UUID
	ProgramID      *uuid.UUID
	IsOpen         bool
	TaggedUserIDs  []uuid.UUID
	TaggedRoles    []string
}

// CreateDiscussion creates a discussion with the given participants, or
// returns the existing one when an active discussion with the identical
// participant set already exists. The second return value reports whether a
// new row was inserted.
func (s *Service) CreateDiscussion(creatorID uuid.UUID, in CreateDiscussionInput) (*DiscussionView, bool, error) {
	if len(in.ParticipantIDs) == 0 {
		return nil, false, fmt.Errorf("%w: at least one participant is required", ErrValidation)
	}

	participantIDs := foldParticipantSet(creatorID, in.ParticipantIDs)

	existing, err := s.FindExistingDiscussion(creatorID, in.ParticipantIDs, in.Type)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	discussionType := deriveType(len(participantIDs))
	hash := participantSetHash(participantIDs)
	now := time.Now()

	discussion := &models.Discussion{
		TenantID:        in.TenantID,
		ProgramID:       in.ProgramID,
		Type:            discussionType,
		Title:           in.Title,
		CreatedBy:       creatorID,
		IsOpen:          in.IsOpen,
		TaggedUserIDs:   in.TaggedUserIDs,
		TaggedRoles:     in.TaggedRoles,
		ParticipantHash: &hash,
	}
	if err := s.store.CreateDiscussion(discussion); err != nil {
		log.Error().Err(err).Msg("Failed to create discussion")
		return nil, false, err
	}

	for _, userID := range participantIDs {
		participant := &models.DiscussionParticipant{
			DiscussionID: discussion.ID,
			UserID:       userID,
			JoinedAt:     now,
		}
		if err := s.store.CreateParticipant(participant); err != nil {
			// Compensate: roll the discussion row back so no orphaned
			// discussion is left behind
			log.Error().Err(err).
				Str("discussion_id", discussion.ID.String()).
				Str("user_id", userID.String()).
				Msg("Failed to add participant, rolling back discussion")
			if delErr := s.store.DeleteDiscussion(discussion.ID); delErr != nil {
				log.Error().Err(delErr).
					Str("discussion_id", discussion.ID.String()).
					Msg("Failed to roll back discussion after participant error")
			}
			return nil, false, err
		}
	}

	view, err := s.hydrateDiscussion(*discussion, creatorID)
	if err != nil {
		return nil, false, err
	}
	return view, true, nil
}

// FindExistingDiscussion finds an active discussion whose active-participant
// set exactly matches the requesting user plus the given participants.
// Returns nil when no discussion matches. Read-only.
func (s *Service) FindExistingDiscussion(requestingUserID uuid.UUID, otherParticipantIDs []uuid.UUID, desiredType string) (*DiscussionView, error) {
	wantKey := participantSetKey(foldParticipantSet(requestingUserID, otherParticipantIDs))

	memberships, err := s.store.ActiveMemberships(requestingUserID)
	if err != nil {
		log.Error().Err(err).Str("user_id", requestingUserID.String()).Msg("Failed to load memberships")
		return nil, err
	}
	if len(memberships) == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		ids = append(ids, m.DiscussionID)
	}

	candidates, err := s.store.DiscussionsByID(ids, desiredType)
	if err != nil {
		return nil, err
	}

	var matches []models.Discussion
	for _, d := range candidates {
		parts, err := s.store.ActiveParticipants(d.ID)
		if err != nil {
			return nil, err
		}
		if participantSetKey(participantUserIDs(parts)) == wantKey {
			matches = append(matches, d)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}

	// Duplicate participant sets are a tolerated anomaly; prefer the most
	// recently active discussion
	best := matches[0]
	for _, d := range matches[1:] {
		if moreRecentlyActive(d, best) {
			best = d
		}
	}
	return s.hydrateDiscussion(best, requestingUserID)
}

// ListOptions filters the discussion list
type ListOptions struct {
	Type  string
	Scope ScopeFilter
}

// ListDiscussions assembles the user-facing conversation list: membership
// discovery (with the authored-message fallback), scope filtering,
// hydration, read-time deduplication and most-recently-active ordering.
func (s *Service) ListDiscussions(userID uuid.UUID, opts ListOptions) ([]DiscussionView, error) {
	memberships, err := s.store.ActiveMemberships(userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID.String()).Msg("Failed to load memberships")
		return nil, err
	}

	var ids []uuid.UUID
	for _, m := range memberships {
		ids = append(ids, m.DiscussionID)
	}

	if len(ids) == 0 {
		// Membership rows can be missing for users who have posted; fall
		// back to scanning authored messages so they still see those
		// conversations. Discussions where a membership row exists, left
		// ones included, are excluded: a soft-left row means the user
		// withdrew, not that the row went missing. Best-effort.
		authored, err := s.store.AuthoredDiscussionIDs(userID)
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID.String()).Msg("Authored-message fallback scan failed")
		} else if len(authored) > 0 {
			known, err := s.store.MembershipDiscussionIDs(userID)
			if err != nil {
				log.Warn().Err(err).Str("user_id", userID.String()).Msg("Failed to load membership rows, skipping fallback scan")
			} else {
				knownSet := make(map[uuid.UUID]bool, len(known))
				for _, id := range known {
					knownSet[id] = true
				}
				for _, id := range authored {
					if !knownSet[id] {
						ids = append(ids, id)
					}
				}
				if len(ids) > 0 {
					log.Warn().Str("user_id", userID.String()).Int("count", len(ids)).
						Msg("No active memberships found, using authored-message fallback")
				}
			}
		}
	}
	if len(ids) == 0 {
		return []DiscussionView{}, nil
	}

	discussions, err := s.store.DiscussionsByID(ids, opts.Type)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load discussions")
		return nil, err
	}

	var scoped []models.Discussion
	for _, d := range discussions {
		if opts.Scope.Allows(d) {
			scoped = append(scoped, d)
		}
	}

	views := make([]DiscussionView, 0, len(scoped))
	for _, d := range scoped {
		view, err := s.hydrateDiscussion(d, userID)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}

	views = dedupeByParticipantSet(views)
	sortViews(views)
	return views, nil
}

// GetDiscussion returns a single hydrated discussion the user participates
// in; ErrNotFound otherwise.
func (s *Service) GetDiscussion(discussionID, userID uuid.UUID) (*DiscussionView, error) {
	if _, err := s.store.ActiveParticipant(discussionID, userID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
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
	return s.hydrateDiscussion(*discussion, userID)
}

// hydrateDiscussion joins a discussion row with its active participants,
// last visible message, other participant (personal type) and the
// requesting user's pin/mute flags
func (s *Service) hydrateDiscussion(d models.Discussion, forUserID uuid.UUID) (*DiscussionView, error) {
	parts, err := s.store.ActiveParticipants(d.ID)
	if err != nil {
		log.Error().Err(err).Str("discussion_id", d.ID.String()).Msg("Failed to load participants")
		return nil, err
	}

	users, err := s.store.GetUsers(participantUserIDs(parts))
	if err != nil {
		log.Error().Err(err).Str("discussion_id", d.ID.String()).Msg("Failed to load participant users")
		return nil, err
	}
	userByID := make(map[uuid.UUID]models.User, len(users))
	for _, u := range users {
		userByID[u.ID] = u
	}

	view := &DiscussionView{Discussion: d, Participants: make([]ParticipantView, 0, len(parts))}
	for _, p := range parts {
		pv := ParticipantView{DiscussionParticipant: p}
		if u, ok := userByID[p.UserID]; ok {
			pv.User = userSummary(u)
		}
		view.Participants = append(view.Participants, pv)

		if p.UserID == forUserID {
			view.IsPinned = p.IsPinned
			view.IsMuted = p.IsMuted
		} else if d.Type == models.DiscussionTypePersonal && view.OtherParticipant == nil {
			if u, ok := userByID[p.UserID]; ok {
				view.OtherParticipant = userSummary(u)
			}
		}
	}

	last, err := s.store.LatestVisibleMessage(d.ID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if last != nil {
		mv, err := s.hydrateMessage(*last, false)
		if err != nil {
			return nil, err
		}
		view.LastMessage = mv
	}

	return view, nil
}

// hydrateMessage attaches the sender and, when requested, the parent
// message with its own sender
func (s *Service) hydrateMessage(m models.DiscussionMessage, withParent bool) (*MessageView, error) {
	view := &MessageView{DiscussionMessage: m}

	sender, err := s.store.GetUser(m.SenderID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if sender != nil {
		view.Sender = userSummary(*sender)
	}

	if withParent && m.ParentMessageID != nil {
		parent, err := s.store.GetMessage(*m.ParentMessageID)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				return nil, err
			}
		} else {
			pv, err := s.hydrateMessage(*parent, false)
			if err != nil {
				return nil, err
			}
			view.Parent = pv
		}
	}

	return view, nil
}

// refreshParticipantHash recomputes the stored participant-set hash after a
// membership change. Best-effort: the hash only backs the creation-time
// uniqueness index, the matcher compares real participant sets.
func (s *Service) refreshParticipantHash(discussionID uuid.UUID) {
	discussion, err := s.store.GetDiscussion(discussionID)
	if err != nil {
		log.Warn().Err(err).Str("discussion_id", discussionID.String()).Msg("Failed to load discussion for hash refresh")
		return
	}
	parts, err := s.store.ActiveParticipants(discussionID)
	if err != nil {
		log.Warn().Err(err).Str("discussion_id", discussionID.String()).Msg("Failed to load participants for hash refresh")
		return
	}
	hash := participantSetHash(participantUserIDs(parts))
	discussion.ParticipantHash = &hash
	if err := s.store.SaveDiscussion(discussion); err != nil {
		log.Warn().Err(err).Str("discussion_id", discussionID.String()).Msg("Failed to save refreshed participant hash")
	}
}

func userSummary(u models.User) *UserSummary {
	return &UserSummary{
		ID:        u.ID,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Role:      u.Role,
		AvatarURL: u.AvatarURL,
	}
}

// foldParticipantSet merges the requesting user into the participant set
// and deduplicates it
func foldParticipantSet(userID uuid.UUID, others []uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]bool{userID: true}
	ids := []uuid.UUID{userID}
	for _, id := range others {
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

func deriveType(participantCount int) string {
	if participantCount == 2 {
		return models.DiscussionTypePersonal
	}
	return models.DiscussionTypeGroup
}

func participantUserIDs(parts []models.DiscussionParticipant) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(parts))
	for _, p := range parts {
		ids = append(ids, p.UserID)
	}
	return ids
}

// participantSetKey produces the composite key for an unordered participant
// set: sorted IDs joined with commas
func participantSetKey(ids []uuid.UUID) string {
	strs := make([]string, 0, len(ids))
	for _, id := range ids {
		strs = append(strs, id.String())
	}
	sort.Strings(strs)
	return strings.Join(strs, ",")
}

// participantSetHash is the hex SHA-256 of the set key, stored on the
// discussion row for the uniqueness index
func participantSetHash(ids []uuid.UUID) string {
	sum := sha256.Sum256([]byte(participantSetKey(ids)))
	return hex.EncodeToString(sum[:])
}

// moreRecentlyActive reports whether a should be preferred over b: later
// last-message time first (discussions without messages sort last), then
// later creation time
func moreRecentlyActive(a, b models.Discussion) bool {
	switch {
	case a.LastMessageAt != nil && b.LastMessageAt != nil:
		if !a.LastMessageAt.Equal(*b.LastMessageAt) {
			return a.LastMessageAt.After(*b.LastMessageAt)
		}
	case a.LastMessageAt != nil:
		return true
	case b.LastMessageAt != nil:
		return false
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func sortViews(views []DiscussionView) {
	sort.SliceStable(views, func(i, j int) bool {
		return moreRecentlyActive(views[i].Discussion, views[j].Discussion)
	})
}

// dedupeByParticipantSet collapses discussions sharing an identical
// active-participant set, keeping the most recently active one. This is the
// read-time compatibility shim for duplicates created before the uniqueness
// index existed or through creation races.
func dedupeByParticipantSet(views []DiscussionView) []DiscussionView {
	bestByKey := make(map[string]int)
	for i, v := range views {
		key := participantSetKeyOfView(v)
		if j, ok := bestByKey[key]; ok {
			if moreRecentlyActive(v.Discussion, views[j].Discussion) {
				bestByKey[key] = i
			}
		} else {
			bestByKey[key] = i
		}
	}
	if len(bestByKey) == len(views) {
		return views
	}

	keep := make(map[int]bool, len(bestByKey))
	for _, i := range bestByKey {
		keep[i] = true
	}
	result := make([]DiscussionView, 0, len(bestByKey))
	for i, v := range views {
		if keep[i] {
			result = append(result, v)
		}
	}
	return result
}

func participantSetKeyOfView(v DiscussionView) string {
	ids := make([]uuid.UUID, 0, len(v.Participants))
	for _, p := range v.Participants {
		ids = append(ids, p.UserID)
	}
	return participantSetKey(ids)
}
