package discussions

import (
	"errors"
	"sort"
	"strings"
	"time"

	"tripdesk/pkg/models"

	"github.com/google/uuid"
)

// memStore is an in-memory Store used by the service tests
type memStore struct {
	discussions  map[uuid.UUID]*models.Discussion
	participants []*models.DiscussionParticipant
	messages     map[uuid.UUID]*models.DiscussionMessage
	users        map[uuid.UUID]*models.User

	failParticipantInsertAfter int // fail CreateParticipant once this many inserts happened (-1 disables)
	reactionConflicts          int // number of SaveMessageReactions calls to reject with ErrConflict
}

func newMemStore() *memStore {
	return &memStore{
		discussions:                make(map[uuid.UUID]*models.Discussion),
		messages:                   make(map[uuid.UUID]*models.DiscussionMessage),
		users:                      make(map[uuid.UUID]*models.User),
		failParticipantInsertAfter: -1,
	}
}

func (m *memStore) CreateDiscussion(d *models.Discussion) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	cp := *d
	m.discussions[d.ID] = &cp
	return nil
}

func (m *memStore) SaveDiscussion(d *models.Discussion) error {
	cp := *d
	m.discussions[d.ID] = &cp
	return nil
}

func (m *memStore) DeleteDiscussion(id uuid.UUID) error {
	delete(m.discussions, id)
	kept := m.participants[:0]
	for _, p := range m.participants {
		if p.DiscussionID != id {
			kept = append(kept, p)
		}
	}
	m.participants = kept
	return nil
}

func (m *memStore) GetDiscussion(id uuid.UUID) (*models.Discussion, error) {
	d, ok := m.discussions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *memStore) DiscussionsByID(ids []uuid.UUID, discussionType string) ([]models.Discussion, error) {
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []models.Discussion
	for _, d := range m.discussions {
		if !want[d.ID] || d.ArchivedAt != nil {
			continue
		}
		if discussionType != "" && d.Type != discussionType {
			continue
		}
		out = append(out, *d)
	}
	return out, nil
}

func (m *memStore) CreateParticipant(p *models.DiscussionParticipant) error {
	if m.failParticipantInsertAfter == 0 {
		return errors.New("participant insert failed")
	}
	if m.failParticipantInsertAfter > 0 {
		m.failParticipantInsertAfter--
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	m.participants = append(m.participants, &cp)
	return nil
}

func (m *memStore) SaveParticipant(p *models.DiscussionParticipant) error {
	for i, existing := range m.participants {
		if existing.ID == p.ID {
			cp := *p
			m.participants[i] = &cp
			return nil
		}
	}
	return ErrNotFound
}

func (m *memStore) ActiveParticipant(discussionID, userID uuid.UUID) (*models.DiscussionParticipant, error) {
	for _, p := range m.participants {
		if p.DiscussionID == discussionID && p.UserID == userID && p.LeftAt == nil {
			cp := *p
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) ActiveParticipants(discussionID uuid.UUID) ([]models.DiscussionParticipant, error) {
	var out []models.DiscussionParticipant
	for _, p := range m.participants {
		if p.DiscussionID == discussionID && p.LeftAt == nil {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (m *memStore) ActiveMemberships(userID uuid.UUID) ([]models.DiscussionParticipant, error) {
	var out []models.DiscussionParticipant
	for _, p := range m.participants {
		if p.UserID == userID && p.LeftAt == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *memStore) MembershipDiscussionIDs(userID uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, p := range m.participants {
		if p.UserID == userID && !seen[p.DiscussionID] {
			seen[p.DiscussionID] = true
			out = append(out, p.DiscussionID)
		}
	}
	return out, nil
}

func (m *memStore) CreateMessage(msg *models.DiscussionMessage) error {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	cp := *msg
	m.messages[msg.ID] = &cp
	return nil
}

func (m *memStore) SaveMessage(msg *models.DiscussionMessage) error {
	if _, ok := m.messages[msg.ID]; !ok {
		return ErrNotFound
	}
	cp := *msg
	m.messages[msg.ID] = &cp
	return nil
}

func (m *memStore) SaveMessageReactions(msg *models.DiscussionMessage, expectedRevision int64) error {
	stored, ok := m.messages[msg.ID]
	if !ok {
		return ErrNotFound
	}
	if m.reactionConflicts > 0 {
		m.reactionConflicts--
		return ErrConflict
	}
	if stored.Revision != expectedRevision {
		return ErrConflict
	}
	stored.Reactions = msg.Reactions
	stored.Revision = expectedRevision + 1
	msg.Revision = stored.Revision
	return nil
}

func (m *memStore) GetMessage(id uuid.UUID) (*models.DiscussionMessage, error) {
	msg, ok := m.messages[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *msg
	return &cp, nil
}

func (m *memStore) VisibleMessages(discussionID uuid.UUID, limit, offset int) ([]models.DiscussionMessage, error) {
	var out []models.DiscussionMessage
	for _, msg := range m.messages {
		if msg.DiscussionID == discussionID && msg.DeletedAt == nil {
			out = append(out, *msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) LatestVisibleMessage(discussionID uuid.UUID) (*models.DiscussionMessage, error) {
	msgs, _ := m.VisibleMessages(discussionID, 1, 0)
	if len(msgs) == 0 {
		return nil, ErrNotFound
	}
	return &msgs[0], nil
}

func (m *memStore) RepointMessages(fromDiscussionID, toDiscussionID uuid.UUID) (int64, error) {
	var n int64
	for _, msg := range m.messages {
		if msg.DiscussionID == fromDiscussionID {
			msg.DiscussionID = toDiscussionID
			n++
		}
	}
	return n, nil
}

func (m *memStore) AuthoredDiscussionIDs(userID uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, msg := range m.messages {
		if msg.SenderID == userID && msg.DeletedAt == nil && !seen[msg.DiscussionID] {
			seen[msg.DiscussionID] = true
			out = append(out, msg.DiscussionID)
		}
	}
	return out, nil
}

func (m *memStore) CountMessagesAfter(discussionID uuid.UUID, after *time.Time, excludeSender uuid.UUID) (int64, error) {
	var n int64
	for _, msg := range m.messages {
		if msg.DiscussionID != discussionID || msg.DeletedAt != nil || msg.SenderID == excludeSender {
			continue
		}
		if after != nil && !msg.CreatedAt.After(*after) {
			continue
		}
		n++
	}
	return n, nil
}

func (m *memStore) GetUser(id uuid.UUID) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memStore) GetUsers(ids []uuid.UUID) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memStore) SearchUsersByMentionToken(token string) ([]models.User, error) {
	var out []models.User
	for _, u := range m.users {
		if !u.IsActive {
			continue
		}
		if containsFold(u.FirstName, token) || containsFold(u.Username, token) {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (m *memStore) addUser(firstName, username string) *models.User {
	u := &models.User{
		Email:     username + "@example.com",
		Username:  username,
		FirstName: firstName,
		Role:      "dispatcher",
		IsActive:  true,
	}
	u.ID = uuid.New()
	m.users[u.ID] = u
	return u
}

// test helpers

func mustUUID(s string) uuid.UUID {
	return uuid.MustParse(s)
}

func uuids(ids ...uuid.UUID) []uuid.UUID {
	return ids
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
