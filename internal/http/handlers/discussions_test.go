package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tripdesk/internal/discussions"
	"tripdesk/pkg/models"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubStore is a minimal in-memory discussions.Store for handler tests
type stubStore struct {
	discussions  map[uuid.UUID]*models.Discussion
	participants []*models.DiscussionParticipant
	messages     map[uuid.UUID]*models.DiscussionMessage
	users        map[uuid.UUID]*models.User
}

func newStubStore() *stubStore {
	return &stubStore{
		discussions: make(map[uuid.UUID]*models.Discussion),
		messages:    make(map[uuid.UUID]*models.DiscussionMessage),
		users:       make(map[uuid.UUID]*models.User),
	}
}

func (s *stubStore) CreateDiscussion(d *models.Discussion) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now()
	}
	cp := *d
	s.discussions[d.ID] = &cp
	return nil
}

func (s *stubStore) SaveDiscussion(d *models.Discussion) error {
	cp := *d
	s.discussions[d.ID] = &cp
	return nil
}

func (s *stubStore) DeleteDiscussion(id uuid.UUID) error {
	delete(s.discussions, id)
	return nil
}

func (s *stubStore) GetDiscussion(id uuid.UUID) (*models.Discussion, error) {
	d, ok := s.discussions[id]
	if !ok {
		return nil, discussions.ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (s *stubStore) DiscussionsByID(ids []uuid.UUID, discussionType string) ([]models.Discussion, error) {
	var out []models.Discussion
	for _, id := range ids {
		if d, ok := s.discussions[id]; ok && d.ArchivedAt == nil {
			if discussionType == "" || d.Type == discussionType {
				out = append(out, *d)
			}
		}
	}
	return out, nil
}

func (s *stubStore) CreateParticipant(p *models.DiscussionParticipant) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	s.participants = append(s.participants, &cp)
	return nil
}

func (s *stubStore) SaveParticipant(p *models.DiscussionParticipant) error {
	for i, existing := range s.participants {
		if existing.ID == p.ID {
			cp := *p
			s.participants[i] = &cp
			return nil
		}
	}
	return discussions.ErrNotFound
}

func (s *stubStore) ActiveParticipant(discussionID, userID uuid.UUID) (*models.DiscussionParticipant, error) {
	for _, p := range s.participants {
		if p.DiscussionID == discussionID && p.UserID == userID && p.LeftAt == nil {
			cp := *p
			return &cp, nil
		}
	}
	return nil, discussions.ErrNotFound
}

func (s *stubStore) ActiveParticipants(discussionID uuid.UUID) ([]models.DiscussionParticipant, error) {
	var out []models.DiscussionParticipant
	for _, p := range s.participants {
		if p.DiscussionID == discussionID && p.LeftAt == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *stubStore) ActiveMemberships(userID uuid.UUID) ([]models.DiscussionParticipant, error) {
	var out []models.DiscussionParticipant
	for _, p := range s.participants {
		if p.UserID == userID && p.LeftAt == nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *stubStore) MembershipDiscussionIDs(userID uuid.UUID) ([]uuid.UUID, error) {
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, p := range s.participants {
		if p.UserID == userID && !seen[p.DiscussionID] {
			seen[p.DiscussionID] = true
			out = append(out, p.DiscussionID)
		}
	}
	return out, nil
}

func (s *stubStore) CreateMessage(m *models.DiscussionMessage) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	cp := *m
	s.messages[m.ID] = &cp
	return nil
}

func (s *stubStore) SaveMessage(m *models.DiscussionMessage) error {
	cp := *m
	s.messages[m.ID] = &cp
	return nil
}

func (s *stubStore) SaveMessageReactions(m *models.DiscussionMessage, expectedRevision int64) error {
	stored, ok := s.messages[m.ID]
	if !ok {
		return discussions.ErrNotFound
	}
	if stored.Revision != expectedRevision {
		return discussions.ErrConflict
	}
	stored.Reactions = m.Reactions
	stored.Revision = expectedRevision + 1
	m.Revision = stored.Revision
	return nil
}

func (s *stubStore) GetMessage(id uuid.UUID) (*models.DiscussionMessage, error) {
	m, ok := s.messages[id]
	if !ok {
		return nil, discussions.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *stubStore) VisibleMessages(discussionID uuid.UUID, limit, offset int) ([]models.DiscussionMessage, error) {
	var out []models.DiscussionMessage
	for _, m := range s.messages {
		if m.DiscussionID == discussionID && m.DeletedAt == nil {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *stubStore) LatestVisibleMessage(discussionID uuid.UUID) (*models.DiscussionMessage, error) {
	var latest *models.DiscussionMessage
	for _, m := range s.messages {
		if m.DiscussionID == discussionID && m.DeletedAt == nil {
			if latest == nil || m.CreatedAt.After(latest.CreatedAt) {
				cp := *m
				latest = &cp
			}
		}
	}
	if latest == nil {
		return nil, discussions.ErrNotFound
	}
	return latest, nil
}

func (s *stubStore) RepointMessages(fromDiscussionID, toDiscussionID uuid.UUID) (int64, error) {
	var n int64
	for _, m := range s.messages {
		if m.DiscussionID == fromDiscussionID {
			m.DiscussionID = toDiscussionID
			n++
		}
	}
	return n, nil
}

func (s *stubStore) AuthoredDiscussionIDs(userID uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func (s *stubStore) CountMessagesAfter(discussionID uuid.UUID, after *time.Time, excludeSender uuid.UUID) (int64, error) {
	return 0, nil
}

func (s *stubStore) GetUser(id uuid.UUID) (*models.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, discussions.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *stubStore) GetUsers(ids []uuid.UUID) ([]models.User, error) {
	var out []models.User
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *stubStore) SearchUsersByMentionToken(token string) ([]models.User, error) {
	return nil, nil
}

func (s *stubStore) addUser(firstName, username string) *models.User {
	u := &models.User{
		Email:     username + "@example.com",
		Username:  username,
		FirstName: firstName,
		Role:      "dispatcher",
		IsActive:  true,
	}
	u.ID = uuid.New()
	s.users[u.ID] = u
	return u
}

type testValidator struct {
	validator *validator.Validate
}

func (v *testValidator) Validate(i interface{}) error {
	if err := v.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func newTestContext(t *testing.T, method, path, body string, userID, tenantID uuid.UUID) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	e.Validator = &testValidator{validator: validator.New()}
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user_id", userID)
	c.Set("user_role", "dispatcher")
	c.Set("tenant_id", tenantID)
	return c, rec
}

func TestCreateDiscussionReturnsCreatedThenOK(t *testing.T) {
	store := newStubStore()
	alice := store.addUser("Alice", "alice")
	bob := store.addUser("Bob", "bob")
	tenantID := uuid.New()

	h := NewDiscussionHandler(discussions.NewService(store), nil)
	body := `{"participant_ids":["` + bob.ID.String() + `"]}`

	c, rec := newTestContext(t, http.MethodPost, "/discussions", body, alice.ID, tenantID)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	c, rec = newTestContext(t, http.MethodPost, "/discussions", body, alice.ID, tenantID)
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusOK, rec.Code, "reusing an existing discussion returns 200")
}

func TestCreateDiscussionRejectsEmptyBody(t *testing.T) {
	store := newStubStore()
	alice := store.addUser("Alice", "alice")

	h := NewDiscussionHandler(discussions.NewService(store), nil)

	c, rec := newTestContext(t, http.MethodPost, "/discussions", `{}`, alice.ID, uuid.New())
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newTestContext(t, http.MethodPost, "/discussions", `{"participant_ids":[]}`, alice.ID, uuid.New())
	require.NoError(t, h.Create(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSendMessageValidation(t *testing.T) {
	store := newStubStore()
	alice := store.addUser("Alice", "alice")
	bob := store.addUser("Bob", "bob")
	tenantID := uuid.New()

	svc := discussions.NewService(store)
	view, _, err := svc.CreateDiscussion(alice.ID, discussions.CreateDiscussionInput{
		ParticipantIDs: []uuid.UUID{bob.ID},
		TenantID:       tenantID,
	})
	require.NoError(t, err)

	h := NewDiscussionHandler(svc, nil)
	path := "/discussions/" + view.ID.String() + "/messages"

	// Missing content is caught by the validator
	c, rec := newTestContext(t, http.MethodPost, path, `{}`, alice.ID, tenantID)
	c.SetParamNames("id")
	c.SetParamValues(view.ID.String())
	require.NoError(t, h.SendMessage(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Whitespace-only content is caught by the service
	c, rec = newTestContext(t, http.MethodPost, path, `{"content":"   "}`, alice.ID, tenantID)
	c.SetParamNames("id")
	c.SetParamValues(view.ID.String())
	require.NoError(t, h.SendMessage(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Non-participant gets 403
	mallory := store.addUser("Mallory", "mallory")
	c, rec = newTestContext(t, http.MethodPost, path, `{"content":"hi"}`, mallory.ID, tenantID)
	c.SetParamNames("id")
	c.SetParamValues(view.ID.String())
	require.NoError(t, h.SendMessage(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Valid message goes through
	c, rec = newTestContext(t, http.MethodPost, path, `{"content":"hi"}`, alice.ID, tenantID)
	c.SetParamNames("id")
	c.SetParamValues(view.ID.String())
	require.NoError(t, h.SendMessage(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestPinRequiresExplicitFlag(t *testing.T) {
	store := newStubStore()
	alice := store.addUser("Alice", "alice")
	bob := store.addUser("Bob", "bob")
	tenantID := uuid.New()

	svc := discussions.NewService(store)
	view, _, err := svc.CreateDiscussion(alice.ID, discussions.CreateDiscussionInput{
		ParticipantIDs: []uuid.UUID{bob.ID},
		TenantID:       tenantID,
	})
	require.NoError(t, err)

	h := NewDiscussionHandler(svc, nil)
	path := "/discussions/" + view.ID.String() + "/pin"

	c, rec := newTestContext(t, http.MethodPatch, path, `{}`, alice.ID, tenantID)
	c.SetParamNames("id")
	c.SetParamValues(view.ID.String())
	require.NoError(t, h.Pin(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing pinned flag must not default to false")

	c, rec = newTestContext(t, http.MethodPatch, path, `{"pinned":true}`, alice.ID, tenantID)
	c.SetParamNames("id")
	c.SetParamValues(view.ID.String())
	require.NoError(t, h.Pin(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMarkReadRejectsBadMessageID(t *testing.T) {
	store := newStubStore()
	alice := store.addUser("Alice", "alice")
	bob := store.addUser("Bob", "bob")
	tenantID := uuid.New()

	svc := discussions.NewService(store)
	view, _, err := svc.CreateDiscussion(alice.ID, discussions.CreateDiscussionInput{
		ParticipantIDs: []uuid.UUID{bob.ID},
		TenantID:       tenantID,
	})
	require.NoError(t, err)

	h := NewDiscussionHandler(svc, nil)
	path := "/discussions/" + view.ID.String() + "/read"

	c, rec := newTestContext(t, http.MethodPatch, path, `{"message_id":"not-a-uuid"}`, alice.ID, tenantID)
	c.SetParamNames("id")
	c.SetParamValues(view.ID.String())
	require.NoError(t, h.MarkRead(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
