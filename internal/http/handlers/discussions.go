package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"tripdesk/internal/discussions"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// DiscussionHandler handles discussion endpoints
type DiscussionHandler struct {
	service *discussions.Service
	ws      *WebSocketHandler
}

// NewDiscussionHandler creates a new discussion handler
func NewDiscussionHandler(service *discussions.Service, ws *WebSocketHandler) *DiscussionHandler {
	return &DiscussionHandler{
		service: service,
		ws:      ws,
	}
}

// discussionError maps service errors onto HTTP responses
func discussionError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, discussions.ErrValidation):
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, discussions.ErrNotParticipant), errors.Is(err, discussions.ErrForbidden):
		return c.JSON(http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, discussions.ErrNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "not found"})
	default:
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func currentUserID(c echo.Context) (uuid.UUID, bool) {
	userID, ok := c.Get("user_id").(uuid.UUID)
	return userID, ok
}

// scopeFromContext builds the visibility filter from the JWT claims stored
// in context
func scopeFromContext(c echo.Context) discussions.ScopeFilter {
	scope := discussions.ScopeFilter{}
	if role, ok := c.Get("user_role").(string); ok {
		scope.Role = role
	}
	if tenantID, ok := c.Get("tenant_id").(uuid.UUID); ok {
		scope.TenantID = &tenantID
	}
	if programIDs, ok := c.Get("program_ids").([]uuid.UUID); ok {
		scope.ProgramIDs = programIDs
	}
	return scope
}

// List godoc
// @Summary List discussions
// @Description List the caller's discussions, most recently active first
// @Tags discussions
// @Produce json
// @Param type query string false "Filter by discussion type (personal or group)"
// @Success 200 {array} discussions.DiscussionView
// @Failure 401 {object} map[string]string
// @Router /discussions [get]
func (h *DiscussionHandler) List(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	views, err := h.service.ListDiscussions(userID, discussions.ListOptions{
		Type:  c.QueryParam("type"),
		Scope: scopeFromContext(c),
	})
	if err != nil {
		return discussionError(c, err)
	}

	return c.JSON(http.StatusOK, views)
}

// Get godoc
// @Summary Get a discussion
// @Description Get one discussion the caller participates in
// @Tags discussions
// @Produce json
// @Param id path string true "Discussion ID"
// @Success 200 {object} discussions.DiscussionView
// @Failure 404 {object} map[string]string
// @Router /discussions/{id} [get]
func (h *DiscussionHandler) Get(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	discussionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid discussion ID"})
	}

	view, err := h.service.GetDiscussion(discussionID, userID)
	if err != nil {
		return discussionError(c, err)
	}

	return c.JSON(http.StatusOK, view)
}

// CreateDiscussionRequest is the create/reuse request body
type CreateDiscussionRequest struct {
	Type           string      `json:"type"`
	Title          *string     `json:"title"`
	ParticipantIDs []uuid.UUID `json:"participant_ids" validate:"required,min=1"`
	ProgramID      *uuid.UUID  `json:"program_id"`
	IsOpen         bool        `json:"is_open"`
	TaggedUserIDs  []uuid.UUID `json:"tagged_user_ids"`
	TaggedRoles    []string    `json:"tagged_roles"`
}

// Create godoc
// @Summary Create or reuse a discussion
// @Description Create a discussion, or return the existing one with the same participant set
// @Tags discussions
// @Accept json
// @Produce json
// @Param request body CreateDiscussionRequest true "Discussion data"
// @Success 201 {object} discussions.DiscussionView "Created"
// @Success 200 {object} discussions.DiscussionView "Reused existing"
// @Failure 400 {object} map[string]string
// @Router /discussions [post]
func (h *DiscussionHandler) Create(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	tenantID, ok := c.Get("tenant_id").(uuid.UUID)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "tenant context required"})
	}

	var req CreateDiscussionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	view, created, err := h.service.CreateDiscussion(userID, discussions.CreateDiscussionInput{
		Type:           req.Type,
		Title:          req.Title,
		ParticipantIDs: req.ParticipantIDs,
		TenantID:       tenantID,
		ProgramID:      req.ProgramID,
		IsOpen:         req.IsOpen,
		TaggedUserIDs:  req.TaggedUserIDs,
		TaggedRoles:    req.TaggedRoles,
	})
	if err != nil {
		return discussionError(c, err)
	}

	if created {
		return c.JSON(http.StatusCreated, view)
	}
	return c.JSON(http.StatusOK, view)
}

// ListMessages godoc
// @Summary List messages
// @Description List a discussion's messages, newest first
// @Tags discussions
// @Produce json
// @Param id path string true "Discussion ID"
// @Param limit query int false "Page size" default(50)
// @Param offset query int false "Page offset" default(0)
// @Success 200 {array} discussions.MessageView
// @Failure 403 {object} map[string]string
// @Router /discussions/{id}/messages [get]
func (h *DiscussionHandler) ListMessages(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	discussionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid discussion ID"})
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	views, err := h.service.ListMessages(discussionID, userID, limit, offset)
	if err != nil {
		return discussionError(c, err)
	}

	return c.JSON(http.StatusOK, views)
}

// SendMessageRequest is the send-message request body
type SendMessageRequest struct {
	Content         string `json:"content" validate:"required"`
	ParentMessageID string `json:"parent_message_id"`
}

// SendMessage godoc
// @Summary Send a message
// @Description Post a message to a discussion the caller participates in
// @Tags discussions
// @Accept json
// @Produce json
// @Param id path string true "Discussion ID"
// @Param request body SendMessageRequest true "Message data"
// @Success 201 {object} discussions.MessageView
// @Failure 400 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /discussions/{id}/messages [post]
func (h *DiscussionHandler) SendMessage(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	discussionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid discussion ID"})
	}

	var req SendMessageRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	input := discussions.SendMessageInput{Content: req.Content}
	if req.ParentMessageID != "" {
		parentID, err := uuid.Parse(req.ParentMessageID)
		if err != nil {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid parent_message_id"})
		}
		input.ParentMessageID = &parentID
	}

	view, err := h.service.SendMessage(discussionID, userID, input)
	if err != nil {
		return discussionError(c, err)
	}

	h.notifyParticipants(discussionID, userID, "discussion_message", view)

	return c.JSON(http.StatusCreated, view)
}

// DeleteMessage godoc
// @Summary Delete a message
// @Description Soft-delete the caller's own message
// @Tags discussions
// @Produce json
// @Param id path string true "Discussion ID"
// @Param messageId path string true "Message ID"
// @Success 200 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /discussions/{id}/messages/{messageId} [delete]
func (h *DiscussionHandler) DeleteMessage(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	discussionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid discussion ID"})
	}
	messageID, err := uuid.Parse(c.Param("messageId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid message ID"})
	}

	if err := h.service.DeleteMessage(discussionID, messageID, userID); err != nil {
		return discussionError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Message deleted"})
}

// ToggleReactionRequest is the toggle-reaction request body
type ToggleReactionRequest struct {
	Emoji string `json:"emoji" validate:"required"`
}

// ToggleReaction godoc
// @Summary Toggle a reaction
// @Description Add the caller's reaction to a message, or remove it when already present
// @Tags discussions
// @Accept json
// @Produce json
// @Param id path string true "Discussion ID"
// @Param messageId path string true "Message ID"
// @Param request body ToggleReactionRequest true "Reaction data"
// @Success 200 {object} discussions.MessageView
// @Failure 400 {object} map[string]string
// @Router /discussions/{id}/messages/{messageId}/reactions [post]
func (h *DiscussionHandler) ToggleReaction(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	messageID, err := uuid.Parse(c.Param("messageId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid message ID"})
	}

	var req ToggleReactionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	view, err := h.service.ToggleReaction(messageID, userID, req.Emoji)
	if err != nil {
		return discussionError(c, err)
	}

	return c.JSON(http.StatusOK, view)
}

// PinRequest is the pin/unpin request body. The flag is a pointer so a
// missing value is rejected instead of defaulting to false.
type PinRequest struct {
	Pinned *bool `json:"pinned"`
}

// Pin godoc
// @Summary Pin or unpin a discussion
// @Tags discussions
// @Accept json
// @Produce json
// @Param id path string true "Discussion ID"
// @Param request body PinRequest true "Pin flag"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /discussions/{id}/pin [patch]
func (h *DiscussionHandler) Pin(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	discussionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid discussion ID"})
	}

	var req PinRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if req.Pinned == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "pinned flag is required"})
	}

	if err := h.service.SetPinned(discussionID, userID, *req.Pinned); err != nil {
		return discussionError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Discussion updated"})
}

// MuteRequest is the mute/unmute request body
type MuteRequest struct {
	Muted *bool `json:"muted"`
}

// Mute godoc
// @Summary Mute or unmute a discussion
// @Tags discussions
// @Accept json
// @Produce json
// @Param id path string true "Discussion ID"
// @Param request body MuteRequest true "Mute flag"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /discussions/{id}/mute [patch]
func (h *DiscussionHandler) Mute(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	discussionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid discussion ID"})
	}

	var req MuteRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if req.Muted == nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "muted flag is required"})
	}

	if err := h.service.SetMuted(discussionID, userID, *req.Muted); err != nil {
		return discussionError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Discussion updated"})
}

// MarkReadRequest is the mark-read request body
type MarkReadRequest struct {
	MessageID string `json:"message_id" validate:"required"`
}

// MarkRead godoc
// @Summary Mark a discussion as read
// @Description Advance the caller's read pointer to the given message
// @Tags discussions
// @Accept json
// @Produce json
// @Param id path string true "Discussion ID"
// @Param request body MarkReadRequest true "Read pointer"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string
// @Router /discussions/{id}/read [patch]
func (h *DiscussionHandler) MarkRead(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	discussionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid discussion ID"})
	}

	var req MarkReadRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	messageID, err := uuid.Parse(req.MessageID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid message_id"})
	}

	if err := h.service.MarkRead(discussionID, userID, messageID); err != nil {
		return discussionError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Discussion marked as read"})
}

// Leave godoc
// @Summary Leave a discussion
// @Description Remove the discussion from the caller's list; history stays intact for others
// @Tags discussions
// @Produce json
// @Param id path string true "Discussion ID"
// @Success 200 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /discussions/{id} [delete]
func (h *DiscussionHandler) Leave(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	discussionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid discussion ID"})
	}

	if err := h.service.Leave(discussionID, userID); err != nil {
		return discussionError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]string{"message": "Left discussion"})
}

// UnreadCount godoc
// @Summary Count unread messages
// @Description Total unread messages across the caller's non-muted discussions
// @Tags discussions
// @Produce json
// @Success 200 {object} map[string]int64
// @Failure 401 {object} map[string]string
// @Router /discussions/unread-count [get]
func (h *DiscussionHandler) UnreadCount(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	count, err := h.service.UnreadCount(userID)
	if err != nil {
		return discussionError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]int64{"unread_count": count})
}

// CleanupDuplicates godoc
// @Summary Merge duplicate discussions
// @Description Collapse the caller's discussions that share identical participant sets
// @Tags discussions
// @Produce json
// @Success 200 {object} discussions.CleanupResult
// @Failure 401 {object} map[string]string
// @Router /discussions/cleanup-duplicates [post]
func (h *DiscussionHandler) CleanupDuplicates(c echo.Context) error {
	userID, ok := currentUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
	}

	result, err := h.service.CleanupDuplicates(userID)
	if err != nil {
		return discussionError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// notifyParticipants pushes an event to the discussion's other active
// participants over WebSocket. Best-effort.
func (h *DiscussionHandler) notifyParticipants(discussionID, senderID uuid.UUID, event string, payload interface{}) {
	if h.ws == nil {
		return
	}

	view, err := h.service.GetDiscussion(discussionID, senderID)
	if err != nil {
		return
	}

	var targets []uuid.UUID
	for _, p := range view.Participants {
		if p.UserID != senderID {
			targets = append(targets, p.UserID)
		}
	}
	if len(targets) > 0 {
		h.ws.BroadcastToUsers(targets, event, payload)
	}
}
