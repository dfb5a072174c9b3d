package handlers

import (
	"net/http"
	"strconv"

	"tripdesk/internal/repo"
	"tripdesk/pkg/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// TenantHandler handles tenant administration endpoints
type TenantHandler struct {
	tenantRepo *repo.TenantRepository
}

// NewTenantHandler creates a new tenant handler
func NewTenantHandler(tenantRepo *repo.TenantRepository) *TenantHandler {
	return &TenantHandler{tenantRepo: tenantRepo}
}

// List godoc
// @Summary List tenants
// @Tags admin
// @Produce json
// @Param limit query int false "Page size" default(20)
// @Param offset query int false "Page offset" default(0)
// @Success 200 {object} models.PaginationResult[models.Tenant]
// @Failure 403 {object} map[string]string
// @Router /admin/tenants [get]
func (h *TenantHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	if offset < 0 {
		offset = 0
	}

	result, err := h.tenantRepo.List(limit, offset)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list tenants"})
	}

	return c.JSON(http.StatusOK, result)
}

// GetByID godoc
// @Summary Get a tenant
// @Tags admin
// @Produce json
// @Param id path string true "Tenant ID"
// @Success 200 {object} models.Tenant
// @Failure 404 {object} map[string]string
// @Router /admin/tenants/{id} [get]
func (h *TenantHandler) GetByID(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
	}

	tenant, err := h.tenantRepo.GetByID(id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "tenant not found"})
	}

	return c.JSON(http.StatusOK, tenant)
}

// TenantRequest is the create/update tenant request body
type TenantRequest struct {
	Name   string `json:"name" validate:"required"`
	Domain string `json:"domain"`
	Status string `json:"status"`
}

// Create godoc
// @Summary Create a tenant
// @Tags admin
// @Accept json
// @Produce json
// @Param request body TenantRequest true "Tenant data"
// @Success 201 {object} models.Tenant
// @Failure 400 {object} map[string]string
// @Router /admin/tenants [post]
func (h *TenantHandler) Create(c echo.Context) error {
	var req TenantRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	tenant := &models.Tenant{
		Name:   req.Name,
		Domain: req.Domain,
	}
	if req.Status != "" {
		tenant.Status = req.Status
	}

	if err := h.tenantRepo.Create(tenant); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create tenant"})
	}

	return c.JSON(http.StatusCreated, tenant)
}

// Update godoc
// @Summary Update a tenant
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "Tenant ID"
// @Param request body TenantRequest true "Tenant data"
// @Success 200 {object} models.Tenant
// @Failure 404 {object} map[string]string
// @Router /admin/tenants/{id} [put]
func (h *TenantHandler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid tenant ID"})
	}

	tenant, err := h.tenantRepo.GetByID(id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "tenant not found"})
	}

	var req TenantRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	tenant.Name = req.Name
	tenant.Domain = req.Domain
	if req.Status != "" {
		tenant.Status = req.Status
	}

	if err := h.tenantRepo.Update(tenant); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to update tenant"})
	}

	return c.JSON(http.StatusOK, tenant)
}
