package handlers

import (
	"net/http"

	"tripdesk/internal/repo"
	"tripdesk/pkg/models"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// ProgramHandler handles program endpoints
type ProgramHandler struct {
	programRepo *repo.ProgramRepository
}

// NewProgramHandler creates a new program handler
func NewProgramHandler(programRepo *repo.ProgramRepository) *ProgramHandler {
	return &ProgramHandler{programRepo: programRepo}
}

// List godoc
// @Summary List programs
// @Description List the caller tenant's programs
// @Tags programs
// @Produce json
// @Success 200 {array} models.Program
// @Failure 401 {object} map[string]string
// @Router /programs [get]
func (h *ProgramHandler) List(c echo.Context) error {
	tenantID, ok := c.Get("tenant_id").(uuid.UUID)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "tenant context required"})
	}

	programs, err := h.programRepo.ListByTenant(tenantID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list programs"})
	}

	return c.JSON(http.StatusOK, programs)
}

// GetByID godoc
// @Summary Get a program
// @Tags programs
// @Produce json
// @Param id path string true "Program ID"
// @Success 200 {object} models.Program
// @Failure 404 {object} map[string]string
// @Router /programs/{id} [get]
func (h *ProgramHandler) GetByID(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid program ID"})
	}

	program, err := h.programRepo.GetByID(id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "program not found"})
	}

	return c.JSON(http.StatusOK, program)
}

// ProgramRequest is the create/update program request body
type ProgramRequest struct {
	Name     string `json:"name" validate:"required"`
	Code     string `json:"code"`
	IsActive *bool  `json:"is_active"`
}

// Create godoc
// @Summary Create a program
// @Tags programs
// @Accept json
// @Produce json
// @Param request body ProgramRequest true "Program data"
// @Success 201 {object} models.Program
// @Failure 400 {object} map[string]string
// @Router /programs [post]
func (h *ProgramHandler) Create(c echo.Context) error {
	tenantID, ok := c.Get("tenant_id").(uuid.UUID)
	if !ok {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "tenant context required"})
	}

	var req ProgramRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	program := &models.Program{
		Name:     req.Name,
		Code:     req.Code,
		IsActive: true,
	}
	program.TenantID = tenantID
	if req.IsActive != nil {
		program.IsActive = *req.IsActive
	}

	if err := h.programRepo.Create(program); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create program"})
	}

	return c.JSON(http.StatusCreated, program)
}

// Update godoc
// @Summary Update a program
// @Tags programs
// @Accept json
// @Produce json
// @Param id path string true "Program ID"
// @Param request body ProgramRequest true "Program data"
// @Success 200 {object} models.Program
// @Failure 404 {object} map[string]string
// @Router /programs/{id} [put]
func (h *ProgramHandler) Update(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid program ID"})
	}

	program, err := h.programRepo.GetByID(id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "program not found"})
	}

	var req ProgramRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if err := c.Validate(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	program.Name = req.Name
	program.Code = req.Code
	if req.IsActive != nil {
		program.IsActive = *req.IsActive
	}

	if err := h.programRepo.Update(program); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to update program"})
	}

	return c.JSON(http.StatusOK, program)
}
