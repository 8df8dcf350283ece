package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lingua-scheduler-api/internal/dto"
	"github.com/noah-isme/lingua-scheduler-api/internal/service"
	"github.com/noah-isme/lingua-scheduler-api/pkg/response"
)

type classSessionManager interface {
	Create(ctx context.Context, req dto.CreateSessionRequest) (*dto.SessionResponse, error)
	Get(ctx context.Context, id string) (*dto.SessionResponse, error)
	Update(ctx context.Context, id string, req dto.UpdateSessionRequest) (*dto.SessionResponse, error)
	Delete(ctx context.Context, id string) (*dto.DeleteSessionResponse, error)
	Weekly(ctx context.Context, query dto.WeeklyScheduleQuery) (*dto.WeeklyScheduleResponse, error)
	ExportWeekly(ctx context.Context, query dto.ExportWeeklyQuery) (*dto.ExportResult, error)
	Suggest(ctx context.Context, req dto.SuggestPlacementRequest) (*dto.SuggestPlacementResponse, error)
}

// ClassSessionHandler exposes manual session management and schedule views.
type ClassSessionHandler struct {
	service classSessionManager
}

// NewClassSessionHandler constructs the handler.
func NewClassSessionHandler(svc *service.ClassSessionService) *ClassSessionHandler {
	return &ClassSessionHandler{service: svc}
}

// Create godoc
// @Summary Create a class session
// @Description Room is allocated automatically when room_id is omitted.
// @Tags Sessions
// @Accept json
// @Produce json
// @Param payload body dto.CreateSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /sessions [post]
func (h *ClassSessionHandler) Create(c *gin.Context) {
	var req dto.CreateSessionRequest
	if !bindJSON(c, &req, "invalid session payload") {
		return
	}
	result, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Get godoc
// @Summary Get a class session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [get]
func (h *ClassSessionHandler) Get(c *gin.Context) {
	result, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Update godoc
// @Summary Update a class session
// @Tags Sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.UpdateSessionRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [patch]
func (h *ClassSessionHandler) Update(c *gin.Context) {
	var req dto.UpdateSessionRequest
	if !bindJSON(c, &req, "invalid session payload") {
		return
	}
	result, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Cancel a class session
// @Tags Sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id} [delete]
func (h *ClassSessionHandler) Delete(c *gin.Context) {
	result, err := h.service.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Weekly godoc
// @Summary Weekly schedule view
// @Tags Schedules
// @Produce json
// @Param start_date query string true "Window start (YYYY-MM-DD)"
// @Param end_date query string true "Window end (YYYY-MM-DD)"
// @Param class_id query string false "Class filter"
// @Param user_id query string false "Teacher or student filter"
// @Success 200 {object} response.Envelope
// @Router /schedules/weekly [get]
func (h *ClassSessionHandler) Weekly(c *gin.Context) {
	var query dto.WeeklyScheduleQuery
	if !bindQuery(c, &query, "invalid weekly query") {
		return
	}
	result, err := h.service.Weekly(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ExportWeekly godoc
// @Summary Export the weekly schedule
// @Tags Schedules
// @Produce text/csv
// @Produce application/pdf
// @Param start_date query string true "Window start (YYYY-MM-DD)"
// @Param end_date query string true "Window end (YYYY-MM-DD)"
// @Param class_id query string false "Class filter"
// @Param user_id query string false "Teacher or student filter"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /schedules/weekly/export [get]
func (h *ClassSessionHandler) ExportWeekly(c *gin.Context) {
	var query dto.ExportWeeklyQuery
	if !bindQuery(c, &query, "invalid export query") {
		return
	}
	result, err := h.service.ExportWeekly(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, result.Filename, result.ContentType, result.Data)
}

// Suggest godoc
// @Summary Suggest free placements
// @Description Reports whether a placement is free and otherwise lists alternative blocks of the same length.
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body dto.SuggestPlacementRequest true "Desired placement"
// @Success 200 {object} response.Envelope
// @Router /schedules/suggestions [post]
func (h *ClassSessionHandler) Suggest(c *gin.Context) {
	var req dto.SuggestPlacementRequest
	if !bindJSON(c, &req, "invalid suggestion payload") {
		return
	}
	result, err := h.service.Suggest(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
