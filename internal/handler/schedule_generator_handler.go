package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lingua-scheduler-api/internal/dto"
	"github.com/noah-isme/lingua-scheduler-api/internal/service"
	"github.com/noah-isme/lingua-scheduler-api/pkg/response"
)

type scheduleGenerator interface {
	Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.ScheduleProposal, error)
	GetProposal(ctx context.Context, id string) (*dto.ScheduleProposal, error)
	Apply(ctx context.Context, req dto.ApplyProposalRequest) (*dto.ApplyProposalResponse, error)
}

// ScheduleGeneratorHandler exposes scheduler endpoints.
type ScheduleGeneratorHandler struct {
	service scheduleGenerator
}

// NewScheduleGeneratorHandler constructs the handler.
func NewScheduleGeneratorHandler(svc *service.ScheduleGeneratorService) *ScheduleGeneratorHandler {
	return &ScheduleGeneratorHandler{service: svc}
}

// Generate godoc
// @Summary Generate a class-session proposal for a date window
// @Description Plans sessions for active classes without persisting them. Fails with 409 when any class cannot reach its weekly target.
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param payload body dto.GenerateScheduleRequest true "Generation window and options"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schedules/generate [post]
func (h *ScheduleGeneratorHandler) Generate(c *gin.Context) {
	var req dto.GenerateScheduleRequest
	if !bindJSON(c, &req, "invalid generate payload") {
		return
	}
	result, err := h.service.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, map[string]interface{}{"mode": "preview"})
}

// Apply godoc
// @Summary Persist a schedule proposal
// @Description Inserts every proposed session in one transaction. Applying the same proposal twice creates duplicates.
// @Tags Scheduler
// @Accept json
// @Produce json
// @Param payload body dto.ApplyProposalRequest true "Proposal body or stored proposal id"
// @Success 201 {object} response.Envelope
// @Router /schedules/apply [post]
func (h *ScheduleGeneratorHandler) Apply(c *gin.Context) {
	var req dto.ApplyProposalRequest
	if !bindJSON(c, &req, "invalid apply payload") {
		return
	}
	result, err := h.service.Apply(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// GetProposal godoc
// @Summary Fetch a stored proposal
// @Tags Scheduler
// @Produce json
// @Param id path string true "Proposal ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /schedules/proposals/{id} [get]
func (h *ScheduleGeneratorHandler) GetProposal(c *gin.Context) {
	result, err := h.service.GetProposal(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
