package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lingua-scheduler-api/internal/dto"
	internalmiddleware "github.com/noah-isme/lingua-scheduler-api/internal/middleware"
	"github.com/noah-isme/lingua-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/lingua-scheduler-api/pkg/errors"
)

type scheduleGeneratorMock struct {
	captured    dto.GenerateScheduleRequest
	applied     dto.ApplyProposalRequest
	generateErr error
}

func (m *scheduleGeneratorMock) Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.ScheduleProposal, error) {
	m.captured = req
	if m.generateErr != nil {
		return nil, m.generateErr
	}
	return &dto.ScheduleProposal{ProposalID: "proposal-1", TotalClasses: 1}, nil
}

func (m *scheduleGeneratorMock) GetProposal(ctx context.Context, id string) (*dto.ScheduleProposal, error) {
	if id != "proposal-1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	return &dto.ScheduleProposal{ProposalID: id}, nil
}

func (m *scheduleGeneratorMock) Apply(ctx context.Context, req dto.ApplyProposalRequest) (*dto.ApplyProposalResponse, error) {
	m.applied = req
	return &dto.ApplyProposalResponse{CreatedCount: 2, Message: "2 sessions created", SessionIDs: []string{"s1", "s2"}}, nil
}

func newJSONContext(method, target string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	req, _ := http.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestScheduleGenerateSuccess(t *testing.T) {
	mockSvc := &scheduleGeneratorMock{}
	handler := &ScheduleGeneratorHandler{service: mockSvc}
	c, w := newJSONContext(http.MethodPost, "/schedules/generate", validGeneratorPayload())

	handler.Generate(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-01-01", mockSvc.captured.StartDate)
	assert.Equal(t, 2, mockSvc.captured.MaxSlotsPerSession)
	assert.Equal(t, []int{1, 2}, mockSvc.captured.TeacherConflictMap["teacher-1"]["2024-01-01"])
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, "preview", envelope["meta"].(map[string]interface{})["mode"])
	assert.Equal(t, "proposal-1", envelope["data"].(map[string]interface{})["proposal_id"])
}

func TestScheduleGenerateMalformedBody(t *testing.T) {
	handler := &ScheduleGeneratorHandler{service: &scheduleGeneratorMock{}}
	c, w := newJSONContext(http.MethodPost, "/schedules/generate", []byte(`{"start_date":`))

	handler.Generate(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestScheduleGenerateInfeasibleCarriesDetails(t *testing.T) {
	infeasible := &models.ScheduleInfeasibleError{ClassID: "class-1", ClassName: "English A1", Target: 2, Achieved: 1}
	mockSvc := &scheduleGeneratorMock{generateErr: appErrors.Wrap(infeasible, appErrors.ErrInfeasible.Code, appErrors.ErrInfeasible.Status, "target unmet")}
	handler := &ScheduleGeneratorHandler{service: mockSvc}
	c, w := newJSONContext(http.MethodPost, "/schedules/generate", validGeneratorPayload())

	handler.Generate(c)

	require.Equal(t, http.StatusConflict, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Equal(t, appErrors.ErrInfeasible.Code, envelope["error"].(map[string]interface{})["code"])
	details := envelope["details"].(map[string]interface{})
	assert.Equal(t, "class-1", details["class_id"])
	assert.Equal(t, float64(2), details["target"])
}

func TestScheduleApplyByID(t *testing.T) {
	mockSvc := &scheduleGeneratorMock{}
	handler := &ScheduleGeneratorHandler{service: mockSvc}
	c, w := newJSONContext(http.MethodPost, "/schedules/apply", []byte(`{"proposal_id":"proposal-1"}`))

	handler.Apply(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "proposal-1", mockSvc.applied.ProposalID)
	assert.Nil(t, mockSvc.applied.Proposal)
}

func TestScheduleGetProposal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &ScheduleGeneratorHandler{service: &scheduleGeneratorMock{}}
	router := gin.New()
	router.GET("/schedules/proposals/:id", handler.GetProposal)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/schedules/proposals/proposal-1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/schedules/proposals/other", nil))
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestScheduleGenerateUnauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &ScheduleGeneratorHandler{service: &scheduleGeneratorMock{}}
	router := gin.New()
	router.POST("/schedules/generate", internalmiddleware.RBAC(string(models.RoleAdmin)), handler.Generate)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/schedules/generate", bytes.NewReader(validGeneratorPayload()))
	req.Header.Set("Content-Type", "application/json")

	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestScheduleGenerateForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := &ScheduleGeneratorHandler{service: &scheduleGeneratorMock{}}
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-1", Role: models.RoleTeacher})
		c.Next()
	})
	router.POST("/schedules/generate", internalmiddleware.RBAC(string(models.RoleAdmin), string(models.RoleSuperAdmin)), handler.Generate)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/schedules/generate", bytes.NewReader(validGeneratorPayload()))
	req.Header.Set("Content-Type", "application/json")

	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func validGeneratorPayload() []byte {
	return []byte(`{"start_date":"2024-01-01","end_date":"2024-01-07","max_slots_per_session":2,"prefer_morning":true,"teacher_conflict_map":{"teacher-1":{"2024-01-01":[1,2]}}}`)
}
