package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lingua-scheduler-api/internal/dto"
	"github.com/noah-isme/lingua-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/lingua-scheduler-api/pkg/errors"
	"github.com/noah-isme/lingua-scheduler-api/pkg/export"
)

const defaultMaxSuggestions = 5

type classSessionStore interface {
	FindByID(ctx context.Context, id string) (*models.ClassSession, error)
	Create(ctx context.Context, session *models.ClassSession) error
	Update(ctx context.Context, session *models.ClassSession) error
	UpdateStatus(ctx context.Context, id string, status models.SessionStatus) error
	ListWeekly(ctx context.Context, filter models.WeeklyFilter) ([]models.WeeklySession, error)
}

type sessionClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
}

type sessionRoomReader interface {
	FindByID(ctx context.Context, id string) (*models.Room, error)
}

// ClassSessionConfig tunes manual session operations.
type ClassSessionConfig struct {
	MaxSlots             int
	MaxWindowDays        int
	SuggestionSearchDays int
	WeeklyCacheTTL       time.Duration
}

// ClassSessionService handles manual placement, edits and read views of class sessions.
type ClassSessionService struct {
	sessions  classSessionStore
	classes   sessionClassReader
	users     schedulerUserReader
	rooms     sessionRoomReader
	conflicts *ScheduleConflictChecker
	allocator *RoomAllocator
	catalog   *TimeSlotCatalog
	notifier  sessionNotifier
	cache     *CacheService
	metrics   *MetricsService
	exporters map[string]export.Exporter
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ClassSessionConfig
}

// NewClassSessionService constructs the manual session service.
func NewClassSessionService(
	sessions classSessionStore,
	classes sessionClassReader,
	users schedulerUserReader,
	rooms sessionRoomReader,
	conflicts *ScheduleConflictChecker,
	allocator *RoomAllocator,
	catalog *TimeSlotCatalog,
	notifier sessionNotifier,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ClassSessionConfig,
) *ClassSessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxSlots <= 0 || cfg.MaxSlots > catalog.MaxSlot() {
		cfg.MaxSlots = catalog.MaxSlot()
	}
	if cfg.MaxWindowDays <= 0 {
		cfg.MaxWindowDays = 120
	}
	if cfg.SuggestionSearchDays <= 0 {
		cfg.SuggestionSearchDays = 7
	}
	csv := export.NewCSVExporter()
	pdf := export.NewPDFExporter()
	return &ClassSessionService{
		sessions:  sessions,
		classes:   classes,
		users:     users,
		rooms:     rooms,
		conflicts: conflicts,
		allocator: allocator,
		catalog:   catalog,
		notifier:  notifier,
		cache:     cache,
		metrics:   metrics,
		exporters: map[string]export.Exporter{csv.Extension(): csv, pdf.Extension(): pdf},
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Create places a single session after checking the teacher and room are free.
func (s *ClassSessionService) Create(ctx context.Context, req dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	class, err := s.loadClass(ctx, req.ClassID)
	if err != nil {
		return nil, err
	}
	date, _ := parseDate(req.SessionDate)
	slots := sortedSlots(req.Slots)
	if err := s.catalog.ValidateBlock(slots, s.cfg.MaxSlots); err != nil {
		return nil, err
	}

	teacherID := class.Teacher()
	if req.TeacherID != nil {
		teacherID = *req.TeacherID
	}
	if teacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "class has no teacher; teacher_id is required")
	}
	if err := s.ensureTeacher(ctx, teacherID); err != nil {
		return nil, err
	}
	if err := s.ensureTeacherFree(ctx, teacherID, date, slots, ""); err != nil {
		return nil, err
	}

	var room *models.Room
	if req.RoomID != nil {
		room, err = s.loadRoom(ctx, *req.RoomID, class)
		if err != nil {
			return nil, err
		}
		if err := s.ensureRoomFree(ctx, room.ID, date, slots, ""); err != nil {
			return nil, err
		}
	} else {
		room, err = s.allocator.FindAvailableRoom(ctx, date, slots, class.MaxStudents, nil)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate room")
		}
		if room == nil {
			return nil, conflictError(dto.ConflictRoomUnavailable, models.ConflictDimensionRoom, "", date, slots, "no available room fits this class in the requested slots")
		}
	}

	startTime, endTime, err := s.catalog.SlotsToRange(slots)
	if err != nil {
		return nil, err
	}
	topic := fmt.Sprintf("Lesson for %s", class.Name)
	if req.Topic != nil && strings.TrimSpace(*req.Topic) != "" {
		topic = strings.TrimSpace(*req.Topic)
	}

	session := &models.ClassSession{
		ClassID:     class.ID,
		TeacherID:   teacherID,
		RoomID:      room.ID,
		SessionDate: date,
		StartTime:   startTime,
		EndTime:     endTime,
		Slots:       models.SlotSet(slots),
		Topic:       topic,
		Notes:       req.Notes,
		Status:      models.SessionStatusScheduled,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create session")
	}

	s.metrics.AddSessionsCreated("manual", 1)
	s.afterMutation(ctx, *session, models.NotificationSessionScheduled)
	return toSessionResponse(*session), nil
}

// Update patches a session. Placement changes are re-checked against other sessions, never against itself.
func (s *ClassSessionService) Update(ctx context.Context, id string, req dto.UpdateSessionRequest) (*dto.SessionResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid session payload")
	}
	current, err := s.loadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := *current
	var placementChanged, teacherChanged, roomChanged bool

	if req.SessionDate != nil {
		date, _ := parseDate(*req.SessionDate)
		if !date.Equal(current.SessionDate) {
			updated.SessionDate = date
			placementChanged = true
		}
	}
	if len(req.Slots) > 0 {
		slots := sortedSlots(req.Slots)
		if err := s.catalog.ValidateBlock(slots, s.cfg.MaxSlots); err != nil {
			return nil, err
		}
		if !equalSlots(slots, current.Slots) {
			updated.Slots = models.SlotSet(slots)
			placementChanged = true
		}
	}
	if req.TeacherID != nil && *req.TeacherID != current.TeacherID {
		if err := s.ensureTeacher(ctx, *req.TeacherID); err != nil {
			return nil, err
		}
		updated.TeacherID = *req.TeacherID
		teacherChanged = true
	}
	if req.RoomID != nil && *req.RoomID != current.RoomID {
		class, err := s.loadClass(ctx, current.ClassID)
		if err != nil {
			return nil, err
		}
		room, err := s.loadRoom(ctx, *req.RoomID, class)
		if err != nil {
			return nil, err
		}
		updated.RoomID = room.ID
		roomChanged = true
	}
	if req.Topic != nil {
		updated.Topic = strings.TrimSpace(*req.Topic)
	}
	if req.Notes != nil {
		updated.Notes = req.Notes
	}
	if req.Status != nil {
		updated.Status = models.SessionStatus(*req.Status)
	}

	moved := placementChanged || teacherChanged || roomChanged
	if moved && current.Status == models.SessionStatusCancelled {
		return nil, appErrors.Clone(appErrors.ErrConflict, "cancelled sessions cannot be rescheduled")
	}
	if updated.Status.Blocking() {
		if placementChanged || teacherChanged || (!current.Status.Blocking()) {
			if err := s.ensureTeacherFree(ctx, updated.TeacherID, updated.SessionDate, updated.Slots, updated.ID); err != nil {
				return nil, err
			}
		}
		if placementChanged || roomChanged || (!current.Status.Blocking()) {
			if err := s.ensureRoomFree(ctx, updated.RoomID, updated.SessionDate, updated.Slots, updated.ID); err != nil {
				return nil, err
			}
		}
	}
	if placementChanged {
		startTime, endTime, err := s.catalog.SlotsToRange(updated.Slots)
		if err != nil {
			return nil, err
		}
		updated.StartTime, updated.EndTime = startTime, endTime
	}

	if err := s.sessions.Update(ctx, &updated); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update session")
	}

	switch {
	case updated.Status == models.SessionStatusCancelled && current.Status != models.SessionStatusCancelled:
		s.afterMutation(ctx, updated, models.NotificationSessionCancelled)
	case moved:
		s.afterMutation(ctx, updated, models.NotificationSessionRescheduled)
	default:
		s.cache.InvalidateWeekly(ctx)
	}
	return toSessionResponse(updated), nil
}

// Delete cancels a session. The row is kept with status cancelled.
func (s *ClassSessionService) Delete(ctx context.Context, id string) (*dto.DeleteSessionResponse, error) {
	session, err := s.loadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionStatusCancelled {
		return &dto.DeleteSessionResponse{Success: true}, nil
	}
	if err := s.sessions.UpdateStatus(ctx, id, models.SessionStatusCancelled); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel session")
	}
	session.Status = models.SessionStatusCancelled
	s.afterMutation(ctx, *session, models.NotificationSessionCancelled)
	return &dto.DeleteSessionResponse{Success: true}, nil
}

// Get returns a session by id.
func (s *ClassSessionService) Get(ctx context.Context, id string) (*dto.SessionResponse, error) {
	session, err := s.loadSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return toSessionResponse(*session), nil
}

// Weekly lists scheduled sessions in a window, optionally for one class or one participant.
func (s *ClassSessionService) Weekly(ctx context.Context, query dto.WeeklyScheduleQuery) (*dto.WeeklyScheduleResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid weekly schedule query")
	}
	start, _ := parseDate(query.StartDate)
	end, _ := parseDate(query.EndDate)
	if end.Before(start) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must not be before start_date")
	}
	if int(end.Sub(start).Hours()/24)+1 > s.cfg.MaxWindowDays {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("window may span at most %d days", s.cfg.MaxWindowDays))
	}

	key := WeeklyKey(query.StartDate, query.EndDate, query.ClassID, query.UserID)
	var cached dto.WeeklyScheduleResponse
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return &cached, nil
	}

	rows, err := s.sessions.ListWeekly(ctx, models.WeeklyFilter{StartDate: start, EndDate: end, ClassID: query.ClassID, UserID: query.UserID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load weekly schedule")
	}
	resp := &dto.WeeklyScheduleResponse{
		StartDate: query.StartDate,
		EndDate:   query.EndDate,
		Total:     len(rows),
		Sessions:  make([]dto.WeeklySessionView, 0, len(rows)),
	}
	for _, row := range rows {
		resp.Sessions = append(resp.Sessions, dto.WeeklySessionView{
			ID:          row.ID,
			ClassID:     row.ClassID,
			ClassName:   row.ClassName,
			TeacherID:   row.TeacherID,
			TeacherName: row.TeacherName,
			RoomID:      row.RoomID,
			RoomName:    row.RoomName,
			SessionDate: row.SessionDate.Format(dateLayout),
			DayOfWeek:   DayName(row.SessionDate),
			StartTime:   row.StartTime,
			EndTime:     row.EndTime,
			Slots:       []int(row.Slots),
			Topic:       row.Topic,
			Status:      string(row.Status),
		})
	}
	_ = s.cache.Set(ctx, key, resp, s.cfg.WeeklyCacheTTL)
	return resp, nil
}

// ExportWeekly renders the weekly projection as CSV or PDF.
func (s *ClassSessionService) ExportWeekly(ctx context.Context, query dto.ExportWeeklyQuery) (*dto.ExportResult, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export query")
	}
	format := strings.ToLower(query.Format)
	if format == "" {
		format = "csv"
	}
	exporter, ok := s.exporters[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", query.Format))
	}
	weekly, err := s.Weekly(ctx, query.WeeklyScheduleQuery)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{Headers: []string{"Date", "Day", "Start", "End", "Slots", "Class", "Teacher", "Room", "Topic"}}
	for _, row := range weekly.Sessions {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Date":    row.SessionDate,
			"Day":     row.DayOfWeek,
			"Start":   row.StartTime,
			"End":     row.EndTime,
			"Slots":   joinSlots(row.Slots),
			"Class":   row.ClassName,
			"Teacher": row.TeacherName,
			"Room":    row.RoomName,
			"Topic":   row.Topic,
		})
	}
	title := fmt.Sprintf("Schedule %s to %s", weekly.StartDate, weekly.EndDate)
	data, err := exporter.Render(dataset, title)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &dto.ExportResult{
		Filename:    fmt.Sprintf("schedule_%s_%s.%s", weekly.StartDate, weekly.EndDate, exporter.Extension()),
		ContentType: exporter.ContentType(),
		Data:        data,
	}, nil
}

// Suggest checks a desired placement and, when it is taken, proposes free blocks of the same
// length on that date and the following days. It only reads persisted sessions.
func (s *ClassSessionService) Suggest(ctx context.Context, req dto.SuggestPlacementRequest) (*dto.SuggestPlacementResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid suggestion payload")
	}
	class, err := s.loadClass(ctx, req.ClassID)
	if err != nil {
		return nil, err
	}
	teacherID := class.Teacher()
	if req.TeacherID != nil {
		teacherID = *req.TeacherID
	}
	if teacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "class has no teacher; teacher_id is required")
	}
	date, _ := parseDate(req.SessionDate)
	slots := sortedSlots(req.Slots)
	if err := s.catalog.ValidateBlock(slots, s.cfg.MaxSlots); err != nil {
		return nil, err
	}

	kind, _, err := s.placementStatus(ctx, *class, teacherID, date, slots)
	if err != nil {
		return nil, err
	}
	if kind == "" {
		return &dto.SuggestPlacementResponse{Available: true}, nil
	}

	searchDays := req.SearchDays
	if searchDays <= 0 {
		searchDays = s.cfg.SuggestionSearchDays
	}
	limit := req.MaxSuggestions
	if limit <= 0 {
		limit = defaultMaxSuggestions
	}

	info := newConflictInfo(*class, kind, date, slots)
	for offset := 0; offset <= searchDays && len(info.Suggestions) < limit; offset++ {
		day := date.AddDate(0, 0, offset)
		for _, block := range s.catalog.BlocksOfLength(len(slots)) {
			if len(info.Suggestions) >= limit {
				break
			}
			if offset == 0 && equalSlots(block, slots) {
				continue
			}
			blockKind, room, err := s.placementStatus(ctx, *class, teacherID, day, block)
			if err != nil {
				return nil, err
			}
			if blockKind != "" {
				continue
			}
			startTime, endTime, _ := s.catalog.SlotsToRange(block)
			info.Suggestions = append(info.Suggestions, dto.PlacementSuggestion{
				SessionDate: day.Format(dateLayout),
				DayOfWeek:   DayName(day),
				Slots:       block,
				StartTime:   startTime,
				EndTime:     endTime,
				RoomID:      room.ID,
				RoomName:    room.Name,
			})
		}
	}
	if len(info.Suggestions) == 0 {
		info.ConflictType = dto.ConflictNoSlots
		info.Reason = conflictReasons[dto.ConflictNoSlots]
	}
	return &dto.SuggestPlacementResponse{Available: false, Conflict: info}, nil
}

// placementStatus returns an empty conflict type and the allocated room when the placement is free.
func (s *ClassSessionService) placementStatus(ctx context.Context, class models.Class, teacherID string, date time.Time, slots []int) (dto.ConflictType, *models.Room, error) {
	busy, err := s.conflicts.TeacherConflict(ctx, teacherID, date, slots, "", nil)
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher availability")
	}
	if busy {
		return dto.ConflictTeacherBusy, nil, nil
	}
	room, err := s.allocator.FindAvailableRoom(ctx, date, slots, class.MaxStudents, nil)
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to allocate room")
	}
	if room == nil {
		return dto.ConflictRoomUnavailable, nil, nil
	}
	return "", room, nil
}

func (s *ClassSessionService) afterMutation(ctx context.Context, session models.ClassSession, kind models.NotificationType) {
	if s.notifier != nil {
		s.notifier.NotifySessions(ctx, []models.ClassSession{session}, kind)
	}
	s.cache.InvalidateWeekly(ctx)
	s.logger.Info("class session changed",
		zap.String("session_id", session.ID),
		zap.String("class_id", session.ClassID),
		zap.String("event", string(kind)),
	)
}

func (s *ClassSessionService) ensureTeacherFree(ctx context.Context, teacherID string, date time.Time, slots []int, excludeID string) error {
	busy, err := s.conflicts.TeacherConflict(ctx, teacherID, date, slots, excludeID, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check teacher availability")
	}
	if busy {
		return conflictError(dto.ConflictTeacherBusy, models.ConflictDimensionTeacher, teacherID, date, slots, "teacher already has a session in the requested slots")
	}
	return nil
}

func (s *ClassSessionService) ensureRoomFree(ctx context.Context, roomID string, date time.Time, slots []int, excludeID string) error {
	busy, err := s.conflicts.RoomConflict(ctx, roomID, date, slots, excludeID, nil)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check room availability")
	}
	if busy {
		return conflictError(dto.ConflictRoomUnavailable, models.ConflictDimensionRoom, roomID, date, slots, "room is already booked in the requested slots")
	}
	return nil
}

func (s *ClassSessionService) loadClass(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.classes.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

func (s *ClassSessionService) loadSession(ctx context.Context, id string) (*models.ClassSession, error) {
	session, err := s.sessions.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "session not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session")
	}
	return session, nil
}

func (s *ClassSessionService) ensureTeacher(ctx context.Context, id string) error {
	if _, err := s.users.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return nil
}

func (s *ClassSessionService) loadRoom(ctx context.Context, id string, class *models.Class) (*models.Room, error) {
	room, err := s.rooms.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}
	if room.Status != models.RoomStatusAvailable {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("room %s is not available", room.Name))
	}
	if room.Capacity < class.MaxStudents {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("room %s holds %d people but the class needs %d", room.Name, room.Capacity, class.MaxStudents))
	}
	return room, nil
}

func conflictError(kind dto.ConflictType, dimension, resourceID string, date time.Time, slots []int, message string) error {
	payload := &models.ScheduleConflictError{
		Type:    string(kind),
		Message: message,
		Conflict: models.SessionConflict{
			Dimension:   dimension,
			ResourceID:  resourceID,
			SessionDate: date.Format(dateLayout),
			Slots:       append([]int(nil), slots...),
		},
	}
	return appErrors.Wrap(payload, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, message)
}

func toSessionResponse(session models.ClassSession) *dto.SessionResponse {
	return &dto.SessionResponse{
		ID:          session.ID,
		ClassID:     session.ClassID,
		TeacherID:   session.TeacherID,
		RoomID:      session.RoomID,
		SessionDate: session.SessionDate.Format(dateLayout),
		DayOfWeek:   DayName(session.SessionDate),
		StartTime:   session.StartTime,
		EndTime:     session.EndTime,
		Slots:       []int(session.Slots),
		Topic:       session.Topic,
		Notes:       session.Notes,
		Status:      string(session.Status),
	}
}

func equalSlots(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := sortedSlots(a), sortedSlots(b)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

func joinSlots(slots []int) string {
	parts := make([]string, len(slots))
	for i, n := range slots {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}
