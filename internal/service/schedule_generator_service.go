package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/lingua-scheduler-api/internal/dto"
	"github.com/noah-isme/lingua-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/lingua-scheduler-api/pkg/errors"
)

type schedulerClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	ListActive(ctx context.Context, ids []string) ([]models.Class, error)
}

type schedulerUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type sessionBulkWriter interface {
	BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, sessions []models.ClassSession) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type sessionNotifier interface {
	NotifySessions(ctx context.Context, sessions []models.ClassSession, kind models.NotificationType)
}

type weeklyCacheInvalidator interface {
	InvalidateWeekly(ctx context.Context)
}

// ScheduleGeneratorConfig governs generator behaviour.
type ScheduleGeneratorConfig struct {
	ProposalTTL     time.Duration
	MaxWindowDays   int
	DefaultMaxSlots int
}

// ScheduleGeneratorService plans class sessions over a date window and applies accepted proposals.
// Generation is sequential: every placement is checked against the proposals accumulated earlier in the same run.
type ScheduleGeneratorService struct {
	classes   schedulerClassReader
	users     schedulerUserReader
	sessions  sessionBulkWriter
	conflicts *ScheduleConflictChecker
	rooms     *RoomAllocator
	rules     RuleSelector
	catalog   *TimeSlotCatalog
	tx        txProvider
	notifier  sessionNotifier
	cache     weeklyCacheInvalidator
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	store     *proposalStore
	cfg       ScheduleGeneratorConfig
}

// NewScheduleGeneratorService wires scheduler dependencies.
func NewScheduleGeneratorService(
	classes schedulerClassReader,
	users schedulerUserReader,
	sessions sessionBulkWriter,
	conflicts *ScheduleConflictChecker,
	rooms *RoomAllocator,
	rules RuleSelector,
	catalog *TimeSlotCatalog,
	tx txProvider,
	notifier sessionNotifier,
	cache weeklyCacheInvalidator,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg ScheduleGeneratorConfig,
) *ScheduleGeneratorService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ProposalTTL <= 0 {
		cfg.ProposalTTL = 30 * time.Minute
	}
	if cfg.MaxWindowDays <= 0 {
		cfg.MaxWindowDays = 120
	}
	if rules == nil {
		rules = NewRandomRuleSelector(catalog, 0)
	}
	return &ScheduleGeneratorService{
		classes:   classes,
		users:     users,
		sessions:  sessions,
		conflicts: conflicts,
		rooms:     rooms,
		rules:     rules,
		catalog:   catalog,
		tx:        tx,
		notifier:  notifier,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		store:     newProposalStore(cfg.ProposalTTL),
		cfg:       cfg,
	}
}

// generationRun accumulates the outcome of one Generate call. It is never shared between calls.
type generationRun struct {
	proposed  []dto.SessionProposal
	conflicts []dto.ConflictInfo
	byType    map[dto.ConflictType]int
	byClass   map[string]int
	targets   map[string]int
}

func newGenerationRun() *generationRun {
	return &generationRun{
		proposed:  []dto.SessionProposal{},
		conflicts: []dto.ConflictInfo{},
		byType:    make(map[dto.ConflictType]int),
		byClass:   make(map[string]int),
		targets:   make(map[string]int),
	}
}

func (r *generationRun) addConflict(info dto.ConflictInfo) {
	r.conflicts = append(r.conflicts, info)
	r.byType[info.ConflictType]++
}

// Generate builds a schedule proposal. If any class cannot reach its session target inside the
// window the whole call fails with ErrInfeasible and no proposal is returned.
func (s *ScheduleGeneratorService) Generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.ScheduleProposal, error) {
	started := time.Now()
	proposal, err := s.generate(ctx, req)
	outcome := GenerationOutcomeSuccess
	if err != nil {
		outcome = GenerationOutcomeError
		if errors.Is(err, appErrors.ErrInfeasible) {
			outcome = GenerationOutcomeInfeasible
		}
	}
	s.metrics.ObserveGeneration(outcome, time.Since(started))
	return proposal, err
}

func (s *ScheduleGeneratorService) generate(ctx context.Context, req dto.GenerateScheduleRequest) (*dto.ScheduleProposal, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule generation payload")
	}
	startDate, _ := parseDate(req.StartDate)
	endDate, _ := parseDate(req.EndDate)
	if endDate.Before(startDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must not be before start_date")
	}
	windowDays := int(endDate.Sub(startDate).Hours()/24) + 1
	if windowDays > s.cfg.MaxWindowDays {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("window may span at most %d days", s.cfg.MaxWindowDays))
	}
	maxSlots, err := s.effectiveMaxSlots(req.MaxSlotsPerSession)
	if err != nil {
		return nil, err
	}

	classes, err := s.loadClasses(ctx, req.ClassIDs)
	if err != nil {
		return nil, err
	}
	teacherNames := make(map[string]string)
	for _, class := range classes {
		if class.Teacher() == "" {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("class %s has no teacher assigned", class.Name))
		}
		if _, ok := teacherNames[class.Teacher()]; ok {
			continue
		}
		name, err := s.teacherName(ctx, class)
		if err != nil {
			return nil, err
		}
		teacherNames[class.Teacher()] = name
	}

	run := newGenerationRun()
	for _, class := range classes {
		target := sessionTarget(class.SessionsPerWeek, windowDays)
		run.targets[class.ID] = target
		achieved := 0
		for date := startDate; !date.After(endDate) && achieved < target; date = date.AddDate(0, 0, 1) {
			rule, conflict := s.rules.SelectRule(class, date, maxSlots, req.PreferMorning)
			if conflict != nil {
				run.addConflict(*conflict)
				continue
			}
			if rule == nil {
				continue
			}
			proposal, conflict, err := s.attempt(ctx, class, date, *rule, achieved+1, req, run.proposed)
			if err != nil {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to evaluate session placement")
			}
			if conflict != nil {
				run.addConflict(*conflict)
				continue
			}
			proposal.TeacherName = teacherNames[class.Teacher()]
			run.proposed = append(run.proposed, *proposal)
			achieved++
		}
		run.byClass[class.ID] = achieved
		if achieved < target {
			s.logger.Warn("schedule target unmet",
				zap.String("class_id", class.ID),
				zap.Int("target", target),
				zap.Int("achieved", achieved),
				zap.Int("window_days", windowDays),
			)
			infeasible := &models.ScheduleInfeasibleError{ClassID: class.ID, ClassName: class.Name, Target: target, Achieved: achieved}
			return nil, appErrors.Wrap(infeasible, appErrors.ErrInfeasible.Code, appErrors.ErrInfeasible.Status,
				fmt.Sprintf("class %s reached %d of %d required sessions; widen the window, raise the slot cap or remove conflicts", class.Name, achieved, target))
		}
	}

	result := &dto.ScheduleProposal{
		ProposalID:         uuid.NewString(),
		TotalClasses:       len(classes),
		SuccessfulSessions: len(run.proposed),
		ConflictCount:      len(run.conflicts),
		Sessions:           run.proposed,
		Conflicts:          run.conflicts,
		Statistics: dto.ScheduleStatistics{
			WindowDays:      windowDays,
			TotalAttempts:   len(run.proposed) + len(run.conflicts),
			SuccessRate:     successRate(len(run.proposed), len(run.conflicts)),
			ConflictsByType: run.byType,
			SessionsByClass: run.byClass,
			Targets:         run.targets,
		},
		GeneratedAt: time.Now().UTC(),
	}
	s.store.Save(*result)

	conflictCounts := make(map[string]int, len(run.byType))
	for kind, count := range run.byType {
		conflictCounts[string(kind)] = count
	}
	s.metrics.RecordConflicts(conflictCounts)

	s.logger.Info("schedule proposal generated",
		zap.String("proposal_id", result.ProposalID),
		zap.Int("classes", result.TotalClasses),
		zap.Int("sessions", result.SuccessfulSessions),
		zap.Int("conflicts", result.ConflictCount),
	)
	return result, nil
}

// attempt tries to place one session. Checks run in a fixed order and the first failure wins.
func (s *ScheduleGeneratorService) attempt(
	ctx context.Context,
	class models.Class,
	date time.Time,
	rule models.ScheduleRule,
	ordinal int,
	req dto.GenerateScheduleRequest,
	proposed []dto.SessionProposal,
) (*dto.SessionProposal, *dto.ConflictInfo, error) {
	slots := sortedSlots(rule.Slots)
	teacherID := class.Teacher()

	if s.conflicts.RequestConflict(class.ID, date, slots, req.ClassConflictMap) {
		return nil, newConflictInfo(class, dto.ConflictRequestClassConflict, date, slots), nil
	}
	if s.conflicts.RequestConflict(teacherID, date, slots, req.TeacherConflictMap) {
		return nil, newConflictInfo(class, dto.ConflictRequestTeacherConflict, date, slots), nil
	}
	busy, err := s.conflicts.TeacherConflict(ctx, teacherID, date, slots, "", proposed)
	if err != nil {
		return nil, nil, fmt.Errorf("check teacher conflict: %w", err)
	}
	if busy {
		return nil, newConflictInfo(class, dto.ConflictTeacherBusy, date, slots), nil
	}
	room, err := s.rooms.FindAvailableRoom(ctx, date, slots, class.MaxStudents, proposed)
	if err != nil {
		return nil, nil, fmt.Errorf("allocate room: %w", err)
	}
	if room == nil {
		return nil, newConflictInfo(class, dto.ConflictRoomUnavailable, date, slots), nil
	}
	startTime, endTime, err := s.catalog.SlotsToRange(slots)
	if err != nil {
		return nil, nil, err
	}

	return &dto.SessionProposal{
		ClassID:     class.ID,
		ClassName:   class.Name,
		TeacherID:   teacherID,
		RoomID:      room.ID,
		RoomName:    room.Name,
		SessionDate: date.Format(dateLayout),
		DayOfWeek:   DayName(date),
		Slots:       slots,
		StartTime:   startTime,
		EndTime:     endTime,
		Topic:       fmt.Sprintf("Auto Lesson %d for %s", ordinal, class.Name),
	}, nil, nil
}

// GetProposal returns a stored proposal that has not expired.
func (s *ScheduleGeneratorService) GetProposal(ctx context.Context, id string) (*dto.ScheduleProposal, error) {
	proposal, ok := s.store.Get(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
	}
	return &proposal, nil
}

// Apply persists every session of a proposal in one transaction. It performs no duplicate
// detection: applying the same proposal twice creates the sessions twice.
func (s *ScheduleGeneratorService) Apply(ctx context.Context, req dto.ApplyProposalRequest) (*dto.ApplyProposalResponse, error) {
	var proposal dto.ScheduleProposal
	switch {
	case req.Proposal != nil:
		proposal = *req.Proposal
	case req.ProposalID != "":
		stored, ok := s.store.Get(req.ProposalID)
		if !ok {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "proposal not found or expired")
		}
		proposal = stored
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "proposal or proposal_id is required")
	}
	if len(proposal.Sessions) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "proposal contains no sessions")
	}
	if err := s.validator.Struct(proposal); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid proposal payload")
	}

	records := make([]models.ClassSession, 0, len(proposal.Sessions))
	for i, item := range proposal.Sessions {
		date, _ := parseDate(item.SessionDate)
		slots := sortedSlots(item.Slots)
		startTime, endTime, rangeErr := s.catalog.SlotsToRange(slots)
		if rangeErr != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("session %d: %s", i+1, appErrors.FromError(rangeErr).Message))
		}
		records = append(records, models.ClassSession{
			ClassID:     item.ClassID,
			TeacherID:   item.TeacherID,
			RoomID:      item.RoomID,
			SessionDate: date,
			StartTime:   startTime,
			EndTime:     endTime,
			Slots:       models.SlotSet(slots),
			Topic:       item.Topic,
			Status:      models.SessionStatusScheduled,
		})
	}

	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.sessions.BulkCreateWithTx(ctx, tx, records); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist sessions")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit sessions")
		return nil, err
	}

	ids := make([]string, len(records))
	for i, record := range records {
		ids[i] = record.ID
	}
	s.metrics.AddSessionsCreated("apply", len(records))
	if s.notifier != nil {
		s.notifier.NotifySessions(ctx, records, models.NotificationSessionScheduled)
	}
	if s.cache != nil {
		s.cache.InvalidateWeekly(ctx)
	}

	s.logger.Info("schedule proposal applied", zap.String("proposal_id", proposal.ProposalID), zap.Int("created", len(records)))
	return &dto.ApplyProposalResponse{
		CreatedCount: len(records),
		Message:      fmt.Sprintf("%d sessions created", len(records)),
		SessionIDs:   ids,
	}, nil
}

func (s *ScheduleGeneratorService) effectiveMaxSlots(requested int) (int, error) {
	maxSlots := requested
	if maxSlots <= 0 {
		maxSlots = s.cfg.DefaultMaxSlots
	}
	if maxSlots <= 0 {
		maxSlots = s.catalog.MaxSlot()
	}
	if maxSlots > s.catalog.MaxSlot() {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("max_slots_per_session must be between 1 and %d", s.catalog.MaxSlot()))
	}
	return maxSlots, nil
}

func (s *ScheduleGeneratorService) loadClasses(ctx context.Context, ids []string) ([]models.Class, error) {
	unique := dedupeStrings(ids)
	classes, err := s.classes.ListActive(ctx, unique)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classes")
	}
	if len(unique) > 0 {
		found := make(map[string]struct{}, len(classes))
		for _, class := range classes {
			found[class.ID] = struct{}{}
		}
		for _, id := range unique {
			if _, ok := found[id]; !ok {
				return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("class %s not found or inactive", id))
			}
		}
	}
	return classes, nil
}

func (s *ScheduleGeneratorService) teacherName(ctx context.Context, class models.Class) (string, error) {
	if s.users == nil {
		return "", nil
	}
	user, err := s.users.FindByID(ctx, class.Teacher())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("teacher of class %s not found", class.Name))
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
	}
	return user.FullName(), nil
}

// sessionTarget is ceil(perWeek * windowDays / 7) in integer arithmetic.
func sessionTarget(perWeek, windowDays int) int {
	if perWeek <= 0 || windowDays <= 0 {
		return 0
	}
	return (perWeek*windowDays + 6) / 7
}

func successRate(successes, conflicts int) float64 {
	total := successes + conflicts
	if total == 0 {
		return 0
	}
	return float64(successes) / float64(total)
}

func dedupeStrings(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// --- Proposal cache ---

type storedProposal struct {
	proposal dto.ScheduleProposal
	savedAt  time.Time
}

type proposalStore struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	items map[string]storedProposal
}

func newProposalStore(ttl time.Duration) *proposalStore {
	return &proposalStore{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]storedProposal),
	}
}

// Save stores a proposal and prunes expired entries.
func (s *proposalStore) Save(proposal dto.ScheduleProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, item := range s.items {
		if now.Sub(item.savedAt) > s.ttl {
			delete(s.items, id)
		}
	}
	s.items[proposal.ProposalID] = storedProposal{proposal: proposal, savedAt: now}
}

func (s *proposalStore) Get(id string) (dto.ScheduleProposal, bool) {
	s.mu.RLock()
	item, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return dto.ScheduleProposal{}, false
	}
	if s.now().Sub(item.savedAt) > s.ttl {
		s.Delete(id)
		return dto.ScheduleProposal{}, false
	}
	return item.proposal, true
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}
