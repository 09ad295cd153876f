package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"momolearn-backend/internal/metrics"
	"momolearn-backend/internal/models"
	"momolearn-backend/internal/repository"
)

type studySetStore interface {
	Create(ctx context.Context, s *models.StudySet) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.StudySet, error)
	ListByUserCourse(ctx context.Context, userID, courseID uuid.UUID, limit, offset int) ([]*models.StudySet, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
	BeginGeneration(ctx context.Context, id uuid.UUID, staleBefore time.Time) (time.Time, bool, error)
	FinishGeneration(ctx context.Context, id uuid.UUID, claimedAt time.Time, status models.StudySetStatus) error
}

type setCourses interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
}

type setUploads interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.UploadDoc, error)
}

type uploadOpener interface {
	Open(ctx context.Context, doc *models.UploadDoc) (io.ReadCloser, error)
}

type textExtractor interface {
	Extract(ctx context.Context, r io.Reader) (string, error)
}

type questionStore interface {
	ListBySet(ctx context.Context, setID uuid.UUID) ([]*models.Question, error)
	DeleteBySet(ctx context.Context, setID uuid.UUID, claimedAt time.Time) error
	CreateBatch(ctx context.Context, setID uuid.UUID, claimedAt time.Time, questions []*models.Question) error
}

// StudySetDeps groups the collaborators of StudySetService.
type StudySetDeps struct {
	Sets      studySetStore
	Courses   setCourses
	Uploads   setUploads
	Blobs     uploadOpener
	Extractor textExtractor
	Questions questionStore
	Generator QuestionGenerator
	Events    StatusPublisher
}

// StudySetService owns study sets and their generation lifecycle:
// PENDING on creation, IN_PROGRESS while a generation runs, then READY or
// FAILED. At most one generation per set runs at a time.
type StudySetService struct {
	deps         StudySetDeps
	defaultCount int
	staleAfter   time.Duration
	log          *zap.Logger
	now          func() time.Time
}

func NewStudySetService(deps StudySetDeps, defaultCount int, staleAfter time.Duration, log *zap.Logger) *StudySetService {
	return &StudySetService{
		deps:         deps,
		defaultCount: max(defaultCount, 1),
		staleAfter:   staleAfter,
		log:          log.Named("studysets"),
		now:          time.Now,
	}
}

func (s *StudySetService) ownedCourse(ctx context.Context, userID, courseID uuid.UUID) (*models.Course, error) {
	c, err := s.deps.Courses.GetByID(ctx, courseID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Message: "Course not found"}
	}
	if err != nil {
		return nil, err
	}
	if c.UserID != userID {
		return nil, &ForbiddenError{Message: "Course belongs to another user"}
	}
	return c, nil
}

func (s *StudySetService) ownedSet(ctx context.Context, userID, setID uuid.UUID) (*models.StudySet, error) {
	set, err := s.deps.Sets.GetByID(ctx, setID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Message: "Study set not found"}
	}
	if err != nil {
		return nil, err
	}
	if set.UserID != userID {
		return nil, &ForbiddenError{Message: "Study set belongs to another user"}
	}
	return set, nil
}

func (s *StudySetService) Create(ctx context.Context, userID, courseID uuid.UUID, req models.CreateStudySetRequest) (*models.StudySet, error) {
	if _, err := s.ownedCourse(ctx, userID, courseID); err != nil {
		return nil, err
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, &BadRequestError{Message: "title is required"}
	}

	if req.UploadID != nil {
		doc, err := s.deps.Uploads.GetByID(ctx, *req.UploadID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &BadRequestError{Message: "Upload not found"}
		}
		if err != nil {
			return nil, err
		}
		if doc.UserID != userID {
			return nil, &ForbiddenError{Message: "Upload belongs to another user"}
		}
	}

	set := &models.StudySet{
		UserID:   userID,
		CourseID: courseID,
		Title:    title,
		UploadID: req.UploadID,
	}
	if err := s.deps.Sets.Create(ctx, set); err != nil {
		return nil, fmt.Errorf("create study set: %w", err)
	}
	return set, nil
}

func (s *StudySetService) ListByCourse(ctx context.Context, userID, courseID uuid.UUID, p PageRequest) (*models.Page[*models.StudySet], error) {
	if _, err := s.ownedCourse(ctx, userID, courseID); err != nil {
		return nil, err
	}
	p = p.Normalize()
	sets, total, err := s.deps.Sets.ListByUserCourse(ctx, userID, courseID, p.Size, p.Page*p.Size)
	if err != nil {
		return nil, err
	}
	return &models.Page[*models.StudySet]{Items: sets, Page: p.Page, Size: p.Size, Total: total}, nil
}

// GetInCourse reports NotFound unless the set belongs to both the user and
// the course.
func (s *StudySetService) GetInCourse(ctx context.Context, userID, courseID, setID uuid.UUID) (*models.StudySet, error) {
	set, err := s.deps.Sets.GetByID(ctx, setID)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && (set.UserID != userID || set.CourseID != courseID)) {
		return nil, &NotFoundError{Message: "Study set not found"}
	}
	if err != nil {
		return nil, err
	}
	return set, nil
}

func (s *StudySetService) DeleteInCourse(ctx context.Context, userID, courseID, setID uuid.UUID) error {
	set, err := s.GetInCourse(ctx, userID, courseID, setID)
	if err != nil {
		return err
	}
	return s.deps.Sets.Delete(ctx, set.ID)
}

func (s *StudySetService) Get(ctx context.Context, userID, setID uuid.UUID) (*models.StudySet, error) {
	return s.ownedSet(ctx, userID, setID)
}

func (s *StudySetService) Questions(ctx context.Context, userID, setID uuid.UUID) ([]*models.Question, error) {
	if _, err := s.ownedSet(ctx, userID, setID); err != nil {
		return nil, err
	}
	return s.deps.Questions.ListBySet(ctx, setID)
}

// Generate replaces the set's questions with freshly generated ones. A nil
// count uses the configured default. Failures after the set entered
// IN_PROGRESS leave it FAILED and are returned as *GenerationError.
func (s *StudySetService) Generate(ctx context.Context, userID, setID uuid.UUID, count *int) (*models.GenerateResult, error) {
	set, err := s.ownedSet(ctx, userID, setID)
	if err != nil {
		return nil, err
	}
	if set.UploadID == nil {
		return nil, &BadRequestError{Message: "Study set has no upload"}
	}
	doc, err := s.deps.Uploads.GetByID(ctx, *set.UploadID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &BadRequestError{Message: "Upload not found"}
	}
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, &ForbiddenError{Message: "Upload belongs to another user"}
	}

	claimedAt, won, err := s.deps.Sets.BeginGeneration(ctx, set.ID, s.now().Add(-s.staleAfter))
	if err != nil {
		return nil, fmt.Errorf("begin generation: %w", err)
	}
	if !won {
		return nil, &ConflictError{Message: "Generation already in progress"}
	}
	s.deps.Events.PublishStatus(ctx, userID, models.StudySetStatusEvent{SetID: set.ID, Status: models.StudySetInProgress})

	n := s.defaultCount
	if count != nil {
		n = max(*count, 1)
	}

	log := s.log.With(zap.String("set_id", set.ID.String()), zap.String("generator", s.deps.Generator.Name()))

	// The terminal status must land even if the client went away.
	final := context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			metrics.GenerationTotal.WithLabelValues(s.deps.Generator.Name(), "failed").Inc()
			log.Error("generation panicked", zap.Any("panic", r))
			s.fail(final, log, userID, set.ID, claimedAt, "internal error")
			panic(r)
		}
	}()

	start := time.Now()
	created, genErr := s.runGeneration(ctx, set.ID, claimedAt, doc, n)
	metrics.GenerationDuration.WithLabelValues(s.deps.Generator.Name()).Observe(time.Since(start).Seconds())

	if errors.Is(genErr, repository.ErrGenerationSuperseded) {
		return nil, s.superseded(log)
	}
	if genErr != nil {
		metrics.GenerationTotal.WithLabelValues(s.deps.Generator.Name(), "failed").Inc()
		log.Warn("generation failed", zap.Error(genErr))
		s.fail(final, log, userID, set.ID, claimedAt, genErr.Error())
		return nil, &GenerationError{Err: genErr}
	}

	err = s.deps.Sets.FinishGeneration(final, set.ID, claimedAt, models.StudySetReady)
	if errors.Is(err, repository.ErrGenerationSuperseded) {
		return nil, s.superseded(log)
	}
	if err != nil {
		return nil, fmt.Errorf("mark study set READY: %w", err)
	}
	metrics.GenerationTotal.WithLabelValues(s.deps.Generator.Name(), "ready").Inc()
	s.deps.Events.PublishStatus(final, userID, models.StudySetStatusEvent{
		SetID:   set.ID,
		Status:  models.StudySetReady,
		Created: created,
	})
	log.Info("generation finished", zap.Int("created", created), zap.Duration("took", time.Since(start)))

	return &models.GenerateResult{Created: created, Status: models.StudySetReady}, nil
}

// fail marks the set FAILED and announces it, unless a newer run owns the
// set by now.
func (s *StudySetService) fail(ctx context.Context, log *zap.Logger, userID, setID uuid.UUID, claimedAt time.Time, cause string) {
	err := s.deps.Sets.FinishGeneration(ctx, setID, claimedAt, models.StudySetFailed)
	if errors.Is(err, repository.ErrGenerationSuperseded) {
		log.Info("generation superseded before it could fail")
		return
	}
	if err != nil {
		log.Error("failed to mark study set FAILED", zap.Error(err))
	}
	s.deps.Events.PublishStatus(ctx, userID, models.StudySetStatusEvent{
		SetID:  setID,
		Status: models.StudySetFailed,
		Error:  cause,
	})
}

func (s *StudySetService) superseded(log *zap.Logger) error {
	metrics.GenerationTotal.WithLabelValues(s.deps.Generator.Name(), "superseded").Inc()
	log.Warn("generation superseded by a newer run")
	return &ConflictError{Message: "Generation was superseded by a newer request"}
}

func (s *StudySetService) runGeneration(ctx context.Context, setID uuid.UUID, claimedAt time.Time, doc *models.UploadDoc, count int) (int, error) {
	rc, err := s.deps.Blobs.Open(ctx, doc)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	text, err := s.deps.Extractor.Extract(ctx, rc)
	if err != nil {
		return 0, err
	}

	if err := s.deps.Questions.DeleteBySet(ctx, setID, claimedAt); err != nil {
		return 0, fmt.Errorf("delete old questions: %w", err)
	}

	candidates, err := s.deps.Generator.Generate(ctx, text, count)
	if err != nil {
		return 0, err
	}
	valid := ValidateCandidates(candidates)
	if len(valid) == 0 {
		return 0, ErrNoValidQuestions
	}

	questions := make([]*models.Question, len(valid))
	for i, c := range valid {
		q := &models.Question{
			Stem:         c.Stem,
			Choices:      c.Choices,
			CorrectIndex: c.CorrectIndex,
		}
		if c.Explanation != "" {
			explanation := c.Explanation
			q.Explanation = &explanation
		}
		questions[i] = q
	}
	if err := s.deps.Questions.CreateBatch(ctx, setID, claimedAt, questions); err != nil {
		return 0, fmt.Errorf("save questions: %w", err)
	}
	return len(questions), nil
}
