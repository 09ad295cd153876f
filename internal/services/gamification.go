package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"momolearn-backend/internal/metrics"
	"momolearn-backend/internal/models"
	"momolearn-backend/internal/repository"
)

const (
	xpPerCorrect     = 10
	maxStreakBonus   = 5
	xpPerLevel       = 100
	maxRecordRetries = 5
)

// XPForNextLevel is the XP needed to leave level. The curve is flat.
func XPForNextLevel(level int) int {
	return xpPerLevel
}

// NextStreak returns the day-activity streak after an answer at now.
// Days are UTC calendar days. A last answer dated after now is treated as
// the same day.
func NextStreak(streak int, lastAnswerAt *time.Time, now time.Time) int {
	if lastAnswerAt == nil {
		return 1
	}
	days := utcDay(now).Sub(utcDay(*lastAnswerAt)) / (24 * time.Hour)
	switch {
	case days <= 0:
		return max(streak, 1)
	case days == 1:
		return streak + 1
	default:
		return 1
	}
}

func utcDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AwardXP returns the xp earned by one attempt given the streak after it.
func AwardXP(correct bool, streak int) int {
	if !correct {
		return 0
	}
	return xpPerCorrect + min(streak, maxStreakBonus)
}

// ApplyXP adds award to xp and performs as many level-ups as the total
// covers.
func ApplyXP(xp, level, award int) (int, int) {
	xp += award
	for xp >= XPForNextLevel(level) {
		xp -= XPForNextLevel(level)
		level++
	}
	return xp, level
}

// Score is the pure outcome of one attempt against a user's state.
type Score struct {
	Correct   bool
	XPAwarded int
	XP        int
	Level     int
	Streak    int
}

// Evaluate scores one answer by user at now without persisting anything.
func Evaluate(user *models.User, correctIndex, chosenIndex int, now time.Time) Score {
	correct := chosenIndex == correctIndex
	streak := NextStreak(user.Streak, user.LastAnswerAt, now)
	award := AwardXP(correct, streak)
	xp, level := ApplyXP(user.XP, user.Level, award)
	return Score{Correct: correct, XPAwarded: award, XP: xp, Level: level, Streak: streak}
}

type gamificationUsers interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type gamificationQuestions interface {
	GetWithOwner(ctx context.Context, id uuid.UUID) (*models.Question, uuid.UUID, error)
}

type attemptStore interface {
	Record(ctx context.Context, user *models.User, attempt *models.AnswerAttempt) error
	CountCorrect(ctx context.Context, userID uuid.UUID) (int, error)
}

type GamificationService struct {
	users     gamificationUsers
	questions gamificationQuestions
	attempts  attemptStore
	log       *zap.Logger
	now       func() time.Time
}

func NewGamificationService(users gamificationUsers, questions gamificationQuestions, attempts attemptStore, log *zap.Logger) *GamificationService {
	return &GamificationService{
		users:     users,
		questions: questions,
		attempts:  attempts,
		log:       log.Named("gamification"),
		now:       time.Now,
	}
}

// RecordAttempt scores chosenIndex against the question and persists the
// user's new state together with the attempt record. Concurrent attempts
// by the same user are resolved by re-reading the user and re-scoring.
func (s *GamificationService) RecordAttempt(ctx context.Context, userID, questionID uuid.UUID, chosenIndex int) (*models.AttemptResult, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Message: "User not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	question, owner, err := s.questions.GetWithOwner(ctx, questionID)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && owner != userID) {
		return nil, &NotFoundError{Message: "Question not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("load question: %w", err)
	}

	if chosenIndex < 0 || chosenIndex >= models.ChoicesPerQuestion {
		return nil, &BadRequestError{Message: "chosenIndex must be between 0 and 3"}
	}

	for try := 1; ; try++ {
		now := s.now()
		score := Evaluate(user, question.CorrectIndex, chosenIndex, now)

		next := *user
		next.XP = score.XP
		next.Level = score.Level
		next.Streak = score.Streak
		next.LastAnswerAt = &now

		attempt := &models.AnswerAttempt{
			UserID:      userID,
			QuestionID:  questionID,
			ChosenIndex: chosenIndex,
			Correct:     score.Correct,
			ScoredXP:    score.XPAwarded,
			CreatedAt:   now,
		}

		err := s.attempts.Record(ctx, &next, attempt)
		if err == nil {
			return &models.AttemptResult{
				Correct:      score.Correct,
				XPAwarded:    score.XPAwarded,
				NewUserXP:    score.XP,
				NewUserLevel: score.Level,
				Streak:       score.Streak,
			}, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, fmt.Errorf("record attempt: %w", err)
		}

		metrics.AttemptConflicts.Inc()
		if try == maxRecordRetries {
			s.log.Warn("attempt retries exhausted", zap.String("user_id", userID.String()), zap.Int("tries", try))
			return nil, &ConflictError{Message: "Too many concurrent answers, please retry"}
		}

		user, err = s.users.GetByID(ctx, userID)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "User not found"}
		}
		if err != nil {
			return nil, fmt.Errorf("reload user: %w", err)
		}
	}
}

// Stats recounts correct answers from the attempt log on every call.
func (s *GamificationService) Stats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error) {
	user, err := s.users.GetByID(ctx, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Message: "User not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}

	correct, err := s.attempts.CountCorrect(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count correct answers: %w", err)
	}

	return &models.UserStats{
		XP:             user.XP,
		Level:          user.Level,
		Streak:         user.Streak,
		CorrectAnswers: correct,
	}, nil
}
