package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"momolearn-backend/internal/models"
	"momolearn-backend/internal/repository"
)

// memGamificationStore keeps users, questions and attempts in memory and
// enforces the version check the way AttemptRepo.Record does.
type memGamificationStore struct {
	mu         sync.Mutex
	users      map[uuid.UUID]models.User
	questions  map[uuid.UUID]*models.Question
	owners     map[uuid.UUID]uuid.UUID
	attempts   []models.AnswerAttempt
	forceFails int
}

func newMemGamificationStore() *memGamificationStore {
	return &memGamificationStore{
		users:     map[uuid.UUID]models.User{},
		questions: map[uuid.UUID]*models.Question{},
		owners:    map[uuid.UUID]uuid.UUID{},
	}
}

func (m *memGamificationStore) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &u, nil
}

func (m *memGamificationStore) GetWithOwner(ctx context.Context, id uuid.UUID) (*models.Question, uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[id]
	if !ok {
		return nil, uuid.Nil, pgx.ErrNoRows
	}
	return q, m.owners[id], nil
}

func (m *memGamificationStore) Record(ctx context.Context, user *models.User, attempt *models.AnswerAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.forceFails > 0 {
		m.forceFails--
		return repository.ErrVersionConflict
	}
	stored := m.users[user.ID]
	if stored.Version != user.Version {
		return repository.ErrVersionConflict
	}
	user.Version++
	m.users[user.ID] = *user
	attempt.ID = uuid.New()
	m.attempts = append(m.attempts, *attempt)
	return nil
}

func (m *memGamificationStore) CountCorrect(ctx context.Context, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, a := range m.attempts {
		if a.UserID == userID && a.Correct {
			n++
		}
	}
	return n, nil
}

func (m *memGamificationStore) addUser(u models.User) {
	m.users[u.ID] = u
}

func (m *memGamificationStore) addQuestion(owner uuid.UUID, correctIndex int) uuid.UUID {
	id := uuid.New()
	m.questions[id] = &models.Question{
		ID:           id,
		Stem:         "Which?",
		Choices:      []string{"a", "b", "c", "d"},
		CorrectIndex: correctIndex,
	}
	m.owners[id] = owner
	return id
}

func newTestGamification(store *memGamificationStore, now time.Time) *GamificationService {
	s := NewGamificationService(store, store, store, zap.NewNop())
	s.now = func() time.Time { return now }
	return s
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestNextStreak(t *testing.T) {
	now := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		streak int
		last   *time.Time
		want   int
	}{
		{"no prior answer", 0, nil, 1},
		{"same day", 4, ptrTime(now.Add(-2 * time.Hour)), 4},
		{"yesterday", 4, ptrTime(now.AddDate(0, 0, -1)), 5},
		{"yesterday just before midnight", 2, ptrTime(time.Date(2026, 3, 9, 23, 59, 0, 0, time.UTC)), 3},
		{"three days ago", 9, ptrTime(now.AddDate(0, 0, -3)), 1},
		{"two days ago", 9, ptrTime(now.AddDate(0, 0, -2)), 1},
		{"same day with zero streak", 0, ptrTime(now.Add(-time.Minute)), 1},
		{"last answer in the future", 3, ptrTime(now.Add(time.Hour)), 3},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, NextStreak(tc.streak, tc.last, now))
		})
	}
}

func TestNextStreak_UsesUTCCalendarDay(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)
	// 00:30 local on the 10th is 23:30 UTC on the 9th.
	last := time.Date(2026, 3, 10, 0, 30, 0, 0, berlin)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 3, NextStreak(2, &last, now))
}

func TestAwardXP(t *testing.T) {
	assert.Equal(t, 0, AwardXP(false, 3))
	assert.Equal(t, 11, AwardXP(true, 1))
	assert.Equal(t, 14, AwardXP(true, 4))
	assert.Equal(t, 15, AwardXP(true, 5))
	assert.Equal(t, 15, AwardXP(true, 40))
}

func TestApplyXP(t *testing.T) {
	tests := []struct {
		name      string
		xp, level int
		award     int
		wantXP    int
		wantLevel int
	}{
		{"no level up", 10, 1, 11, 21, 1},
		{"crosses one threshold", 95, 1, 10, 5, 2},
		{"lands exactly on threshold", 90, 3, 10, 0, 4},
		{"crosses two thresholds", 0, 1, 250, 50, 3},
		{"zero award", 99, 7, 0, 99, 7},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			xp, level := ApplyXP(tc.xp, tc.level, tc.award)
			assert.Equal(t, tc.wantXP, xp)
			assert.Equal(t, tc.wantLevel, level)
			assert.Less(t, xp, XPForNextLevel(level))
		})
	}
}

func TestEvaluate_CorrectnessMatchesIndex(t *testing.T) {
	now := time.Now()
	for correct := 0; correct < 4; correct++ {
		for chosen := 0; chosen < 4; chosen++ {
			u := &models.User{Level: 1}
			s := Evaluate(u, correct, chosen, now)
			assert.Equal(t, chosen == correct, s.Correct, "correct=%d chosen=%d", correct, chosen)
			if !s.Correct {
				assert.Zero(t, s.XPAwarded)
			}
		}
	}
}

func TestRecordAttempt_FirstCorrectAnswer(t *testing.T) {
	store := newMemGamificationStore()
	userID := uuid.New()
	store.addUser(models.User{ID: userID, Level: 1})
	qID := store.addQuestion(userID, 2)

	now := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	svc := newTestGamification(store, now)

	res, err := svc.RecordAttempt(context.Background(), userID, qID, 2)
	require.NoError(t, err)

	assert.Equal(t, &models.AttemptResult{
		Correct:      true,
		XPAwarded:    11,
		NewUserXP:    11,
		NewUserLevel: 1,
		Streak:       1,
	}, res)

	stored := store.users[userID]
	assert.Equal(t, 11, stored.XP)
	assert.Equal(t, 1, stored.Streak)
	require.NotNil(t, stored.LastAnswerAt)
	assert.True(t, stored.LastAnswerAt.Equal(now))

	require.Len(t, store.attempts, 1)
	assert.Equal(t, 11, store.attempts[0].ScoredXP)
	assert.True(t, store.attempts[0].Correct)
}

func TestRecordAttempt_WrongAnswerStillExtendsStreak(t *testing.T) {
	store := newMemGamificationStore()
	userID := uuid.New()
	now := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
	store.addUser(models.User{ID: userID, XP: 40, Level: 2, Streak: 3, LastAnswerAt: ptrTime(now.AddDate(0, 0, -1))})
	qID := store.addQuestion(userID, 0)

	res, err := newTestGamification(store, now).RecordAttempt(context.Background(), userID, qID, 1)
	require.NoError(t, err)

	assert.False(t, res.Correct)
	assert.Equal(t, 0, res.XPAwarded)
	assert.Equal(t, 40, res.NewUserXP)
	assert.Equal(t, 2, res.NewUserLevel)
	assert.Equal(t, 4, res.Streak)
}

func TestRecordAttempt_LevelUp(t *testing.T) {
	store := newMemGamificationStore()
	userID := uuid.New()
	now := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)
	store.addUser(models.User{ID: userID, XP: 95, Level: 1, Streak: 5, LastAnswerAt: ptrTime(now.AddDate(0, 0, -1))})
	qID := store.addQuestion(userID, 3)

	res, err := newTestGamification(store, now).RecordAttempt(context.Background(), userID, qID, 3)
	require.NoError(t, err)

	assert.Equal(t, 15, res.XPAwarded)
	assert.Equal(t, 10, res.NewUserXP)
	assert.Equal(t, 2, res.NewUserLevel)
	assert.Equal(t, 6, res.Streak)
}

func TestRecordAttempt_Errors(t *testing.T) {
	store := newMemGamificationStore()
	userID := uuid.New()
	otherID := uuid.New()
	store.addUser(models.User{ID: userID, Level: 1})
	store.addUser(models.User{ID: otherID, Level: 1})
	mine := store.addQuestion(userID, 0)
	theirs := store.addQuestion(otherID, 0)

	svc := newTestGamification(store, time.Now())
	ctx := context.Background()

	var nf *NotFoundError
	_, err := svc.RecordAttempt(ctx, uuid.New(), mine, 0)
	assert.True(t, errors.As(err, &nf), "unknown user should be NotFound, got %v", err)

	_, err = svc.RecordAttempt(ctx, userID, uuid.New(), 0)
	assert.True(t, errors.As(err, &nf), "unknown question should be NotFound, got %v", err)

	_, err = svc.RecordAttempt(ctx, userID, theirs, 0)
	assert.True(t, errors.As(err, &nf), "foreign question should be NotFound, got %v", err)

	var br *BadRequestError
	for _, idx := range []int{-1, 4, 99} {
		_, err = svc.RecordAttempt(ctx, userID, mine, idx)
		assert.True(t, errors.As(err, &br), "index %d should be BadRequest, got %v", idx, err)
	}

	assert.Empty(t, store.attempts)
}

func TestRecordAttempt_RetriesOnVersionConflict(t *testing.T) {
	store := newMemGamificationStore()
	userID := uuid.New()
	store.addUser(models.User{ID: userID, Level: 1})
	qID := store.addQuestion(userID, 1)
	store.forceFails = maxRecordRetries - 1

	res, err := newTestGamification(store, time.Now()).RecordAttempt(context.Background(), userID, qID, 1)
	require.NoError(t, err)
	assert.True(t, res.Correct)
	assert.Len(t, store.attempts, 1)
}

func TestRecordAttempt_GivesUpAfterMaxRetries(t *testing.T) {
	store := newMemGamificationStore()
	userID := uuid.New()
	store.addUser(models.User{ID: userID, Level: 1})
	qID := store.addQuestion(userID, 1)
	store.forceFails = maxRecordRetries

	_, err := newTestGamification(store, time.Now()).RecordAttempt(context.Background(), userID, qID, 1)
	var ce *ConflictError
	require.True(t, errors.As(err, &ce), "expected ConflictError, got %v", err)
	assert.Empty(t, store.attempts)
}

func TestRecordAttempt_ConcurrentAttemptsLoseNoUpdates(t *testing.T) {
	store := newMemGamificationStore()
	userID := uuid.New()
	store.addUser(models.User{ID: userID, Level: 1})
	qID := store.addQuestion(userID, 0)

	svc := newTestGamification(store, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))

	const workers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	awarded := 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.RecordAttempt(context.Background(), userID, qID, 0)
			if err != nil {
				var ce *ConflictError
				assert.True(t, errors.As(err, &ce), "unexpected error %v", err)
				return
			}
			mu.Lock()
			awarded += res.XPAwarded
			mu.Unlock()
		}()
	}
	wg.Wait()

	u := store.users[userID]
	total := (u.Level-1)*xpPerLevel + u.XP
	assert.Equal(t, awarded, total, "every committed award must be reflected in the user")
	assert.Equal(t, awarded, len(store.attempts)*11)
	assert.Equal(t, 1, u.Streak)
}

func TestStats_CountsCorrectAttempts(t *testing.T) {
	store := newMemGamificationStore()
	userID := uuid.New()
	store.addUser(models.User{ID: userID, Level: 1})
	qID := store.addQuestion(userID, 2)
	svc := newTestGamification(store, time.Now())
	ctx := context.Background()

	for _, chosen := range []int{2, 0, 2, 1} {
		_, err := svc.RecordAttempt(ctx, userID, qID, chosen)
		require.NoError(t, err)
	}

	stats, err := svc.Stats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.CorrectAnswers)
	assert.Equal(t, 22, stats.XP)
	assert.Equal(t, 1, stats.Level)
	assert.Equal(t, 1, stats.Streak)

	_, err = svc.Stats(ctx, uuid.New())
	var nf *NotFoundError
	assert.True(t, errors.As(err, &nf))
}
