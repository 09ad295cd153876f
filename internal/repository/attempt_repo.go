package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"momolearn-backend/internal/models"
)

type AttemptRepo struct {
	pool *pgxpool.Pool
}

func NewAttemptRepo(pool *pgxpool.Pool) *AttemptRepo {
	return &AttemptRepo{pool: pool}
}

// Record writes the user's new gamification state and appends the attempt
// atomically. The update only applies if the stored version still equals
// user.Version; otherwise nothing is written and ErrVersionConflict is
// returned. On success user.Version is advanced.
func (r *AttemptRepo) Record(ctx context.Context, user *models.User, attempt *models.AnswerAttempt) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE users SET xp = $1, level = $2, streak = $3, last_answer_at = $4, version = version + 1
		WHERE id = $5 AND version = $6`,
		user.XP, user.Level, user.Streak, user.LastAnswerAt, user.ID, user.Version,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}

	attempt.ID = uuid.New()
	err = tx.QueryRow(ctx, `
		INSERT INTO answer_attempts (id, user_id, question_id, chosen_index, correct, scored_xp, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`,
		attempt.ID, attempt.UserID, attempt.QuestionID, attempt.ChosenIndex, attempt.Correct, attempt.ScoredXP, attempt.CreatedAt,
	).Scan(&attempt.CreatedAt)
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	user.Version++
	return nil
}

func (r *AttemptRepo) CountCorrect(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM answer_attempts WHERE user_id = $1 AND correct", userID,
	).Scan(&n)
	return n, err
}
