package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"momolearn-backend/internal/models"
)

type QuestionRepo struct {
	pool *pgxpool.Pool
}

func NewQuestionRepo(pool *pgxpool.Pool) *QuestionRepo {
	return &QuestionRepo{pool: pool}
}

// GetWithOwner returns the question and the id of the user owning its set.
func (r *QuestionRepo) GetWithOwner(ctx context.Context, id uuid.UUID) (*models.Question, uuid.UUID, error) {
	q := &models.Question{}
	var owner uuid.UUID
	err := r.pool.QueryRow(ctx, `
		SELECT q.id, q.study_set_id, q.stem, q.choices, q.correct_index, q.explanation, q.position, q.created_at, s.user_id
		FROM questions q JOIN study_sets s ON s.id = q.study_set_id
		WHERE q.id = $1`, id,
	).Scan(&q.ID, &q.StudySetID, &q.Stem, &q.Choices, &q.CorrectIndex, &q.Explanation, &q.Position, &q.CreatedAt, &owner)
	if err != nil {
		return nil, uuid.Nil, err
	}
	return q, owner, nil
}

func (r *QuestionRepo) ListBySet(ctx context.Context, setID uuid.UUID) ([]*models.Question, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, study_set_id, stem, choices, correct_index, explanation, position, created_at
		FROM questions WHERE study_set_id = $1 ORDER BY position`, setID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	questions := []*models.Question{}
	for rows.Next() {
		q := &models.Question{}
		if err := rows.Scan(&q.ID, &q.StudySetID, &q.Stem, &q.Choices, &q.CorrectIndex, &q.Explanation, &q.Position, &q.CreatedAt); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// DeleteBySet clears the set's questions on behalf of the generation
// holding claimedAt.
func (r *QuestionRepo) DeleteBySet(ctx context.Context, setID uuid.UUID, claimedAt time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockClaim(ctx, tx, setID, claimedAt); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, "DELETE FROM questions WHERE study_set_id = $1", setID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CreateBatch inserts all questions in one transaction, assigning ids and
// positions in slice order. The set row stays locked until commit, so a
// takeover cannot interleave with the insert.
func (r *QuestionRepo) CreateBatch(ctx context.Context, setID uuid.UUID, claimedAt time.Time, questions []*models.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := lockClaim(ctx, tx, setID, claimedAt); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for i, q := range questions {
		q.ID = uuid.New()
		q.StudySetID = setID
		q.Position = i
		batch.Queue(`
			INSERT INTO questions (id, study_set_id, stem, choices, correct_index, explanation, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING created_at`,
			q.ID, q.StudySetID, q.Stem, q.Choices, q.CorrectIndex, q.Explanation, q.Position,
		).QueryRow(func(row pgx.Row) error {
			return row.Scan(&q.CreatedAt)
		})
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
