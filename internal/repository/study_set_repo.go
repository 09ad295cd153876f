package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"momolearn-backend/internal/models"
)

type StudySetRepo struct {
	pool *pgxpool.Pool
}

func NewStudySetRepo(pool *pgxpool.Pool) *StudySetRepo {
	return &StudySetRepo{pool: pool}
}

const studySetColumns = `id, user_id, course_id, title, upload_id, status, created_at, updated_at`

func scanStudySet(row pgx.Row) (*models.StudySet, error) {
	s := &models.StudySet{}
	err := row.Scan(&s.ID, &s.UserID, &s.CourseID, &s.Title, &s.UploadID, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *StudySetRepo) Create(ctx context.Context, s *models.StudySet) error {
	s.ID = uuid.New()
	s.Status = models.StudySetPending
	return r.pool.QueryRow(ctx,
		`INSERT INTO study_sets (id, user_id, course_id, title, upload_id, status)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`,
		s.ID, s.UserID, s.CourseID, s.Title, s.UploadID, s.Status,
	).Scan(&s.CreatedAt, &s.UpdatedAt)
}

func (r *StudySetRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.StudySet, error) {
	return scanStudySet(r.pool.QueryRow(ctx, `SELECT `+studySetColumns+` FROM study_sets WHERE id = $1`, id))
}

func (r *StudySetRepo) ListByUserCourse(ctx context.Context, userID, courseID uuid.UUID, limit, offset int) ([]*models.StudySet, int, error) {
	var total int
	err := r.pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM study_sets WHERE user_id = $1 AND course_id = $2", userID, courseID,
	).Scan(&total)
	if err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+studySetColumns+` FROM study_sets
		 WHERE user_id = $1 AND course_id = $2
		 ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		userID, courseID, limit, offset,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	sets := []*models.StudySet{}
	for rows.Next() {
		s, err := scanStudySet(rows)
		if err != nil {
			return nil, 0, err
		}
		sets = append(sets, s)
	}
	return sets, total, rows.Err()
}

func (r *StudySetRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM study_sets WHERE id = $1", id)
	return err
}

// BeginGeneration moves the set to IN_PROGRESS unless another generation
// holds it. An IN_PROGRESS row last touched before staleBefore is taken
// over. It reports whether this caller won the transition and, if so, the
// claim stamp later writes of this run must present.
func (r *StudySetRepo) BeginGeneration(ctx context.Context, id uuid.UUID, staleBefore time.Time) (time.Time, bool, error) {
	var claimedAt time.Time
	err := r.pool.QueryRow(ctx, `
		UPDATE study_sets SET status = $2, updated_at = clock_timestamp()
		WHERE id = $1 AND (status <> $2 OR updated_at < $3)
		RETURNING updated_at`,
		id, models.StudySetInProgress, staleBefore,
	).Scan(&claimedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return claimedAt, true, nil
}

// FinishGeneration writes the terminal status of the run holding claimedAt.
// It returns ErrGenerationSuperseded when the claim was taken over.
func (r *StudySetRepo) FinishGeneration(ctx context.Context, id uuid.UUID, claimedAt time.Time, status models.StudySetStatus) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE study_sets SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3 AND updated_at = $4`,
		id, status, models.StudySetInProgress, claimedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrGenerationSuperseded
	}
	return nil
}

// lockClaim locks the set row inside tx and checks the run still holds it.
func lockClaim(ctx context.Context, tx pgx.Tx, setID uuid.UUID, claimedAt time.Time) error {
	var one int
	err := tx.QueryRow(ctx, `
		SELECT 1 FROM study_sets
		WHERE id = $1 AND status = $2 AND updated_at = $3
		FOR UPDATE`,
		setID, models.StudySetInProgress, claimedAt,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrGenerationSuperseded
	}
	return err
}
