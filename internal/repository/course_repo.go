package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"momolearn-backend/internal/models"
)

type CourseRepo struct {
	pool *pgxpool.Pool
}

func NewCourseRepo(pool *pgxpool.Pool) *CourseRepo {
	return &CourseRepo{pool: pool}
}

func (r *CourseRepo) Create(ctx context.Context, c *models.Course) error {
	c.ID = uuid.New()
	return r.pool.QueryRow(ctx,
		`INSERT INTO courses (id, user_id, title, description) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		c.ID, c.UserID, c.Title, c.Description,
	).Scan(&c.CreatedAt)
}

func (r *CourseRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	c := &models.Course{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, title, description, created_at FROM courses WHERE id = $1`, id,
	).Scan(&c.ID, &c.UserID, &c.Title, &c.Description, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListByUser returns the user's courses newest first. A negative limit
// returns all rows.
func (r *CourseRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Course, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM courses WHERE user_id = $1", userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT id, user_id, title, description, created_at FROM courses
		WHERE user_id = $1 ORDER BY created_at DESC`
	args := []interface{}{userID}
	if limit >= 0 {
		query += " LIMIT $2 OFFSET $3"
		args = append(args, limit, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	courses := []*models.Course{}
	for rows.Next() {
		c := &models.Course{}
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.Description, &c.CreatedAt); err != nil {
			return nil, 0, err
		}
		courses = append(courses, c)
	}
	return courses, total, rows.Err()
}

func (r *CourseRepo) Update(ctx context.Context, c *models.Course) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE courses SET title = $1, description = $2 WHERE id = $3",
		c.Title, c.Description, c.ID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// Delete removes the course; study sets and their questions go with it
// through ON DELETE CASCADE.
func (r *CourseRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM courses WHERE id = $1", id)
	return err
}
