package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"momolearn-backend/internal/models"
)

type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

func (r *SessionRepo) Create(ctx context.Context, s *models.SessionToken) error {
	s.ID = uuid.New()
	return r.pool.QueryRow(ctx,
		`INSERT INTO session_tokens (id, token, user_id, expires_at) VALUES ($1, $2, $3, $4) RETURNING created_at`,
		s.ID, s.Token, s.UserID, s.ExpiresAt,
	).Scan(&s.CreatedAt)
}

func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*models.SessionToken, error) {
	s := &models.SessionToken{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, token, user_id, created_at, expires_at FROM session_tokens WHERE token = $1`, token,
	).Scan(&s.ID, &s.Token, &s.UserID, &s.CreatedAt, &s.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *SessionRepo) DeleteByToken(ctx context.Context, token string) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM session_tokens WHERE token = $1", token)
	return err
}
