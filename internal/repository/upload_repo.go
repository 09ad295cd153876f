package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"momolearn-backend/internal/models"
)

type UploadRepo struct {
	pool *pgxpool.Pool
}

func NewUploadRepo(pool *pgxpool.Pool) *UploadRepo {
	return &UploadRepo{pool: pool}
}

// Create inserts a row for an already stored blob. The caller assigns ID
// so the storage key can embed it.
func (r *UploadRepo) Create(ctx context.Context, u *models.UploadDoc) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO uploads (id, user_id, filename, content_type, size, storage_id)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING uploaded_at`,
		u.ID, u.UserID, u.Filename, u.ContentType, u.Size, u.StorageID,
	).Scan(&u.UploadedAt)
}

func (r *UploadRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.UploadDoc, error) {
	u := &models.UploadDoc{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, filename, content_type, size, storage_id, uploaded_at FROM uploads WHERE id = $1`, id,
	).Scan(&u.ID, &u.UserID, &u.Filename, &u.ContentType, &u.Size, &u.StorageID, &u.UploadedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UploadRepo) ListStorageIDsByUser(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := r.pool.Query(ctx, "SELECT storage_id FROM uploads WHERE user_id = $1", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *UploadRepo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, "DELETE FROM uploads WHERE id = $1", id)
	return err
}
