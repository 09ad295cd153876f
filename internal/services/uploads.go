package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"momolearn-backend/internal/models"
	"momolearn-backend/internal/storage"
)

type uploadStore interface {
	Create(ctx context.Context, u *models.UploadDoc) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.UploadDoc, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// UploadInput is one file part received from a client.
type UploadInput struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type UploadService struct {
	uploads  uploadStore
	blobs    storage.Provider
	maxBytes int64
	log      *zap.Logger
}

func NewUploadService(uploads uploadStore, blobs storage.Provider, maxUploadMB int, log *zap.Logger) *UploadService {
	return &UploadService{
		uploads:  uploads,
		blobs:    blobs,
		maxBytes: int64(maxUploadMB) << 20,
		log:      log.Named("uploads"),
	}
}

// MaxBytes is the largest accepted upload.
func (s *UploadService) MaxBytes() int64 { return s.maxBytes }

func uploadKey(userID, uploadID uuid.UUID) string {
	return fmt.Sprintf("users/%s/%s.pdf", userID, uploadID)
}

// Store validates the file as a non-empty PDF, writes the blob and then
// the metadata row. Nothing is kept when either step fails.
func (s *UploadService) Store(ctx context.Context, userID uuid.UUID, in UploadInput) (*models.UploadDoc, error) {
	mediaType, _, err := mime.ParseMediaType(in.ContentType)
	if err != nil || !strings.EqualFold(mediaType, models.ContentTypePDF) {
		return nil, &BadRequestError{Message: "Only PDF files are accepted"}
	}
	if in.Size <= 0 {
		return nil, &BadRequestError{Message: "Uploaded file is empty"}
	}
	if in.Size > s.maxBytes {
		return nil, &BadRequestError{Message: fmt.Sprintf("File exceeds the %d MB limit", s.maxBytes>>20)}
	}

	doc := &models.UploadDoc{
		ID:          uuid.New(),
		UserID:      userID,
		Filename:    cleanFilename(in.Filename),
		ContentType: models.ContentTypePDF,
		Size:        in.Size,
	}
	doc.StorageID = uploadKey(userID, doc.ID)

	if err := s.blobs.Put(ctx, doc.StorageID, in.Body, in.Size, doc.ContentType); err != nil {
		return nil, fmt.Errorf("store blob: %w", err)
	}
	if err := s.uploads.Create(ctx, doc); err != nil {
		if delErr := s.blobs.Delete(context.WithoutCancel(ctx), doc.StorageID); delErr != nil {
			s.log.Warn("failed to remove orphaned blob", zap.String("key", doc.StorageID), zap.Error(delErr))
		}
		return nil, fmt.Errorf("create upload: %w", err)
	}

	s.log.Info("upload stored",
		zap.String("upload_id", doc.ID.String()),
		zap.String("user_id", userID.String()),
		zap.Int64("size", doc.Size),
	)
	return doc, nil
}

// Get returns the upload when it belongs to userID.
func (s *UploadService) Get(ctx context.Context, userID, uploadID uuid.UUID) (*models.UploadDoc, error) {
	doc, err := s.uploads.GetByID(ctx, uploadID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Message: "Upload not found"}
	}
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, &ForbiddenError{Message: "Upload belongs to another user"}
	}
	return doc, nil
}

func (s *UploadService) Delete(ctx context.Context, userID, uploadID uuid.UUID) error {
	doc, err := s.Get(ctx, userID, uploadID)
	if err != nil {
		return err
	}
	if err := s.blobs.Delete(ctx, doc.StorageID); err != nil {
		return fmt.Errorf("delete blob: %w", err)
	}
	return s.uploads.Delete(ctx, doc.ID)
}

// Open streams the stored PDF bytes.
func (s *UploadService) Open(ctx context.Context, doc *models.UploadDoc) (io.ReadCloser, error) {
	rc, err := s.blobs.Open(ctx, doc.StorageID)
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", doc.ID, err)
	}
	return rc, nil
}

func cleanFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload.pdf"
	}
	return name
}
