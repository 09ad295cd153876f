package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"momolearn-backend/internal/middleware"
	"momolearn-backend/internal/models"
	"momolearn-backend/internal/services"
)

const (
	uploadFormField = "file"
	// Room for multipart boundaries and headers on top of the file itself.
	multipartOverhead = 1 << 20
	multipartMemory   = 8 << 20
)

type uploadService interface {
	Store(ctx context.Context, userID uuid.UUID, in services.UploadInput) (*models.UploadDoc, error)
	Delete(ctx context.Context, userID, uploadID uuid.UUID) error
	MaxBytes() int64
}

type UploadHandler struct {
	uploads uploadService
}

func NewUploadHandler(uploads uploadService) *UploadHandler {
	return &UploadHandler{uploads: uploads}
}

type uploadResponse struct {
	UploadID uuid.UUID `json:"uploadId"`
}

// Upload accepts one PDF in the multipart field "file".
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	limit := h.uploads.MaxBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			badRequest(w, r, fmt.Sprintf("File exceeds the %d MB limit", limit>>20))
			return
		}
		badRequest(w, r, "Expected a multipart/form-data body")
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(uploadFormField)
	if err != nil {
		badRequest(w, r, "Missing file field \""+uploadFormField+"\"")
		return
	}
	defer file.Close()

	doc, err := h.uploads.Store(r.Context(), middleware.GetUserID(r.Context()), services.UploadInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{UploadID: doc.ID})
}

func (h *UploadHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uploadID, ok := pathUUID(w, r, "uploadId")
	if !ok {
		return
	}
	if err := h.uploads.Delete(r.Context(), middleware.GetUserID(r.Context()), uploadID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
