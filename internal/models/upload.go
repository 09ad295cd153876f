package models

import (
	"time"

	"github.com/google/uuid"
)

const ContentTypePDF = "application/pdf"

type UploadDoc struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"userId"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	StorageID   string    `json:"-"`
	UploadedAt  time.Time `json:"uploadedAt"`
}
