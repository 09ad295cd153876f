package models

import (
	"time"

	"github.com/google/uuid"
)

type StudySetStatus string

const (
	StudySetPending    StudySetStatus = "PENDING"
	StudySetInProgress StudySetStatus = "IN_PROGRESS"
	StudySetReady      StudySetStatus = "READY"
	StudySetFailed     StudySetStatus = "FAILED"
)

type StudySet struct {
	ID        uuid.UUID      `json:"id"`
	UserID    uuid.UUID      `json:"userId"`
	CourseID  uuid.UUID      `json:"courseId"`
	Title     string         `json:"title"`
	UploadID  *uuid.UUID     `json:"uploadId"`
	Status    StudySetStatus `json:"status"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

type CreateStudySetRequest struct {
	Title    string     `json:"title"`
	UploadID *uuid.UUID `json:"uploadId"`
}

type GenerateResult struct {
	Created int            `json:"created"`
	Status  StudySetStatus `json:"status"`
}
