package models

import "github.com/google/uuid"

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type StudySetStatusEvent struct {
	SetID   uuid.UUID      `json:"setId"`
	Status  StudySetStatus `json:"status"`
	Created int            `json:"created,omitempty"`
	Error   string         `json:"error,omitempty"`
}

const WSTypeStudySetStatus = "study_set_status"
