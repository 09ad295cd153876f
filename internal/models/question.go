package models

import (
	"time"

	"github.com/google/uuid"
)

const ChoicesPerQuestion = 4

type Question struct {
	ID           uuid.UUID `json:"id"`
	StudySetID   uuid.UUID `json:"studySetId"`
	Stem         string    `json:"stem"`
	Choices      []string  `json:"choices"`
	CorrectIndex int       `json:"correctIndex"`
	Explanation  *string   `json:"explanation,omitempty"`
	Position     int       `json:"position"`
	CreatedAt    time.Time `json:"createdAt"`
}

// QuestionCandidate is generator output before validation and persistence.
type QuestionCandidate struct {
	Stem         string   `json:"stem"`
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correctIndex"`
	Explanation  string   `json:"explanation,omitempty"`
}
