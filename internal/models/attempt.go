package models

import (
	"time"

	"github.com/google/uuid"
)

// AnswerAttempt is append-only.
type AnswerAttempt struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"userId"`
	QuestionID  uuid.UUID `json:"questionId"`
	ChosenIndex int       `json:"chosenIndex"`
	Correct     bool      `json:"correct"`
	ScoredXP    int       `json:"scoredXp"`
	CreatedAt   time.Time `json:"createdAt"`
}

type AttemptRequest struct {
	ChosenIndex *int `json:"chosenIndex"`
}

type AttemptResult struct {
	Correct      bool `json:"correct"`
	XPAwarded    int  `json:"xpAwarded"`
	NewUserXP    int  `json:"newUserXp"`
	NewUserLevel int  `json:"newUserLevel"`
	Streak       int  `json:"streak"`
}

type UserStats struct {
	XP             int `json:"xp"`
	Level          int `json:"level"`
	Streak         int `json:"streak"`
	CorrectAnswers int `json:"correctAnswers"`
}
