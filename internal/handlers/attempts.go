package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"momolearn-backend/internal/middleware"
	"momolearn-backend/internal/models"
)

type gamificationService interface {
	RecordAttempt(ctx context.Context, userID, questionID uuid.UUID, chosenIndex int) (*models.AttemptResult, error)
	Stats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error)
}

type AttemptHandler struct {
	game gamificationService
}

func NewAttemptHandler(game gamificationService) *AttemptHandler {
	return &AttemptHandler{game: game}
}

// Record scores one answer and returns the user's new totals.
func (h *AttemptHandler) Record(w http.ResponseWriter, r *http.Request) {
	questionID, ok := pathUUID(w, r, "questionId")
	if !ok {
		return
	}

	var req models.AttemptRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.ChosenIndex == nil {
		writeJSON(w, http.StatusBadRequest, errorRespWithFields("VALIDATION_ERROR", "Validation failed",
			map[string]string{"chosenIndex": "chosenIndex is required"}, r))
		return
	}

	result, err := h.game.RecordAttempt(r.Context(), middleware.GetUserID(r.Context()), questionID, *req.ChosenIndex)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *AttemptHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.game.Stats(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
