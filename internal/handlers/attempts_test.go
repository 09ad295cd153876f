package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"momolearn-backend/internal/models"
	"momolearn-backend/internal/services"
)

type stubGamification struct {
	chosen     int
	questionID uuid.UUID
	recordErr  error
}

func (s *stubGamification) RecordAttempt(ctx context.Context, userID, questionID uuid.UUID, chosenIndex int) (*models.AttemptResult, error) {
	s.chosen = chosenIndex
	s.questionID = questionID
	if s.recordErr != nil {
		return nil, s.recordErr
	}
	return &models.AttemptResult{Correct: true, XPAwarded: 11, NewUserXP: 11, NewUserLevel: 1, Streak: 1}, nil
}

func (s *stubGamification) Stats(ctx context.Context, userID uuid.UUID) (*models.UserStats, error) {
	return &models.UserStats{XP: 11, Level: 1, Streak: 1, CorrectAnswers: 1}, nil
}

func TestAttemptHandler_Record(t *testing.T) {
	svc := &stubGamification{}
	h := NewAttemptHandler(svc)
	questionID := uuid.New()

	rr := httptest.NewRecorder()
	h.Record(rr, newRequest(http.MethodPost, "/attempts", []byte(`{"chosenIndex":0}`), uuid.New(),
		map[string]string{"questionId": questionID.String()}))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rr.Code)
	}
	if svc.chosen != 0 || svc.questionID != questionID {
		t.Fatalf("unexpected forwarding: chosen=%d question=%s", svc.chosen, svc.questionID)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(rr.Body).Decode(&result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := map[string]interface{}{"correct": true, "xpAwarded": 11.0, "newUserXp": 11.0, "newUserLevel": 1.0, "streak": 1.0}
	for k, v := range want {
		if result[k] != v {
			t.Errorf("%s: expected %v, got %v", k, v, result[k])
		}
	}
}

func TestAttemptHandler_RecordRequiresChosenIndex(t *testing.T) {
	h := NewAttemptHandler(&stubGamification{})

	rr := httptest.NewRecorder()
	h.Record(rr, newRequest(http.MethodPost, "/attempts", []byte(`{}`), uuid.New(),
		map[string]string{"questionId": uuid.NewString()}))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
	if fields := decodeError(t, rr).Fields; fields["chosenIndex"] == "" {
		t.Fatalf("expected chosenIndex field error, got %v", fields)
	}
}

func TestAttemptHandler_RecordForeignQuestion(t *testing.T) {
	h := NewAttemptHandler(&stubGamification{recordErr: &services.NotFoundError{Message: "Question not found"}})

	rr := httptest.NewRecorder()
	h.Record(rr, newRequest(http.MethodPost, "/attempts", []byte(`{"chosenIndex":2}`), uuid.New(),
		map[string]string{"questionId": uuid.NewString()}))

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestAttemptHandler_Stats(t *testing.T) {
	h := NewAttemptHandler(&stubGamification{})

	rr := httptest.NewRecorder()
	h.Stats(rr, newRequest(http.MethodGet, "/stats", nil, uuid.New(), nil))

	var stats models.UserStats
	if err := json.NewDecoder(rr.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats != (models.UserStats{XP: 11, Level: 1, Streak: 1, CorrectAnswers: 1}) {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

type stubTickets struct{}

func (stubTickets) Issue(userID uuid.UUID) (string, error) { return "ticket-" + userID.String(), nil }

func (stubTickets) TTL() time.Duration { return time.Minute }

func TestEventsHandler_Ticket(t *testing.T) {
	userID := uuid.New()
	h := NewEventsHandler(stubTickets{})

	rr := httptest.NewRecorder()
	h.Ticket(rr, newRequest(http.MethodGet, "/events/ticket", nil, userID, nil))

	var resp ticketResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Ticket != "ticket-"+userID.String() || resp.ExpiresIn != 60 {
		t.Fatalf("unexpected ticket response %+v", resp)
	}
}
