package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"momolearn-backend/internal/models"
	"momolearn-backend/internal/services"
)

type stubStudySetService struct {
	set         *models.StudySet
	generateErr error
	getErr      error

	lastUser  uuid.UUID
	lastCount *int
	lastPage  services.PageRequest
	generated bool
}

func (s *stubStudySetService) Create(ctx context.Context, userID, courseID uuid.UUID, req models.CreateStudySetRequest) (*models.StudySet, error) {
	s.lastUser = userID
	return &models.StudySet{ID: uuid.New(), UserID: userID, CourseID: courseID, Title: req.Title, Status: models.StudySetPending}, nil
}

func (s *stubStudySetService) ListByCourse(ctx context.Context, userID, courseID uuid.UUID, p services.PageRequest) (*models.Page[*models.StudySet], error) {
	s.lastPage = p
	return &models.Page[*models.StudySet]{Page: p.Page, Size: 20}, nil
}

func (s *stubStudySetService) GetInCourse(ctx context.Context, userID, courseID, setID uuid.UUID) (*models.StudySet, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.set, nil
}

func (s *stubStudySetService) DeleteInCourse(ctx context.Context, userID, courseID, setID uuid.UUID) error {
	return nil
}

func (s *stubStudySetService) Get(ctx context.Context, userID, setID uuid.UUID) (*models.StudySet, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return s.set, nil
}

func (s *stubStudySetService) Questions(ctx context.Context, userID, setID uuid.UUID) ([]*models.Question, error) {
	return nil, nil
}

func (s *stubStudySetService) Generate(ctx context.Context, userID, setID uuid.UUID, count *int) (*models.GenerateResult, error) {
	s.generated = true
	s.lastUser = userID
	s.lastCount = count
	if s.generateErr != nil {
		return nil, s.generateErr
	}
	return &models.GenerateResult{Created: 4, Status: models.StudySetReady}, nil
}

func TestStudySetHandler_Generate(t *testing.T) {
	userID, setID := uuid.New(), uuid.New()

	tests := []struct {
		name      string
		target    string
		err       error
		status    int
		wantCount *int
		called    bool
	}{
		{"default count", "/generate", nil, http.StatusOK, nil, true},
		{"explicit count", "/generate?count=7", nil, http.StatusOK, intPtr(7), true},
		{"bad count", "/generate?count=lots", nil, http.StatusBadRequest, nil, false},
		{"in progress", "/generate", &services.ConflictError{Message: "Generation already in progress"}, http.StatusConflict, nil, true},
		{"pipeline failure", "/generate", &services.GenerationError{Err: errors.New("chat completion HTTP 500")}, http.StatusInternalServerError, nil, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubStudySetService{generateErr: tc.err}
			h := NewStudySetHandler(svc)

			rr := httptest.NewRecorder()
			req := newRequest(http.MethodPost, "/users/"+userID.String()+"/sets/"+setID.String()+tc.target, nil, userID,
				map[string]string{"userId": userID.String(), "setId": setID.String()})
			h.Generate(rr, req)

			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d (%s)", tc.status, rr.Code, rr.Body.String())
			}
			if svc.generated != tc.called {
				t.Fatalf("expected generate called=%v", tc.called)
			}
			if !tc.called {
				return
			}
			if svc.lastUser != userID {
				t.Fatalf("expected user from context, got %s", svc.lastUser)
			}
			switch {
			case tc.wantCount == nil && svc.lastCount != nil:
				t.Fatalf("expected nil count, got %d", *svc.lastCount)
			case tc.wantCount != nil && (svc.lastCount == nil || *svc.lastCount != *tc.wantCount):
				t.Fatalf("expected count %d, got %v", *tc.wantCount, svc.lastCount)
			}
		})
	}
}

func TestStudySetHandler_GenerateFailureBody(t *testing.T) {
	userID, setID := uuid.New(), uuid.New()
	svc := &stubStudySetService{generateErr: &services.GenerationError{Err: services.ErrNoValidQuestions}}
	h := NewStudySetHandler(svc)

	rr := httptest.NewRecorder()
	h.Generate(rr, newRequest(http.MethodPost, "/generate", nil, userID, map[string]string{"setId": setID.String()}))

	apiErr := decodeError(t, rr)
	if apiErr.Code != "GENERATION_FAILED" || apiErr.Message != "Generation failed: no valid questions generated" {
		t.Fatalf("unexpected error body %+v", apiErr)
	}
}

func TestStudySetHandler_CreateAndList(t *testing.T) {
	userID, courseID := uuid.New(), uuid.New()
	svc := &stubStudySetService{}
	h := NewStudySetHandler(svc)
	params := map[string]string{"userId": userID.String(), "courseId": courseID.String()}

	rr := httptest.NewRecorder()
	h.Create(rr, newRequest(http.MethodPost, "/sets", []byte(`{"title":"Chapter 1"}`), userID, params))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status %d, got %d", http.StatusCreated, rr.Code)
	}
	var set models.StudySet
	if err := json.NewDecoder(rr.Body).Decode(&set); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if set.Status != models.StudySetPending || set.CourseID != courseID {
		t.Fatalf("unexpected set %+v", set)
	}

	rr = httptest.NewRecorder()
	h.ListByCourse(rr, newRequest(http.MethodGet, "/sets?page=2", nil, userID, params))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if svc.lastPage.Page != 2 {
		t.Fatalf("expected page 2 forwarded, got %d", svc.lastPage.Page)
	}
	var page map[string]json.RawMessage
	if err := json.NewDecoder(rr.Body).Decode(&page); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if string(page["items"]) != "[]" {
		t.Fatalf("expected empty items array, got %s", page["items"])
	}
}

func TestStudySetHandler_GetInCourseNotFound(t *testing.T) {
	userID := uuid.New()
	svc := &stubStudySetService{getErr: &services.NotFoundError{Message: "Study set not found"}}
	h := NewStudySetHandler(svc)

	rr := httptest.NewRecorder()
	h.GetInCourse(rr, newRequest(http.MethodGet, "/", nil, userID, map[string]string{
		"courseId": uuid.NewString(), "setId": uuid.NewString(),
	}))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestStudySetHandler_QuestionsEmptyArray(t *testing.T) {
	h := NewStudySetHandler(&stubStudySetService{})

	rr := httptest.NewRecorder()
	h.Questions(rr, newRequest(http.MethodGet, "/", nil, uuid.New(), map[string]string{"setId": uuid.NewString()}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if body := rr.Body.String(); body != "[]\n" {
		t.Fatalf("expected empty JSON array, got %q", body)
	}
}

func intPtr(n int) *int { return &n }
