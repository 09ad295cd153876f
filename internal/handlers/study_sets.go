package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"momolearn-backend/internal/middleware"
	"momolearn-backend/internal/models"
	"momolearn-backend/internal/services"
)

type studySetService interface {
	Create(ctx context.Context, userID, courseID uuid.UUID, req models.CreateStudySetRequest) (*models.StudySet, error)
	ListByCourse(ctx context.Context, userID, courseID uuid.UUID, p services.PageRequest) (*models.Page[*models.StudySet], error)
	GetInCourse(ctx context.Context, userID, courseID, setID uuid.UUID) (*models.StudySet, error)
	DeleteInCourse(ctx context.Context, userID, courseID, setID uuid.UUID) error
	Get(ctx context.Context, userID, setID uuid.UUID) (*models.StudySet, error)
	Questions(ctx context.Context, userID, setID uuid.UUID) ([]*models.Question, error)
	Generate(ctx context.Context, userID, setID uuid.UUID, count *int) (*models.GenerateResult, error)
}

type StudySetHandler struct {
	sets studySetService
}

func NewStudySetHandler(sets studySetService) *StudySetHandler {
	return &StudySetHandler{sets: sets}
}

func (h *StudySetHandler) Create(w http.ResponseWriter, r *http.Request) {
	courseID, ok := pathUUID(w, r, "courseId")
	if !ok {
		return
	}
	var req models.CreateStudySetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	set, err := h.sets.Create(r.Context(), middleware.GetUserID(r.Context()), courseID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, set)
}

func (h *StudySetHandler) ListByCourse(w http.ResponseWriter, r *http.Request) {
	courseID, ok := pathUUID(w, r, "courseId")
	if !ok {
		return
	}
	p, _, ok := pageParams(w, r)
	if !ok {
		return
	}

	page, err := h.sets.ListByCourse(r.Context(), middleware.GetUserID(r.Context()), courseID, p)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if page.Items == nil {
		page.Items = []*models.StudySet{}
	}
	writeJSON(w, http.StatusOK, page)
}

func (h *StudySetHandler) GetInCourse(w http.ResponseWriter, r *http.Request) {
	courseID, ok := pathUUID(w, r, "courseId")
	if !ok {
		return
	}
	setID, ok := pathUUID(w, r, "setId")
	if !ok {
		return
	}

	set, err := h.sets.GetInCourse(r.Context(), middleware.GetUserID(r.Context()), courseID, setID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (h *StudySetHandler) DeleteInCourse(w http.ResponseWriter, r *http.Request) {
	courseID, ok := pathUUID(w, r, "courseId")
	if !ok {
		return
	}
	setID, ok := pathUUID(w, r, "setId")
	if !ok {
		return
	}

	if err := h.sets.DeleteInCourse(r.Context(), middleware.GetUserID(r.Context()), courseID, setID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StudySetHandler) Get(w http.ResponseWriter, r *http.Request) {
	setID, ok := pathUUID(w, r, "setId")
	if !ok {
		return
	}
	set, err := h.sets.Get(r.Context(), middleware.GetUserID(r.Context()), setID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, set)
}

func (h *StudySetHandler) Questions(w http.ResponseWriter, r *http.Request) {
	setID, ok := pathUUID(w, r, "setId")
	if !ok {
		return
	}
	questions, err := h.sets.Questions(r.Context(), middleware.GetUserID(r.Context()), setID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if questions == nil {
		questions = []*models.Question{}
	}
	writeJSON(w, http.StatusOK, questions)
}

// Generate runs question generation synchronously. The optional count
// query parameter is a hint only some generators honour.
func (h *StudySetHandler) Generate(w http.ResponseWriter, r *http.Request) {
	setID, ok := pathUUID(w, r, "setId")
	if !ok {
		return
	}
	n, hasCount, err := queryInt(r, "count")
	if err != nil {
		badRequest(w, r, "count must be an integer")
		return
	}
	var count *int
	if hasCount {
		count = &n
	}

	result, err := h.sets.Generate(r.Context(), middleware.GetUserID(r.Context()), setID, count)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
