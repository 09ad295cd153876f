package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"momolearn-backend/internal/middleware"
	"momolearn-backend/internal/models"
	"momolearn-backend/internal/services"
)

type courseService interface {
	Get(ctx context.Context, userID, courseID uuid.UUID) (*models.Course, error)
	ListAll(ctx context.Context, userID uuid.UUID) ([]*models.Course, error)
	ListPage(ctx context.Context, userID uuid.UUID, p services.PageRequest) (*models.Page[*models.Course], error)
	Create(ctx context.Context, userID uuid.UUID, req models.CreateCourseRequest) (*models.Course, error)
	Update(ctx context.Context, userID, courseID uuid.UUID, req models.UpdateCourseRequest) (*models.Course, error)
	Delete(ctx context.Context, userID, courseID uuid.UUID) error
}

type CourseHandler struct {
	courses courseService
}

func NewCourseHandler(courses courseService) *CourseHandler {
	return &CourseHandler{courses: courses}
}

// List returns a plain array unless both page and size are given.
func (h *CourseHandler) List(w http.ResponseWriter, r *http.Request) {
	p, paged, ok := pageParams(w, r)
	if !ok {
		return
	}
	userID := middleware.GetUserID(r.Context())

	if paged {
		page, err := h.courses.ListPage(r.Context(), userID, p)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
		return
	}

	courses, err := h.courses.ListAll(r.Context(), userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if courses == nil {
		courses = []*models.Course{}
	}
	writeJSON(w, http.StatusOK, courses)
}

func (h *CourseHandler) Get(w http.ResponseWriter, r *http.Request) {
	courseID, ok := pathUUID(w, r, "courseId")
	if !ok {
		return
	}
	course, err := h.courses.Get(r.Context(), middleware.GetUserID(r.Context()), courseID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

func (h *CourseHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCourseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	course, err := h.courses.Create(r.Context(), middleware.GetUserID(r.Context()), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, course)
}

func (h *CourseHandler) Update(w http.ResponseWriter, r *http.Request) {
	courseID, ok := pathUUID(w, r, "courseId")
	if !ok {
		return
	}
	var req models.UpdateCourseRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	course, err := h.courses.Update(r.Context(), middleware.GetUserID(r.Context()), courseID, req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, course)
}

func (h *CourseHandler) Delete(w http.ResponseWriter, r *http.Request) {
	courseID, ok := pathUUID(w, r, "courseId")
	if !ok {
		return
	}
	if err := h.courses.Delete(r.Context(), middleware.GetUserID(r.Context()), courseID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
