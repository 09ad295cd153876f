package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"momolearn-backend/internal/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type courseStore interface {
	Create(ctx context.Context, c *models.Course) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.Course, int, error)
	Update(ctx context.Context, c *models.Course) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// PageRequest is a zero-based page of at most Size items.
type PageRequest struct {
	Page int
	Size int
}

// Normalize clamps the page to valid bounds.
func (p PageRequest) Normalize() PageRequest {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Size <= 0 {
		p.Size = defaultPageSize
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	return p
}

type CourseService struct {
	courses courseStore
}

func NewCourseService(courses courseStore) *CourseService {
	return &CourseService{courses: courses}
}

// Get hides courses of other users behind NotFound.
func (s *CourseService) Get(ctx context.Context, userID, courseID uuid.UUID) (*models.Course, error) {
	c, err := s.courses.GetByID(ctx, courseID)
	if errors.Is(err, pgx.ErrNoRows) || (err == nil && c.UserID != userID) {
		return nil, &NotFoundError{Message: "Course not found"}
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CourseService) ListAll(ctx context.Context, userID uuid.UUID) ([]*models.Course, error) {
	courses, _, err := s.courses.ListByUser(ctx, userID, -1, 0)
	return courses, err
}

func (s *CourseService) ListPage(ctx context.Context, userID uuid.UUID, p PageRequest) (*models.Page[*models.Course], error) {
	p = p.Normalize()
	courses, total, err := s.courses.ListByUser(ctx, userID, p.Size, p.Page*p.Size)
	if err != nil {
		return nil, err
	}
	return &models.Page[*models.Course]{Items: courses, Page: p.Page, Size: p.Size, Total: total}, nil
}

func (s *CourseService) Create(ctx context.Context, userID uuid.UUID, req models.CreateCourseRequest) (*models.Course, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, &ValidationError{Fields: map[string]string{"title": "Title is required"}}
	}

	c := &models.Course{
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(req.Description),
	}
	if err := s.courses.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("create course: %w", err)
	}
	return c, nil
}

func (s *CourseService) Update(ctx context.Context, userID, courseID uuid.UUID, req models.UpdateCourseRequest) (*models.Course, error) {
	c, err := s.Get(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if title == "" {
			return nil, &ValidationError{Fields: map[string]string{"title": "Title must not be blank"}}
		}
		c.Title = title
	}
	if req.Description != nil {
		c.Description = strings.TrimSpace(*req.Description)
	}

	if err := s.courses.Update(ctx, c); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &NotFoundError{Message: "Course not found"}
		}
		return nil, fmt.Errorf("update course: %w", err)
	}
	return c, nil
}

// Delete removes the course with its study sets and their questions.
func (s *CourseService) Delete(ctx context.Context, userID, courseID uuid.UUID) error {
	if _, err := s.Get(ctx, userID, courseID); err != nil {
		return err
	}
	return s.courses.Delete(ctx, courseID)
}
