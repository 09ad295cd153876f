package services

type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type BadRequestError struct{ Message string }

func (e *BadRequestError) Error() string { return e.Message }

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

type ForbiddenError struct{ Message string }

func (e *ForbiddenError) Error() string { return e.Message }

type RateLimitError struct{ Message string }

func (e *RateLimitError) Error() string { return e.Message }

// GenerationError reports a failed question generation. The study set has
// already been marked FAILED when this is returned.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string { return "Generation failed: " + e.Err.Error() }

func (e *GenerationError) Unwrap() error { return e.Err }
