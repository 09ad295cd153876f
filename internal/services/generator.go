package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"momolearn-backend/internal/config"
	"momolearn-backend/internal/models"
)

// ErrNoValidQuestions is returned when a generator's output contains no
// question that passes validation.
var ErrNoValidQuestions = errors.New("no valid questions generated")

// QuestionGenerator turns extracted text into multiple-choice candidates.
// hint is the requested number of questions; generators that decide the
// count themselves ignore it.
type QuestionGenerator interface {
	Name() string
	Generate(ctx context.Context, text string, hint int) ([]models.QuestionCandidate, error)
}

// ValidateCandidates drops candidates with a blank stem, a choice count
// other than four, or an out-of-range correct index.
func ValidateCandidates(candidates []models.QuestionCandidate) []models.QuestionCandidate {
	valid := make([]models.QuestionCandidate, 0, len(candidates))
	for _, c := range candidates {
		if strings.TrimSpace(c.Stem) == "" {
			continue
		}
		if len(c.Choices) != models.ChoicesPerQuestion {
			continue
		}
		if c.CorrectIndex < 0 || c.CorrectIndex >= models.ChoicesPerQuestion {
			continue
		}
		c.Stem = strings.TrimSpace(c.Stem)
		c.Explanation = strings.TrimSpace(c.Explanation)
		valid = append(valid, c)
	}
	return valid
}

// NewQuestionGenerator builds the generator selected by cfg.Kind. The
// returned close func releases client resources and is never nil.
func NewQuestionGenerator(ctx context.Context, cfg config.GeneratorConfig, log *zap.Logger) (QuestionGenerator, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, func() {}, err
	}

	switch cfg.Kind {
	case config.GeneratorChat:
		return NewChatGenerator(cfg.Chat, log), func() {}, nil
	case config.GeneratorGemini:
		g, err := NewGeminiGenerator(ctx, cfg.Gemini, log)
		if err != nil {
			return nil, func() {}, err
		}
		return g, g.Close, nil
	case config.GeneratorHeuristic:
		return NewHeuristicGenerator(), func() {}, nil
	default:
		return nil, func() {}, fmt.Errorf("unknown generator %q", cfg.Kind)
	}
}

// clipText trims text and cuts it to at most limit runes.
func clipText(text string, limit int) string {
	text = strings.TrimSpace(text)
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return string(r[:limit])
}

// stripCodeFences removes a surrounding ``` or ```json fence.
func stripCodeFences(s string) string {
	t := strings.TrimSpace(s)
	if !strings.HasPrefix(t, "```") {
		return t
	}
	first := strings.Index(t, "\n")
	last := strings.LastIndex(t, "```")
	if first == -1 || last <= first {
		return strings.TrimSpace(strings.Trim(t, "`"))
	}
	return strings.TrimSpace(t[first+1 : last])
}
