package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"momolearn-backend/internal/config"
	"momolearn-backend/internal/models"
)

const (
	chatErrorBodyLimit = 600
	chatTemperature    = 0.3
)

const chatSystemPrompt = `You are a tutor. Write sensible multiple-choice questions about the given course text.
Requirements:
- Answer ONLY with a JSON object that has the field "questions" (no explanatory text outside the JSON).
- Each question: { "stem": string, "choices": string[4], "correctIndex": 0-3, "explanation": string? }.
- Write as many questions as the material supports, without duplicates.
- Use clear, concise answers with exactly one correct solution.`

const chatUserPrompt = `Course text:
---
%s
---
Return ONLY this JSON:
{ "questions": [ { "stem": "...", "choices": ["...","...","...","..."], "correctIndex": 0, "explanation": "..." }, ... ] }`

// ChatGenerator asks an OpenAI-compatible chat/completions endpoint for
// questions. The model decides how many questions to write.
type ChatGenerator struct {
	cfg        config.ChatLLMConfig
	httpClient *http.Client
	log        *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewChatGenerator(cfg config.ChatLLMConfig, log *zap.Logger) *ChatGenerator {
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.ClipChars = max(cfg.ClipChars, 1000)
	cfg.MaxTokens = max(cfg.MaxTokens, 256)

	log = log.Named("chat_generator")
	log.Info("chat generator ready",
		zap.String("base_url", cfg.BaseURL),
		zap.String("model", cfg.Model),
		zap.Duration("timeout", cfg.Timeout),
		zap.Int("clip_chars", cfg.ClipChars),
		zap.Int("max_tokens", cfg.MaxTokens),
	)

	return &ChatGenerator{
		cfg:        cfg,
		httpClient: &http.Client{},
		log:        log,
		sleep:      sleepCtx,
	}
}

func (g *ChatGenerator) Name() string { return "chat" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	ResponseFormat map[string]any `json:"response_format"`
	Temperature    float64        `json:"temperature"`
	MaxTokens      int            `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// chatHTTPError is a non-2xx answer from the endpoint. Body is cut to a
// short prefix.
type chatHTTPError struct {
	StatusCode int
	Body       string
}

func (e *chatHTTPError) Error() string {
	msg := fmt.Sprintf("chat completion HTTP %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	if e.Body != "" {
		msg += " | body: " + e.Body
	}
	return msg
}

// Generate ignores hint.
func (g *ChatGenerator) Generate(ctx context.Context, text string, hint int) ([]models.QuestionCandidate, error) {
	clipped := clipText(text, g.cfg.ClipChars)

	body := chatRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: chatSystemPrompt},
			{Role: "user", Content: fmt.Sprintf(chatUserPrompt, clipped)},
		},
		ResponseFormat: map[string]any{"type": "json_object"},
		Temperature:    chatTemperature,
		MaxTokens:      g.cfg.MaxTokens,
	}

	g.log.Debug("chat completion request", zap.Int("chars", len([]rune(clipped))), zap.Int("max_tokens", g.cfg.MaxTokens))

	raw, err := g.do(ctx, body)
	if err != nil {
		g.log.Error("chat completion failed", zap.Error(err))
		return nil, err
	}

	var resp chatResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("chat completion returned no choices")
	}

	questions, err := parseQuestionPayload(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	g.log.Debug("chat completion parsed", zap.Int("questions", len(questions)))
	return questions, nil
}

func (g *ChatGenerator) do(ctx context.Context, body chatRequest) ([]byte, error) {
	backoff := g.cfg.RetryBackoff

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := g.doOnce(ctx, body)
		if err == nil {
			return raw, nil
		}
		if !isRetryableChatError(ctx, err) || attempt >= g.cfg.MaxRetries {
			return nil, err
		}

		g.log.Warn("chat completion retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", g.cfg.MaxRetries),
			zap.Duration("sleep", backoff),
			zap.Error(err),
		)
		if err := g.sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
	}
}

func (g *ChatGenerator) doOnce(ctx context.Context, body chatRequest) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}

	callCtx := ctx
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, g.cfg.BaseURL+"/chat/completions", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(g.cfg.APIKey))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snip := []rune(strings.TrimSpace(string(raw)))
		if len(snip) > chatErrorBodyLimit {
			snip = snip[:chatErrorBodyLimit]
		}
		return nil, &chatHTTPError{StatusCode: resp.StatusCode, Body: string(snip)}
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("empty response from chat completion endpoint")
	}
	return raw, nil
}

// isRetryableChatError retries timeouts, transport failures, 429 and 5xx.
// Cancellation of the caller's context is never retried.
func isRetryableChatError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var httpErr *chatHTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusTooManyRequests ||
			(httpErr.StatusCode >= 500 && httpErr.StatusCode < 600)
	}
	return isTransientCallError(err)
}

// isTransientCallError reports per-attempt timeouts and transport failures.
func isTransientCallError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// questionPayload is the JSON shape both LLM generators ask for.
type questionPayload struct {
	Questions *[]questionJSON `json:"questions"`
}

type questionJSON struct {
	Stem         string   `json:"stem"`
	Choices      []string `json:"choices"`
	CorrectIndex *int     `json:"correctIndex"`
	Explanation  string   `json:"explanation"`
}

// parseQuestionPayload reads {"questions":[...]} from model output, with
// an optional code fence around it. A missing or empty list is an error.
// Questions that fail validation are dropped.
func parseQuestionPayload(content string) ([]models.QuestionCandidate, error) {
	content = stripCodeFences(content)
	if content == "" {
		return nil, errors.New("empty answer from language model")
	}

	var payload questionPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		start := strings.Index(content, "{")
		end := strings.LastIndex(content, "}")
		if start < 0 || end <= start || json.Unmarshal([]byte(content[start:end+1]), &payload) != nil {
			return nil, fmt.Errorf("decode questions: %w", err)
		}
	}
	if payload.Questions == nil || len(*payload.Questions) == 0 {
		return nil, errors.New("language model answer contained no questions")
	}

	out := ValidateCandidates(toCandidates(*payload.Questions))
	if len(out) == 0 {
		return nil, ErrNoValidQuestions
	}
	return out, nil
}

func toCandidates(in []questionJSON) []models.QuestionCandidate {
	out := make([]models.QuestionCandidate, 0, len(in))
	for _, q := range in {
		idx := -1
		if q.CorrectIndex != nil {
			idx = *q.CorrectIndex
		}
		out = append(out, models.QuestionCandidate{
			Stem:         q.Stem,
			Choices:      q.Choices,
			CorrectIndex: idx,
			Explanation:  q.Explanation,
		})
	}
	return out
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
