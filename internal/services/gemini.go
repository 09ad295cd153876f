package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"momolearn-backend/internal/config"
	"momolearn-backend/internal/models"
)

// GeminiGenerator writes questions with the Gemini API. Concurrent calls
// share a fixed number of request slots.
type GeminiGenerator struct {
	client     *genai.Client
	generate   func(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error)
	rateChan   chan struct{} // Token bucket
	timeout    time.Duration
	clipChars  int
	maxRetries int
	backoff    time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	log        *zap.Logger
}

func NewGeminiGenerator(ctx context.Context, cfg config.GeminiConfig, log *zap.Logger) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(0.3)
	model.SetTopP(0.95)
	model.ResponseMIMEType = "application/json"
	model.SystemInstruction = genai.NewUserContent(genai.Text(chatSystemPrompt))

	slots := max(cfg.ConcurrentReqs, 1)
	rateChan := make(chan struct{}, slots)
	for i := 0; i < slots; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiGenerator{
		client: client,
		generate: func(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error) {
			return model.GenerateContent(ctx, genai.Text(prompt))
		},
		rateChan:   rateChan,
		timeout:    cfg.Timeout,
		clipChars:  max(cfg.ClipChars, 1000),
		maxRetries: max(cfg.MaxRetries, 0),
		backoff:    cfg.RetryBackoff,
		sleep:      sleepCtx,
		log:        log.Named("gemini_generator"),
	}, nil
}

func (g *GeminiGenerator) Name() string { return "gemini" }

func (g *GeminiGenerator) Close() {
	g.client.Close()
}

// acquireRate blocks until a rate slot is available
func (g *GeminiGenerator) acquireRate(ctx context.Context) error {
	select {
	case <-g.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (g *GeminiGenerator) releaseRate() {
	g.rateChan <- struct{}{}
}

// Generate ignores hint; the model decides the count.
func (g *GeminiGenerator) Generate(ctx context.Context, text string, hint int) ([]models.QuestionCandidate, error) {
	if err := g.acquireRate(ctx); err != nil {
		return nil, err
	}
	defer g.releaseRate()

	prompt := fmt.Sprintf(chatUserPrompt, clipText(text, g.clipChars))
	resp, err := g.do(ctx, prompt)
	if err != nil {
		g.log.Error("gemini generation failed", zap.Error(err))
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			g.log.Warn("gemini stopped early", zap.Int("candidate", i), zap.String("finish_reason", cand.FinishReason.String()))
		}
	}

	return parseGeminiQuestions(extractText(resp))
}

func (g *GeminiGenerator) do(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error) {
	backoff := g.backoff

	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := g.doOnce(ctx, prompt)
		if err == nil {
			return resp, nil
		}
		if !isRetryableGeminiError(ctx, err) || attempt >= g.maxRetries {
			return nil, err
		}

		g.log.Warn("gemini request retrying",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", g.maxRetries),
			zap.Duration("sleep", backoff),
			zap.Error(err),
		)
		if err := g.sleep(ctx, backoff); err != nil {
			return nil, err
		}
		backoff *= 2
	}
}

func (g *GeminiGenerator) doOnce(ctx context.Context, prompt string) (*genai.GenerateContentResponse, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	return g.generate(ctx, prompt)
}

// isRetryableGeminiError retries timeouts, transport failures, 429 and 5xx.
func isRetryableGeminiError(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || (apiErr.Code >= 500 && apiErr.Code < 600)
	}
	return isTransientCallError(err)
}

// parseGeminiQuestions accepts the requested {"questions":[...]} object
// and falls back to a bare array, which Gemini sometimes returns.
func parseGeminiQuestions(raw string) ([]models.QuestionCandidate, error) {
	qs, err := parseQuestionPayload(raw)
	if err == nil || err == ErrNoValidQuestions {
		return qs, err
	}

	raw = stripCodeFences(raw)
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start < 0 || end <= start {
		return nil, err
	}
	var list []questionJSON
	if json.Unmarshal([]byte(raw[start:end+1]), &list) != nil || len(list) == 0 {
		return nil, err
	}

	out := ValidateCandidates(toCandidates(list))
	if len(out) == 0 {
		return nil, ErrNoValidQuestions
	}
	return out, nil
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
