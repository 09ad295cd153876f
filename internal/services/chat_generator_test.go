package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"momolearn-backend/internal/config"
)

func newTestChatGenerator(t *testing.T, handler http.HandlerFunc) *ChatGenerator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	g := NewChatGenerator(config.ChatLLMConfig{
		APIKey:       "test-key",
		BaseURL:      srv.URL + "/",
		Model:        "test-model",
		Timeout:      2 * time.Second,
		ClipChars:    1000,
		MaxTokens:    512,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	}, zap.NewNop())
	g.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return g
}

func completion(content string) string {
	b, _ := json.Marshal(map[string]any{
		"choices": []any{
			map[string]any{"message": map[string]any{"role": "assistant", "content": content}},
		},
	})
	return string(b)
}

const twoQuestions = `{"questions":[
 {"stem":"What is 2+2?","choices":["3","4","5","6"],"correctIndex":1,"explanation":"Basic sum."},
 {"stem":"Broken","choices":["a","b"],"correctIndex":0},
 {"stem":"Capital of France?","choices":["Paris","Rome","Madrid","Berlin"],"correctIndex":0}
]}`

func TestChatGenerator_SendsRequestAndParses(t *testing.T) {
	var got chatRequest
	g := newTestChatGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(completion(twoQuestions)))
	})

	qs, err := g.Generate(context.Background(), strings.Repeat("x", 5000), 3)
	require.NoError(t, err)

	require.Len(t, qs, 2)
	assert.Equal(t, "What is 2+2?", qs[0].Stem)
	assert.Equal(t, 1, qs[0].CorrectIndex)
	assert.Equal(t, "Basic sum.", qs[0].Explanation)
	assert.Equal(t, "", qs[1].Explanation)

	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, 512, got.MaxTokens)
	assert.InDelta(t, 0.3, got.Temperature, 1e-9)
	assert.Equal(t, "json_object", got.ResponseFormat["type"])
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Contains(t, got.Messages[1].Content, strings.Repeat("x", 1000))
	assert.NotContains(t, got.Messages[1].Content, strings.Repeat("x", 1001))
}

func TestChatGenerator_StripsCodeFence(t *testing.T) {
	g := newTestChatGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(completion("```json\n" + twoQuestions + "\n```")))
	})

	qs, err := g.Generate(context.Background(), "text", 0)
	require.NoError(t, err)
	assert.Len(t, qs, 2)
}

func TestChatGenerator_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	g := newTestChatGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(completion(twoQuestions)))
	})

	qs, err := g.Generate(context.Background(), "text", 0)
	require.NoError(t, err)
	assert.Len(t, qs, 2)
	assert.Equal(t, int32(3), calls.Load())
}

func TestChatGenerator_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	g := newTestChatGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := g.Generate(context.Background(), "text", 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Equal(t, int32(3), calls.Load())
}

func TestChatGenerator_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	long := strings.Repeat("e", 2000)
	g := newTestChatGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, long, http.StatusUnauthorized)
	})

	_, err := g.Generate(context.Background(), "text", 0)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	var httpErr *chatHTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.Len(t, httpErr.Body, chatErrorBodyLimit)
}

func TestChatGenerator_RetriesTimeouts(t *testing.T) {
	var calls atomic.Int32
	g := newTestChatGenerator(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			time.Sleep(200 * time.Millisecond)
		}
		w.Write([]byte(completion(twoQuestions)))
	})
	g.cfg.Timeout = 50 * time.Millisecond

	qs, err := g.Generate(context.Background(), "text", 0)
	require.NoError(t, err)
	assert.Len(t, qs, 2)
	assert.GreaterOrEqual(t, calls.Load(), int32(2))
}

func TestChatGenerator_EmptyQuestions(t *testing.T) {
	for name, content := range map[string]string{
		"empty list":   `{"questions":[]}`,
		"missing key":  `{"items":[]}`,
		"not json":     `sorry, I cannot do that`,
		"only invalid": `{"questions":[{"stem":"","choices":["a","b","c","d"],"correctIndex":0}]}`,
	} {
		t.Run(name, func(t *testing.T) {
			g := newTestChatGenerator(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(completion(content)))
			})
			_, err := g.Generate(context.Background(), "text", 0)
			assert.Error(t, err)
		})
	}
}

func TestParseQuestionPayload_MissingCorrectIndex(t *testing.T) {
	_, err := parseQuestionPayload(`{"questions":[{"stem":"Q","choices":["a","b","c","d"]}]}`)
	assert.ErrorIs(t, err, ErrNoValidQuestions)
}

func TestParseQuestionPayload_SurroundingProse(t *testing.T) {
	qs, err := parseQuestionPayload("Here you go:\n" + twoQuestions + "\nGood luck!")
	require.NoError(t, err)
	assert.Len(t, qs, 2)
}
