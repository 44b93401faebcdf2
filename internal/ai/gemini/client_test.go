package gemini

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/autofill/internal/ai"
)

type fakeChatCreator struct {
	mu    sync.Mutex
	calls []chatCallRecord
	queue map[string][]fakeChatResponse
}

type chatCallRecord struct {
	model  string
	config *genai.GenerateContentConfig
	chat   *fakeChat
}

type fakeChatResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

type fakeChat struct {
	mu       sync.Mutex
	response fakeChatResponse
	messages []string
}

func (f *fakeChat) SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, part := range parts {
		f.messages = append(f.messages, part.Text)
	}
	return f.response.resp, f.response.err
}

func newFakeChatCreator() *fakeChatCreator {
	return &fakeChatCreator{queue: make(map[string][]fakeChatResponse)}
}

func (f *fakeChatCreator) enqueue(model string, resp *genai.GenerateContentResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue[model] = append(f.queue[model], fakeChatResponse{resp: resp, err: err})
}

func (f *fakeChatCreator) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	responses := f.queue[model]
	if len(responses) == 0 {
		return nil, errors.New("unexpected call")
	}
	res := responses[0]
	f.queue[model] = responses[1:]
	chat := &fakeChat{response: res}
	f.calls = append(f.calls, chatCallRecord{model: model, config: config, chat: chat})
	return chat, nil
}

func TestGeneratorRetriesOnTemporaryError(t *testing.T) {
	originalWait := wait
	wait = func(context.Context, time.Duration) error { return nil }
	defer func() { wait = originalWait }()

	chats := newFakeChatCreator()
	tempErr := genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}
	chats.enqueue("gemini-pro", nil, tempErr)
	chats.enqueue("gemini-pro", &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: "retry ok"}}},
		}},
	}, nil)

	g := &Generator{
		chats:      chats,
		model:      "gemini-pro",
		maxRetries: 2,
		logger:     zap.NewNop(),
	}

	output, err := g.Generate(context.Background(), "key", ai.Request{System: "system", Prompt: "message", MaxTokens: 512, Temperature: 0.2})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if output != "retry ok" {
		t.Fatalf("unexpected output: %q", output)
	}

	if len(chats.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(chats.calls))
	}

	for _, call := range chats.calls {
		if call.config == nil || call.config.SystemInstruction == nil {
			t.Fatalf("expected system instruction to be set")
		}
		if got := call.config.SystemInstruction.Parts[0].Text; got != "system" {
			t.Fatalf("unexpected system instruction: %q", got)
		}
		if len(call.chat.messages) != 1 || call.chat.messages[0] != "message" {
			t.Fatalf("unexpected chat message: %+v", call.chat.messages)
		}
		if call.config.MaxOutputTokens != 512 || call.config.Temperature == nil || *call.config.Temperature != 0.2 {
			t.Fatalf("unexpected generation config: %+v", call.config)
		}
		if call.config.ResponseMIMEType != "application/json" {
			t.Fatalf("expected json responses, got %q", call.config.ResponseMIMEType)
		}
	}
}

func TestGeneratorStopsAfterRetriesExhausted(t *testing.T) {
	originalWait := wait
	wait = func(context.Context, time.Duration) error { return nil }
	defer func() { wait = originalWait }()

	chats := newFakeChatCreator()
	tempErr := genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}
	chats.enqueue("gemini-pro", nil, tempErr)
	chats.enqueue("gemini-pro", nil, tempErr)

	g := &Generator{
		chats:      chats,
		model:      "gemini-pro",
		maxRetries: 2,
		logger:     zap.NewNop(),
	}

	_, err := g.Generate(context.Background(), "key", ai.Request{System: "sys", Prompt: "msg"})
	if !errors.Is(err, ai.ErrUnavailable) {
		t.Fatalf("expected unavailable after retries exhausted, got %v", err)
	}

	if len(chats.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(chats.calls))
	}
}

func TestGeneratorDoesNotRetryOnQuota(t *testing.T) {
	chats := newFakeChatCreator()
	quotaErr := genai.APIError{
		Code:    http.StatusTooManyRequests,
		Status:  "RESOURCE_EXHAUSTED",
		Message: "quota exhausted, retry after 60 seconds",
	}
	chats.enqueue("gemini-pro", nil, quotaErr)

	g := &Generator{
		chats:      chats,
		model:      "gemini-pro",
		maxRetries: 3,
		logger:     zap.NewNop(),
	}

	_, err := g.Generate(context.Background(), "key", ai.Request{System: "sys", Prompt: "msg"})
	if !errors.Is(err, ai.ErrRateLimited) {
		t.Fatalf("expected rate limit error, got %v", err)
	}

	if len(chats.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(chats.calls))
	}
}

func TestGeneratorClassifiesErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unavailable", genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}, ai.ErrUnavailable},
		{"forbidden", genai.APIError{Code: http.StatusForbidden, Status: "PERMISSION_DENIED"}, ai.ErrUnauthorized},
		{"invalid key", genai.APIError{
			Code:    http.StatusBadRequest,
			Status:  "INVALID_ARGUMENT",
			Message: "API key not valid. Please pass a valid API key.",
			Details: []map[string]any{{"reason": "API_KEY_INVALID"}},
		}, ai.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chats := newFakeChatCreator()
			chats.enqueue("gemini-pro", nil, tt.err)
			g := &Generator{chats: chats, model: "gemini-pro", maxRetries: 3, logger: zap.NewNop()}

			_, err := g.Generate(context.Background(), "key", ai.Request{Prompt: "msg"})
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if len(chats.calls) != 1 {
				t.Fatalf("expected no local retry, got %d calls", len(chats.calls))
			}
		})
	}
}

func TestGeneratorOtherErrorsAreNotFailover(t *testing.T) {
	chats := newFakeChatCreator()
	chats.enqueue("gemini-pro", nil, genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT", Message: "bad schema"})
	g := &Generator{chats: chats, model: "gemini-pro", maxRetries: 3, logger: zap.NewNop()}

	_, err := g.Generate(context.Background(), "key", ai.Request{Prompt: "msg"})
	if err == nil {
		t.Fatal("expected error")
	}
	for _, sentinel := range []error{ai.ErrRateLimited, ai.ErrUnavailable, ai.ErrUnauthorized} {
		if errors.Is(err, sentinel) {
			t.Fatalf("bad request must not map to %v", sentinel)
		}
	}
}

func TestGeneratorCreatesClientPerKey(t *testing.T) {
	created := map[string]*fakeChatCreator{}
	g := NewGenerator("gemini-pro", 1, zap.NewNop())
	g.newChats = func(_ context.Context, key string) (chatCreator, error) {
		c := newFakeChatCreator()
		c.enqueue("gemini-pro", &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: key}}}}},
		}, nil)
		created[key] = c
		return c, nil
	}

	for _, key := range []string{"a", "b"} {
		out, err := g.Generate(context.Background(), key, ai.Request{Prompt: "msg"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != key {
			t.Fatalf("response came from the wrong client: %q", out)
		}
	}
	if len(created) != 2 {
		t.Fatalf("expected a client per key, got %d", len(created))
	}
	if _, err := g.Generate(context.Background(), " ", ai.Request{Prompt: "msg"}); !errors.Is(err, ai.ErrUnauthorized) {
		t.Fatalf("expected empty key to be rejected, got %v", err)
	}
}

func TestGeneratorRetryWaitHonoursCancellation(t *testing.T) {
	chats := newFakeChatCreator()
	tempErr := genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}
	chats.enqueue("gemini-pro", nil, tempErr)
	chats.enqueue("gemini-pro", nil, tempErr)

	g := &Generator{
		chats:      chats,
		model:      "gemini-pro",
		maxRetries: 3,
		logger:     zap.NewNop(),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := g.Generate(ctx, "key", ai.Request{Prompt: "message"})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Fatalf("retry wait ignored the cancelled context, took %s", elapsed)
	}
	if len(chats.calls) != 1 {
		t.Fatalf("expected a single call before giving up, got %d", len(chats.calls))
	}
}
