// Package gemini is the Google Gemini backend of the generative fallback.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/autofill/internal/ai"
	"github.com/spigell/autofill/internal/utils"
)

const (
	defaultModel      = "gemini-2.5-flash"
	defaultMaxRetries = 3
)

var wait = utils.WaitFor

type chatCreator interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)
}

type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type genaiChats struct {
	chats *genai.Chats
}

func (c genaiChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	return c.chats.Create(ctx, model, config, history)
}

// Generator implements ai.Backend on top of the Gemini API. One genai client is
// created lazily per credential.
type Generator struct {
	model      string
	maxRetries int
	logger     *zap.Logger

	// chats, when set, serves every credential.
	chats    chatCreator
	newChats func(ctx context.Context, apiKey string) (chatCreator, error)

	mu     sync.Mutex
	perKey map[string]chatCreator
}

// NewGenerator creates a Generator configured for the Gemini API backend.
func NewGenerator(model string, maxRetries int, logger *zap.Logger) *Generator {
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		model:      model,
		maxRetries: maxRetries,
		logger:     logger,
		newChats:   newGenaiChats,
		perKey:     make(map[string]chatCreator),
	}
}

func newGenaiChats(ctx context.Context, apiKey string) (chatCreator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return genaiChats{chats: client.Chats}, nil
}

// Model reports the configured model name.
func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}

// Generate sends one request with the given API key. Internal server errors are
// retried with exponential backoff; quota, outage and credential errors are
// mapped to the ai sentinels so the caller can fail over.
func (g *Generator) Generate(ctx context.Context, apiKey string, req ai.Request) (string, error) {
	if g == nil {
		return "", errors.New("gemini generator is not initialized")
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return "", errors.New("prompt must not be empty")
	}

	chats, err := g.creator(ctx, apiKey)
	if err != nil {
		return "", err
	}

	config := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(req.Temperature),
		ResponseMIMEType: "application/json",
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = req.MaxTokens
	}
	if system := strings.TrimSpace(req.System); system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	attempts := max(g.maxRetries, 1)
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		chat, err := chats.Create(ctx, g.model, config, nil)
		if err != nil {
			return "", fmt.Errorf("create chat: %w", err)
		}

		resp, err := chat.SendMessage(ctx, genai.Part{Text: prompt})
		if err == nil {
			return responseText(resp)
		}

		lastErr = err
		if !retryable(err) {
			return "", classify(err)
		}
		if attempt == attempts-1 {
			break
		}

		delay := time.Duration(math.Pow(2, float64(attempt))) * time.Second
		g.logger.Debug("gemini request failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		if err := wait(ctx, delay); err != nil {
			return "", err
		}
	}

	return "", fmt.Errorf("%w: gave up after %d attempts: %w", ai.ErrUnavailable, attempts, lastErr)
}

func (g *Generator) creator(ctx context.Context, apiKey string) (chatCreator, error) {
	if g.chats != nil {
		return g.chats, nil
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: empty api key", ai.ErrUnauthorized)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.perKey[apiKey]; ok {
		return c, nil
	}
	if g.newChats == nil {
		return nil, errors.New("gemini generator is not initialized")
	}
	c, err := g.newChats(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if g.perKey == nil {
		g.perKey = make(map[string]chatCreator)
	}
	g.perKey[apiKey] = c
	return c, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", errors.New("gemini api returned empty response")
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	output := strings.TrimSpace(builder.String())
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}
	return output, nil
}

func retryable(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == http.StatusInternalServerError || apiErr.Status == "INTERNAL"
}

// classify maps API errors onto the failover sentinels; anything else is returned as is.
func classify(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return fmt.Errorf("gemini request: %w", err)
	}

	switch {
	case apiErr.Code == http.StatusTooManyRequests || apiErr.Status == "RESOURCE_EXHAUSTED":
		return fmt.Errorf("%w: %w", ai.ErrRateLimited, err)
	case apiErr.Code == http.StatusServiceUnavailable || apiErr.Status == "UNAVAILABLE":
		return fmt.Errorf("%w: %w", ai.ErrUnavailable, err)
	case apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden,
		apiErr.Status == "UNAUTHENTICATED" || apiErr.Status == "PERMISSION_DENIED",
		invalidKey(apiErr):
		return fmt.Errorf("%w: %w", ai.ErrUnauthorized, err)
	default:
		return fmt.Errorf("gemini request: %w", err)
	}
}

func invalidKey(apiErr genai.APIError) bool {
	if strings.Contains(apiErr.Message, "API_KEY_INVALID") || strings.Contains(strings.ToLower(apiErr.Message), "api key not valid") {
		return true
	}
	for _, detail := range apiErr.Details {
		if reason, ok := detail["reason"].(string); ok && reason == "API_KEY_INVALID" {
			return true
		}
	}
	return false
}
