package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/autofill/internal/form"
	"github.com/spigell/autofill/internal/logger"
	"github.com/spigell/autofill/internal/metrics"
	"github.com/spigell/autofill/internal/utils"
)

// Confidence of a generated or cached answer.
const Confidence = 0.85

const systemInstruction = "You answer job application questions for a candidate and reply with JSON only."

// Options tune generation.
type Options struct {
	MinTokens    int
	MaxTokens    int
	Temperature  float32
	MaxLogLength int
}

// DefaultOptions returns the generation defaults.
func DefaultOptions() Options {
	return Options{
		MinTokens:    256,
		MaxTokens:    2048,
		Temperature:  0.2,
		MaxLogLength: 512,
	}
}

// Result holds the outcome of one batch.
type Result struct {
	// Resolutions is aligned with the batch. Questions the model skipped stay unresolved.
	Resolutions []form.Resolution
	// Credential is the index that answered, -1 when the backend was not called.
	Credential int
	Cached     int
}

// Client answers question batches through a Backend with credential failover.
type Client struct {
	backend Backend
	cache   Cache
	opts    Options
	logger  *zap.Logger
}

// NewClient wires a backend with an optional cache.
func NewClient(backend Backend, cache Cache, opts Options, log *zap.Logger) *Client {
	defaults := DefaultOptions()
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaults.MaxTokens
	}
	if opts.MinTokens <= 0 || opts.MinTokens > opts.MaxTokens {
		opts.MinTokens = min(defaults.MinTokens, opts.MaxTokens)
	}
	if opts.MaxLogLength <= 0 {
		opts.MaxLogLength = defaults.MaxLogLength
	}

	var model string
	if backend != nil {
		model = backend.Model()
	}
	return &Client{
		backend: backend,
		cache:   cache,
		opts:    opts,
		logger:  logger.WithFields(log, logger.CommonFields("generative", model)...),
	}
}

// Model reports the backend model name.
func (c *Client) Model() string {
	if c == nil || c.backend == nil {
		return ""
	}
	return c.backend.Model()
}

// Answer resolves the batch in one backend call. Cached answers are used
// without a call. The returned Result is never nil: on a batch failure it
// still carries the cache hits, and the error is a *BatchError.
func (c *Client) Answer(ctx context.Context, creds *Credentials, candidate Candidate, batch []*form.Question) (*Result, error) {
	result := &Result{Resolutions: make([]form.Resolution, len(batch)), Credential: -1}
	if len(batch) == 0 {
		return result, nil
	}

	keys := make([]string, len(batch))
	var pending []int
	for i, q := range batch {
		keys[i] = CacheKey(normalized(q), candidate.Company, candidate.Role)
		if answer, ok := c.cached(ctx, keys[i]); ok {
			result.Resolutions[i] = form.Resolution{
				Answer:     form.TextAnswer(answer),
				Source:     form.SourceCache,
				Confidence: Confidence,
			}
			result.Cached++
			metrics.ObserveGenerative(c.Model(), metrics.RequestCacheHit)
			continue
		}
		pending = append(pending, i)
	}
	if len(pending) == 0 {
		c.logger.Debug("generative batch served from cache", zap.Int("questions", len(batch)))
		return result, nil
	}
	if c.backend == nil || creds == nil || len(creds.Keys) == 0 {
		return result, &BatchError{Credential: -1, Cause: ErrNoCredentials}
	}

	questions := make([]*form.Question, len(pending))
	for i, idx := range pending {
		questions[i] = batch[idx]
	}
	req := Request{
		System:      systemInstruction,
		Prompt:      buildPrompt(candidate, questions),
		MaxTokens:   TokenBudget(questions, c.opts.MinTokens, c.opts.MaxTokens),
		Temperature: c.opts.Temperature,
	}

	c.logger.Debug("sending generative batch",
		zap.Int("questions", len(questions)),
		zap.Int32("max_tokens", req.MaxTokens),
		zap.String("prompt_preview", utils.TruncateForLog(req.Prompt, c.opts.MaxLogLength)),
	)

	raw, idx, err := c.generate(ctx, creds, req)
	if err != nil {
		return result, err
	}
	result.Credential = idx

	c.logger.Debug("generative batch answered",
		zap.Int("credential", idx),
		zap.String("response_preview", utils.TruncateForLog(raw, c.opts.MaxLogLength)),
	)

	answers, err := parseAnswers(raw)
	if err != nil {
		return result, &BatchError{Credential: idx, Cause: err}
	}

	for n, i := range pending {
		text := strings.TrimSpace(answers[n+1])
		if text == "" {
			continue
		}
		result.Resolutions[i] = form.Resolution{
			Answer:     form.TextAnswer(text),
			Source:     form.SourceGenerative,
			Confidence: Confidence,
		}
		if c.cache != nil {
			if err := c.cache.Set(ctx, keys[i], text); err != nil {
				c.logger.Warn("failed to cache generated answer", zap.Error(err))
			}
		}
	}
	return result, nil
}

// generate walks the credentials from the cursor. Rate limits and outages move
// on to the next credential, rejected credentials are skipped for the rest of
// the run, and any other error ends the batch.
func (c *Client) generate(ctx context.Context, creds *Credentials, req Request) (string, int, error) {
	n := len(creds.Keys)
	start := creds.Cursor
	if start < 0 || start >= n {
		start = 0
	}

	model := c.Model()
	last := -1
	var lastErr error
	for i := 0; i < n; i++ {
		idx := (start + i) % n
		if creds.rejected[idx] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return "", idx, &BatchError{Credential: idx, Cause: err}
		}
		last = idx

		raw, err := c.backend.Generate(ctx, creds.Keys[idx], req)
		switch {
		case err == nil:
			creds.Cursor = idx
			metrics.ObserveGenerative(model, metrics.RequestSuccess)
			return raw, idx, nil
		case errors.Is(err, ErrRateLimited), errors.Is(err, ErrUnavailable):
			metrics.ObserveGenerative(model, metrics.RequestRateLimited)
			c.logger.Warn("credential throttled, trying next", zap.Int("credential", idx), zap.Error(err))
			lastErr = err
		case errors.Is(err, ErrUnauthorized):
			metrics.ObserveGenerative(model, metrics.RequestUnauthorized)
			c.logger.Warn("credential rejected, skipping", zap.Int("credential", idx), zap.Error(err))
			creds.reject(idx)
			lastErr = err
		default:
			metrics.ObserveGenerative(model, metrics.RequestError)
			return "", idx, &BatchError{Credential: idx, Cause: err}
		}
	}

	cause := ErrCredentialsExhausted
	if lastErr != nil {
		cause = fmt.Errorf("%w: last error: %w", ErrCredentialsExhausted, lastErr)
	}
	return "", last, &BatchError{Credential: last, Cause: cause}
}

func (c *Client) cached(ctx context.Context, key string) (string, bool) {
	if c.cache == nil {
		return "", false
	}
	answer, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn("answer cache lookup failed", zap.Error(err))
		return "", false
	}
	return answer, ok && strings.TrimSpace(answer) != ""
}

func normalized(q *form.Question) string {
	if q.Normalized != "" {
		return q.Normalized
	}
	return form.Normalize(q.Raw)
}
