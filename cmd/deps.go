package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spigell/autofill/internal/ai"
	"github.com/spigell/autofill/internal/ai/gemini"
	"github.com/spigell/autofill/internal/logger"
	"github.com/spigell/autofill/internal/secrets"
	"github.com/spigell/autofill/internal/tracker"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func newRedisClient(cfg *RedisConfig) (*redis.Client, error) {
	if cfg == nil || strings.TrimSpace(cfg.Addr) == "" {
		return nil, errors.New("redis address is not configured")
	}

	var password string
	if strings.TrimSpace(cfg.Password) != "" || strings.TrimSpace(cfg.PasswordFile) != "" {
		var err error
		password, err = secrets.Load(secrets.Source{
			Name:  "redis password",
			Value: cfg.Password,
			File:  cfg.PasswordFile,
		})
		if err != nil {
			return nil, err
		}
	}

	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: password,
		DB:       cfg.DB,
	}), nil
}

// newTracker opens the answer store selected by the tracker section.
func newTracker(ctx context.Context, cfg *TrackerConfig, log *zap.Logger) (*tracker.Tracker, func(), error) {
	if cfg == nil {
		cfg = &TrackerConfig{Backend: "file"}
	}
	opts := tracker.DefaultOptions()
	if cfg.Retention > 0 {
		opts.Retention = cfg.Retention
	}

	var (
		store   tracker.Store
		cleanup = func() {}
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "file":
		path := strings.TrimSpace(cfg.Path)
		if path == "" {
			path = "autofill-answers.json"
		}
		store = tracker.NewFileStore(path)
		log = log.With(zap.String("store", "file"), zap.String("path", path))
	case "redis":
		client, err := newRedisClient(cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("tracker: %w", err)
		}
		log = log.With(zap.String("store", "redis"), zap.String("addr", cfg.Redis.Addr))
		store = tracker.NewRedisStore(client, cfg.Key, log)
		cleanup = func() { client.Close() }
	default:
		return nil, nil, fmt.Errorf("unsupported tracker backend: %s", cfg.Backend)
	}

	t, err := tracker.New(ctx, store, opts, log)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	log.Debug("answer tracker loaded", zap.Int("entries", t.Len()), zap.Duration("retention", opts.Retention))
	return t, cleanup, nil
}

func newCache(cfg *CacheConfig) (ai.Cache, func(), error) {
	if cfg == nil {
		cfg = &CacheConfig{}
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "memory":
		return ai.NewMemoryCache(cfg.TTL), func() {}, nil
	case "redis":
		client, err := newRedisClient(cfg.Redis)
		if err != nil {
			return nil, nil, fmt.Errorf("cache: %w", err)
		}
		return ai.NewRedisCache(client, cfg.TTL), func() { client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported cache backend: %s", cfg.Backend)
	}
}

// newGenerative builds the generative client and the credential list. A disabled
// ai section yields nil values; the orchestrator then skips Tier-4 questions.
func newGenerative(cfg *AIConfig, cache ai.Cache, log *zap.Logger) (*ai.Client, *ai.Credentials, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil, nil
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}
	if cfg.Gemini == nil {
		cfg.Gemini = &GeminiConfig{}
	}

	keys, err := secrets.LoadList(secrets.ListSource{
		Name:   "gemini api keys",
		Values: cfg.Gemini.APIKeys,
		Files:  cfg.Gemini.APIKeyFiles,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("%w (set ai.gemini.api-keys, GEMINI_API_KEYS or GEMINI_API_KEY_FILE)", err)
	}

	generator := gemini.NewGenerator(cfg.Gemini.Model, cfg.Gemini.MaxRetries,
		logger.WithCommonFields(log, "gemini", cfg.Gemini.Model).With(
			zap.Int("ai_retry_attempts", cfg.Gemini.MaxRetries),
		),
	)

	opts := ai.DefaultOptions()
	if cfg.MinTokens > 0 {
		opts.MinTokens = cfg.MinTokens
	}
	if cfg.MaxTokens > 0 {
		opts.MaxTokens = cfg.MaxTokens
	}
	if cfg.Temperature > 0 {
		opts.Temperature = float32(cfg.Temperature)
	}
	if cfg.Gemini.MaxLogLength > 0 {
		opts.MaxLogLength = cfg.Gemini.MaxLogLength
	}

	client := ai.NewClient(generator, cache, opts, logger.WithCommonFields(log, "gemini", generator.Model()))
	log.Info("generative fallback enabled",
		zap.String("model", generator.Model()),
		zap.Int("credentials", len(keys)),
	)
	return client, ai.NewCredentials(keys...), nil
}
