package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultRedisKey is the hash holding one JSON entry per normalized question.
const DefaultRedisKey = "autofill:answers"

// FileStore keeps entries in a JSON file that is rewritten atomically on every change.
type FileStore struct {
	path string
	mu   sync.Mutex
}

type fileDocument struct {
	Entries []Entry `json:"entries"`
}

// NewFileStore returns a store backed by path. The file is created on first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(context.Context) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) Save(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return err
	}
	replaced := false
	for i := range entries {
		if entries[i].Key == entry.Key {
			entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		entries = append(entries, entry)
	}
	return s.write(entries)
}

func (s *FileStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	drop := make(map[string]bool, len(keys))
	for _, k := range keys {
		drop[k] = true
	}
	entries, err := s.read()
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, e := range entries {
		if !drop[e.Key] {
			kept = append(kept, e)
		}
	}
	return s.write(kept)
}

func (s *FileStore) read() ([]Entry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return doc.Entries, nil
}

func (s *FileStore) write(entries []Entry) error {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	data, err := json.MarshalIndent(fileDocument{Entries: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".answers-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write answers: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write answers: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// RedisStore keeps entries in a redis hash, one JSON value per key.
type RedisStore struct {
	client redis.Cmdable
	key    string
	logger *zap.Logger
}

// NewRedisStore returns a store on the given hash; an empty key uses DefaultRedisKey.
func NewRedisStore(client redis.Cmdable, key string, log *zap.Logger) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisStore{client: client, key: key, logger: log}
}

func (s *RedisStore) Load(ctx context.Context) ([]Entry, error) {
	data, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.key, err)
	}
	entries := make([]Entry, 0, len(data))
	for field, raw := range data {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			s.logger.Warn("skipping undecodable answer",
				zap.String("hash", s.key),
				zap.String("field", field),
				zap.Error(err),
			)
			continue
		}
		if e.Key == "" {
			e.Key = field
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *RedisStore) Save(ctx context.Context, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return s.client.HSet(ctx, s.key, entry.Key, data).Err()
}

func (s *RedisStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.HDel(ctx, s.key, keys...).Err()
}
