// Package tracker remembers answers given on earlier forms so later runs can
// reuse them for the same or a similar question.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spigell/autofill/internal/form"
	"github.com/spigell/autofill/internal/logger"
)

const (
	// DefaultRetention is how long an answer stays reusable.
	DefaultRetention = 30 * 24 * time.Hour
	// DefaultThreshold is the word-overlap ratio a fuzzy match must exceed.
	DefaultThreshold = 0.6
)

// Entry is one remembered answer, keyed by the normalized question text.
type Entry struct {
	Key       string            `json:"key"`
	Question  string            `json:"question"`
	Answer    string            `json:"answer"`
	Intent    string            `json:"intent,omitempty"`
	Source    form.Source       `json:"source,omitempty"`
	Platform  string            `json:"platform,omitempty"`
	Step      int               `json:"step,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Captured is one exported question and answer pair.
type Captured struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category"`
}

// Store persists entries.
type Store interface {
	Load(ctx context.Context) ([]Entry, error)
	Save(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, keys ...string) error
}

// Options configure retention and matching.
type Options struct {
	Retention time.Duration
	Threshold float64
}

// DefaultOptions returns the tracker defaults.
func DefaultOptions() Options {
	return Options{Retention: DefaultRetention, Threshold: DefaultThreshold}
}

// Tracker is the in-memory view of a store, loaded once per run.
type Tracker struct {
	store  Store
	opts   Options
	logger *zap.Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]Entry
}

// New loads the store and drops entries older than the retention window.
func New(ctx context.Context, store Store, opts Options, log *zap.Logger) (*Tracker, error) {
	return newTracker(ctx, store, opts, log, time.Now)
}

func newTracker(ctx context.Context, store Store, opts Options, log *zap.Logger, now func() time.Time) (*Tracker, error) {
	if store == nil {
		return nil, errors.New("tracker store is required")
	}
	defaults := DefaultOptions()
	if opts.Retention <= 0 {
		opts.Retention = defaults.Retention
	}
	if opts.Threshold <= 0 || opts.Threshold >= 1 {
		opts.Threshold = defaults.Threshold
	}

	t := &Tracker{
		store:   store,
		opts:    opts,
		logger:  logger.WithFields(log, zap.String("component", "tracker")),
		now:     now,
		entries: make(map[string]Entry),
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}

	cutoff := now().Add(-opts.Retention)
	var expired []string
	for _, e := range loaded {
		if e.Key == "" {
			e.Key = form.Normalize(e.Question)
		}
		if e.Timestamp.Before(cutoff) {
			expired = append(expired, e.Key)
			continue
		}
		if cur, ok := t.entries[e.Key]; ok && cur.Timestamp.After(e.Timestamp) {
			continue
		}
		t.entries[e.Key] = e
	}

	if len(expired) > 0 {
		if err := store.Delete(ctx, expired...); err != nil {
			t.logger.Warn("failed to prune expired answers", zap.Error(err))
		}
		t.logger.Debug("pruned expired answers", zap.Int("count", len(expired)))
	}
	return t, nil
}

// Record upserts an entry. An entry older than the stored one for the same key
// is ignored and Record reports false.
func (t *Tracker) Record(ctx context.Context, e Entry) (bool, error) {
	if strings.TrimSpace(e.Answer) == "" {
		return false, errors.New("refusing to record an empty answer")
	}
	if e.Key == "" {
		e.Key = form.Normalize(e.Question)
	}
	if e.Key == "" {
		return false, errors.New("refusing to record an empty question")
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = t.now()
	}

	t.mu.Lock()
	if cur, ok := t.entries[e.Key]; ok && cur.Timestamp.After(e.Timestamp) {
		t.mu.Unlock()
		return false, nil
	}
	t.entries[e.Key] = e
	t.mu.Unlock()

	if err := t.store.Save(ctx, e); err != nil {
		return true, fmt.Errorf("save answer: %w", err)
	}
	return true, nil
}

// Lookup returns the entry for the exact normalized key, else the entry whose
// key shares the largest word overlap above the threshold.
func (t *Tracker) Lookup(normalized string) (Entry, bool) {
	normalized = strings.TrimSpace(normalized)
	if normalized == "" {
		return Entry{}, false
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	if e, ok := t.entries[normalized]; ok {
		return e, true
	}

	var (
		best      Entry
		bestScore float64
	)
	for key, e := range t.entries {
		score := Similarity(normalized, key)
		if score <= t.opts.Threshold {
			continue
		}
		if score > bestScore || (score == bestScore && e.Timestamp.After(best.Timestamp)) {
			best, bestScore = e, score
		}
	}
	return best, bestScore > 0
}

// Entries lists the live entries, newest first.
func (t *Tracker) Entries() []Entry {
	t.mu.RLock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Key < out[j].Key
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

// Export returns the captured pairs, newest first.
func (t *Tracker) Export() []Captured {
	entries := t.Entries()
	out := make([]Captured, 0, len(entries))
	for _, e := range entries {
		category := e.Intent
		if category == "" || category == "unknown" {
			category = "general"
		}
		question := e.Question
		if question == "" {
			question = e.Key
		}
		out = append(out, Captured{Question: question, Answer: e.Answer, Category: category})
	}
	return out
}

// Len reports the number of live entries.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Similarity is the word-overlap ratio |A∩B| / max(|A|,|B|) of two normalized texts.
func Similarity(a, b string) float64 {
	wa, wb := words(a), words(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	shared := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(max(len(wa), len(wb)))
}

func words(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		set[w] = struct{}{}
	}
	return set
}
