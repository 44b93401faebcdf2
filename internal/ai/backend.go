// Package ai answers the questions no deterministic tier could, by batching them
// into one prompt for a text-generation backend.
package ai

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNoCredentials means generative answers are disabled for the run.
	ErrNoCredentials = errors.New("no generative backend credentials configured")
	// ErrRateLimited is returned by a backend when a credential hit its rate limit or quota.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnavailable is returned by a backend when the service is temporarily unavailable.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrUnauthorized is returned by a backend when a credential is rejected.
	ErrUnauthorized = errors.New("credential rejected")
	// ErrCredentialsExhausted means every credential was tried without success.
	ErrCredentialsExhausted = errors.New("all credentials exhausted")
	// ErrUnparseable means the response held no answers document.
	ErrUnparseable = errors.New("unparseable generative response")
)

// Request is one generation call.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int32
	Temperature float32
}

// Backend generates text with a single credential. Implementations report
// rate limits with ErrRateLimited or ErrUnavailable and rejected credentials
// with ErrUnauthorized; any other error aborts the batch.
type Backend interface {
	Generate(ctx context.Context, credential string, req Request) (string, error)
	Model() string
}

// BatchError is the terminal failure of one generative batch.
type BatchError struct {
	// Credential is the index of the credential in use, -1 when none was.
	Credential int
	Cause      error
}

func (e *BatchError) Error() string {
	if e.Credential < 0 {
		return fmt.Sprintf("generative batch failed: %v", e.Cause)
	}
	return fmt.Sprintf("generative batch failed on credential %d: %v", e.Credential, e.Cause)
}

func (e *BatchError) Unwrap() error {
	return e.Cause
}

// Credentials is the ordered credential list of a run together with its failover state.
type Credentials struct {
	Keys []string
	// Cursor is the index of the last credential that succeeded; the next batch starts there.
	Cursor int

	rejected map[int]bool
}

// NewCredentials returns a credential list starting at the first key.
func NewCredentials(keys ...string) *Credentials {
	return &Credentials{Keys: keys}
}

// Usable reports how many credentials have not been rejected.
func (c *Credentials) Usable() int {
	if c == nil {
		return 0
	}
	return len(c.Keys) - len(c.rejected)
}

func (c *Credentials) reject(idx int) {
	if c.rejected == nil {
		c.rejected = make(map[int]bool)
	}
	c.rejected[idx] = true
}
