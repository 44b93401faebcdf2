// Package page abstracts the document a form lives in. Adapters read a goquery snapshot
// and write through the Page methods, which are responsible for making the change
// observable to whatever front-end framework renders the form.
package page

import (
	"context"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

var (
	// ErrNotFound is returned when a selector matches nothing.
	ErrNotFound = errors.New("element not found")
	// ErrNotWritable is returned when the element cannot take the requested value.
	ErrNotWritable = errors.New("element is not writable")
)

// Page is the single-writer view of one form document.
type Page interface {
	URL() string
	Title(ctx context.Context) (string, error)
	// Snapshot returns the current document. Callers must treat it as read-only.
	Snapshot(ctx context.Context) (*goquery.Document, error)

	SetValue(ctx context.Context, selector, value string) error
	SelectOption(ctx context.Context, selector, value string) error
	SetChecked(ctx context.Context, selector string, checked bool) error
	Click(ctx context.Context, selector string) error

	Value(ctx context.Context, selector string) (string, error)
	// Selected returns the values of every selected option of a select element.
	Selected(ctx context.Context, selector string) ([]string, error)
	Checked(ctx context.Context, selector string) (bool, error)
}

// Error describes a failure to load a page.
type Error struct {
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("page %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("page %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
