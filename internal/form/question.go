// Package form holds the canonical model shared by adapters, resolvers and the orchestrator:
// questions extracted from arbitrary markup, the answers written back and the fill report.
package form

import (
	"strings"
	"unicode"
)

// QuestionType is the declared type of a question. Every question has exactly one.
type QuestionType string

const (
	ShortText    QuestionType = "short-text"
	LongText     QuestionType = "long-text"
	SingleChoice QuestionType = "single-choice"
	MultiChoice  QuestionType = "multi-choice"
	Boolean      QuestionType = "boolean"
	File         QuestionType = "file"
)

// IsChoice reports whether answers must be one (or several) of the enumerated options.
func (t QuestionType) IsChoice() bool {
	return t == SingleChoice || t == MultiChoice
}

// IsText reports whether the question accepts free text.
func (t QuestionType) IsText() bool {
	return t == ShortText || t == LongText
}

// Format is the input format declared by a text control.
type Format string

const (
	FormatNone   Format = ""
	FormatEmail  Format = "email"
	FormatPhone  Format = "phone"
	FormatURL    Format = "url"
	FormatNumber Format = "number"
	FormatDate   Format = "date"
)

// Option is one enumerated choice, kept verbatim from the page.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Control is a single interactive element belonging to a block.
type Control struct {
	Selector string `json:"selector"`
	Tag      string `json:"tag"`
	Type     string `json:"type,omitempty"`
	Value    string `json:"value,omitempty"`
	Label    string `json:"label,omitempty"`
}

// Block is the opaque handle an adapter hands out for one question container.
type Block struct {
	Index    int       `json:"index"`
	Platform string    `json:"platform"`
	Selector string    `json:"selector"`
	Controls []Control `json:"controls"`
}

// Primary returns the first control of the block.
func (b *Block) Primary() (Control, bool) {
	if b == nil || len(b.Controls) == 0 {
		return Control{}, false
	}
	return b.Controls[0], true
}

// Question is the canonical representation of one form question.
type Question struct {
	Raw        string       `json:"raw"`
	Normalized string       `json:"normalized"`
	Type       QuestionType `json:"type"`
	Options    []Option     `json:"options,omitempty"`
	Required   bool         `json:"required"`
	Platform   string       `json:"platform"`
	Format     Format       `json:"format,omitempty"`
	MaxLength  int          `json:"max_length,omitempty"`
	Block      *Block       `json:"-"`
}

// OptionLabels returns the display labels of all options.
func (q *Question) OptionLabels() []string {
	labels := make([]string, 0, len(q.Options))
	for _, opt := range q.Options {
		labels = append(labels, opt.Label)
	}
	return labels
}

// Normalize lower-cases text, drops punctuation and collapses whitespace.
// It is the key used for classification, template matching and answer tracking.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	space := true
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			space = false
		case r == '\'' || r == '’':
			// apostrophes join words: "don't" stays one token
		default:
			if !space {
				b.WriteByte(' ')
				space = true
			}
		}
	}

	return strings.TrimSpace(b.String())
}
