package form

import (
	"strings"
)

// AnswerKind tells which field of an Answer carries the value.
type AnswerKind int

const (
	AnswerText AnswerKind = iota
	AnswerBool
	AnswerChoice
)

// Answer is a value produced by a resolver and written by an adapter.
type Answer struct {
	Kind AnswerKind `json:"kind"`
	Text string     `json:"text,omitempty"`
	Bool bool       `json:"bool,omitempty"`
	// Choices holds option values once an answer has been matched against a question's options.
	Choices []string `json:"choices,omitempty"`
}

func TextAnswer(text string) Answer { return Answer{Kind: AnswerText, Text: text} }

func BoolAnswer(v bool) Answer { return Answer{Kind: AnswerBool, Bool: v} }

func ChoiceAnswer(values ...string) Answer { return Answer{Kind: AnswerChoice, Choices: values} }

// IsEmpty reports whether the answer carries no usable value. Booleans are never empty.
func (a Answer) IsEmpty() bool {
	switch a.Kind {
	case AnswerBool:
		return false
	case AnswerChoice:
		for _, c := range a.Choices {
			if strings.TrimSpace(c) != "" {
				return false
			}
		}
		return true
	default:
		return strings.TrimSpace(a.Text) == ""
	}
}

func (a Answer) String() string {
	switch a.Kind {
	case AnswerBool:
		if a.Bool {
			return "Yes"
		}
		return "No"
	case AnswerChoice:
		return strings.Join(a.Choices, ", ")
	default:
		return a.Text
	}
}

// Source names the strategy that produced an answer.
type Source string

const (
	SourceNone        Source = ""
	SourceProfile     Source = "profile"
	SourceRuleDefault Source = "rule-default"
	SourceConfig      Source = "config"
	SourceTemplate    Source = "template"
	SourceGenerative  Source = "generative"
	SourceCache       Source = "cache"
)

// UnresolvedThreshold is the confidence at or below which a resolution escalates to the next tier.
const UnresolvedThreshold = 0.5

// Resolution is a candidate answer with its provenance.
type Resolution struct {
	Answer     Answer  `json:"answer"`
	Source     Source  `json:"source"`
	Confidence float64 `json:"confidence"`
}

// Unresolved is the zero-confidence resolution.
func Unresolved() Resolution { return Resolution{} }

// Resolved reports whether the confidence is high enough to stop escalating.
func (r Resolution) Resolved() bool {
	return r.Confidence > UnresolvedThreshold && !r.Answer.IsEmpty()
}
