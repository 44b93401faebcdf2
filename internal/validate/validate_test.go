package validate

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/spigell/autofill/internal/form"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var yesNoOptions = []form.Option{{Value: "1", Label: "Yes"}, {Value: "0", Label: "No"}}

func TestEmptyAnswers(t *testing.T) {
	t.Parallel()
	v := New()

	res := v.Check(&form.Question{Type: form.ShortText, Required: true}, form.TextAnswer("  "))
	assert.False(t, res.Valid)
	assert.Equal(t, form.ReasonEmptyRequired, res.Reason)

	res = v.Check(&form.Question{Type: form.ShortText}, form.TextAnswer(""))
	assert.False(t, res.Valid)
	assert.Equal(t, form.ReasonUnresolved, res.Reason)
}

func TestFileQuestionsAreRejected(t *testing.T) {
	t.Parallel()

	res := New().Check(&form.Question{Type: form.File}, form.TextAnswer("cv.pdf"))
	assert.Equal(t, form.ReasonFileUpload, res.Reason)
}

func TestMatchOptionStrategies(t *testing.T) {
	t.Parallel()

	options := []form.Option{
		{Value: "us", Label: "United States"},
		{Value: "ca", Label: "Canada"},
		{Value: "y", Label: "Yes, I am authorized"},
		{Value: "n", Label: "No, I am not authorized"},
	}

	cases := []struct {
		name   string
		answer string
		value  string
	}{
		{name: "exact value", answer: "ca", value: "ca"},
		{name: "label ignoring case", answer: "united states", value: "us"},
		{name: "answer inside label", answer: "Canada", value: "ca"},
		{name: "label inside answer", answer: "I live in Canada", value: "ca"},
		{name: "yes keyword", answer: "Yes", value: "y"},
		{name: "no keyword", answer: "No", value: "n"},
		{name: "boolean text", answer: "true", value: "y"},
		{name: "negative phrasing", answer: "I do not", value: "n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			opt, ok := MatchOption(options, tc.answer)
			require.True(t, ok)
			assert.Equal(t, tc.value, opt.Value)
		})
	}
}

func TestChoiceRejectScenario(t *testing.T) {
	t.Parallel()

	q := &form.Question{
		Type:    form.SingleChoice,
		Options: []form.Option{{Value: "USA", Label: "USA"}, {Value: "Canada", Label: "Canada"}},
	}
	res := New().Check(q, form.TextAnswer("United States of America"))

	assert.False(t, res.Valid)
	assert.Equal(t, form.ReasonInvalidOption, res.Reason)
	assert.Equal(t, []string{"USA", "Canada"}, res.Options)
}

func TestChoiceAnswersResolveToValues(t *testing.T) {
	t.Parallel()
	v := New()

	single := &form.Question{Type: form.SingleChoice, Options: yesNoOptions}
	res := v.Check(single, form.BoolAnswer(false))
	require.True(t, res.Valid)
	assert.Equal(t, form.ChoiceAnswer("0"), res.Answer)

	multi := &form.Question{Type: form.MultiChoice, Options: []form.Option{
		{Value: "go", Label: "Go"}, {Value: "rs", Label: "Rust"}, {Value: "py", Label: "Python"},
	}}
	res = v.Check(multi, form.TextAnswer("Go, Python, Cobol"))
	require.True(t, res.Valid)
	assert.Equal(t, form.ChoiceAnswer("go", "py"), res.Answer)
}

func TestBooleanQuestions(t *testing.T) {
	t.Parallel()
	v := New()
	q := &form.Question{Type: form.Boolean}

	res := v.Check(q, form.TextAnswer("Yes, I agree"))
	require.True(t, res.Valid)
	assert.Equal(t, form.BoolAnswer(true), res.Answer)

	res = v.Check(q, form.TextAnswer("it depends"))
	assert.Equal(t, form.ReasonInvalidFormat, res.Reason)
}

func TestTypedFields(t *testing.T) {
	t.Parallel()
	v := New()

	cases := []struct {
		name     string
		format   form.Format
		answer   string
		valid    bool
		expected string
		repaired bool
	}{
		{name: "email", format: form.FormatEmail, answer: "a@b.com", valid: true, expected: "a@b.com"},
		{name: "bad email", format: form.FormatEmail, answer: "a at b", valid: false},
		{name: "url", format: form.FormatURL, answer: "https://example.com/ada", valid: true, expected: "https://example.com/ada"},
		{name: "url repaired", format: form.FormatURL, answer: "linkedin.com/in/ada", valid: true, expected: "https://linkedin.com/in/ada", repaired: true},
		{name: "not a url", format: form.FormatURL, answer: "see my resume", valid: false},
		{name: "phone", format: form.FormatPhone, answer: "+1 (555) 010-0100", valid: true, expected: "+1 (555) 010-0100"},
		{name: "local phone", format: form.FormatPhone, answer: "(555) 010 0100", valid: true, expected: "(555) 010 0100"},
		{name: "short phone", format: form.FormatPhone, answer: "12345", valid: false},
		{name: "number", format: form.FormatNumber, answer: "42", valid: true, expected: "42"},
		{name: "grouped number", format: form.FormatNumber, answer: "120,000", valid: true, expected: "120000", repaired: true},
		{name: "not a number", format: form.FormatNumber, answer: "a lot", valid: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			res := v.Check(&form.Question{Type: form.ShortText, Format: tc.format}, form.TextAnswer(tc.answer))
			require.Equal(t, tc.valid, res.Valid, res.Detail)
			if !tc.valid {
				assert.Equal(t, form.ReasonInvalidFormat, res.Reason)
				return
			}
			assert.Equal(t, tc.expected, res.Answer.Text)
			assert.Equal(t, tc.repaired, res.Repaired)
		})
	}
}

func TestTruncate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		text     string
		limit    int
		expected string
	}{
		{name: "fits", text: "Short answer.", limit: 50, expected: "Short answer."},
		{name: "sentence boundary", text: "First sentence is here. Second one runs long", limit: 30, expected: "First sentence is here."},
		{name: "word boundary when sentence too early", text: "Hi. This answer keeps going without stopping", limit: 30, expected: "Hi. This answer keeps going"},
		{name: "hard cut", text: "Supercalifragilisticexpialidocious", limit: 10, expected: "Supercali…"},
		{name: "decimal is not a sentence end", text: "Total 12345.67 units sold", limit: 12, expected: "Total 12345…"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, truncated := Truncate(tc.text, tc.limit)
			assert.Equal(t, tc.expected, got)
			assert.Equal(t, tc.text != tc.expected, truncated)
		})
	}
}

func TestTruncationLaw(t *testing.T) {
	t.Parallel()

	words := strings.Fields("Designing resilient systems requires patience. I led the migration of a monolith to services! " +
		"Did it work? Mostly, after we rewrote the queue consumers and added idempotency keys everywhere.")
	text := strings.Join(words, " ")

	for limit := 1; limit <= utf8.RuneCountInString(text)+5; limit++ {
		got, _ := Truncate(text, limit)
		assert.LessOrEqual(t, utf8.RuneCountInString(got), limit, "limit %d", limit)
		assert.True(t, strings.HasPrefix(text, strings.TrimSuffix(got, "…")), "limit %d: %q", limit, got)
	}
}

func TestLongTextIsTruncatedNotRejected(t *testing.T) {
	t.Parallel()

	q := &form.Question{Type: form.LongText, MaxLength: 40}
	res := New().Check(q, form.TextAnswer("I enjoy building reliable systems. I also mentor engineers on my team."))

	require.True(t, res.Valid)
	assert.True(t, res.Truncated)
	assert.Equal(t, "I enjoy building reliable systems.", res.Answer.Text)
}

func TestAcceptedAnswersRevalidate(t *testing.T) {
	t.Parallel()
	v := New()

	questions := []struct {
		q      *form.Question
		answer form.Answer
	}{
		{&form.Question{Type: form.SingleChoice, Options: yesNoOptions}, form.BoolAnswer(true)},
		{&form.Question{Type: form.ShortText, Format: form.FormatURL}, form.TextAnswer("github.com/ada")},
		{&form.Question{Type: form.LongText, MaxLength: 20}, form.TextAnswer("A fairly long answer that needs cutting")},
		{&form.Question{Type: form.Boolean}, form.TextAnswer("yes")},
	}

	for _, tc := range questions {
		first := v.Check(tc.q, tc.answer)
		require.True(t, first.Valid)
		second := v.Check(tc.q, first.Answer)
		assert.True(t, second.Valid)
		assert.Equal(t, first.Answer, second.Answer)
	}
}
