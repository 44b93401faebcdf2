// Package validate checks every candidate answer against its question before it is written.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spigell/autofill/internal/form"
	"github.com/spigell/autofill/internal/profile"

	"github.com/go-playground/validator/v10"
)

// minPhoneDigits is the shortest phone number accepted, without country code.
const minPhoneDigits = 7

var (
	phoneRe     = regexp.MustCompile(`^\+?[0-9(][0-9()\-.\s/]*(?:\s*(?:x|ext\.?)\s*[0-9]+)?$`)
	digitsRe    = regexp.MustCompile(`[0-9]`)
	thousandsRe = regexp.MustCompile(`^[-+]?\d{1,3}(?:[ ,]\d{3})+(?:\.\d+)?$`)
)

// Result is the validator verdict. Answer is what should be written when Valid is true:
// options resolved to their values, text truncated or repaired.
type Result struct {
	Answer    form.Answer
	Valid     bool
	Reason    string
	Detail    string
	Truncated bool
	Repaired  bool
	// Options lists the offered labels when no option matched.
	Options []string
}

func reject(reason, detail string) Result {
	return Result{Reason: reason, Detail: detail}
}

// Validator checks answers; it holds the typed-field rules.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	return &Validator{validate: validator.New()}
}

// Check validates answer against q.
func (v *Validator) Check(q *form.Question, answer form.Answer) Result {
	if q.Type == form.File {
		return reject(form.ReasonFileUpload, "file uploads are not filled")
	}

	if answer.IsEmpty() {
		if q.Required {
			return reject(form.ReasonEmptyRequired, "required question has an empty answer")
		}
		return reject(form.ReasonUnresolved, "empty answer")
	}

	switch {
	case q.Type.IsChoice():
		return v.checkChoice(q, answer)
	case q.Type == form.Boolean:
		return v.checkBoolean(answer)
	default:
		return v.checkText(q, answer)
	}
}

func (v *Validator) checkChoice(q *form.Question, answer form.Answer) Result {
	candidates := answer.Choices
	switch answer.Kind {
	case form.AnswerText:
		candidates = []string{answer.Text}
		if q.Type == form.MultiChoice {
			candidates = strings.Split(answer.Text, ",")
		}
	case form.AnswerBool:
		candidates = []string{answer.String()}
	}

	var values []string
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		opt, ok := MatchOption(q.Options, c)
		if !ok {
			continue
		}
		if !contains(values, opt.Value) {
			values = append(values, opt.Value)
		}
		if q.Type == form.SingleChoice {
			break
		}
	}

	if len(values) == 0 {
		res := reject(form.ReasonInvalidOption, fmt.Sprintf("%q matches none of the options", answer.String()))
		res.Options = q.OptionLabels()
		return res
	}
	return Result{Answer: form.ChoiceAnswer(values...), Valid: true}
}

func (v *Validator) checkBoolean(answer form.Answer) Result {
	if answer.Kind == form.AnswerBool {
		return Result{Answer: answer, Valid: true}
	}
	if b, ok := profile.Truthy(answer.String()); ok {
		return Result{Answer: form.BoolAnswer(b), Valid: true}
	}
	if b, ok := yesNo(answer.String()); ok {
		return Result{Answer: form.BoolAnswer(b), Valid: true}
	}
	return reject(form.ReasonInvalidFormat, fmt.Sprintf("%q is not a yes/no answer", answer.String()))
}

func (v *Validator) checkText(q *form.Question, answer form.Answer) Result {
	text := strings.TrimSpace(answer.String())
	res := Result{Valid: true}

	switch q.Format {
	case form.FormatEmail:
		if v.validate.Var(text, "required,email") != nil {
			return reject(form.ReasonInvalidFormat, fmt.Sprintf("%q is not an email address", text))
		}
	case form.FormatURL:
		if v.validate.Var(text, "required,url") != nil {
			repaired := "https://" + strings.TrimPrefix(text, "//")
			if v.validate.Var(repaired, "required,url") != nil || !strings.Contains(text, ".") {
				return reject(form.ReasonInvalidFormat, fmt.Sprintf("%q is not a url", text))
			}
			text = repaired
			res.Repaired = true
		}
	case form.FormatPhone:
		if !validPhone(text) {
			return reject(form.ReasonInvalidFormat, fmt.Sprintf("%q is not a phone number", text))
		}
	case form.FormatNumber:
		if v.validate.Var(text, "required,numeric") != nil {
			stripped := strings.NewReplacer(",", "", " ", "").Replace(text)
			if !thousandsRe.MatchString(text) || v.validate.Var(stripped, "numeric") != nil {
				return reject(form.ReasonInvalidFormat, fmt.Sprintf("%q is not a number", text))
			}
			text = stripped
			res.Repaired = true
		}
	}

	if q.MaxLength > 0 {
		text, res.Truncated = Truncate(text, q.MaxLength)
	}

	res.Answer = form.TextAnswer(text)
	return res
}

func validPhone(text string) bool {
	return phoneRe.MatchString(text) && len(digitsRe.FindAllString(text, -1)) >= minPhoneDigits
}

func contains(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}
