package ai

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/spigell/autofill/internal/form"
)

//go:embed prompt.md
var promptTemplate string

// Token budget per expected answer length.
const (
	longTextTokens  = 300
	shortTextTokens = 60
	choiceTokens    = 20
	overheadTokens  = 50
)

// Candidate is the context the prompt gives about the applicant and the target job.
type Candidate struct {
	Name              string
	YearsOfExperience int
	Skills            string
	Background        string
	Role              string
	Company           string
}

func buildPrompt(candidate Candidate, questions []*form.Question) string {
	template := promptTemplate
	if strings.TrimSpace(template) == "" {
		template = "Candidate:\n{{CANDIDATE}}\n\nQuestions:\n{{QUESTIONS}}\n\nJSON Response:"
	}
	prompt := strings.ReplaceAll(template, "{{CANDIDATE}}", candidateBlock(candidate))
	prompt = strings.ReplaceAll(prompt, "{{QUESTIONS}}", questionsBlock(questions))
	return prompt
}

func candidateBlock(c Candidate) string {
	var b strings.Builder
	line := func(label, value string) {
		if value = strings.TrimSpace(value); value == "" {
			value = "not provided"
		}
		fmt.Fprintf(&b, "- %s: %s\n", label, value)
	}

	line("Name", c.Name)
	if c.YearsOfExperience > 0 {
		line("Years of experience", fmt.Sprint(c.YearsOfExperience))
	} else {
		line("Years of experience", "")
	}
	line("Skills", c.Skills)
	line("Background", c.Background)
	line("Target role", c.Role)
	line("Target company", c.Company)
	return strings.TrimRight(b.String(), "\n")
}

// questionsBlock numbers the questions from 1; the number is the answer id.
func questionsBlock(questions []*form.Question) string {
	var b strings.Builder
	for i, q := range questions {
		attrs := []string{string(q.Type)}
		if q.MaxLength > 0 {
			attrs = append(attrs, fmt.Sprintf("max %d characters", q.MaxLength))
		}
		if q.Required {
			attrs = append(attrs, "required")
		}
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, strings.Join(attrs, ", "), strings.TrimSpace(q.Raw))
		if q.Type.IsChoice() && len(q.Options) > 0 {
			fmt.Fprintf(&b, "   Options: %s\n", strings.Join(q.OptionLabels(), " | "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// TokenBudget sums the expected answer lengths of the batch and clamps the result.
func TokenBudget(questions []*form.Question, minTokens, maxTokens int) int32 {
	total := overheadTokens
	for _, q := range questions {
		switch {
		case q.Type == form.LongText:
			total += longTextTokens
		case q.Type == form.ShortText:
			total += shortTextTokens
		default:
			total += choiceTokens
		}
	}
	if minTokens > 0 && total < minTokens {
		total = minTokens
	}
	if maxTokens > 0 && total > maxTokens {
		total = maxTokens
	}
	return int32(total)
}
