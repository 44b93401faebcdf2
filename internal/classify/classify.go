package classify

import (
	"github.com/spigell/autofill/internal/form"
)

// Classify tags q with a tier, intent and resolver. It is total: every question
// gets a classification, Tier 4 when nothing deterministic matched.
func Classify(q *form.Question) Classification {
	text := q.Normalized
	if text == "" {
		text = form.Normalize(q.Raw)
	}
	return ClassifyText(text, q.Type)
}

// ClassifyText evaluates the rule tables in their fixed order: direct fields,
// boolean rules, then demographic rules.
func ClassifyText(normalized string, typ form.QuestionType) Classification {
	if m, ok := first(directRules, normalized); ok {
		return Classification{Tier: 1, Intent: m.intent, Resolver: Direct}
	}

	if LooksBoolean(normalized, typ) {
		if m, ok := first(booleanRules, normalized); ok {
			return Classification{
				Tier:      2,
				Intent:    m.intent,
				Resolver:  BooleanRule,
				ConfigKey: m.configKey,
				Literal:   m.literal,
			}
		}
	}

	if LooksDemographic(normalized) {
		if m, ok := first(demographicRules, normalized); ok {
			return Classification{Tier: 3, Intent: m.intent, Resolver: Demographic}
		}
	}

	return Classification{Tier: 4, Intent: Unknown, Resolver: Generative}
}

// LooksBoolean reports whether boolean rules may be attempted: the control already
// offers a choice, or the wording reads like a yes/no question.
func LooksBoolean(normalized string, typ form.QuestionType) bool {
	if typ == form.Boolean || typ.IsChoice() {
		return true
	}
	return yesNoRe.MatchString(normalized)
}

// LooksDemographic reports whether the text uses equal-employment vocabulary.
func LooksDemographic(normalized string) bool {
	return eeoRe.MatchString(normalized)
}

func first(rules []rule, text string) (rule, bool) {
	for _, candidate := range rules {
		if candidate.pattern.MatchString(text) {
			return candidate, true
		}
	}
	return rule{}, false
}
