package validate

import (
	"strings"

	"github.com/spigell/autofill/internal/form"
	"github.com/spigell/autofill/internal/profile"
)

var (
	yesPrefixes = []string{"yes", "y", "true", "i am", "i do", "i have", "i will", "i can"}
	noPrefixes  = []string{"no", "n", "false", "i am not", "i do not", "i dont", "i have not", "i will not", "i cannot", "i can not", "not"}
)

// MatchOption maps one answer onto an option: exact value, then label ignoring case,
// then containment in either direction, then the yes/no heuristic. The first strategy
// that finds an option wins.
func MatchOption(options []form.Option, answer string) (form.Option, bool) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return form.Option{}, false
	}

	for _, opt := range options {
		if opt.Value == answer {
			return opt, true
		}
	}

	for _, opt := range options {
		if strings.EqualFold(strings.TrimSpace(opt.Label), answer) {
			return opt, true
		}
	}

	normalized := form.Normalize(answer)
	if normalized != "" {
		for _, opt := range options {
			label := form.Normalize(opt.Label)
			if label == "" {
				continue
			}
			if containsWords(label, normalized) || containsWords(normalized, label) {
				return opt, true
			}
		}
	}

	if want, ok := yesNo(answer); ok {
		for _, opt := range options {
			if got, ok := yesNo(opt.Label); ok && got == want {
				return opt, true
			}
		}
	}

	return form.Option{}, false
}

// containsWords reports whether needle occurs in haystack on word boundaries.
func containsWords(haystack, needle string) bool {
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}

// yesNo reads a boolean from yes/no style wording such as "Yes, I am authorized" or "I do not".
func yesNo(text string) (bool, bool) {
	if b, ok := profile.Truthy(text); ok {
		return b, true
	}

	normalized := form.Normalize(text)
	// negative prefixes are checked first: "i am not" also starts with "i am"
	for _, p := range noPrefixes {
		if normalized == p || strings.HasPrefix(normalized, p+" ") {
			return false, true
		}
	}
	for _, p := range yesPrefixes {
		if normalized == p || strings.HasPrefix(normalized, p+" ") {
			return true, true
		}
	}
	return false, false
}
