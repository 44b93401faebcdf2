// Package resolve answers classified questions from the profile without any network access.
package resolve

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/spigell/autofill/internal/classify"
	"github.com/spigell/autofill/internal/form"
	"github.com/spigell/autofill/internal/profile"
)

const (
	// explicitConfidence is used for values the candidate stated.
	explicitConfidence = 1.0
	// defaultConfidence is used for safe defaults; any stated value outranks it.
	defaultConfidence = 0.7
	// declineConfidence is used when a demographic question is answered with its decline option.
	declineConfidence = 0.9
)

// booleanDefaults are the answers assumed when the candidate never said otherwise.
var booleanDefaults = map[classify.Intent]bool{
	classify.WorkAuthorization:  true,
	classify.Sponsorship:        false,
	classify.LegalAge:           true,
	classify.BackgroundCheck:    true,
	classify.DrugTest:           true,
	classify.PreviouslyEmployed: false,
	classify.NonCompete:         false,
	classify.SecurityClearance:  false,
}

var declineRe = regexp.MustCompile(`(?i)prefer not|decline|do not wish|don ?t wish|dont wish|choose not|rather not|not to (?:say|answer|disclose|self identify|identify)|not disclose`)

type fieldFunc func(p *profile.Profile, d profile.Derived) string

// directFields maps Tier 1 intents onto profile values.
var directFields = map[classify.Intent]fieldFunc{
	classify.FirstName:     func(p *profile.Profile, _ profile.Derived) string { return p.PersonalInfo.FirstName },
	classify.LastName:      func(p *profile.Profile, _ profile.Derived) string { return p.PersonalInfo.LastName },
	classify.FullName:      func(_ *profile.Profile, d profile.Derived) string { return d.FullName },
	classify.PreferredName: func(p *profile.Profile, _ profile.Derived) string { return p.PersonalInfo.FirstName },
	classify.Email:         func(p *profile.Profile, _ profile.Derived) string { return p.PersonalInfo.Email },
	classify.Phone:         func(p *profile.Profile, _ profile.Derived) string { return p.PersonalInfo.Phone },
	classify.Address:       func(p *profile.Profile, _ profile.Derived) string { return p.Location.Address },
	classify.City:          func(p *profile.Profile, _ profile.Derived) string { return p.Location.City },
	classify.State:         func(p *profile.Profile, _ profile.Derived) string { return p.Location.State },
	classify.Country:       func(p *profile.Profile, _ profile.Derived) string { return p.Location.Country },
	classify.ZipCode:       func(p *profile.Profile, _ profile.Derived) string { return p.Location.ZipCode },
	classify.Location: func(p *profile.Profile, _ profile.Derived) string {
		return joinNonEmpty(", ", p.Location.City, p.Location.State, p.Location.Country)
	},
	classify.LinkedIn: func(p *profile.Profile, _ profile.Derived) string { return p.PersonalInfo.LinkedIn },
	classify.GitHub:   func(p *profile.Profile, _ profile.Derived) string { return p.PersonalInfo.GitHub },
	classify.Portfolio: func(p *profile.Profile, _ profile.Derived) string {
		return firstNonEmpty(p.PersonalInfo.Portfolio, p.PersonalInfo.Website)
	},
	classify.Website: func(p *profile.Profile, _ profile.Derived) string {
		return firstNonEmpty(p.PersonalInfo.Website, p.PersonalInfo.Portfolio, p.PersonalInfo.GitHub)
	},
	classify.CurrentCompany: func(_ *profile.Profile, d profile.Derived) string { return d.CurrentCompany },
	classify.CurrentTitle:   func(_ *profile.Profile, d profile.Derived) string { return d.CurrentTitle },
	classify.YearsExp: func(_ *profile.Profile, d profile.Derived) string {
		if d.YearsOfExperience == 0 {
			return ""
		}
		return strconv.Itoa(d.YearsOfExperience)
	},
	classify.School:         func(_ *profile.Profile, d profile.Derived) string { return d.School },
	classify.Degree:         func(_ *profile.Profile, d profile.Derived) string { return d.Degree },
	classify.FieldOfStudy:   func(_ *profile.Profile, d profile.Derived) string { return d.Field },
	classify.GraduationYear: func(_ *profile.Profile, d profile.Derived) string { return d.GraduationYear },
	classify.GPA: func(p *profile.Profile, _ profile.Derived) string {
		for _, e := range p.Education {
			if e.GPA != "" {
				return e.GPA
			}
		}
		return ""
	},
	classify.Salary: func(p *profile.Profile, _ profile.Derived) string {
		return firstNonEmpty(p.Preferences.SalaryExpectation, p.Preferences.CurrentSalary)
	},
	classify.NoticePeriod: func(p *profile.Profile, _ profile.Derived) string { return p.Preferences.NoticePeriod },
	classify.StartDate:    func(p *profile.Profile, _ profile.Derived) string { return p.Preferences.StartDate },
	classify.Pronouns:     func(p *profile.Profile, _ profile.Derived) string { return p.PersonalInfo.Pronouns },
}

var demographicFields = map[classify.Intent]func(profile.Demographics) string{
	classify.Gender:      func(d profile.Demographics) string { return d.Gender },
	classify.Ethnicity:   func(d profile.Demographics) string { return d.Ethnicity },
	classify.Veteran:     func(d profile.Demographics) string { return d.Veteran },
	classify.Disability:  func(d profile.Demographics) string { return d.Disability },
	classify.Orientation: func(d profile.Demographics) string { return d.Orientation },
}

// Resolver answers Tier 1 to 3 classifications for one run.
type Resolver struct {
	profile *profile.Profile
	derived profile.Derived
}

// New returns a resolver over p with facts derived once for the run.
func New(p *profile.Profile, derived profile.Derived) *Resolver {
	return &Resolver{profile: p, derived: derived}
}

// Derived returns the run facts the resolver was built with.
func (r *Resolver) Derived() profile.Derived {
	return r.derived
}

// Resolve dispatches to exactly one strategy, chosen by the classification's resolver.
func (r *Resolver) Resolve(q *form.Question, c classify.Classification) form.Resolution {
	switch c.Resolver {
	case classify.Direct:
		return r.direct(c.Intent)
	case classify.BooleanRule:
		return r.boolean(c)
	case classify.Demographic:
		return r.demographic(q, c.Intent)
	default:
		return form.Unresolved()
	}
}

func (r *Resolver) direct(intent classify.Intent) form.Resolution {
	field, ok := directFields[intent]
	if !ok {
		return form.Unresolved()
	}
	value := strings.TrimSpace(field(r.profile, r.derived))
	if value == "" {
		return form.Unresolved()
	}
	return form.Resolution{
		Answer:     form.TextAnswer(value),
		Source:     form.SourceProfile,
		Confidence: explicitConfidence,
	}
}

// boolean applies the literal, then the candidate's explicit setting, then the default table.
func (r *Resolver) boolean(c classify.Classification) form.Resolution {
	if c.Literal != "" {
		if v, ok := profile.Truthy(c.Literal); ok {
			return form.Resolution{Answer: form.BoolAnswer(v), Source: form.SourceRuleDefault, Confidence: explicitConfidence}
		}
		return form.Resolution{Answer: form.TextAnswer(c.Literal), Source: form.SourceRuleDefault, Confidence: explicitConfidence}
	}

	if c.ConfigKey != "" {
		if value, ok := r.profile.Setting(c.ConfigKey); ok {
			answer := form.TextAnswer(value)
			if v, ok := profile.Truthy(value); ok {
				answer = form.BoolAnswer(v)
			}
			return form.Resolution{Answer: answer, Source: form.SourceConfig, Confidence: explicitConfidence}
		}
	}

	if v, ok := booleanDefaults[c.Intent]; ok {
		return form.Resolution{Answer: form.BoolAnswer(v), Source: form.SourceRuleDefault, Confidence: defaultConfidence}
	}
	return form.Unresolved()
}

func (r *Resolver) demographic(q *form.Question, intent classify.Intent) form.Resolution {
	if field, ok := demographicFields[intent]; ok {
		if value := strings.TrimSpace(field(r.profile.Preferences.Demographics)); value != "" {
			return form.Resolution{Answer: form.TextAnswer(value), Source: form.SourceProfile, Confidence: explicitConfidence}
		}
	}

	if opt, ok := DeclineOption(q); ok {
		return form.Resolution{Answer: form.ChoiceAnswer(opt.Value), Source: form.SourceRuleDefault, Confidence: declineConfidence}
	}
	return form.Unresolved()
}

// DeclineOption finds the "prefer not to say" style option of a choice question.
func DeclineOption(q *form.Question) (form.Option, bool) {
	if q == nil {
		return form.Option{}, false
	}
	for _, opt := range q.Options {
		if declineRe.MatchString(form.Normalize(opt.Label)) {
			return opt, true
		}
	}
	return form.Option{}, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func joinNonEmpty(sep string, values ...string) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, sep)
}
