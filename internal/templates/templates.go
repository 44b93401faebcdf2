// Package templates answers common open-ended questions from canned skeletons filled
// with profile values.
package templates

import (
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/spigell/autofill/internal/form"
	"github.com/spigell/autofill/internal/profile"

	"gopkg.in/yaml.v3"
)

// Confidence of any template answer: above the escalation threshold, below explicit profile values.
const Confidence = 0.8

//go:embed catalog.yaml
var catalog []byte

var placeholderRe = regexp.MustCompile(`\{([A-Za-z]+)\}`)

// fallbacks replace placeholders whose value is unknown.
var fallbacks = map[string]string{
	"skills":          "my core technical skills",
	"experience":      "a solid professional background",
	"currentCompany":  "my current company",
	"currentTitle":    "an experienced professional",
	"roleName":        "this role",
	"companyName":     "your company",
	"yearsExperience": "several",
	"salary":          "a competitive salary in line with the market",
	"name":            "the applicant",
	"school":          "my university",
	"degree":          "my degree",
}

type document struct {
	Templates []struct {
		Name     string   `yaml:"name"`
		Patterns []string `yaml:"patterns"`
		Text     string   `yaml:"text"`
	} `yaml:"templates"`
}

type template struct {
	name     string
	patterns []*regexp.Regexp
	text     string
}

// Engine holds the ordered template list.
type Engine struct {
	templates []template
}

// Default returns the engine built from the embedded catalog.
func Default() (*Engine, error) {
	return Parse(catalog)
}

// Parse builds an engine from a yaml catalog.
func Parse(data []byte) (*Engine, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding template catalog: %w", err)
	}
	if len(doc.Templates) == 0 {
		return nil, errors.New("template catalog is empty")
	}

	e := &Engine{}
	for _, t := range doc.Templates {
		if t.Name == "" || strings.TrimSpace(t.Text) == "" || len(t.Patterns) == 0 {
			return nil, fmt.Errorf("template %q needs a name, a text and at least one pattern", t.Name)
		}
		for _, m := range placeholderRe.FindAllStringSubmatch(t.Text, -1) {
			if _, ok := fallbacks[m[1]]; !ok {
				return nil, fmt.Errorf("template %s: unknown placeholder {%s}", t.Name, m[1])
			}
		}
		compiled := template{name: t.Name, text: strings.TrimSpace(t.Text)}
		for _, p := range t.Patterns {
			re, err := regexp.Compile(p)
			if err != nil {
				return nil, fmt.Errorf("template %s: %w", t.Name, err)
			}
			compiled.patterns = append(compiled.patterns, re)
		}
		e.templates = append(e.templates, compiled)
	}
	return e, nil
}

// Names lists the templates in match order.
func (e *Engine) Names() []string {
	names := make([]string, 0, len(e.templates))
	for _, t := range e.templates {
		names = append(names, t.name)
	}
	return names
}

// Match returns the name of the first template whose patterns match the normalized text.
func (e *Engine) Match(normalized string) (string, bool) {
	t, ok := e.match(normalized)
	return t.name, ok
}

func (e *Engine) match(normalized string) (template, bool) {
	for _, t := range e.templates {
		for _, re := range t.patterns {
			if re.MatchString(normalized) {
				return t, true
			}
		}
	}
	return template{}, false
}

// Resolve answers a free-text question from the first matching template.
// Choice, boolean and file questions are never answered by a template.
func (e *Engine) Resolve(q *form.Question, values Values) form.Resolution {
	if q == nil || !q.Type.IsText() {
		return form.Unresolved()
	}
	normalized := q.Normalized
	if normalized == "" {
		normalized = form.Normalize(q.Raw)
	}

	t, ok := e.match(normalized)
	if !ok {
		return form.Unresolved()
	}

	return form.Resolution{
		Answer:     form.TextAnswer(Render(t.text, values)),
		Source:     form.SourceTemplate,
		Confidence: Confidence,
	}
}

// Values are the placeholder values of one run.
type Values map[string]string

// NewValues collects placeholder values from the profile, its derived facts and the target job.
func NewValues(p *profile.Profile, d profile.Derived, job profile.Job) Values {
	v := Values{
		"skills":         d.Skills,
		"experience":     d.Experience,
		"currentCompany": d.CurrentCompany,
		"currentTitle":   d.CurrentTitle,
		"roleName":       job.Title,
		"companyName":    job.Company,
		"name":           d.FullName,
		"school":         d.School,
		"degree":         d.Degree,
	}
	if d.YearsOfExperience > 0 {
		v["yearsExperience"] = strconv.Itoa(d.YearsOfExperience)
	}
	if p != nil {
		v["salary"] = p.Preferences.SalaryExpectation
	}
	return v
}

// Render substitutes placeholders, degrading unknown values to a generic phrase.
func Render(text string, values Values) string {
	return placeholderRe.ReplaceAllStringFunc(text, func(m string) string {
		key := m[1 : len(m)-1]
		if v := strings.TrimSpace(values[key]); v != "" {
			return v
		}
		if f, ok := fallbacks[key]; ok {
			return f
		}
		return m
	})
}
