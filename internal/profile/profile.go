// Package profile holds the candidate's reusable facts and the values derived from them.
package profile

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// ErrEmpty is returned when a loaded profile carries no identity at all.
var ErrEmpty = errors.New("profile has no personal info")

type Profile struct {
	PersonalInfo PersonalInfo `mapstructure:"personal-info" json:"personal_info"`
	Location     Location     `mapstructure:"location" json:"location"`
	// Experience is ordered most recent first.
	Experience  []Experience `mapstructure:"experience" json:"experience" validate:"dive"`
	Education   []Education  `mapstructure:"education" json:"education" validate:"dive"`
	Skills      []string     `mapstructure:"skills" json:"skills"`
	Preferences Preferences  `mapstructure:"preferences" json:"preferences"`
}

type PersonalInfo struct {
	FirstName string `mapstructure:"first-name" json:"first_name"`
	LastName  string `mapstructure:"last-name" json:"last_name"`
	FullName  string `mapstructure:"full-name" json:"full_name,omitempty"`
	Email     string `mapstructure:"email" json:"email" validate:"omitempty,email"`
	Phone     string `mapstructure:"phone" json:"phone,omitempty"`
	LinkedIn  string `mapstructure:"linkedin" json:"linkedin,omitempty" validate:"omitempty,url"`
	GitHub    string `mapstructure:"github" json:"github,omitempty" validate:"omitempty,url"`
	Portfolio string `mapstructure:"portfolio" json:"portfolio,omitempty" validate:"omitempty,url"`
	Website   string `mapstructure:"website" json:"website,omitempty" validate:"omitempty,url"`
	Summary   string `mapstructure:"summary" json:"summary,omitempty"`
	Pronouns  string `mapstructure:"pronouns" json:"pronouns,omitempty"`
}

type Location struct {
	Address string `mapstructure:"address" json:"address,omitempty"`
	City    string `mapstructure:"city" json:"city,omitempty"`
	State   string `mapstructure:"state" json:"state,omitempty"`
	Country string `mapstructure:"country" json:"country,omitempty"`
	ZipCode string `mapstructure:"zip-code" json:"zip_code,omitempty"`
}

type Experience struct {
	Employer string `mapstructure:"employer" json:"employer" validate:"required"`
	Title    string `mapstructure:"title" json:"title"`
	// Start and End accept YYYY, YYYY-MM or YYYY-MM-DD.
	Start           string   `mapstructure:"start" json:"start"`
	End             string   `mapstructure:"end" json:"end,omitempty"`
	Ongoing         bool     `mapstructure:"ongoing" json:"ongoing,omitempty"`
	Accomplishments []string `mapstructure:"accomplishments" json:"accomplishments,omitempty"`
}

type Education struct {
	School     string `mapstructure:"school" json:"school" validate:"required"`
	Degree     string `mapstructure:"degree" json:"degree,omitempty"`
	Field      string `mapstructure:"field" json:"field,omitempty"`
	Start      string `mapstructure:"start" json:"start,omitempty"`
	Graduation string `mapstructure:"graduation" json:"graduation,omitempty"`
	GPA        string `mapstructure:"gpa" json:"gpa,omitempty"`
}

// Preferences keep answers the candidate gave once for recurring questions.
// Pointers distinguish "not answered" from an explicit false.
type Preferences struct {
	SalaryExpectation string       `mapstructure:"salary-expectation" json:"salary_expectation,omitempty"`
	CurrentSalary     string       `mapstructure:"current-salary" json:"current_salary,omitempty"`
	NoticePeriod      string       `mapstructure:"notice-period" json:"notice_period,omitempty"`
	StartDate         string       `mapstructure:"start-date" json:"start_date,omitempty"`
	WorkAuthorization *bool        `mapstructure:"work-authorization" json:"work_authorization,omitempty"`
	Sponsorship       *bool        `mapstructure:"sponsorship" json:"sponsorship,omitempty"`
	Relocation        *bool        `mapstructure:"relocation" json:"relocation,omitempty"`
	Remote            *bool        `mapstructure:"remote" json:"remote,omitempty"`
	Demographics      Demographics `mapstructure:"demographics" json:"demographics"`
	// Answers holds any other recurring answer by config key, e.g. "drivers-license: yes".
	Answers map[string]string `mapstructure:"answers" json:"answers,omitempty"`
}

type Demographics struct {
	Gender      string `mapstructure:"gender" json:"gender,omitempty"`
	Ethnicity   string `mapstructure:"ethnicity" json:"ethnicity,omitempty"`
	Veteran     string `mapstructure:"veteran" json:"veteran,omitempty"`
	Disability  string `mapstructure:"disability" json:"disability,omitempty"`
	Orientation string `mapstructure:"orientation" json:"orientation,omitempty"`
}

// Load reads a json or yaml profile document and validates it.
func Load(path string) (*Profile, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading profile %s: %w", path, err)
	}

	// unknown keys are an error so a camelCase or misspelled document does not load empty
	var p Profile
	if err := v.UnmarshalExact(&p); err != nil {
		return nil, fmt.Errorf("decoding profile %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	return &p, nil
}

// Validate checks field formats and that the profile identifies someone.
func (p *Profile) Validate() error {
	if p.Name() == "" && p.PersonalInfo.Email == "" {
		return ErrEmpty
	}
	return validator.New().Struct(p)
}

// Name returns the full name, composed from first and last name when not set explicitly.
func (p *Profile) Name() string {
	if p.PersonalInfo.FullName != "" {
		return strings.TrimSpace(p.PersonalInfo.FullName)
	}
	return strings.TrimSpace(p.PersonalInfo.FirstName + " " + p.PersonalInfo.LastName)
}

// Setting returns the explicit answer stored under key. Typed preferences are
// rendered as "yes"/"no"; ok is false when the candidate never answered.
func (p *Profile) Setting(key string) (string, bool) {
	prefs := p.Preferences
	typed := map[string]*bool{
		"work-authorization": prefs.WorkAuthorization,
		"sponsorship":        prefs.Sponsorship,
		"relocation":         prefs.Relocation,
		"remote":             prefs.Remote,
	}
	if v, ok := typed[key]; ok && v != nil {
		if *v {
			return "yes", true
		}
		return "no", true
	}

	for k, v := range prefs.Answers {
		if strings.EqualFold(k, key) && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// Truthy coerces a free-form answer to a boolean. ok is false for values that are neither.
func Truthy(value string) (v bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "y", "true", "1", "on":
		return true, true
	case "no", "n", "false", "0", "off":
		return false, true
	}
	if b, err := strconv.ParseBool(value); err == nil {
		return b, true
	}
	return false, false
}

// Job is the target posting: used for template placeholders and generative prompt context.
type Job struct {
	Title   string `mapstructure:"title" json:"title,omitempty"`
	Company string `mapstructure:"company" json:"company,omitempty"`
}
