package resolve

import (
	"testing"
	"time"

	"github.com/spigell/autofill/internal/classify"
	"github.com/spigell/autofill/internal/form"
	"github.com/spigell/autofill/internal/profile"

	"github.com/stretchr/testify/assert"
)

func boolPtr(v bool) *bool { return &v }

func testProfile() *profile.Profile {
	return &profile.Profile{
		PersonalInfo: profile.PersonalInfo{FirstName: "Ada", LastName: "Lovelace", Email: "a@b.com"},
		Location:     profile.Location{City: "London", Country: "United Kingdom"},
		Experience: []profile.Experience{
			{Employer: "Analytical Engines", Title: "Principal Engineer", Start: "2018-01", Ongoing: true},
		},
		Preferences: profile.Preferences{
			CurrentSalary:     "90000",
			WorkAuthorization: boolPtr(false),
			Answers:           map[string]string{"travel": "up to 25%"},
		},
	}
}

func newResolver() *Resolver {
	p := testProfile()
	return New(p, p.Derive(time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)))
}

func resolveText(r *Resolver, raw string, typ form.QuestionType, options ...form.Option) (classify.Classification, form.Resolution) {
	q := &form.Question{Raw: raw, Normalized: form.Normalize(raw), Type: typ, Options: options}
	c := classify.Classify(q)
	return c, r.Resolve(q, c)
}

func TestDirectFieldScenario(t *testing.T) {
	t.Parallel()

	c, res := resolveText(newResolver(), "Email Address", form.ShortText)
	assert.Equal(t, 1, c.Tier)
	assert.Equal(t, classify.Email, c.Intent)
	assert.Equal(t, form.TextAnswer("a@b.com"), res.Answer)
	assert.Equal(t, form.SourceProfile, res.Source)
	assert.Equal(t, 1.0, res.Confidence)
	assert.True(t, res.Resolved())
}

func TestDirectFields(t *testing.T) {
	t.Parallel()
	r := newResolver()

	cases := map[string]string{
		"Full name":                         "Ada Lovelace",
		"Location":                          "London, United Kingdom",
		"Current company":                   "Analytical Engines",
		"Job title":                         "Principal Engineer",
		"Years of experience":               "6",
		"What are your salary expectations": "90000",
	}
	for raw, expected := range cases {
		_, res := resolveText(r, raw, form.ShortText)
		assert.Equal(t, expected, res.Answer.Text, raw)
		assert.True(t, res.Resolved(), raw)
	}
}

func TestMissingDirectFieldIsUnresolved(t *testing.T) {
	t.Parallel()

	_, res := resolveText(newResolver(), "Phone", form.ShortText)
	assert.Equal(t, 0.0, res.Confidence)
	assert.False(t, res.Resolved())
}

func TestBooleanDefaultScenario(t *testing.T) {
	t.Parallel()

	c, res := resolveText(newResolver(), "Do you require visa sponsorship?", form.SingleChoice)
	assert.Equal(t, 2, c.Tier)
	assert.Equal(t, classify.Sponsorship, c.Intent)
	assert.Equal(t, form.BoolAnswer(false), res.Answer)
	assert.Equal(t, form.SourceRuleDefault, res.Source)
	assert.Equal(t, 0.7, res.Confidence)
}

func TestExplicitSettingOutranksDefault(t *testing.T) {
	t.Parallel()

	// the default for work authorization is true; the profile explicitly says no
	_, res := resolveText(newResolver(), "Are you legally authorized to work in the UK?", form.SingleChoice)
	assert.Equal(t, form.BoolAnswer(false), res.Answer)
	assert.Equal(t, form.SourceConfig, res.Source)
	assert.Equal(t, 1.0, res.Confidence)
}

func TestNonBooleanSettingIsKeptAsText(t *testing.T) {
	t.Parallel()

	_, res := resolveText(newResolver(), "Are you willing to travel?", form.ShortText)
	assert.Equal(t, form.TextAnswer("up to 25%"), res.Answer)
	assert.Equal(t, form.SourceConfig, res.Source)
}

func TestBooleanWithoutDefaultEscalates(t *testing.T) {
	t.Parallel()

	_, res := resolveText(newResolver(), "Are you willing to relocate?", form.Boolean)
	assert.False(t, res.Resolved())
}

func TestLiteralWins(t *testing.T) {
	t.Parallel()

	_, res := resolveText(newResolver(), "I agree to the privacy policy", form.Boolean)
	assert.Equal(t, form.BoolAnswer(true), res.Answer)
	assert.True(t, res.Resolved())
}

func TestDemographic(t *testing.T) {
	t.Parallel()

	options := []form.Option{
		{Value: "m", Label: "Male"},
		{Value: "f", Label: "Female"},
		{Value: "x", Label: "I don't wish to answer"},
	}

	t.Run("declines without a profile value", func(t *testing.T) {
		t.Parallel()
		c, res := resolveText(newResolver(), "Gender", form.SingleChoice, options...)
		assert.Equal(t, 3, c.Tier)
		assert.Equal(t, form.ChoiceAnswer("x"), res.Answer)
		assert.True(t, res.Resolved())
	})

	t.Run("uses the profile value", func(t *testing.T) {
		t.Parallel()
		p := testProfile()
		p.Preferences.Demographics.Gender = "Female"
		r := New(p, p.Derive(time.Now()))
		_, res := resolveText(r, "Gender", form.SingleChoice, options...)
		assert.Equal(t, form.TextAnswer("Female"), res.Answer)
		assert.Equal(t, form.SourceProfile, res.Source)
	})

	t.Run("unresolved without a decline option", func(t *testing.T) {
		t.Parallel()
		_, res := resolveText(newResolver(), "Veteran status", form.SingleChoice, options[:2]...)
		assert.False(t, res.Resolved())
	})
}

func TestGenerativeIsAlwaysUnresolved(t *testing.T) {
	t.Parallel()

	c, res := resolveText(newResolver(), "Tell us about a hard bug you fixed", form.LongText)
	assert.Equal(t, classify.Generative, c.Resolver)
	assert.Equal(t, form.Unresolved(), res)
}
