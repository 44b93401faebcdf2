package fill

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/autofill/internal/adapter"
	"github.com/spigell/autofill/internal/ai"
	"github.com/spigell/autofill/internal/form"
	"github.com/spigell/autofill/internal/page"
	"github.com/spigell/autofill/internal/profile"
	"github.com/spigell/autofill/internal/tracker"
	"github.com/spigell/autofill/internal/utils"
)

const greenhouseHTML = `<html><head><title>Job Application for Backend Engineer at Acme</title></head><body>
<form id="application_form">
  <div class="field"><label for="first_name">First Name <span class="asterisk">*</span></label><input type="text" id="first_name" name="first_name"></div>
  <div class="field"><label for="email">Email *</label><input type="email" id="email" name="email"></div>
  <div class="field"><label for="phone">Phone</label><input type="tel" id="phone" name="phone"></div>
  <div class="field"><label for="cover">Why do you want to work here?</label><textarea id="cover" name="cover" maxlength="1000"></textarea></div>
  <div class="field"><label for="country">Country</label>
    <select id="country" name="country"><option value="">Please select</option><option value="US">United States</option><option value="CA">Canada</option></select></div>
  <div class="field"><fieldset><legend>Will you now or in the future require visa sponsorship?</legend>
    <label><input type="radio" name="sponsorship" value="1"> Yes</label>
    <label><input type="radio" name="sponsorship" value="0"> No</label>
  </fieldset></div>
  <div class="field"><label><input type="checkbox" id="privacy" name="privacy"> I agree to the privacy policy</label></div>
  <div class="field"><label for="langs">Languages</label>
    <div id="langs"><input type="checkbox" id="lang-go" name="langs" value="go"><label for="lang-go">Go</label>
    <input type="checkbox" id="lang-rust" name="langs" value="rust"><label for="lang-rust">Rust</label></div></div>
  <div class="field"><label for="resume">Resume/CV</label><input type="file" id="resume" name="resume"></div>
  <input type="submit" value="Submit Application">
</form></body></html>`

const workdayStep1 = `<html><body><div data-automation-id="applyFlowPage">
<ol data-automation-id="progressBar"><li data-automation-id="progressBarActiveStep">My Information</li><li>My Experience</li><li>Review</li></ol>
<div data-automation-id="formField-firstName"><label for="wd-first">Given Name(s)</label><input id="wd-first" type="text"></div>
<div data-automation-id="formField-project"><label for="wd-project">Describe a project you are proud of</label><textarea id="wd-project"></textarea></div>
<button data-automation-id="bottom-navigation-next-button">Save and Continue</button>
</div></body></html>`

const workdayStep2 = `<html><body><div data-automation-id="applyFlowPage">
<ol data-automation-id="progressBar"><li>My Information</li><li data-automation-id="progressBarActiveStep">My Experience</li><li>Review</li></ol>
<div data-automation-id="formField-feature"><label for="wd-feature">What is your favourite Go feature</label><textarea id="wd-feature"></textarea></div>
<button data-automation-id="bottom-navigation-next-button">Save and Continue</button>
</div></body></html>`

const workdayStep3 = `<html><body><div data-automation-id="applyFlowPage">
<ol data-automation-id="progressBar"><li>My Information</li><li>My Experience</li><li data-automation-id="progressBarActiveStep">Review</li></ol>
<div data-automation-id="formField-notes"><label for="wd-notes">Is there anything else you would like us to know?</label><textarea id="wd-notes"></textarea></div>
</div></body></html>`

func testProfile() *profile.Profile {
	return &profile.Profile{
		PersonalInfo: profile.PersonalInfo{
			FirstName: "Ada",
			LastName:  "Lovelace",
			Email:     "ada@example.com",
			Phone:     "+1 555 010 0100",
		},
		Location:   profile.Location{City: "Austin", Country: "United States"},
		Experience: []profile.Experience{{Employer: "Analytical Engines", Title: "Engineer", Start: "2017-01", Ongoing: true}},
		Skills:     []string{"Go", "Kubernetes", "PostgreSQL"},
	}
}

type stubBackend struct {
	errs     []error
	response string
	calls    int
}

func (s *stubBackend) Generate(context.Context, string, ai.Request) (string, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return "", err
	}
	return s.response, nil
}

func (s *stubBackend) Model() string { return "stub" }

func newOrchestrator(t *testing.T, deps Deps) *Orchestrator {
	t.Helper()
	if deps.Adapters == nil {
		deps.Adapters = adapter.NewRegistry(nil, utils.Backoff{})
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	opts := DefaultOptions()
	opts.WriteDelay = 0
	opts.Job = profile.Job{Title: "Backend Engineer", Company: "Acme"}
	o, err := New(deps, opts)
	require.NoError(t, err)
	o.newID = func() string { return "run-1" }
	return o
}

func records(report *form.Report) map[string]form.Record {
	out := make(map[string]form.Record, len(report.Records))
	for _, r := range report.Records {
		out[r.Question] = r
	}
	return out
}

func TestRunFillsGreenhouseForm(t *testing.T) {
	p, err := page.NewStatic("https://boards.greenhouse.io/acme/jobs/1", greenhouseHTML)
	require.NoError(t, err)

	o := newOrchestrator(t, Deps{Profile: testProfile()})
	report, err := o.Run(context.Background(), p)
	require.NoError(t, err)
	require.NotNil(t, report)

	assert.Equal(t, "greenhouse", report.Platform)
	assert.Equal(t, "run-1", report.RunID)
	assert.Equal(t, 9, report.Attempted)
	assert.Equal(t, 7, report.Filled)
	assert.Equal(t, 7, report.Verified)
	assert.Equal(t, 2, report.Skipped)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, -1, report.CredentialIndex)

	recs := records(report)
	assert.Equal(t, form.SourceProfile, recs["First Name"].Source)
	assert.Equal(t, "United States", recs["Country"].Answer)

	sponsorship := recs["Will you now or in the future require visa sponsorship?"]
	assert.Equal(t, form.SourceRuleDefault, sponsorship.Source)
	assert.Equal(t, "No", sponsorship.Answer)

	assert.Equal(t, form.SourceTemplate, recs["Why do you want to work here?"].Source)
	assert.Contains(t, recs["Why do you want to work here?"].Answer, "Backend Engineer")

	assert.Equal(t, form.ReasonNoAIConfig, recs["Languages"].Reason)
	assert.True(t, recs["Languages"].Skipped)
	assert.Equal(t, form.ReasonFileUpload, recs["Resume/CV"].Reason)

	ctx := context.Background()
	value, err := p.Value(ctx, "#country")
	require.NoError(t, err)
	assert.Equal(t, "US", value)
	checked, err := p.Checked(ctx, "#privacy")
	require.NoError(t, err)
	assert.True(t, checked)

	assert.Equal(t, []string{
		"idle", "adapter_bound", "scanning", "classifying", "resolving_tier1_3",
		"resolving_templates", "resolving_generative", "writing", "verifying", "reported",
	}, report.States)
}

func TestRunTierOnePrecedesTemplatesAndGenerative(t *testing.T) {
	p, err := page.NewStatic("https://boards.greenhouse.io/acme/jobs/1", greenhouseHTML)
	require.NoError(t, err)

	backend := &stubBackend{response: `{"answers":[{"id":1,"answer":"Go"}]}`}
	o := newOrchestrator(t, Deps{
		Profile:     testProfile(),
		Generative:  ai.NewClient(backend, nil, ai.DefaultOptions(), nil),
		Credentials: ai.NewCredentials("key"),
	})
	report, err := o.Run(context.Background(), p)
	require.NoError(t, err)

	for _, rec := range report.Records {
		if rec.Tier == 1 && rec.Filled {
			assert.NotEqual(t, form.SourceTemplate, rec.Source, rec.Question)
			assert.NotEqual(t, form.SourceGenerative, rec.Source, rec.Question)
		}
	}

	langs := records(report)["Languages"]
	assert.True(t, langs.Filled)
	assert.Equal(t, form.SourceGenerative, langs.Source)
	assert.Equal(t, "Go", langs.Answer)
	assert.Equal(t, 1, backend.calls, "one batch per step")
	assert.Equal(t, 0, report.CredentialIndex)

	checked, err := p.Checked(context.Background(), "#lang-go")
	require.NoError(t, err)
	assert.True(t, checked)
}

func TestRunContainsValidatorRejection(t *testing.T) {
	p, err := page.NewStatic("https://boards.greenhouse.io/acme/jobs/1", greenhouseHTML)
	require.NoError(t, err)

	prof := testProfile()
	prof.Location.Country = "Germany"
	o := newOrchestrator(t, Deps{Profile: prof})

	report, err := o.Run(context.Background(), p)
	require.NoError(t, err)

	country := records(report)["Country"]
	assert.False(t, country.Filled)
	assert.Equal(t, form.ReasonInvalidOption, country.Reason)
	assert.Contains(t, country.Error, "United States | Canada")
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 6, report.Filled)

	value, err := p.Value(context.Background(), "#country")
	require.NoError(t, err)
	assert.Empty(t, value, "rejected answers are never written")
}

func TestRunMultiStepMarksAIUnavailableAfterExhaustion(t *testing.T) {
	p, err := page.NewStatic("https://acme.wd5.myworkdayjobs.com/en-US/careers/job/apply", workdayStep1, workdayStep2, workdayStep3)
	require.NoError(t, err)

	backend := &stubBackend{errs: []error{ai.ErrRateLimited, ai.ErrUnavailable}}
	creds := ai.NewCredentials("k0", "k1")
	o := newOrchestrator(t, Deps{
		Profile:     testProfile(),
		Generative:  ai.NewClient(backend, nil, ai.DefaultOptions(), nil),
		Credentials: creds,
	})

	report, err := o.Run(context.Background(), p)
	require.NoError(t, err)

	assert.Len(t, report.Steps, 3)
	assert.Equal(t, 2, p.Step())
	assert.Equal(t, 2, backend.calls, "exhausted credentials are not retried on later steps")

	recs := records(report)
	assert.True(t, recs["Given Name(s)"].Filled, "tier 1 answers survive a batch failure")

	project := recs["Describe a project you are proud of"]
	assert.Equal(t, form.ReasonAIBatchFailed, project.Reason)
	assert.True(t, project.Failed())
	assert.Contains(t, project.Error, "exhausted")

	feature := recs["What is your favourite Go feature"]
	assert.True(t, feature.Skipped)
	assert.Equal(t, form.ReasonAIUnavailable, feature.Reason)

	notes := recs["Is there anything else you would like us to know?"]
	assert.Equal(t, form.SourceTemplate, notes.Source)
	assert.Equal(t, 3, notes.Step)
}

type endlessAdapter struct {
	step     int
	advances int
}

func (a *endlessAdapter) Name() string                                              { return "endless" }
func (a *endlessAdapter) IsFormReady(context.Context) bool                          { return true }
func (a *endlessAdapter) FindQuestionBlocks(context.Context) []*form.Block          { return nil }
func (a *endlessAdapter) FillAnswer(context.Context, *form.Block, form.Answer) bool { return false }
func (a *endlessAdapter) Verify(context.Context, *form.Block, form.Answer) bool     { return false }
func (a *endlessAdapter) ExtractQuestion(context.Context, *form.Block) (*form.Question, error) {
	return nil, nil
}

func (a *endlessAdapter) StepInfo(context.Context) form.StepInfo {
	return form.StepInfo{Current: a.step + 1, Total: 100, IsMultiStep: true}
}

func (a *endlessAdapter) AdvanceStep(context.Context) bool {
	a.step++
	a.advances++
	return true
}

type fixedSelector struct {
	adapter adapter.Adapter
	err     error
}

func (s fixedSelector) Select(context.Context, page.Page) (adapter.Adapter, error) {
	return s.adapter, s.err
}

func TestRunStopsAtStepCap(t *testing.T) {
	p, err := page.NewStatic("https://example.com/apply", "<html><body></body></html>")
	require.NoError(t, err)

	ad := &endlessAdapter{}
	o := newOrchestrator(t, Deps{Profile: testProfile(), Adapters: fixedSelector{adapter: ad}})

	report, err := o.Run(context.Background(), p)
	require.NoError(t, err)
	assert.Len(t, report.Steps, 10)
	assert.Equal(t, 9, ad.advances)
	assert.Equal(t, "reported", report.States[len(report.States)-1])
}

func TestRunWithoutProfile(t *testing.T) {
	p, err := page.NewStatic("https://boards.greenhouse.io/acme/jobs/1", greenhouseHTML)
	require.NoError(t, err)

	o := newOrchestrator(t, Deps{})
	report, err := o.Run(context.Background(), p)
	require.ErrorIs(t, err, ErrNoProfile)
	require.NotNil(t, report)
	assert.Equal(t, []string{"idle", "reported"}, report.States)
	assert.Equal(t, 0, report.Attempted)
	assert.NotEmpty(t, report.Error)

	value, err := p.Value(context.Background(), "#first_name")
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestRunWithoutAdapter(t *testing.T) {
	p, err := page.NewStatic("https://news.example.com/", `<html><head><title>News</title></head><body><p>Nothing</p></body></html>`)
	require.NoError(t, err)

	o := newOrchestrator(t, Deps{Profile: testProfile()})
	report, err := o.Run(context.Background(), p)
	require.ErrorIs(t, err, adapter.ErrNoAdapter)
	require.NotNil(t, report)
	assert.Empty(t, report.Records)
}

func TestRunRemembersAndReusesAnswers(t *testing.T) {
	ctx := context.Background()
	store := tracker.NewFileStore(filepath.Join(t.TempDir(), "answers.json"))
	tr, err := tracker.New(ctx, store, tracker.DefaultOptions(), nil)
	require.NoError(t, err)

	first, err := page.NewStatic("https://boards.greenhouse.io/acme/jobs/1", greenhouseHTML)
	require.NoError(t, err)
	report, err := newOrchestrator(t, Deps{Profile: testProfile(), Tracker: tr}).Run(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, 7, report.Remembered)

	exported := tr.Export()
	require.NotEmpty(t, exported)

	// a later run with a profile that lost its phone number reuses the earlier answer
	prof := testProfile()
	prof.PersonalInfo.Phone = ""
	reloaded, err := tracker.New(ctx, store, tracker.DefaultOptions(), nil)
	require.NoError(t, err)

	second, err := page.NewStatic("https://boards.greenhouse.io/acme/jobs/2", greenhouseHTML)
	require.NoError(t, err)
	report, err = newOrchestrator(t, Deps{Profile: prof, Tracker: reloaded}).Run(ctx, second)
	require.NoError(t, err)

	phone := records(report)["Phone"]
	assert.True(t, phone.Filled)
	assert.Equal(t, form.SourceCache, phone.Source)
	assert.Equal(t, "+1 555 010 0100", phone.Answer)
}

func TestDisabledStageIsSkipped(t *testing.T) {
	p, err := page.NewStatic("https://boards.greenhouse.io/acme/jobs/1", greenhouseHTML)
	require.NoError(t, err)

	o := newOrchestrator(t, Deps{Profile: testProfile()})
	DisableByName(o.Stages(), StageTemplates, "disabled by flag")

	report, err := o.Run(context.Background(), p)
	require.NoError(t, err)

	cover := records(report)["Why do you want to work here?"]
	assert.Equal(t, form.ReasonNoAIConfig, cover.Reason)

	var status Status
	for _, s := range Describe(o.Stages()) {
		if s.Name == StageTemplates {
			status = s
		}
	}
	assert.False(t, status.Enabled)
	assert.Equal(t, "disabled by flag", status.Reason)
}

func TestRunCancelledContextStillReports(t *testing.T) {
	p, err := page.NewStatic("https://boards.greenhouse.io/acme/jobs/1", greenhouseHTML)
	require.NoError(t, err)

	o := newOrchestrator(t, Deps{Profile: testProfile()})
	o.opts.WriteDelay = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := o.Run(ctx, p)
	require.Error(t, err)
	require.NotNil(t, report)
	assert.Equal(t, "reported", report.States[len(report.States)-1])
}
