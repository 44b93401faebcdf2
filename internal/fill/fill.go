// Package fill drives one form-fill run: bind an adapter, then per form step
// scan, classify, resolve through the stages, validate, write and verify.
package fill

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spigell/autofill/internal/adapter"
	"github.com/spigell/autofill/internal/ai"
	"github.com/spigell/autofill/internal/classify"
	"github.com/spigell/autofill/internal/form"
	"github.com/spigell/autofill/internal/logger"
	"github.com/spigell/autofill/internal/metrics"
	"github.com/spigell/autofill/internal/page"
	"github.com/spigell/autofill/internal/profile"
	"github.com/spigell/autofill/internal/resolve"
	"github.com/spigell/autofill/internal/templates"
	"github.com/spigell/autofill/internal/tracker"
	"github.com/spigell/autofill/internal/utils"
	"github.com/spigell/autofill/internal/validate"
)

var (
	// ErrNoProfile aborts a run before scanning.
	ErrNoProfile = errors.New("profile is required")
	// ErrNotReady means the form never showed fillable controls.
	ErrNotReady = errors.New("form did not become ready")
)

// Run results used as metric labels.
const (
	ResultCompleted = "completed"
	ResultPartial   = "partial"
	ResultAborted   = "aborted"
)

// Selector binds an adapter to a page. adapter.Registry is the production implementation.
type Selector interface {
	Select(ctx context.Context, p page.Page) (adapter.Adapter, error)
}

// Options tune a run.
type Options struct {
	// MaxSteps caps the multi-step loop.
	MaxSteps int
	// ReadyTimeout bounds the wait for fillable controls.
	ReadyTimeout time.Duration
	// WriteDelay separates consecutive field writes.
	WriteDelay time.Duration
	// Job is the target job used by templates and prompts.
	Job profile.Job
}

// DefaultOptions returns the run defaults.
func DefaultOptions() Options {
	return Options{
		MaxSteps:     10,
		ReadyTimeout: 10 * time.Second,
		WriteDelay:   50 * time.Millisecond,
	}
}

// Deps are the collaborators of the orchestrator. Only Adapters and Profile are required.
type Deps struct {
	Adapters    Selector
	Profile     *profile.Profile
	Templates   *templates.Engine
	Generative  *ai.Client
	Credentials *ai.Credentials
	Tracker     *tracker.Tracker
	Validator   *validate.Validator
	Logger      *zap.Logger
}

// Orchestrator runs fills. It is not safe for concurrent use: a run owns its page.
type Orchestrator struct {
	deps   Deps
	opts   Options
	stages []Stage
	logger *zap.Logger

	now   func() time.Time
	newID func() string
}

// New returns an orchestrator with the default stages.
func New(deps Deps, opts Options) (*Orchestrator, error) {
	if deps.Adapters == nil {
		return nil, errors.New("adapter selector is required")
	}
	if deps.Templates == nil {
		engine, err := templates.Default()
		if err != nil {
			return nil, fmt.Errorf("load templates: %w", err)
		}
		deps.Templates = engine
	}
	if deps.Validator == nil {
		deps.Validator = validate.New()
	}

	defaults := DefaultOptions()
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = defaults.MaxSteps
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = defaults.ReadyTimeout
	}
	if opts.WriteDelay < 0 {
		opts.WriteDelay = 0
	}

	return &Orchestrator{
		deps:   deps,
		opts:   opts,
		stages: DefaultStages(),
		logger: logger.WithFields(deps.Logger),
		now:    time.Now,
		newID:  uuid.NewString,
	}, nil
}

// Stages exposes the resolution stages so callers can disable or describe them.
func (o *Orchestrator) Stages() []Stage {
	return o.stages
}

// Run fills the form on p. The report is always returned, also together with an error.
func (o *Orchestrator) Run(ctx context.Context, p page.Page) (*form.Report, error) {
	started := o.now()
	report := form.NewReport(o.newID(), started)
	report.URL = p.URL()
	m := newMachine()
	log := logger.WithFields(o.logger, logger.FillFields("", report.RunID)...)

	finish := func(result string, err error) (*form.Report, error) {
		if tErr := m.enter(Reported); tErr != nil && err == nil {
			err = tErr
		}
		report.States = m.trail
		report.Elapsed = o.now().Sub(started)
		if err != nil {
			report.Error = err.Error()
			result = ResultAborted
		}
		report.Result = result
		metrics.ObserveRun(report.Platform, result, report.Elapsed)
		log.Info("fill run finished",
			zap.String("result", result),
			zap.Int("attempted", report.Attempted),
			zap.Int("filled", report.Filled),
			zap.Int("verified", report.Verified),
			zap.Int("failed", report.Failed),
			zap.Int("skipped", report.Skipped),
			zap.Int("steps", len(report.Steps)),
			zap.Duration("elapsed", report.Elapsed),
		)
		return report, err
	}

	if o.deps.Profile == nil {
		return finish(ResultAborted, ErrNoProfile)
	}

	ad, err := o.deps.Adapters.Select(ctx, p)
	if err != nil {
		return finish(ResultAborted, err)
	}
	if err := m.enter(AdapterBound); err != nil {
		return finish(ResultAborted, err)
	}
	report.Platform = ad.Name()
	log = log.With(zap.String(logger.FieldPlatform, ad.Name()))

	for _, st := range Describe(o.stages) {
		log.Debug("resolution stage", zap.String("name", st.Name), zap.Bool("enabled", st.Enabled), zap.String("reason", st.Reason))
	}

	if err := o.waitReady(ctx, ad); err != nil {
		return finish(ResultAborted, fmt.Errorf("%w: %v", ErrNotReady, err))
	}

	env := o.newEnv(log)

	for step := 1; ; step++ {
		info := ad.StepInfo(ctx)
		report.Steps = append(report.Steps, info)

		if err := o.processStep(ctx, ad, env, m, report, step, log); err != nil {
			return finish(ResultAborted, err)
		}

		if !info.IsMultiStep || info.Current >= info.Total {
			break
		}
		if step >= o.opts.MaxSteps {
			log.Warn("step limit reached", zap.Int("max_steps", o.opts.MaxSteps))
			break
		}
		if !ad.AdvanceStep(ctx) {
			log.Warn("could not advance to the next step", zap.Int("step", step))
			break
		}
		if err := o.waitReady(ctx, ad); err != nil {
			log.Warn("next step did not become ready", zap.Int("step", step+1), zap.Error(err))
			break
		}
	}

	report.CredentialIndex = env.credential
	result := ResultCompleted
	if report.Failed > 0 {
		result = ResultPartial
	}
	return finish(result, nil)
}

func (o *Orchestrator) newEnv(log *zap.Logger) *Env {
	derived := o.deps.Profile.Derive(o.now())
	job := o.opts.Job
	return &Env{
		Resolver:    resolve.New(o.deps.Profile, derived),
		Templates:   o.deps.Templates,
		Values:      templates.NewValues(o.deps.Profile, derived, job),
		Tracker:     o.deps.Tracker,
		Generative:  o.deps.Generative,
		Credentials: o.deps.Credentials,
		Candidate: ai.Candidate{
			Name:              derived.FullName,
			YearsOfExperience: derived.YearsOfExperience,
			Skills:            derived.Skills,
			Background:        derived.Experience,
			Role:              job.Title,
			Company:           job.Company,
		},
		Logger:     log,
		credential: -1,
	}
}

func (o *Orchestrator) waitReady(ctx context.Context, ad adapter.Adapter) error {
	b := utils.DefaultBackoff()
	b.Timeout = o.opts.ReadyTimeout
	return utils.Poll(ctx, b, ad.IsFormReady)
}

func (o *Orchestrator) processStep(ctx context.Context, ad adapter.Adapter, env *Env, m *machine, report *form.Report, step int, log *zap.Logger) error {
	log = log.With(zap.Int("step", step))

	if err := m.enter(Scanning); err != nil {
		return err
	}
	blocks := ad.FindQuestionBlocks(ctx)
	items := make([]*item, 0, len(blocks))
	for _, block := range blocks {
		q, err := ad.ExtractQuestion(ctx, block)
		if err != nil {
			log.Debug("question extraction failed", zap.String("block", block.Selector), zap.Error(err))
			rec := form.NewRecord(nil, step)
			rec.Question = block.Selector
			rec.Reason = form.ReasonExtraction
			rec.Error = err.Error()
			o.add(report, rec)
			continue
		}
		items = append(items, &item{block: block, q: q})
	}
	log.Info("scanned step", zap.Int("blocks", len(blocks)), zap.Int("questions", len(items)))

	if err := m.enter(Classifying); err != nil {
		return err
	}
	for _, it := range items {
		if it.q.Normalized == "" {
			it.q.Normalized = form.Normalize(it.q.Raw)
		}
		it.class = classify.Classify(it.q)
		if it.q.Type == form.File {
			it.skip = form.ReasonFileUpload
		}
	}

	for _, stage := range o.stages {
		if !stage.IsEnabled() {
			continue
		}
		if err := m.enter(stage.State()); err != nil {
			return err
		}
		stats := stage.Apply(ctx, env, items)
		report.Stages = append(report.Stages, form.StageStats{
			Name:     stage.Name(),
			Step:     step,
			Initial:  stats.Initial,
			Resolved: stats.Resolved,
			Left:     stats.Left,
		})
		if stats.Initial > 0 {
			log.Info("resolution stage",
				zap.String("name", stage.Name()),
				zap.Int("initial", stats.Initial),
				zap.Int("resolved", stats.Resolved),
				zap.Int("left", stats.Left),
			)
		}
	}

	if err := m.enter(Writing); err != nil {
		return err
	}
	writeErr := o.write(ctx, ad, items, log)

	if err := m.enter(Verifying); err != nil {
		return err
	}
	for _, it := range items {
		if it.filled {
			it.verified = ad.Verify(ctx, it.block, it.written)
		}
	}

	for _, it := range items {
		rec := o.record(it, step)
		o.add(report, rec)
		if it.filled {
			o.remember(ctx, report, it, step, log)
		}
	}
	return writeErr
}

// write validates and writes every resolved item. A cancelled context stops
// the writes; the remaining items are failed so each still gets a record.
func (o *Orchestrator) write(ctx context.Context, ad adapter.Adapter, items []*item, log *zap.Logger) error {
	var stopErr error
	written := 0
	for _, it := range items {
		if it.skip != "" || it.fail != "" {
			continue
		}
		if stopErr != nil {
			it.fail = form.ReasonWriteFailed
			it.err = stopErr.Error()
			continue
		}
		if !it.res.Resolved() {
			if it.q.Required {
				it.fail = form.ReasonUnresolved
			} else {
				it.skip = form.ReasonUnresolved
			}
			continue
		}

		qlog := log.With(logger.QuestionFields(it.q.Raw, string(it.class.Intent))...)
		verdict := o.deps.Validator.Check(it.q, it.res.Answer)
		if !verdict.Valid {
			it.fail = verdict.Reason
			it.err = verdict.Detail
			if len(verdict.Options) > 0 {
				it.err = fmt.Sprintf("%s; options: %s", verdict.Detail, strings.Join(verdict.Options, " | "))
			}
			qlog.Warn("answer rejected", zap.String("reason", verdict.Reason), zap.String("detail", it.err))
			continue
		}

		if written > 0 {
			if err := utils.WaitFor(ctx, o.opts.WriteDelay); err != nil {
				stopErr = err
				it.fail = form.ReasonWriteFailed
				it.err = err.Error()
				continue
			}
		}
		written++

		it.written = verdict.Answer
		it.truncated = verdict.Truncated
		if !ad.FillAnswer(ctx, it.block, verdict.Answer) {
			it.fail = form.ReasonWriteFailed
			qlog.Warn("write failed")
			continue
		}
		it.filled = true
		qlog.Debug("answer written", zap.String("source", string(it.res.Source)), zap.Bool("truncated", it.truncated))
	}
	return stopErr
}

func (o *Orchestrator) record(it *item, step int) form.Record {
	rec := form.NewRecord(it.q, step)
	rec.Intent = string(it.class.Intent)
	rec.Tier = it.class.Tier
	if it.res.Resolved() {
		rec.Source = it.res.Source
		rec.SetAnswer(it.res.Answer)
	}
	if it.filled {
		rec.SetAnswer(display(it.q, it.written))
	}
	rec.Filled = it.filled
	rec.Verified = it.verified
	rec.Truncated = it.truncated

	switch {
	case it.skip != "":
		rec.Skipped = true
		rec.Reason = it.skip
	case it.fail != "":
		rec.Reason = it.fail
		rec.Error = it.err
	case it.filled && !it.verified:
		rec.Reason = form.ReasonNotVerified
	}
	return rec
}

func (o *Orchestrator) add(report *form.Report, rec form.Record) {
	report.Add(rec)
	outcome := metrics.OutcomeFailed
	switch {
	case rec.Verified:
		outcome = metrics.OutcomeVerified
	case rec.Filled:
		outcome = metrics.OutcomeFilled
	case rec.Skipped:
		outcome = metrics.OutcomeSkipped
	}
	metrics.ObserveQuestion(report.Platform, string(rec.Source), outcome)
}

func (o *Orchestrator) remember(ctx context.Context, report *form.Report, it *item, step int, log *zap.Logger) {
	if o.deps.Tracker == nil {
		return
	}
	ok, err := o.deps.Tracker.Record(ctx, tracker.Entry{
		Key:       it.q.Normalized,
		Question:  strings.TrimSpace(it.q.Raw),
		Answer:    display(it.q, it.written).String(),
		Intent:    string(it.class.Intent),
		Source:    it.res.Source,
		Platform:  report.Platform,
		Step:      step,
		Metadata:  map[string]string{"run_id": report.RunID},
		Timestamp: o.now(),
	})
	if err != nil {
		log.Warn("failed to remember answer", zap.Error(err))
	}
	if ok {
		report.Remembered++
	}
}

// display renders an answer for people: option values are shown as their labels.
func display(q *form.Question, a form.Answer) form.Answer {
	if a.Kind != form.AnswerChoice || len(q.Options) == 0 {
		return a
	}
	labels := make([]string, 0, len(a.Choices))
	for _, v := range a.Choices {
		label := v
		for _, opt := range q.Options {
			if opt.Value == v && strings.TrimSpace(opt.Label) != "" {
				label = opt.Label
				break
			}
		}
		labels = append(labels, label)
	}
	return form.ChoiceAnswer(labels...)
}
