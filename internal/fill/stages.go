package fill

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/autofill/internal/ai"
	"github.com/spigell/autofill/internal/form"
	"github.com/spigell/autofill/internal/logger"
)

// Stage names, usable with DisableByName.
const (
	StageProfile    = "profile"
	StageHistory    = "history"
	StageTemplates  = "templates"
	StageGenerative = "generative"
)

// historyConfidence is the confidence of an answer reused from an earlier form.
const historyConfidence = 0.75

// DefaultStages returns the resolution stages in priority order.
func DefaultStages() []Stage {
	return []Stage{
		NewProfileStage(),
		NewHistoryStage(),
		NewTemplateStage(),
		NewGenerativeStage(),
	}
}

type profileStage struct{ stageBase }

// NewProfileStage resolves tiers 1 to 3 from the profile and the default tables.
func NewProfileStage() Stage { return &profileStage{} }

func (s *profileStage) Name() string { return StageProfile }

func (s *profileStage) State() State { return ResolvingProfile }

func (s *profileStage) Apply(_ context.Context, env *Env, items []*item) Step {
	open := openItems(items)
	for _, it := range open {
		it.res = env.Resolver.Resolve(it.q, it.class)
		env.Logger.Debug("profile resolution",
			append(logger.QuestionFields(it.q.Raw, string(it.class.Intent)),
				zap.Int("tier", it.class.Tier),
				zap.String("source", string(it.res.Source)),
				zap.Float64("confidence", it.res.Confidence),
			)...,
		)
	}
	return count(open)
}

type historyStage struct{ stageBase }

// NewHistoryStage reuses answers recorded on earlier forms.
func NewHistoryStage() Stage { return &historyStage{} }

func (s *historyStage) Name() string { return StageHistory }

func (s *historyStage) State() State { return ResolvingTemplates }

func (s *historyStage) Apply(_ context.Context, env *Env, items []*item) Step {
	open := openItems(items)
	if env.Tracker == nil {
		return count(open)
	}
	for _, it := range open {
		entry, ok := env.Tracker.Lookup(it.q.Normalized)
		if !ok {
			continue
		}
		it.res = form.Resolution{
			Answer:     form.TextAnswer(entry.Answer),
			Source:     form.SourceCache,
			Confidence: historyConfidence,
		}
		env.Logger.Debug("reusing earlier answer",
			append(logger.QuestionFields(it.q.Raw, string(it.class.Intent)), zap.String("matched", entry.Key))...,
		)
	}
	return count(open)
}

func (s *historyStage) Status() Status {
	return Status{Name: s.Name(), Enabled: s.IsEnabled(), Reason: s.reason}
}

type templateStage struct{ stageBase }

// NewTemplateStage answers common open-ended questions from the template catalog.
func NewTemplateStage() Stage { return &templateStage{} }

func (s *templateStage) Name() string { return StageTemplates }

func (s *templateStage) State() State { return ResolvingTemplates }

func (s *templateStage) Apply(_ context.Context, env *Env, items []*item) Step {
	open := openItems(items)
	if env.Templates == nil {
		return count(open)
	}
	for _, it := range open {
		it.res = env.Templates.Resolve(it.q, env.Values)
	}
	return count(open)
}

func (s *templateStage) Status() Status {
	return Status{Name: s.Name(), Enabled: s.IsEnabled(), Reason: s.reason}
}

type generativeStage struct {
	stageBase
	model   string
	batches int
}

// NewGenerativeStage sends the remaining questions to the generative backend in one batch.
func NewGenerativeStage() Stage { return &generativeStage{} }

func (s *generativeStage) Name() string { return StageGenerative }

func (s *generativeStage) State() State { return ResolvingGenerative }

func (s *generativeStage) Apply(ctx context.Context, env *Env, items []*item) Step {
	open := openItems(items)
	if len(open) == 0 {
		return Step{}
	}

	if env.Generative == nil || env.Credentials == nil || len(env.Credentials.Keys) == 0 {
		for _, it := range open {
			it.skip = form.ReasonNoAIConfig
		}
		return count(open)
	}
	if env.aiDown {
		for _, it := range open {
			it.skip = form.ReasonAIUnavailable
		}
		return count(open)
	}

	s.model = env.Generative.Model()
	s.batches++

	batch := make([]*form.Question, len(open))
	for i, it := range open {
		batch[i] = it.q
	}

	result, err := env.Generative.Answer(ctx, env.Credentials, env.Candidate, batch)
	for i, it := range open {
		if result != nil && result.Resolutions[i].Resolved() {
			it.res = result.Resolutions[i]
		}
	}
	if result != nil && result.Credential >= 0 {
		env.credential = result.Credential
	}

	if err != nil {
		if errors.Is(err, ai.ErrCredentialsExhausted) {
			env.aiDown = true
		}
		env.Logger.Warn("generative batch failed", zap.Int("questions", len(open)), zap.Error(err))
		for _, it := range open {
			if it.open() {
				it.fail = form.ReasonAIBatchFailed
				it.err = err.Error()
			}
		}
	}
	return count(open)
}

func (s *generativeStage) Status() Status {
	details := map[string]string{"batches": strconv.Itoa(s.batches)}
	if s.model != "" {
		details["model"] = s.model
	}
	return Status{Name: s.Name(), Enabled: s.IsEnabled(), Reason: s.reason, Details: details}
}

func count(items []*item) Step {
	step := Step{Initial: len(items)}
	for _, it := range items {
		if it.open() {
			step.Left++
		} else if it.res.Resolved() {
			step.Resolved++
		}
	}
	return step
}
