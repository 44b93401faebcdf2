package fill

import (
	"context"

	"go.uber.org/zap"

	"github.com/spigell/autofill/internal/ai"
	"github.com/spigell/autofill/internal/classify"
	"github.com/spigell/autofill/internal/form"
	"github.com/spigell/autofill/internal/resolve"
	"github.com/spigell/autofill/internal/templates"
	"github.com/spigell/autofill/internal/tracker"
)

// Stage is one resolution strategy applied to the questions still open after the previous ones.
type Stage interface {
	Name() string
	State() State
	Disable(reason string)
	IsEnabled() bool

	Apply(ctx context.Context, env *Env, items []*item) Step
}

// Step counts what a stage did.
type Step struct {
	Initial  int
	Resolved int
	Left     int
}

// Status represents runtime information about a stage.
type Status struct {
	Name    string
	Enabled bool
	Reason  string
	Details map[string]string
}

// Env is the per-run context the stages resolve against.
type Env struct {
	Resolver    *resolve.Resolver
	Templates   *templates.Engine
	Values      templates.Values
	Tracker     *tracker.Tracker
	Generative  *ai.Client
	Credentials *ai.Credentials
	Candidate   ai.Candidate
	Logger      *zap.Logger

	// aiDown is set once every credential failed; later batches are skipped.
	aiDown bool
	// credential is the last credential index that answered.
	credential int
}

// item is the working state of one question within a step.
type item struct {
	block *form.Block
	q     *form.Question
	class classify.Classification
	res   form.Resolution

	skip string
	fail string
	err  string

	written   form.Answer
	truncated bool
	filled    bool
	verified  bool
}

func (it *item) open() bool {
	return it.skip == "" && it.fail == "" && !it.res.Resolved()
}

func openItems(items []*item) []*item {
	var out []*item
	for _, it := range items {
		if it.open() {
			out = append(out, it)
		}
	}
	return out
}

type stageBase struct {
	disabled bool
	reason   string
}

func (b *stageBase) Disable(reason string) {
	b.disabled = true
	b.reason = reason
}

func (b *stageBase) IsEnabled() bool { return !b.disabled }

// DisableByName marks a stage with the provided name as disabled while keeping it in the list.
func DisableByName(stages []Stage, name, reason string) {
	for _, stage := range stages {
		if stage.Name() == name {
			stage.Disable(reason)
		}
	}
}

// statusProvider is implemented by stages that can supply detailed status information.
type statusProvider interface {
	Status() Status
}

// Describe returns status entries for the provided stages.
func Describe(stages []Stage) []Status {
	statuses := make([]Status, 0, len(stages))
	for _, stage := range stages {
		if reporter, ok := stage.(statusProvider); ok {
			statuses = append(statuses, reporter.Status())
			continue
		}
		statuses = append(statuses, Status{Name: stage.Name(), Enabled: stage.IsEnabled()})
	}
	return statuses
}
