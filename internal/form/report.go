package form

import (
	"time"

	"github.com/spigell/autofill/internal/utils"
)

const (
	recordQuestionLength = 120
	recordAnswerLength   = 200
)

// Failure reasons recorded on unfilled questions.
const (
	ReasonExtraction    = "extraction_failed"
	ReasonUnresolved    = "unresolved"
	ReasonInvalidOption = "invalid_option"
	ReasonInvalidFormat = "invalid_format"
	ReasonEmptyRequired = "empty_required"
	ReasonWriteFailed   = "write_failed"
	ReasonNotVerified   = "not_verified"
	ReasonNoAIConfig    = "no_ai_config"
	ReasonAIUnavailable = "ai_unavailable"
	ReasonAIBatchFailed = "ai_batch_failed"
	ReasonFileUpload    = "file_upload"
)

// StepInfo describes the position inside a multi-step form.
type StepInfo struct {
	Current     int  `json:"current"`
	Total       int  `json:"total"`
	IsMultiStep bool `json:"is_multi_step"`
}

// StageStats counts what one resolution stage did on one step.
type StageStats struct {
	Name     string `json:"name"`
	Step     int    `json:"step"`
	Initial  int    `json:"initial"`
	Resolved int    `json:"resolved"`
	Left     int    `json:"left"`
}

// Record is the outcome for one attempted question.
type Record struct {
	Question  string       `json:"question"`
	Type      QuestionType `json:"type"`
	Intent    string       `json:"intent,omitempty"`
	Tier      int          `json:"tier,omitempty"`
	Answer    string       `json:"answer,omitempty"`
	Source    Source       `json:"source,omitempty"`
	Filled    bool         `json:"filled"`
	Verified  bool         `json:"verified"`
	Truncated bool         `json:"truncated,omitempty"`
	Skipped   bool         `json:"skipped,omitempty"`
	Reason    string       `json:"reason,omitempty"`
	Error     string       `json:"error,omitempty"`
	Step      int          `json:"step"`
}

// NewRecord starts a record for q with truncated text.
func NewRecord(q *Question, step int) Record {
	rec := Record{Step: step}
	if q != nil {
		rec.Question = utils.TruncateForLog(q.Raw, recordQuestionLength)
		rec.Type = q.Type
	}
	return rec
}

// SetAnswer stores the truncated display value of a.
func (r *Record) SetAnswer(a Answer) {
	r.Answer = utils.TruncateForLog(a.String(), recordAnswerLength)
}

// Failed reports whether the question was attempted but not filled.
func (r Record) Failed() bool {
	return !r.Filled && !r.Skipped
}

// Report aggregates the records of a fill run.
type Report struct {
	RunID     string        `json:"run_id"`
	Platform  string        `json:"platform"`
	Result    string        `json:"result"`
	URL       string        `json:"url,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
	// Tiers counts attempted questions by their classified tier, whichever stage answered them.
	Tiers map[int]int `json:"tiers"`
	// Sources counts filled questions by the source that produced the answer.
	Sources         map[Source]int `json:"sources"`
	Attempted       int            `json:"attempted"`
	Filled          int            `json:"filled"`
	Verified        int            `json:"verified"`
	Failed          int            `json:"failed"`
	Skipped         int            `json:"skipped"`
	Steps           []StepInfo     `json:"steps,omitempty"`
	States          []string       `json:"states,omitempty"`
	Stages          []StageStats   `json:"stages,omitempty"`
	Remembered      int            `json:"remembered"`
	CredentialIndex int            `json:"credential_index"`
	Records         []Record       `json:"records"`
	Error           string         `json:"error,omitempty"`
}

// NewReport returns an empty report with initialized counters.
func NewReport(runID string, started time.Time) *Report {
	return &Report{
		RunID:           runID,
		StartedAt:       started,
		Tiers:           make(map[int]int),
		Sources:         make(map[Source]int),
		CredentialIndex: -1,
	}
}

// Add appends rec and updates the aggregate counters.
func (r *Report) Add(rec Record) {
	r.Records = append(r.Records, rec)
	r.Attempted++

	if rec.Tier > 0 {
		r.Tiers[rec.Tier]++
	}

	switch {
	case rec.Filled:
		r.Filled++
		if rec.Source != SourceNone {
			r.Sources[rec.Source]++
		}
		if rec.Verified {
			r.Verified++
		}
	case rec.Skipped:
		r.Skipped++
	default:
		r.Failed++
	}
}
