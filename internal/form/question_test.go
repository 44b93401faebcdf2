package form

import (
	"testing"
	"time"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{name: "required marker", input: "First Name *", expect: "first name"},
		{name: "punctuation", input: "Can you describe your relevant experience?", expect: "can you describe your relevant experience"},
		{name: "apostrophe", input: "Don't know", expect: "dont know"},
		{name: "whitespace", input: "  E-mail\n\tAddress ", expect: "e mail address"},
		{name: "empty", input: " ?! ", expect: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := Normalize(tt.input); got != tt.expect {
				t.Fatalf("expected %q, got %q", tt.expect, got)
			}
		})
	}
}

func TestResolutionResolved(t *testing.T) {
	t.Parallel()

	if (Resolution{Answer: TextAnswer("x"), Confidence: 0.5}).Resolved() {
		t.Fatal("confidence 0.5 must be treated as unresolved")
	}
	if !(Resolution{Answer: BoolAnswer(false), Confidence: 0.7}).Resolved() {
		t.Fatal("boolean false at 0.7 must be resolved")
	}
	if (Resolution{Answer: TextAnswer("  "), Confidence: 1}).Resolved() {
		t.Fatal("empty text must be unresolved")
	}
}

func TestReportAdd(t *testing.T) {
	t.Parallel()

	report := NewReport("run", time.Time{})
	report.Add(Record{Tier: 1, Filled: true, Verified: true, Source: SourceProfile})
	report.Add(Record{Tier: 4, Reason: ReasonAIBatchFailed})
	report.Add(Record{Tier: 4, Skipped: true, Reason: ReasonNoAIConfig})

	if report.Attempted != 3 || report.Filled != 1 || report.Verified != 1 || report.Failed != 1 || report.Skipped != 1 {
		t.Fatalf("unexpected counters: %+v", report)
	}
	if report.Tiers[1] != 1 || report.Tiers[4] != 2 {
		t.Fatalf("unexpected tier counts: %v", report.Tiers)
	}
	if report.Sources[SourceProfile] != 1 || len(report.Sources) != 1 {
		t.Fatalf("unexpected source counts: %v", report.Sources)
	}
}

func TestReportTiersFollowClassificationNotSource(t *testing.T) {
	t.Parallel()

	report := NewReport("run", time.Time{})
	// a tier-3 question answered from a remembered answer and a tier-2 one by the generative fallback
	report.Add(Record{Tier: 3, Filled: true, Source: SourceCache})
	report.Add(Record{Tier: 2, Filled: true, Source: SourceGenerative})

	if report.Tiers[3] != 1 || report.Tiers[2] != 1 || report.Tiers[4] != 0 {
		t.Fatalf("tiers should follow the classified tier: %v", report.Tiers)
	}
	if report.Sources[SourceCache] != 1 || report.Sources[SourceGenerative] != 1 {
		t.Fatalf("sources should follow the answering source: %v", report.Sources)
	}
}
