package fill

import "fmt"

// State is a phase of a fill run.
type State int

const (
	Idle State = iota
	AdapterBound
	Scanning
	Classifying
	ResolvingProfile
	ResolvingTemplates
	ResolvingGenerative
	Writing
	Verifying
	Reported
)

var stateNames = [...]string{
	Idle:                "idle",
	AdapterBound:        "adapter_bound",
	Scanning:            "scanning",
	Classifying:         "classifying",
	ResolvingProfile:    "resolving_tier1_3",
	ResolvingTemplates:  "resolving_templates",
	ResolvingGenerative: "resolving_generative",
	Writing:             "writing",
	Verifying:           "verifying",
	Reported:            "reported",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// machine enforces forward-only transitions. Each form step replays the
// Scanning..Verifying sequence; Reported is terminal.
type machine struct {
	current State
	trail   []string
}

func newMachine() *machine {
	return &machine{current: Idle, trail: []string{Idle.String()}}
}

func (m *machine) enter(next State) error {
	switch {
	case m.current == Reported:
		return fmt.Errorf("illegal transition %s -> %s: run already reported", m.current, next)
	case next == m.current:
		return nil
	case next == Scanning && m.current >= AdapterBound:
		// a new step starts a fresh scan
	case next == Reported:
	case next < m.current:
		return fmt.Errorf("illegal transition %s -> %s", m.current, next)
	case next > AdapterBound && m.current < AdapterBound:
		return fmt.Errorf("illegal transition %s -> %s: no adapter bound", m.current, next)
	}
	m.current = next
	m.trail = append(m.trail, next.String())
	return nil
}
