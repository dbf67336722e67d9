package importer

import (
	"sync"
)

// Step is one stage of an import, in execution order.
type Step int

const (
	StepValidation Step = iota
	StepMetadataExtraction
	StepCoverGeneration
	StepPersistence
)

// stepWeights is each step's share of overall progress. They sum to 100.
var stepWeights = [...]int{
	StepValidation:         10,
	StepMetadataExtraction: 40,
	StepCoverGeneration:    30,
	StepPersistence:        20,
}

var stepNames = [...]string{
	StepValidation:         "validation",
	StepMetadataExtraction: "metadata_extraction",
	StepCoverGeneration:    "cover_generation",
	StepPersistence:        "persistence",
}

// Steps returns every step in execution order.
func Steps() []Step {
	return []Step{StepValidation, StepMetadataExtraction, StepCoverGeneration, StepPersistence}
}

func (s Step) Weight() int {
	if s < StepValidation || s > StepPersistence {
		return 0
	}
	return stepWeights[s]
}

func (s Step) String() string {
	if s < StepValidation || s > StepPersistence {
		return "unknown"
	}
	return stepNames[s]
}

// OverallProgress converts a step and its local percentage into overall
// progress: the weights of all earlier steps plus the step's own weight
// scaled by percent. percent is clamped to 0..100.
func OverallProgress(step Step, percent int) int {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	total := 0
	for _, s := range Steps() {
		if s == step {
			return total + s.Weight()*percent/100
		}
		total += s.Weight()
	}
	return total
}

// Progress is emitted after every sub-step of an import.
type Progress struct {
	Step     Step
	FileName string
	Percent  int
}

// Overall is the aggregate 0..100 value for this event.
func (p Progress) Overall() int {
	return OverallProgress(p.Step, p.Percent)
}

// ProgressFunc receives progress events. It is called synchronously from
// the pipeline and must not block for long.
type ProgressFunc func(Progress)

// Tracker folds progress events into a value that never decreases, so
// consumers that receive events late or coalesced still see a monotonic
// sequence.
type Tracker struct {
	mu      sync.Mutex
	step    Step
	overall int
	seen    bool
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Observe records p and reports the aggregate progress and whether it moved
// forward. Events for an earlier step, or that would lower the aggregate,
// are dropped.
func (t *Tracker) Observe(p Progress) (int, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.seen && p.Step < t.step {
		return t.overall, false
	}
	overall := p.Overall()
	if t.seen && overall <= t.overall {
		t.step = p.Step
		return t.overall, false
	}
	t.step = p.Step
	t.overall = overall
	t.seen = true
	return overall, true
}

// Current returns the last aggregate value and the step that produced it.
func (t *Tracker) Current() (Step, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.step, t.overall
}
