package workflow

import "fmt"

// transitions is the legal phase graph. Terminal phases have no entry.
var transitions = map[Phase][]Phase{
	PhaseInitialized:            {PhaseSpecCreated},
	PhaseSpecCreated:            {PhaseReviewsPending, PhaseSpecRefined},
	PhaseReviewsPending:         {PhaseReviewsPending, PhaseReviewsComplete},
	PhaseReviewsComplete:        {PhaseSpecRefined},
	PhaseSpecRefined:            {PhaseTestsPending},
	PhaseTestsPending:           {PhaseTestsCreated},
	PhaseTestsCreated:           {PhaseImplementationPending},
	PhaseImplementationPending:  {PhaseImplementationComplete},
	PhaseImplementationComplete: {PhaseLintPending},
	PhaseLintPending:            {PhaseLintPassed, PhaseFailed},
	PhaseLintPassed:             {PhaseBuildPending},
	PhaseBuildPending:           {PhaseBuildPassed, PhaseFailed},
	PhaseBuildPassed:            {PhaseTestsRunPending},
	PhaseTestsRunPending:        {PhaseTestsPassed, PhaseFailed},
	PhaseTestsPassed:            {PhaseComplete},
}

// CanTransition reports whether the table allows from -> to.
func CanTransition(from, to Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// Transitions returns the phases reachable from from in one step.
func Transitions(from Phase) []Phase {
	out := make([]Phase, len(transitions[from]))
	copy(out, transitions[from])
	return out
}

// advance moves wc to the next phase. Every engine phase change goes
// through here, except Abort.
func advance(wc *WorkflowContext, to Phase) error {
	if !CanTransition(wc.Phase, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, wc.Phase, to)
	}
	wc.Phase = to
	return nil
}
