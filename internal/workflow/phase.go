package workflow

// Phase is a workflow's position in the delivery lifecycle.
type Phase string

const (
	PhaseInitialized           Phase = "initialized"
	PhaseSpecCreated           Phase = "spec_created"
	PhaseReviewsPending        Phase = "reviews_pending"
	PhaseReviewsComplete       Phase = "reviews_complete"
	PhaseSpecRefined           Phase = "spec_refined"
	PhaseTestsPending          Phase = "tests_pending"
	PhaseTestsCreated          Phase = "tests_created"
	PhaseImplementationPending Phase = "implementation_pending"
	// PhaseImplementationComplete is a gateway: its step enters lint_pending.
	PhaseImplementationComplete Phase = "implementation_complete"
	PhaseLintPending            Phase = "lint_pending"
	PhaseLintPassed             Phase = "lint_passed"
	PhaseBuildPending           Phase = "build_pending"
	PhaseBuildPassed            Phase = "build_passed"
	PhaseTestsRunPending        Phase = "tests_run_pending"
	PhaseTestsPassed            Phase = "tests_passed"

	PhaseComplete Phase = "complete"
	PhaseFailed   Phase = "failed"
	PhaseAborted  Phase = "aborted"
)

// AllPhases returns every phase in lifecycle order.
func AllPhases() []Phase {
	return []Phase{
		PhaseInitialized,
		PhaseSpecCreated,
		PhaseReviewsPending,
		PhaseReviewsComplete,
		PhaseSpecRefined,
		PhaseTestsPending,
		PhaseTestsCreated,
		PhaseImplementationPending,
		PhaseImplementationComplete,
		PhaseLintPending,
		PhaseLintPassed,
		PhaseBuildPending,
		PhaseBuildPassed,
		PhaseTestsRunPending,
		PhaseTestsPassed,
		PhaseComplete,
		PhaseFailed,
		PhaseAborted,
	}
}

// IsTerminal reports whether no step can leave p.
func (p Phase) IsTerminal() bool {
	switch p {
	case PhaseComplete, PhaseFailed, PhaseAborted:
		return true
	}
	return false
}

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	for _, known := range AllPhases() {
		if p == known {
			return true
		}
	}
	return false
}

func (p Phase) String() string { return string(p) }
