package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition_TerminalPhasesHaveNoExits(t *testing.T) {
	for _, p := range []Phase{PhaseComplete, PhaseFailed, PhaseAborted} {
		assert.True(t, p.IsTerminal())
		assert.Empty(t, Transitions(p))
		for _, q := range AllPhases() {
			assert.False(t, CanTransition(p, q), "%s -> %s", p, q)
		}
	}
}

func TestCanTransition_NonTerminalPhasesHaveAnExit(t *testing.T) {
	for _, p := range AllPhases() {
		if p.IsTerminal() {
			continue
		}
		assert.NotEmpty(t, Transitions(p), "phase %s is a dead end", p)
		for _, to := range Transitions(p) {
			assert.True(t, to.Valid(), "%s -> unknown phase %s", p, to)
		}
	}
}

func TestCanTransition_Edges(t *testing.T) {
	tests := []struct {
		from, to Phase
		want     bool
	}{
		{PhaseInitialized, PhaseSpecCreated, true},
		{PhaseSpecCreated, PhaseSpecRefined, true},
		{PhaseSpecCreated, PhaseReviewsPending, true},
		{PhaseReviewsPending, PhaseReviewsPending, true},
		{PhaseReviewsPending, PhaseReviewsComplete, true},
		{PhaseLintPending, PhaseFailed, true},
		{PhaseBuildPending, PhaseFailed, true},
		{PhaseTestsRunPending, PhaseFailed, true},
		{PhaseTestsPassed, PhaseComplete, true},
		{PhaseInitialized, PhaseSpecRefined, false},
		{PhaseSpecRefined, PhaseReviewsPending, false},
		{PhaseImplementationPending, PhaseFailed, false},
		{PhaseTestsPassed, PhaseAborted, false},
		{Phase("unknown"), PhaseInitialized, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTransitions_ReturnsCopy(t *testing.T) {
	got := Transitions(PhaseSpecCreated)
	got[0] = PhaseComplete
	assert.Equal(t, []Phase{PhaseReviewsPending, PhaseSpecRefined}, Transitions(PhaseSpecCreated))
}

func TestAdvance_RejectsIllegal(t *testing.T) {
	wc := &WorkflowContext{Phase: PhaseInitialized}

	err := advance(wc, PhaseComplete)
	assert.True(t, errors.Is(err, ErrIllegalTransition))
	assert.Equal(t, PhaseInitialized, wc.Phase)

	require.NoError(t, advance(wc, PhaseSpecCreated))
	assert.Equal(t, PhaseSpecCreated, wc.Phase)
}

// Every non-terminal phase in the table must have a dispatch case, and every
// change a dispatch case makes must be a table edge.
func TestDispatch_LockstepWithTable(t *testing.T) {
	for _, p := range AllPhases() {
		if p.IsTerminal() {
			continue
		}
		for _, success := range []*bool{nil, boolPtr(true), boolPtr(false)} {
			h := newHarness(t, nil)
			h.seed(t, "lockstep-0001", p)
			wc := h.load(t, "lockstep-0001")
			wc.SpecContent = "spec"

			s := &step{o: h.o, wc: wc, result: &StepResult{Success: success, Output: "out"}}
			s.o.readSpec = func(string) ([]byte, error) { return []byte("spec"), nil }

			_, err := s.dispatch()
			require.NoError(t, err, "phase %s", p)
			for _, hp := range s.hops {
				assert.True(t, CanTransition(hp.from, hp.to), "%s -> %s", hp.from, hp.to)
			}
		}
	}
}

func TestPhase_Valid(t *testing.T) {
	assert.True(t, PhaseLintPassed.Valid())
	assert.False(t, Phase("LINT_PASSED").Valid())
	assert.Len(t, AllPhases(), 18)
}
