package workflow

import (
	"fmt"
	"strings"
)

const (
	instructionContinue     = "Call step again to continue."
	instructionNoReviewers  = "No reviewers are configured for this workflow, so the review stage is skipped. Call step to plan the tests."
	instructionTestsCreated = "Tests recorded. Make sure they fail for the right reason, then call step to start the implementation."
	instructionAllPassed    = "Lint, build and tests all passed. Call step to complete the workflow."
	instructionComplete     = "Workflow complete. The spec, tests and implementation are in place."
)

// specTemplate is the skeleton the driver writes to the spec path on start.
func specTemplate(description string) string {
	return fmt.Sprintf(`# %s

## Summary

<!-- One paragraph: what the feature does and who it is for. -->

## Requirements

-

## Acceptance Criteria

-

## Edge Cases

-

## Out of Scope

-
`, description)
}

func startInstruction(specPath string) string {
	return fmt.Sprintf("Create the feature spec at %s from the template, fill in every section, then call step.", specPath)
}

func reviewInstruction(name string, position, total int) string {
	return fmt.Sprintf(
		"Run this command to get review %d of %d from %q, then call step with its full output.",
		position, total, name,
	)
}

func refineInstruction(specPath, synthesis string) string {
	if strings.TrimSpace(synthesis) == "" {
		return fmt.Sprintf("Finalize the spec at %s, then call step.", specPath)
	}
	return fmt.Sprintf(
		"Revise the spec at %s to address the reviewer feedback below, then call step.\n\n%s",
		specPath, synthesis,
	)
}

func writeTestsInstruction(specPath string) string {
	return fmt.Sprintf(
		"Write failing tests that cover the requirements and acceptance criteria in %s. "+
			"Do not implement the feature yet. Call step with files_created and files_modified.",
		specPath,
	)
}

func implementInstruction(specPath string) string {
	return fmt.Sprintf(
		"Implement the feature described in %s until the tests pass. "+
			"Call step with files_created and files_modified, without success: "+
			"the next reported success flag is taken as the lint result.",
		specPath,
	)
}

func commandInstruction(step FailedStep) string {
	return fmt.Sprintf(
		"Run the %[1]s command and call step with success and the captured output. "+
			"The success flag is recorded as the %[1]s result, so send it only after running the command.",
		step,
	)
}

func failedInstruction(step FailedStep, lastError string) string {
	msg := fmt.Sprintf("The %s step failed. Fix the reported problems, then abort this workflow and start a new one.", step)
	if lastError != "" {
		msg += "\n\n" + lastError
	}
	return msg
}

func abortedInstruction(reason string) string {
	return fmt.Sprintf("Workflow aborted: %s. Start a new workflow to continue.", reason)
}
