package workflow

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ActionType tags an Action variant on the wire.
type ActionType string

const (
	ActionCreateFile  ActionType = "create_file"
	ActionEditFile    ActionType = "edit_file"
	ActionCreateFiles ActionType = "create_files"
	ActionShell       ActionType = "shell"
	ActionInfo        ActionType = "info"
	ActionComplete    ActionType = "complete"
	ActionFailed      ActionType = "failed"
)

// Action is the next thing the driver must do. The set of variants is closed:
// only the *Action structs in this package implement it.
type Action interface {
	Type() ActionType
	// InstructionText is the human-readable directive for the driver.
	InstructionText() string
	// Accept calls the visitor method matching the variant.
	Accept(v ActionVisitor) error

	sealed()
}

// ActionVisitor handles every Action variant.
type ActionVisitor interface {
	VisitCreateFile(a *CreateFileAction) error
	VisitEditFile(a *EditFileAction) error
	VisitCreateFiles(a *CreateFilesAction) error
	VisitShell(a *ShellAction) error
	VisitInfo(a *InfoAction) error
	VisitComplete(a *CompleteAction) error
	VisitFailed(a *FailedAction) error
}

// CreateFileAction asks the driver to write a new file.
type CreateFileAction struct {
	Path        string `json:"path"`
	Content     string `json:"content"`
	Instruction string `json:"instruction"`
}

// EditFileAction asks the driver to revise an existing file.
type EditFileAction struct {
	Path        string `json:"path"`
	Instruction string `json:"instruction"`
}

// CreateFilesAction asks the driver to create one or more files of its choosing.
type CreateFilesAction struct {
	Instruction    string   `json:"instruction"`
	SuggestedFiles []string `json:"suggested_files"`
}

// ShellAction asks the driver to run a command and report the outcome.
type ShellAction struct {
	Command       string `json:"command"`
	Instruction   string `json:"instruction"`
	CaptureOutput bool   `json:"capture_output"`
	ExpectSuccess bool   `json:"expect_success"`
}

// InfoAction carries a message and needs no work beyond calling step again.
type InfoAction struct {
	Instruction string `json:"instruction"`
}

// CompletionSummary describes a finished workflow.
type CompletionSummary struct {
	Description         string   `json:"description"`
	SpecPath            string   `json:"spec_path"`
	TestFiles           []string `json:"test_files"`
	ImplementationFiles []string `json:"implementation_files"`
}

// CompleteAction reports success.
type CompleteAction struct {
	Instruction string            `json:"instruction"`
	Summary     CompletionSummary `json:"summary"`
}

// FailedStep names the verification step that failed.
type FailedStep string

const (
	StepLint  FailedStep = "lint"
	StepBuild FailedStep = "build"
	StepTest  FailedStep = "test"
)

// FailedAction reports a failed verification step.
type FailedAction struct {
	Instruction string     `json:"instruction"`
	FailedStep  FailedStep `json:"failed_step"`
}

func (*CreateFileAction) Type() ActionType  { return ActionCreateFile }
func (*EditFileAction) Type() ActionType    { return ActionEditFile }
func (*CreateFilesAction) Type() ActionType { return ActionCreateFiles }
func (*ShellAction) Type() ActionType       { return ActionShell }
func (*InfoAction) Type() ActionType        { return ActionInfo }
func (*CompleteAction) Type() ActionType    { return ActionComplete }
func (*FailedAction) Type() ActionType      { return ActionFailed }

func (a *CreateFileAction) InstructionText() string  { return a.Instruction }
func (a *EditFileAction) InstructionText() string    { return a.Instruction }
func (a *CreateFilesAction) InstructionText() string { return a.Instruction }
func (a *ShellAction) InstructionText() string       { return a.Instruction }
func (a *InfoAction) InstructionText() string        { return a.Instruction }
func (a *CompleteAction) InstructionText() string    { return a.Instruction }
func (a *FailedAction) InstructionText() string      { return a.Instruction }

func (a *CreateFileAction) Accept(v ActionVisitor) error  { return v.VisitCreateFile(a) }
func (a *EditFileAction) Accept(v ActionVisitor) error    { return v.VisitEditFile(a) }
func (a *CreateFilesAction) Accept(v ActionVisitor) error { return v.VisitCreateFiles(a) }
func (a *ShellAction) Accept(v ActionVisitor) error       { return v.VisitShell(a) }
func (a *InfoAction) Accept(v ActionVisitor) error        { return v.VisitInfo(a) }
func (a *CompleteAction) Accept(v ActionVisitor) error    { return v.VisitComplete(a) }
func (a *FailedAction) Accept(v ActionVisitor) error      { return v.VisitFailed(a) }

func (*CreateFileAction) sealed()  {}
func (*EditFileAction) sealed()    {}
func (*CreateFilesAction) sealed() {}
func (*ShellAction) sealed()       {}
func (*InfoAction) sealed()        {}
func (*CompleteAction) sealed()    {}
func (*FailedAction) sealed()      {}

// The MarshalJSON methods add the "type" tag alongside the variant's fields.

func (a CreateFileAction) MarshalJSON() ([]byte, error) {
	type plain CreateFileAction
	return json.Marshal(struct {
		Type ActionType `json:"type"`
		plain
	}{ActionCreateFile, plain(a)})
}

func (a EditFileAction) MarshalJSON() ([]byte, error) {
	type plain EditFileAction
	return json.Marshal(struct {
		Type ActionType `json:"type"`
		plain
	}{ActionEditFile, plain(a)})
}

func (a CreateFilesAction) MarshalJSON() ([]byte, error) {
	type plain CreateFilesAction
	if a.SuggestedFiles == nil {
		a.SuggestedFiles = []string{}
	}
	return json.Marshal(struct {
		Type ActionType `json:"type"`
		plain
	}{ActionCreateFiles, plain(a)})
}

func (a ShellAction) MarshalJSON() ([]byte, error) {
	type plain ShellAction
	return json.Marshal(struct {
		Type ActionType `json:"type"`
		plain
	}{ActionShell, plain(a)})
}

func (a InfoAction) MarshalJSON() ([]byte, error) {
	type plain InfoAction
	return json.Marshal(struct {
		Type ActionType `json:"type"`
		plain
	}{ActionInfo, plain(a)})
}

func (a CompleteAction) MarshalJSON() ([]byte, error) {
	type plain CompleteAction
	return json.Marshal(struct {
		Type ActionType `json:"type"`
		plain
	}{ActionComplete, plain(a)})
}

func (a FailedAction) MarshalJSON() ([]byte, error) {
	type plain FailedAction
	return json.Marshal(struct {
		Type ActionType `json:"type"`
		plain
	}{ActionFailed, plain(a)})
}

// DecodeAction parses a tagged action document. "null" decodes to nil.
func DecodeAction(data []byte) (Action, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}

	var tag struct {
		Type ActionType `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return nil, fmt.Errorf("decode action: %w", err)
	}

	var a Action
	switch tag.Type {
	case ActionCreateFile:
		a = &CreateFileAction{}
	case ActionEditFile:
		a = &EditFileAction{}
	case ActionCreateFiles:
		a = &CreateFilesAction{}
	case ActionShell:
		a = &ShellAction{}
	case ActionInfo:
		a = &InfoAction{}
	case ActionComplete:
		a = &CompleteAction{}
	case ActionFailed:
		a = &FailedAction{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, tag.Type)
	}
	if err := json.Unmarshal(data, a); err != nil {
		return nil, fmt.Errorf("decode %s action: %w", tag.Type, err)
	}
	return a, nil
}
