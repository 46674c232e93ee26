package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/featureflow/internal/reviewer"
	"github.com/fyrsmithlabs/featureflow/internal/store"
	"github.com/fyrsmithlabs/featureflow/internal/workflow"
)

// styles are bound to the output writer so colors are dropped when it is
// not a terminal.
type styles struct {
	header  lipgloss.Style
	section lipgloss.Style
	label   lipgloss.Style
	value   lipgloss.Style
	dim     lipgloss.Style
	ok      lipgloss.Style
	warn    lipgloss.Style
	err     lipgloss.Style
	code    lipgloss.Style
}

func newStyles(re *lipgloss.Renderer) styles {
	return styles{
		header: re.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1),
		section: re.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true),
		label: re.NewStyle().
			Foreground(lipgloss.Color("45")),
		value: re.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true),
		dim: re.NewStyle().
			Foreground(lipgloss.Color("245")),
		ok: re.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true),
		warn: re.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true),
		err: re.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
		code: re.NewStyle().
			Foreground(lipgloss.Color("252")).
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("238")).
			PaddingLeft(1),
	}
}

// renderer prints engine responses either as styled text or as JSON.
// Styled text for actions goes through the workflow.ActionVisitor methods.
type renderer struct {
	w    io.Writer
	json bool
	s    styles
}

func newRenderer(w io.Writer, jsonOutput bool) *renderer {
	return &renderer{w: w, json: jsonOutput, s: newStyles(lipgloss.NewRenderer(w))}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *renderer) println(a ...any) {
	_, _ = fmt.Fprintln(r.w, a...)
}

func (r *renderer) field(name, value string) {
	r.println(r.s.label.Render(fmt.Sprintf("%-14s", name)) + r.s.value.Render(value))
}

func (r *renderer) list(name string, items []string) {
	if len(items) == 0 {
		r.field(name, r.s.dim.Render("none"))
		return
	}
	r.field(name, strings.Join(items, ", "))
}

// start prints a new workflow's id and first action.
func (r *renderer) start(resp *workflow.StartResponse) error {
	if r.json {
		return writeJSON(r.w, resp)
	}
	r.field("workflow", resp.WorkflowID)
	r.field("phase", string(resp.Phase))
	r.println()
	return r.action(resp.Action, resp.Instruction)
}

// step prints the phase reached and the next action.
func (r *renderer) step(resp *workflow.StepResponse) error {
	if r.json {
		return writeJSON(r.w, resp)
	}
	r.field("workflow", resp.WorkflowID)
	r.field("phase", phaseLabel(r.s, resp.Phase))
	r.println()
	return r.action(resp.Action, resp.Instruction)
}

// action renders a through the visitor. A nil action prints the instruction.
func (r *renderer) action(a workflow.Action, instruction string) error {
	if a == nil {
		r.println(r.s.header.Render("CONTINUE"))
		r.println(instruction)
		return nil
	}
	return a.Accept(r)
}

func (r *renderer) VisitCreateFile(a *workflow.CreateFileAction) error {
	r.println(r.s.header.Render("CREATE FILE"))
	r.field("path", a.Path)
	r.println()
	r.println(r.s.code.Render(strings.TrimRight(a.Content, "\n")))
	r.println()
	r.println(a.Instruction)
	return nil
}

func (r *renderer) VisitEditFile(a *workflow.EditFileAction) error {
	r.println(r.s.header.Render("EDIT FILE"))
	r.field("path", a.Path)
	r.println()
	r.println(a.Instruction)
	return nil
}

func (r *renderer) VisitCreateFiles(a *workflow.CreateFilesAction) error {
	r.println(r.s.header.Render("CREATE FILES"))
	r.list("suggested", a.SuggestedFiles)
	r.println()
	r.println(a.Instruction)
	return nil
}

func (r *renderer) VisitShell(a *workflow.ShellAction) error {
	r.println(r.s.header.Render("RUN"))
	r.println(r.s.code.Render(a.Command))
	r.println()
	r.println(a.Instruction)

	var notes []string
	if a.CaptureOutput {
		notes = append(notes, "pass the output with --output or --output-file")
	}
	if a.ExpectSuccess {
		notes = append(notes, "report --success or --failed")
	}
	if len(notes) > 0 {
		r.println(r.s.dim.Render(strings.Join(notes, "; ")))
	}
	return nil
}

func (r *renderer) VisitInfo(a *workflow.InfoAction) error {
	r.println(r.s.header.Render("INFO"))
	r.println(a.Instruction)
	return nil
}

func (r *renderer) VisitComplete(a *workflow.CompleteAction) error {
	r.println(r.s.ok.Render("✓ COMPLETE"))
	r.field("feature", a.Summary.Description)
	r.field("spec", a.Summary.SpecPath)
	r.list("tests", a.Summary.TestFiles)
	r.list("implementation", a.Summary.ImplementationFiles)
	r.println()
	r.println(a.Instruction)
	return nil
}

func (r *renderer) VisitFailed(a *workflow.FailedAction) error {
	r.println(r.s.err.Render(fmt.Sprintf("✗ FAILED: %s", a.FailedStep)))
	r.println(a.Instruction)
	return nil
}

func phaseLabel(s styles, p workflow.Phase) string {
	switch p {
	case workflow.PhaseComplete:
		return s.ok.Render(string(p))
	case workflow.PhaseFailed, workflow.PhaseAborted:
		return s.err.Render(string(p))
	default:
		return string(p)
	}
}

// status prints the persisted state of one workflow.
func (r *renderer) status(wc *workflow.WorkflowContext) error {
	if r.json {
		return writeJSON(r.w, wc)
	}
	r.println(r.s.section.Render(wc.Description))
	r.field("workflow", wc.ID)
	r.field("phase", phaseLabel(r.s, wc.Phase))
	r.field("version", fmt.Sprint(wc.Version))
	r.field("updated", wc.UpdatedAt.Format("2006-01-02 15:04:05 MST"))
	r.field("project", wc.ProjectPath)
	r.field("spec", wc.SpecPath)
	r.list("reviewers", wc.ActiveReviewers)
	if len(wc.PendingReviewers) > 0 {
		r.list("pending", wc.PendingReviewers)
	}
	r.list("tests", wc.TestFiles)
	r.list("implementation", wc.ImplementationFiles)
	for _, c := range []struct {
		name string
		res  *workflow.CommandResult
	}{{"lint", wc.LintResult}, {"build", wc.BuildResult}, {"test", wc.TestResult}} {
		if c.res == nil {
			continue
		}
		mark := r.s.ok.Render("✓")
		if !c.res.Success {
			mark = r.s.err.Render("✗")
		}
		r.field(c.name, mark+" "+c.res.Command)
	}
	if wc.LastError != "" {
		r.field("error", r.s.err.Render(wc.LastError))
	}
	return nil
}

// workflows prints active workflow ids.
func (r *renderer) workflows(ids []string) error {
	if r.json {
		return writeJSON(r.w, map[string][]string{"workflows": ids})
	}
	if len(ids) == 0 {
		r.println(r.s.dim.Render("no active workflows"))
		return nil
	}
	for _, id := range ids {
		r.println(id)
	}
	return nil
}

// history prints archived workflows, oldest first.
func (r *renderer) history(entries []store.ArchiveEntry) error {
	if r.json {
		if entries == nil {
			entries = []store.ArchiveEntry{}
		}
		return writeJSON(r.w, entries)
	}
	if len(entries) == 0 {
		r.println(r.s.dim.Render("no archived workflows"))
		return nil
	}
	for _, e := range entries {
		r.println(r.s.dim.Render(e.ArchivedAt.Format("2006-01-02 15:04:05")) + "  " + e.ID)
	}
	return nil
}

// reviewers prints reviewer availability.
func (r *renderer) reviewers(statuses []reviewer.Status) error {
	if r.json {
		return writeJSON(r.w, statuses)
	}
	if len(statuses) == 0 {
		r.println(r.s.dim.Render("no reviewers configured"))
		return nil
	}
	for _, st := range statuses {
		ident := st.Backend
		if st.Model != "" {
			ident += "/" + st.Model
		}
		if st.Available {
			r.println(r.s.ok.Render("✓ ") + r.s.value.Render(st.Name) + " " + r.s.dim.Render(ident))
			continue
		}
		r.println(r.s.err.Render("✗ ") + r.s.value.Render(st.Name) + " " + r.s.dim.Render(ident))
		if st.Reason != "" {
			r.println("    " + r.s.warn.Render(st.Reason))
		}
		if st.InstallInstructions != "" {
			r.println("    " + r.s.dim.Render(st.InstallInstructions))
		}
	}
	return nil
}

var _ workflow.ActionVisitor = (*renderer)(nil)
