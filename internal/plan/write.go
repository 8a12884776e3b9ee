package plan

import (
	"fmt"
	"strings"
)

// Write renders a Plan back to the markdown dialect Parse accepts. No
// command or test in the module calls it.
func Write(p *Plan) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Phase 1: %s {#phase-1}\n\n", p.PhaseTitle)

	b.WriteString("### Plan Metadata {#plan-metadata}\n\n")
	b.WriteString("| Field | Value |\n")
	b.WriteString("|---|---|\n")
	fmt.Fprintf(&b, "| Owner | %s |\n", p.Metadata.Owner)
	fmt.Fprintf(&b, "| Status | %s |\n", p.Metadata.Status)
	fmt.Fprintf(&b, "| Target branch | %s |\n", p.Metadata.TargetBranch)
	fmt.Fprintf(&b, "| Last updated | %s |\n\n", p.Metadata.LastUpdated)

	if len(p.Decisions) > 0 {
		b.WriteString("| ID | Title |\n|---|---|\n")
		for _, d := range p.Decisions {
			fmt.Fprintf(&b, "| %s | %s |\n", d.ID, d.Title)
		}
		b.WriteString("\n")
	}

	b.WriteString("### 1.1 Execution Steps {#execution-steps}\n\n")
	for _, s := range p.Steps {
		writeStep(&b, s, false)
	}

	return b.String()
}

func writeStep(b *strings.Builder, s *Step, substep bool) {
	marker := "####"
	if substep {
		marker = "#####"
	}
	fmt.Fprintf(b, "%s Step %s: %s {#%s}\n\n", marker, s.Number, s.Title, s.Anchor)

	if len(s.DependsOn) > 0 {
		refs := make([]string, len(s.DependsOn))
		for i, a := range s.DependsOn {
			refs[i] = "#" + a
		}
		fmt.Fprintf(b, "**Depends on:** %s\n\n", strings.Join(refs, ", "))
	}
	if s.References != "" {
		fmt.Fprintf(b, "**References:** %s\n\n", s.References)
	}
	if s.CommitTemplate != "" {
		fmt.Fprintf(b, "**Commit:** %s\n\n", s.CommitTemplate)
	}

	writeChecklist(b, "Tasks", s.Tasks)
	writeChecklist(b, "Tests", s.Tests)
	writeChecklist(b, "Checkpoints", s.Checkpoints)

	for _, sub := range s.Substeps {
		writeStep(b, sub, true)
	}
}

func writeChecklist(b *strings.Builder, label string, items []ChecklistItem) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "**%s:**\n\n", label)
	for _, it := range items {
		mark := " "
		if it.Checked {
			mark = "x"
		}
		fmt.Fprintf(b, "- [%s] %s\n", mark, it.Text)
	}
	b.WriteString("\n")
}
