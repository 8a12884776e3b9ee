package beads

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/tugtool/tug/internal/plan"
)

// SyncOptions controls how SyncPlanSteps reconciles a plan's step graph with
// an external beads project (original_source commands/beads/sync.rs,
// `SyncOptions`/`run_sync`).
type SyncOptions struct {
	DryRun bool
	// Enrich also pushes each bead's description/design/acceptance fields
	// on every sync, not just at creation time.
	Enrich bool
	// PruneDeps removes bead dependency edges that no longer match the
	// plan's depends_on lists, instead of only ever adding new ones.
	PruneDeps bool
	// SyncSubsteps mirrors the Rust CLI's substeps_mode == "children":
	// substeps get their own child bead under their parent step's bead.
	// When false, substeps are left untracked in beads.
	SyncSubsteps bool
}

// SyncResult reports what SyncPlanSteps did.
type SyncResult struct {
	RootBeadID   string
	StepsSynced  int
	DepsAdded    int
	AnchorToBead map[string]string
	EnrichErrors []string
}

// SyncPlanSteps reconciles a plan's phase/step/substep graph against an
// external beads project: one root bead for the phase, one bead per step
// (and, if requested, per substep), and dependency edges mirroring each
// step's depends_on anchors. Existing beads are matched by exact title and
// reused rather than duplicated. Grounded on original_source
// commands/beads/sync.rs's sync_plan_to_beads. Structural sync (creating
// the root/step/substep beads and their dependency edges) fails fast: a
// half-built graph is worse than no graph, since later steps' dependency
// edges assume earlier ones resolved. Only the optional enrichment pass
// (pushing description/design/acceptance text onto already-synced beads) is
// best-effort, in the spirit of the teacher's crossdeps.go "skip projects
// that fail" posture — enrichment is polish, not structure, so one bead's
// enrichment failing is recorded in EnrichErrors rather than aborting the
// rest.
func SyncPlanSteps(ctx context.Context, beadsDir string, p *plan.Plan, opts SyncOptions) (SyncResult, error) {
	rootTitle := p.PhaseTitle
	if rootTitle == "" {
		rootTitle = "Untitled plan"
	}

	rootID, rootCreated, err := ensureRootBead(ctx, beadsDir, p, rootTitle, opts)
	if err != nil {
		return SyncResult{}, fmt.Errorf("sync: root bead: %w", err)
	}

	created := map[string]bool{}
	if rootCreated {
		created[rootID] = true
	}

	anchorToBead := map[string]string{}
	stepsSynced := 0

	for _, step := range p.Steps {
		beadID, wasCreated, err := ensureStepBead(ctx, beadsDir, step, rootID, p, opts)
		if err != nil {
			return SyncResult{}, fmt.Errorf("sync: step %s: %w", step.Anchor, err)
		}
		anchorToBead[step.Anchor] = beadID
		if wasCreated {
			created[beadID] = true
		}
		stepsSynced++

		if opts.SyncSubsteps {
			for _, sub := range step.Substeps {
				subID, subCreated, err := ensureStepBead(ctx, beadsDir, sub, beadID, p, opts)
				if err != nil {
					return SyncResult{}, fmt.Errorf("sync: substep %s: %w", sub.Anchor, err)
				}
				anchorToBead[sub.Anchor] = subID
				if subCreated {
					created[subID] = true
				}
				stepsSynced++
			}
		}
	}

	depsAdded := 0
	for _, step := range p.Steps {
		if beadID, ok := anchorToBead[step.Anchor]; ok && (created[beadID] || opts.PruneDeps) {
			added, err := syncDependencies(ctx, beadsDir, beadID, step.DependsOn, anchorToBead, opts)
			if err != nil {
				return SyncResult{}, fmt.Errorf("sync: dependencies for %s: %w", step.Anchor, err)
			}
			depsAdded += added
		}

		if !opts.SyncSubsteps {
			continue
		}
		for _, sub := range step.Substeps {
			beadID, ok := anchorToBead[sub.Anchor]
			if !ok || !(created[beadID] || opts.PruneDeps) {
				continue
			}
			deps := sub.DependsOn
			if len(deps) == 0 {
				deps = step.DependsOn
			}
			added, err := syncDependencies(ctx, beadsDir, beadID, deps, anchorToBead, opts)
			if err != nil {
				return SyncResult{}, fmt.Errorf("sync: dependencies for %s: %w", sub.Anchor, err)
			}
			depsAdded += added
		}
	}

	var enrichErrors []string
	if opts.Enrich && !opts.DryRun {
		if !created[rootID] {
			enrichErrors = append(enrichErrors, enrichRootBead(ctx, beadsDir, p, rootID)...)
		}
		for _, step := range p.Steps {
			if beadID, ok := anchorToBead[step.Anchor]; ok && !created[beadID] {
				enrichErrors = append(enrichErrors, enrichStepBead(ctx, beadsDir, step, p, beadID)...)
			}
			if !opts.SyncSubsteps {
				continue
			}
			for _, sub := range step.Substeps {
				if beadID, ok := anchorToBead[sub.Anchor]; ok && !created[beadID] {
					enrichErrors = append(enrichErrors, enrichStepBead(ctx, beadsDir, sub, p, beadID)...)
				}
			}
		}
	}

	return SyncResult{
		RootBeadID:   rootID,
		StepsSynced:  stepsSynced,
		DepsAdded:    depsAdded,
		AnchorToBead: anchorToBead,
		EnrichErrors: enrichErrors,
	}, nil
}

func ensureRootBead(ctx context.Context, beadsDir string, p *plan.Plan, title string, opts SyncOptions) (string, bool, error) {
	if opts.DryRun {
		return "bd-dryrun-root", true, nil
	}

	if existing, err := FindByTitle(ctx, beadsDir, title, ""); err != nil {
		return "", false, err
	} else if existing != nil {
		return existing.ID, false, nil
	}

	id, err := CreateBead(ctx, beadsDir, BeadCreateOptions{
		Title:       title,
		Description: renderRootDescription(p),
		IssueType:   "epic",
		Design:      renderRootDesign(p),
		Acceptance:  renderRootAcceptance(p),
	})
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func ensureStepBead(ctx context.Context, beadsDir string, step *plan.Step, parentID string, p *plan.Plan, opts SyncOptions) (string, bool, error) {
	title := fmt.Sprintf("Step %s: %s", step.Number, step.Title)

	if opts.DryRun {
		return "bd-dryrun-" + step.Anchor, true, nil
	}

	if existing, err := FindByTitle(ctx, beadsDir, title, parentID); err != nil {
		return "", false, err
	} else if existing != nil {
		return existing.ID, false, nil
	}

	id, err := CreateBead(ctx, beadsDir, BeadCreateOptions{
		Title:       title,
		Description: renderStepDescription(step),
		ParentID:    parentID,
		Design:      resolveStepDesign(step, p),
		Acceptance:  renderStepAcceptance(step),
	})
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

func syncDependencies(ctx context.Context, beadsDir, beadID string, dependsOn []string, anchorToBead map[string]string, opts SyncOptions) (int, error) {
	if opts.DryRun {
		return len(dependsOn), nil
	}

	current, err := DepList(ctx, beadsDir, beadID)
	if err != nil {
		current = nil // best-effort: treat an unreadable dep list as empty rather than aborting
	}
	currentSet := make(map[string]bool, len(current))
	for _, id := range current {
		currentSet[id] = true
	}

	added := 0
	desired := make(map[string]bool, len(dependsOn))
	for _, anchor := range dependsOn {
		depBeadID, ok := anchorToBead[anchor]
		if !ok {
			continue
		}
		desired[depBeadID] = true
		if currentSet[depBeadID] {
			continue
		}
		if err := DepAdd(ctx, beadsDir, beadID, depBeadID); err != nil {
			return added, err
		}
		added++
	}

	if opts.PruneDeps {
		for _, id := range current {
			if !desired[id] {
				if err := DepRemove(ctx, beadsDir, beadID, id); err != nil {
					return added, err
				}
			}
		}
	}

	return added, nil
}

func enrichRootBead(ctx context.Context, beadsDir string, p *plan.Plan, rootID string) []string {
	var errs []string
	if d := renderRootDescription(p); d != "" {
		if err := UpdateDescription(ctx, beadsDir, rootID, d); err != nil {
			errs = append(errs, fmt.Sprintf("root description: %s", err))
		}
	}
	if d := renderRootDesign(p); d != "" {
		if err := UpdateDesign(ctx, beadsDir, rootID, d); err != nil {
			errs = append(errs, fmt.Sprintf("root design: %s", err))
		}
	}
	if a := renderRootAcceptance(p); a != "" {
		if err := UpdateAcceptance(ctx, beadsDir, rootID, a); err != nil {
			errs = append(errs, fmt.Sprintf("root acceptance: %s", err))
		}
	}
	return errs
}

func enrichStepBead(ctx context.Context, beadsDir string, step *plan.Step, p *plan.Plan, beadID string) []string {
	var errs []string
	if d := renderStepDescription(step); d != "" {
		if err := UpdateDescription(ctx, beadsDir, beadID, d); err != nil {
			errs = append(errs, fmt.Sprintf("%s description: %s", beadID, err))
		}
	}
	if a := renderStepAcceptance(step); a != "" {
		if err := UpdateAcceptance(ctx, beadsDir, beadID, a); err != nil {
			errs = append(errs, fmt.Sprintf("%s acceptance: %s", beadID, err))
		}
	}
	if d := resolveStepDesign(step, p); d != "" {
		if err := UpdateDesign(ctx, beadsDir, beadID, d); err != nil {
			errs = append(errs, fmt.Sprintf("%s design: %s", beadID, err))
		}
	}
	return errs
}

func renderRootDescription(p *plan.Plan) string {
	var b strings.Builder
	if p.PhaseTitle != "" {
		fmt.Fprintf(&b, "Phase: %s\n", p.PhaseTitle)
	}
	if len(p.Decisions) > 0 {
		b.WriteString("\n## Decisions\n")
		for _, d := range p.Decisions {
			fmt.Fprintf(&b, "- [%s] %s\n", d.ID, d.Title)
		}
	}
	return strings.TrimSpace(b.String())
}

func renderRootDesign(p *plan.Plan) string {
	if len(p.Decisions) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Decisions\n")
	for _, d := range p.Decisions {
		fmt.Fprintf(&b, "- [%s] %s\n", d.ID, d.Title)
	}
	return strings.TrimSpace(b.String())
}

func renderRootAcceptance(p *plan.Plan) string {
	if len(p.Steps) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Exit criteria\n")
	for _, s := range p.Steps {
		fmt.Fprintf(&b, "- Step %s: %s\n", s.Number, s.Title)
	}
	return strings.TrimSpace(b.String())
}

func renderStepDescription(step *plan.Step) string {
	var b strings.Builder
	if len(step.Tasks) > 0 {
		b.WriteString("## Tasks\n")
		for _, t := range step.Tasks {
			fmt.Fprintf(&b, "- %s\n", t.Text)
		}
	}
	if step.CommitTemplate != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "## Commit message\n%s\n", step.CommitTemplate)
	}
	return strings.TrimSpace(b.String())
}

func renderStepAcceptance(step *plan.Step) string {
	var b strings.Builder
	if len(step.Tests) > 0 {
		b.WriteString("## Tests\n")
		for _, t := range step.Tests {
			fmt.Fprintf(&b, "- %s\n", t.Text)
		}
	}
	if len(step.Checkpoints) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("## Checkpoints\n")
		for _, c := range step.Checkpoints {
			fmt.Fprintf(&b, "- %s\n", c.Text)
		}
	}
	return strings.TrimSpace(b.String())
}

var (
	decisionRefPattern = regexp.MustCompile(`\[([DQ]\d+)\]`)
	anchorRefPattern   = regexp.MustCompile(`#([a-z0-9-]+)`)
)

// resolveStepDesign expands a step's free-form References text into a
// design section: [D1]/[Q2] decision refs get their titles looked up,
// anything else in #anchor form is passed through. Grounded on
// original_source commands/beads/sync.rs's resolve_step_design.
func resolveStepDesign(step *plan.Step, p *plan.Plan) string {
	if step.References == "" {
		return ""
	}

	decisionTitles := make(map[string]string, len(p.Decisions))
	for _, d := range p.Decisions {
		decisionTitles[d.ID] = d.Title
	}

	var decisions, anchors []string
	for _, m := range decisionRefPattern.FindAllStringSubmatch(step.References, -1) {
		id := m[1]
		if title, ok := decisionTitles[id]; ok {
			decisions = append(decisions, fmt.Sprintf("- [%s] %s", id, title))
		} else {
			decisions = append(decisions, fmt.Sprintf("- [%s]", id))
		}
	}
	for _, m := range anchorRefPattern.FindAllStringSubmatch(step.References, -1) {
		anchors = append(anchors, fmt.Sprintf("- #%s", m[1]))
	}

	if len(decisions) == 0 && len(anchors) == 0 {
		return ""
	}

	lines := []string{"## References"}
	lines = append(lines, decisions...)
	if len(decisions) > 0 && len(anchors) > 0 {
		lines = append(lines, "")
	}
	lines = append(lines, anchors...)
	return strings.Join(lines, "\n")
}
