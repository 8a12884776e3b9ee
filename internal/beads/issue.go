package beads

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// BeadCreateOptions mirrors the fields the Rust `BeadsCli::create` call takes
// (original_source commands/beads/sync.rs ensure_root_bead/ensure_step_bead):
// title and description are required, everything else is optional detail
// attached to the new issue in one shot.
type BeadCreateOptions struct {
	Title       string
	Description string
	ParentID    string
	IssueType   string
	Design      string
	Acceptance  string
}

// FindByTitle looks for an existing bead with an exact title, optionally
// scoped to a parent. The bd CLI has no dedicated title-search flag, so this
// lists every bead and filters client-side — acceptable since sync runs are
// infrequent and beads sets are small compared to a running service's event
// volume.
func FindByTitle(ctx context.Context, beadsDir, title, parentID string) (*Bead, error) {
	all, err := ListBeadsCtx(ctx, beadsDir)
	if err != nil {
		return nil, fmt.Errorf("finding bead by title: %w", err)
	}
	for i := range all {
		b := &all[i]
		if b.Title != title {
			continue
		}
		if parentID != "" && b.ParentID != parentID {
			continue
		}
		return b, nil
	}
	return nil, nil
}

// CreateBead creates a new bead issue with the full set of optional detail
// fields and returns its ID.
func CreateBead(ctx context.Context, beadsDir string, opts BeadCreateOptions) (string, error) {
	root := projectRoot(beadsDir)
	args := []string{"create", "--title", opts.Title, "--silent"}
	if opts.Description != "" {
		args = append(args, "--description", opts.Description)
	}
	if opts.ParentID != "" {
		args = append(args, "--parent", opts.ParentID)
	}
	if opts.IssueType != "" {
		args = append(args, "--type", opts.IssueType)
	}
	if opts.Design != "" {
		args = append(args, "--design", opts.Design)
	}
	if opts.Acceptance != "" {
		args = append(args, "--acceptance", opts.Acceptance)
	}

	out, err := runBD(ctx, root, args...)
	if err != nil {
		return "", fmt.Errorf("creating bead issue %q: %w", opts.Title, err)
	}
	issueID := strings.TrimSpace(string(out))
	if issueID == "" {
		return "", fmt.Errorf("creating bead issue %q returned empty id", opts.Title)
	}
	return issueID, nil
}

// UpdateDescription overwrites a bead's description field in place.
func UpdateDescription(ctx context.Context, beadsDir, beadID, description string) error {
	root := projectRoot(beadsDir)
	_, err := runBD(ctx, root, "update", beadID, "--description", description)
	if err != nil {
		return fmt.Errorf("updating description for %s: %w", beadID, err)
	}
	return nil
}

// UpdateDesign overwrites a bead's design field in place.
func UpdateDesign(ctx context.Context, beadsDir, beadID, design string) error {
	root := projectRoot(beadsDir)
	_, err := runBD(ctx, root, "update", beadID, "--design", design)
	if err != nil {
		return fmt.Errorf("updating design for %s: %w", beadID, err)
	}
	return nil
}

// UpdateAcceptance overwrites a bead's acceptance criteria field in place.
func UpdateAcceptance(ctx context.Context, beadsDir, beadID, acceptance string) error {
	root := projectRoot(beadsDir)
	_, err := runBD(ctx, root, "update", beadID, "--acceptance", acceptance)
	if err != nil {
		return fmt.Errorf("updating acceptance for %s: %w", beadID, err)
	}
	return nil
}

// DepList returns the IDs a bead currently depends on, via `bd dep list --json`.
func DepList(ctx context.Context, beadsDir, beadID string) ([]string, error) {
	root := projectRoot(beadsDir)
	out, err := runBD(ctx, root, "dep", "list", beadID, "--json")
	if err != nil {
		return nil, fmt.Errorf("listing dependencies for %s: %w", beadID, err)
	}
	var deps []BeadDependency
	if err := json.Unmarshal(out, &deps); err != nil {
		return nil, fmt.Errorf("parsing dep list output for %s: %w", beadID, err)
	}
	ids := make([]string, 0, len(deps))
	for _, d := range deps {
		ids = append(ids, d.DependsOnID)
	}
	return ids, nil
}

// DepAdd records that beadID depends on dependsOnID.
func DepAdd(ctx context.Context, beadsDir, beadID, dependsOnID string) error {
	root := projectRoot(beadsDir)
	_, err := runBD(ctx, root, "dep", "add", beadID, dependsOnID)
	if err != nil {
		return fmt.Errorf("adding dependency %s -> %s: %w", beadID, dependsOnID, err)
	}
	return nil
}

// DepRemove removes a previously recorded dependency edge.
func DepRemove(ctx context.Context, beadsDir, beadID, dependsOnID string) error {
	root := projectRoot(beadsDir)
	_, err := runBD(ctx, root, "dep", "remove", beadID, dependsOnID)
	if err != nil {
		return fmt.Errorf("removing dependency %s -> %s: %w", beadID, dependsOnID, err)
	}
	return nil
}
