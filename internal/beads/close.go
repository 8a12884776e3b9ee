package beads

import (
	"context"
	"fmt"

	"github.com/tugtool/tug/internal/commit"
)

// CloseResult reports the outcome of CloseBeadAndRotate.
type CloseResult struct {
	BeadID  string
	Log     commit.RotateResult
	Warning string
}

// CloseBeadAndRotate closes a bead and then runs the same implementation-log
// rotation check the commit pipeline runs after every step commit
// (original_source commands/beads/close.rs mirrors commands/commit.rs's
// rotation logic rather than inventing its own; Go's time package makes the
// original's hand-rolled Gregorian calendar arithmetic unnecessary, so this
// just calls the shared commit.RotateLog). Rotation failure does not fail
// the close: the bead is already closed by the time it runs.
func CloseBeadAndRotate(ctx context.Context, beadsDir, worktree, beadID, reason string) (CloseResult, error) {
	var err error
	if reason != "" {
		err = CloseBeadWithReasonCtx(ctx, beadsDir, beadID, reason)
	} else {
		err = CloseBeadCtx(ctx, beadsDir, beadID)
	}
	if err != nil {
		return CloseResult{}, fmt.Errorf("closing bead: %w", err)
	}

	rotated, rotateErr := commit.RotateLog(worktree, false)
	if rotateErr != nil {
		return CloseResult{BeadID: beadID, Warning: fmt.Sprintf("log rotation check failed: %s", rotateErr)}, nil
	}
	return CloseResult{BeadID: beadID, Log: rotated}, nil
}
