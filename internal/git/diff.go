package git

import (
	"fmt"
	"os/exec"
	"strings"
)

// StagedFiles returns the paths staged in the index, used by the commit
// pipeline to report what a step's commit touched (spec §4.6).
func StagedFiles(workspace string) ([]string, error) {
	cmd := exec.Command("git", "diff", "--cached", "--name-only")
	cmd.Dir = workspace
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("failed to list staged files: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	text := strings.TrimSpace(string(out))
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

// TruncateDiff truncates a diff string if it exceeds maxBytes.
func TruncateDiff(diff string, maxBytes int) string {
	if len(diff) <= maxBytes {
		return diff
	}
	return diff[:maxBytes] + "\n\n[Diff truncated...]"
}
