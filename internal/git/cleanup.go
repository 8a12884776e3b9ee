package git

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// TugBranch is one tugplan/* branch discovered by ListTugBranches, with its
// tip commit time for staleness decisions (spec §4.5.3).
type TugBranch struct {
	Name         string
	LastCommitAt time.Time
}

// ListTugBranches lists local branches under prefix (normally "tugplan/"),
// excluding the currently checked-out branch, newest-commit first.
func ListTugBranches(workspace, prefix string) ([]TugBranch, error) {
	current, err := CurrentBranch(workspace)
	if err != nil {
		return nil, err
	}

	cmd := exec.Command("git", "for-each-ref", "--format=%(refname:short)|%(committerdate:unix)", "--sort=-committerdate", "refs/heads")
	cmd.Dir = workspace
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("failed to list branches for cleanup: %w (%s)", err, strings.TrimSpace(string(out)))
	}

	var branches []TugBranch
	for _, line := range strings.Split(strings.TrimSpace(string(out)), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "|", 2)
		if len(parts) != 2 {
			continue
		}
		name := strings.TrimSpace(parts[0])
		if name == "" || name == current || !strings.HasPrefix(name, prefix) {
			continue
		}
		unix, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 64)
		if err != nil {
			continue
		}
		branches = append(branches, TugBranch{Name: name, LastCommitAt: time.Unix(unix, 0)})
	}
	return branches, nil
}
