package git

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

// PRState is the sealed result of querying a branch's pull request through
// the oracle (spec §4.5.2, §9 Design Notes: prefer pattern matching to
// status strings).
type PRState interface{ isPRState() }

// PRMerged means the branch's PR was merged.
type PRMerged struct {
	Number int
	URL    string
}

func (PRMerged) isPRState() {}

// PROpen means the branch has an open, unmerged PR.
type PROpen struct {
	Number int
	URL    string
}

func (PROpen) isPRState() {}

// PRClosed means the branch's PR was closed without merging.
type PRClosed struct {
	Number int
	URL    string
}

func (PRClosed) isPRState() {}

// PRNotFound means the branch has no associated PR.
type PRNotFound struct{}

func (PRNotFound) isPRState() {}

// PRUnknown means the oracle could not be consulted (e.g. gh is not
// installed or not authenticated); callers should treat this as "don't
// know" rather than as evidence the branch is safe to clean up.
type PRUnknown struct {
	Reason string
}

func (PRUnknown) isPRState() {}

type prView struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
	State  string `json:"state"`
}

// PRStatus consults `gh pr view` for the PR associated with branch, if any.
func PRStatus(workspace, branch string) PRState {
	cmd := exec.Command("gh", "pr", "view", branch, "--json", "number,url,state")
	cmd.Dir = workspace
	out, err := cmd.CombinedOutput()
	if err != nil {
		text := strings.ToLower(string(out))
		if strings.Contains(text, "no pull requests found") {
			return PRNotFound{}
		}
		if strings.Contains(text, "not found") || isExecNotFound(err) {
			return PRUnknown{Reason: strings.TrimSpace(string(out))}
		}
		return PRUnknown{Reason: err.Error()}
	}

	var v prView
	if err := json.Unmarshal(out, &v); err != nil {
		return PRUnknown{Reason: fmt.Sprintf("unparseable gh output: %v", err)}
	}

	switch strings.ToUpper(v.State) {
	case "MERGED":
		return PRMerged{Number: v.Number, URL: v.URL}
	case "CLOSED":
		return PRClosed{Number: v.Number, URL: v.URL}
	case "OPEN":
		return PROpen{Number: v.Number, URL: v.URL}
	default:
		return PRUnknown{Reason: "unrecognised PR state: " + v.State}
	}
}

func isExecNotFound(err error) bool {
	_, ok := err.(*exec.Error)
	return ok
}
