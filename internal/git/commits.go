package git

import (
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// trailerPattern matches tug's identity trailers, one per line, at the end
// of a commit message: "Tug-Step: <anchor>" / "Tug-Plan: <path>".
var trailerPattern = regexp.MustCompile(`(?m)^(Tug-Step|Tug-Plan):\s*(.+)$`)

// Commit is a single entry from git history, with tug's trailers already
// extracted from the message body.
type Commit struct {
	Hash     string
	Message  string
	Author   string
	Trailers map[string]string
}

// Trailer reads one trailer value, or "" if absent.
func (c Commit) Trailer(key string) string {
	return c.Trailers[key]
}

// ExtractTrailers parses Tug-Step/Tug-Plan trailers out of a commit
// message. Later occurrences of the same key win, matching git's own
// trailer semantics.
func ExtractTrailers(message string) map[string]string {
	out := map[string]string{}
	for _, m := range trailerPattern.FindAllStringSubmatch(message, -1) {
		out[m[1]] = strings.TrimSpace(m[2])
	}
	return out
}

// commitSeparator delimits records in the custom git log format below; the
// control characters used here never occur in ordinary commit text.
const commitSeparator = "\x1e---TUG-COMMIT-END---\x1e"

// LogAllWithTrailers walks every commit reachable from any ref and returns
// those carrying a Tug-Step trailer, feeding the reconciler (spec §4.7).
func LogAllWithTrailers(workspace string) ([]Commit, error) {
	format := "%H%x1f%an%x1f%B" + commitSeparator
	cmd := exec.Command("git", "log", "--all", "--format="+format)
	cmd.Dir = workspace
	out, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("failed to read git history: %w (%s)", err, strings.TrimSpace(string(out)))
	}

	var commits []Commit
	for _, rec := range strings.Split(string(out), commitSeparator) {
		rec = strings.TrimPrefix(rec, "\n")
		if strings.TrimSpace(rec) == "" {
			continue
		}
		parts := strings.SplitN(rec, "\x1f", 3)
		if len(parts) != 3 {
			continue
		}
		trailers := ExtractTrailers(parts[2])
		if trailers["Tug-Step"] == "" {
			continue
		}
		commits = append(commits, Commit{
			Hash:     parts[0],
			Author:   parts[1],
			Message:  parts[2],
			Trailers: trailers,
		})
	}
	return commits, nil
}

// LatestCommitSHA returns HEAD commit SHA for workspace.
func LatestCommitSHA(workspace string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "HEAD")
	cmd.Dir = workspace
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD commit: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}
