// Package resolve implements the five-stage cascade that maps a
// user-supplied plan identifier to exactly one plan file (spec §4.2).
package resolve

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Stage names the cascade stage that produced a match.
type Stage string

const (
	StageExact    Stage = "exact"
	StageFilename Stage = "filename"
	StageSlug     Stage = "slug"
	StagePrefix   Stage = "prefix"
	StageAuto     Stage = "auto"
)

// Found is returned when exactly one plan matches.
type Found struct {
	Path  string
	Stage Stage
}

// Ambiguous is returned when a stage yields more than one match.
type Ambiguous struct {
	Stage      Stage
	Candidates []string
}

// Config carries the plan-directory and filename-prefix policy (spec §10
// open question: these are configuration, not hard-coded).
type Config struct {
	ProjectRoot string
	PlanDir     string // e.g. ".tug", relative to ProjectRoot
	PlanPrefix  string // e.g. "plan-"
}

func (c Config) planDirAbs() string {
	return filepath.Join(c.ProjectRoot, c.PlanDir)
}

// Resolve runs the five-stage cascade over input. It returns exactly one
// of: a *Found, a *Ambiguous, or (nil, nil, nil) meaning NotFound.
func Resolve(input string, cfg Config) (*Found, *Ambiguous, error) {
	trimmed := strings.TrimSpace(input)

	if trimmed != "" && (strings.HasPrefix(trimmed, "/") || strings.HasPrefix(trimmed, ".")) {
		if _, err := os.Stat(trimmed); err == nil {
			return &Found{Path: trimmed, Stage: StageExact}, nil, nil
		}
		// falls through to later stages per the cascade table
	}

	if trimmed != "" && cfg.PlanPrefix != "" && strings.HasPrefix(trimmed, cfg.PlanPrefix) {
		candidate := filepath.Join(cfg.planDirAbs(), trimmed)
		if _, err := os.Stat(candidate); err == nil {
			return &Found{Path: candidate, Stage: StageFilename}, nil, nil
		}
	}

	if trimmed != "" {
		candidate := filepath.Join(cfg.planDirAbs(), cfg.PlanPrefix+trimmed+".md")
		if _, err := os.Stat(candidate); err == nil {
			return &Found{Path: candidate, Stage: StageSlug}, nil, nil
		}
	}

	if trimmed != "" {
		matches, err := prefixMatches(cfg.planDirAbs(), cfg.PlanPrefix+trimmed)
		if err != nil {
			return nil, nil, err
		}
		if len(matches) == 1 {
			return &Found{Path: matches[0], Stage: StagePrefix}, nil, nil
		}
		if len(matches) > 1 {
			return nil, &Ambiguous{Stage: StagePrefix, Candidates: matches}, nil
		}
	}

	if trimmed == "" {
		all, err := prefixMatches(cfg.planDirAbs(), cfg.PlanPrefix)
		if err != nil {
			return nil, nil, err
		}
		if len(all) == 1 {
			return &Found{Path: all[0], Stage: StageAuto}, nil, nil
		}
		if len(all) > 1 {
			return nil, &Ambiguous{Stage: StageAuto, Candidates: all}, nil
		}
	}

	return nil, nil, nil
}

func prefixMatches(dir, prefix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".md") {
			continue
		}
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	sort.Strings(out)
	return out, nil
}
