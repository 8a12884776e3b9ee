// Package validate checks structural and semantic invariants on a parsed
// plan under three strictness levels (spec §4.3).
package validate

import (
	"fmt"

	"github.com/tugtool/tug/internal/plan"
)

// Level is a validation strictness level.
type Level string

const (
	Lenient Level = "lenient"
	Normal  Level = "normal"
	Strict  Level = "strict"
)

// Severity classifies an Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is one structural or semantic finding.
type Issue struct {
	Code     string
	Severity Severity
	Message  string
	Line     int
	Anchor   string
}

// Result is the outcome of validating a plan.
type Result struct {
	Valid       bool
	Issues      []Issue
	Diagnostics []plan.Diagnostic
}

// Validate checks p under the given level. Validity means zero issues at
// SeverityError.
func Validate(p *plan.Plan, level Level) Result {
	v := &validator{plan: p, level: level}
	v.checkPhaseTitle()
	v.checkMetadata()
	v.checkAnchorsUnique()
	v.checkDependencies()
	v.checkCycles()
	v.checkStepNumberOrder()
	v.checkReferences()
	if level == Strict {
		v.checkStrictExtras()
	}

	res := Result{Issues: v.issues, Diagnostics: p.Diagnostics}
	res.Valid = true
	for _, issue := range v.issues {
		if issue.Severity == SeverityError {
			res.Valid = false
			break
		}
	}
	return res
}

type validator struct {
	plan   *plan.Plan
	level  Level
	issues []Issue
}

func (v *validator) add(code string, sev Severity, msg string, line int, anchor string) {
	v.issues = append(v.issues, Issue{Code: code, Severity: sev, Message: msg, Line: line, Anchor: anchor})
}

// errorOrWarning downgrades an error to a warning under lenient level for
// anything that is not a structural fatal issue.
func (v *validator) errorOrWarning() Severity {
	if v.level == Lenient {
		return SeverityWarning
	}
	return SeverityError
}

func (v *validator) checkPhaseTitle() {
	if v.plan.PhaseTitle == "" {
		// Structural fatal: always an error, even under lenient.
		v.add("E001", SeverityError, "plan is missing a phase title", 0, "")
	}
}

func (v *validator) checkMetadata() {
	if v.plan.Metadata.Owner == "" {
		if v.level == Strict {
			v.add("E010", SeverityError, "missing Owner in Plan Metadata", 0, "")
		} else {
			v.add("E010", SeverityWarning, "missing Owner in Plan Metadata", 0, "")
		}
	}
	if v.plan.Metadata.LastUpdated == "" {
		if v.level == Strict {
			v.add("E011", SeverityError, "missing Last updated in Plan Metadata", 0, "")
		} else {
			v.add("E011", SeverityWarning, "missing Last updated in Plan Metadata", 0, "")
		}
	}
	if v.plan.Metadata.Status == plan.StatusUnknown {
		v.add("E012", SeverityWarning, "Status is missing or unrecognized", 0, "")
	}
}

func (v *validator) checkAnchorsUnique() {
	seen := map[string]int{}
	for _, s := range v.plan.StepsAndSubsteps() {
		seen[s.Anchor]++
	}
	for anchor, count := range seen {
		if count > 1 {
			v.add("E020", v.errorOrWarning(), fmt.Sprintf("anchor #%s is declared %d times", anchor, count), 0, anchor)
		}
	}
}

func (v *validator) checkDependencies() {
	for _, s := range v.plan.StepsAndSubsteps() {
		for _, dep := range s.DependsOn {
			if !v.plan.Anchors[dep] {
				v.add("E030", v.errorOrWarning(), fmt.Sprintf("step #%s depends on unknown anchor #%s", s.Anchor, dep), s.SourceLine, s.Anchor)
			}
		}
	}
}

func (v *validator) checkCycles() {
	steps := v.plan.StepsAndSubsteps()
	index := map[string]*plan.Step{}
	for _, s := range steps {
		index[s.Anchor] = s
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}

	var visit func(anchor string, path []string) []string
	visit = func(anchor string, path []string) []string {
		switch color[anchor] {
		case black:
			return nil
		case gray:
			return append(append([]string{}, path...), anchor)
		}
		color[anchor] = gray
		s := index[anchor]
		if s != nil {
			for _, dep := range s.DependsOn {
				if _, ok := index[dep]; !ok {
					continue // unknown dep already reported by checkDependencies
				}
				if cyc := visit(dep, append(path, anchor)); cyc != nil {
					return cyc
				}
			}
		}
		color[anchor] = black
		return nil
	}

	reported := map[string]bool{}
	for _, s := range steps {
		if color[s.Anchor] != white {
			continue
		}
		if cyc := visit(s.Anchor, nil); cyc != nil {
			key := cyc[0]
			if reported[key] {
				continue
			}
			reported[key] = true
			v.add("E040", SeverityError, fmt.Sprintf("dependency cycle detected: %v", cyc), s.SourceLine, s.Anchor)
		}
	}
}

func (v *validator) checkStepNumberOrder() {
	var last string
	for _, s := range v.plan.Steps {
		if last != "" && compareStepNumbers(last, s.Number) >= 0 {
			v.add("E050", SeverityWarning, fmt.Sprintf("step %s is not ordered after step %s", s.Number, last), s.SourceLine, s.Anchor)
		}
		last = s.Number
	}
}

// compareStepNumbers compares dotted numeric strings like "1" vs "2" or
// "1.1" vs "1.2" numerically component-by-component.
func compareStepNumbers(a, b string) int {
	pa, pb := splitDotted(a), splitDotted(b)
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if pa[i] != pb[i] {
			if pa[i] < pb[i] {
				return -1
			}
			return 1
		}
	}
	return len(pa) - len(pb)
}

func splitDotted(s string) []int {
	var out []int
	cur := 0
	started := false
	for _, r := range s {
		if r >= '0' && r <= '9' {
			cur = cur*10 + int(r-'0')
			started = true
			continue
		}
		if started {
			out = append(out, cur)
		}
		cur, started = 0, false
	}
	if started {
		out = append(out, cur)
	}
	return out
}

func (v *validator) checkReferences() {
	for _, s := range v.plan.StepsAndSubsteps() {
		if s.References == "" {
			continue
		}
		// References are free-form text; a bare anchor mentioned there that
		// does not exist in the plan is only ever a warning, even in strict
		// mode, because references may legitimately point outside the plan.
		for _, anchor := range extractHashRefs(s.References) {
			if !v.plan.Anchors[anchor] {
				v.add("W060", SeverityWarning, fmt.Sprintf("step #%s references unknown anchor #%s", s.Anchor, anchor), s.SourceLine, s.Anchor)
			}
		}
	}
}

func (v *validator) checkStrictExtras() {
	for _, s := range v.plan.StepsAndSubsteps() {
		if s.CommitTemplate == "" {
			v.add("E070", SeverityError, fmt.Sprintf("step #%s has no commit message template", s.Anchor), s.SourceLine, s.Anchor)
		}
	}
	for _, d := range v.plan.Decisions {
		if d.Title == "" {
			v.add("E071", SeverityError, fmt.Sprintf("decision %s has no title", d.ID), 0, "")
		}
	}
}

func extractHashRefs(text string) []string {
	var out []string
	cur := ""
	capturing := false
	flush := func() {
		if cur != "" {
			out = append(out, cur)
		}
		cur = ""
	}
	for _, r := range text {
		switch {
		case r == '#':
			flush()
			capturing = true
		case capturing && (isAlnum(r) || r == '-' || r == '_'):
			cur += string(r)
		default:
			flush()
			capturing = false
		}
	}
	flush()
	return out
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}
