package plan

import "testing"

const samplePlan = `## Phase 1: Build the widget {#phase-1}

### Plan Metadata {#plan-metadata}

| Field | Value |
|---|---|
| Owner | alice |
| Status | active |
| Target Branch | main |
| Last Updated | 2026-07-01 |
| Custom Field | something |

| ID | Title |
|---|---|
| D1 | Use SQLite for state |
| Q1 | Should we support remote beads? |

### 1 Execution Steps {#execution-steps}

#### Step 1: Lay the foundation {#step-1}

**Tasks:**
- [x] scaffold the module
- [ ] wire the config loader

**Tests:**
- [ ] go vet passes

##### Step 1.1: Sub-step of foundation {#step-1-1}

**Depends On:** #step-1

**Checkpoints:**
- [ ] sub-step checkpoint reviewed

#### Step 2: Wire the second half {#step-2}

**Depends On:** #step-1, #step-1

**Tasks:**
- [ ] do the second thing
`

func TestParseSamplePlanProducesExpectedStructure(t *testing.T) {
	p, err := Parse(samplePlan)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if p.PhaseTitle != "Build the widget" {
		t.Errorf("PhaseTitle = %q", p.PhaseTitle)
	}
	if p.Metadata.Owner != "alice" || p.Metadata.Status != StatusActive || p.Metadata.TargetBranch != "main" {
		t.Errorf("Metadata = %+v", p.Metadata)
	}
	if got := p.Metadata.Unrecognized["Custom Field"]; got != "something" {
		t.Errorf("Unrecognized[Custom Field] = %q, want %q", got, "something")
	}

	if len(p.Decisions) != 2 || p.Decisions[0].ID != "D1" || p.Decisions[1].ID != "Q1" {
		t.Fatalf("Decisions = %+v", p.Decisions)
	}

	if len(p.Steps) != 2 {
		t.Fatalf("len(Steps) = %d, want 2", len(p.Steps))
	}

	step1 := p.Steps[0]
	if step1.Anchor != "step-1" || len(step1.Tasks) != 2 || len(step1.Tests) != 1 {
		t.Fatalf("step1 = %+v", step1)
	}
	if !step1.Tasks[0].Checked || step1.Tasks[1].Checked {
		t.Fatalf("step1 task checked states = %+v", step1.Tasks)
	}

	if len(step1.Substeps) != 1 {
		t.Fatalf("len(step1.Substeps) = %d, want 1", len(step1.Substeps))
	}
	sub := step1.Substeps[0]
	if sub.Anchor != "step-1-1" || sub.Parent != step1 {
		t.Fatalf("substep = %+v", sub)
	}
	if len(sub.DependsOn) != 1 || sub.DependsOn[0] != "step-1" {
		t.Fatalf("substep.DependsOn = %v", sub.DependsOn)
	}

	step2 := p.Steps[1]
	if len(step2.DependsOn) != 1 || step2.DependsOn[0] != "step-1" {
		t.Fatalf("step2.DependsOn = %v, want deduplicated [step-1]", step2.DependsOn)
	}
}

func TestParseMissingPhaseHeadingIsAParseError(t *testing.T) {
	_, err := Parse("just some text\nwith no phase heading\n")
	if err == nil {
		t.Fatal("expected a ParseError")
	}
	if _, ok := err.(*ParseError); !ok {
		t.Fatalf("err = %T, want *ParseError", err)
	}
}

func TestParseDuplicateAnchorRecordsDiagnosticNotError(t *testing.T) {
	text := `## Phase 1: Title {#dup}

### 1 Execution Steps {#execution-steps}

#### Step 1: First {#dup}
`
	p, err := Parse(text)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	found := false
	for _, d := range p.Diagnostics {
		if d.Code == "P01" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a P01 diagnostic for duplicate anchor, got %+v", p.Diagnostics)
	}
}

func TestFindByAnchorAndStepsAndSubsteps(t *testing.T) {
	p, err := Parse(samplePlan)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if s := p.FindByAnchor("step-1-1"); s == nil || s.Title != "Sub-step of foundation" {
		t.Fatalf("FindByAnchor(step-1-1) = %+v", s)
	}
	if p.FindByAnchor("does-not-exist") != nil {
		t.Fatal("expected nil for unknown anchor")
	}

	flat := p.StepsAndSubsteps()
	if len(flat) != 3 {
		t.Fatalf("len(StepsAndSubsteps()) = %d, want 3 (2 steps + 1 substep)", len(flat))
	}
}
