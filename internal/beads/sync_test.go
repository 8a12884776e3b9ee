package beads

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tugtool/tug/internal/plan"
)

func writeFakeBD(t *testing.T, script string) (beadsDir, logPath string) {
	t.Helper()
	projectDir := t.TempDir()
	beadsDir = filepath.Join(projectDir, ".beads")
	if err := os.MkdirAll(beadsDir, 0o755); err != nil {
		t.Fatalf("mkdir beads dir: %v", err)
	}
	logPath = filepath.Join(projectDir, "args.log")

	fakeBin := t.TempDir()
	bdPath := filepath.Join(fakeBin, "bd")
	if err := os.WriteFile(bdPath, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake bd: %v", err)
	}
	t.Setenv("BD_ARGS_LOG", logPath)
	t.Setenv("PATH", fakeBin+":"+os.Getenv("PATH"))
	return beadsDir, logPath
}

func samplePlan() *plan.Plan {
	step1 := &plan.Step{
		Number: "1", Title: "Build parser", Anchor: "build-parser",
		Tasks: []plan.ChecklistItem{{Text: "write lexer"}},
	}
	step2 := &plan.Step{
		Number: "2", Title: "Wire validator", Anchor: "wire-validator",
		DependsOn: []string{"build-parser"},
		Tests:     []plan.ChecklistItem{{Text: "invalid plan rejected"}},
	}
	return &plan.Plan{
		PhaseTitle: "Ship the orchestrator",
		Decisions:  []plan.Decision{{ID: "D1", Title: "Use sqlite for state"}},
		Steps:      []*plan.Step{step1, step2},
	}
}

func TestSyncPlanStepsCreatesRootAndStepBeads(t *testing.T) {
	script := "#!/bin/sh\n" +
		"echo \"$@\" >> \"$BD_ARGS_LOG\"\n" +
		"case \"$*\" in\n" +
		"  list*) echo '[]' ;;\n" +
		"  create*) echo \"bd-$(date +%N 2>/dev/null || echo 1)-$$\" ;;\n" +
		"  \"dep list\"*) echo '[]' ;;\n" +
		"  *) echo ok ;;\n" +
		"esac\n"
	beadsDir, logPath := writeFakeBD(t, script)

	result, err := SyncPlanSteps(context.Background(), beadsDir, samplePlan(), SyncOptions{})
	if err != nil {
		t.Fatalf("SyncPlanSteps failed: %v", err)
	}
	if result.RootBeadID == "" {
		t.Fatal("expected a root bead id")
	}
	if result.StepsSynced != 2 {
		t.Fatalf("expected 2 steps synced, got %d", result.StepsSynced)
	}
	if result.AnchorToBead["build-parser"] == "" || result.AnchorToBead["wire-validator"] == "" {
		t.Fatalf("expected both anchors mapped, got %+v", result.AnchorToBead)
	}

	args, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read args log: %v", err)
	}
	got := string(args)
	if !strings.Contains(got, "create --title") {
		t.Fatalf("expected bead creation calls, got %q", got)
	}
	if !strings.Contains(got, "dep add") {
		t.Fatalf("expected a dependency edge to be added, got %q", got)
	}
}

func TestSyncPlanStepsReusesExistingBeadByTitle(t *testing.T) {
	script := "#!/bin/sh\n" +
		"echo \"$@\" >> \"$BD_ARGS_LOG\"\n" +
		"case \"$*\" in\n" +
		"  list*) echo '[{\"id\":\"bd-root\",\"title\":\"Ship the orchestrator\",\"status\":\"open\",\"issue_type\":\"epic\"}]' ;;\n" +
		"  create*) echo 'bd-new' ;;\n" +
		"  *) echo ok ;;\n" +
		"esac\n"
	beadsDir, logPath := writeFakeBD(t, script)

	p := &plan.Plan{PhaseTitle: "Ship the orchestrator"}
	result, err := SyncPlanSteps(context.Background(), beadsDir, p, SyncOptions{})
	if err != nil {
		t.Fatalf("SyncPlanSteps failed: %v", err)
	}
	if result.RootBeadID != "bd-root" {
		t.Fatalf("expected reused root bead id, got %q", result.RootBeadID)
	}

	args, _ := os.ReadFile(logPath)
	if strings.Contains(string(args), "create --title \"Ship the orchestrator\"") {
		t.Fatalf("expected no create call for an already-existing root bead, got %q", args)
	}
}

func TestSyncPlanStepsDryRunMakesNoCreateCalls(t *testing.T) {
	script := "#!/bin/sh\n" +
		"echo \"$@\" >> \"$BD_ARGS_LOG\"\n" +
		"echo '[]'\n"
	beadsDir, logPath := writeFakeBD(t, script)

	result, err := SyncPlanSteps(context.Background(), beadsDir, samplePlan(), SyncOptions{DryRun: true})
	if err != nil {
		t.Fatalf("SyncPlanSteps dry run failed: %v", err)
	}
	if result.RootBeadID != "bd-dryrun-root" {
		t.Fatalf("expected dry-run placeholder root id, got %q", result.RootBeadID)
	}

	args, _ := os.ReadFile(logPath)
	if strings.Contains(string(args), "create") || strings.Contains(string(args), "dep add") {
		t.Fatalf("dry run should not call bd create or dep add, got %q", args)
	}
}

func TestResolveStepDesignExpandsDecisionReferences(t *testing.T) {
	p := &plan.Plan{Decisions: []plan.Decision{{ID: "D1", Title: "Use sqlite for state"}}}
	step := &plan.Step{References: "See [D1] and #other-step"}

	design := resolveStepDesign(step, p)
	if !strings.Contains(design, "Use sqlite for state") {
		t.Fatalf("expected decision title expanded, got %q", design)
	}
	if !strings.Contains(design, "#other-step") {
		t.Fatalf("expected anchor reference preserved, got %q", design)
	}
}
