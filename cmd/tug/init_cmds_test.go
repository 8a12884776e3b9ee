package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/tugtool/tug/internal/cliutil"
	"github.com/tugtool/tug/internal/config"
	"github.com/tugtool/tug/internal/project"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	return &app{
		ctx:    context.Background(),
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
		cfg:    config.Default(),
		proj:   &project.Project{},
	}
}

func TestCmdInitCreatesSkeletonFiles(t *testing.T) {
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	defer os.Chdir(oldWd)
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}

	a := newTestApp(t)
	if code := cmdInit(a, nil); code != 0 {
		t.Fatalf("cmdInit exit code = %d, want 0", code)
	}

	for _, name := range []string{"tugplan-skeleton.md", "config.toml", "tugplan-implementation-log.md"} {
		path := filepath.Join(dir, project.MarkerDir, name)
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s to exist: %v", path, err)
		}
	}
}

func TestCmdInitIsIdempotentWithoutForce(t *testing.T) {
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	defer os.Chdir(oldWd)
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}

	a := newTestApp(t)
	if code := cmdInit(a, nil); code != 0 {
		t.Fatalf("first cmdInit exit code = %d, want 0", code)
	}

	customPath := filepath.Join(dir, project.MarkerDir, "config.toml")
	if err := os.WriteFile(customPath, []byte("# customized\n"), 0o644); err != nil {
		t.Fatalf("write customized config: %v", err)
	}

	if code := cmdInit(a, nil); code != 0 {
		t.Fatalf("second cmdInit exit code = %d, want 0", code)
	}

	content, err := os.ReadFile(customPath)
	if err != nil {
		t.Fatalf("read config.toml: %v", err)
	}
	if string(content) != "# customized\n" {
		t.Fatalf("expected idempotent init to leave existing config.toml untouched, got %q", string(content))
	}
}

func TestCmdInitCheckReportsNotInitialized(t *testing.T) {
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	defer os.Chdir(oldWd)
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}

	a := newTestApp(t)
	code := cmdInit(a, []string{"-check"})
	if code != cliutil.ExitNotInitialized {
		t.Fatalf("exit code = %d, want ExitNotInitialized", code)
	}
}

func TestCmdInitForceRemovesExistingDir(t *testing.T) {
	dir := t.TempDir()
	oldWd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	defer os.Chdir(oldWd)
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}

	a := newTestApp(t)
	if code := cmdInit(a, nil); code != 0 {
		t.Fatalf("first cmdInit exit code = %d, want 0", code)
	}
	sentinel := filepath.Join(dir, project.MarkerDir, "config.toml")
	if err := os.WriteFile(sentinel, []byte("# customized\n"), 0o644); err != nil {
		t.Fatalf("write customized config: %v", err)
	}

	if code := cmdInit(a, []string{"-force"}); code != 0 {
		t.Fatalf("forced cmdInit exit code = %d, want 0", code)
	}

	content, err := os.ReadFile(sentinel)
	if err != nil {
		t.Fatalf("read config.toml: %v", err)
	}
	if string(content) == "# customized\n" {
		t.Fatalf("expected -force to recreate config.toml from scratch")
	}
}
