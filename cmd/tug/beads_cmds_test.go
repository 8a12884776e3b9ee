package main

import "testing"

func TestBeadsDirRejectsWhenDisabled(t *testing.T) {
	a := newTestApp(t)
	a.cfg.Beads.Enabled = false

	if _, err := a.beadsDir(); err == nil {
		t.Fatal("expected an error when beads tracking is disabled")
	}
}

func TestBeadsDirRequiresProjectRoot(t *testing.T) {
	a := newTestApp(t)
	a.cfg.Beads.Enabled = true

	if _, err := a.beadsDir(); err == nil {
		t.Fatal("expected an error with no project root located")
	}
}
