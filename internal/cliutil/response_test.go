package cliutil

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

type sampleData struct {
	BeadID string `json:"bead_id"`
}

func TestOKEnvelopeShape(t *testing.T) {
	resp := OK("beads close", sampleData{BeadID: "bd-1"})
	if resp.Status != "ok" {
		t.Fatalf("expected status ok, got %q", resp.Status)
	}
	if resp.Schema != SchemaVersion {
		t.Fatalf("expected schema %q, got %q", SchemaVersion, resp.Schema)
	}
	if resp.Command != "beads close" {
		t.Fatalf("unexpected command: %q", resp.Command)
	}
	if len(resp.Issues) != 0 {
		t.Fatalf("expected no issues on success, got %+v", resp.Issues)
	}
}

func TestErrorEnvelopeCarriesIssues(t *testing.T) {
	issue := ErrIssue("E013", "beads not initialized")
	resp := Error("beads close", sampleData{}, []Issue{issue})

	if resp.Status != "error" {
		t.Fatalf("expected status error, got %q", resp.Status)
	}
	if len(resp.Issues) != 1 || resp.Issues[0].Code != "E013" {
		t.Fatalf("expected one E013 issue, got %+v", resp.Issues)
	}
}

func TestWriteJSONStatusFieldOrdersFirst(t *testing.T) {
	var buf bytes.Buffer
	resp := OK("status", sampleData{BeadID: "bd-2"})
	if err := WriteJSON(&buf, resp); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	if !strings.HasPrefix(strings.TrimSpace(buf.String()), `{
  "status"`) {
		t.Fatalf("expected status field first, got %s", buf.String())
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid json: %v", err)
	}
	if decoded["status"] != "ok" {
		t.Fatalf("expected decoded status ok, got %v", decoded["status"])
	}
}

func TestErrIssueDefaultsToErrorSeverity(t *testing.T) {
	issue := ErrIssue("E002", "plan not found")
	if issue.Severity != "error" {
		t.Fatalf("expected error severity, got %q", issue.Severity)
	}
}
