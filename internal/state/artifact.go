package state

import "fmt"

// maxArtifactSummaryLen is the truncation threshold for artifact summaries
// (spec §4.4, keeps `tug show` output and the SQLite row bounded).
const maxArtifactSummaryLen = 500

// RecordArtifact stores a breadcrumb note against a step: a file written, a
// decision made, a command run. Summaries longer than 500 characters are
// truncated with an ellipsis.
func (s *Store) RecordArtifact(planPath, anchor, kind, summary, worktree string) (Artifact, error) {
	if len(summary) > maxArtifactSummaryLen {
		summary = summary[:maxArtifactSummaryLen-1] + "…"
	}

	res, err := s.db.Exec(
		`INSERT INTO artifact (plan_path, step_anchor, kind, summary, worktree) VALUES (?, ?, ?, ?, ?)`,
		planPath, anchor, kind, summary, worktree,
	)
	if err != nil {
		return Artifact{}, fmt.Errorf("state: record_artifact: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return Artifact{}, fmt.Errorf("state: record_artifact: %w", err)
	}

	var a Artifact
	err = s.db.QueryRow(
		`SELECT id, plan_path, step_anchor, kind, summary, worktree, created_at FROM artifact WHERE id = ?`,
		id,
	).Scan(&a.ID, &a.PlanPath, &a.StepAnchor, &a.Kind, &a.Summary, &a.Worktree, &a.CreatedAt)
	if err != nil {
		return Artifact{}, fmt.Errorf("state: record_artifact: reload: %w", err)
	}
	return a, nil
}

// Artifacts returns every artifact recorded against a step, oldest first.
func (s *Store) Artifacts(planPath, anchor string) ([]Artifact, error) {
	rows, err := s.db.Query(
		`SELECT id, plan_path, step_anchor, kind, summary, worktree, created_at
		 FROM artifact WHERE plan_path = ? AND step_anchor = ? ORDER BY id ASC`,
		planPath, anchor,
	)
	if err != nil {
		return nil, fmt.Errorf("state: artifacts: %w", err)
	}
	defer rows.Close()

	var out []Artifact
	for rows.Next() {
		var a Artifact
		if err := rows.Scan(&a.ID, &a.PlanPath, &a.StepAnchor, &a.Kind, &a.Summary, &a.Worktree, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("state: artifacts: scan: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
