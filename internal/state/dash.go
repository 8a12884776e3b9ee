package state

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// CreateDash inserts a new dash, or reactivates a joined/released one in
// place under the same name, bumping its incarnation counter so rounds
// recorded under a previous life don't get confused with the new one
// (spec §4.9, dash.rs's create_dash: "idempotent ... reuses names").
// An already-active dash is returned unchanged (created=false).
func (s *Store) CreateDash(name, description, branch, worktree, baseBranch string) (DashCreateResult, error) {
	existing, err := s.GetDash(name)
	if err != nil && err != ErrNotFound {
		return DashCreateResult{}, err
	}

	if err == nil && existing.Status == DashActive {
		return DashCreateResult{Dash: existing, Created: false}, nil
	}

	if err == nil {
		// Reactivate: same row, new incarnation.
		_, execErr := s.db.Exec(
			`UPDATE dash SET description = ?, branch = ?, worktree = ?, base_branch = ?,
			 status = 'active', incarnation = incarnation + 1, updated_at = datetime('now')
			 WHERE name = ?`,
			description, branch, worktree, baseBranch, name,
		)
		if execErr != nil {
			return DashCreateResult{}, fmt.Errorf("state: create_dash: reactivate: %w", execErr)
		}
		reactivated, getErr := s.GetDash(name)
		if getErr != nil {
			return DashCreateResult{}, getErr
		}
		return DashCreateResult{Dash: reactivated, Created: false}, nil
	}

	_, execErr := s.db.Exec(
		`INSERT INTO dash (name, description, branch, worktree, base_branch, status, incarnation)
		 VALUES (?, ?, ?, ?, ?, 'active', 1)`,
		name, description, branch, worktree, baseBranch,
	)
	if execErr != nil {
		return DashCreateResult{}, fmt.Errorf("state: create_dash: insert: %w", execErr)
	}

	created, getErr := s.GetDash(name)
	if getErr != nil {
		return DashCreateResult{}, getErr
	}
	return DashCreateResult{Dash: created, Created: true}, nil
}

// GetDash looks up a dash by name, returning ErrNotFound if it doesn't exist.
func (s *Store) GetDash(name string) (Dash, error) {
	var d Dash
	err := s.db.QueryRow(
		`SELECT name, description, branch, worktree, base_branch, status, incarnation, created_at, updated_at
		 FROM dash WHERE name = ?`,
		name,
	).Scan(&d.Name, &d.Description, &d.Branch, &d.Worktree, &d.BaseBranch, &d.Status, &d.Incarnation, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return Dash{}, fmt.Errorf("state: get_dash: %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return Dash{}, fmt.Errorf("state: get_dash: %w", err)
	}
	return d, nil
}

// DashListItem pairs a dash with its total round count across every
// incarnation, matching dash.rs's list_dashes(active_only) projection.
type DashListItem struct {
	Dash       Dash
	RoundCount int
}

// ListDashes returns every dash, optionally restricted to active ones,
// newest-updated first.
func (s *Store) ListDashes(activeOnly bool) ([]DashListItem, error) {
	query := `SELECT d.name, d.description, d.branch, d.worktree, d.base_branch, d.status,
	          d.incarnation, d.created_at, d.updated_at,
	          (SELECT COUNT(*) FROM dash_round r WHERE r.dash_name = d.name) AS round_count
	          FROM dash d`
	if activeOnly {
		query += ` WHERE d.status = 'active'`
	}
	query += ` ORDER BY d.updated_at DESC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("state: list_dashes: %w", err)
	}
	defer rows.Close()

	var items []DashListItem
	for rows.Next() {
		var it DashListItem
		d := &it.Dash
		if err := rows.Scan(&d.Name, &d.Description, &d.Branch, &d.Worktree, &d.BaseBranch,
			&d.Status, &d.Incarnation, &d.CreatedAt, &d.UpdatedAt, &it.RoundCount); err != nil {
			return nil, fmt.Errorf("state: list_dashes: scan: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// UpdateDashStatus transitions a dash to joined or released.
func (s *Store) UpdateDashStatus(name string, status DashStatus) error {
	res, err := s.db.Exec(
		`UPDATE dash SET status = ?, updated_at = datetime('now') WHERE name = ?`,
		status, name,
	)
	if err != nil {
		return fmt.Errorf("state: update_dash_status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("state: update_dash_status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("state: update_dash_status: %s: %w", name, ErrNotFound)
	}
	return nil
}

// RecordRound inserts a round for a dash's current incarnation. It is
// always called on `tug dash commit`, whether or not there were any git
// changes to commit (dash.rs: "Record round in state.db (always, per
// [D06])") — commitHash is empty when nothing was staged.
func (s *Store) RecordRound(name string, instruction, summary *string, filesCreated, filesModified []string, commitHash string) (int64, error) {
	dash, err := s.GetDash(name)
	if err != nil {
		return 0, err
	}

	createdJSON, err := marshalFileList(filesCreated)
	if err != nil {
		return 0, fmt.Errorf("state: record_round: %w", err)
	}
	modifiedJSON, err := marshalFileList(filesModified)
	if err != nil {
		return 0, fmt.Errorf("state: record_round: %w", err)
	}

	res, err := s.db.Exec(
		`INSERT INTO dash_round (dash_name, incarnation, instruction, summary, files_created, files_modified, commit_hash)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		name, dash.Incarnation, derefOr(instruction, ""), derefOr(summary, ""), createdJSON, modifiedJSON, commitHash,
	)
	if err != nil {
		return 0, fmt.Errorf("state: record_round: %w", err)
	}
	return res.LastInsertId()
}

// DashRounds returns a dash's rounds, oldest first, optionally restricted
// to its current incarnation (dash.rs: get_dash_rounds(name, current_only)).
func (s *Store) DashRounds(name string, currentIncarnationOnly bool) ([]DashRound, error) {
	dash, err := s.GetDash(name)
	if err != nil {
		return nil, err
	}

	query := `SELECT id, dash_name, incarnation, instruction, summary, files_created, files_modified, commit_hash, started_at
	          FROM dash_round WHERE dash_name = ?`
	args := []any{name}
	if currentIncarnationOnly {
		query += ` AND incarnation = ?`
		args = append(args, dash.Incarnation)
	}
	query += ` ORDER BY id ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("state: dash_rounds: %w", err)
	}
	defer rows.Close()

	var out []DashRound
	for rows.Next() {
		var r DashRound
		var instruction, summary, createdJSON, modifiedJSON string
		if err := rows.Scan(&r.ID, &r.DashName, &r.Incarnation, &instruction, &summary, &createdJSON, &modifiedJSON, &r.CommitHash, &r.StartedAt); err != nil {
			return nil, fmt.Errorf("state: dash_rounds: scan: %w", err)
		}
		r.Instruction = instruction
		r.Summary = summary
		if err := json.Unmarshal([]byte(createdJSON), &r.FilesCreated); err != nil {
			return nil, fmt.Errorf("state: dash_rounds: unmarshal files_created: %w", err)
		}
		if err := json.Unmarshal([]byte(modifiedJSON), &r.FilesModified); err != nil {
			return nil, fmt.Errorf("state: dash_rounds: unmarshal files_modified: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func marshalFileList(files []string) (string, error) {
	if files == nil {
		files = []string{}
	}
	b, err := json.Marshal(files)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func derefOr(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
