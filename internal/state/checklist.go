package state

import (
	"database/sql"
	"fmt"
	"strings"
)

// ChecklistSelector is the sealed argument to UpdateChecklist, matching
// spec §4.4.2's three update shapes: a single item, every item of one kind,
// or every item on the step.
type ChecklistSelector interface{ isChecklistSelector() }

// Individual selects one checklist item by kind and ordinal.
type Individual struct {
	Kind    string
	Ordinal int
}

func (Individual) isChecklistSelector() {}

// BulkByKind selects every item of one kind (tasks, tests, or checkpoints).
type BulkByKind struct {
	Kind string
}

func (BulkByKind) isChecklistSelector() {}

// AllItems selects every checklist item on the step.
type AllItems struct{}

func (AllItems) isChecklistSelector() {}

// UpdateChecklist marks the selected checklist item(s) for a step as
// completed, or reopens them. Per spec §4.4.2: `open` requires the caller
// to pass allowReopen (prevents accidental regression), and per-item
// `deferred` is only reachable through BatchUpdateChecklist, which carries
// a reason per entry.
func (s *Store) UpdateChecklist(planPath, anchor string, sel ChecklistSelector, status ChecklistStatus, reason string, allowReopen bool) (int, error) {
	if status == ItemDeferred {
		return 0, fmt.Errorf("state: update_checklist: %w", ErrDeferredRequiresBatch)
	}
	if status == ItemOpen && !allowReopen {
		return 0, fmt.Errorf("state: update_checklist: %w", ErrReopenNotAllowed)
	}

	var res sql.Result
	var err error
	switch sel := sel.(type) {
	case Individual:
		res, err = s.db.Exec(
			`UPDATE checklist_item SET status = ?, reason = ?
			 WHERE plan_path = ? AND step_anchor = ? AND kind = ? AND ordinal = ?`,
			status, reason, planPath, anchor, sel.Kind, sel.Ordinal,
		)
	case BulkByKind:
		res, err = s.db.Exec(
			`UPDATE checklist_item SET status = ?, reason = ?
			 WHERE plan_path = ? AND step_anchor = ? AND kind = ?`,
			status, reason, planPath, anchor, sel.Kind,
		)
	case AllItems:
		res, err = s.db.Exec(
			`UPDATE checklist_item SET status = ?, reason = ?
			 WHERE plan_path = ? AND step_anchor = ?`,
			status, reason, planPath, anchor,
		)
	default:
		return 0, fmt.Errorf("state: update_checklist: unknown selector %T", sel)
	}
	if err != nil {
		return 0, fmt.Errorf("state: update_checklist: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("state: update_checklist: %w", err)
	}
	if n == 0 {
		return 0, fmt.Errorf("state: update_checklist: %s#%s: %w", planPath, anchor, ErrNotFound)
	}
	return int(n), nil
}

// ChecklistUpdate is one entry of a stdin-driven batch, matching the
// original tool's BatchUpdateEntry (kind, ordinal, status, reason).
type ChecklistUpdate struct {
	Kind    string
	Ordinal int
	Status  ChecklistStatus
	Reason  string
}

// BatchUpdateChecklist applies a heterogeneous batch of per-item updates in
// a single transaction (spec §4.4.2's stdin-driven bulk mode). Each entry
// may defer an item (reason required on that entry) or reopen one (only
// when allowReopen is set). When completeRemaining is true, every checklist
// item on the step that is still open and not named by an entry is
// transitioned to completed. Returns the total number of rows modified.
func (s *Store) BatchUpdateChecklist(planPath, anchor string, entries []ChecklistUpdate, completeRemaining, allowReopen bool) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("state: batch_update_checklist: begin: %w", err)
	}
	defer tx.Rollback()

	total := 0
	for _, e := range entries {
		if e.Status == ItemDeferred && e.Reason == "" {
			return 0, fmt.Errorf("state: batch_update_checklist: %s/%d: %w", e.Kind, e.Ordinal, ErrReasonRequired)
		}
		if e.Status == ItemOpen && !allowReopen {
			return 0, fmt.Errorf("state: batch_update_checklist: %s/%d: %w", e.Kind, e.Ordinal, ErrReopenNotAllowed)
		}

		res, err := tx.Exec(
			`UPDATE checklist_item SET status = ?, reason = ?
			 WHERE plan_path = ? AND step_anchor = ? AND kind = ? AND ordinal = ?`,
			e.Status, e.Reason, planPath, anchor, e.Kind, e.Ordinal,
		)
		if err != nil {
			return 0, fmt.Errorf("state: batch_update_checklist: %s/%d: %w", e.Kind, e.Ordinal, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("state: batch_update_checklist: %w", err)
		}
		total += int(n)
	}

	if completeRemaining {
		var stmt strings.Builder
		stmt.WriteString(`UPDATE checklist_item SET status = 'completed', reason = ''
			 WHERE plan_path = ? AND step_anchor = ? AND status = 'open'`)
		args := []any{planPath, anchor}
		for _, e := range entries {
			stmt.WriteString(` AND NOT (kind = ? AND ordinal = ?)`)
			args = append(args, e.Kind, e.Ordinal)
		}

		res, err := tx.Exec(stmt.String(), args...)
		if err != nil {
			return 0, fmt.Errorf("state: batch_update_checklist: complete_remaining: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("state: batch_update_checklist: complete_remaining: %w", err)
		}
		total += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("state: batch_update_checklist: commit: %w", err)
	}
	return total, nil
}

// ChecklistItems returns every checklist row for a step, ordered by kind
// name (checkpoint, task, test) and then by ordinal.
func (s *Store) ChecklistItems(planPath, anchor string) ([]ChecklistItemRow, error) {
	rows, err := s.db.Query(
		`SELECT plan_path, step_anchor, kind, ordinal, text, status, reason
		 FROM checklist_item WHERE plan_path = ? AND step_anchor = ?
		 ORDER BY kind, ordinal`,
		planPath, anchor,
	)
	if err != nil {
		return nil, fmt.Errorf("state: checklist_items: %w", err)
	}
	defer rows.Close()

	var items []ChecklistItemRow
	for rows.Next() {
		var it ChecklistItemRow
		if err := rows.Scan(&it.PlanPath, &it.StepAnchor, &it.Kind, &it.Ordinal, &it.Text, &it.Status, &it.Reason); err != nil {
			return nil, fmt.Errorf("state: checklist_items: scan: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// incompleteChecklistCount reports how many of the step's checklist items,
// across all three kinds (tasks, tests, checkpoints), are neither completed
// nor deferred. Every owned item blocks completion per spec §4.4/§4.4.3, not
// just tests.
func incompleteChecklistCount(q queryer, planPath, anchor string) (int, error) {
	var n int
	err := q.QueryRow(
		`SELECT COUNT(*) FROM checklist_item
		 WHERE plan_path = ? AND step_anchor = ? AND status = 'open'`,
		planPath, anchor,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("state: incomplete checklist count: %w", err)
	}
	return n, nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
	Exec(query string, args ...any) (sql.Result, error)
}
