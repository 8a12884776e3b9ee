package state

import (
	"database/sql"
	"fmt"

	"github.com/tugtool/tug/internal/plan"
)

// InitPlan inserts steps, substeps, dependencies and checklist items for a
// freshly parsed plan in a single transaction. It is idempotent: if a plan
// row already exists with a matching plan_hash, no rows are mutated and
// InitResult.AlreadyInitialized is true (spec §4.4, §8.1.2).
func (s *Store) InitPlan(planPath string, p *plan.Plan, planHash string) (InitResult, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return InitResult{}, fmt.Errorf("state: init_plan: begin: %w", err)
	}
	defer tx.Rollback()

	var existingHash string
	err = tx.QueryRow(`SELECT plan_hash FROM plan WHERE plan_path = ?`, planPath).Scan(&existingHash)
	switch {
	case err == nil:
		if existingHash == planHash {
			return InitResult{AlreadyInitialized: true}, tx.Commit()
		}
		// Hash differs: re-initialise from scratch under the new content.
		if _, err := tx.Exec(`DELETE FROM plan WHERE plan_path = ?`, planPath); err != nil {
			return InitResult{}, fmt.Errorf("state: init_plan: clear stale plan: %w", err)
		}
	case err == sql.ErrNoRows:
		// fresh plan
	default:
		return InitResult{}, fmt.Errorf("state: init_plan: lookup plan: %w", err)
	}

	status := string(p.Metadata.Status)
	if _, err := tx.Exec(
		`INSERT INTO plan (plan_path, plan_hash, phase_title, status, init_at) VALUES (?, ?, ?, ?, datetime('now'))`,
		planPath, planHash, p.PhaseTitle, status,
	); err != nil {
		return InitResult{}, fmt.Errorf("state: init_plan: insert plan: %w", err)
	}

	result := InitResult{}
	index := 0
	for _, step := range p.Steps {
		if err := insertStep(tx, planPath, step, "", &index, &result); err != nil {
			return InitResult{}, err
		}
		for _, sub := range step.Substeps {
			if err := insertStep(tx, planPath, sub, step.Anchor, &index, &result); err != nil {
				return InitResult{}, err
			}
			result.SubstepCount++
		}
	}
	// StepCount should not double-count substeps.
	result.StepCount -= result.SubstepCount

	if err := tx.Commit(); err != nil {
		return InitResult{}, fmt.Errorf("state: init_plan: commit: %w", err)
	}
	return result, nil
}

func insertStep(tx *sql.Tx, planPath string, st *plan.Step, parentAnchor string, index *int, result *InitResult) error {
	_, err := tx.Exec(
		`INSERT INTO step (plan_path, anchor, "index", parent_anchor, title, number, status)
		 VALUES (?, ?, ?, ?, ?, ?, 'pending')`,
		planPath, st.Anchor, *index, parentAnchor, st.Title, st.Number,
	)
	if err != nil {
		return fmt.Errorf("state: init_plan: insert step %s: %w", st.Anchor, err)
	}
	*index++
	result.StepCount++

	for _, dep := range st.DependsOn {
		if _, err := tx.Exec(
			`INSERT INTO dependency (plan_path, anchor, dep_anchor) VALUES (?, ?, ?)`,
			planPath, st.Anchor, dep,
		); err != nil {
			return fmt.Errorf("state: init_plan: insert dependency %s->%s: %w", st.Anchor, dep, err)
		}
		result.DependencyCount++
	}

	for _, items := range [][]plan.ChecklistItem{st.Tasks, st.Tests, st.Checkpoints} {
		for _, item := range items {
			if _, err := tx.Exec(
				`INSERT INTO checklist_item (plan_path, step_anchor, kind, ordinal, text, status)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				planPath, st.Anchor, string(item.Kind), item.Ordinal, item.Text, initialChecklistStatus(item.Checked),
			); err != nil {
				return fmt.Errorf("state: init_plan: insert checklist item %s/%s#%d: %w", st.Anchor, item.Kind, item.Ordinal, err)
			}
			result.ChecklistCount++
		}
	}

	return nil
}

func initialChecklistStatus(checked bool) ChecklistStatus {
	if checked {
		return ItemCompleted
	}
	return ItemOpen
}
