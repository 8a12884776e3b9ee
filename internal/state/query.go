package state

import (
	"database/sql"
	"fmt"

	"github.com/tugtool/tug/internal/planhash"
)

// ReadySteps projects every step in the plan into ready / blocked /
// completed / expired-claim buckets without mutating anything (spec §4.4,
// the read-only counterpart to ClaimStep's selection logic).
func (s *Store) ReadySteps(planPath string) (ReadyProjection, error) {
	now := planhash.NowUTC()
	rows, err := s.db.Query(
		`SELECT anchor, status, lease_expires_at FROM step WHERE plan_path = ? ORDER BY "index" ASC`,
		planPath,
	)
	if err != nil {
		return ReadyProjection{}, fmt.Errorf("state: ready_steps: %w", err)
	}
	defer rows.Close()

	var proj ReadyProjection
	for rows.Next() {
		var anchor, status string
		var leaseExpires sql.NullTime
		if err := rows.Scan(&anchor, &status, &leaseExpires); err != nil {
			return ReadyProjection{}, fmt.Errorf("state: ready_steps: scan: %w", err)
		}

		switch StepStatus(status) {
		case StepCompleted:
			proj.Completed = append(proj.Completed, anchor)
			continue
		case StepClaimed, StepInProgress:
			if leaseExpires.Valid && leaseExpires.Time.Before(now) {
				proj.ExpiredClaim = append(proj.ExpiredClaim, anchor)
			}
			continue
		}

		depsDone, err := dependenciesComplete(s.db, planPath, anchor)
		if err != nil {
			return ReadyProjection{}, err
		}
		if depsDone {
			proj.Ready = append(proj.Ready, anchor)
		} else {
			proj.Blocked = append(proj.Blocked, anchor)
		}
	}
	return proj, rows.Err()
}

func dependenciesComplete(q queryer, planPath, anchor string) (bool, error) {
	var n int
	err := q.QueryRow(
		`SELECT COUNT(*) FROM dependency d
		 JOIN step dep ON dep.plan_path = d.plan_path AND dep.anchor = d.dep_anchor
		 WHERE d.plan_path = ? AND d.anchor = ? AND dep.status != 'completed'`,
		planPath, anchor,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("state: dependencies complete: %w", err)
	}
	return n == 0, nil
}

// ShowPlan returns the full hierarchical state of a plan: every step (with
// its substeps nested under their parent), each step's checklist items, and
// aggregate progress counts (spec §4.4, §6.3).
func (s *Store) ShowPlan(planPath string) (PlanState, error) {
	var ps PlanState
	err := s.db.QueryRow(
		`SELECT plan_path, plan_hash, phase_title, status, init_at FROM plan WHERE plan_path = ?`,
		planPath,
	).Scan(&ps.PlanPath, &ps.PlanHash, &ps.PhaseTitle, &ps.Status, &ps.InitAt)
	if err == sql.ErrNoRows {
		return PlanState{}, fmt.Errorf("state: show_plan: %s: %w", planPath, ErrNotFound)
	}
	if err != nil {
		return PlanState{}, fmt.Errorf("state: show_plan: lookup plan: %w", err)
	}

	rows, err := s.db.Query(
		`SELECT plan_path, anchor, "index", parent_anchor, title, number, status, claimed_by,
		        claimed_at, lease_expires_at, started_at, completed_at, commit_hash, complete_reason
		 FROM step WHERE plan_path = ? ORDER BY "index" ASC`,
		planPath,
	)
	if err != nil {
		return PlanState{}, fmt.Errorf("state: show_plan: query steps: %w", err)
	}

	var all []Step
	for rows.Next() {
		var st Step
		if err := rows.Scan(&st.PlanPath, &st.Anchor, &st.Index, &st.ParentAnchor, &st.Title, &st.Number,
			&st.Status, &st.ClaimedBy, &st.ClaimedAt, &st.LeaseExpiresAt, &st.StartedAt, &st.CompletedAt,
			&st.CommitHash, &st.CompleteReason); err != nil {
			rows.Close()
			return PlanState{}, fmt.Errorf("state: show_plan: scan step: %w", err)
		}
		all = append(all, st)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return PlanState{}, err
	}

	views := make(map[string]*StepView, len(all))
	var top []*StepView
	for _, st := range all {
		checklist, err := s.ChecklistItems(planPath, st.Anchor)
		if err != nil {
			return PlanState{}, err
		}
		sv := &StepView{Step: st, Checklist: checklist}
		views[st.Anchor] = sv

		switch st.Status {
		case StepCompleted:
			ps.Progress.Completed++
		case StepClaimed, StepInProgress:
			ps.Progress.Claimed++
		case StepPending:
			ps.Progress.Pending++
		}
		ps.Progress.Total++

		if st.ParentAnchor == "" {
			top = append(top, sv)
		}
	}
	for _, st := range all {
		if st.ParentAnchor == "" {
			continue
		}
		if parent, ok := views[st.ParentAnchor]; ok {
			parent.Substeps = append(parent.Substeps, *views[st.Anchor])
		}
	}

	ps.Steps = make([]StepView, 0, len(top))
	for _, sv := range top {
		ps.Steps = append(ps.Steps, *sv)
	}
	return ps, nil
}
