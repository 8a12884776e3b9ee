package state

import "time"

// StepStatus enumerates the step lifecycle (spec §3.3).
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepClaimed    StepStatus = "claimed"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
)

// ChecklistStatus enumerates checklist_item.status.
type ChecklistStatus string

const (
	ItemOpen      ChecklistStatus = "open"
	ItemCompleted ChecklistStatus = "completed"
	ItemDeferred  ChecklistStatus = "deferred"
)

// DashStatus enumerates dash.status.
type DashStatus string

const (
	DashActive   DashStatus = "active"
	DashJoined   DashStatus = "joined"
	DashReleased DashStatus = "released"
)

// Step is a persisted row from the step table.
type Step struct {
	PlanPath        string
	Anchor          string
	Index           int
	ParentAnchor    string
	Title           string
	Number          string
	Status          StepStatus
	ClaimedBy       string
	ClaimedAt       *time.Time
	LeaseExpiresAt  *time.Time
	StartedAt       *time.Time
	CompletedAt     *time.Time
	CommitHash      string
	CompleteReason  string
}

// ChecklistItemRow is a persisted row from the checklist_item table.
type ChecklistItemRow struct {
	PlanPath   string
	StepAnchor string
	Kind       string
	Ordinal    int
	Text       string
	Status     ChecklistStatus
	Reason     string
}

// Artifact is a persisted breadcrumb row.
type Artifact struct {
	ID         int64
	PlanPath   string
	StepAnchor string
	Kind       string
	Summary    string
	Worktree   string
	CreatedAt  time.Time
}

// Dash is a persisted row from the dash table.
type Dash struct {
	Name        string
	Description string
	Branch      string
	Worktree    string
	BaseBranch  string
	Status      DashStatus
	Incarnation int
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DashRound is a persisted row from the dash_round table.
type DashRound struct {
	ID            int64
	DashName      string
	Incarnation   int
	Instruction   string
	Summary       string
	FilesCreated  []string
	FilesModified []string
	CommitHash    string
	StartedAt     time.Time
}

// DashCreateResult is the outcome of CreateDash.
type DashCreateResult struct {
	Dash    Dash
	Created bool
}

// --- Closed sum-type results (spec §9 Design Notes: "prefer pattern
// matching to status strings"). Each *Result interface is sealed to the
// variants declared alongside it; callers switch on the concrete type. ---

// InitResult is the outcome of InitPlan.
type InitResult struct {
	AlreadyInitialized bool
	StepCount          int
	SubstepCount       int
	DependencyCount    int
	ChecklistCount     int
}

// ClaimResult is the sealed result of ClaimStep.
type ClaimResult interface{ isClaimResult() }

// Claimed means a step was claimed (possibly reclaimed from an expired lease).
type Claimed struct {
	Anchor         string
	ClaimedBy      string
	LeaseExpiresAt time.Time
	Reclaimed      bool
}

func (Claimed) isClaimResult() {}

// NoReadySteps means no step is currently eligible to claim.
type NoReadySteps struct {
	Blocked      []string
	AllCompleted bool
}

func (NoReadySteps) isClaimResult() {}

// AllCompleted means every step in the plan is completed.
type AllCompleted struct{}

func (AllCompleted) isClaimResult() {}

// CompleteResult is the outcome of CompleteStep.
type CompleteResult struct {
	Completed         bool
	Forced            bool
	AllStepsCompleted bool
}

// ReadyProjection is the read-only result of ReadySteps.
type ReadyProjection struct {
	Ready         []string
	Blocked       []string
	Completed     []string
	ExpiredClaim  []string
}

// PlanState is the hierarchical read-only view returned by ShowPlan.
type PlanState struct {
	PlanPath   string
	PlanHash   string
	PhaseTitle string
	Status     string
	InitAt     time.Time
	Steps      []StepView
	Progress   ProgressCounts
}

// StepView nests a step's checklist items for display.
type StepView struct {
	Step        Step
	Checklist   []ChecklistItemRow
	Substeps    []StepView
}

// ProgressCounts aggregates step completion.
type ProgressCounts struct {
	Total     int
	Completed int
	Claimed   int
	Pending   int
}

// ReconcileResult is the outcome of Reconcile.
type ReconcileResult struct {
	ReconciledCount   int
	SkippedCount      int
	SkippedMismatches []ReconcileMismatch
}

// ReconcileMismatch records a trailer entry whose commit hash disagreed
// with the already-stored one and was not forced.
type ReconcileMismatch struct {
	Anchor       string
	StoredHash   string
	IncomingHash string
}

// TrailerEntry is one {step_anchor, plan_path, commit_hash} triple
// extracted from git history (spec §4.7).
type TrailerEntry struct {
	StepAnchor string
	PlanPath   string
	CommitHash string
}
