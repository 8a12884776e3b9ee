package state

// SchemaVersion is the current schema version recorded in the meta table.
// Versions below this are migrated forward silently on Open; versions
// above it abort with ErrSchemaVersion (spec §6.2).
const SchemaVersion = 3

// schema mirrors the teacher's internal/store/store.go convention: a single
// CREATE TABLE IF NOT EXISTS block applied unconditionally on Open, with
// migrate() handling anything that can't be expressed as an idempotent
// CREATE (new columns on an existing table, backfills).
const schema = `
CREATE TABLE IF NOT EXISTS meta (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	schema_version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS plan (
	plan_path TEXT PRIMARY KEY,
	plan_hash TEXT NOT NULL,
	phase_title TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'draft',
	init_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS step (
	plan_path TEXT NOT NULL,
	anchor TEXT NOT NULL,
	"index" INTEGER NOT NULL,
	parent_anchor TEXT NOT NULL DEFAULT '',
	title TEXT NOT NULL DEFAULT '',
	number TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	claimed_by TEXT NOT NULL DEFAULT '',
	claimed_at DATETIME,
	lease_expires_at DATETIME,
	started_at DATETIME,
	completed_at DATETIME,
	commit_hash TEXT NOT NULL DEFAULT '',
	complete_reason TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (plan_path, anchor),
	FOREIGN KEY (plan_path) REFERENCES plan(plan_path) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS dependency (
	plan_path TEXT NOT NULL,
	anchor TEXT NOT NULL,
	dep_anchor TEXT NOT NULL,
	PRIMARY KEY (plan_path, anchor, dep_anchor),
	FOREIGN KEY (plan_path, anchor) REFERENCES step(plan_path, anchor) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS checklist_item (
	plan_path TEXT NOT NULL,
	step_anchor TEXT NOT NULL,
	kind TEXT NOT NULL,
	ordinal INTEGER NOT NULL,
	text TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'open',
	reason TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (plan_path, step_anchor, kind, ordinal),
	FOREIGN KEY (plan_path, step_anchor) REFERENCES step(plan_path, anchor) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS artifact (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	plan_path TEXT NOT NULL,
	step_anchor TEXT NOT NULL,
	kind TEXT NOT NULL,
	summary TEXT NOT NULL DEFAULT '',
	worktree TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS dash (
	name TEXT PRIMARY KEY,
	description TEXT NOT NULL DEFAULT '',
	branch TEXT NOT NULL DEFAULT '',
	worktree TEXT NOT NULL DEFAULT '',
	base_branch TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'active',
	incarnation INTEGER NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS dash_round (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	dash_name TEXT NOT NULL,
	incarnation INTEGER NOT NULL DEFAULT 1,
	instruction TEXT NOT NULL DEFAULT '',
	summary TEXT NOT NULL DEFAULT '',
	files_created TEXT NOT NULL DEFAULT '[]',
	files_modified TEXT NOT NULL DEFAULT '[]',
	commit_hash TEXT NOT NULL DEFAULT '',
	started_at DATETIME NOT NULL DEFAULT (datetime('now')),
	FOREIGN KEY (dash_name) REFERENCES dash(name) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_step_plan_status ON step(plan_path, status);
CREATE INDEX IF NOT EXISTS idx_dependency_plan_anchor ON dependency(plan_path, anchor);
CREATE INDEX IF NOT EXISTS idx_checklist_plan_step ON checklist_item(plan_path, step_anchor);
CREATE INDEX IF NOT EXISTS idx_artifact_plan_step ON artifact(plan_path, step_anchor);
CREATE INDEX IF NOT EXISTS idx_dash_round_name ON dash_round(dash_name);
`

// migrate applies incremental schema migrations for existing databases,
// matching internal/store/store.go's migrate() shape: read the stored
// schema_version, no-op when it matches, fail above it, bump it when below.
func migrate(s *Store) error {
	var version int
	err := s.db.QueryRow(`SELECT schema_version FROM meta WHERE id = 1`).Scan(&version)
	if err != nil {
		// fresh database: seed meta and stop.
		_, execErr := s.db.Exec(`INSERT INTO meta (id, schema_version) VALUES (1, ?)`, SchemaVersion)
		if execErr != nil {
			return execErr
		}
		return nil
	}

	if version > SchemaVersion {
		return ErrSchemaVersion
	}
	if version == SchemaVersion {
		return nil
	}

	// No migrations exist yet between version 1..3; future columns land
	// here as additive ALTER TABLE statements guarded by version checks.
	_, err = s.db.Exec(`UPDATE meta SET schema_version = ? WHERE id = 1`, SchemaVersion)
	return err
}
