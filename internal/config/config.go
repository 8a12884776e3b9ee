// Package config loads and validates tug's project TOML configuration
// (tug.toml), in the teacher's BurntSushi/toml + custom Duration style.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration is a time.Duration that unmarshals from TOML strings like "60s" or "2h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Config is tug's project configuration (spec Open Question Resolutions #1,
// #3: plan resolution prefixes and lease/log-rotation defaults unified here
// instead of left as ad-hoc constants).
type Config struct {
	General General `toml:"general"`
	Git     Git     `toml:"git"`
	Beads   Beads   `toml:"beads"`
}

// General holds the project-wide defaults every command consults.
type General struct {
	// PlanDir is the directory plan files resolve against (default ".tug").
	PlanDir string `toml:"plan_dir"`
	// PlanPrefix is stripped/added when resolving a bare plan slug (default "plan-").
	PlanPrefix string `toml:"plan_prefix"`
	// StateDB is the sqlite file tracking step/dash state (default ".tugtool/state.db").
	StateDB string `toml:"state_db"`
	// LeaseDuration is how long a claimed step's lease lasts before it is
	// considered abandoned and reclaimable (default 2h).
	LeaseDuration Duration `toml:"lease_duration"`
	// LogRotateLines/LogRotateBytes hold the implementation log's rotation
	// thresholds (defaults 500 lines / 100KiB). commit.RotateLog does not
	// read them; it always rotates at 500 lines or 100KiB.
	LogRotateLines int `toml:"log_rotate_lines"`
	LogRotateBytes int `toml:"log_rotate_bytes"`
}

// Git holds the repository conventions the worktree/commit/dash layers use.
type Git struct {
	// BaseBranch overrides auto-detection (git.DefaultBranch) when set.
	BaseBranch string `toml:"base_branch"`
	// TugtreeDir is the directory under the repo root holding managed
	// worktrees (default ".tugtree").
	TugtreeDir string `toml:"tugtree_dir"`
}

// Beads configures the optional bd CLI bridge (internal/beads).
type Beads struct {
	Enabled       bool   `toml:"enabled"`
	BDPath        string `toml:"bd_path"`
	RootIssueType string `toml:"root_issue_type"`
}

// Clone returns a deep copy of cfg so callers can safely mutate the result.
func (cfg *Config) Clone() *Config {
	if cfg == nil {
		return nil
	}
	cloned := *cfg
	return &cloned
}

// Load reads and validates tug's project TOML configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	applyDefaults(&cfg)
	normalizePaths(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Reload reads and validates tug's project TOML configuration.
//
// This mirrors Load but is intentionally named to reflect runtime refresh paths.
func Reload(path string) (*Config, error) {
	return Load(path)
}

// Default returns the configuration tug uses when no tug.toml is present.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// LoadManager reads config from path and returns an RWMutex-backed thread-safe manager.
func LoadManager(path string) (ConfigManager, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path is required")
	}

	cfg, err := Reload(path)
	if err != nil {
		return nil, err
	}
	return NewRWMutexManager(cfg), nil
}

func applyDefaults(cfg *Config) {
	if cfg.General.PlanDir == "" {
		cfg.General.PlanDir = ".tug"
	}
	if cfg.General.PlanPrefix == "" {
		cfg.General.PlanPrefix = "plan-"
	}
	if cfg.General.StateDB == "" {
		cfg.General.StateDB = ".tugtool/state.db"
	}
	if cfg.General.LeaseDuration.Duration == 0 {
		cfg.General.LeaseDuration.Duration = 2 * time.Hour
	}
	if cfg.General.LogRotateLines == 0 {
		cfg.General.LogRotateLines = 500
	}
	if cfg.General.LogRotateBytes == 0 {
		cfg.General.LogRotateBytes = 100 * 1024
	}

	if cfg.Git.TugtreeDir == "" {
		cfg.Git.TugtreeDir = ".tugtree"
	}

	if cfg.Beads.BDPath == "" {
		cfg.Beads.BDPath = "bd"
	}
	if cfg.Beads.RootIssueType == "" {
		cfg.Beads.RootIssueType = "epic"
	}
}

// normalizePaths expands "~" and trims whitespace for configured filesystem paths.
func normalizePaths(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.General.PlanDir = ExpandHome(strings.TrimSpace(cfg.General.PlanDir))
	cfg.General.StateDB = ExpandHome(strings.TrimSpace(cfg.General.StateDB))
}

func validate(cfg *Config) error {
	if cfg.General.LeaseDuration.Duration <= 0 {
		return fmt.Errorf("general.lease_duration must be > 0")
	}
	if cfg.General.LogRotateLines <= 0 {
		return fmt.Errorf("general.log_rotate_lines must be > 0")
	}
	if cfg.General.LogRotateBytes <= 0 {
		return fmt.Errorf("general.log_rotate_bytes must be > 0")
	}
	if strings.TrimSpace(cfg.General.PlanDir) == "" {
		return fmt.Errorf("general.plan_dir must not be empty")
	}
	if strings.TrimSpace(cfg.Git.TugtreeDir) == "" {
		return fmt.Errorf("git.tugtree_dir must not be empty")
	}
	return nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if len(path) == 0 {
		return path
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
