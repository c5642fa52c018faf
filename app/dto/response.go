package dto

import (
	"blackfong-core/app/domains"
)

// RegisterResponse represents registration response. Token is set only when
// node tokens are enabled.
type RegisterResponse struct {
	*domains.Node
	Token     string `json:"token,omitempty"`
	ExpiresIn int64  `json:"expires_in,omitempty"`
}

// AllowedCommandsResponse lists the allow-listed command names
type AllowedCommandsResponse struct {
	Allowed []string `json:"allowed"`
}

// BackupResponse represents the outcome of an on-demand backup
type BackupResponse struct {
	Skipped     bool                    `json:"skipped"`
	Artifact    *domains.BackupArtifact `json:"artifact,omitempty"`
	Pruned      []string                `json:"pruned"`
	PruneErrors []string                `json:"prune_errors,omitempty"`
}

// ConfigResponse is the read-only, redacted view of the running config
type ConfigResponse struct {
	API      APIConfigView      `json:"api"`
	Paths    PathsConfigView    `json:"paths"`
	Security SecurityConfigView `json:"security"`
	Fleet    FleetConfigView    `json:"fleet"`
	Backups  BackupsConfigView  `json:"backups"`
	Commands CommandsConfigView `json:"commands"`
}

// APIConfigView is the listen address
type APIConfigView struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// PathsConfigView lists filesystem locations
type PathsConfigView struct {
	BaseDir   string `json:"base_dir"`
	DataDir   string `json:"data_dir"`
	DBPath    string `json:"db_path"`
	LogDir    string `json:"log_dir"`
	BackupDir string `json:"backup_dir"`
}

// SecurityConfigView reports which auth schemes are enabled, never their secrets
type SecurityConfigView struct {
	TokenEnabled        bool     `json:"token_enabled"`
	JWTEnabled          bool     `json:"jwt_enabled"`
	AllowedSystemdUnits []string `json:"allowed_systemd_units"`
}

// FleetConfigView holds node liveness settings
type FleetConfigView struct {
	NodeStaleSeconds int64 `json:"node_stale_seconds"`
}

// BackupsConfigView holds rotation settings
type BackupsConfigView struct {
	KeepDays        int   `json:"keep_days"`
	IntervalSeconds int64 `json:"interval_seconds"`
}

// CommandsConfigView holds ledger settings
type CommandsConfigView struct {
	Allowed        []string `json:"allowed"`
	TimeoutSeconds int64    `json:"timeout_seconds"`
	Concurrency    int      `json:"concurrency"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}
