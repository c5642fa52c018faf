package domains

// BackupArtifact describes the dated copy of the state store for one day
type BackupArtifact struct {
	Path    string `json:"path"`
	Stamp   string `json:"stamp"`
	Created bool   `json:"created"`
	Digest  string `json:"digest,omitempty"`
}

// BackupResult separates the primary outcome (today's artifact) from
// best-effort retention failures.
type BackupResult struct {
	Artifact    *BackupArtifact `json:"artifact"`
	Pruned      []string        `json:"pruned"`
	PruneErrors []error         `json:"-"`
}
