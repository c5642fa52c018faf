package domains

import "time"

// Node represents a registered fleet node
type Node struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Address      string    `db:"address" json:"address"`
	LastSeen     time.Time `db:"last_seen" json:"last_seen"`
	PublicKey    *string   `db:"public_key" json:"public_key,omitempty"`
	Capabilities *string   `db:"capabilities" json:"capabilities,omitempty"`
	LastCommand  *string   `db:"last_command" json:"last_command,omitempty"`
	Version      *string   `db:"version" json:"version,omitempty"`
	Load         *string   `db:"load" json:"load,omitempty"`
	StatusFlags  *string   `db:"status_flags" json:"status_flags,omitempty"`
}

// IsStale reports whether the node has not been seen for longer than threshold.
// A zero LastSeen means the stored timestamp was missing or unreadable, and
// such a node is always stale.
func IsStale(node *Node, now time.Time, threshold time.Duration) bool {
	if node == nil || node.LastSeen.IsZero() {
		return true
	}
	return now.Sub(node.LastSeen) > threshold
}

// NodeUpsert carries the fields of a registration
type NodeUpsert struct {
	Name         string
	Address      string
	SeenAt       time.Time
	PublicKey    *string
	Capabilities *string
}

// NodeBeat carries the optional fields a heartbeat may update
type NodeBeat struct {
	SeenAt      time.Time
	Version     *string
	Load        *string
	StatusFlags *string
	LastCommand *string
}
