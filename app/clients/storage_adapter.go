package clients

import (
	"context"
	"time"

	"blackfong-core/app/domains"

	"github.com/google/uuid"
)

// NodeStore defines the storage operations of the node registry
type NodeStore interface {
	UpsertNode(ctx context.Context, in domains.NodeUpsert) (*domains.Node, error)
	TouchNode(ctx context.Context, id int64, beat domains.NodeBeat) (*domains.Node, error)
	GetNode(ctx context.Context, id int64) (*domains.Node, error)
	ListNodes(ctx context.Context, limit int) ([]domains.Node, error)
}

// RunStore defines the storage operations of the command ledger
type RunStore interface {
	CreateRun(ctx context.Context, run *domains.CommandRun) error
	UpdateRun(ctx context.Context, run *domains.CommandRun) error
	GetRun(ctx context.Context, id uuid.UUID) (*domains.CommandRun, error)
	ListRuns(ctx context.Context, limit int) ([]domains.CommandRun, error)
}

// EventStore defines the storage operations of the audit log
type EventStore interface {
	InsertEvent(ctx context.Context, entry *domains.EventLogEntry) error
	ListEvents(ctx context.Context, limit int) ([]domains.EventLogEntry, error)
	CountEventsSince(ctx context.Context, severity string, since time.Time) (int, error)
}

// StorageAdapter defines the interface for storage operations
type StorageAdapter interface {
	NodeStore
	RunStore
	EventStore
	Path() string
	Ping(ctx context.Context) error
	Close() error
}
