package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"blackfong-core/app/domains"
)

const nodeColumns = `id, name, address, last_seen, public_key, capabilities, last_command, version, load_desc, status_flags`

// Keeps the later of the stored and incoming last_seen. A stored value that
// is not a timestamp is always replaced.
const laterLastSeen = `CASE
	WHEN nodes.last_seen NOT GLOB '[0-9][0-9][0-9][0-9]-*' THEN %[1]s
	ELSE MAX(nodes.last_seen, %[1]s)
END`

// UpsertNode registers a node or refreshes an existing one with the same name.
// Address and last_seen are always replaced; optional fields left nil keep
// their stored value. last_seen never moves backwards.
func (s *Store) UpsertNode(ctx context.Context, in domains.NodeUpsert) (*domains.Node, error) {
	query := `
		INSERT INTO nodes (name, address, last_seen, public_key, capabilities)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			address = excluded.address,
			last_seen = ` + fmt.Sprintf(laterLastSeen, "excluded.last_seen") + `,
			public_key = COALESCE(excluded.public_key, nodes.public_key),
			capabilities = COALESCE(excluded.capabilities, nodes.capabilities)
		RETURNING ` + nodeColumns

	row := s.db.QueryRowContext(ctx, query,
		in.Name, in.Address, formatTime(in.SeenAt), in.PublicKey, in.Capabilities,
	)
	return scanNode(row)
}

// TouchNode records a heartbeat. Returns domains.ErrNodeNotFound without
// modifying anything when id does not exist.
func (s *Store) TouchNode(ctx context.Context, id int64, beat domains.NodeBeat) (*domains.Node, error) {
	query := `
		UPDATE nodes SET
			last_seen = ` + fmt.Sprintf(laterLastSeen, "?1") + `,
			version = COALESCE(?2, version),
			load_desc = COALESCE(?3, load_desc),
			status_flags = COALESCE(?4, status_flags),
			last_command = COALESCE(?5, last_command)
		WHERE id = ?6
		RETURNING ` + nodeColumns

	row := s.db.QueryRowContext(ctx, query,
		formatTime(beat.SeenAt), beat.Version, beat.Load, beat.StatusFlags, beat.LastCommand, id,
	)
	node, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domains.ErrNodeNotFound
	}
	return node, err
}

// GetNode retrieves a node by ID
func (s *Store) GetNode(ctx context.Context, id int64) (*domains.Node, error) {
	query := `SELECT ` + nodeColumns + ` FROM nodes WHERE id = ?`
	node, err := scanNode(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return node, err
}

// ListNodes retrieves nodes ordered by last_seen, most recent first
func (s *Store) ListNodes(ctx context.Context, limit int) ([]domains.Node, error) {
	query := `SELECT ` + nodeColumns + ` FROM nodes ORDER BY last_seen DESC, id DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nodes := []domains.Node{}
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, *node)
	}
	return nodes, rows.Err()
}

func scanNode(row rowScanner) (*domains.Node, error) {
	var (
		node                                                     domains.Node
		lastSeen                                                 string
		publicKey, caps, lastCommand, version, load, statusFlags sql.NullString
	)
	err := row.Scan(
		&node.ID, &node.Name, &node.Address, &lastSeen,
		&publicKey, &caps, &lastCommand, &version, &load, &statusFlags,
	)
	if err != nil {
		return nil, err
	}
	node.LastSeen = parseTime(lastSeen)
	node.PublicKey = nullString(publicKey)
	node.Capabilities = nullString(caps)
	node.LastCommand = nullString(lastCommand)
	node.Version = nullString(version)
	node.Load = nullString(load)
	node.StatusFlags = nullString(statusFlags)
	return &node, nil
}
