package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"blackfong-core/app/clients"
	"blackfong-core/app/domains"
	"blackfong-core/app/observability"
	"blackfong-core/app/utils"

	"go.uber.org/zap"
)

const (
	defaultNodeLimit = 200
	maxNodeLimit     = 1000
	maxNodeName      = 128
	maxNodeAddress   = 64

	// SQLite reads a negative LIMIT as unbounded
	allRows = -1
)

// RegisterInput carries a node registration
type RegisterInput struct {
	Name         string
	Address      string
	PublicKey    json.RawMessage
	Capabilities json.RawMessage
}

// HeartbeatInput carries the optional fields of a heartbeat
type HeartbeatInput struct {
	Version     *string
	Load        json.RawMessage
	StatusFlags json.RawMessage
	LastCommand *string
}

// NodeView is a node with its staleness at listing time
type NodeView struct {
	domains.Node
	Stale bool `json:"stale"`
}

// RegistryService handles node registry operations
type RegistryService struct {
	store          clients.NodeStore
	events         Recorder
	staleThreshold time.Duration
	metrics        *observability.Metrics
	logger         *zap.Logger
	now            func() time.Time
}

// NewRegistryService creates a new registry service
func NewRegistryService(store clients.NodeStore, events Recorder, staleThreshold time.Duration, metrics *observability.Metrics, logger *zap.Logger) *RegistryService {
	return &RegistryService{
		store:          store,
		events:         events,
		staleThreshold: staleThreshold,
		metrics:        metrics,
		logger:         logger,
		now:            time.Now,
	}
}

// StaleThreshold returns how long a node may stay silent before it is stale
func (s *RegistryService) StaleThreshold() time.Duration {
	return s.staleThreshold
}

// Register creates the node or refreshes the existing node with the same name.
// A node-token requester may only register its own name.
func (s *RegistryService) Register(ctx context.Context, in RegisterInput, requester domains.Requester) (*domains.Node, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > maxNodeName {
		return nil, fmt.Errorf("%w: node name must be 1-%d characters", domains.ErrInvalidArgument, maxNodeName)
	}
	address := strings.TrimSpace(in.Address)
	if address == "" {
		address = "unknown"
	}
	if len(address) > maxNodeAddress {
		return nil, fmt.Errorf("%w: node address longer than %d characters", domains.ErrInvalidArgument, maxNodeAddress)
	}

	if bound, isNode := requester.NodeName(); isNode && bound != name {
		return nil, fmt.Errorf("%w: node token for %s cannot register %s", domains.ErrPolicyDenied, bound, name)
	}

	publicKey, err := utils.CanonicalPayload(in.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("public_key: %w", err)
	}
	capabilities, err := utils.CanonicalPayload(in.Capabilities)
	if err != nil {
		return nil, fmt.Errorf("capabilities: %w", err)
	}

	node, err := s.store.UpsertNode(ctx, domains.NodeUpsert{
		Name:         name,
		Address:      address,
		SeenAt:       s.now().UTC(),
		PublicKey:    publicKey,
		Capabilities: capabilities,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register node %s: %w", name, err)
	}

	s.metrics.NodeRegistrationsTotal.Inc()
	s.logger.Info("node registered",
		zap.Int64("node_id", node.ID),
		zap.String("name", node.Name),
		zap.String("requested_by", requester.String()),
	)
	if err := audit(ctx, s.events, EventInput{
		Severity:  domains.SeverityInfo,
		Source:    domains.SourceNode,
		EventType: "node.register",
		Message:   fmt.Sprintf("node register: %s (%s)", node.Name, node.Address),
	}); err != nil {
		return node, err
	}
	return node, nil
}

// Heartbeat refreshes last_seen of an existing node. Unknown ids return
// domains.ErrNodeNotFound and change nothing. A node-token requester may only
// heartbeat its own node.
func (s *RegistryService) Heartbeat(ctx context.Context, id int64, in HeartbeatInput, requester domains.Requester) (*domains.Node, error) {
	load, err := utils.CanonicalPayload(in.Load)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	flags, err := utils.CanonicalPayload(in.StatusFlags)
	if err != nil {
		return nil, fmt.Errorf("status_flags: %w", err)
	}

	if bound, isNode := requester.NodeName(); isNode {
		current, err := s.store.GetNode(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("failed to get node %d: %w", id, err)
		}
		if current == nil {
			return nil, fmt.Errorf("node %d: %w", id, domains.ErrNodeNotFound)
		}
		if current.Name != bound {
			return nil, fmt.Errorf("%w: node token for %s cannot heartbeat node %d", domains.ErrPolicyDenied, bound, id)
		}
	}

	node, err := s.store.TouchNode(ctx, id, domains.NodeBeat{
		SeenAt:      s.now().UTC(),
		Version:     in.Version,
		Load:        load,
		StatusFlags: flags,
		LastCommand: in.LastCommand,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record heartbeat for node %d: %w", id, err)
	}

	s.metrics.NodeHeartbeatsTotal.Inc()
	s.logger.Debug("node heartbeat",
		zap.Int64("node_id", node.ID),
		zap.String("requested_by", requester.String()),
	)
	if err := audit(ctx, s.events, EventInput{
		Severity:  domains.SeverityInfo,
		Source:    domains.SourceNode,
		EventType: "node.heartbeat",
		Message:   fmt.Sprintf("node heartbeat: %s (%s)", node.Name, node.Address),
	}); err != nil {
		return node, err
	}
	return node, nil
}

// List returns nodes by last_seen, most recent first, each flagged stale or not
func (s *RegistryService) List(ctx context.Context, limit int) ([]NodeView, error) {
	nodes, err := s.store.ListNodes(ctx, utils.ClampLimit(limit, defaultNodeLimit, maxNodeLimit))
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	now := s.now().UTC()
	views := make([]NodeView, 0, len(nodes))
	for i := range nodes {
		views = append(views, NodeView{Node: nodes[i], Stale: domains.IsStale(&nodes[i], now, s.staleThreshold)})
	}
	return views, nil
}

// CountStale counts every registered node that is stale at now
func (s *RegistryService) CountStale(ctx context.Context, now time.Time) (int, error) {
	nodes, err := s.store.ListNodes(ctx, allRows)
	if err != nil {
		return 0, fmt.Errorf("failed to list nodes: %w", err)
	}

	stale := 0
	for i := range nodes {
		if domains.IsStale(&nodes[i], now, s.staleThreshold) {
			stale++
		}
	}
	return stale, nil
}
