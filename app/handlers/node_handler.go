package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"blackfong-core/app/domains"
	"blackfong-core/app/dto"
	"blackfong-core/app/services"
	"blackfong-core/app/utils"

	"github.com/gin-gonic/gin"
)

// NodeHandler handles node registry endpoints
type NodeHandler struct {
	registry   *services.RegistryService
	jwtService *services.JWTService
	tokenTTL   time.Duration
}

// NewNodeHandler creates a new node handler. jwtService may be nil, in which
// case registration returns no token.
func NewNodeHandler(registry *services.RegistryService, jwtService *services.JWTService, tokenTTL time.Duration) *NodeHandler {
	return &NodeHandler{
		registry:   registry,
		jwtService: jwtService,
		tokenTTL:   tokenTTL,
	}
}

// Register handles node registration
func (h *NodeHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation failed", map[string]string{"error": err.Error()})
		return
	}

	address := req.Address
	if address == "" {
		address = c.ClientIP()
	}

	node, err := h.registry.Register(c.Request.Context(), services.RegisterInput{
		Name:         req.Name,
		Address:      address,
		PublicKey:    req.PublicKey,
		Capabilities: req.Capabilities,
	}, GetRequester(c))
	if err != nil {
		respondServiceError(c, err, "failed to register node")
		return
	}

	resp := dto.RegisterResponse{Node: node}
	if h.jwtService != nil {
		token, err := h.jwtService.GenerateToken(domains.NodeRequester(node.Name).String())
		if err != nil {
			respondServiceError(c, err, "failed to generate token")
			return
		}
		resp.Token = token
		resp.ExpiresIn = int64(h.tokenTTL / time.Second)
	}

	respondJSON(c, http.StatusOK, resp)
}

// Heartbeat handles node heartbeat. The body is optional.
func (h *NodeHandler) Heartbeat(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid node id", nil)
		return
	}

	var req dto.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(c, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	if err := utils.ValidateStruct(&req); err != nil {
		respondError(c, http.StatusBadRequest, "validation failed", map[string]string{"error": err.Error()})
		return
	}

	node, err := h.registry.Heartbeat(c.Request.Context(), id, services.HeartbeatInput{
		Version:     req.Version,
		Load:        req.Load,
		StatusFlags: req.StatusFlags,
		LastCommand: req.LastCommand,
	}, GetRequester(c))
	if err != nil {
		respondServiceError(c, err, "failed to record heartbeat")
		return
	}

	respondJSON(c, http.StatusOK, node)
}

// ListNodes handles listing registered nodes with their staleness
func (h *NodeHandler) ListNodes(c *gin.Context) {
	limit, ok := bindLimit(c)
	if !ok {
		return
	}

	nodes, err := h.registry.List(c.Request.Context(), limit)
	if err != nil {
		respondServiceError(c, err, "failed to list nodes")
		return
	}

	respondJSON(c, http.StatusOK, nodes)
}
