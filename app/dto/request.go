package dto

import "encoding/json"

// RegisterRequest represents node registration request. Address defaults to
// the client IP when omitted.
type RegisterRequest struct {
	Name         string          `json:"name" validate:"required,min=1,max=128"`
	Address      string          `json:"address,omitempty" validate:"max=64"`
	PublicKey    json.RawMessage `json:"public_key,omitempty"`
	Capabilities json.RawMessage `json:"capabilities,omitempty"`
}

// HeartbeatRequest represents heartbeat request. Every field is optional and
// the body itself may be empty.
type HeartbeatRequest struct {
	Version     *string         `json:"version,omitempty" validate:"omitempty,max=64"`
	Load        json.RawMessage `json:"load,omitempty"`
	StatusFlags json.RawMessage `json:"status_flags,omitempty"`
	LastCommand *string         `json:"last_command,omitempty" validate:"omitempty,max=256"`
}

// ListQuery represents the limit query parameter of list endpoints
type ListQuery struct {
	Limit int `form:"limit" json:"limit"`
}
