package domains

import "errors"

var (
	ErrNodeNotFound      = errors.New("node not found")
	ErrRunNotFound       = errors.New("command run not found")
	ErrPolicyDenied      = errors.New("not allowed by policy")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrIllegalTransition = errors.New("illegal command run transition")
)
