package domains

import "strings"

// Requester is the opaque identity of whoever issued a call. It is derived
// once at the HTTP boundary and passed explicitly to services.
type Requester string

// Anonymous is used when no identity could be established
const Anonymous Requester = "anonymous"

func (r Requester) String() string {
	return string(r)
}

// Ptr returns nil for an empty requester
func (r Requester) Ptr() *string {
	if r == "" {
		return nil
	}
	s := string(r)
	return &s
}

// NodeSubjectPrefix marks a requester authenticated with a node token
const NodeSubjectPrefix = "node:"

// NodeRequester returns the requester identity carried by name's node token
func NodeRequester(name string) Requester {
	return Requester(NodeSubjectPrefix + name)
}

// NodeName returns the node a node-token requester is bound to
func (r Requester) NodeName() (string, bool) {
	name, ok := strings.CutPrefix(string(r), NodeSubjectPrefix)
	return name, ok
}
