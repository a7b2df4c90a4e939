package ota

import "strings"

// NodeStatusKind classifies a status string reported by the gateway
type NodeStatusKind int

const (
	NodeStatusUnrecognized NodeStatusKind = iota
	NodeStatusPending
	NodeStatusDownloading
	NodeStatusCompleted
	NodeStatusFailed
)

// DefaultNodeStatus is assumed when a progress report carries no status
const DefaultNodeStatus = "downloading"

var knownNodeStatuses = map[string]NodeStatusKind{
	"pending":     NodeStatusPending,
	"downloading": NodeStatusDownloading,
	"completed":   NodeStatusCompleted,
	"failed":      NodeStatusFailed,
}

// NodeStatus is a per-node status as reported by the gateway. Statuses the
// server does not know are kept verbatim with kind NodeStatusUnrecognized.
type NodeStatus struct {
	Kind NodeStatusKind
	Raw  string
}

// ParseNodeStatus classifies raw. Known statuses are matched
// case-insensitively and stored in canonical lower case.
func ParseNodeStatus(raw string) NodeStatus {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		trimmed = DefaultNodeStatus
	}
	canonical := strings.ToLower(trimmed)
	if kind, ok := knownNodeStatuses[canonical]; ok {
		return NodeStatus{Kind: kind, Raw: canonical}
	}
	return NodeStatus{Kind: NodeStatusUnrecognized, Raw: trimmed}
}

// String returns the value persisted for this status
func (s NodeStatus) String() string {
	return s.Raw
}

// Terminal reports whether the node finished, successfully or not
func (s NodeStatus) Terminal() bool {
	return s.Kind == NodeStatusCompleted || s.Kind == NodeStatusFailed
}

// Recognized reports whether the status is one the server knows
func (s NodeStatus) Recognized() bool {
	return s.Kind != NodeStatusUnrecognized
}
