package pkg

import (
	"time"
)

// Diagram Core Types shared by the session store, renderer and HTTP layer

// NodeKind is the closed set of renderable node kinds
type NodeKind int

const (
	KindUnknown NodeKind = iota
	KindEC2
	KindRDS
	KindALB
	KindUser
)

// String returns the catalog type name of the kind
func (k NodeKind) String() string {
	switch k {
	case KindEC2:
		return "EC2"
	case KindRDS:
		return "RDS"
	case KindALB:
		return "ALB"
	case KindUser:
		return "User"
	default:
		return "unknown"
	}
}

// NodeDescriptor describes how a node kind is drawn
type NodeDescriptor struct {
	Kind      NodeKind `json:"kind"`
	Name      string   `json:"name"`     // catalog type name, e.g. "EC2"
	Provider  string   `json:"provider"` // aws, onprem
	Category  string   `json:"category"` // compute, database, network, client
	Shape     string   `json:"shape"`    // graphviz shape name
	FillColor string   `json:"fill_color"`
}

// Node is a labelled component inside one diagram session
type Node struct {
	Label string   `json:"label"`
	Kind  NodeKind `json:"kind"`
}

// Edge is a directed connection between two node labels
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// SessionState tracks the lifecycle of a diagram session
type SessionState int

const (
	SessionOpen SessionState = iota
	SessionClosed
)

func (s SessionState) String() string {
	if s == SessionOpen {
		return "open"
	}
	return "closed"
}

// GenerationStatus is the outcome of one prompt-to-diagram request
type GenerationStatus string

const (
	GenerationSucceeded GenerationStatus = "succeeded"
	GenerationFailed    GenerationStatus = "failed"
	GenerationRejected  GenerationStatus = "rejected"
)

// GenerationRecord is the history entry kept for a generation request.
// It never carries diagram content, only metadata about the run.
type GenerationRecord struct {
	ID         string           `json:"id"`
	Prompt     string           `json:"prompt"`
	Status     GenerationStatus `json:"status"`
	NodeCount  int              `json:"node_count"`
	EdgeCount  int              `json:"edge_count"`
	Error      string           `json:"error,omitempty"`
	DurationMs int64            `json:"duration_ms"`
	CreatedAt  time.Time        `json:"created_at"`
}
