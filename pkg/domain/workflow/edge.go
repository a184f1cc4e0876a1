package workflow

import (
	"time"

	"github.com/netpad/api/pkg/domain/shared"
)

// Edge connects two nodes on the canvas. Label carries the branch name
// for conditional edges ("true"/"false").
type Edge struct {
	ID            shared.ID
	WorkflowID    shared.ID
	SourceNodeKey string
	TargetNodeKey string
	Label         string
	CreatedAt     time.Time
}

// NewEdge creates a new edge between two node keys.
func NewEdge(source, target string) (*Edge, error) {
	if source == "" || target == "" {
		return nil, shared.NewDomainError("VALIDATION", "edge source and target are required", shared.ErrValidation)
	}
	if source == target {
		return nil, shared.NewDomainError("VALIDATION", "edge cannot connect a node to itself", shared.ErrValidation)
	}
	return &Edge{
		ID:            shared.NewID(),
		SourceNodeKey: source,
		TargetNodeKey: target,
		CreatedAt:     time.Now(),
	}, nil
}
