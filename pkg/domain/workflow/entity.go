// Package workflow defines the Workflow domain entities for automation
// pipelines: a versioned node/edge canvas with a status lifecycle and
// execution settings.
package workflow

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/netpad/api/pkg/domain/shared"
)

// Status represents the lifecycle status of a workflow.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusActive   Status = "active"
	StatusPaused   Status = "paused"
	StatusArchived Status = "archived"
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusPaused, StatusArchived:
		return true
	}
	return false
}

// AllStatuses returns all valid workflow statuses.
func AllStatuses() []Status {
	return []Status{StatusDraft, StatusActive, StatusPaused, StatusArchived}
}

// CanTransitionTo reports whether a direct transition to next is allowed.
// Archived workflows must pass through draft or paused before reactivation.
func (s Status) CanTransitionTo(next Status) bool {
	if !next.IsValid() {
		return false
	}
	if s == StatusArchived && next == StatusActive {
		return false
	}
	return true
}

// IsExecutable reports whether executions may be admitted in this status.
// Draft workflows are executable so builders can test before activating.
func (s Status) IsExecutable() bool {
	return s == StatusActive || s == StatusDraft
}

// ExecutionMode controls how the executor walks the canvas.
type ExecutionMode string

const (
	ExecutionModeSequential ExecutionMode = "sequential"
	ExecutionModeParallel   ExecutionMode = "parallel"
)

// RetryPolicy configures the retry budget handed to the job queue.
// The queue attempts a job maxRetries+1 times in total.
type RetryPolicy struct {
	MaxRetries int `json:"max_retries"`
}

// Settings holds per-workflow execution settings.
type Settings struct {
	ExecutionMode ExecutionMode `json:"execution_mode"`
	RetryPolicy   RetryPolicy   `json:"retry_policy"`
}

// DefaultSettings returns the settings applied to new workflows.
func DefaultSettings() Settings {
	return Settings{
		ExecutionMode: ExecutionModeSequential,
		RetryPolicy:   RetryPolicy{MaxRetries: 2},
	}
}

// EmbedSettings controls the public, unauthenticated projection of a workflow.
type EmbedSettings struct {
	AllowPublicViewing bool `json:"allow_public_viewing"`
}

// Workflow represents an automation workflow definition.
type Workflow struct {
	ID             shared.ID
	OrganizationID shared.ID
	Name           string
	Description    string
	Slug           string

	Status  Status
	Version int

	Settings      Settings
	EmbedSettings EmbedSettings

	// Nodes and edges (loaded separately)
	Nodes []*Node
	Edges []*Edge

	// Audit
	CreatedBy       *shared.ID
	StatusChangedBy *shared.ID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewWorkflow creates a new draft workflow.
func NewWorkflow(orgID shared.ID, name, description string) (*Workflow, error) {
	if name == "" {
		return nil, shared.NewDomainError("VALIDATION", "name is required", shared.ErrValidation)
	}
	if orgID.IsZero() {
		return nil, shared.NewDomainError("VALIDATION", "organization_id is required", shared.ErrValidation)
	}

	now := time.Now()
	return &Workflow{
		ID:             shared.NewID(),
		OrganizationID: orgID,
		Name:           name,
		Description:    description,
		Slug:           Slugify(name),
		Status:         StatusDraft,
		Version:        1,
		Settings:       DefaultSettings(),
		Nodes:          []*Node{},
		Edges:          []*Edge{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// SetCreatedBy sets the user who created the workflow.
func (w *Workflow) SetCreatedBy(userID shared.ID) {
	w.CreatedBy = &userID
}

// AddNode adds a node to the workflow.
func (w *Workflow) AddNode(node *Node) {
	node.WorkflowID = w.ID
	w.Nodes = append(w.Nodes, node)
	w.UpdatedAt = time.Now()
}

// AddEdge adds an edge to the workflow.
func (w *Workflow) AddEdge(edge *Edge) {
	edge.WorkflowID = w.ID
	w.Edges = append(w.Edges, edge)
	w.UpdatedAt = time.Now()
}

// GetNodeByKey returns a node by its key.
func (w *Workflow) GetNodeByKey(key string) *Node {
	for _, n := range w.Nodes {
		if n.NodeKey == key {
			return n
		}
	}
	return nil
}

// TriggerNodes returns all nodes that can start an execution.
func (w *Workflow) TriggerNodes() []*Node {
	var triggers []*Node
	for _, n := range w.Nodes {
		if n.Type.IsTrigger() {
			triggers = append(triggers, n)
		}
	}
	return triggers
}

// DownstreamNodes returns nodes directly reachable from the given node.
func (w *Workflow) DownstreamNodes(nodeKey string) []*Node {
	var downstream []*Node
	for _, edge := range w.Edges {
		if edge.SourceNodeKey == nodeKey {
			if node := w.GetNodeByKey(edge.TargetNodeKey); node != nil {
				downstream = append(downstream, node)
			}
		}
	}
	return downstream
}

// ValidateGraph validates the canvas structure: unique node keys and
// edges that reference existing nodes.
func (w *Workflow) ValidateGraph() error {
	nodeKeys := make(map[string]bool)

	for _, node := range w.Nodes {
		if nodeKeys[node.NodeKey] {
			return shared.NewDomainError("VALIDATION", "duplicate node key: "+node.NodeKey, shared.ErrValidation)
		}
		nodeKeys[node.NodeKey] = true
	}

	for _, edge := range w.Edges {
		if !nodeKeys[edge.SourceNodeKey] {
			return shared.NewDomainError("VALIDATION", "edge references unknown source node: "+edge.SourceNodeKey, shared.ErrValidation)
		}
		if !nodeKeys[edge.TargetNodeKey] {
			return shared.NewDomainError("VALIDATION", "edge references unknown target node: "+edge.TargetNodeKey, shared.ErrValidation)
		}
	}

	return nil
}

// CanActivate checks the structural requirements for activation: at least
// one node and at least one trigger-capable node.
func (w *Workflow) CanActivate() error {
	if len(w.Nodes) == 0 {
		return shared.NewDomainError("EMPTY_CANVAS", "workflow must contain at least one node", shared.ErrValidation)
	}
	if len(w.TriggerNodes()) == 0 {
		return shared.NewDomainError("NO_TRIGGER", "workflow must contain at least one trigger node", shared.ErrValidation)
	}
	return nil
}

// TransitionTo moves the workflow to the given status, recording the actor.
// Activation enforces structural completeness; archived workflows cannot be
// activated directly.
func (w *Workflow) TransitionTo(next Status, actor shared.ID) error {
	if !next.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", "unknown workflow status: "+string(next), shared.ErrValidation)
	}
	if !w.Status.CanTransitionTo(next) {
		return shared.NewDomainError(
			"INVALID_TRANSITION",
			"cannot transition from "+string(w.Status)+" to "+string(next),
			shared.ErrValidation,
		)
	}
	if next == StatusActive {
		if err := w.CanActivate(); err != nil {
			return err
		}
	}

	w.Status = next
	if !actor.IsZero() {
		w.StatusChangedBy = &actor
	}
	w.UpdatedAt = time.Now()
	return nil
}

// BumpVersion increments the workflow version. Called on structural edits
// so historical executions keep the semantics they ran against.
func (w *Workflow) BumpVersion() {
	w.Version++
	w.UpdatedAt = time.Now()
}

// Slugify derives a URL-safe slug from a name, suffixed with a short
// random fragment to keep slugs unique without a round trip.
func Slugify(name string) string {
	var sb strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				sb.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	slug := strings.Trim(sb.String(), "-")
	suffix := uuid.NewString()[:8]
	if slug == "" {
		return suffix
	}
	return slug + "-" + suffix
}
