package workflow

import (
	"strings"
	"time"

	"github.com/netpad/api/pkg/domain/shared"
)

// NodeType identifies the behavior of a node on the canvas.
type NodeType string

const (
	NodeTypeTrigger         NodeType = "trigger"
	NodeTypeScheduleTrigger NodeType = "schedule-trigger"
	NodeTypeWebhookTrigger  NodeType = "webhook-trigger"
	NodeTypeManualStart     NodeType = "manual-start"
	NodeTypeCondition       NodeType = "condition"
	NodeTypeAction          NodeType = "action"
	NodeTypeHTTPRequest     NodeType = "http-request"
	NodeTypeTransform       NodeType = "transform"
	NodeTypeDelay           NodeType = "delay"
)

// IsTrigger reports whether this node type can start an execution.
// Any type containing "trigger" counts, plus the manual start node.
func (t NodeType) IsTrigger() bool {
	return strings.Contains(string(t), "trigger") || t == NodeTypeManualStart
}

// UIPosition is the node's position on the canvas.
type UIPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Node represents a single step on the workflow canvas. Config carries
// type-specific settings, e.g. "expression" for condition nodes and
// "schedule" (cron spec) for schedule triggers.
type Node struct {
	ID         shared.ID
	WorkflowID shared.ID
	NodeKey    string
	Type       NodeType
	Name       string
	Config     map[string]any
	UIPosition UIPosition
	CreatedAt  time.Time
}

// NewNode creates a new node.
func NewNode(nodeKey string, nodeType NodeType, name string) (*Node, error) {
	if nodeKey == "" {
		return nil, shared.NewDomainError("VALIDATION", "node_key is required", shared.ErrValidation)
	}
	if nodeType == "" {
		return nil, shared.NewDomainError("VALIDATION", "node type is required", shared.ErrValidation)
	}
	return &Node{
		ID:        shared.NewID(),
		NodeKey:   nodeKey,
		Type:      nodeType,
		Name:      name,
		Config:    map[string]any{},
		CreatedAt: time.Now(),
	}, nil
}

// ConfigString returns a string config value, or "" when absent.
func (n *Node) ConfigString(key string) string {
	if n.Config == nil {
		return ""
	}
	if v, ok := n.Config[key].(string); ok {
		return v
	}
	return ""
}

// Expression returns the condition expression for condition nodes.
func (n *Node) Expression() string {
	return n.ConfigString("expression")
}

// Schedule returns the cron spec for schedule trigger nodes.
func (n *Node) Schedule() string {
	return n.ConfigString("schedule")
}
