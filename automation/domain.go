package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	ErrFlowNotFound   = errors.New("automation flow not found")
	ErrNoTriggerNode  = errors.New("flow graph has no trigger node")
	ErrUnknownNodeTyp = errors.New("unknown node type")
)

// Node is one block in a flow graph. The variants are closed: a graph
// only ever contains triggers, messages, delays, and AI steps.
type Node interface {
	ID() string
	isNode()
}

type TriggerNode struct {
	NodeID string
}

type MessageNode struct {
	NodeID string
	Text   string
}

type DelayNode struct {
	NodeID string
	Amount int
	Unit   string // seconds, minutes, hours
}

type AIStepNode struct {
	NodeID string
	Prompt string
}

func (n TriggerNode) ID() string { return n.NodeID }
func (n MessageNode) ID() string { return n.NodeID }
func (n DelayNode) ID() string   { return n.NodeID }
func (n AIStepNode) ID() string  { return n.NodeID }

func (TriggerNode) isNode() {}
func (MessageNode) isNode() {}
func (DelayNode) isNode()   {}
func (AIStepNode) isNode()  {}

// Duration converts the delay node to a wait time.
func (n DelayNode) Duration() time.Duration {
	amount := n.Amount
	if amount < 0 {
		amount = 0
	}
	switch n.Unit {
	case "seconds":
		return time.Duration(amount) * time.Second
	case "hours":
		return time.Duration(amount) * time.Hour
	default:
		return time.Duration(amount) * time.Minute
	}
}

// Edge links two nodes by id.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is a parsed flow graph.
type Graph struct {
	Nodes []Node
	Edges []Edge
}

// Trigger returns the graph's trigger node, or an error when absent.
func (g Graph) Trigger() (TriggerNode, error) {
	for _, n := range g.Nodes {
		if t, ok := n.(TriggerNode); ok {
			return t, nil
		}
	}
	return TriggerNode{}, ErrNoTriggerNode
}

// Successors maps each node id to its outgoing targets in edge order.
func (g Graph) Successors() map[string][]string {
	m := make(map[string][]string, len(g.Edges))
	for _, e := range g.Edges {
		m[e.Source] = append(m[e.Source], e.Target)
	}
	return m
}

// NodeByID finds a node, nil when missing.
func (g Graph) NodeByID(id string) Node {
	for _, n := range g.Nodes {
		if n.ID() == id {
			return n
		}
	}
	return nil
}

type rawNode struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Text   string          `json:"text"`
		Amount json.RawMessage `json:"amount"`
		Unit   string          `json:"unit"`
		Prompt string          `json:"prompt"`
	} `json:"data"`
}

type rawGraph struct {
	Nodes []rawNode `json:"nodes"`
	Edges []Edge    `json:"edges"`
}

// ParseGraph decodes a flow-builder JSON document into a typed graph.
// Unknown node types are rejected rather than skipped: a flow that would
// silently drop blocks is worse than one that fails to save.
func ParseGraph(data []byte) (Graph, error) {
	var raw rawGraph
	if err := json.Unmarshal(data, &raw); err != nil {
		return Graph{}, fmt.Errorf("decode flow graph: %w", err)
	}

	g := Graph{Edges: raw.Edges}
	for _, rn := range raw.Nodes {
		switch rn.Type {
		case "trigger":
			g.Nodes = append(g.Nodes, TriggerNode{NodeID: rn.ID})
		case "message":
			g.Nodes = append(g.Nodes, MessageNode{NodeID: rn.ID, Text: rn.Data.Text})
		case "delay":
			amount := 1
			if len(rn.Data.Amount) > 0 {
				// The builder serializes amount as either a number or a string.
				var n int
				if err := json.Unmarshal(rn.Data.Amount, &n); err == nil {
					amount = n
				} else {
					var s string
					if err := json.Unmarshal(rn.Data.Amount, &s); err == nil {
						fmt.Sscanf(s, "%d", &amount)
					}
				}
			}
			unit := rn.Data.Unit
			if unit == "" {
				unit = "minutes"
			}
			g.Nodes = append(g.Nodes, DelayNode{NodeID: rn.ID, Amount: amount, Unit: unit})
		case "aiStep":
			g.Nodes = append(g.Nodes, AIStepNode{NodeID: rn.ID, Prompt: rn.Data.Prompt})
		default:
			return Graph{}, fmt.Errorf("%w: %q", ErrUnknownNodeTyp, rn.Type)
		}
	}

	if _, err := g.Trigger(); err != nil {
		return Graph{}, err
	}
	return g, nil
}

// Flow is one stored automation.
type Flow struct {
	ID             string
	TenantID       string
	Name           string
	TriggerType    string // keyword
	TriggerKeyword string
	Active         bool
	GraphJSON      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (f Flow) Validate() error {
	if err := validation.ValidateStruct(&f,
		validation.Field(&f.TenantID, validation.Required),
		validation.Field(&f.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&f.TriggerType, validation.Required, validation.In("keyword")),
		validation.Field(&f.TriggerKeyword, validation.Required),
		validation.Field(&f.GraphJSON, validation.Required),
	); err != nil {
		return err
	}
	_, err := ParseGraph([]byte(f.GraphJSON))
	return err
}

// FlowRepository persists automations.
type FlowRepository interface {
	Create(ctx context.Context, flow *Flow) error
	GetByID(ctx context.Context, id string) (*Flow, error)
	ListActive(ctx context.Context, tenantID string) ([]*Flow, error)
	Update(ctx context.Context, flow *Flow) error
	Delete(ctx context.Context, id string) error
}
