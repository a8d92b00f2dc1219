package automation

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// SendFunc delivers one automation message to the contact.
type SendFunc func(ctx context.Context, text string) error

// Engine matches inbound messages against active flows and executes the
// matching graph. Execution runs in its own goroutine so delay nodes never
// block the message worker that triggered them.
type Engine struct {
	flows FlowRepository
}

func NewEngine(flows FlowRepository) *Engine {
	return &Engine{flows: flows}
}

// HandleMessage returns true when an active flow's keyword matched and the
// flow was started. False means the message was not handled and should go
// to the AI agent instead.
func (e *Engine) HandleMessage(ctx context.Context, tenantID, messageText string, send SendFunc) (bool, error) {
	flows, err := e.flows.ListActive(ctx, tenantID)
	if err != nil {
		return false, err
	}

	lower := strings.ToLower(messageText)
	for _, flow := range flows {
		if flow.TriggerType != "keyword" || flow.TriggerKeyword == "" {
			continue
		}
		if !strings.Contains(lower, strings.ToLower(flow.TriggerKeyword)) {
			continue
		}

		graph, err := ParseGraph([]byte(flow.GraphJSON))
		if err != nil {
			logrus.WithError(err).WithField("flow_id", flow.ID).Error("[AUTOMATION] Stored flow graph is invalid")
			continue
		}

		logrus.WithFields(logrus.Fields{
			"flow_id":   flow.ID,
			"flow_name": flow.Name,
			"tenant_id": tenantID,
		}).Info("[AUTOMATION] Flow triggered")

		// The worker job's context is cancelled as soon as the job returns,
		// which would abort any delay node mid-wait. The flow keeps the
		// caller's values but outlives its cancellation.
		go e.executeFlow(context.WithoutCancel(ctx), graph, send)
		return true, nil
	}
	return false, nil
}

// executeFlow walks the graph from the trigger node, following the first
// outgoing edge at each step. A visited set terminates cyclic graphs.
func (e *Engine) executeFlow(ctx context.Context, graph Graph, send SendFunc) {
	trigger, err := graph.Trigger()
	if err != nil {
		logrus.WithError(err).Warn("[AUTOMATION] Flow has no trigger node")
		return
	}

	successors := graph.Successors()
	visited := make(map[string]bool)
	currentID := trigger.ID()

	for currentID != "" {
		if visited[currentID] {
			logrus.WithField("node_id", currentID).Warn("[AUTOMATION] Circular edge detected, stopping flow")
			return
		}
		visited[currentID] = true

		node := graph.NodeByID(currentID)
		if node == nil {
			return
		}

		if err := e.executeNode(ctx, node, send); err != nil {
			if ctx.Err() != nil {
				return
			}
			logrus.WithError(err).WithField("node_id", currentID).Error("[AUTOMATION] Node execution failed")
		}

		next := successors[currentID]
		if len(next) == 0 {
			break
		}
		currentID = next[0]
	}

	logrus.Debug("[AUTOMATION] Flow completed")
}

func (e *Engine) executeNode(ctx context.Context, node Node, send SendFunc) error {
	switch n := node.(type) {
	case TriggerNode:
		return nil
	case MessageNode:
		if n.Text == "" {
			return nil
		}
		return send(ctx, n.Text)
	case DelayNode:
		d := n.Duration()
		if d <= 0 {
			return nil
		}
		logrus.WithField("delay", d).Debug("[AUTOMATION] Waiting")
		select {
		case <-time.After(d):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	case AIStepNode:
		return send(ctx, "(AI is taking over with context: "+n.Prompt+")")
	default:
		return nil
	}
}
