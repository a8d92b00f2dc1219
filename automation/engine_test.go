package automation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryFlows struct {
	flows []*Flow
}

func (m *memoryFlows) Create(ctx context.Context, flow *Flow) error { m.flows = append(m.flows, flow); return nil }
func (m *memoryFlows) GetByID(ctx context.Context, id string) (*Flow, error) {
	for _, f := range m.flows {
		if f.ID == id {
			return f, nil
		}
	}
	return nil, ErrFlowNotFound
}
func (m *memoryFlows) ListActive(ctx context.Context, tenantID string) ([]*Flow, error) {
	var out []*Flow
	for _, f := range m.flows {
		if f.TenantID == tenantID && f.Active {
			out = append(out, f)
		}
	}
	return out, nil
}
func (m *memoryFlows) Update(ctx context.Context, flow *Flow) error { return nil }
func (m *memoryFlows) Delete(ctx context.Context, id string) error  { return nil }

type collector struct {
	mu    sync.Mutex
	texts []string
	done  chan struct{}
	want  int
}

func newCollector(want int) *collector {
	return &collector{done: make(chan struct{}), want: want}
}

func (c *collector) send(ctx context.Context, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.texts = append(c.texts, text)
	if len(c.texts) == c.want {
		close(c.done)
	}
	return nil
}

func (c *collector) wait(t *testing.T) []string {
	t.Helper()
	select {
	case <-c.done:
	case <-time.After(2 * time.Second):
		t.Fatal("flow did not complete in time")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.texts...)
}

const linearGraph = `{
	"nodes": [
		{"id": "n1", "type": "trigger", "data": {}},
		{"id": "n2", "type": "message", "data": {"text": "Salom! Narxlar ro'yxati:"}},
		{"id": "n3", "type": "message", "data": {"text": "Yetkazib berish bepul."}}
	],
	"edges": [
		{"source": "n1", "target": "n2"},
		{"source": "n2", "target": "n3"}
	]
}`

func TestHandleMessageKeywordMatch(t *testing.T) {
	flows := &memoryFlows{flows: []*Flow{{
		ID: "f1", TenantID: "t1", Name: "price list", Active: true,
		TriggerType: "keyword", TriggerKeyword: "narx", GraphJSON: linearGraph,
	}}}
	engine := NewEngine(flows)
	c := newCollector(2)

	handled, err := engine.HandleMessage(context.Background(), "t1", "NARXLARNI ayting", c.send)
	require.NoError(t, err)
	assert.True(t, handled)

	texts := c.wait(t)
	assert.Equal(t, []string{"Salom! Narxlar ro'yxati:", "Yetkazib berish bepul."}, texts)
}

func TestHandleMessageNoMatchFallsThrough(t *testing.T) {
	flows := &memoryFlows{flows: []*Flow{{
		ID: "f1", TenantID: "t1", Name: "price list", Active: true,
		TriggerType: "keyword", TriggerKeyword: "narx", GraphJSON: linearGraph,
	}}}
	engine := NewEngine(flows)

	handled, err := engine.HandleMessage(context.Background(), "t1", "qachon ochasizlar?", func(ctx context.Context, text string) error {
		t.Fatal("send must not be called")
		return nil
	})
	require.NoError(t, err)
	assert.False(t, handled)
}

func TestExecuteFlowCyclicGraphTerminates(t *testing.T) {
	cyclic := `{
		"nodes": [
			{"id": "n1", "type": "trigger", "data": {}},
			{"id": "n2", "type": "message", "data": {"text": "loop"}}
		],
		"edges": [
			{"source": "n1", "target": "n2"},
			{"source": "n2", "target": "n1"}
		]
	}`
	graph, err := ParseGraph([]byte(cyclic))
	require.NoError(t, err)

	engine := NewEngine(&memoryFlows{})
	c := newCollector(1)
	engine.executeFlow(context.Background(), graph, c.send)

	// The message node runs once; the back edge to the trigger is cut.
	texts := c.wait(t)
	assert.Equal(t, []string{"loop"}, texts)
}

func TestExecuteFlowDelayRespectsContext(t *testing.T) {
	delayed := `{
		"nodes": [
			{"id": "n1", "type": "trigger", "data": {}},
			{"id": "n2", "type": "delay", "data": {"amount": 1, "unit": "hours"}},
			{"id": "n3", "type": "message", "data": {"text": "never"}}
		],
		"edges": [
			{"source": "n1", "target": "n2"},
			{"source": "n2", "target": "n3"}
		]
	}`
	graph, err := ParseGraph([]byte(delayed))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	engine := NewEngine(&memoryFlows{})
	go func() {
		engine.executeFlow(ctx, graph, func(ctx context.Context, text string) error {
			t.Error("send must not be called after cancellation")
			return nil
		})
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled flow did not stop")
	}
}

func TestHandleMessageDelaySurvivesCallerCancellation(t *testing.T) {
	delayed := `{
		"nodes": [
			{"id": "n1", "type": "trigger", "data": {}},
			{"id": "n2", "type": "message", "data": {"text": "before delay"}},
			{"id": "n3", "type": "delay", "data": {"amount": 1, "unit": "seconds"}},
			{"id": "n4", "type": "message", "data": {"text": "after delay"}}
		],
		"edges": [
			{"source": "n1", "target": "n2"},
			{"source": "n2", "target": "n3"},
			{"source": "n3", "target": "n4"}
		]
	}`
	flows := &memoryFlows{flows: []*Flow{{
		ID: "f1", TenantID: "t1", Name: "drip", Active: true,
		TriggerType: "keyword", TriggerKeyword: "katalog", GraphJSON: delayed,
	}}}
	engine := NewEngine(flows)
	c := newCollector(2)

	// The worker job cancels its context the moment HandleMessage returns;
	// the post-delay node must still run.
	ctx, cancel := context.WithCancel(context.Background())
	handled, err := engine.HandleMessage(ctx, "t1", "katalog bormi?", c.send)
	require.NoError(t, err)
	assert.True(t, handled)
	cancel()

	select {
	case <-c.done:
	case <-time.After(3 * time.Second):
		t.Fatal("post-delay message never delivered")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Equal(t, []string{"before delay", "after delay"}, c.texts)
}

func TestExecuteFlowAIStep(t *testing.T) {
	withAI := `{
		"nodes": [
			{"id": "n1", "type": "trigger", "data": {}},
			{"id": "n2", "type": "aiStep", "data": {"prompt": "Answer as the sales team"}}
		],
		"edges": [{"source": "n1", "target": "n2"}]
	}`
	graph, err := ParseGraph([]byte(withAI))
	require.NoError(t, err)

	engine := NewEngine(&memoryFlows{})
	c := newCollector(1)
	engine.executeFlow(context.Background(), graph, c.send)

	texts := c.wait(t)
	assert.Equal(t, []string{"(AI is taking over with context: Answer as the sales team)"}, texts)
}

func TestParseGraphRejectsUnknownNodeType(t *testing.T) {
	_, err := ParseGraph([]byte(`{"nodes": [{"id": "n1", "type": "webhook", "data": {}}], "edges": []}`))
	assert.ErrorIs(t, err, ErrUnknownNodeTyp)
}

func TestParseGraphRequiresTrigger(t *testing.T) {
	_, err := ParseGraph([]byte(`{"nodes": [{"id": "n1", "type": "message", "data": {"text": "hi"}}], "edges": []}`))
	assert.ErrorIs(t, err, ErrNoTriggerNode)
}

func TestFlowValidate(t *testing.T) {
	flow := Flow{
		TenantID: "t1", Name: "greet", TriggerType: "keyword",
		TriggerKeyword: "salom", GraphJSON: linearGraph,
	}
	assert.NoError(t, flow.Validate())

	flow.GraphJSON = `{"nodes": [], "edges": []}`
	assert.Error(t, flow.Validate())
}
