package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aloqachat/aloqa/agent/domain"
	"github.com/aloqachat/aloqa/channels"
	"github.com/aloqachat/aloqa/conversation"
	"github.com/aloqachat/aloqa/knowledge"
	tenantsdomain "github.com/aloqachat/aloqa/tenants/domain"
)

// TenantDirectory resolves tenant AI settings for a turn.
type TenantDirectory interface {
	GetByID(ctx context.Context, id string) (*tenantsdomain.Tenant, error)
}

// Escalator hands a conversation to a human operator.
type Escalator interface {
	Escalate(ctx context.Context, tenantID, contactID, contactName, reason string) error
}

// QuestionSink records questions the model could not answer.
type QuestionSink interface {
	RecordHit(ctx context.Context, tenantID, clusterTopic, sampleText string) (*tenantsdomain.FrequentQuestion, error)
}

// KnowledgeSearcher is the read side of the knowledge store.
type KnowledgeSearcher interface {
	Search(ctx context.Context, tenantID, query string, topK int) ([]knowledge.SearchResult, error)
}

// Orchestrator runs one full response turn: context retrieval, knowledge
// search, prompt assembly, model call, decision parsing, context writes,
// escalation, and unanswered-question tracking.
type Orchestrator struct {
	provider  domain.ChatProvider
	store     conversation.Store
	tenants   TenantDirectory
	retriever KnowledgeSearcher // optional
	escalator Escalator         // optional
	questions QuestionSink      // optional

	maxTokens      int
	knowledgeTopK  int
	contextLimit   int
	minChars       int
	requestTimeout time.Duration
}

type OrchestratorOption func(*Orchestrator)

func WithKnowledge(r KnowledgeSearcher, topK int) OrchestratorOption {
	return func(o *Orchestrator) {
		o.retriever = r
		if topK > 0 {
			o.knowledgeTopK = topK
		}
	}
}

func WithEscalator(e Escalator) OrchestratorOption {
	return func(o *Orchestrator) { o.escalator = e }
}

func WithQuestionSink(q QuestionSink) OrchestratorOption {
	return func(o *Orchestrator) { o.questions = q }
}

func WithMaxTokens(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// WithRequestTimeout bounds each model call. Zero disables the deadline.
func WithRequestTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		if d > 0 {
			o.requestTimeout = d
		}
	}
}

func WithContextLimit(n int) OrchestratorOption {
	return func(o *Orchestrator) {
		if n > 0 {
			o.contextLimit = n
		}
	}
}

func NewOrchestrator(provider domain.ChatProvider, store conversation.Store, tenants TenantDirectory, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		provider:      provider,
		store:         store,
		tenants:       tenants,
		maxTokens:     1024,
		knowledgeTopK: 5,
		contextLimit:  50,
		minChars:      5,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Respond generates the reply decision for one inbound message. The caller
// is responsible for the pre-checks (dedup, handoff gate) and for delivery.
//
// Provider failures do not surface as errors: the customer gets a graceful
// holding reply and the turn completes.
func (o *Orchestrator) Respond(ctx context.Context, msg channels.InboundMessage) (domain.Decision, error) {
	tenant, err := o.tenants.GetByID(ctx, msg.TenantID)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("resolve tenant %s: %w", msg.TenantID, err)
	}

	history, err := o.store.GetRecentContext(ctx, msg.TenantID, msg.ContactID, o.contextLimit)
	if err != nil {
		logrus.WithError(err).Warn("[AGENT] Context read failed, responding without history")
		history = nil
	}

	knowledgeContext := o.searchKnowledge(ctx, msg.TenantID, msg.Text)

	systemPrompt := BuildSystemPrompt(tenant.Name, knowledgeContext, tenant.MasterPrompt, tenant.AIPersona)
	userText := UserTextPrefix(string(msg.MessageType)) + msg.Text

	req := domain.ChatRequest{
		SystemPrompt: systemPrompt,
		History:      toChatTurns(history),
		UserText:     userText,
		MaxTokens:    o.maxTokens,
	}

	chatCtx := ctx
	if o.requestTimeout > 0 {
		var cancel context.CancelFunc
		chatCtx, cancel = context.WithTimeout(ctx, o.requestTimeout)
		defer cancel()
	}

	resp, err := o.provider.Chat(chatCtx, req)
	if err != nil {
		logrus.WithError(err).WithField("tenant_id", msg.TenantID).Error("[AGENT] Model call failed")
		// Transient provider failure: the customer gets a holding reply and
		// the turn ends. No context write, no escalation, no question hit.
		decision := domain.DefaultDecision(domain.FallbackReplyAPIError)
		decision.Metadata = map[string]any{"error": err.Error()}
		return decision, nil
	}
	decision := ParseDecision(resp.Text)

	o.storeTurn(ctx, msg, decision)
	o.evaluateEscalation(ctx, tenant, msg, decision)
	o.trackUnhandledQuestion(ctx, msg, decision)

	logrus.WithFields(logrus.Fields{
		"tenant_id":     msg.TenantID,
		"contact_id":    msg.ContactID,
		"sentiment":     decision.Sentiment,
		"lead_score":    decision.LeadScore,
		"sale_detected": decision.SaleDetected,
	}).Info("[AGENT] Response generated")

	return decision, nil
}

func (o *Orchestrator) searchKnowledge(ctx context.Context, tenantID, query string) string {
	if o.retriever == nil || strings.TrimSpace(query) == "" {
		return ""
	}
	results, err := o.retriever.Search(ctx, tenantID, query, o.knowledgeTopK)
	if err != nil {
		logrus.WithError(err).WithField("tenant_id", tenantID).Warn("[AGENT] Knowledge search failed")
		return ""
	}
	return knowledge.FormatContext(results)
}

func (o *Orchestrator) storeTurn(ctx context.Context, msg channels.InboundMessage, decision domain.Decision) {
	if err := o.store.AppendMessage(ctx, msg.TenantID, msg.ContactID, conversation.RoleUser, string(msg.MessageType), msg.Text); err != nil {
		logrus.WithError(err).Warn("[AGENT] Failed to store user message")
	}
	if decision.ReplyText != "" {
		if err := o.store.AppendMessage(ctx, msg.TenantID, msg.ContactID, conversation.RoleAssistant, "text", decision.ReplyText); err != nil {
			logrus.WithError(err).Warn("[AGENT] Failed to store assistant message")
		}
	}
}

// evaluateEscalation applies the escalation rules in priority order; the
// first matching rule supplies the reason.
func (o *Orchestrator) evaluateEscalation(ctx context.Context, tenant *tenantsdomain.Tenant, msg channels.InboundMessage, decision domain.Decision) {
	if o.escalator == nil || !tenant.HumanHandoffEnabled {
		return
	}

	var reason string
	switch {
	case decision.HumanHandoff:
		reason = "AI requested handoff"
	case decision.Confidence < 0.4:
		reason = fmt.Sprintf("Low AI confidence (%v)", decision.Confidence)
	case decision.Intent == domain.IntentComplaint || decision.Intent == domain.IntentSupport:
		reason = fmt.Sprintf("Customer %s detected", decision.Intent)
	case decision.Sentiment == domain.SentimentNegative:
		reason = "Frustrated user detected (Negative Sentiment)"
	default:
		return
	}

	if err := o.escalator.Escalate(ctx, msg.TenantID, msg.ContactID, msg.ContactName, reason); err != nil {
		logrus.WithError(err).Error("[AGENT] Escalation failed")
		return
	}

	logrus.WithFields(logrus.Fields{
		"tenant_id":  msg.TenantID,
		"contact_id": msg.ContactID,
		"reason":     reason,
	}).Warn("[AGENT] Human handoff triggered")
}

func (o *Orchestrator) trackUnhandledQuestion(ctx context.Context, msg channels.InboundMessage, decision domain.Decision) {
	if o.questions == nil || !decision.UnhandledQuestion {
		return
	}
	text := strings.TrimSpace(msg.Text)
	if msg.MessageType != channels.TypeText || len(text) <= o.minChars {
		return
	}

	if _, err := o.questions.RecordHit(ctx, msg.TenantID, text, text); err != nil {
		logrus.WithError(err).WithField("tenant_id", msg.TenantID).Error("[AGENT] Frequent question tracking failed")
	}
}

func toChatTurns(history []conversation.StoredMessage) []domain.ChatTurn {
	turns := make([]domain.ChatTurn, 0, len(history))
	for _, m := range history {
		if m.Content == "" {
			continue
		}
		if m.Role != conversation.RoleUser && m.Role != conversation.RoleAssistant {
			continue
		}
		turns = append(turns, domain.ChatTurn{Role: m.Role, Content: m.Content})
	}
	return turns
}
