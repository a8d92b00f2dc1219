package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aloqachat/aloqa/agent/domain"
	"github.com/aloqachat/aloqa/channels"
	"github.com/aloqachat/aloqa/conversation"
	"github.com/aloqachat/aloqa/conversation/repository"
	tenantsdomain "github.com/aloqachat/aloqa/tenants/domain"
)

type stubProvider struct {
	reply string
	err   error
	calls int
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	p.calls++
	if p.err != nil {
		return domain.ChatResponse{}, p.err
	}
	return domain.ChatResponse{Text: p.reply}, nil
}

type stubTenants struct {
	tenant *tenantsdomain.Tenant
}

func (s *stubTenants) GetByID(ctx context.Context, id string) (*tenantsdomain.Tenant, error) {
	if s.tenant == nil {
		return nil, tenantsdomain.ErrTenantNotFound
	}
	return s.tenant, nil
}

type stubEscalator struct {
	reasons []string
}

func (s *stubEscalator) Escalate(ctx context.Context, tenantID, contactID, contactName, reason string) error {
	s.reasons = append(s.reasons, reason)
	return nil
}

type stubQuestions struct {
	topics []string
}

func (s *stubQuestions) RecordHit(ctx context.Context, tenantID, clusterTopic, sampleText string) (*tenantsdomain.FrequentQuestion, error) {
	s.topics = append(s.topics, clusterTopic)
	return &tenantsdomain.FrequentQuestion{ClusterTopic: clusterTopic, HitCount: 1, Status: tenantsdomain.QuestionTracking}, nil
}

func testTenant() *tenantsdomain.Tenant {
	return &tenantsdomain.Tenant{
		ID:                  "t1",
		Name:                "Chimgan Sport",
		HumanHandoffEnabled: true,
		Active:              true,
	}
}

func inbound(text string) channels.InboundMessage {
	return channels.InboundMessage{
		TenantID:    "t1",
		ContactID:   "c1",
		ContactName: "Aziz",
		Channel:     channels.ChannelTelegram,
		MessageType: channels.TypeText,
		Text:        text,
		ReceivedAt:  time.Now(),
	}
}

func confidentReply(body string) string {
	return body + "\n```json\n{\"sentiment\": \"positive\", \"intent\": \"inquiry\", \"lead_score\": 5, \"human_handoff\": false, \"sale_detected\": false, \"unhandled_question\": false, \"confidence\": 0.9}\n```"
}

func TestRespondHappyPath(t *testing.T) {
	provider := &stubProvider{reply: confidentReply("Narxi 250 ming so'm.")}
	store := repository.NewMemoryStore(conversation.Options{})
	esc := &stubEscalator{}
	o := NewOrchestrator(provider, store, &stubTenants{tenant: testTenant()}, WithEscalator(esc))

	decision, err := o.Respond(context.Background(), inbound("Narxi qancha?"))
	require.NoError(t, err)
	assert.Equal(t, "Narxi 250 ming so'm.", decision.ReplyText)
	assert.False(t, decision.HumanHandoff)
	assert.Empty(t, esc.reasons)

	// Both turns landed in the context store.
	msgs, err := store.GetRecentContext(context.Background(), "t1", "c1", 50)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, conversation.RoleUser, msgs[0].Role)
	assert.Equal(t, "Narxi qancha?", msgs[0].Content)
	assert.Equal(t, conversation.RoleAssistant, msgs[1].Role)
}

func TestRespondProviderFailureYieldsGracefulReply(t *testing.T) {
	provider := &stubProvider{err: errors.New("rate limited")}
	store := repository.NewMemoryStore(conversation.Options{})
	esc := &stubEscalator{}
	q := &stubQuestions{}
	o := NewOrchestrator(provider, store, &stubTenants{tenant: testTenant()}, WithEscalator(esc), WithQuestionSink(q))

	decision, err := o.Respond(context.Background(), inbound("salom"))
	require.NoError(t, err)
	assert.Equal(t, domain.FallbackReplyAPIError, decision.ReplyText)
	assert.Equal(t, domain.SentimentNeutral, decision.Sentiment)

	// An outage is not a signal: no handoff, no question hit, and the
	// fallback exchange stays out of the model context.
	assert.Empty(t, esc.reasons)
	assert.Empty(t, q.topics)
	msgs, err := store.GetRecentContext(context.Background(), "t1", "c1", 50)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

type blockingProvider struct{}

func (blockingProvider) Name() string { return "blocking" }

func (blockingProvider) Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	<-ctx.Done()
	return domain.ChatResponse{}, ctx.Err()
}

func TestRespondRequestTimeoutBoundsModelCall(t *testing.T) {
	o := NewOrchestrator(blockingProvider{}, repository.NewMemoryStore(conversation.Options{}), &stubTenants{tenant: testTenant()}, WithRequestTimeout(50*time.Millisecond))

	start := time.Now()
	decision, err := o.Respond(context.Background(), inbound("salom"))
	require.NoError(t, err)
	assert.Equal(t, domain.FallbackReplyAPIError, decision.ReplyText)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestEscalationExplicitHandoffWinsOverEverything(t *testing.T) {
	// Explicit handoff plus negative sentiment plus low confidence: the
	// explicit flag supplies the reason.
	reply := "Bir daqiqa.\n```json\n{\"sentiment\": \"negative\", \"intent\": \"complaint\", \"lead_score\": 1, \"human_handoff\": true, \"sale_detected\": false, \"unhandled_question\": false, \"confidence\": 0.2}\n```"
	provider := &stubProvider{reply: reply}
	esc := &stubEscalator{}
	o := NewOrchestrator(provider, repository.NewMemoryStore(conversation.Options{}), &stubTenants{tenant: testTenant()}, WithEscalator(esc))

	decision, err := o.Respond(context.Background(), inbound("bu nima?!"))
	require.NoError(t, err)
	assert.True(t, decision.HumanHandoff)
	require.Len(t, esc.reasons, 1)
	assert.Equal(t, "AI requested handoff", esc.reasons[0])
}

func TestEscalationLowConfidence(t *testing.T) {
	reply := "Aniq bilmayman.\n```json\n{\"sentiment\": \"neutral\", \"intent\": \"general\", \"lead_score\": 2, \"human_handoff\": false, \"sale_detected\": false, \"unhandled_question\": false, \"confidence\": 0.3}\n```"
	esc := &stubEscalator{}
	o := NewOrchestrator(&stubProvider{reply: reply}, repository.NewMemoryStore(conversation.Options{}), &stubTenants{tenant: testTenant()}, WithEscalator(esc))

	_, err := o.Respond(context.Background(), inbound("..."))
	require.NoError(t, err)
	require.Len(t, esc.reasons, 1)
	assert.Equal(t, "Low AI confidence (0.3)", esc.reasons[0])
}

func TestEscalationComplaintIntent(t *testing.T) {
	reply := "Uzr so'rayman.\n```json\n{\"sentiment\": \"neutral\", \"intent\": \"complaint\", \"lead_score\": 1, \"human_handoff\": false, \"sale_detected\": false, \"unhandled_question\": false, \"confidence\": 0.8}\n```"
	esc := &stubEscalator{}
	o := NewOrchestrator(&stubProvider{reply: reply}, repository.NewMemoryStore(conversation.Options{}), &stubTenants{tenant: testTenant()}, WithEscalator(esc))

	_, err := o.Respond(context.Background(), inbound("mahsulot buzilgan keldi"))
	require.NoError(t, err)
	require.Len(t, esc.reasons, 1)
	assert.Equal(t, "Customer complaint detected", esc.reasons[0])
}

func TestEscalationNegativeSentiment(t *testing.T) {
	reply := "Tushundim.\n```json\n{\"sentiment\": \"negative\", \"intent\": \"general\", \"lead_score\": 1, \"human_handoff\": false, \"sale_detected\": false, \"unhandled_question\": false, \"confidence\": 0.8}\n```"
	esc := &stubEscalator{}
	o := NewOrchestrator(&stubProvider{reply: reply}, repository.NewMemoryStore(conversation.Options{}), &stubTenants{tenant: testTenant()}, WithEscalator(esc))

	_, err := o.Respond(context.Background(), inbound("juda yomon"))
	require.NoError(t, err)
	require.Len(t, esc.reasons, 1)
	assert.Equal(t, "Frustrated user detected (Negative Sentiment)", esc.reasons[0])
}

func TestEscalationDisabledForTenant(t *testing.T) {
	tenant := testTenant()
	tenant.HumanHandoffEnabled = false
	reply := "Ok.\n```json\n{\"sentiment\": \"negative\", \"intent\": \"complaint\", \"lead_score\": 1, \"human_handoff\": true, \"sale_detected\": false, \"unhandled_question\": false, \"confidence\": 0.1}\n```"
	esc := &stubEscalator{}
	o := NewOrchestrator(&stubProvider{reply: reply}, repository.NewMemoryStore(conversation.Options{}), &stubTenants{tenant: tenant}, WithEscalator(esc))

	_, err := o.Respond(context.Background(), inbound("!!!"))
	require.NoError(t, err)
	assert.Empty(t, esc.reasons)
}

func TestUnhandledQuestionTracked(t *testing.T) {
	reply := "Jamoa bilan aniqlab beraman.\n```json\n{\"sentiment\": \"neutral\", \"intent\": \"inquiry\", \"lead_score\": 3, \"human_handoff\": false, \"sale_detected\": false, \"unhandled_question\": true, \"confidence\": 0.6}\n```"
	q := &stubQuestions{}
	o := NewOrchestrator(&stubProvider{reply: reply}, repository.NewMemoryStore(conversation.Options{}), &stubTenants{tenant: testTenant()}, WithQuestionSink(q))

	_, err := o.Respond(context.Background(), inbound("Omborda 44 o'lcham bormi?"))
	require.NoError(t, err)
	require.Len(t, q.topics, 1)
	assert.Equal(t, "Omborda 44 o'lcham bormi?", q.topics[0])
}

func TestUnhandledQuestionShortTextIgnored(t *testing.T) {
	reply := "Hm.\n```json\n{\"sentiment\": \"neutral\", \"intent\": \"general\", \"lead_score\": 0, \"human_handoff\": false, \"sale_detected\": false, \"unhandled_question\": true, \"confidence\": 0.5}\n```"
	q := &stubQuestions{}
	o := NewOrchestrator(&stubProvider{reply: reply}, repository.NewMemoryStore(conversation.Options{}), &stubTenants{tenant: testTenant()}, WithQuestionSink(q))

	_, err := o.Respond(context.Background(), inbound("ha?"))
	require.NoError(t, err)
	assert.Empty(t, q.topics)
}

func TestChainFallsThroughToSecondProvider(t *testing.T) {
	broken := &stubProvider{err: errors.New("quota exceeded")}
	healthy := &stubProvider{reply: "ok"}
	chain := NewChain(broken, healthy)

	resp, err := chain.Chat(context.Background(), domain.ChatRequest{UserText: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 1, broken.calls)
	assert.Equal(t, 1, healthy.calls)
}

func TestChainAllProvidersFail(t *testing.T) {
	chain := NewChain(&stubProvider{err: errors.New("down")}, &stubProvider{err: errors.New("also down")})

	_, err := chain.Chat(context.Background(), domain.ChatRequest{UserText: "hi"})
	assert.Error(t, err)
}
