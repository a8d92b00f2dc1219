package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aloqachat/aloqa/agent/domain"
)

func TestParseDecisionFencedBlock(t *testing.T) {
	raw := "Assalomu alaykum! Narxi 250 ming so'm, yetkazib berish bepul.\n```json\n{\"sentiment\": \"positive\", \"intent\": \"purchase\", \"lead_score\": 8, \"human_handoff\": false, \"sale_detected\": true, \"unhandled_question\": false, \"confidence\": 0.92}\n```"

	d := ParseDecision(raw)
	assert.Equal(t, "Assalomu alaykum! Narxi 250 ming so'm, yetkazib berish bepul.", d.ReplyText)
	assert.Equal(t, domain.SentimentPositive, d.Sentiment)
	assert.Equal(t, domain.IntentPurchase, d.Intent)
	assert.Equal(t, 8, d.LeadScore)
	assert.True(t, d.SaleDetected)
	assert.False(t, d.HumanHandoff)
	assert.InDelta(t, 0.92, d.Confidence, 0.001)
}

func TestParseDecisionTrailingJSON(t *testing.T) {
	raw := "Hozir tekshirib ko'raman.\n{\"sentiment\": \"neutral\", \"intent\": \"inquiry\", \"lead_score\": 3, \"human_handoff\": false, \"sale_detected\": false, \"unhandled_question\": true, \"confidence\": 0.7}"

	d := ParseDecision(raw)
	assert.Equal(t, "Hozir tekshirib ko'raman.", d.ReplyText)
	assert.Equal(t, domain.IntentInquiry, d.Intent)
	assert.True(t, d.UnhandledQuestion)
	assert.InDelta(t, 0.7, d.Confidence, 0.001)
}

func TestParseDecisionMultilineTrailingJSON(t *testing.T) {
	raw := "Reply here.\n{\n  \"sentiment\": \"negative\",\n  \"intent\": \"complaint\",\n  \"lead_score\": 1,\n  \"human_handoff\": true,\n  \"sale_detected\": false,\n  \"unhandled_question\": false,\n  \"confidence\": 0.9\n}"

	d := ParseDecision(raw)
	assert.Equal(t, "Reply here.", d.ReplyText)
	assert.Equal(t, domain.SentimentNegative, d.Sentiment)
	assert.True(t, d.HumanHandoff)
}

func TestParseDecisionNoMetadata(t *testing.T) {
	raw := "Just a plain reply without any metadata block."

	d := ParseDecision(raw)
	assert.Equal(t, raw, d.ReplyText)
	assert.Equal(t, domain.SentimentNeutral, d.Sentiment)
	assert.Equal(t, domain.IntentGeneral, d.Intent)
	assert.Equal(t, 0, d.LeadScore)
	assert.False(t, d.HumanHandoff)
	assert.Equal(t, 0.0, d.Confidence)
}

func TestParseDecisionMalformedBlockKeepsText(t *testing.T) {
	raw := "Reply text.\n```json\n{not valid json}\n```"

	d := ParseDecision(raw)
	assert.Equal(t, raw, d.ReplyText)
	assert.Equal(t, domain.SentimentNeutral, d.Sentiment)
}

func TestBuildSystemPromptDefaults(t *testing.T) {
	prompt := BuildSystemPrompt("", "", "", "")
	assert.Contains(t, prompt, "sales assistant for our company")
	assert.Contains(t, prompt, noKnowledgeFallback)
	assert.NotContains(t, prompt, "ADDITIONAL INSTRUCTIONS")
}

func TestBuildSystemPromptWithPersona(t *testing.T) {
	prompt := BuildSystemPrompt("Chimgan Sport", "[Source 1] (relevance: 0.90)\nSki rental prices...", "Always mention the winter discount.", "Speak like a mountain guide.")
	assert.Contains(t, prompt, "sales assistant for Chimgan Sport")
	assert.Contains(t, prompt, "Ski rental prices")
	assert.Contains(t, prompt, "Always mention the winter discount.")
	assert.Contains(t, prompt, "ADDITIONAL INSTRUCTIONS:\nSpeak like a mountain guide.")
}

func TestUserTextPrefix(t *testing.T) {
	assert.Equal(t, "[Voice message transcription]: ", UserTextPrefix("voice"))
	assert.Equal(t, "[Video description]: ", UserTextPrefix("video"))
	assert.Equal(t, "[Document content]: ", UserTextPrefix("document"))
	assert.Equal(t, "", UserTextPrefix("text"))
	assert.Equal(t, "", UserTextPrefix("image"))
}
