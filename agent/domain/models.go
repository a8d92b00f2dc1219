package domain

import "context"

// Sentiment and intent vocabularies the model is constrained to.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"

	IntentPurchase            = "purchase"
	IntentInquiry             = "inquiry"
	IntentComplaint           = "complaint"
	IntentSupport             = "support"
	IntentGeneral             = "general"
	IntentPaymentVerification = "payment_verification"
)

// Decision is the structured outcome of one model turn: the customer-facing
// reply plus the metadata block driving escalation and analytics.
type Decision struct {
	ReplyText         string
	Sentiment         string
	Intent            string
	LeadScore         int
	HumanHandoff      bool
	SaleDetected      bool
	UnhandledQuestion bool
	Confidence        float64
	Metadata          map[string]any
}

// DefaultDecision returns the conservative baseline used when the metadata
// block is absent or unparseable.
func DefaultDecision(replyText string) Decision {
	return Decision{
		ReplyText:  replyText,
		Sentiment:  SentimentNeutral,
		Intent:     IntentGeneral,
		LeadScore:  0,
		Confidence: 0.0,
	}
}

// ChatTurn is one prior message in a conversation.
type ChatTurn struct {
	Role    string
	Content string
}

// ChatRequest is a provider-neutral completion request.
type ChatRequest struct {
	SystemPrompt string
	History      []ChatTurn
	UserText     string
	MaxTokens    int
}

// ChatResponse carries the raw model text before decision parsing.
type ChatResponse struct {
	Text string
}

// ChatProvider is one model backend.
type ChatProvider interface {
	Name() string
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}

// Graceful replies sent when every provider fails. The customer never sees
// a raw error.
const (
	FallbackReplyAPIError = "I'm having a brief technical issue. Let me get back to you in just a moment! 🙏"
	FallbackReplyGeneric  = "Sorry, give me a moment — I'll get right back to you! 😊"
)
