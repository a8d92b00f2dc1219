package agent

import (
	"encoding/json"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/aloqachat/aloqa/agent/domain"
)

type decisionMetadata struct {
	Sentiment         string  `json:"sentiment"`
	Intent            string  `json:"intent"`
	LeadScore         int     `json:"lead_score"`
	HumanHandoff      bool    `json:"human_handoff"`
	SaleDetected      bool    `json:"sale_detected"`
	UnhandledQuestion bool    `json:"unhandled_question"`
	Confidence        float64 `json:"confidence"`
}

// ParseDecision splits a raw model reply into the customer-facing text and
// the trailing metadata block. Extraction order:
//
//  1. A fenced ```json block anywhere in the reply.
//  2. If the reply ends with "}", accumulate trailing lines bottom-up until
//     they parse as JSON.
//  3. Otherwise the whole reply is the text and the metadata falls back to
//     conservative defaults.
//
// A malformed block never fails the turn.
func ParseDecision(raw string) domain.Decision {
	replyText := raw
	var meta decisionMetadata
	var rawMeta map[string]any
	parsed := false

	if idx := strings.Index(raw, "```json"); idx >= 0 {
		after := raw[idx+len("```json"):]
		jsonStr := after
		if end := strings.Index(after, "```"); end >= 0 {
			jsonStr = after[:end]
		}
		jsonStr = strings.TrimSpace(jsonStr)
		if json.Unmarshal([]byte(jsonStr), &meta) == nil {
			_ = json.Unmarshal([]byte(jsonStr), &rawMeta)
			replyText = strings.TrimSpace(raw[:idx])
			parsed = true
		}
	} else if strings.HasSuffix(strings.TrimRight(raw, " \t\n"), "}") {
		lines := strings.Split(strings.TrimSpace(raw), "\n")
		var jsonLines []string
		for i := len(lines) - 1; i >= 0; i-- {
			jsonLines = append([]string{lines[i]}, jsonLines...)
			candidate := strings.Join(jsonLines, "\n")
			if json.Unmarshal([]byte(candidate), &meta) == nil {
				_ = json.Unmarshal([]byte(candidate), &rawMeta)
				replyText = strings.TrimSpace(strings.Join(lines[:i], "\n"))
				parsed = true
				break
			}
		}
	}

	if !parsed {
		logrus.Warnf("[AGENT] Metadata parse failed, reply preview: %.100s", raw)
		return domain.DefaultDecision(strings.TrimSpace(replyText))
	}

	d := domain.Decision{
		ReplyText:         replyText,
		Sentiment:         meta.Sentiment,
		Intent:            meta.Intent,
		LeadScore:         meta.LeadScore,
		HumanHandoff:      meta.HumanHandoff,
		SaleDetected:      meta.SaleDetected,
		UnhandledQuestion: meta.UnhandledQuestion,
		Confidence:        meta.Confidence,
		Metadata:          rawMeta,
	}
	if d.Sentiment == "" {
		d.Sentiment = domain.SentimentNeutral
	}
	if d.Intent == "" {
		d.Intent = domain.IntentGeneral
	}
	return d
}
