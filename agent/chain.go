package agent

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/aloqachat/aloqa/agent/domain"
)

// Chain tries providers in order until one succeeds. A single flaky backend
// does not take the whole pipeline down.
type Chain struct {
	providers []domain.ChatProvider
}

func NewChain(providers ...domain.ChatProvider) *Chain {
	return &Chain{providers: providers}
}

func (c *Chain) Name() string {
	return "chain"
}

func (c *Chain) Chat(ctx context.Context, req domain.ChatRequest) (domain.ChatResponse, error) {
	if len(c.providers) == 0 {
		return domain.ChatResponse{}, fmt.Errorf("no chat providers configured")
	}

	var lastErr error
	for i, p := range c.providers {
		resp, err := p.Chat(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if i < len(c.providers)-1 {
			logrus.WithError(err).Warnf("[AGENT] Provider %s failed, trying %s", p.Name(), c.providers[i+1].Name())
		}
	}
	return domain.ChatResponse{}, fmt.Errorf("all providers failed: %w", lastErr)
}
