package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/aloqachat/aloqa/channels"
	"github.com/aloqachat/aloqa/registry"
	"github.com/aloqachat/aloqa/tenants/domain"
)

// TenantDirectory is the tenant lookup the alerter needs.
type TenantDirectory interface {
	GetTenant(ctx context.Context, id string) (*domain.Tenant, error)
}

// Alerter pushes operator alerts to the business owner's private chat via
// the tenant's own bot. Tenants without an owner chat configured are
// skipped silently.
type Alerter struct {
	tenants  TenantDirectory
	registry *registry.AccountRegistry
	manager  *Manager
}

func NewAlerter(tenants TenantDirectory, reg *registry.AccountRegistry, manager *Manager) *Alerter {
	return &Alerter{tenants: tenants, registry: reg, manager: manager}
}

func (a *Alerter) AlertOwner(ctx context.Context, tenantID, text string) error {
	tenant, err := a.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	if tenant.OwnerTelegramChatID == 0 {
		return nil
	}

	bot, err := a.botForTenant(tenantID)
	if err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(tenant.OwnerTelegramChatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := bot.Send(msg); err != nil {
		return fmt.Errorf("owner alert: %w", err)
	}
	return nil
}

func (a *Alerter) botForTenant(tenantID string) (*tgbotapi.BotAPI, error) {
	for _, account := range a.registry.ByTenant(tenantID) {
		if account.Channel == channels.ChannelTelegram {
			return a.manager.bot(account.AccessToken)
		}
	}
	return nil, fmt.Errorf("no connected telegram account for tenant %s", tenantID)
}
