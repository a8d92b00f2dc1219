package application

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/aloqachat/aloqa/channels"
	"github.com/aloqachat/aloqa/registry"
	"github.com/aloqachat/aloqa/tenants/domain"
)

// Service coordinates tenant and channel-account lifecycle. Connecting an
// account both persists it (credential encrypted at rest) and publishes it
// to the in-memory account registry the webhook path resolves against.
type Service struct {
	tenants  domain.TenantRepository
	accounts domain.AccountRepository
	registry *registry.AccountRegistry
}

func NewService(tenants domain.TenantRepository, accounts domain.AccountRepository, reg *registry.AccountRegistry) *Service {
	return &Service{tenants: tenants, accounts: accounts, registry: reg}
}

func (s *Service) CreateTenant(ctx context.Context, tenant *domain.Tenant) error {
	if err := tenant.Validate(); err != nil {
		return fmt.Errorf("invalid tenant: %w", err)
	}
	if tenant.Timezone == "" {
		tenant.Timezone = "Asia/Tashkent"
	}
	tenant.Active = true
	return s.tenants.Create(ctx, tenant)
}

func (s *Service) GetTenant(ctx context.Context, id string) (*domain.Tenant, error) {
	return s.tenants.GetByID(ctx, id)
}

func (s *Service) UpdateTenant(ctx context.Context, tenant *domain.Tenant) error {
	if err := tenant.Validate(); err != nil {
		return fmt.Errorf("invalid tenant: %w", err)
	}
	return s.tenants.Update(ctx, tenant)
}

// RegisterAccount stores a new channel account in the otp_sent state. The
// account starts routing traffic only after ConfirmAccount.
func (s *Service) RegisterAccount(ctx context.Context, account *domain.ChannelAccount) error {
	if err := account.Validate(); err != nil {
		return fmt.Errorf("invalid account: %w", err)
	}
	if _, err := s.tenants.GetByID(ctx, account.TenantID); err != nil {
		return err
	}

	account.Status = domain.StatusOTPSent
	if err := s.accounts.Create(ctx, account); err != nil {
		return err
	}

	logrus.WithFields(logrus.Fields{
		"tenant_id":   account.TenantID,
		"channel":     account.Channel,
		"external_id": account.ExternalID,
	}).Info("[TENANTS] Channel account registered, awaiting confirmation")
	return nil
}

// ConfirmAccount moves an account to connected and makes it routable.
func (s *Service) ConfirmAccount(ctx context.Context, accountID string) (*domain.ChannelAccount, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if err := s.accounts.UpdateStatus(ctx, accountID, domain.StatusConnected, ""); err != nil {
		return nil, err
	}
	account.Status = domain.StatusConnected

	s.publish(account)
	return account, nil
}

// MarkAccountError records a delivery or auth failure without removing the
// account from the registry.
func (s *Service) MarkAccountError(ctx context.Context, accountID string, cause error) error {
	return s.accounts.UpdateStatus(ctx, accountID, domain.StatusError, cause.Error())
}

// DisconnectAccount stops routing for an account and keeps its record.
func (s *Service) DisconnectAccount(ctx context.Context, accountID string) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	if err := s.accounts.UpdateStatus(ctx, accountID, domain.StatusDisconnected, ""); err != nil {
		return err
	}
	s.registry.Unregister(channels.Channel(account.Channel), account.ExternalID)
	return nil
}

func (s *Service) ListAccounts(ctx context.Context, tenantID string) ([]*domain.ChannelAccount, error) {
	return s.accounts.ListByTenant(ctx, tenantID)
}

// PopulateRegistry loads every connected account into the registry. Called
// once at startup before the webhook server begins accepting traffic.
func (s *Service) PopulateRegistry(ctx context.Context) error {
	accounts, err := s.accounts.ListConnected(ctx)
	if err != nil {
		return fmt.Errorf("load connected accounts: %w", err)
	}

	for _, account := range accounts {
		s.publish(account)
	}

	logrus.Infof("[TENANTS] Registry populated with %d connected account(s)", len(accounts))
	return nil
}

func (s *Service) publish(account *domain.ChannelAccount) {
	s.registry.Register(registry.AccountInfo{
		ExternalID:  account.ExternalID,
		TenantID:    account.TenantID,
		Channel:     channels.Channel(account.Channel),
		AccessToken: account.Credential,
		DisplayName: account.DisplayName,
		PageID:      account.PageID,
	})
}
