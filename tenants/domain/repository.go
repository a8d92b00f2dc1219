package domain

import "context"

type TenantRepository interface {
	Create(ctx context.Context, tenant *Tenant) error
	GetByID(ctx context.Context, id string) (*Tenant, error)
	Update(ctx context.Context, tenant *Tenant) error
	ListActive(ctx context.Context) ([]*Tenant, error)
}

type AccountRepository interface {
	Create(ctx context.Context, account *ChannelAccount) error
	GetByID(ctx context.Context, id string) (*ChannelAccount, error)
	GetByExternalID(ctx context.Context, channel, externalID string) (*ChannelAccount, error)
	ListByTenant(ctx context.Context, tenantID string) ([]*ChannelAccount, error)
	ListConnected(ctx context.Context) ([]*ChannelAccount, error)
	UpdateStatus(ctx context.Context, id string, status AccountStatus, lastError string) error
	Delete(ctx context.Context, id string) error
}

type QuestionRepository interface {
	// RecordHit upserts the cluster for (tenant, topic), bumps the hit
	// count and promotes it to pending_review past the threshold.
	// Returns the stored question after the update.
	RecordHit(ctx context.Context, tenantID, clusterTopic, sampleText string) (*FrequentQuestion, error)
	ListByStatus(ctx context.Context, tenantID, status string) ([]*FrequentQuestion, error)
	SetStatus(ctx context.Context, id, status string) error
}
