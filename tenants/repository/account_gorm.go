package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aloqachat/aloqa/pkg/crypto"
	"github.com/aloqachat/aloqa/tenants/domain"
)

// --- Persistence Model ---

type accountModel struct {
	ID          string `gorm:"primaryKey"`
	TenantID    string `gorm:"index:idx_accounts_tenant;not null"`
	Channel     string `gorm:"uniqueIndex:idx_accounts_external,priority:1;not null"`
	ExternalID  string `gorm:"uniqueIndex:idx_accounts_external,priority:2;not null"`
	DisplayName string
	PageID      string
	Credential  string `gorm:"type:text"` // encrypted at rest
	Status      string `gorm:"default:'disconnected'"`
	LastError   string
	CreatedAt   time.Time `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

func (accountModel) TableName() string {
	return "channel_accounts"
}

// --- Repository Implementation ---

type AccountGormRepository struct {
	db *gorm.DB
}

func NewAccountGormRepository(db *gorm.DB) *AccountGormRepository {
	return &AccountGormRepository{db: db}
}

func (r *AccountGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&accountModel{})
}

func (r *AccountGormRepository) Create(ctx context.Context, account *domain.ChannelAccount) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	if account.Status == "" {
		account.Status = domain.StatusDisconnected
	}

	model, err := toAccountModel(account)
	if err != nil {
		return err
	}

	result := r.db.WithContext(ctx).Create(&model)
	if result.Error != nil {
		if strings.Contains(result.Error.Error(), "UNIQUE constraint failed") || strings.Contains(result.Error.Error(), "duplicate key value") {
			return domain.ErrDuplicateAccount
		}
		return result.Error
	}
	return nil
}

func (r *AccountGormRepository) GetByID(ctx context.Context, id string) (*domain.ChannelAccount, error) {
	var m accountModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return fromAccountModel(m)
}

func (r *AccountGormRepository) GetByExternalID(ctx context.Context, channel, externalID string) (*domain.ChannelAccount, error) {
	var m accountModel
	if err := r.db.WithContext(ctx).Where("channel = ? AND external_id = ?", channel, externalID).First(&m).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	return fromAccountModel(m)
}

func (r *AccountGormRepository) ListByTenant(ctx context.Context, tenantID string) ([]*domain.ChannelAccount, error) {
	var models []accountModel
	if err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	return fromAccountModels(models)
}

func (r *AccountGormRepository) ListConnected(ctx context.Context) ([]*domain.ChannelAccount, error) {
	var models []accountModel
	if err := r.db.WithContext(ctx).Where("status = ?", string(domain.StatusConnected)).Find(&models).Error; err != nil {
		return nil, err
	}
	return fromAccountModels(models)
}

func (r *AccountGormRepository) UpdateStatus(ctx context.Context, id string, status domain.AccountStatus, lastError string) error {
	result := r.db.WithContext(ctx).Model(&accountModel{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     string(status),
		"last_error": lastError,
		"updated_at": time.Now().UTC(),
	})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountGormRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&accountModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

// --- Mappers ---

func toAccountModel(a *domain.ChannelAccount) (accountModel, error) {
	encrypted, err := crypto.Encrypt(a.Credential)
	if err != nil {
		return accountModel{}, fmt.Errorf("encrypt credential: %w", err)
	}

	return accountModel{
		ID:          a.ID,
		TenantID:    a.TenantID,
		Channel:     a.Channel,
		ExternalID:  a.ExternalID,
		DisplayName: a.DisplayName,
		PageID:      a.PageID,
		Credential:  encrypted,
		Status:      string(a.Status),
		LastError:   a.LastError,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}, nil
}

func fromAccountModel(m accountModel) (*domain.ChannelAccount, error) {
	credential, err := crypto.Decrypt(m.Credential)
	if err != nil {
		return nil, fmt.Errorf("decrypt credential for account %s: %w", m.ID, err)
	}

	return &domain.ChannelAccount{
		ID:          m.ID,
		TenantID:    m.TenantID,
		Channel:     m.Channel,
		ExternalID:  m.ExternalID,
		DisplayName: m.DisplayName,
		PageID:      m.PageID,
		Credential:  credential,
		Status:      domain.AccountStatus(m.Status),
		LastError:   m.LastError,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}, nil
}

func fromAccountModels(models []accountModel) ([]*domain.ChannelAccount, error) {
	accounts := make([]*domain.ChannelAccount, len(models))
	for i, m := range models {
		a, err := fromAccountModel(m)
		if err != nil {
			return nil, err
		}
		accounts[i] = a
	}
	return accounts, nil
}
