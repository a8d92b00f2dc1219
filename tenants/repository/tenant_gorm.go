package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aloqachat/aloqa/tenants/domain"
)

// --- Persistence Model ---

type tenantModel struct {
	ID                  string `gorm:"primaryKey"`
	Name                string `gorm:"not null"`
	AIPersona           string `gorm:"column:ai_persona;type:text"`
	MasterPrompt        string `gorm:"type:text"`
	Timezone            string `gorm:"default:'Asia/Tashkent'"`
	HumanHandoffEnabled bool   `gorm:"default:true"`
	OwnerTelegramChatID int64  `gorm:"column:owner_telegram_chat_id;default:0"`
	Active              bool   `gorm:"index:idx_tenants_active;default:true"`
	CreatedAt           time.Time `gorm:"not null"`
	UpdatedAt           time.Time `gorm:"not null"`
}

func (tenantModel) TableName() string {
	return "tenants"
}

// --- Repository Implementation ---

type TenantGormRepository struct {
	db *gorm.DB
}

func NewTenantGormRepository(db *gorm.DB) *TenantGormRepository {
	return &TenantGormRepository{db: db}
}

func (r *TenantGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&tenantModel{})
}

func (r *TenantGormRepository) Create(ctx context.Context, tenant *domain.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if tenant.CreatedAt.IsZero() {
		tenant.CreatedAt = now
	}
	tenant.UpdatedAt = now

	model := toTenantModel(tenant)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *TenantGormRepository) GetByID(ctx context.Context, id string) (*domain.Tenant, error) {
	var m tenantModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, domain.ErrTenantNotFound
		}
		return nil, err
	}
	return fromTenantModel(m), nil
}

func (r *TenantGormRepository) Update(ctx context.Context, tenant *domain.Tenant) error {
	tenant.UpdatedAt = time.Now().UTC()
	model := toTenantModel(tenant)

	result := r.db.WithContext(ctx).Model(&tenantModel{ID: tenant.ID}).Select("*").Updates(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrTenantNotFound
	}
	return nil
}

func (r *TenantGormRepository) ListActive(ctx context.Context) ([]*domain.Tenant, error) {
	var models []tenantModel
	if err := r.db.WithContext(ctx).Where("active = ?", true).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}

	tenants := make([]*domain.Tenant, len(models))
	for i, m := range models {
		tenants[i] = fromTenantModel(m)
	}
	return tenants, nil
}

// --- Mappers ---

func toTenantModel(t *domain.Tenant) tenantModel {
	return tenantModel{
		ID:                  t.ID,
		Name:                t.Name,
		AIPersona:           t.AIPersona,
		MasterPrompt:        t.MasterPrompt,
		Timezone:            t.Timezone,
		HumanHandoffEnabled: t.HumanHandoffEnabled,
		OwnerTelegramChatID: t.OwnerTelegramChatID,
		Active:              t.Active,
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
}

func fromTenantModel(m tenantModel) *domain.Tenant {
	return &domain.Tenant{
		ID:                  m.ID,
		Name:                m.Name,
		AIPersona:           m.AIPersona,
		MasterPrompt:        m.MasterPrompt,
		Timezone:            m.Timezone,
		HumanHandoffEnabled: m.HumanHandoffEnabled,
		OwnerTelegramChatID: m.OwnerTelegramChatID,
		Active:              m.Active,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}
