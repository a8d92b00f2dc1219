package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aloqachat/aloqa/automation"
)

// --- Persistence Model ---

type flowModel struct {
	ID             string `gorm:"primaryKey"`
	TenantID       string `gorm:"index:idx_flows_tenant;not null"`
	Name           string `gorm:"not null"`
	TriggerType    string `gorm:"default:'keyword'"`
	TriggerKeyword string
	Active         bool   `gorm:"index:idx_flows_active;default:true"`
	GraphJSON      string `gorm:"column:graph_json;type:text"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

func (flowModel) TableName() string {
	return "automation_flows"
}

// --- Repository Implementation ---

type FlowGormRepository struct {
	db *gorm.DB
}

func NewFlowGormRepository(db *gorm.DB) *FlowGormRepository {
	return &FlowGormRepository{db: db}
}

func (r *FlowGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&flowModel{})
}

func (r *FlowGormRepository) Create(ctx context.Context, flow *automation.Flow) error {
	if flow.ID == "" {
		flow.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if flow.CreatedAt.IsZero() {
		flow.CreatedAt = now
	}
	flow.UpdatedAt = now

	model := toFlowModel(flow)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *FlowGormRepository) GetByID(ctx context.Context, id string) (*automation.Flow, error) {
	var m flowModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, automation.ErrFlowNotFound
		}
		return nil, err
	}
	return fromFlowModel(m), nil
}

func (r *FlowGormRepository) ListActive(ctx context.Context, tenantID string) ([]*automation.Flow, error) {
	var models []flowModel
	if err := r.db.WithContext(ctx).Where("tenant_id = ? AND active = ?", tenantID, true).Find(&models).Error; err != nil {
		return nil, err
	}

	flows := make([]*automation.Flow, len(models))
	for i, m := range models {
		flows[i] = fromFlowModel(m)
	}
	return flows, nil
}

func (r *FlowGormRepository) Update(ctx context.Context, flow *automation.Flow) error {
	flow.UpdatedAt = time.Now().UTC()
	model := toFlowModel(flow)

	result := r.db.WithContext(ctx).Model(&flowModel{ID: flow.ID}).Select("*").Updates(&model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return automation.ErrFlowNotFound
	}
	return nil
}

func (r *FlowGormRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&flowModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return automation.ErrFlowNotFound
	}
	return nil
}

// --- Mappers ---

func toFlowModel(f *automation.Flow) flowModel {
	return flowModel{
		ID:             f.ID,
		TenantID:       f.TenantID,
		Name:           f.Name,
		TriggerType:    f.TriggerType,
		TriggerKeyword: f.TriggerKeyword,
		Active:         f.Active,
		GraphJSON:      f.GraphJSON,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

func fromFlowModel(m flowModel) *automation.Flow {
	return &automation.Flow{
		ID:             m.ID,
		TenantID:       m.TenantID,
		Name:           m.Name,
		TriggerType:    m.TriggerType,
		TriggerKeyword: m.TriggerKeyword,
		Active:         m.Active,
		GraphJSON:      m.GraphJSON,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
