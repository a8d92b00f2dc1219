package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aloqachat/aloqa/tenants/domain"
)

// --- Persistence Model ---

type questionModel struct {
	ID           string `gorm:"primaryKey"`
	TenantID     string `gorm:"uniqueIndex:idx_questions_cluster,priority:1;not null"`
	ClusterTopic string `gorm:"uniqueIndex:idx_questions_cluster,priority:2;not null"`
	SampleText   string `gorm:"type:text"`
	HitCount     int    `gorm:"default:0"`
	Status       string `gorm:"index:idx_questions_status;default:'tracking'"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
}

func (questionModel) TableName() string {
	return "frequent_questions"
}

// --- Repository Implementation ---

type QuestionGormRepository struct {
	db *gorm.DB
}

func NewQuestionGormRepository(db *gorm.DB) *QuestionGormRepository {
	return &QuestionGormRepository{db: db}
}

func (r *QuestionGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&questionModel{})
}

func (r *QuestionGormRepository) RecordHit(ctx context.Context, tenantID, clusterTopic, sampleText string) (*domain.FrequentQuestion, error) {
	now := time.Now().UTC()
	var out *domain.FrequentQuestion

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m questionModel
		err := tx.Where("tenant_id = ? AND cluster_topic = ?", tenantID, clusterTopic).First(&m).Error
		if err == gorm.ErrRecordNotFound {
			m = questionModel{
				ID:           uuid.New().String(),
				TenantID:     tenantID,
				ClusterTopic: clusterTopic,
				Status:       domain.QuestionTracking,
				CreatedAt:    now,
			}
		} else if err != nil {
			return err
		}

		m.HitCount++
		if sampleText != "" {
			m.SampleText = sampleText
		}
		if m.HitCount >= domain.ReviewThreshold && m.Status == domain.QuestionTracking {
			m.Status = domain.QuestionPendingReview
		}
		m.UpdatedAt = now

		if err := tx.Save(&m).Error; err != nil {
			return err
		}
		out = fromQuestionModel(m)
		return nil
	})
	return out, err
}

func (r *QuestionGormRepository) ListByStatus(ctx context.Context, tenantID, status string) ([]*domain.FrequentQuestion, error) {
	var models []questionModel
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if err := query.Order("hit_count DESC").Find(&models).Error; err != nil {
		return nil, err
	}

	questions := make([]*domain.FrequentQuestion, len(models))
	for i, m := range models {
		questions[i] = fromQuestionModel(m)
	}
	return questions, nil
}

func (r *QuestionGormRepository) SetStatus(ctx context.Context, id, status string) error {
	result := r.db.WithContext(ctx).Model(&questionModel{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	})
	return result.Error
}

// --- Mappers ---

func fromQuestionModel(m questionModel) *domain.FrequentQuestion {
	return &domain.FrequentQuestion{
		ID:           m.ID,
		TenantID:     m.TenantID,
		ClusterTopic: m.ClusterTopic,
		SampleText:   m.SampleText,
		HitCount:     m.HitCount,
		Status:       m.Status,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
