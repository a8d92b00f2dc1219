package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aloqachat/aloqa/conversation"
)

// --- Persistence Models ---

type conversationModel struct {
	ID            string `gorm:"primaryKey"`
	TenantID      string `gorm:"index:idx_conversations_contact,priority:1;not null"`
	ContactID     string `gorm:"index:idx_conversations_contact,priority:2;not null"`
	ContactName   string
	Channel       string `gorm:"index:idx_conversations_channel"`
	LastIntent    string
	LastSentiment string
	LeadScore     int        `gorm:"default:0"`
	NeedsHuman    bool       `gorm:"index:idx_conversations_needs_human;default:false"`
	MessageCount  int        `gorm:"default:0"`
	LastMessageAt *time.Time `gorm:"column:last_message_at"`
	CreatedAt     time.Time  `gorm:"not null"`
	UpdatedAt     time.Time  `gorm:"not null"`
}

func (conversationModel) TableName() string {
	return "conversations"
}

type archivedMessageModel struct {
	ID             string `gorm:"primaryKey"`
	ConversationID string `gorm:"index:idx_messages_conversation;not null"`
	Role           string `gorm:"not null"`
	Type           string `gorm:"default:'text'"`
	Content        string `gorm:"type:text"`
	CreatedAt      time.Time `gorm:"not null"`
}

func (archivedMessageModel) TableName() string {
	return "conversation_messages"
}

// --- Repository Implementation ---

type ArchiveGormRepository struct {
	db *gorm.DB
}

func NewArchiveGormRepository(db *gorm.DB) *ArchiveGormRepository {
	return &ArchiveGormRepository{db: db}
}

func (r *ArchiveGormRepository) InitSchema(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&conversationModel{}, &archivedMessageModel{})
}

func (r *ArchiveGormRepository) RecordTurn(ctx context.Context, tenantID, contactID, channel, role, msgType, content string, update conversation.TurnUpdate) error {
	now := time.Now().UTC()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m conversationModel
		err := tx.Where("tenant_id = ? AND contact_id = ?", tenantID, contactID).First(&m).Error
		if err == gorm.ErrRecordNotFound {
			m = conversationModel{
				ID:        uuid.New().String(),
				TenantID:  tenantID,
				ContactID: contactID,
				Channel:   channel,
				CreatedAt: now,
			}
		} else if err != nil {
			return err
		}

		if update.ContactName != "" {
			m.ContactName = update.ContactName
		}
		if update.Intent != "" {
			m.LastIntent = update.Intent
		}
		if update.Sentiment != "" {
			m.LastSentiment = update.Sentiment
		}
		if update.LeadScore > 0 {
			m.LeadScore = update.LeadScore
		}
		m.MessageCount++
		m.LastMessageAt = &now
		m.UpdatedAt = now

		if err := tx.Save(&m).Error; err != nil {
			return err
		}

		msg := archivedMessageModel{
			ID:             uuid.New().String(),
			ConversationID: m.ID,
			Role:           role,
			Type:           msgType,
			Content:        content,
			CreatedAt:      now,
		}
		return tx.Create(&msg).Error
	})
}

func (r *ArchiveGormRepository) SetNeedsHuman(ctx context.Context, tenantID, contactID string, needsHuman bool) error {
	result := r.db.WithContext(ctx).Model(&conversationModel{}).
		Where("tenant_id = ? AND contact_id = ?", tenantID, contactID).
		Updates(map[string]interface{}{
			"needs_human": needsHuman,
			"updated_at":  time.Now().UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return conversation.ErrConversationNotFound
	}
	return nil
}

func (r *ArchiveGormRepository) GetConversation(ctx context.Context, tenantID, contactID string) (*conversation.Record, error) {
	var m conversationModel
	if err := r.db.WithContext(ctx).Where("tenant_id = ? AND contact_id = ?", tenantID, contactID).First(&m).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, conversation.ErrConversationNotFound
		}
		return nil, err
	}
	return fromConversationModel(m), nil
}

func (r *ArchiveGormRepository) ListConversations(ctx context.Context, filter conversation.RecordFilter) ([]*conversation.Record, error) {
	var models []conversationModel
	query := r.db.WithContext(ctx).Model(&conversationModel{})

	if filter.TenantID != "" {
		query = query.Where("tenant_id = ?", filter.TenantID)
	}
	if filter.Channel != "" {
		query = query.Where("channel = ?", filter.Channel)
	}
	if filter.NeedsHuman != nil {
		query = query.Where("needs_human = ?", *filter.NeedsHuman)
	}

	query = query.Order("last_message_at DESC")

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}

	records := make([]*conversation.Record, len(models))
	for i, m := range models {
		records[i] = fromConversationModel(m)
	}
	return records, nil
}

func (r *ArchiveGormRepository) ListMessages(ctx context.Context, conversationID string, limit int) ([]*conversation.ArchivedMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var models []archivedMessageModel
	if err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	msgs := make([]*conversation.ArchivedMessage, len(models))
	for i, m := range models {
		msgs[len(models)-1-i] = &conversation.ArchivedMessage{
			ID:             m.ID,
			ConversationID: m.ConversationID,
			Role:           m.Role,
			Type:           m.Type,
			Content:        m.Content,
			CreatedAt:      m.CreatedAt,
		}
	}
	return msgs, nil
}

// --- Mappers ---

func fromConversationModel(m conversationModel) *conversation.Record {
	return &conversation.Record{
		ID:            m.ID,
		TenantID:      m.TenantID,
		ContactID:     m.ContactID,
		ContactName:   m.ContactName,
		Channel:       m.Channel,
		LastIntent:    m.LastIntent,
		LastSentiment: m.LastSentiment,
		LeadScore:     m.LeadScore,
		NeedsHuman:    m.NeedsHuman,
		MessageCount:  m.MessageCount,
		LastMessageAt: m.LastMessageAt,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}
