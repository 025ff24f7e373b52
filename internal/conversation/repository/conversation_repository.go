package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"lead-responder/internal/conversation/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// conversationRepository implements ConversationRepository interface
type conversationRepository struct {
	db *gorm.DB
}

// NewConversationRepository creates a new instance of conversationRepository
func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &conversationRepository{
		db: db,
	}
}

func (r *conversationRepository) UpsertLead(ctx context.Context, address, displayName string) (*domain.Lead, error) {
	address = domain.NormalizeAddress(address)
	if address == "" {
		return nil, fmt.Errorf("lead address is empty")
	}
	displayName = strings.TrimSpace(displayName)

	now := time.Now().UTC()
	lead := domain.Lead{
		ID:              uuid.New().String(),
		Address:         address,
		LastInteraction: now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	updates := map[string]interface{}{
		"last_interaction": now,
		"updated_at":       now,
	}
	if displayName != "" {
		lead.DisplayName = &displayName
		updates["display_name"] = displayName
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.Assignments(updates),
	}).Create(&lead).Error
	if err != nil {
		return nil, fmt.Errorf("unable to upsert lead: %w", err)
	}

	var stored domain.Lead
	if err := r.db.WithContext(ctx).Where("address = ?", address).First(&stored).Error; err != nil {
		return nil, fmt.Errorf("unable to load lead: %w", err)
	}
	return &stored, nil
}

func (r *conversationRepository) StoreMessage(ctx context.Context, record *domain.ConversationRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	record.Summary = domain.ClampSummary(record.Summary)

	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}},
		DoNothing: true,
	}).Create(record)
	if result.Error != nil {
		return fmt.Errorf("unable to store message %s: %w", record.MessageID, result.Error)
	}
	if result.RowsAffected == 0 {
		return domain.ErrDuplicateMessage
	}
	return nil
}

func (r *conversationRepository) HasMessage(ctx context.Context, messageID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.ConversationRecord{}).
		Where("message_id = ?", messageID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *conversationRepository) GetThreadHistory(ctx context.Context, threadID string) ([]domain.ConversationRecord, error) {
	var records []domain.ConversationRecord
	err := r.db.WithContext(ctx).
		Where("thread_id = ?", threadID).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *conversationRepository) GetWatermark(ctx context.Context, key string) (string, bool, error) {
	var setting domain.Setting
	err := r.db.WithContext(ctx).Where(map[string]interface{}{"key": key}).First(&setting).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return setting.Value, true, nil
}

func (r *conversationRepository) SetWatermark(ctx context.Context, key, value string) error {
	setting := domain.Setting{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&setting).Error
}

func (r *conversationRepository) AdvanceWatermark(ctx context.Context, key string, expected *string, next string) (bool, error) {
	now := time.Now().UTC()

	if expected == nil {
		setting := domain.Setting{Key: key, Value: next, UpdatedAt: now}
		result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoNothing: true,
		}).Create(&setting)
		if result.Error != nil {
			return false, result.Error
		}
		return result.RowsAffected > 0, nil
	}

	result := r.db.WithContext(ctx).Model(&domain.Setting{}).
		Where(map[string]interface{}{"key": key, "value": *expected}).
		Updates(map[string]interface{}{"value": next, "updated_at": now})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *conversationRepository) ListLeads(ctx context.Context, limit, offset int) ([]domain.Lead, error) {
	var leads []domain.Lead
	err := r.db.WithContext(ctx).
		Order("last_interaction DESC").
		Limit(limit).
		Offset(offset).
		Find(&leads).Error
	if err != nil {
		return nil, err
	}
	return leads, nil
}

func (r *conversationRepository) ListRecords(ctx context.Context, filter domain.RecordFilter, limit, offset int) ([]domain.ConversationRecord, error) {
	query := r.db.WithContext(ctx).Model(&domain.ConversationRecord{})
	if filter.ThreadID != "" {
		query = query.Where("thread_id = ?", filter.ThreadID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Direction != "" {
		query = query.Where("direction = ?", filter.Direction)
	}

	var records []domain.ConversationRecord
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *conversationRepository) RecordsMissingBody(ctx context.Context, limit int) ([]domain.ConversationRecord, error) {
	var records []domain.ConversationRecord
	err := r.db.WithContext(ctx).
		Where("direction = ?", domain.DirectionInbound).
		Where("full_body = ? OR full_body IS NULL", "").
		Order("created_at ASC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// BackfillBody fills full_body for a record that has none. Records that
// already carry a body are left untouched.
func (r *conversationRepository) BackfillBody(ctx context.Context, messageID, body string) (bool, error) {
	result := r.db.WithContext(ctx).Model(&domain.ConversationRecord{}).
		Where("message_id = ?", messageID).
		Where("full_body = ? OR full_body IS NULL", "").
		Update("full_body", body)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
