package repository

import (
	"context"

	"lead-responder/internal/conversation/domain"
)

// ConversationRepository persists leads, conversation records and the
// processing watermark.
type ConversationRepository interface {
	// UpsertLead creates the lead or refreshes its last interaction.
	// A non-empty displayName is stored; an empty one never blanks a known name.
	UpsertLead(ctx context.Context, address, displayName string) (*domain.Lead, error)
	// StoreMessage inserts a record. Returns domain.ErrDuplicateMessage on replay.
	StoreMessage(ctx context.Context, record *domain.ConversationRecord) error
	HasMessage(ctx context.Context, messageID string) (bool, error)
	GetThreadHistory(ctx context.Context, threadID string) ([]domain.ConversationRecord, error)

	GetWatermark(ctx context.Context, key string) (string, bool, error)
	SetWatermark(ctx context.Context, key, value string) error
	// AdvanceWatermark writes next only if the stored value still equals
	// expected. A nil expected means the row must not exist yet.
	AdvanceWatermark(ctx context.Context, key string, expected *string, next string) (bool, error)

	ListLeads(ctx context.Context, limit, offset int) ([]domain.Lead, error)
	ListRecords(ctx context.Context, filter domain.RecordFilter, limit, offset int) ([]domain.ConversationRecord, error)

	// Legacy migration support
	RecordsMissingBody(ctx context.Context, limit int) ([]domain.ConversationRecord, error)
	BackfillBody(ctx context.Context, messageID, body string) (bool, error)
}
