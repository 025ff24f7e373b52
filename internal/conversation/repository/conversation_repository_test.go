package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"lead-responder/internal/conversation/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&domain.Lead{}, &domain.ConversationRecord{}, &domain.Setting{}))
	return db
}

func strPtr(s string) *string { return &s }

func TestUpsertLead(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(setupTestDB(t))

	first, err := repo.UpsertLead(ctx, "  Jane@Example.com ", "")
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", first.Address)
	assert.Nil(t, first.DisplayName)

	named, err := repo.UpsertLead(ctx, "jane@example.com", "Jane Doe")
	require.NoError(t, err)
	assert.Equal(t, first.ID, named.ID)
	require.NotNil(t, named.DisplayName)
	assert.Equal(t, "Jane Doe", *named.DisplayName)
	assert.False(t, named.LastInteraction.Before(first.LastInteraction))

	again, err := repo.UpsertLead(ctx, "JANE@example.com", "")
	require.NoError(t, err)
	require.NotNil(t, again.DisplayName)
	assert.Equal(t, "Jane Doe", *again.DisplayName, "empty name must not blank a known one")

	leads, err := repo.ListLeads(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, leads, 1)
}

func TestUpsertLead_EmptyAddress(t *testing.T) {
	repo := NewConversationRepository(setupTestDB(t))

	_, err := repo.UpsertLead(context.Background(), "  ", "Nobody")

	require.Error(t, err)
}

func TestStoreMessage_Idempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(setupTestDB(t))

	rec := &domain.ConversationRecord{
		MessageID: "m1",
		ThreadID:  "t1",
		Direction: domain.DirectionInbound,
		Sender:    "jane@example.com",
		Status:    domain.StatusAutomated,
		FullBody:  "hello",
	}
	require.NoError(t, repo.StoreMessage(ctx, rec))
	assert.NotEmpty(t, rec.ID)

	dup := &domain.ConversationRecord{
		MessageID: "m1",
		ThreadID:  "t1",
		Direction: domain.DirectionInbound,
		Status:    domain.StatusDrafted,
	}
	err := repo.StoreMessage(ctx, dup)
	assert.True(t, errors.Is(err, domain.ErrDuplicateMessage))

	has, err := repo.HasMessage(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, has)

	has, err = repo.HasMessage(ctx, "m2")
	require.NoError(t, err)
	assert.False(t, has)

	records, err := repo.ListRecords(ctx, domain.RecordFilter{}, 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, domain.StatusAutomated, records[0].Status)
}

func TestStoreMessage_ClampsSummary(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(setupTestDB(t))

	long := make([]rune, 300)
	for i := range long {
		long[i] = 'x'
	}
	require.NoError(t, repo.StoreMessage(ctx, &domain.ConversationRecord{
		MessageID: "m1",
		Direction: domain.DirectionInbound,
		Status:    domain.StatusAutomated,
		Summary:   string(long),
	}))

	records, err := repo.GetThreadHistory(ctx, "")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.LessOrEqual(t, len([]rune(records[0].Summary)), domain.MaxSummaryLength)
}

func TestGetThreadHistory_Ascending(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(setupTestDB(t))
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"m3", "m1", "m2"} {
		offset := map[string]time.Duration{"m1": 0, "m2": time.Minute, "m3": 2 * time.Minute}[id]
		require.NoError(t, repo.StoreMessage(ctx, &domain.ConversationRecord{
			MessageID: id,
			ThreadID:  "t1",
			Direction: domain.DirectionInbound,
			Status:    domain.StatusAutomated,
			CreatedAt: base.Add(offset),
			Subject:   string(rune('a' + i)),
		}))
	}
	require.NoError(t, repo.StoreMessage(ctx, &domain.ConversationRecord{
		MessageID: "other", ThreadID: "t2", Direction: domain.DirectionInbound, Status: domain.StatusAutomated,
	}))

	records, err := repo.GetThreadHistory(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "m1", records[0].MessageID)
	assert.Equal(t, "m2", records[1].MessageID)
	assert.Equal(t, "m3", records[2].MessageID)
}

func TestListRecords_Filters(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(setupTestDB(t))

	fixtures := []domain.ConversationRecord{
		{MessageID: "in-1", ThreadID: "t1", Direction: domain.DirectionInbound, Status: domain.StatusAutomated},
		{MessageID: "out-1", ThreadID: "t1", Direction: domain.DirectionOutbound, Status: domain.StatusAutomated},
		{MessageID: "in-2", ThreadID: "t2", Direction: domain.DirectionInbound, Status: domain.StatusDrafted, SafetyFlag: true},
	}
	for i := range fixtures {
		require.NoError(t, repo.StoreMessage(ctx, &fixtures[i]))
	}

	drafted, err := repo.ListRecords(ctx, domain.RecordFilter{Status: domain.StatusDrafted}, 10, 0)
	require.NoError(t, err)
	require.Len(t, drafted, 1)
	assert.Equal(t, "in-2", drafted[0].MessageID)

	outbound, err := repo.ListRecords(ctx, domain.RecordFilter{ThreadID: "t1", Direction: domain.DirectionOutbound}, 10, 0)
	require.NoError(t, err)
	require.Len(t, outbound, 1)
	assert.Equal(t, "out-1", outbound[0].MessageID)

	page, err := repo.ListRecords(ctx, domain.RecordFilter{}, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestWatermark(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(setupTestDB(t))

	_, found, err := repo.GetWatermark(ctx, domain.WatermarkKey)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.SetWatermark(ctx, domain.WatermarkKey, domain.WatermarkUninitialized))
	value, found, err := repo.GetWatermark(ctx, domain.WatermarkKey)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, domain.WatermarkUninitialized, value)

	require.NoError(t, repo.SetWatermark(ctx, domain.WatermarkKey, "100"))
	value, _, err = repo.GetWatermark(ctx, domain.WatermarkKey)
	require.NoError(t, err)
	assert.Equal(t, "100", value)
}

func TestAdvanceWatermark_CompareAndSet(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(setupTestDB(t))
	key := domain.WatermarkKey

	ok, err := repo.AdvanceWatermark(ctx, key, nil, "100")
	require.NoError(t, err)
	assert.True(t, ok, "insert when absent")

	ok, err = repo.AdvanceWatermark(ctx, key, nil, "150")
	require.NoError(t, err)
	assert.False(t, ok, "insert loses when a row already exists")

	ok, err = repo.AdvanceWatermark(ctx, key, strPtr("90"), "200")
	require.NoError(t, err)
	assert.False(t, ok, "stale expectation loses")

	ok, err = repo.AdvanceWatermark(ctx, key, strPtr("100"), "200")
	require.NoError(t, err)
	assert.True(t, ok)

	value, _, err := repo.GetWatermark(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "200", value)
}

func TestBackfillBody(t *testing.T) {
	ctx := context.Background()
	repo := NewConversationRepository(setupTestDB(t))

	require.NoError(t, repo.StoreMessage(ctx, &domain.ConversationRecord{
		MessageID: "legacy", Direction: domain.DirectionInbound, Status: domain.StatusAutomated,
	}))
	require.NoError(t, repo.StoreMessage(ctx, &domain.ConversationRecord{
		MessageID: "complete", Direction: domain.DirectionInbound, Status: domain.StatusAutomated, FullBody: "kept",
	}))
	require.NoError(t, repo.StoreMessage(ctx, &domain.ConversationRecord{
		MessageID: "reply", Direction: domain.DirectionOutbound, Status: domain.StatusAutomated,
	}))

	missing, err := repo.RecordsMissingBody(ctx, 10)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "legacy", missing[0].MessageID)

	updated, err := repo.BackfillBody(ctx, "legacy", "recovered body")
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = repo.BackfillBody(ctx, "complete", "overwrite attempt")
	require.NoError(t, err)
	assert.False(t, updated)

	missing, err = repo.RecordsMissingBody(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, missing)
}
