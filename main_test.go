package main

import (
	"context"
	"errors"
	"testing"

	"lead-responder/internal/conversation/domain"
	"lead-responder/internal/conversation/repository"
	"lead-responder/pkg/gmail"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeFetcher struct {
	bodies map[string]string
	calls  int
}

func (f *fakeFetcher) FetchFull(ctx context.Context, messageID string) (*gmail.Message, error) {
	f.calls++
	body, ok := f.bodies[messageID]
	if !ok {
		return nil, errors.New("not found")
	}
	return &gmail.Message{ID: messageID, Body: body}, nil
}

func newRepo(t *testing.T) repository.ConversationRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&domain.ConversationRecord{}))
	return repository.NewConversationRepository(db)
}

func TestBackfillBodies(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	for _, r := range []domain.ConversationRecord{
		{MessageID: "a", ThreadID: "t", Direction: domain.DirectionInbound, Status: domain.StatusAutomated},
		{MessageID: "b", ThreadID: "t", Direction: domain.DirectionInbound, Status: domain.StatusAutomated},
		{MessageID: "gone", ThreadID: "t", Direction: domain.DirectionInbound, Status: domain.StatusAutomated},
		{MessageID: "empty", ThreadID: "t", Direction: domain.DirectionInbound, Status: domain.StatusAutomated},
		{MessageID: "kept", ThreadID: "t", Direction: domain.DirectionInbound, Status: domain.StatusAutomated, FullBody: "original"},
		{MessageID: "out", ThreadID: "t", Direction: domain.DirectionOutbound, Status: domain.StatusAutomated},
	} {
		record := r
		require.NoError(t, repo.StoreMessage(ctx, &record))
	}

	fetcher := &fakeFetcher{bodies: map[string]string{
		"a":     "body a",
		"b":     "body b",
		"empty": "  ",
		"kept":  "should not be used",
	}}

	report, err := backfillBodies(ctx, repo, fetcher, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, 2, report.Failed)

	history, err := repo.GetThreadHistory(ctx, "t")
	require.NoError(t, err)
	bodies := map[string]string{}
	for _, r := range history {
		bodies[r.MessageID] = r.FullBody
	}
	assert.Equal(t, "body a", bodies["a"])
	assert.Equal(t, "body b", bodies["b"])
	assert.Equal(t, "", bodies["gone"])
	assert.Equal(t, "original", bodies["kept"])
	assert.Equal(t, "", bodies["out"])

	again, err := backfillBodies(ctx, repo, fetcher, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Updated)
}

func TestTopicNames(t *testing.T) {
	assert.Equal(t, "gmail-updates", shortTopicName("projects/acme/topics/gmail-updates"))
	assert.Equal(t, "gmail-updates", shortTopicName("gmail-updates"))

	assert.Equal(t, "projects/acme/topics/gmail-updates", fullTopicName("acme", "gmail-updates"))
	assert.Equal(t, "projects/acme/topics/gmail-updates", fullTopicName("other", "projects/acme/topics/gmail-updates"))
	assert.Equal(t, "", fullTopicName("acme", ""))
}
