package watch

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"lead-responder/internal/conversation/domain"
	"lead-responder/internal/conversation/repository"
	"lead-responder/pkg/gmail"
)

// Watcher registers Gmail push notifications.
type Watcher interface {
	Watch(ctx context.Context, topicName string, labelIDs []string) (*gmail.WatchResponse, error)
}

// Registrar registers the mailbox watch and seeds the watermark the first
// time, so the first notification already has a baseline.
type Registrar struct {
	watcher Watcher
	store   repository.ConversationRepository
	topic   string
	labels  []string
	key     string
}

func NewRegistrar(watcher Watcher, store repository.ConversationRepository, topic string, labels []string) *Registrar {
	return &Registrar{
		watcher: watcher,
		store:   store,
		topic:   topic,
		labels:  labels,
		key:     domain.WatermarkKey,
	}
}

func (r *Registrar) RegisterWatch(ctx context.Context) (*gmail.WatchResponse, error) {
	if r.topic == "" {
		return nil, fmt.Errorf("no pubsub topic configured")
	}

	resp, err := r.watcher.Watch(ctx, r.topic, r.labels)
	if err != nil {
		return nil, err
	}

	if err := r.seedWatermark(ctx, resp.HistoryID); err != nil {
		return nil, err
	}
	return resp, nil
}

func (r *Registrar) seedWatermark(ctx context.Context, historyID uint64) error {
	value, found, err := r.store.GetWatermark(ctx, r.key)
	if err != nil {
		return fmt.Errorf("unable to load watermark: %w", err)
	}

	trimmed := strings.TrimSpace(value)
	if found && trimmed != "" && trimmed != domain.WatermarkUninitialized {
		if _, err := strconv.ParseUint(trimmed, 10, 64); err == nil {
			return nil
		}
	}

	var expected *string
	if found {
		expected = &value
	}
	ok, err := r.store.AdvanceWatermark(ctx, r.key, expected, strconv.FormatUint(historyID, 10))
	if err != nil {
		return fmt.Errorf("unable to seed watermark: %w", err)
	}
	if ok {
		log.Printf("[Watch] Seeded watermark at %d", historyID)
	} else {
		log.Printf("[Watch] Watermark was set concurrently, keeping it")
	}
	return nil
}
