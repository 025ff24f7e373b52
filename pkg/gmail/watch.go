package gmail

import (
	"context"
	"fmt"
	"log"
	"time"

	"lead-responder/pkg/retry"

	"google.golang.org/api/gmail/v1"
)

type WatchResponse struct {
	HistoryID  uint64
	Expiration time.Time
}

// Watch sets up push notifications for the mailbox on a Pub/Sub topic.
func (s *Service) Watch(ctx context.Context, topicName string, labelIDs []string) (*WatchResponse, error) {
	req := &gmail.WatchRequest{
		TopicName:           topicName,
		LabelIds:            labelIDs,
		LabelFilterBehavior: "include",
	}

	log.Printf("[Gmail] Starting watch on topic %s for labels %v", topicName, labelIDs)
	resp, err := retry.Do(ctx, s.policy, func() (*gmail.WatchResponse, error) {
		return s.srv.Users.Watch(s.user, req).Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("unable to watch mailbox: %w", err)
	}
	log.Printf("[Gmail] Watch started. Expiration: %d, HistoryId: %d", resp.Expiration, resp.HistoryId)

	return &WatchResponse{
		HistoryID:  resp.HistoryId,
		Expiration: time.UnixMilli(resp.Expiration).UTC(),
	}, nil
}

// Stop stops push notifications for the mailbox
func (s *Service) Stop(ctx context.Context) error {
	_, err := retry.Do(ctx, s.policy, func() (struct{}, error) {
		return struct{}{}, s.srv.Users.Stop(s.user).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("unable to stop mailbox watch: %w", err)
	}
	return nil
}
