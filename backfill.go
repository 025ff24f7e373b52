package main

import (
	"context"
	"log"
	"strings"

	"lead-responder/internal/conversation/repository"
	"lead-responder/pkg/gmail"
)

type messageFetcher interface {
	FetchFull(ctx context.Context, messageID string) (*gmail.Message, error)
}

type backfillReport struct {
	Updated int
	Failed  int
}

// backfillBodies refetches the plain-text body of inbound records stored
// before full bodies were kept. Records that fail are skipped so one bad
// message cannot stall the run.
func backfillBodies(ctx context.Context, repo repository.ConversationRepository, fetcher messageFetcher, batch int) (backfillReport, error) {
	var report backfillReport
	if batch <= 0 {
		batch = 100
	}
	failed := make(map[string]bool)

	for {
		records, err := repo.RecordsMissingBody(ctx, batch+len(failed))
		if err != nil {
			return report, err
		}

		progressed := false
		for _, record := range records {
			if failed[record.MessageID] {
				continue
			}
			if err := ctx.Err(); err != nil {
				return report, err
			}

			msg, err := fetcher.FetchFull(ctx, record.MessageID)
			if err != nil {
				log.Printf("[Backfill] Unable to fetch %s: %v", record.MessageID, err)
				failed[record.MessageID] = true
				report.Failed++
				continue
			}
			if strings.TrimSpace(msg.Body) == "" {
				log.Printf("[Backfill] Message %s has no text body", record.MessageID)
				failed[record.MessageID] = true
				report.Failed++
				continue
			}

			updated, err := repo.BackfillBody(ctx, record.MessageID, msg.Body)
			if err != nil {
				return report, err
			}
			if updated {
				report.Updated++
				progressed = true
			}
		}

		if !progressed {
			return report, nil
		}
	}
}
