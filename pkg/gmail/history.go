package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"lead-responder/pkg/retry"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
)

// DiffSince lists ids of messages added after historyID, across all pages,
// de-duplicated in first-seen order.
func (s *Service) DiffSince(ctx context.Context, historyID uint64) ([]string, error) {
	var ids []string
	seen := make(map[string]bool)
	pageToken := ""

	for {
		response, err := retry.Do(ctx, s.policy, func() (*gmail.ListHistoryResponse, error) {
			call := s.srv.Users.History.List(s.user).
				StartHistoryId(historyID).
				HistoryTypes("messageAdded").
				MaxResults(defaultPageSize).
				Context(ctx)
			if s.historyLabel != "" {
				call = call.LabelId(s.historyLabel)
			}
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}
			return call.Do()
		})
		if err != nil {
			var gErr *googleapi.Error
			if errors.As(err, &gErr) && gErr.Code == http.StatusNotFound {
				return nil, fmt.Errorf("%w: start %d", ErrHistoryExpired, historyID)
			}
			return nil, fmt.Errorf("unable to list history: %w", err)
		}
		if response == nil {
			break
		}

		for _, record := range response.History {
			for _, added := range record.MessagesAdded {
				if added.Message == nil || added.Message.Id == "" || seen[added.Message.Id] {
					continue
				}
				seen[added.Message.Id] = true
				ids = append(ids, added.Message.Id)
			}
		}

		pageToken = response.NextPageToken
		if pageToken == "" {
			break
		}
	}

	return ids, nil
}
