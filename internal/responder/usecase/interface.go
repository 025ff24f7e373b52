package usecase

import (
	"context"

	analysisdomain "lead-responder/internal/analysis/domain"
	catalogdomain "lead-responder/internal/catalog/domain"
	"lead-responder/pkg/gmail"
)

// Mailbox is the mail provider as the responder sees it.
type Mailbox interface {
	DiffSince(ctx context.Context, historyID uint64) ([]string, error)
	FetchFull(ctx context.Context, messageID string) (*gmail.Message, error)
	SendReply(ctx context.Context, reply gmail.Reply) (string, error)
}

// Intelligence wraps every model call.
type Intelligence interface {
	Analyze(ctx context.Context, body string) analysisdomain.AnalysisResult
	Compose(ctx context.Context, latestBody, storeContext string, match *catalogdomain.MatchResult) (string, error)
	Summarize(ctx context.Context, text string) string
}

type ProductMatcher interface {
	FindProduct(ctx context.Context, titleGuess, categoryGuess string) (*catalogdomain.MatchResult, error)
}

// Alerter pushes escalations to operators out of band. Optional.
type Alerter interface {
	AlertEscalation(ctx context.Context, sender, subject, reason string) error
}

// NotificationHandler is what the webhook and the pull subscriber call.
type NotificationHandler interface {
	HandleNotification(ctx context.Context, cursor uint64) (*Outcome, error)
}

// Outcome summarizes one handled notification.
type Outcome struct {
	Cursor    uint64 `json:"cursor"`
	Baseline  bool   `json:"baseline"`
	Stale     bool   `json:"stale"`
	Processed int    `json:"processed"`
	Replied   int    `json:"replied"`
	Escalated int    `json:"escalated"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
}
