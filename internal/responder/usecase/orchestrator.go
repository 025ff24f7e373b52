package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	catalogdomain "lead-responder/internal/catalog/domain"
	"lead-responder/internal/conversation/domain"
	"lead-responder/internal/conversation/repository"
	"lead-responder/pkg/gmail"
)

const (
	maxAdvanceAttempts = 3
	escalationExcerpt  = 1000
)

// Options configure an Orchestrator.
type Options struct {
	// EscalationAddress receives emails flagged by the guardrail.
	EscalationAddress string
	// MailboxAddress is our own address; messages from it are skipped.
	MailboxAddress string
	MailboxName    string
	StoreContext   string
	WatermarkKey   string
}

// Orchestrator turns a mailbox notification into replies, escalations
// and conversation records. Events are handled one at a time.
type Orchestrator struct {
	mu sync.Mutex

	mailbox Mailbox
	intel   Intelligence
	matcher ProductMatcher
	store   repository.ConversationRepository
	alerter Alerter
	opts    Options
}

func NewOrchestrator(mailbox Mailbox, intel Intelligence, matcher ProductMatcher, store repository.ConversationRepository, alerter Alerter, opts Options) *Orchestrator {
	if opts.WatermarkKey == "" {
		opts.WatermarkKey = domain.WatermarkKey
	}
	opts.MailboxAddress = domain.NormalizeAddress(opts.MailboxAddress)
	return &Orchestrator{
		mailbox: mailbox,
		intel:   intel,
		matcher: matcher,
		store:   store,
		alerter: alerter,
		opts:    opts,
	}
}

// persistenceError aborts the whole event: the watermark must not move
// past records that were never written.
type persistenceError struct {
	err error
}

func (e *persistenceError) Error() string { return e.err.Error() }
func (e *persistenceError) Unwrap() error { return e.err }

func persistErr(format string, err error) error {
	return &persistenceError{err: fmt.Errorf(format, err)}
}

// HandleNotification processes every message added since the stored
// watermark, then advances the watermark to cursor.
func (o *Orchestrator) HandleNotification(ctx context.Context, cursor uint64) (*Outcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := &Outcome{Cursor: cursor}

	stored, found, err := o.store.GetWatermark(ctx, o.opts.WatermarkKey)
	if err != nil {
		return nil, fmt.Errorf("unable to load watermark: %w", err)
	}
	expected := expectedValue(stored, found)

	current, ok := parseWatermark(stored, found)
	if !ok {
		log.Printf("[Responder] No baseline watermark, initializing at %d", cursor)
		out.Baseline = true
		if err := o.advanceWatermark(ctx, expected, cursor); err != nil {
			return nil, err
		}
		return out, nil
	}

	if cursor <= current {
		log.Printf("[Responder] Stale notification %d (watermark %d), ignoring", cursor, current)
		out.Stale = true
		return out, nil
	}

	ids, err := o.mailbox.DiffSince(ctx, current)
	if err != nil {
		if !errors.Is(err, gmail.ErrHistoryExpired) {
			return nil, fmt.Errorf("unable to diff mailbox since %d: %w", current, err)
		}
		log.Printf("[Responder] History %d expired, re-baselining at %d", current, cursor)
		out.Baseline = true
		if err := o.advanceWatermark(ctx, expected, cursor); err != nil {
			return nil, err
		}
		return out, nil
	}
	log.Printf("[Responder] %d new message(s) between %d and %d", len(ids), current, cursor)

	for _, id := range ids {
		out.Processed++
		if err := o.processMessage(ctx, id, out); err != nil {
			var pErr *persistenceError
			if errors.As(err, &pErr) {
				log.Printf("[Responder] Aborting notification %d: %v", cursor, err)
				return out, err
			}
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			out.Failed++
			log.Printf("[Responder] Message %s failed: %v", id, err)
		}
	}

	if err := o.advanceWatermark(ctx, expected, cursor); err != nil {
		return out, err
	}
	log.Printf("[Responder] Notification %d done: replied=%d escalated=%d skipped=%d failed=%d",
		cursor, out.Replied, out.Escalated, out.Skipped, out.Failed)
	return out, nil
}

func (o *Orchestrator) processMessage(ctx context.Context, id string, out *Outcome) error {
	seen, err := o.store.HasMessage(ctx, id)
	if err != nil {
		return persistErr("unable to check message: %w", err)
	}
	if seen {
		log.Printf("[Responder] Message %s already recorded, skipping", id)
		out.Skipped++
		return nil
	}

	msg, err := o.mailbox.FetchFull(ctx, id)
	if err != nil {
		return err
	}
	if o.isOwnMessage(msg) {
		out.Skipped++
		return nil
	}
	if msg.FromAddress == "" {
		return fmt.Errorf("message %s has no sender address", id)
	}

	analysis := o.intel.Analyze(ctx, msg.Body)

	match, err := o.matcher.FindProduct(ctx, analysis.ProductSearch.ProductTitle, analysis.ProductSearch.Category)
	if err != nil {
		log.Printf("[Responder] Product lookup failed for %s, replying without products: %v", id, err)
		match = nil
	}

	if _, err := o.store.UpsertLead(ctx, msg.FromAddress, msg.FromName); err != nil {
		return persistErr("unable to upsert lead: %w", err)
	}

	inbound := &domain.ConversationRecord{
		MessageID:    msg.ID,
		ThreadID:     msg.ThreadID,
		Direction:    domain.DirectionInbound,
		Sender:       domain.NormalizeAddress(msg.FromAddress),
		Recipient:    o.opts.MailboxAddress,
		Subject:      msg.Subject,
		Summary:      analysis.Summary,
		FullBody:     msg.Body,
		SafetyFlag:   analysis.Guardrail.Triggered,
		SafetyReason: analysis.Guardrail.Reason,
	}

	if analysis.Guardrail.Triggered {
		return o.escalate(ctx, msg, inbound, out)
	}
	return o.respond(ctx, msg, inbound, match, out)
}

func (o *Orchestrator) escalate(ctx context.Context, msg *gmail.Message, inbound *domain.ConversationRecord, out *Outcome) error {
	log.Printf("[Responder] Escalating %s from %s: %s", msg.ID, inbound.Sender, inbound.SafetyReason)

	body := fmt.Sprintf(`An incoming customer email was flagged for human review.

From: %s
Subject: %s
Reason: %s
Summary: %s

Original message (excerpt):
%s
`, msg.From, msg.Subject, inbound.SafetyReason, inbound.Summary, domain.Truncate(msg.Body, escalationExcerpt))

	// The record is written only once a human has been notified, so a failed
	// notice is retried on redelivery instead of being hidden by HasMessage.
	_, err := o.mailbox.SendReply(ctx, gmail.Reply{
		From:     o.opts.MailboxAddress,
		FromName: o.opts.MailboxName,
		To:       o.opts.EscalationAddress,
		Subject:  "[Escalation] " + msg.Subject,
		Body:     body,
	})
	if err != nil {
		log.Printf("[ERROR] [Responder] Flagged message %s from %s did not reach %s: %v",
			msg.ID, inbound.Sender, o.opts.EscalationAddress, err)
		return fmt.Errorf("unable to send escalation for %s: %w", msg.ID, err)
	}

	inbound.Status = domain.StatusDrafted
	if err := o.store.StoreMessage(ctx, inbound); err != nil && !errors.Is(err, domain.ErrDuplicateMessage) {
		return persistErr("unable to store escalated message: %w", err)
	}

	if o.alerter != nil {
		if err := o.alerter.AlertEscalation(ctx, inbound.Sender, msg.Subject, inbound.SafetyReason); err != nil {
			log.Printf("[Responder] Escalation push for %s failed: %v", msg.ID, err)
		}
	}

	out.Escalated++
	return nil
}

func (o *Orchestrator) respond(ctx context.Context, msg *gmail.Message, inbound *domain.ConversationRecord, match *catalogdomain.MatchResult, out *Outcome) error {
	reply, err := o.intel.Compose(ctx, msg.Body, o.opts.StoreContext, match)
	if err != nil {
		return fmt.Errorf("unable to compose reply for %s: %w", msg.ID, err)
	}
	replySummary := o.intel.Summarize(ctx, reply)
	subject := gmail.ReplySubject(msg.Subject)

	sentID, err := o.mailbox.SendReply(ctx, gmail.Reply{
		From:       o.opts.MailboxAddress,
		FromName:   o.opts.MailboxName,
		To:         msg.FromAddress,
		Subject:    subject,
		Body:       reply,
		ThreadID:   msg.ThreadID,
		InReplyTo:  msg.MessageID,
		References: msg.References,
	})
	if err != nil {
		return fmt.Errorf("unable to send reply for %s: %w", msg.ID, err)
	}
	log.Printf("[Responder] Replied to %s with %s", inbound.Sender, sentID)

	inbound.Status = domain.StatusAutomated
	if err := o.store.StoreMessage(ctx, inbound); err != nil && !errors.Is(err, domain.ErrDuplicateMessage) {
		return persistErr("unable to store inbound message: %w", err)
	}

	outbound := &domain.ConversationRecord{
		MessageID: sentID,
		ThreadID:  msg.ThreadID,
		Direction: domain.DirectionOutbound,
		Sender:    o.opts.MailboxAddress,
		Recipient: inbound.Sender,
		Subject:   subject,
		Summary:   replySummary,
		FullBody:  reply,
		Status:    domain.StatusAutomated,
	}
	if err := o.store.StoreMessage(ctx, outbound); err != nil && !errors.Is(err, domain.ErrDuplicateMessage) {
		return persistErr("unable to store reply: %w", err)
	}

	out.Replied++
	return nil
}

func (o *Orchestrator) isOwnMessage(msg *gmail.Message) bool {
	if o.opts.MailboxAddress != "" && domain.NormalizeAddress(msg.FromAddress) == o.opts.MailboxAddress {
		return true
	}
	for _, label := range msg.LabelIDs {
		if label == "SENT" {
			return true
		}
	}
	return false
}

// advanceWatermark moves the watermark to cursor with compare-and-set,
// never backwards.
func (o *Orchestrator) advanceWatermark(ctx context.Context, expected *string, cursor uint64) error {
	next := strconv.FormatUint(cursor, 10)

	for attempt := 0; attempt < maxAdvanceAttempts; attempt++ {
		ok, err := o.store.AdvanceWatermark(ctx, o.opts.WatermarkKey, expected, next)
		if err != nil {
			return fmt.Errorf("unable to advance watermark: %w", err)
		}
		if ok {
			log.Printf("[Responder] Watermark advanced to %d", cursor)
			return nil
		}

		value, found, err := o.store.GetWatermark(ctx, o.opts.WatermarkKey)
		if err != nil {
			return fmt.Errorf("unable to reload watermark: %w", err)
		}
		if current, ok := parseWatermark(value, found); ok && current >= cursor {
			log.Printf("[Responder] Watermark already at %d, not moving to %d", current, cursor)
			return nil
		}
		expected = expectedValue(value, found)
	}
	return fmt.Errorf("unable to advance watermark to %d after %d attempts", cursor, maxAdvanceAttempts)
}

// parseWatermark reports the stored cursor, or false when there is no
// usable baseline.
func parseWatermark(value string, found bool) (uint64, bool) {
	value = strings.TrimSpace(value)
	if !found || value == "" || value == domain.WatermarkUninitialized {
		return 0, false
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}

func expectedValue(value string, found bool) *string {
	if !found {
		return nil
	}
	return &value
}
