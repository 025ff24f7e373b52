package domain

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// ErrDuplicateMessage is returned when a record for the same provider
// message id already exists.
var ErrDuplicateMessage = errors.New("conversation record already exists")

// MaxSummaryLength bounds ConversationRecord.Summary in characters.
const MaxSummaryLength = 200

// Direction of a message relative to the mailbox
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Status records how a message was handled
type Status string

const (
	StatusAutomated       Status = "automated"
	StatusDrafted         Status = "drafted"
	StatusPendingApproval Status = "pending_approval"
	StatusError           Status = "error"
)

// Lead is a customer identified by email address
type Lead struct {
	ID              string    `json:"id" gorm:"primaryKey"`
	Address         string    `json:"address" gorm:"uniqueIndex;not null"`
	DisplayName     *string   `json:"display_name,omitempty"`
	LastInteraction time.Time `json:"last_interaction"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func (Lead) TableName() string {
	return "leads"
}

// ConversationRecord is one inbound or outbound message. Rows are never
// updated except for the legacy body backfill.
type ConversationRecord struct {
	ID           string    `json:"id" gorm:"primaryKey"`
	MessageID    string    `json:"message_id" gorm:"uniqueIndex;not null"`
	ThreadID     string    `json:"thread_id" gorm:"index"`
	Direction    Direction `json:"direction" gorm:"type:varchar(16);not null"`
	Sender       string    `json:"sender"`
	Recipient    string    `json:"recipient"`
	Subject      string    `json:"subject"`
	Summary      string    `json:"summary" gorm:"size:255"`
	FullBody     string    `json:"full_body" gorm:"type:text"`
	Status       Status    `json:"status" gorm:"type:varchar(32);not null"`
	SafetyFlag   bool      `json:"safety_flag"`
	SafetyReason string    `json:"safety_reason,omitempty"`
	CreatedAt    time.Time `json:"created_at" gorm:"index"`
}

func (ConversationRecord) TableName() string {
	return "conversation_records"
}

// RecordFilter narrows ListRecords. Empty fields match everything.
type RecordFilter struct {
	ThreadID  string
	Status    Status
	Direction Direction
}

// NormalizeAddress trims and case-folds an email address so the same
// customer always maps to one lead.
func NormalizeAddress(address string) string {
	return cases.Fold().String(strings.TrimSpace(address))
}

// Truncate cuts s to at most max runes, appending "..." only when it cut.
func Truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// ClampSummary keeps a summary within MaxSummaryLength, ellipsis included.
func ClampSummary(s string) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) <= MaxSummaryLength {
		return s
	}
	return Truncate(s, MaxSummaryLength-3)
}
