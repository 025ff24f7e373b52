package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"lead-responder/pkg/retry"

	"github.com/emersion/go-message/mail"
	"google.golang.org/api/gmail/v1"
)

// Message is the subset of a Gmail message the responder works with.
type Message struct {
	ID          string
	ThreadID    string
	From        string
	FromAddress string
	FromName    string
	To          string
	Subject     string
	MessageID   string
	References  []string
	Body        string
	LabelIDs    []string
	ReceivedAt  time.Time
}

// FetchFull loads a message with its headers and plain-text body.
func (s *Service) FetchFull(ctx context.Context, messageID string) (*Message, error) {
	msg, err := retry.Do(ctx, s.policy, func() (*gmail.Message, error) {
		return s.srv.Users.Messages.Get(s.user, messageID).Format("full").Context(ctx).Do()
	})
	if err != nil {
		return nil, fmt.Errorf("unable to get message %s: %w", messageID, err)
	}
	return convertMessage(msg), nil
}

func convertMessage(msg *gmail.Message) *Message {
	out := &Message{
		ID:         msg.Id,
		ThreadID:   msg.ThreadId,
		LabelIDs:   msg.LabelIds,
		ReceivedAt: time.UnixMilli(msg.InternalDate).UTC(),
	}
	if msg.Payload == nil {
		return out
	}

	headers := msg.Payload.Headers
	out.From = getHeader(headers, "From")
	out.To = getHeader(headers, "To")
	out.Subject = getHeader(headers, "Subject")
	out.MessageID = getHeader(headers, "Message-ID")
	out.References = parseMsgIDs(getHeader(headers, "References"))
	out.FromAddress, out.FromName = parseSender(out.From)
	out.Body = plainTextBody(msg.Payload)

	return out
}

// getHeader matches header names case-insensitively; Gmail preserves the
// sender's casing ("Message-Id" vs "Message-ID").
func getHeader(headers []*gmail.MessagePartHeader, name string) string {
	for _, header := range headers {
		if strings.EqualFold(header.Name, name) {
			return header.Value
		}
	}
	return ""
}

func parseSender(from string) (address, name string) {
	if from == "" {
		return "", ""
	}
	addr, err := mail.ParseAddress(from)
	if err != nil {
		// Fall back to "Name <email@example.com>" splitting
		if i, j := strings.LastIndex(from, "<"), strings.LastIndex(from, ">"); i >= 0 && j > i {
			return strings.TrimSpace(from[i+1 : j]), strings.Trim(strings.TrimSpace(from[:i]), `"`)
		}
		return strings.TrimSpace(from), ""
	}
	return addr.Address, addr.Name
}

func parseMsgIDs(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var h mail.Header
	h.Set("References", value)
	ids, err := h.MsgIDList("References")
	if err != nil {
		return nil
	}
	return ids
}

// plainTextBody returns the first text/plain part found depth-first.
func plainTextBody(part *gmail.MessagePart) string {
	if part == nil {
		return ""
	}
	if strings.HasPrefix(part.MimeType, "text/plain") && part.Body != nil && part.Body.Data != "" {
		if data, ok := decodeBody(part.Body.Data); ok {
			return data
		}
	}
	for _, child := range part.Parts {
		if body := plainTextBody(child); body != "" {
			return body
		}
	}
	return ""
}

func decodeBody(data string) (string, bool) {
	decoded, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		decoded, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return "", false
		}
	}
	return string(decoded), true
}
