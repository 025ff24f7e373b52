package gmail

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
	"time"

	"lead-responder/pkg/retry"

	"github.com/emersion/go-message/mail"
	"google.golang.org/api/gmail/v1"
)

// Reply describes an outgoing plain-text message.
type Reply struct {
	From     string
	FromName string
	To       string
	Subject  string
	Body     string
	// ThreadID keeps the reply in the customer's conversation when set.
	ThreadID string
	// InReplyTo is the Message-ID header of the message being answered.
	InReplyTo  string
	References []string
}

// ReplySubject prefixes "Re:" unless the subject already carries it.
func ReplySubject(subject string) string {
	trimmed := strings.TrimSpace(subject)
	if len(trimmed) >= 3 && strings.EqualFold(trimmed[:3], "re:") {
		return trimmed
	}
	if trimmed == "" {
		return "Re:"
	}
	return "Re: " + trimmed
}

// SendReply sends r and returns the id Gmail assigned to the sent message.
func (s *Service) SendReply(ctx context.Context, r Reply) (string, error) {
	raw, err := buildMessage(r, time.Now())
	if err != nil {
		return "", err
	}

	msg := &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString(raw),
		ThreadId: r.ThreadID,
	}

	sent, err := retry.Do(ctx, s.policy, func() (*gmail.Message, error) {
		return s.srv.Users.Messages.Send(s.user, msg).Context(ctx).Do()
	})
	if err != nil {
		return "", fmt.Errorf("unable to send message: %w", err)
	}
	return sent.Id, nil
}

func buildMessage(r Reply, now time.Time) ([]byte, error) {
	to, err := mail.ParseAddress(r.To)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", r.To, err)
	}

	var h mail.Header
	h.SetDate(now)
	h.SetSubject(r.Subject)
	h.SetAddressList("To", []*mail.Address{to})
	if r.From != "" {
		h.SetAddressList("From", []*mail.Address{{Name: r.FromName, Address: r.From}})
	}

	if parent := strings.Trim(strings.TrimSpace(r.InReplyTo), "<>"); parent != "" {
		h.SetMsgIDList("In-Reply-To", []string{parent})
		refs := append([]string{}, r.References...)
		if len(refs) == 0 || refs[len(refs)-1] != parent {
			refs = append(refs, parent)
		}
		h.SetMsgIDList("References", refs)
	}

	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	h.Set("Content-Transfer-Encoding", "quoted-printable")

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("unable to create message writer: %w", err)
	}
	if _, err := io.WriteString(w, r.Body); err != nil {
		return nil, fmt.Errorf("unable to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("unable to finish message: %w", err)
	}
	return buf.Bytes(), nil
}
