package notification

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedNotification marks input that can never be processed.
// Callers acknowledge it instead of asking for redelivery.
var ErrMalformedNotification = errors.New("malformed notification")

// GmailNotification is the payload Gmail publishes on every mailbox change.
// historyId arrives as a number or as a string depending on the path.
type GmailNotification struct {
	EmailAddress string      `json:"emailAddress"`
	HistoryID    json.Number `json:"historyId"`
}

// PushEnvelope is the body of a Pub/Sub push request.
type PushEnvelope struct {
	Message *struct {
		Data        string `json:"data"`
		MessageID   string `json:"messageId"`
		PublishTime string `json:"publishTime"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// DecodeNotification parses the (already base64-decoded) message data and
// returns the history cursor it carries.
func DecodeNotification(data []byte) (*GmailNotification, uint64, error) {
	var n GmailNotification
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}
	cursor, err := strconv.ParseUint(strings.TrimSpace(n.HistoryID.String()), 10, 64)
	if err != nil || cursor == 0 {
		return nil, 0, fmt.Errorf("%w: invalid historyId %q", ErrMalformedNotification, n.HistoryID)
	}
	return &n, cursor, nil
}

// DecodePushEnvelope unwraps a Pub/Sub push body down to the notification.
func DecodePushEnvelope(body []byte) (*GmailNotification, uint64, error) {
	var env PushEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}
	if env.Message == nil {
		return nil, 0, fmt.Errorf("%w: missing message", ErrMalformedNotification)
	}
	if env.Message.Data == "" {
		return nil, 0, fmt.Errorf("%w: missing message data", ErrMalformedNotification)
	}

	data, err := decodeBase64(env.Message.Data)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedNotification, err)
	}
	return DecodeNotification(data)
}

func decodeBase64(s string) ([]byte, error) {
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		if data, err := enc.DecodeString(s); err == nil {
			return data, nil
		}
	}
	return nil, fmt.Errorf("message data is not base64")
}
