package fcm

import (
	"context"
	"fmt"
	"log"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"
)

// MulticastSender is the part of the messaging client the alerter needs.
type MulticastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// OperatorAlerter pushes escalation alerts to the operators' devices.
type OperatorAlerter struct {
	sender MulticastSender
	tokens []string
}

// NewOperatorAlerter creates a Firebase-backed alerter using the provided credentials file
func NewOperatorAlerter(ctx context.Context, credentialsFile string, tokens []string) (*OperatorAlerter, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	messagingClient, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	log.Printf("[FCM] Client initialized for %d operator device(s)", len(tokens))
	return NewOperatorAlerterWithSender(messagingClient, tokens), nil
}

func NewOperatorAlerterWithSender(sender MulticastSender, tokens []string) *OperatorAlerter {
	return &OperatorAlerter{sender: sender, tokens: tokens}
}

// AlertEscalation notifies operators that a customer email needs a human.
func (a *OperatorAlerter) AlertEscalation(ctx context.Context, sender, subject, reason string) error {
	if len(a.tokens) == 0 {
		return nil
	}

	title := "Escalation: " + subject
	body := fmt.Sprintf("%s (%s)", sender, reason)
	message := &messaging.MulticastMessage{
		Tokens: a.tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: map[string]string{
			"type":    "escalation",
			"sender":  sender,
			"subject": subject,
			"reason":  reason,
		},
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: title,
				Body:  body,
				Icon:  "/icon-192.svg",
			},
		},
	}

	response, err := a.sender.SendEachForMulticast(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send FCM multicast message: %w", err)
	}

	log.Printf("[FCM] Multicast sent: %d success, %d failures", response.SuccessCount, response.FailureCount)
	for i, resp := range response.Responses {
		if !resp.Success && i < len(a.tokens) {
			log.Printf("[FCM] Failed to send to token %s: %v", shortToken(a.tokens[i]), resp.Error)
		}
	}
	if response.SuccessCount == 0 {
		return fmt.Errorf("no operator device accepted the alert")
	}
	return nil
}

func shortToken(token string) string {
	if len(token) <= 20 {
		return token
	}
	return token[:20] + "..."
}
