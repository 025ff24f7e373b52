package notification

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"lead-responder/internal/responder/usecase"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// Service pulls Gmail notifications from a Pub/Sub subscription and feeds
// them to the responder one at a time.
type Service struct {
	pubsubClient *pubsub.Client
	handler      usecase.NotificationHandler
	topicName    string
	subName      string
}

func NewService(ctx context.Context, projectID, topicName, subName string, handler usecase.NotificationHandler, credentialsFile string) (*Service, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	if subName == "" {
		subName = topicName + "-sub" // Convention: topic-sub
	}
	return &Service{
		pubsubClient: client,
		handler:      handler,
		topicName:    topicName,
		subName:      subName,
	}, nil
}

// Start blocks receiving messages until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	log.Printf("[PubSub] Starting notification service with topic: %s, subscription: %s", s.topicName, s.subName)

	sub, err := s.ensureSubscription(ctx)
	if err != nil {
		return err
	}
	sub.ReceiveSettings.MaxOutstandingMessages = 1
	sub.ReceiveSettings.NumGoroutines = 1

	log.Printf("[PubSub] Listening for messages on subscription: %s", s.subName)
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if s.handleMessage(ctx, msg.Data) {
			msg.Ack()
		} else {
			msg.Nack()
		}
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("error receiving messages: %w", err)
	}
	return nil
}

func (s *Service) Close() error {
	return s.pubsubClient.Close()
}

func (s *Service) ensureSubscription(ctx context.Context) (*pubsub.Subscription, error) {
	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("error checking subscription existence: %w", err)
	}
	if exists {
		return sub, nil
	}

	topic := s.pubsubClient.Topic(s.topicName)
	topicExists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("error checking topic existence: %w", err)
	}
	if !topicExists {
		return nil, fmt.Errorf("topic %s does not exist, cannot create subscription", s.topicName)
	}

	sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: 60 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create subscription: %w", err)
	}
	log.Printf("[PubSub] Created subscription: %s", s.subName)
	return sub, nil
}

// handleMessage reports whether the message should be acked. Malformed
// data is acked so it is not redelivered forever.
func (s *Service) handleMessage(ctx context.Context, data []byte) bool {
	return processPulled(ctx, s.handler, data)
}

func processPulled(ctx context.Context, handler usecase.NotificationHandler, data []byte) bool {
	n, cursor, err := DecodeNotification(data)
	if err != nil {
		log.Printf("[PubSub] Dropping malformed notification: %v", err)
		return true
	}

	log.Printf("[PubSub] Received notification for: %s (historyId: %d)", n.EmailAddress, cursor)
	out, err := handler.HandleNotification(context.WithoutCancel(ctx), cursor)
	if err != nil {
		log.Printf("[PubSub] Notification %d failed, requesting redelivery: %v", cursor, err)
		return false
	}
	log.Printf("[PubSub] Notification %d handled: %+v", cursor, *out)
	return true
}
