package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	analysisUsecase "lead-responder/internal/analysis/usecase"
	catalogRepo "lead-responder/internal/catalog/repository"
	catalogUsecase "lead-responder/internal/catalog/usecase"
	"lead-responder/internal/conversation/repository"
	"lead-responder/internal/responder/usecase"
	"lead-responder/internal/watch"
	"lead-responder/pkg/ai"
	"lead-responder/pkg/config"
	"lead-responder/pkg/database"
	"lead-responder/pkg/fcm"
	"lead-responder/pkg/gmail"
	"lead-responder/pkg/retry"
	"lead-responder/pkg/storeprofile"

	"gorm.io/gorm"
)

// app holds the wired dependencies shared by all commands.
type app struct {
	db           *gorm.DB
	repo         repository.ConversationRepository
	gmail        *gmail.Service
	orchestrator *usecase.Orchestrator
	registrar    *watch.Registrar
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	db, err := database.NewPostgresConnection(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Initialize repositories (dependency injection)
	repo := repository.NewConversationRepository(db)
	productRepo := catalogRepo.NewProductRepository(db)

	policy := retry.Policy{MaxRetries: cfg.RetryMax, InitialDelay: cfg.RetryInitialDelay}

	opts := gmail.Options{User: cfg.GmailUser, RedirectURL: cfg.GoogleRedirectURI, Policy: policy}
	if len(cfg.GmailWatchLabels) == 1 {
		opts.HistoryLabel = cfg.GmailWatchLabels[0]
	}
	gmailService, err := gmail.NewService(ctx, cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleRefreshToken, opts)
	if err != nil {
		return nil, err
	}

	mailboxAddress := cfg.GmailAddress
	if mailboxAddress == "" {
		address, _, err := gmailService.Profile(ctx)
		if err != nil {
			return nil, fmt.Errorf("unable to resolve mailbox address: %w", err)
		}
		mailboxAddress = address
	}

	generator, err := ai.NewTextGenerator(ctx, ai.Config{
		Provider:          ai.ProviderType(cfg.AIProvider),
		GeminiAPIKey:      cfg.GeminiApiKey,
		GeminiModel:       cfg.GeminiModel,
		OllamaBaseURL:     cfg.OllamaBaseURL,
		OllamaModel:       cfg.OllamaModel,
		BedrockModelID:    cfg.BedrockModelID,
		AWSRegion:         cfg.AWSRegion,
		RequestsPerMinute: cfg.AIRequestsPerMinute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize AI provider: %w", err)
	}
	log.Printf("AI provider initialized: %s", cfg.AIProvider)

	profile, err := storeprofile.Load(cfg.StoreProfilePath, cfg.StoreName, cfg.StoreBaseURL)
	if err != nil {
		return nil, err
	}

	var alerter usecase.Alerter
	if cfg.FirebaseCredentials != "" && len(cfg.OperatorFCMTokens) > 0 {
		operatorAlerter, err := fcm.NewOperatorAlerter(ctx, cfg.FirebaseCredentials, cfg.OperatorFCMTokens)
		if err != nil {
			log.Printf("[WARN] Failed to initialize FCM client (escalation pushes disabled): %v", err)
		} else {
			alerter = operatorAlerter
		}
	}

	orchestrator := usecase.NewOrchestrator(
		gmailService,
		analysisUsecase.NewAnalyzer(generator, policy, profile.BaseURL),
		catalogUsecase.NewMatcher(productRepo),
		repo,
		alerter,
		usecase.Options{
			EscalationAddress: cfg.EscalationEmail,
			MailboxAddress:    mailboxAddress,
			MailboxName:       profile.Name,
			StoreContext:      profile.Context(),
		},
	)

	registrar := watch.NewRegistrar(gmailService, repo, fullTopicName(cfg.GoogleProjectID, cfg.GooglePubSubTopic), cfg.GmailWatchLabels)

	return &app{
		db:           db,
		repo:         repo,
		gmail:        gmailService,
		orchestrator: orchestrator,
		registrar:    registrar,
	}, nil
}

// shortTopicName extracts the topic id from a full resource name.
func shortTopicName(topic string) string {
	if parts := strings.Split(topic, "/"); len(parts) > 1 {
		return parts[len(parts)-1]
	}
	return topic
}

// fullTopicName returns the projects/<p>/topics/<t> form Gmail watch expects.
func fullTopicName(projectID, topic string) string {
	if topic == "" || strings.HasPrefix(topic, "projects/") || projectID == "" {
		return topic
	}
	return fmt.Sprintf("projects/%s/topics/%s", projectID, topic)
}
