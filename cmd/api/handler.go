package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"slices"
	"time"

	authDelivery "lead-responder/internal/auth/delivery"
	authUsecase "lead-responder/internal/auth/usecase"

	conversationDelivery "lead-responder/internal/conversation/delivery"
	"lead-responder/internal/conversation/repository"
	responderDelivery "lead-responder/internal/responder/delivery"
	"lead-responder/internal/responder/usecase"
	"lead-responder/pkg/config"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type Handler struct {
	config            *config.Config
	webhookHandler    *responderDelivery.WebhookHandler
	inspectionHandler *conversationDelivery.InspectionHandler
	tokenValidator    responderDelivery.TokenValidator
	operatorAuth      *authUsecase.OperatorAuth
}

func NewHandler(cfg *config.Config, notificationHandler usecase.NotificationHandler, registrar responderDelivery.WatchRegistrar, repo repository.ConversationRepository) *Handler {
	return &Handler{
		config:            cfg,
		webhookHandler:    responderDelivery.NewWebhookHandler(notificationHandler, registrar),
		inspectionHandler: conversationDelivery.NewInspectionHandler(repo),
		operatorAuth:      authUsecase.NewOperatorAuth(cfg.OperatorJWTSecret, cfg.OperatorTokenExpiry),
	}
}

// Router builds the gin engine with CORS and all routes.
func (h *Handler) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.Default()

	// CORS middleware. Only listed origins may call the operator API from a
	// browser; tokens travel in the Authorization header, never in cookies.
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && slices.Contains(h.config.CORSAllowedOrigins, origin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Add("Vary", "Origin")
		}

		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	limiter := rate.NewLimiter(rate.Limit(h.config.WebhookRPS), h.config.WebhookBurst)
	if h.config.WebhookRPS <= 0 {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}

	if h.config.OperatorJWTSecret == "" {
		log.Printf("[WARN] OPERATOR_JWT_SECRET not configured, operator API will reject every request")
	}

	SetupRoutes(r, h.webhookHandler, h.inspectionHandler,
		responderDelivery.PushAuthMiddleware(h.config.PushAudience, h.tokenValidator),
		responderDelivery.RateLimitMiddleware(limiter),
		authDelivery.AuthMiddleware(h.operatorAuth))
	return r
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
func (h *Handler) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("failed to start server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	log.Println("Server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return <-errCh
}
