package delivery

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"lead-responder/internal/notification"
	"lead-responder/internal/responder/usecase"
	"lead-responder/pkg/gmail"

	"github.com/gin-gonic/gin"
)

const maxPushBody = 1 << 20

// WatchRegistrar registers the mailbox watch on demand.
type WatchRegistrar interface {
	RegisterWatch(ctx context.Context) (*gmail.WatchResponse, error)
}

// WebhookHandler receives Gmail push notifications and watch requests.
type WebhookHandler struct {
	handler   usecase.NotificationHandler
	registrar WatchRegistrar
}

func NewWebhookHandler(handler usecase.NotificationHandler, registrar WatchRegistrar) *WebhookHandler {
	return &WebhookHandler{
		handler:   handler,
		registrar: registrar,
	}
}

// HandlePush processes one Pub/Sub push delivery synchronously. A non-2xx
// status makes Pub/Sub redeliver, so only processing errors return 500.
// POST /webhook/gmail
func (h *WebhookHandler) HandlePush(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPushBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to read body"})
		return
	}

	n, cursor, err := notification.DecodePushEnvelope(body)
	if err != nil {
		log.Printf("[Webhook] Bad push payload: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Printf("[Webhook] Notification for %s (historyId: %d)", n.EmailAddress, cursor)

	// Once started, an event runs to completion even if Pub/Sub gives up on
	// the push and drops the connection.
	out, err := h.handler.HandleNotification(context.WithoutCancel(c.Request.Context()), cursor)
	if err != nil {
		log.Printf("[Webhook] Notification %d failed: %v", cursor, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, out)
}

// Watch (re)registers the Gmail watch.
// POST /watch
func (h *WebhookHandler) Watch(c *gin.Context) {
	if h.registrar == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "watch is not configured"})
		return
	}

	resp, err := h.registrar.RegisterWatch(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"historyId":  resp.HistoryID,
		"expiration": resp.Expiration.Format(time.RFC3339),
	})
}

// Health reports liveness only.
// GET /health
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
