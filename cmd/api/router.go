package api

import (
	conversationDelivery "lead-responder/internal/conversation/delivery"
	responderDelivery "lead-responder/internal/responder/delivery"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, webhookHandler *responderDelivery.WebhookHandler, inspectionHandler *conversationDelivery.InspectionHandler, pushAuth, rateLimit, operatorAuth gin.HandlerFunc) {
	// Health check (no dependencies)
	r.GET("/health", responderDelivery.Health)

	// Pub/Sub push endpoint
	r.POST("/webhook/gmail", rateLimit, pushAuth, webhookHandler.HandlePush)
	r.POST("/watch", operatorAuth, webhookHandler.Watch)

	r.GET("/api/health", responderDelivery.Health)

	// Operator routes (auth required)
	api := r.Group("/api")
	api.Use(operatorAuth)
	{
		api.POST("/watch", webhookHandler.Watch)

		// Read-only inspection
		api.GET("/leads", inspectionHandler.ListLeads)
		api.GET("/conversations", inspectionHandler.ListConversations)
		api.GET("/threads/:id", inspectionHandler.GetThread)
	}
}
