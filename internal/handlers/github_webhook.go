package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"prsentinel/internal/webhook"
)

// GitHubWebhook verifies a webhook delivery's signature against the
// raw body and queues it. The response goes out before any pipeline
// work runs; downstream failures never surface here, so GitHub does
// not retry-storm on AI or API flakiness.
func (h *Handler) GitHubWebhook(c *gin.Context) {
	eventType := c.GetHeader("X-GitHub-Event")
	deliveryID := c.GetHeader("X-GitHub-Delivery")
	if eventType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing X-GitHub-Event header"})
		return
	}

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read request body"})
		return
	}

	// Signature first; the payload is not parsed until it passes.
	signature := c.GetHeader("X-Hub-Signature-256")
	if !webhook.VerifySignature(payload, signature, h.webhookSecret) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook signature"})
		return
	}

	if err := h.webhookProc.Enqueue(c.Request.Context(), eventType, payload, deliveryID); err != nil {
		// Queue admission is the one pre-pipeline failure; 503 lets
		// GitHub redeliver instead of losing the event.
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "webhook queue full"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "event accepted",
		"event_type":  eventType,
		"delivery_id": deliveryID,
	})
}
