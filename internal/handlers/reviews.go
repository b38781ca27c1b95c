package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"prsentinel/internal/storage"
)

// GetReview returns one review by id.
func (h *Handler) GetReview(c *gin.Context) {
	rev, err := h.store.GetReview(c.Request.Context(), c.Param("id"))
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "review not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load review"})
		return
	}

	c.JSON(http.StatusOK, rev)
}

// ListReviews returns a team's reviews, newest first. Connected
// clients call this after (re)connecting to resync missed events.
func (h *Handler) ListReviews(c *gin.Context) {
	teamID := c.Query("team_id")
	if teamID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "team_id query parameter is required"})
		return
	}

	reviews, err := h.store.ListReviewsByTeam(c.Request.Context(), teamID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list reviews"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"reviews": reviews})
}
