package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"clinic-chat/internal/models"
	"clinic-chat/internal/repositories"
)

// ReviewHandler serves the reviews seeded by channel archival.
type ReviewHandler struct {
	reviews repositories.ReviewRepository
	logger  zerolog.Logger
}

// NewReviewHandler builds a ReviewHandler.
func NewReviewHandler(reviews repositories.ReviewRepository, logger zerolog.Logger) *ReviewHandler {
	return &ReviewHandler{reviews: reviews, logger: logger}
}

func (h *ReviewHandler) ListReviews(c *gin.Context) {
	reviewer, ok := optionalIntQuery(c, "reviewer_id")
	if !ok {
		badRequest(c, "Invalid reviewer_id, must be an integer")
		return
	}
	reviewee, ok := optionalIntQuery(c, "reviewee_id")
	if !ok {
		badRequest(c, "Invalid reviewee_id, must be an integer")
		return
	}

	reviews, err := h.reviews.ListReviews(c.Request.Context(), models.ReviewFilter{ReviewerID: reviewer, RevieweeID: reviewee})
	if err != nil {
		writeError(c, h.logger, err, "Failed to fetch reviews")
		return
	}
	c.JSON(http.StatusOK, reviews)
}

func (h *ReviewHandler) GetReview(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		badRequest(c, "invalid review id")
		return
	}
	review, err := h.reviews.GetReview(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err, "Failed to fetch review")
		return
	}
	c.JSON(http.StatusOK, review)
}

// UpdateReview fills in score and notes.
func (h *ReviewHandler) UpdateReview(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		badRequest(c, "invalid review id")
		return
	}
	var req struct {
		Score *int    `json:"score"`
		Notes *string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	review, err := h.reviews.UpdateReview(c.Request.Context(), id, req.Score, req.Notes)
	if err != nil {
		writeError(c, h.logger, err, "Failed to update review")
		return
	}
	c.JSON(http.StatusOK, review)
}

func (h *ReviewHandler) DeleteReview(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		badRequest(c, "invalid review id")
		return
	}
	review, err := h.reviews.DeleteReview(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err, "Failed to delete review")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Review deleted", "review": review})
}
