package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"clinic-chat/internal/models"
)

const reviewColumns = `id, reviewer_id, reviewee_id, score, notes, created_at`

// ReviewRepository abstracts review persistence. Reviews are created by the
// channel close transaction; this repository reads and edits them afterwards.
type ReviewRepository interface {
	ListReviews(ctx context.Context, filter models.ReviewFilter) ([]models.Review, error)
	GetReview(ctx context.Context, reviewID int) (models.Review, error)
	UpdateReview(ctx context.Context, reviewID int, score *int, notes *string) (models.Review, error)
	DeleteReview(ctx context.Context, reviewID int) (models.Review, error)
}

// ReviewRepo is a sqlx implementation of ReviewRepository.
type ReviewRepo struct {
	db *sqlx.DB
}

// NewReviewRepo constructs a ReviewRepo.
func NewReviewRepo(db *sqlx.DB) *ReviewRepo {
	return &ReviewRepo{db: db}
}

// ListReviews returns reviews matching the filter.
func (r *ReviewRepo) ListReviews(ctx context.Context, filter models.ReviewFilter) ([]models.Review, error) {
	var (
		conditions []string
		args       []any
	)
	if filter.ReviewerID != nil {
		args = append(args, *filter.ReviewerID)
		conditions = append(conditions, fmt.Sprintf("reviewer_id = $%d", len(args)))
	}
	if filter.RevieweeID != nil {
		args = append(args, *filter.RevieweeID)
		conditions = append(conditions, fmt.Sprintf("reviewee_id = $%d", len(args)))
	}

	query := `SELECT ` + reviewColumns + ` FROM reviews`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC"

	reviews := []models.Review{}
	err := r.db.SelectContext(ctx, &reviews, query, args...)
	return reviews, err
}

// GetReview fetches a single review.
func (r *ReviewRepo) GetReview(ctx context.Context, reviewID int) (models.Review, error) {
	var review models.Review
	err := r.db.GetContext(ctx, &review, `SELECT `+reviewColumns+` FROM reviews WHERE id=$1`, reviewID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Review{}, ErrReviewNotFound
	}
	return review, err
}

// UpdateReview sets score and notes.
func (r *ReviewRepo) UpdateReview(ctx context.Context, reviewID int, score *int, notes *string) (models.Review, error) {
	var review models.Review
	err := r.db.GetContext(ctx, &review, `UPDATE reviews SET score = $1, notes = $2 WHERE id = $3 RETURNING `+reviewColumns, score, notes, reviewID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Review{}, ErrReviewNotFound
	}
	return review, err
}

// DeleteReview removes a review and returns the deleted row.
func (r *ReviewRepo) DeleteReview(ctx context.Context, reviewID int) (models.Review, error) {
	var review models.Review
	err := r.db.GetContext(ctx, &review, `DELETE FROM reviews WHERE id = $1 RETURNING `+reviewColumns, reviewID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Review{}, ErrReviewNotFound
	}
	return review, err
}
