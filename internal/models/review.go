package models

import "time"

// Review is feedback from a plain user about a staff member. It is seeded with
// nil score and notes when a channel is archived.
type Review struct {
	ID         int       `db:"id" json:"id"`
	ReviewerID *int      `db:"reviewer_id" json:"reviewer_id"`
	RevieweeID *int      `db:"reviewee_id" json:"reviewee_id"`
	Score      *int      `db:"score" json:"score"`
	Notes      *string   `db:"notes" json:"notes"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ReviewFilter narrows a review listing.
type ReviewFilter struct {
	ReviewerID *int
	RevieweeID *int
}

// DeviceToken is a push destination registered for a user.
type DeviceToken struct {
	ID          int       `db:"id" json:"id"`
	UserID      int       `db:"user_id" json:"user_id"`
	DeviceToken string    `db:"device_token" json:"device_token"`
	Platform    *string   `db:"platform" json:"platform,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
