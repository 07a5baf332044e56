package model

import "time"

type Review struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"userId"`
	MaterialID int64     `json:"materialId"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ReviewView is a review with the reviewer's display name.
type ReviewView struct {
	Review
	Reviewer string `json:"reviewer"`
}

type CreateReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"max=2000"`
}

// AdminPurchase is a purchase row joined with its material and buyer.
type AdminPurchase struct {
	Purchase
	MaterialTitle string `json:"materialTitle"`
	UserEmail     string `json:"userEmail,omitempty"`
}

type AdminCheckResponse struct {
	IsAdmin bool `json:"isAdmin"`
}
