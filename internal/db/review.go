package db

import (
	"context"

	"github.com/prepvault/storefront/internal/model"
)

// ListReviews returns a material's reviews, newest first, with the reviewer's
// name.
func (db *Postgres) ListReviews(ctx context.Context, materialID int64) ([]model.ReviewView, error) {
	query := `
		SELECT r.id, r.user_id, r.material_id, r.rating, r.comment, r.created_at,
			TRIM(u.first_name || ' ' || u.last_name)
		FROM reviews r
		JOIN users u ON u.id = r.user_id
		WHERE r.material_id = $1
		ORDER BY r.created_at DESC, r.id DESC
	`
	rows, err := db.Pool.Query(ctx, query, materialID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []model.ReviewView
	for rows.Next() {
		var r model.ReviewView
		if err := rows.Scan(&r.ID, &r.UserID, &r.MaterialID, &r.Rating, &r.Comment, &r.CreatedAt, &r.Reviewer); err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

func (db *Postgres) GetUserReview(ctx context.Context, userID string, materialID int64) (*model.Review, error) {
	query := `
		SELECT id, user_id, material_id, rating, comment, created_at
		FROM reviews
		WHERE user_id = $1 AND material_id = $2
	`
	var r model.Review
	err := db.Pool.QueryRow(ctx, query, userID, materialID).
		Scan(&r.ID, &r.UserID, &r.MaterialID, &r.Rating, &r.Comment, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (db *Postgres) CreateReview(ctx context.Context, review model.Review) (*model.Review, error) {
	query := `
		INSERT INTO reviews (user_id, material_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, NOW())
		RETURNING id, created_at
	`
	err := db.Pool.QueryRow(ctx, query, review.UserID, review.MaterialID, review.Rating, review.Comment).
		Scan(&review.ID, &review.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &review, nil
}
