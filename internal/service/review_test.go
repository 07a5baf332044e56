package service

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/prepvault/storefront/internal/model"
	"go.uber.org/zap"
)

func newReviewFixture(t *testing.T) (*memStore, *ReviewService) {
	t.Helper()
	store := newMemStore()
	store.addMaterial(model.Material{ID: 7, Title: "Go Guide", PriceMinor: 299})
	store.addUser(model.User{ID: "user-1", FirstName: "Ada", LastName: "Lovelace"})
	return store, NewReviewService(store, NewEntitlementService(store), zap.NewNop())
}

func TestCreateReviewGates(t *testing.T) {
	store, svc := newReviewFixture(t)
	ctx := context.Background()
	user := &model.AuthUser{ID: "user-1"}
	req := model.CreateReviewRequest{Rating: 5, Comment: "  clear and current  "}

	cases := []struct {
		name       string
		identity   *model.AuthUser
		materialID int64
		req        model.CreateReviewRequest
		kind       error
		message    string
	}{
		{"anonymous", nil, 7, req, ErrUnauthorized, "Authentication required"},
		{"rating out of range", user, 7, model.CreateReviewRequest{Rating: 6}, ErrInvalidInput, "Rating must be between 1 and 5"},
		{"missing material", user, 99, req, ErrNotFound, "Material not found"},
		{"not purchased", user, 7, req, ErrForbidden, "You must purchase this material to leave a review"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateReview(ctx, tc.identity, tc.materialID, tc.req)
			if !errors.Is(err, tc.kind) || err.Error() != tc.message {
				t.Fatalf("expected %q, got %v", tc.message, err)
			}
		})
	}
	if len(store.reviews) != 0 {
		t.Fatalf("rejected reviews were stored: %+v", store.reviews)
	}

	store.purchases = append(store.purchases, model.Purchase{UserID: "user-1", MaterialID: 7, PaymentID: "pay_1"})
	review, err := svc.CreateReview(ctx, user, 7, req)
	if err != nil {
		t.Fatalf("CreateReview: %v", err)
	}
	if review.ID == 0 || review.Rating != 5 || review.Comment != "clear and current" {
		t.Fatalf("unexpected review %+v", review)
	}

	_, err = svc.CreateReview(ctx, user, 7, model.CreateReviewRequest{Rating: 1})
	if !errors.Is(err, ErrInvalidInput) || err.Error() != "You have already reviewed this material" {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
	if len(store.reviews) != 1 {
		t.Fatalf("expected one review, got %d", len(store.reviews))
	}
}

// racingReviews hides existing reviews from the lookup so the insert hits the
// unique constraint.
type racingReviews struct {
	*memStore
}

func (racingReviews) GetUserReview(context.Context, string, int64) (*model.Review, error) {
	return nil, pgx.ErrNoRows
}

func TestCreateReviewUniqueViolationIsDuplicate(t *testing.T) {
	store, _ := newReviewFixture(t)
	store.purchases = append(store.purchases, model.Purchase{UserID: "user-1", MaterialID: 7, PaymentID: "pay_1"})
	svc := NewReviewService(racingReviews{store}, NewEntitlementService(store), zap.NewNop())
	ctx := context.Background()
	user := &model.AuthUser{ID: "user-1"}

	if _, err := svc.CreateReview(ctx, user, 7, model.CreateReviewRequest{Rating: 4}); err != nil {
		t.Fatalf("first review: %v", err)
	}
	_, err := svc.CreateReview(ctx, user, 7, model.CreateReviewRequest{Rating: 2})
	if !errors.Is(err, ErrInvalidInput) || err.Error() != "You have already reviewed this material" {
		t.Fatalf("expected duplicate rejection, got %v", err)
	}
}

func TestListReviewsNewestFirst(t *testing.T) {
	store, svc := newReviewFixture(t)
	ctx := context.Background()

	reviews, err := svc.ListReviews(ctx, 7)
	if err != nil {
		t.Fatalf("ListReviews: %v", err)
	}
	if reviews == nil || len(reviews) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", reviews)
	}

	store.addUser(model.User{ID: "user-2", FirstName: "Grace"})
	store.reviews = append(store.reviews,
		model.Review{ID: 1, UserID: "user-1", MaterialID: 7, Rating: 4},
		model.Review{ID: 2, UserID: "user-2", MaterialID: 7, Rating: 5},
		model.Review{ID: 3, UserID: "user-2", MaterialID: 8, Rating: 1},
	)
	reviews, err = svc.ListReviews(ctx, 7)
	if err != nil {
		t.Fatalf("ListReviews: %v", err)
	}
	if len(reviews) != 2 || reviews[0].ID != 2 || reviews[1].Reviewer != "Ada Lovelace" {
		t.Fatalf("unexpected reviews %+v", reviews)
	}

	if _, err := svc.ListReviews(ctx, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
