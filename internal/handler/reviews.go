package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prepvault/storefront/internal/model"
)

type reviewService interface {
	ListReviews(ctx context.Context, materialID int64) ([]model.ReviewView, error)
	CreateReview(ctx context.Context, identity *model.AuthUser, materialID int64, req model.CreateReviewRequest) (*model.Review, error)
}

type ReviewHandler struct {
	svc reviewService
}

func NewReviewHandler(svc reviewService) *ReviewHandler {
	return &ReviewHandler{svc: svc}
}

// ListReviews godoc
// @Summary List a material's reviews, newest first
// @Tags reviews
// @Produce json
// @Param id path int true "Material ID"
// @Success 200 {array} model.ReviewView
// @Failure 404 {object} model.ErrorResponse
// @Router /api/materials/{id}/reviews [get]
func (h *ReviewHandler) ListReviews(c *gin.Context) {
	id, ok := pathID(c, "id", "Material not found")
	if !ok {
		return
	}
	reviews, err := h.svc.ListReviews(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	if reviews == nil {
		reviews = []model.ReviewView{}
	}
	c.JSON(http.StatusOK, reviews)
}

// CreateReview godoc
// @Summary Review a purchased material
// @Description One review per buyer and material.
// @Tags reviews
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Material ID"
// @Param request body model.CreateReviewRequest true "Rating and comment"
// @Success 201 {object} model.Review
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/materials/{id}/reviews [post]
func (h *ReviewHandler) CreateReview(c *gin.Context) {
	id, ok := pathID(c, "id", "Material not found")
	if !ok {
		return
	}
	var req model.CreateReviewRequest
	if !bindJSON(c, &req) {
		return
	}
	review, err := h.svc.CreateReview(c.Request.Context(), GetAuthUser(c), id, req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, review)
}
