package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prepvault/storefront/internal/model"
)

type cartService interface {
	Cart(ctx context.Context, userID string) ([]model.CartItemView, error)
	AddToCart(ctx context.Context, userID string, materialID int64) error
	RemoveFromCart(ctx context.Context, userID string, materialID int64) error
}

type CartHandler struct {
	svc cartService
}

func NewCartHandler(svc cartService) *CartHandler {
	return &CartHandler{svc: svc}
}

// GetCart godoc
// @Summary List the caller's cart
// @Tags cart
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.CartItemView
// @Failure 401 {object} model.ErrorResponse
// @Router /api/cart [get]
func (h *CartHandler) GetCart(c *gin.Context) {
	items, err := h.svc.Cart(c.Request.Context(), GetAuthUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	if items == nil {
		items = []model.CartItemView{}
	}
	c.JSON(http.StatusOK, items)
}

// AddItem godoc
// @Summary Add a material to the cart
// @Tags cart
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body model.AddToCartRequest true "Material to add"
// @Success 200 {object} model.MessageResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/cart [post]
func (h *CartHandler) AddItem(c *gin.Context) {
	var req model.AddToCartRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.svc.AddToCart(c.Request.Context(), GetAuthUser(c).ID, req.MaterialID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Added to cart"})
}

// RemoveItem godoc
// @Summary Remove a material from the cart
// @Tags cart
// @Produce json
// @Security BearerAuth
// @Param materialId path int true "Material ID"
// @Success 200 {object} model.MessageResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/cart/{materialId} [delete]
func (h *CartHandler) RemoveItem(c *gin.Context) {
	id, ok := pathID(c, "materialId", "Material not found")
	if !ok {
		return
	}
	if err := h.svc.RemoveFromCart(c.Request.Context(), GetAuthUser(c).ID, id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Removed from cart"})
}
