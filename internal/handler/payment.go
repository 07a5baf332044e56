package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prepvault/storefront/internal/model"
	"go.uber.org/zap"
)

const (
	signatureHeader = "X-Razorpay-Signature"
	eventIDHeader   = "X-Razorpay-Event-Id"

	// gateway webhook bodies are small; anything larger is not ours
	maxWebhookBody = 1 << 20
)

type purchaseService interface {
	CreateOrder(ctx context.Context, identity *model.AuthUser, req model.CreateOrderRequest) (*model.CreateOrderResponse, error)
	ConfirmSuccess(ctx context.Context, identity *model.AuthUser, req model.ConfirmSuccessRequest) ([]model.Purchase, error)
	RecordLegacy(ctx context.Context, identity *model.AuthUser, req model.RecordPurchaseRequest) ([]model.Purchase, error)
	HandleWebhook(ctx context.Context, body []byte, signature, eventID string) (*model.WebhookResponse, error)
	ListPurchases(ctx context.Context, userID string) ([]model.Purchase, error)
	ListAllPurchases(ctx context.Context) ([]model.AdminPurchase, error)
}

type PaymentHandler struct {
	svc    purchaseService
	logger *zap.Logger
}

func NewPaymentHandler(svc purchaseService, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{svc: svc, logger: logger.Named("payment")}
}

// CreateOrder godoc
// @Summary Create a gateway payment order
// @Description Prices materialIds on the server; a bare amount is taken in rupees.
// @Tags payment
// @Accept json
// @Produce json
// @Param request body model.CreateOrderRequest true "Amount or material ids"
// @Success 200 {object} model.CreateOrderResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /create-order [post]
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	var req model.CreateOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	resp, err := h.svc.CreateOrder(c.Request.Context(), GetAuthUser(c), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ConfirmSuccess godoc
// @Summary Verify a completed payment and record purchases
// @Description Checks the payment signature, then re-fetches the payment from the gateway and requires a captured payment whose amount matches the items.
// @Tags payment
// @Accept json
// @Produce json
// @Param request body model.ConfirmSuccessRequest true "Gateway confirmation"
// @Success 200 {object} model.VerificationResponse
// @Failure 400 {object} model.VerificationResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /confirm-success [post]
func (h *PaymentHandler) ConfirmSuccess(c *gin.Context) {
	var req model.ConfirmSuccessRequest
	if !bindJSON(c, &req) {
		return
	}

	purchases, err := h.svc.ConfirmSuccess(c.Request.Context(), GetAuthUser(c), req)
	h.writeVerification(c, purchases, err)
}

// RecordPurchase godoc
// @Summary Record a single purchase (legacy)
// @Description Same verification as /confirm-success for a single material.
// @Tags payment
// @Accept json
// @Produce json
// @Param request body model.RecordPurchaseRequest true "Gateway confirmation"
// @Success 200 {object} model.VerificationResponse
// @Failure 400 {object} model.VerificationResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/record-purchase [post]
func (h *PaymentHandler) RecordPurchase(c *gin.Context) {
	var req model.RecordPurchaseRequest
	if !bindJSON(c, &req) {
		return
	}

	purchases, err := h.svc.RecordLegacy(c.Request.Context(), GetAuthUser(c), req)
	h.writeVerification(c, purchases, err)
}

// Webhook godoc
// @Summary Gateway webhook
// @Description The body is verified byte-for-byte against X-Razorpay-Signature.
// @Tags payment
// @Accept json
// @Produce json
// @Param X-Razorpay-Signature header string true "HMAC-SHA256 of the raw body"
// @Success 200 {object} model.WebhookResponse
// @Failure 400 {object} model.ErrorResponse
// @Router /razorpay-webhook [post]
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		abortMessage(c, http.StatusBadRequest, "Invalid payload")
		return
	}

	resp, err := h.svc.HandleWebhook(c.Request.Context(), body, c.GetHeader(signatureHeader), c.GetHeader(eventIDHeader))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ListPurchases godoc
// @Summary List the caller's purchases
// @Tags payment
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Purchase
// @Failure 401 {object} model.ErrorResponse
// @Router /api/purchases [get]
func (h *PaymentHandler) ListPurchases(c *gin.Context) {
	purchases, err := h.svc.ListPurchases(c.Request.Context(), GetAuthUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, purchases)
}

// ListAllPurchases godoc
// @Summary List every purchase with its material and buyer
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.AdminPurchase
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /api/admin/purchases [get]
func (h *PaymentHandler) ListAllPurchases(c *gin.Context) {
	purchases, err := h.svc.ListAllPurchases(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, purchases)
}

// writeVerification keeps the {verified, msg} body for client-caused
// failures; dependency failures fall through to the generic 500.
func (h *PaymentHandler) writeVerification(c *gin.Context, purchases []model.Purchase, err error) {
	if err == nil {
		c.JSON(http.StatusOK, model.VerificationResponse{
			Verified:  true,
			Msg:       "Payment verified successfully",
			Purchases: purchases,
		})
		return
	}

	status := statusFor(err)
	if status != http.StatusBadRequest {
		writeError(c, err)
		return
	}
	msg := err.Error()
	c.AbortWithStatusJSON(status, model.VerificationResponse{Verified: false, Msg: msg, Message: msg})
}
