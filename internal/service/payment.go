package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/prepvault/storefront/internal/model"
)

type gatewayClient interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*model.GatewayOrder, error)
	FetchPayment(ctx context.Context, paymentID string) (*model.GatewayPayment, error)
	KeyID() string
}

// PaymentVerifier checks gateway callbacks. Signatures are hex HMAC-SHA256
// digests compared in constant time; captures are re-read from the gateway.
type PaymentVerifier struct {
	gateway       gatewayClient
	keySecret     []byte
	webhookSecret []byte
}

func NewPaymentVerifier(gateway gatewayClient, keySecret, webhookSecret string) *PaymentVerifier {
	return &PaymentVerifier{
		gateway:       gateway,
		keySecret:     []byte(keySecret),
		webhookSecret: []byte(webhookSecret),
	}
}

// SignOrderPayment computes hex(HMAC-SHA256(keySecret, orderID|paymentID)).
func (v *PaymentVerifier) SignOrderPayment(orderID, paymentID string) string {
	return hexHMAC(v.keySecret, []byte(orderID+"|"+paymentID))
}

func (v *PaymentVerifier) VerifySignature(orderID, paymentID, signature string) bool {
	if len(v.keySecret) == 0 || orderID == "" || paymentID == "" || signature == "" {
		return false
	}
	expected := v.SignOrderPayment(orderID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature checks the signature header against the exact
// request bytes.
func (v *PaymentVerifier) VerifyWebhookSignature(body []byte, signature string) bool {
	if len(v.webhookSecret) == 0 || signature == "" {
		return false
	}
	expected := hexHMAC(v.webhookSecret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyCapture re-fetches the payment and requires it to be captured for
// exactly expectedMinor against orderID. Gateway failures are returned as
// ErrDependency, never treated as success.
func (v *PaymentVerifier) VerifyCapture(ctx context.Context, paymentID, orderID string, expectedMinor int64) (*model.GatewayPayment, error) {
	payment, err := v.gateway.FetchPayment(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependency, err)
	}
	if payment.Status != model.PaymentStatusCaptured {
		return payment, userError(ErrVerification, "Payment not captured")
	}
	if payment.OrderID != "" && payment.OrderID != orderID {
		return payment, userError(ErrVerification, "Payment does not belong to this order")
	}
	if payment.Amount != expectedMinor {
		return payment, userError(ErrVerification, "Payment amount mismatch")
	}
	return payment, nil
}

func hexHMAC(secret, data []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}
