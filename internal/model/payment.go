package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

const CurrencyINR = "INR"

// CartRef is the item selector that means "everything in the caller's cart".
const CartRef = "cart"

type Purchase struct {
	ID          int64     `json:"id"`
	UserID      string    `json:"userId"`
	MaterialID  int64     `json:"materialId"`
	PriceMinor  int64     `json:"-"`
	Price       string    `json:"price"`
	PaymentID   string    `json:"paymentId"`
	OrderID     string    `json:"orderId"`
	Signature   string    `json:"-"`
	PurchasedAt time.Time `json:"purchasedAt"`
}

// MaterialRefs accepts a JSON array of material ids (numbers or numeric
// strings) that may also contain the literal "cart".
type MaterialRefs struct {
	Cart bool
	IDs  []int64
}

func (r *MaterialRefs) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = MaterialRefs{}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.New("materialIds must be an array")
	}

	out := MaterialRefs{}
	for _, item := range raw {
		var num int64
		if err := json.Unmarshal(item, &num); err == nil {
			out.IDs = append(out.IDs, num)
			continue
		}
		var str string
		if err := json.Unmarshal(item, &str); err != nil {
			return errors.New("materialIds entries must be ids or \"cart\"")
		}
		if strings.EqualFold(str, CartRef) {
			out.Cart = true
			continue
		}
		id, err := strconv.ParseInt(str, 10, 64)
		if err != nil {
			return errors.New("materialIds entries must be ids or \"cart\"")
		}
		out.IDs = append(out.IDs, id)
	}
	*r = out
	return nil
}

func (r MaterialRefs) Empty() bool {
	return !r.Cart && len(r.IDs) == 0
}

type CreateOrderRequest struct {
	Amount      json.Number  `json:"amount"`
	MaterialIDs MaterialRefs `json:"materialIds"`
}

type CreateOrderResponse struct {
	PaymentOrder GatewayOrder `json:"paymentOrder"`
	KeyID        string       `json:"key_id"`
}

type ConfirmSuccessRequest struct {
	OrderCreationID   string       `json:"orderCreationId" binding:"required"`
	RazorpayPaymentID string       `json:"razorpayPaymentId" binding:"required"`
	RazorpaySignature string       `json:"razorpaySignature" binding:"required"`
	MaterialIDs       MaterialRefs `json:"materialIds"`
	CustomerEmail     string       `json:"customerEmail" binding:"omitempty,email"`
}

// RecordPurchaseRequest is the legacy single-item confirmation body.
type RecordPurchaseRequest struct {
	MaterialID        int64  `json:"materialId" binding:"required,gt=0"`
	RazorpayOrderID   string `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string `json:"razorpay_signature" binding:"required"`
}

// VerificationResponse keeps the gateway SDK's {verified, msg} shape; failed
// verifications also carry message like every other error body.
type VerificationResponse struct {
	Verified  bool       `json:"verified"`
	Msg       string     `json:"msg"`
	Message   string     `json:"message,omitempty"`
	Purchases []Purchase `json:"purchases,omitempty"`
}

// GatewayOrder mirrors the gateway's order entity.
type GatewayOrder struct {
	ID         string            `json:"id"`
	Entity     string            `json:"entity"`
	Amount     int64             `json:"amount"`
	AmountPaid int64             `json:"amount_paid"`
	AmountDue  int64             `json:"amount_due"`
	Currency   string            `json:"currency"`
	Receipt    string            `json:"receipt"`
	Status     string            `json:"status"`
	Notes      map[string]string `json:"notes,omitempty"`
	CreatedAt  int64             `json:"created_at"`
}

// GatewayPayment mirrors the gateway's payment entity.
type GatewayPayment struct {
	ID       string `json:"id"`
	Entity   string `json:"entity"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
	OrderID  string `json:"order_id"`
	Method   string `json:"method"`
	Captured bool   `json:"captured"`
	Email    string `json:"email"`
}

const PaymentStatusCaptured = "captured"

type PaymentOrder struct {
	OrderID     string
	UserID      *string
	MaterialIDs []int64
	AmountMinor int64
	Currency    string
	Receipt     string
	CreatedAt   time.Time
}

type WebhookEvent struct {
	ID        string `json:"-"`
	Event     string `json:"event"`
	AccountID string `json:"account_id"`
	Payload   struct {
		Payment struct {
			Entity GatewayPayment `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
	CreatedAt int64 `json:"created_at"`
}

const EventPaymentCaptured = "payment.captured"

type WebhookResponse struct {
	Status  string `json:"status"`
	Event   string `json:"event,omitempty"`
	Handled bool   `json:"handled"`
}
