package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prepvault/storefront/internal/client"
	"github.com/prepvault/storefront/internal/db"
	"github.com/prepvault/storefront/internal/model"
	"go.uber.org/zap"
)

const guestUserPrefix = "guest-"

type purchaseRepo interface {
	GetMaterial(ctx context.Context, id int64) (*model.Material, error)
	GetCartItems(ctx context.Context, userID string) ([]model.CartItem, error)
	ClearCart(ctx context.Context, userID string) error
	UpsertGuestUser(ctx context.Context, id, email, firstName string) (*model.User, error)
	CreateAnonymousUser(ctx context.Context, id string) (*model.User, error)
	RecordPurchases(ctx context.Context, purchases []model.Purchase) ([]model.Purchase, error)
	ListPurchases(ctx context.Context, userID string) ([]model.Purchase, error)
	ListAllPurchases(ctx context.Context) ([]model.AdminPurchase, error)
	SavePaymentOrder(ctx context.Context, order model.PaymentOrder) error
	GetPaymentOrder(ctx context.Context, orderID string) (*model.PaymentOrder, error)
	PaymentEventSeen(ctx context.Context, eventID string) (bool, error)
	MarkPaymentEvent(ctx context.Context, eventID, event, paymentID string) (bool, error)
}

type eventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// PurchaseService creates gateway orders and turns verified payments into
// purchase rows. Nothing is written until the signature and the captured
// amount have both been checked.
type PurchaseService struct {
	repo     purchaseRepo
	gateway  gatewayClient
	verifier *PaymentVerifier
	events   eventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

func NewPurchaseService(repo purchaseRepo, gateway gatewayClient, verifier *PaymentVerifier, events eventPublisher, logger *zap.Logger) *PurchaseService {
	return &PurchaseService{
		repo:     repo,
		gateway:  gateway,
		verifier: verifier,
		events:   events,
		logger:   logger.Named("purchase"),
		now:      time.Now,
	}
}

type resolvedItems struct {
	materials []model.Material
	fromCart  bool
}

func (r resolvedItems) total() int64 {
	var sum int64
	for _, m := range r.materials {
		sum += m.PriceMinor
	}
	return sum
}

func (r resolvedItems) ids() []int64 {
	ids := make([]int64, 0, len(r.materials))
	for _, m := range r.materials {
		ids = append(ids, m.ID)
	}
	return ids
}

// CreateOrder opens a gateway order. With material ids the amount is priced
// server-side; otherwise the body amount (in rupees) is used as given.
func (s *PurchaseService) CreateOrder(ctx context.Context, identity *model.AuthUser, req model.CreateOrderRequest) (*model.CreateOrderResponse, error) {
	var (
		amount int64
		items  resolvedItems
		err    error
	)

	if !req.MaterialIDs.Empty() {
		items, err = s.resolveItems(ctx, identityID(identity), req.MaterialIDs)
		if err != nil {
			return nil, err
		}
		if len(items.materials) == 0 {
			return nil, userError(ErrInvalidInput, "No items to purchase")
		}
		amount = items.total()
	} else {
		if strings.TrimSpace(req.Amount.String()) == "" {
			return nil, userError(ErrInvalidInput, "Amount is required")
		}
		amount, err = model.ParseMajor(req.Amount.String())
		if err != nil || amount <= 0 {
			return nil, userError(ErrInvalidInput, "Amount must be a positive number")
		}
	}

	receipt := fmt.Sprintf("receipt_%d", s.now().UnixMilli())
	order, err := s.gateway.CreateOrder(ctx, amount, model.CurrencyINR, receipt, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDependency, err)
	}

	record := model.PaymentOrder{
		OrderID:     order.ID,
		MaterialIDs: items.ids(),
		AmountMinor: amount,
		Currency:    model.CurrencyINR,
		Receipt:     receipt,
	}
	if id := identityID(identity); id != "" {
		record.UserID = &id
	}
	if err := s.repo.SavePaymentOrder(ctx, record); err != nil {
		// the checkout can still complete through confirm-success
		s.logger.Warn("failed to persist payment order", zap.String("orderId", order.ID), zap.Error(err))
	}

	return &model.CreateOrderResponse{PaymentOrder: *order, KeyID: s.gateway.KeyID()}, nil
}

// ConfirmSuccess verifies a client-side payment confirmation and records one
// purchase per resolved item.
func (s *PurchaseService) ConfirmSuccess(ctx context.Context, identity *model.AuthUser, req model.ConfirmSuccessRequest) ([]model.Purchase, error) {
	orderID := strings.TrimSpace(req.OrderCreationID)
	paymentID := strings.TrimSpace(req.RazorpayPaymentID)

	if !s.verifier.VerifySignature(orderID, paymentID, strings.TrimSpace(req.RazorpaySignature)) {
		s.logger.Warn("payment signature mismatch",
			zap.String("orderId", orderID),
			zap.String("paymentId", paymentID),
		)
		return nil, userError(ErrVerification, "Invalid signature")
	}

	userID := identityID(identity)
	items, err := s.resolveItems(ctx, userID, req.MaterialIDs)
	if err != nil {
		return nil, err
	}
	if len(items.materials) == 0 {
		return nil, userError(ErrInvalidInput, "No items to purchase")
	}

	total := items.total()
	if _, err := s.verifier.VerifyCapture(ctx, paymentID, orderID, total); err != nil {
		if !isDependency(err) {
			s.logger.Warn("payment capture rejected",
				zap.String("orderId", orderID),
				zap.String("paymentId", paymentID),
				zap.Int64("expectedMinor", total),
				zap.Error(err),
			)
		}
		return nil, err
	}

	if userID == "" {
		user, err := s.guestUser(ctx, req.CustomerEmail)
		if err != nil {
			return nil, err
		}
		userID = user.ID
	}

	purchases := make([]model.Purchase, 0, len(items.materials))
	for _, m := range items.materials {
		purchases = append(purchases, model.Purchase{
			UserID:     userID,
			MaterialID: m.ID,
			PriceMinor: m.PriceMinor,
			PaymentID:  paymentID,
			OrderID:    orderID,
			Signature:  req.RazorpaySignature,
		})
	}
	recorded, err := s.repo.RecordPurchases(ctx, purchases)
	if err != nil {
		return nil, fmt.Errorf("failed to record purchases: %w", err)
	}

	if items.fromCart {
		if err := s.repo.ClearCart(ctx, userID); err != nil {
			s.logger.Warn("failed to clear cart", zap.String("userId", userID), zap.Error(err))
		}
	}

	s.logger.Info("payment verified",
		zap.String("orderId", orderID),
		zap.String("paymentId", paymentID),
		zap.String("userId", userID),
		zap.Int("items", len(purchases)),
		zap.Int("recorded", len(recorded)),
	)
	s.publishRecorded(ctx, recorded)
	return recorded, nil
}

// RecordLegacy serves the single-item confirmation body through the same
// verification path as ConfirmSuccess.
func (s *PurchaseService) RecordLegacy(ctx context.Context, identity *model.AuthUser, req model.RecordPurchaseRequest) ([]model.Purchase, error) {
	return s.ConfirmSuccess(ctx, identity, model.ConfirmSuccessRequest{
		OrderCreationID:   req.RazorpayOrderID,
		RazorpayPaymentID: req.RazorpayPaymentID,
		RazorpaySignature: req.RazorpaySignature,
		MaterialIDs:       model.MaterialRefs{IDs: []int64{req.MaterialID}},
	})
}

// HandleWebhook verifies and applies an asynchronous gateway notification.
// eventID may be empty, in which case one is derived from the payload.
func (s *PurchaseService) HandleWebhook(ctx context.Context, body []byte, signature, eventID string) (*model.WebhookResponse, error) {
	if !s.verifier.VerifyWebhookSignature(body, strings.TrimSpace(signature)) {
		s.logger.Warn("webhook signature mismatch", zap.Int("bytes", len(body)))
		return nil, userError(ErrVerification, "Invalid signature")
	}

	var evt model.WebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil || evt.Event == "" {
		return nil, userError(ErrInvalidInput, "Invalid payload")
	}
	payment := evt.Payload.Payment.Entity
	evt.ID = strings.TrimSpace(eventID)
	if evt.ID == "" {
		evt.ID = evt.Event + ":" + payment.ID
	}

	resp := &model.WebhookResponse{Status: "ok", Event: evt.Event}
	seen, err := s.repo.PaymentEventSeen(ctx, evt.ID)
	if err != nil {
		s.logger.Warn("failed to look up webhook event", zap.String("eventId", evt.ID), zap.Error(err))
	} else if seen {
		s.logger.Debug("duplicate webhook delivery", zap.String("eventId", evt.ID))
		return resp, nil
	}

	// The event is marked only after processing so a failed delivery is
	// retried by the gateway.
	if evt.Event == model.EventPaymentCaptured {
		handled, err := s.reconcileCapture(ctx, payment)
		if err != nil {
			return nil, err
		}
		resp.Handled = handled
	}

	fresh, err := s.repo.MarkPaymentEvent(ctx, evt.ID, evt.Event, payment.ID)
	if err != nil {
		s.logger.Warn("failed to store webhook event", zap.String("eventId", evt.ID), zap.Error(err))
	} else if !fresh {
		s.logger.Debug("concurrent webhook delivery", zap.String("eventId", evt.ID))
	}
	return resp, nil
}

// reconcileCapture records purchases for a captured payment whose order was
// created with a known user and item set. Purchases already recorded by
// confirm-success are skipped by the (payment, material) constraint.
func (s *PurchaseService) reconcileCapture(ctx context.Context, payment model.GatewayPayment) (bool, error) {
	if payment.OrderID == "" || payment.ID == "" {
		return false, nil
	}
	order, err := s.repo.GetPaymentOrder(ctx, payment.OrderID)
	if err != nil {
		if db.IsNoRows(err) {
			s.logger.Info("webhook for unknown order", zap.String("orderId", payment.OrderID))
			return false, nil
		}
		return false, err
	}
	if order.UserID == nil || len(order.MaterialIDs) == 0 {
		return false, nil
	}
	if payment.Status != model.PaymentStatusCaptured || payment.Amount != order.AmountMinor {
		s.logger.Warn("webhook capture does not match order",
			zap.String("orderId", order.OrderID),
			zap.String("paymentId", payment.ID),
			zap.Int64("amount", payment.Amount),
			zap.Int64("expectedMinor", order.AmountMinor),
		)
		return false, nil
	}

	purchases := make([]model.Purchase, 0, len(order.MaterialIDs))
	for _, id := range order.MaterialIDs {
		m, err := s.repo.GetMaterial(ctx, id)
		if err != nil {
			if db.IsNoRows(err) {
				continue
			}
			return false, err
		}
		purchases = append(purchases, model.Purchase{
			UserID:     *order.UserID,
			MaterialID: m.ID,
			PriceMinor: m.PriceMinor,
			PaymentID:  payment.ID,
			OrderID:    order.OrderID,
		})
	}
	if len(purchases) == 0 {
		return false, nil
	}

	recorded, err := s.repo.RecordPurchases(ctx, purchases)
	if err != nil {
		return false, fmt.Errorf("failed to record purchases: %w", err)
	}
	s.publishRecorded(ctx, recorded)
	return true, nil
}

func (s *PurchaseService) ListPurchases(ctx context.Context, userID string) ([]model.Purchase, error) {
	purchases, err := s.repo.ListPurchases(ctx, userID)
	if err != nil {
		return nil, err
	}
	if purchases == nil {
		purchases = []model.Purchase{}
	}
	return purchases, nil
}

// ListAllPurchases is the admin view across every buyer.
func (s *PurchaseService) ListAllPurchases(ctx context.Context) ([]model.AdminPurchase, error) {
	purchases, err := s.repo.ListAllPurchases(ctx)
	if err != nil {
		return nil, err
	}
	if purchases == nil {
		purchases = []model.AdminPurchase{}
	}
	return purchases, nil
}

// resolveItems expands the item selector. The cart is only read for a known
// user; explicit ids that are missing or inactive are dropped.
func (s *PurchaseService) resolveItems(ctx context.Context, userID string, refs model.MaterialRefs) (resolvedItems, error) {
	var out resolvedItems
	seen := make(map[int64]bool)

	if refs.Cart && userID != "" {
		cart, err := s.repo.GetCartItems(ctx, userID)
		if err != nil {
			return out, err
		}
		out.fromCart = true
		for _, item := range cart {
			if seen[item.Material.ID] {
				continue
			}
			seen[item.Material.ID] = true
			out.materials = append(out.materials, item.Material)
		}
	}

	for _, id := range refs.IDs {
		if id <= 0 || seen[id] {
			continue
		}
		m, err := s.repo.GetMaterial(ctx, id)
		if err != nil {
			if db.IsNoRows(err) {
				continue
			}
			return out, err
		}
		seen[id] = true
		out.materials = append(out.materials, *m)
	}
	return out, nil
}

func (s *PurchaseService) guestUser(ctx context.Context, email string) (*model.User, error) {
	id := guestUserPrefix + uuid.NewString()
	email = normalizeEmail(email)
	if email == "" {
		return s.repo.CreateAnonymousUser(ctx, id)
	}
	return s.repo.UpsertGuestUser(ctx, id, email, "Customer")
}

func (s *PurchaseService) publishRecorded(ctx context.Context, purchases []model.Purchase) {
	for _, p := range purchases {
		if err := s.events.Publish(ctx, client.EventPurchaseRecorded, p); err != nil {
			s.logger.Warn("failed to publish purchase event", zap.Int64("purchaseId", p.ID), zap.Error(err))
		}
	}
}

func identityID(identity *model.AuthUser) string {
	if identity == nil {
		return ""
	}
	return identity.ID
}
