package service_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prepvault/storefront/internal/cache"
	"github.com/prepvault/storefront/internal/client"
	"github.com/prepvault/storefront/internal/config"
	"github.com/prepvault/storefront/internal/handler"
	"github.com/prepvault/storefront/internal/model"
	"github.com/prepvault/storefront/internal/service"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type storefront struct {
	t        *testing.T
	router   *gin.Engine
	store    *service.MemStore
	gateway  *service.FakeGateway
	verifier *service.PaymentVerifier
}

func newStorefront(t *testing.T) *storefront {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	authCfg := config.AuthConfig{
		JWTSecret:      "e2e-jwt-secret",
		AccessTTL:      15 * time.Minute,
		RefreshTTL:     time.Hour,
		CookieSameSite: "lax",
	}

	store := service.NewMemStore()
	blobs := service.NewMemBlobs()
	gateway := service.NewFakeGateway()

	tokens, err := service.NewTokenService(store, authCfg)
	require.NoError(t, err)
	accounts := service.NewAuthService(store, tokens)
	admins := service.NewAdminService(store, config.AdminConfig{}, authCfg.JWTSecret, logger)
	verifier := service.NewPaymentVerifier(gateway, "e2e-key-secret", "e2e-webhook-secret")
	purchases := service.NewPurchaseService(store, gateway, verifier, client.NopPublisher{}, logger)
	catalog := service.NewCatalogService(store, cache.NewMemory(), config.CacheConfig{
		MaterialsTTL: time.Minute,
		SitemapTTL:   time.Minute,
		SiteURL:      "http://localhost:5000",
	}, logger)
	entitlements := service.NewEntitlementService(store)
	delivery := service.NewDeliveryService(store, entitlements, blobs)
	reviews := service.NewReviewService(store, entitlements, logger)
	uploads := service.NewUploadService(store, service.NewCleanScanner(), blobs, catalog, client.NopPublisher{}, 0, logger)

	cookies := handler.NewCookieSettings(authCfg, false)
	stats := handler.NewRateLimitStats()
	router := handler.NewRouter(handler.RouterConfig{}, tokens, admins, handler.Handlers{
		Auth:      handler.NewAuthHandler(accounts, tokens, nil, cookies, "http://localhost:5000", logger),
		Admin:     handler.NewAdminHandler(admins, uploads, cookies, logger),
		Materials: handler.NewMaterialHandler(catalog, delivery, logger),
		Cart:      handler.NewCartHandler(catalog),
		Payment:   handler.NewPaymentHandler(purchases, logger),
		Reviews:   handler.NewReviewHandler(reviews),
		Health:    handler.NewHealthHandler(nopPinger{}, stats, logger),
	}, stats, logger)

	store.AddMaterial(model.Material{ID: 7, Title: "Go Interview Guide", PriceMinor: 299, ContentURL: "guides/go.pdf"})
	blobs.Seed("guides/go.pdf", []byte("%PDF-1.7 go guide"))

	return &storefront{t: t, router: router, store: store, gateway: gateway, verifier: verifier}
}

type nopPinger struct{}

func (nopPinger) Ping(context.Context) error { return nil }

func (s *storefront) call(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func TestCheckoutToDownload(t *testing.T) {
	s := newStorefront(t)
	creds := map[string]string{"email": "buyer@example.com", "password": "correct horse battery"}

	w := s.call(http.MethodPost, "/api/auth/register", "", creds)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.call(http.MethodPost, "/api/auth/login", "", creds)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var login model.AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	token := login.AccessToken

	w = s.call(http.MethodGet, "/api/materials/7/download", token, nil)
	require.Equal(t, http.StatusForbidden, w.Code, "not purchased yet")

	review := map[string]any{"rating": 5, "comment": "covers the runtime well"}
	w = s.call(http.MethodPost, "/api/materials/7/reviews", token, review)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.JSONEq(t, `{"message":"You must purchase this material to leave a review"}`, w.Body.String())

	w = s.call(http.MethodPost, "/create-order", token, map[string]any{"amount": "2.99"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var order model.CreateOrderResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &order))
	require.Equal(t, int64(299), order.PaymentOrder.Amount)

	const paymentID = "pay_e2e"
	s.gateway.Capture(paymentID, order.PaymentOrder.ID, 299)

	w = s.call(http.MethodPost, "/confirm-success", token, map[string]any{
		"orderCreationId":   order.PaymentOrder.ID,
		"razorpayPaymentId": paymentID,
		"razorpaySignature": s.verifier.SignOrderPayment(order.PaymentOrder.ID, paymentID),
		"materialIds":       []int{7},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var verification model.VerificationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verification))
	require.True(t, verification.Verified)

	recorded := s.store.Purchases()
	require.Len(t, recorded, 1)
	require.Equal(t, login.User.ID, recorded[0].UserID)
	require.Equal(t, int64(7), recorded[0].MaterialID)

	w = s.call(http.MethodGet, "/api/materials/7/download", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "%PDF-1.7 go guide", w.Body.String())
	require.Equal(t, `attachment; filename="Go Interview Guide.pdf"`, w.Header().Get("Content-Disposition"))

	w = s.call(http.MethodPost, "/api/materials/7/reviews", token, review)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.call(http.MethodPost, "/api/materials/7/reviews", token, review)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.JSONEq(t, `{"message":"You have already reviewed this material"}`, w.Body.String())

	w = s.call(http.MethodGet, "/api/materials/7/reviews", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var reviews []model.ReviewView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &reviews))
	require.Len(t, reviews, 1)
	require.Equal(t, login.User.ID, reviews[0].UserID)
	require.Equal(t, "covers the runtime well", reviews[0].Comment)
}

func TestCheckoutRejectsUnderpayment(t *testing.T) {
	s := newStorefront(t)
	s.gateway.Capture("pay_short", "order_short", 250)

	w := s.call(http.MethodPost, "/confirm-success", "", map[string]any{
		"orderCreationId":   "order_short",
		"razorpayPaymentId": "pay_short",
		"razorpaySignature": s.verifier.SignOrderPayment("order_short", "pay_short"),
		"materialIds":       []int{7},
		"customerEmail":     "guest@example.com",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	var verification model.VerificationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &verification))
	require.False(t, verification.Verified)
	require.Empty(t, s.store.Purchases())
}
