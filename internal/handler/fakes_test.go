package handler

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prepvault/storefront/internal/client"
	"github.com/prepvault/storefront/internal/config"
	"github.com/prepvault/storefront/internal/model"
	"github.com/prepvault/storefront/internal/service"
	"go.uber.org/zap"
)

type fakeTokens struct {
	users map[string]*model.AuthUser
}

func (f *fakeTokens) VerifyAccessToken(token string) *model.AuthUser {
	return f.users[token]
}

type fakeAccounts struct {
	user   *model.User
	tokens *model.AuthTokens
	err    error
}

func (f *fakeAccounts) Register(context.Context, model.RegisterRequest) (*model.User, *model.AuthTokens, error) {
	return f.user, f.tokens, f.err
}

func (f *fakeAccounts) Login(context.Context, string, string) (*model.User, *model.AuthTokens, error) {
	return f.user, f.tokens, f.err
}

func (f *fakeAccounts) LoginWithIdentity(context.Context, *client.OIDCIdentity) (*model.User, *model.AuthTokens, error) {
	return f.user, f.tokens, f.err
}

func (f *fakeAccounts) CurrentUser(context.Context, string) (*model.User, error) {
	return f.user, f.err
}

type fakeRotator struct {
	valid   string
	revoked []string
}

func (f *fakeRotator) RefreshAuthTokens(_ context.Context, raw string) (*model.AuthTokens, *model.User, error) {
	if raw != f.valid {
		return nil, nil, service.ErrUnauthorized
	}
	return &model.AuthTokens{AccessToken: "new-access", RefreshToken: "new-refresh", ExpiresIn: 900}, &model.User{ID: "user-1"}, nil
}

func (f *fakeRotator) RevokeRefreshToken(_ context.Context, raw string) error {
	f.revoked = append(f.revoked, raw)
	return nil
}

type fakeAdmins struct {
	token   string
	session *model.AdminSession
}

func (f *fakeAdmins) Validate(_ context.Context, token string) (*model.AdminSession, error) {
	if token == "" || token != f.token {
		return nil, service.ErrUnauthorized
	}
	return f.session, nil
}

func (f *fakeAdmins) Login(_ context.Context, username, password string) (string, *model.AdminSession, error) {
	if username != "admin" || password != "pw" {
		return "", nil, &service.UserError{Kind: service.ErrUnauthorized, Message: "Invalid credentials"}
	}
	return f.token, f.session, nil
}

func (f *fakeAdmins) Logout(context.Context, string) error {
	return nil
}

func (f *fakeAdmins) Username(*model.AdminSession) string {
	return "admin"
}

type fakeUploads struct {
	max  int64
	got  *service.UploadInput
	err  error
	list []model.Upload
}

func (f *fakeUploads) MaxBytes() int64 {
	return f.max
}

func (f *fakeUploads) Intake(_ context.Context, in service.UploadInput) (*model.Upload, *model.Material, error) {
	f.got = &in
	if f.err != nil {
		return nil, nil, f.err
	}
	return &model.Upload{ID: 1, OriginalName: in.OriginalName}, &model.Material{ID: 2, Title: "GO Interview Questions & Answers", PriceMinor: 299}, nil
}

func (f *fakeUploads) List(context.Context) ([]model.Upload, error) {
	return f.list, nil
}

func (f *fakeUploads) Delete(_ context.Context, id int64) error {
	if id != 1 {
		return &service.UserError{Kind: service.ErrNotFound, Message: "Upload not found"}
	}
	return nil
}

type fakeCatalog struct {
	materials []model.MaterialView
}

func (f *fakeCatalog) ListMaterials(context.Context) ([]model.MaterialView, error) {
	return f.materials, nil
}

func (f *fakeCatalog) GetMaterial(_ context.Context, id int64) (*model.MaterialView, error) {
	for i := range f.materials {
		if f.materials[i].ID == id {
			return &f.materials[i], nil
		}
	}
	return nil, &service.UserError{Kind: service.ErrNotFound, Message: "Material not found"}
}

func (f *fakeCatalog) Sitemap(context.Context) ([]byte, error) {
	return []byte("<urlset></urlset>"), nil
}

func (f *fakeCatalog) Robots() string {
	return "User-agent: *\n"
}

type fakeDelivery struct {
	body     string
	filename string
	err      error
	mode     service.Mode
	identity *model.AuthUser
}

func (f *fakeDelivery) open() (*service.Delivery, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &service.Delivery{
		Body:        io.NopCloser(bytes.NewBufferString(f.body)),
		Size:        int64(len(f.body)),
		ContentType: "application/pdf",
		Filename:    f.filename,
	}, nil
}

func (f *fakeDelivery) OpenMaterial(_ context.Context, identity *model.AuthUser, _ int64, mode service.Mode) (*service.Delivery, error) {
	f.identity, f.mode = identity, mode
	if identity == nil {
		return nil, &service.UserError{Kind: service.ErrUnauthorized, Message: "Authentication required"}
	}
	return f.open()
}

func (f *fakeDelivery) OpenUpload(_ context.Context, identity *model.AuthUser, _ int64) (*service.Delivery, error) {
	f.identity = identity
	return f.open()
}

type fakeCart struct {
	items []model.CartItemView
}

func (f *fakeCart) Cart(context.Context, string) ([]model.CartItemView, error) {
	return f.items, nil
}

func (f *fakeCart) AddToCart(_ context.Context, _ string, materialID int64) error {
	if materialID != 7 {
		return &service.UserError{Kind: service.ErrNotFound, Message: "Material not found"}
	}
	return nil
}

func (f *fakeCart) RemoveFromCart(context.Context, string, int64) error {
	return nil
}

type fakePurchases struct {
	err       error
	purchases []model.Purchase
	webhook   struct {
		body      []byte
		signature string
		eventID   string
	}
	identity *model.AuthUser
}

func (f *fakePurchases) CreateOrder(_ context.Context, identity *model.AuthUser, _ model.CreateOrderRequest) (*model.CreateOrderResponse, error) {
	f.identity = identity
	if f.err != nil {
		return nil, f.err
	}
	return &model.CreateOrderResponse{PaymentOrder: model.GatewayOrder{ID: "order_1", Amount: 299}, KeyID: "rzp_test_key"}, nil
}

func (f *fakePurchases) ConfirmSuccess(_ context.Context, identity *model.AuthUser, _ model.ConfirmSuccessRequest) ([]model.Purchase, error) {
	f.identity = identity
	return f.purchases, f.err
}

func (f *fakePurchases) RecordLegacy(_ context.Context, identity *model.AuthUser, _ model.RecordPurchaseRequest) ([]model.Purchase, error) {
	f.identity = identity
	return f.purchases, f.err
}

func (f *fakePurchases) HandleWebhook(_ context.Context, body []byte, signature, eventID string) (*model.WebhookResponse, error) {
	f.webhook.body, f.webhook.signature, f.webhook.eventID = body, signature, eventID
	if f.err != nil {
		return nil, f.err
	}
	return &model.WebhookResponse{Status: "ok", Event: model.EventPaymentCaptured, Handled: true}, nil
}

func (f *fakePurchases) ListPurchases(context.Context, string) ([]model.Purchase, error) {
	return f.purchases, f.err
}

func (f *fakePurchases) ListAllPurchases(context.Context) ([]model.AdminPurchase, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.AdminPurchase, 0, len(f.purchases))
	for _, p := range f.purchases {
		out = append(out, model.AdminPurchase{Purchase: p, MaterialTitle: "Go"})
	}
	return out, nil
}

type fakeReviews struct {
	reviews  []model.ReviewView
	identity *model.AuthUser
	got      *model.CreateReviewRequest
	err      error
}

func (f *fakeReviews) ListReviews(_ context.Context, materialID int64) ([]model.ReviewView, error) {
	if materialID != 7 {
		return nil, &service.UserError{Kind: service.ErrNotFound, Message: "Material not found"}
	}
	return f.reviews, nil
}

func (f *fakeReviews) CreateReview(_ context.Context, identity *model.AuthUser, materialID int64, req model.CreateReviewRequest) (*model.Review, error) {
	f.identity, f.got = identity, &req
	if f.err != nil {
		return nil, f.err
	}
	return &model.Review{ID: 1, UserID: identity.ID, MaterialID: materialID, Rating: req.Rating, Comment: req.Comment}, nil
}

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(context.Context) error {
	return f.err
}

type testServer struct {
	router    *gin.Engine
	tokens    *fakeTokens
	accounts  *fakeAccounts
	rotator   *fakeRotator
	admins    *fakeAdmins
	uploads   *fakeUploads
	catalog   *fakeCatalog
	delivery  *fakeDelivery
	cart      *fakeCart
	purchases *fakePurchases
	reviews   *fakeReviews
	stats     *RateLimitStats
}

const (
	userToken  = "user-token"
	adminToken = "admin-token"
)

func newTestServer(t *testing.T, limits config.RateLimitConfig) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	email := "ada@example.com"
	s := &testServer{
		tokens: &fakeTokens{users: map[string]*model.AuthUser{
			userToken:  {ID: "user-1", Role: model.RoleUser},
			adminToken: {ID: "admin-1", Role: model.RoleAdmin},
		}},
		accounts: &fakeAccounts{
			user:   &model.User{ID: "user-1", Email: &email, Role: model.RoleUser},
			tokens: &model.AuthTokens{AccessToken: "access", RefreshToken: "refresh", ExpiresIn: 900},
		},
		rotator: &fakeRotator{valid: "refresh"},
		admins: &fakeAdmins{token: "session-token", session: &model.AdminSession{
			UserID:    "admin:admin",
			ExpiresAt: time.Now().Add(time.Hour),
		}},
		uploads:   &fakeUploads{max: 1 << 10},
		catalog:   &fakeCatalog{materials: []model.MaterialView{{ID: 7, Title: "Go", Price: "2.99"}}},
		delivery:  &fakeDelivery{body: "%PDF-1.4 body", filename: "Go rm -rf .pdf"},
		cart:      &fakeCart{},
		purchases: &fakePurchases{},
		reviews:   &fakeReviews{},
		stats:     NewRateLimitStats(),
	}

	logger := zap.NewNop()
	cookies := NewCookieSettings(config.AuthConfig{AccessTTL: 15 * time.Minute, RefreshTTL: time.Hour, CookieSameSite: "lax"}, false)
	s.router = NewRouter(RouterConfig{RateLimit: limits}, s.tokens, s.admins, Handlers{
		Auth:      NewAuthHandler(s.accounts, s.rotator, nil, cookies, "http://localhost:5000", logger),
		Admin:     NewAdminHandler(s.admins, s.uploads, cookies, logger),
		Materials: NewMaterialHandler(s.catalog, s.delivery, logger),
		Cart:      NewCartHandler(s.cart),
		Payment:   NewPaymentHandler(s.purchases, logger),
		Reviews:   NewReviewHandler(s.reviews),
		Health:    NewHealthHandler(fakePinger{}, s.stats, logger),
	}, s.stats, logger)
	return s
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func withBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, cookie := range w.Result().Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}
