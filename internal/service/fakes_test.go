package service

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prepvault/storefront/internal/client"
	"github.com/prepvault/storefront/internal/model"
	"github.com/prepvault/storefront/internal/storage"
)

// memStore is an in-memory stand-in for db.Postgres covering every repo
// interface declared in this package.
type memStore struct {
	mu        sync.Mutex
	nextID    int64
	users     map[string]*model.User
	refresh   map[string]model.RefreshToken
	sessions  map[string]model.AdminSession
	materials map[int64]*model.Material
	uploads   map[int64]*model.Upload
	purchases []model.Purchase
	cart      map[string][]int64
	orders    map[string]model.PaymentOrder
	events    map[string]bool
	reviews   []model.Review

	orderLookups int

	failRecord error
}

func newMemStore() *memStore {
	return &memStore{
		users:     make(map[string]*model.User),
		refresh:   make(map[string]model.RefreshToken),
		sessions:  make(map[string]model.AdminSession),
		materials: make(map[int64]*model.Material),
		uploads:   make(map[int64]*model.Upload),
		cart:      make(map[string][]int64),
		orders:    make(map[string]model.PaymentOrder),
		events:    make(map[string]bool),
	}
}

func (m *memStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memStore) addMaterial(mat model.Material) *model.Material {
	m.mu.Lock()
	defer m.mu.Unlock()
	if mat.ID == 0 {
		mat.ID = m.id() + 1000
	}
	mat.IsActive = true
	m.materials[mat.ID] = &mat
	return &mat
}

func (m *memStore) addUser(u model.User) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	m.users[u.ID] = &u
	return &u
}

func (m *memStore) purchaseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.purchases)
}

func (m *memStore) CreateUser(_ context.Context, user model.User) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.Email != nil {
		for _, u := range m.users {
			if u.Email != nil && *u.Email == *user.Email {
				return nil, &pgconn.PgError{Code: "23505"}
			}
		}
	}
	u := user
	m.users[u.ID] = &u
	return &u, nil
}

func (m *memStore) UpsertGuestUser(_ context.Context, id, email, firstName string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email != nil && *u.Email == email {
			return u, nil
		}
	}
	u := &model.User{ID: id, Email: &email, FirstName: firstName, Role: model.RoleUser}
	m.users[id] = u
	return u, nil
}

func (m *memStore) CreateAnonymousUser(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := &model.User{ID: id, FirstName: "Customer", Role: model.RoleUser}
	m.users[id] = u
	return u, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email != nil && *u.Email == email {
			return u, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memStore) GetUserByID(_ context.Context, userID string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[userID]; ok {
		return u, nil
	}
	return nil, pgx.ErrNoRows
}

func (m *memStore) SetUserRole(_ context.Context, email, role string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email != nil && *u.Email == email {
			u.Role = role
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *memStore) InsertRefreshToken(_ context.Context, userID, tokenHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refresh[tokenHash] = model.RefreshToken{ID: m.id(), UserID: userID, TokenHash: tokenHash, ExpiresAt: expiresAt}
	return nil
}

func (m *memStore) ClaimRefreshToken(_ context.Context, tokenHash string) (*model.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.refresh[tokenHash]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	delete(m.refresh, tokenHash)
	return &token, nil
}

func (m *memStore) DeleteRefreshToken(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.refresh, tokenHash)
	return nil
}

func (m *memStore) DeleteExpiredRefreshTokens(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for hash, token := range m.refresh {
		if !now.Before(token.ExpiresAt) {
			delete(m.refresh, hash)
			n++
		}
	}
	return n, nil
}

func (m *memStore) CreateAdminSession(_ context.Context, session model.AdminSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.TokenHash] = session
	return nil
}

func (m *memStore) GetAdminSession(_ context.Context, tokenHash string, now time.Time) (*model.AdminSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[tokenHash]
	if !ok || !now.Before(session.ExpiresAt) {
		return nil, pgx.ErrNoRows
	}
	return &session, nil
}

func (m *memStore) DeleteAdminSession(_ context.Context, tokenHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, tokenHash)
	return nil
}

func (m *memStore) DeleteExpiredAdminSessions(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for hash, session := range m.sessions {
		if !now.Before(session.ExpiresAt) {
			delete(m.sessions, hash)
			n++
		}
	}
	return n, nil
}

func (m *memStore) HasPurchased(_ context.Context, userID string, materialID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.purchases {
		if p.UserID == userID && p.MaterialID == materialID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) RecordPurchases(_ context.Context, purchases []model.Purchase) ([]model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRecord != nil {
		return nil, m.failRecord
	}
	var recorded []model.Purchase
	for _, p := range purchases {
		dup := false
		for _, existing := range m.purchases {
			if existing.PaymentID == p.PaymentID && existing.MaterialID == p.MaterialID {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		p.ID = m.id()
		p.Price = model.FormatMinor(p.PriceMinor)
		p.PurchasedAt = time.Now()
		m.purchases = append(m.purchases, p)
		recorded = append(recorded, p)
	}
	return recorded, nil
}

func (m *memStore) ListPurchases(_ context.Context, userID string) ([]model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Purchase
	for _, p := range m.purchases {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) ListAllPurchases(_ context.Context) ([]model.AdminPurchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.AdminPurchase
	for i := len(m.purchases) - 1; i >= 0; i-- {
		p := model.AdminPurchase{Purchase: m.purchases[i]}
		if mat, ok := m.materials[p.MaterialID]; ok {
			p.MaterialTitle = mat.Title
		}
		if u, ok := m.users[p.UserID]; ok && u.Email != nil {
			p.UserEmail = *u.Email
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memStore) ListReviews(_ context.Context, materialID int64) ([]model.ReviewView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.ReviewView
	for i := len(m.reviews) - 1; i >= 0; i-- {
		r := m.reviews[i]
		if r.MaterialID != materialID {
			continue
		}
		view := model.ReviewView{Review: r}
		if u, ok := m.users[r.UserID]; ok {
			view.Reviewer = strings.TrimSpace(u.FirstName + " " + u.LastName)
		}
		out = append(out, view)
	}
	return out, nil
}

func (m *memStore) GetUserReview(_ context.Context, userID string, materialID int64) (*model.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reviews {
		if r.UserID == userID && r.MaterialID == materialID {
			copied := r
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memStore) CreateReview(_ context.Context, review model.Review) (*model.Review, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.reviews {
		if r.UserID == review.UserID && r.MaterialID == review.MaterialID {
			return nil, &pgconn.PgError{Code: "23505"}
		}
	}
	review.ID = m.id()
	review.CreatedAt = time.Now()
	m.reviews = append(m.reviews, review)
	return &review, nil
}

func (m *memStore) GetMaterial(_ context.Context, id int64) (*model.Material, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	mat, ok := m.materials[id]
	if !ok || !mat.IsActive {
		return nil, pgx.ErrNoRows
	}
	copied := *mat
	return &copied, nil
}

func (m *memStore) ListMaterials(_ context.Context) ([]model.Material, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Material
	for _, mat := range m.materials {
		if mat.IsActive {
			out = append(out, *mat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) GetMaterialByContentURL(_ context.Context, contentURL string) (*model.Material, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, mat := range m.materials {
		if mat.IsActive && mat.ContentURL == contentURL {
			copied := *mat
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memStore) GetUpload(_ context.Context, id int64) (*model.Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.uploads[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *u
	return &copied, nil
}

func (m *memStore) ListUploads(_ context.Context) ([]model.Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Upload
	for _, u := range m.uploads {
		out = append(out, *u)
	}
	return out, nil
}

func (m *memStore) CreateUploadWithMaterial(_ context.Context, u model.Upload, mat model.Material, contentURLFor func(int64) string) (*model.Upload, *model.Material, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.ID = m.id()
	u.IsActive = true
	m.uploads[u.ID] = &u
	mat.ID = m.id() + 1000
	mat.IsActive = true
	mat.ContentURL = contentURLFor(u.ID)
	m.materials[mat.ID] = &mat
	return &u, &mat, nil
}

func (m *memStore) DeleteUpload(_ context.Context, id int64, contentURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.uploads[id]; !ok {
		return pgx.ErrNoRows
	}
	for _, mat := range m.materials {
		if mat.ContentURL == contentURL {
			mat.IsActive = false
		}
	}
	delete(m.uploads, id)
	return nil
}

func (m *memStore) GetCartItems(_ context.Context, userID string) ([]model.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var items []model.CartItem
	for i, id := range m.cart[userID] {
		mat, ok := m.materials[id]
		if !ok || !mat.IsActive {
			continue
		}
		items = append(items, model.CartItem{ID: int64(i + 1), UserID: userID, MaterialID: id, Material: *mat})
	}
	return items, nil
}

func (m *memStore) AddCartItem(_ context.Context, userID string, materialID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.cart[userID] {
		if id == materialID {
			return nil
		}
	}
	m.cart[userID] = append(m.cart[userID], materialID)
	return nil
}

func (m *memStore) RemoveCartItem(_ context.Context, userID string, materialID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.cart[userID][:0]
	for _, id := range m.cart[userID] {
		if id != materialID {
			kept = append(kept, id)
		}
	}
	m.cart[userID] = kept
	return nil
}

func (m *memStore) ClearCart(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cart, userID)
	return nil
}

func (m *memStore) SavePaymentOrder(_ context.Context, order model.PaymentOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.OrderID] = order
	return nil
}

func (m *memStore) GetPaymentOrder(_ context.Context, orderID string) (*model.PaymentOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orderLookups++
	order, ok := m.orders[orderID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &order, nil
}

func (m *memStore) PaymentEventSeen(_ context.Context, eventID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[eventID], nil
}

func (m *memStore) MarkPaymentEvent(_ context.Context, eventID, _, _ string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.events[eventID] {
		return false, nil
	}
	m.events[eventID] = true
	return true, nil
}

type fakeGateway struct {
	payments   map[string]model.GatewayPayment
	fetchErr   error
	createErr  error
	fetchCalls int
	orders     []model.GatewayOrder
}

func (g *fakeGateway) CreateOrder(_ context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*model.GatewayOrder, error) {
	if g.createErr != nil {
		return nil, g.createErr
	}
	order := model.GatewayOrder{
		ID:       "order_" + receipt,
		Entity:   "order",
		Amount:   amountMinor,
		Currency: currency,
		Receipt:  receipt,
		Status:   "created",
		Notes:    notes,
	}
	g.orders = append(g.orders, order)
	return &order, nil
}

func (g *fakeGateway) FetchPayment(_ context.Context, paymentID string) (*model.GatewayPayment, error) {
	g.fetchCalls++
	if g.fetchErr != nil {
		return nil, g.fetchErr
	}
	p, ok := g.payments[paymentID]
	if !ok {
		return nil, client.ErrGatewayNotFound
	}
	return &p, nil
}

func (g *fakeGateway) KeyID() string {
	return "rzp_test_key"
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, routingKey string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, routingKey)
	return nil
}

func (p *recordingPublisher) count(routingKey string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e == routingKey {
			n++
		}
	}
	return n
}

// memBlobs is a storage.Store keeping objects in a map.
type memBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
	putErr  error
	getErr  error
	puts    int
	deletes []string
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: make(map[string][]byte)}
}

func (b *memBlobs) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) (string, error) {
	if b.putErr != nil {
		return "", b.putErr
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.puts++
	b.objects[key] = data
	return key, nil
}

func (b *memBlobs) Get(_ context.Context, key string) (*storage.Object, error) {
	if b.getErr != nil {
		return nil, b.getErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &storage.Object{Body: io.NopCloser(strings.NewReader(string(data))), Size: int64(len(data))}, nil
}

func (b *memBlobs) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deletes = append(b.deletes, key)
	if _, ok := b.objects[key]; !ok {
		return storage.ErrNotFound
	}
	delete(b.objects, key)
	return nil
}

func (b *memBlobs) Writer() storage.Store { return b }

func (b *memBlobs) For(string) storage.Store { return b }

func (b *memBlobs) size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

var errBoom = errors.New("boom")
