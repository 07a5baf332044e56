package service

import (
	"github.com/prepvault/storefront/internal/client"
	"github.com/prepvault/storefront/internal/model"
)

// Test doubles shared with package service_test.

type (
	MemStore    = memStore
	MemBlobs    = memBlobs
	FakeGateway = fakeGateway
	FakeScanner = fakeScanner
)

var (
	NewMemStore = newMemStore
	NewMemBlobs = newMemBlobs
)

func NewFakeGateway() *FakeGateway {
	return &fakeGateway{payments: make(map[string]model.GatewayPayment)}
}

func NewCleanScanner() *FakeScanner {
	return &fakeScanner{result: &client.ScanResult{}}
}

func (g *fakeGateway) Capture(paymentID, orderID string, amountMinor int64) {
	g.payments[paymentID] = model.GatewayPayment{
		ID:      paymentID,
		OrderID: orderID,
		Amount:  amountMinor,
		Status:  model.PaymentStatusCaptured,
	}
}

func (m *memStore) AddMaterial(mat model.Material) *model.Material {
	return m.addMaterial(mat)
}

func (m *memStore) Purchases() []model.Purchase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Purchase(nil), m.purchases...)
}

func (b *memBlobs) Seed(key string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
}
