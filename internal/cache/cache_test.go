package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }
	ctx := context.Background()

	if err := m.Set(ctx, KeyMaterials, []byte("[]"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if val, ok, _ := m.Get(ctx, KeyMaterials); !ok || string(val) != "[]" {
		t.Fatalf("expected cached value")
	}

	now = now.Add(2 * time.Minute)
	if _, ok, _ := m.Get(ctx, KeyMaterials); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestMemoryDelete(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.Set(ctx, KeyMaterials, []byte("a"), 0)
	_ = m.Set(ctx, KeySitemap, []byte("b"), 0)

	if err := m.Delete(ctx, KeyMaterials, KeySitemap); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok, _ := m.Get(ctx, KeySitemap); ok {
		t.Fatalf("expected sitemap entry removed")
	}
}
