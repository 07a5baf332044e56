package service

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/prepvault/storefront/internal/cache"
	"github.com/prepvault/storefront/internal/config"
	"github.com/prepvault/storefront/internal/db"
	"github.com/prepvault/storefront/internal/model"
	"go.uber.org/zap"
)

var sitemapStaticPaths = []string{"/", "/about", "/contact", "/privacy", "/terms", "/refund-policy"}

type catalogRepo interface {
	ListMaterials(ctx context.Context) ([]model.Material, error)
	GetMaterial(ctx context.Context, id int64) (*model.Material, error)
	GetCartItems(ctx context.Context, userID string) ([]model.CartItem, error)
	AddCartItem(ctx context.Context, userID string, materialID int64) error
	RemoveCartItem(ctx context.Context, userID string, materialID int64) error
}

// CatalogService serves public catalog reads and the caller's cart. Listing
// and sitemap responses are cached and dropped whenever uploads change.
type CatalogService struct {
	repo   catalogRepo
	cache  cache.Cache
	cfg    config.CacheConfig
	logger *zap.Logger
}

func NewCatalogService(repo catalogRepo, c cache.Cache, cfg config.CacheConfig, logger *zap.Logger) *CatalogService {
	return &CatalogService{
		repo:   repo,
		cache:  c,
		cfg:    cfg,
		logger: logger.Named("catalog"),
	}
}

func (s *CatalogService) ListMaterials(ctx context.Context) ([]model.MaterialView, error) {
	if raw, ok := s.cached(ctx, cache.KeyMaterials); ok {
		var views []model.MaterialView
		if err := json.Unmarshal(raw, &views); err == nil {
			return views, nil
		}
	}

	materials, err := s.repo.ListMaterials(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]model.MaterialView, 0, len(materials))
	for i := range materials {
		views = append(views, materials[i].View())
	}

	if raw, err := json.Marshal(views); err == nil {
		s.store(ctx, cache.KeyMaterials, raw, s.cfg.MaterialsTTL)
	}
	return views, nil
}

func (s *CatalogService) GetMaterial(ctx context.Context, id int64) (*model.MaterialView, error) {
	m, err := s.repo.GetMaterial(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, userError(ErrNotFound, "Material not found")
		}
		return nil, err
	}
	view := m.View()
	return &view, nil
}

// Invalidate drops every cached catalog response. Cache errors are logged;
// entries expire on their own.
func (s *CatalogService) Invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, cache.KeyMaterials, cache.KeySitemap); err != nil {
		s.logger.Warn("failed to invalidate catalog cache", zap.Error(err))
	}
}

type sitemapURLSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

func (s *CatalogService) Sitemap(ctx context.Context) ([]byte, error) {
	if raw, ok := s.cached(ctx, cache.KeySitemap); ok {
		return raw, nil
	}

	materials, err := s.repo.ListMaterials(ctx)
	if err != nil {
		return nil, err
	}

	set := sitemapURLSet{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, path := range sitemapStaticPaths {
		priority := "0.5"
		if path == "/" {
			priority = "1.0"
		}
		set.URLs = append(set.URLs, sitemapURL{Loc: s.cfg.SiteURL + path, ChangeFreq: "weekly", Priority: priority})
	}
	for _, m := range materials {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        fmt.Sprintf("%s/materials/%d", s.cfg.SiteURL, m.ID),
			LastMod:    m.CreatedAt.UTC().Format(time.DateOnly),
			ChangeFreq: "monthly",
			Priority:   "0.8",
		})
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		return nil, fmt.Errorf("failed to encode sitemap: %w", err)
	}

	raw := buf.Bytes()
	s.store(ctx, cache.KeySitemap, raw, s.cfg.SitemapTTL)
	return raw, nil
}

func (s *CatalogService) Robots() string {
	return "User-agent: *\n" +
		"Allow: /\n" +
		"Disallow: /api/\n" +
		"Disallow: /admin\n" +
		"\n" +
		"Sitemap: " + s.cfg.SiteURL + "/sitemap.xml\n"
}

func (s *CatalogService) Cart(ctx context.Context, userID string) ([]model.CartItemView, error) {
	items, err := s.repo.GetCartItems(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]model.CartItemView, 0, len(items))
	for _, item := range items {
		views = append(views, model.CartItemView{
			ID:       item.ID,
			AddedAt:  item.AddedAt,
			Material: item.Material.View(),
		})
	}
	return views, nil
}

func (s *CatalogService) AddToCart(ctx context.Context, userID string, materialID int64) error {
	if _, err := s.repo.GetMaterial(ctx, materialID); err != nil {
		if db.IsNoRows(err) {
			return userError(ErrNotFound, "Material not found")
		}
		return err
	}
	return s.repo.AddCartItem(ctx, userID, materialID)
}

func (s *CatalogService) RemoveFromCart(ctx context.Context, userID string, materialID int64) error {
	return s.repo.RemoveCartItem(ctx, userID, materialID)
}

func (s *CatalogService) cached(ctx context.Context, key string) ([]byte, bool) {
	raw, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return raw, ok
}

func (s *CatalogService) store(ctx context.Context, key string, raw []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := s.cache.Set(ctx, key, raw, ttl); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
