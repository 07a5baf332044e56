package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/prepvault/storefront/internal/config"
	"go.uber.org/zap"
)

type RouterConfig struct {
	AllowedOrigins []string
	RateLimit      config.RateLimitConfig
}

// Handlers groups every endpoint set mounted by NewRouter.
type Handlers struct {
	Auth      *AuthHandler
	Admin     *AdminHandler
	Materials *MaterialHandler
	Cart      *CartHandler
	Payment   *PaymentHandler
	Reviews   *ReviewHandler
	Health    *HealthHandler
}

// NewRouter is the single place where routes are registered.
func NewRouter(cfg RouterConfig, tokens tokenVerifier, sessions adminSessionValidator, h Handlers, stats *RateLimitStats, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(Recovery(logger), RequestLogger(logger.Named("http")))
	r.Use(CORSMiddleware(cfg.AllowedOrigins, true))
	r.Use(Authenticate(tokens))

	limit := func(name string, requests int) gin.HandlerFunc {
		if !cfg.RateLimit.Enabled || requests <= 0 {
			return func(c *gin.Context) { c.Next() }
		}
		return RateLimit(name, requests, cfg.RateLimit.Window, stats)
	}
	loginLimit := limit("login", cfg.RateLimit.LoginRequests)
	paymentLimit := limit("payment", cfg.RateLimit.PaymentRequests)
	requireAuth := RequireAuth()

	r.GET("/ping", h.Health.Ping)
	r.GET("/healthz", h.Health.Healthz)
	r.GET("/metrics", h.Health.Metrics)
	r.GET("/openapi.json", OpenAPIDoc)
	r.GET("/sitemap.xml", h.Materials.Sitemap)
	r.GET("/robots.txt", h.Materials.Robots)

	r.POST("/create-order", paymentLimit, h.Payment.CreateOrder)
	r.POST("/confirm-success", paymentLimit, h.Payment.ConfirmSuccess)
	r.POST("/razorpay-webhook", h.Payment.Webhook)

	api := r.Group("/api", limit("global", cfg.RateLimit.GlobalRequests))
	{
		auth := api.Group("/auth")
		auth.POST("/register", loginLimit, h.Auth.Register)
		auth.POST("/login", loginLimit, h.Auth.Login)
		auth.POST("/refresh", h.Auth.Refresh)
		auth.POST("/logout", h.Auth.Logout)
		auth.GET("/user", requireAuth, h.Auth.CurrentUser)
		auth.GET("/oidc/login", h.Auth.OIDCLogin)
		auth.GET("/oidc/callback", h.Auth.OIDCCallback)

		api.GET("/materials", h.Materials.ListMaterials)
		api.GET("/materials/:id", h.Materials.GetMaterial)
		api.GET("/materials/:id/download", h.Materials.Download)
		api.GET("/materials/:id/view", QueryTokenAuth(tokens), h.Materials.View)
		api.GET("/materials/:id/reviews", h.Reviews.ListReviews)
		api.POST("/materials/:id/reviews", requireAuth, h.Reviews.CreateReview)
		api.GET("/download/upload/:uploadId", requireAuth, h.Materials.DownloadUpload)

		api.GET("/cart", requireAuth, h.Cart.GetCart)
		api.POST("/cart", requireAuth, h.Cart.AddItem)
		api.DELETE("/cart/:materialId", requireAuth, h.Cart.RemoveItem)

		api.GET("/purchases", requireAuth, h.Payment.ListPurchases)
		api.POST("/record-purchase", paymentLimit, h.Payment.RecordPurchase)

		api.POST("/admin-login", loginLimit, h.Admin.Login)
		api.GET("/admin-user", h.Admin.Session)
		api.POST("/admin-logout", h.Admin.Logout)

		admin := api.Group("/admin", RequireAdmin(sessions))
		admin.GET("/check", h.Admin.Check)
		admin.GET("/purchases", h.Payment.ListAllPurchases)
		admin.POST("/upload", h.Admin.Upload)
		admin.GET("/uploads", h.Admin.ListUploads)
		admin.DELETE("/uploads/:id", h.Admin.DeleteUpload)
	}

	return r
}
