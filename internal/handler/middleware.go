package handler

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/httprate"
	"github.com/prepvault/storefront/internal/logging"
	"github.com/prepvault/storefront/internal/model"
	"go.uber.org/zap"
)

const (
	authUserKey = "auth_user"

	accessCookie       = "accessToken"
	refreshCookie      = "refreshToken"
	adminSessionCookie = "adminSession"
	adminSessionHeader = "X-Admin-Session"
)

type tokenVerifier interface {
	VerifyAccessToken(token string) *model.AuthUser
}

type adminSessionValidator interface {
	Validate(ctx context.Context, token string) (*model.AdminSession, error)
}

// Authenticate resolves the caller from the Authorization header or the
// access cookie. It never rejects a request; RequireAuth does that.
func Authenticate(tokens tokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user := tokens.VerifyAccessToken(accessTokenFrom(c)); user != nil {
			c.Set(authUserKey, user)
		}
		c.Next()
	}
}

// QueryTokenAuth accepts ?token= for inline viewers that cannot set headers.
func QueryTokenAuth(tokens tokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.Query("token")
		if GetAuthUser(c) != nil || raw == "" {
			c.Next()
			return
		}
		user := tokens.VerifyAccessToken(raw)
		if user == nil {
			abortMessage(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		c.Set(authUserKey, user)
		c.Next()
	}
}

func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetAuthUser(c) == nil {
			abortMessage(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		c.Next()
	}
}

// RequireAdmin passes admin-role access tokens and live admin sessions.
func RequireAdmin(sessions adminSessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := GetAuthUser(c)
		if user.IsAdmin() {
			c.Next()
			return
		}

		if token := adminSessionToken(c); token != "" {
			session, err := sessions.Validate(c.Request.Context(), token)
			if err == nil {
				c.Set(authUserKey, &model.AuthUser{ID: session.UserID, Role: model.RoleAdmin})
				c.Next()
				return
			}
		}

		if user == nil {
			abortMessage(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		abortMessage(c, http.StatusForbidden, "Admin access required")
	}
}

func GetAuthUser(c *gin.Context) *model.AuthUser {
	if value, ok := c.Get(authUserKey); ok {
		if user, ok := value.(*model.AuthUser); ok {
			return user
		}
	}
	return nil
}

func accessTokenFrom(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		if token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer ")); token != "" {
			return token
		}
	}
	token, _ := c.Cookie(accessCookie)
	return token
}

func adminSessionToken(c *gin.Context) string {
	if token := strings.TrimSpace(c.GetHeader(adminSessionHeader)); token != "" {
		return token
	}
	token, _ := c.Cookie(adminSessionCookie)
	return token
}

// RequestLogger logs one line per request with credential query params
// redacted. Errors attached with c.Error are included.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", logging.RedactQuery(c.Request.URL)),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate); len(errs) > 0 {
			fields = append(fields, zap.String("error", errs.String()))
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logger.Error("request failed", fields...)
		case strings.HasPrefix(c.Request.URL.Path, "/api") || status >= http.StatusBadRequest:
			logger.Info("request", fields...)
		default:
			logger.Debug("request", fields...)
		}
	}
}

func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", logging.RedactQuery(c.Request.URL)),
		)
		abortMessage(c, http.StatusInternalServerError, "Internal server error")
	})
}

func CORSMiddleware(allowedOrigins []string, allowCredentials bool) gin.HandlerFunc {
	originMap := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		originMap[trimmed] = struct{}{}
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin != "" {
			if _, ok := originMap[origin]; ok {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
				if allowCredentials {
					c.Header("Access-Control-Allow-Credentials", "true")
				}
				c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, "+adminSessionHeader)
				c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			}
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RateLimitStats counts requests rejected by each named limiter.
type RateLimitStats struct {
	mu   sync.Mutex
	hits map[string]*atomic.Int64
}

func NewRateLimitStats() *RateLimitStats {
	return &RateLimitStats{hits: make(map[string]*atomic.Int64)}
}

func (s *RateLimitStats) counter(name string) *atomic.Int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ctr, ok := s.hits[name]; ok {
		return ctr
	}
	ctr := &atomic.Int64{}
	s.hits[name] = ctr
	return ctr
}

func (s *RateLimitStats) Snapshot() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.hits))
	for name, ctr := range s.hits {
		out[name] = ctr.Load()
	}
	return out
}

// RateLimit adapts an httprate per-IP limiter to gin.
func RateLimit(name string, requests int, window time.Duration, stats *RateLimitStats) gin.HandlerFunc {
	rejected := stats.counter(name)
	limiter := httprate.Limit(requests, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			rejected.Add(1)
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"message":"Too many requests, please try again later"}`))
		}),
	)

	return func(c *gin.Context) {
		passed := false
		limiter(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			passed = true
			c.Request = r
			c.Next()
		})).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}
}
