package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prepvault/storefront/internal/config"
	"github.com/prepvault/storefront/internal/model"
)

type CookieSettings struct {
	Domain     string
	Path       string
	Secure     bool
	SameSite   http.SameSite
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func NewCookieSettings(cfg config.AuthConfig, production bool) CookieSettings {
	path := cfg.CookiePath
	if path == "" {
		path = "/"
	}
	return CookieSettings{
		Domain:     cfg.CookieDomain,
		Path:       path,
		Secure:     cfg.CookieSecure || production,
		SameSite:   parseSameSite(cfg.CookieSameSite),
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
	}
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func (s CookieSettings) set(c *gin.Context, name, value string, ttl time.Duration) {
	c.SetSameSite(s.SameSite)
	c.SetCookie(name, value, int(ttl.Seconds()), s.Path, s.Domain, s.Secure, true)
}

func (s CookieSettings) clear(c *gin.Context, name string) {
	c.SetSameSite(s.SameSite)
	c.SetCookie(name, "", -1, s.Path, s.Domain, s.Secure, true)
}

func (s CookieSettings) setAuth(c *gin.Context, tokens *model.AuthTokens) {
	s.set(c, accessCookie, tokens.AccessToken, s.AccessTTL)
	s.set(c, refreshCookie, tokens.RefreshToken, s.RefreshTTL)
}

func (s CookieSettings) clearAuth(c *gin.Context) {
	s.clear(c, accessCookie)
	s.clear(c, refreshCookie)
}
