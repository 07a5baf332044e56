package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prepvault/storefront/internal/client"
	"github.com/prepvault/storefront/internal/model"
	"github.com/prepvault/storefront/internal/service"
	"go.uber.org/zap"
)

const (
	oidcStateCookie = "oidc_state"
	oidcNonceCookie = "oidc_nonce"
	oidcFlowTTL     = 10 * time.Minute
)

type accountService interface {
	Register(ctx context.Context, req model.RegisterRequest) (*model.User, *model.AuthTokens, error)
	Login(ctx context.Context, email, password string) (*model.User, *model.AuthTokens, error)
	LoginWithIdentity(ctx context.Context, identity *client.OIDCIdentity) (*model.User, *model.AuthTokens, error)
	CurrentUser(ctx context.Context, userID string) (*model.User, error)
}

type tokenRotator interface {
	RefreshAuthTokens(ctx context.Context, rawToken string) (*model.AuthTokens, *model.User, error)
	RevokeRefreshToken(ctx context.Context, rawToken string) error
}

type identityProvider interface {
	AuthCodeURL(state, nonce string) string
	Exchange(ctx context.Context, code, nonce string) (*client.OIDCIdentity, error)
}

type AuthHandler struct {
	accounts accountService
	tokens   tokenRotator
	sso      identityProvider
	cookies  CookieSettings
	siteURL  string
	logger   *zap.Logger
}

// NewAuthHandler wires the account endpoints. sso may be nil when single
// sign-on is not configured.
func NewAuthHandler(accounts accountService, tokens tokenRotator, sso identityProvider, cookies CookieSettings, siteURL string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		tokens:   tokens,
		sso:      sso,
		cookies:  cookies,
		siteURL:  siteURL,
		logger:   logger.Named("auth"),
	}
}

// Register godoc
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.RegisterRequest true "Email, password and name"
// @Success 201 {object} model.AuthResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, tokens, err := h.accounts.Register(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}

	h.cookies.setAuth(c, tokens)
	c.JSON(http.StatusCreated, authResponse(user, tokens))
}

// Login godoc
// @Summary Login with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body model.LoginRequest true "Email and password"
// @Success 200 {object} model.AuthResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, tokens, err := h.accounts.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	h.cookies.setAuth(c, tokens)
	c.JSON(http.StatusOK, authResponse(user, tokens))
}

// Refresh godoc
// @Summary Rotate the token pair
// @Description Consumes the refreshToken cookie. Each refresh token works once.
// @Tags auth
// @Produce json
// @Success 200 {object} model.AuthResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	raw, _ := c.Cookie(refreshCookie)
	if raw == "" {
		abortMessage(c, http.StatusUnauthorized, "Refresh token required")
		return
	}

	tokens, user, err := h.tokens.RefreshAuthTokens(c.Request.Context(), raw)
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			h.cookies.clearAuth(c)
			abortMessage(c, http.StatusUnauthorized, "Invalid refresh token")
			return
		}
		writeError(c, err)
		return
	}

	h.cookies.setAuth(c, tokens)
	c.JSON(http.StatusOK, authResponse(user, tokens))
}

// Logout godoc
// @Summary Logout
// @Description Revokes the refresh token (if present) and clears both cookies.
// @Tags auth
// @Produce json
// @Success 200 {object} model.MessageResponse
// @Router /api/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	if raw, _ := c.Cookie(refreshCookie); raw != "" {
		if err := h.tokens.RevokeRefreshToken(c.Request.Context(), raw); err != nil {
			h.logger.Warn("failed to revoke refresh token", zap.Error(err))
		}
	}
	h.cookies.clearAuth(c)
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Logged out successfully"})
}

// CurrentUser godoc
// @Summary Get current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.UserResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/auth/user [get]
func (h *AuthHandler) CurrentUser(c *gin.Context) {
	identity := GetAuthUser(c)
	user, err := h.accounts.CurrentUser(c.Request.Context(), identity.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.Response())
}

// OIDCLogin godoc
// @Summary Start single sign-on
// @Tags auth
// @Success 302
// @Failure 404 {object} model.ErrorResponse
// @Router /api/auth/oidc/login [get]
func (h *AuthHandler) OIDCLogin(c *gin.Context) {
	if h.sso == nil {
		abortMessage(c, http.StatusNotFound, "Single sign-on is not configured")
		return
	}

	state, nonce := uuid.NewString(), uuid.NewString()
	h.cookies.set(c, oidcStateCookie, state, oidcFlowTTL)
	h.cookies.set(c, oidcNonceCookie, nonce, oidcFlowTTL)
	c.Redirect(http.StatusFound, h.sso.AuthCodeURL(state, nonce))
}

// OIDCCallback godoc
// @Summary Finish single sign-on
// @Tags auth
// @Param code query string true "Authorization code"
// @Param state query string true "Login state"
// @Success 302
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/auth/oidc/callback [get]
func (h *AuthHandler) OIDCCallback(c *gin.Context) {
	if h.sso == nil {
		abortMessage(c, http.StatusNotFound, "Single sign-on is not configured")
		return
	}

	state, _ := c.Cookie(oidcStateCookie)
	nonce, _ := c.Cookie(oidcNonceCookie)
	h.cookies.clear(c, oidcStateCookie)
	h.cookies.clear(c, oidcNonceCookie)
	if state == "" || c.Query("state") != state || c.Query("code") == "" {
		abortMessage(c, http.StatusBadRequest, "Invalid login state")
		return
	}

	identity, err := h.sso.Exchange(c.Request.Context(), c.Query("code"), nonce)
	if err != nil {
		h.logger.Warn("single sign-on exchange failed", zap.Error(err))
		abortMessage(c, http.StatusUnauthorized, "Single sign-on failed")
		return
	}

	_, tokens, err := h.accounts.LoginWithIdentity(c.Request.Context(), identity)
	if err != nil {
		writeError(c, err)
		return
	}

	h.cookies.setAuth(c, tokens)
	c.Redirect(http.StatusFound, h.siteURL+"/")
}

func authResponse(user *model.User, tokens *model.AuthTokens) model.AuthResponse {
	return model.AuthResponse{
		User:        user.Response(),
		AccessToken: tokens.AccessToken,
		ExpiresIn:   tokens.ExpiresIn,
	}
}
