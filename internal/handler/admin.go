package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prepvault/storefront/internal/model"
	"github.com/prepvault/storefront/internal/service"
	"go.uber.org/zap"
)

// multipart framing allowance on top of the file limit
const multipartOverhead = 1 << 20

type adminAuthenticator interface {
	adminSessionValidator
	Login(ctx context.Context, username, password string) (string, *model.AdminSession, error)
	Logout(ctx context.Context, token string) error
	Username(session *model.AdminSession) string
}

type uploadManager interface {
	MaxBytes() int64
	Intake(ctx context.Context, in service.UploadInput) (*model.Upload, *model.Material, error)
	List(ctx context.Context) ([]model.Upload, error)
	Delete(ctx context.Context, id int64) error
}

type AdminHandler struct {
	admins  adminAuthenticator
	uploads uploadManager
	cookies CookieSettings
	logger  *zap.Logger
}

func NewAdminHandler(admins adminAuthenticator, uploads uploadManager, cookies CookieSettings, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{admins: admins, uploads: uploads, cookies: cookies, logger: logger.Named("admin")}
}

// Login godoc
// @Summary Admin credential login
// @Tags admin
// @Accept json
// @Produce json
// @Param request body model.AdminLoginRequest true "Admin credentials"
// @Success 200 {object} model.AdminSessionResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/admin-login [post]
func (h *AdminHandler) Login(c *gin.Context) {
	var req model.AdminLoginRequest
	if !bindJSON(c, &req) {
		return
	}

	token, session, err := h.admins.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}

	h.cookies.set(c, adminSessionCookie, token, time.Until(session.ExpiresAt))
	c.JSON(http.StatusOK, model.AdminSessionResponse{Token: token, ExpiresAt: session.ExpiresAt})
}

// Session godoc
// @Summary Check the admin session
// @Tags admin
// @Produce json
// @Success 200 {object} model.AdminUserResponse
// @Failure 401 {object} model.ErrorResponse
// @Router /api/admin-user [get]
func (h *AdminHandler) Session(c *gin.Context) {
	session, err := h.admins.Validate(c.Request.Context(), adminSessionToken(c))
	if err != nil {
		if errors.Is(err, service.ErrUnauthorized) {
			abortMessage(c, http.StatusUnauthorized, "Admin session required")
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.AdminUserResponse{
		Username:      h.admins.Username(session),
		Authenticated: true,
		ExpiresAt:     session.ExpiresAt,
	})
}

// Logout godoc
// @Summary Admin logout
// @Tags admin
// @Produce json
// @Success 200 {object} model.MessageResponse
// @Router /api/admin-logout [post]
func (h *AdminHandler) Logout(c *gin.Context) {
	if err := h.admins.Logout(c.Request.Context(), adminSessionToken(c)); err != nil {
		h.logger.Warn("failed to delete admin session", zap.Error(err))
	}
	h.cookies.clear(c, adminSessionCookie)
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Logged out successfully"})
}

// Upload godoc
// @Summary Upload a PDF and publish it as a material
// @Description The file is malware-scanned before anything is stored.
// @Tags admin
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "PDF file"
// @Param technology formData string true "Technology"
// @Param price formData string true "Price in rupees"
// @Param pageCount formData string true "Number of questions"
// @Success 200 {object} model.UploadResponse
// @Failure 400 {object} model.ErrorResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 500 {object} model.ErrorResponse
// @Router /api/admin/upload [post]
func (h *AdminHandler) Upload(c *gin.Context) {
	limit := h.uploads.MaxBytes()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	// parse the multipart body before reading any form values
	var in service.UploadInput
	file, header, err := c.Request.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		// one byte past the limit is enough to report the file as too large
		data, readErr := io.ReadAll(io.LimitReader(file, limit+1))
		if readErr != nil {
			abortMessage(c, http.StatusBadRequest, "Failed to read uploaded file")
			return
		}
		in.Data = data
		in.OriginalName = header.Filename
		in.MimeType = header.Header.Get("Content-Type")
	case isBodyTooLarge(err):
		abortMessage(c, http.StatusBadRequest, "File too large")
		return
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		abortMessage(c, http.StatusBadRequest, "Invalid upload request")
		return
	}

	in.Technology = c.PostForm("technology")
	in.Price = c.PostForm("price")
	in.PageCount = c.PostForm("pageCount")
	in.UploadedBy = GetAuthUser(c).ID

	upload, material, err := h.uploads.Intake(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.UploadResponse{
		Message:  "File uploaded successfully and made available for purchase",
		Upload:   *upload,
		Material: material.View(),
	})
}

// ListUploads godoc
// @Summary List active uploads
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {array} model.Upload
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /api/admin/uploads [get]
func (h *AdminHandler) ListUploads(c *gin.Context) {
	uploads, err := h.uploads.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, uploads)
}

// DeleteUpload godoc
// @Summary Delete an upload and retire its material
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "Upload ID"
// @Success 200 {object} model.MessageResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/admin/uploads/{id} [delete]
func (h *AdminHandler) DeleteUpload(c *gin.Context) {
	id, ok := pathID(c, "id", "Upload not found")
	if !ok {
		return
	}
	if err := h.uploads.Delete(c.Request.Context(), id); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, model.MessageResponse{Message: "Upload deleted successfully"})
}

// Check godoc
// @Summary Confirm the caller holds an admin session
// @Description Callers without one are rejected by the admin middleware.
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} model.AdminCheckResponse
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Router /api/admin/check [get]
func (h *AdminHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, model.AdminCheckResponse{IsAdmin: true})
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large")
}

// pathID parses a positive integer path parameter; anything else is a 404.
func pathID(c *gin.Context, name, notFound string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		abortMessage(c, http.StatusNotFound, notFound)
		return 0, false
	}
	return id, true
}
