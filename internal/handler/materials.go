package handler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/prepvault/storefront/internal/model"
	"github.com/prepvault/storefront/internal/service"
	"go.uber.org/zap"
)

type catalogReader interface {
	ListMaterials(ctx context.Context) ([]model.MaterialView, error)
	GetMaterial(ctx context.Context, id int64) (*model.MaterialView, error)
	Sitemap(ctx context.Context) ([]byte, error)
	Robots() string
}

type contentOpener interface {
	OpenMaterial(ctx context.Context, identity *model.AuthUser, materialID int64, mode service.Mode) (*service.Delivery, error)
	OpenUpload(ctx context.Context, identity *model.AuthUser, uploadID int64) (*service.Delivery, error)
}

type MaterialHandler struct {
	catalog  catalogReader
	delivery contentOpener
	logger   *zap.Logger
}

func NewMaterialHandler(catalog catalogReader, delivery contentOpener, logger *zap.Logger) *MaterialHandler {
	return &MaterialHandler{catalog: catalog, delivery: delivery, logger: logger.Named("materials")}
}

// ListMaterials godoc
// @Summary List active materials
// @Tags materials
// @Produce json
// @Success 200 {array} model.MaterialView
// @Failure 500 {object} model.ErrorResponse
// @Router /api/materials [get]
func (h *MaterialHandler) ListMaterials(c *gin.Context) {
	materials, err := h.catalog.ListMaterials(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, materials)
}

// GetMaterial godoc
// @Summary Get a material
// @Tags materials
// @Produce json
// @Param id path int true "Material ID"
// @Success 200 {object} model.MaterialView
// @Failure 404 {object} model.ErrorResponse
// @Router /api/materials/{id} [get]
func (h *MaterialHandler) GetMaterial(c *gin.Context) {
	id, ok := pathID(c, "id", "Material not found")
	if !ok {
		return
	}
	material, err := h.catalog.GetMaterial(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, material)
}

// Download godoc
// @Summary Download a purchased material
// @Tags materials
// @Produce application/pdf
// @Security BearerAuth
// @Param id path int true "Material ID"
// @Success 200 {file} binary
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/materials/{id}/download [get]
func (h *MaterialHandler) Download(c *gin.Context) {
	h.serveMaterial(c, service.ModeDownload)
}

// View godoc
// @Summary View a purchased material inline
// @Description Accepts the access token as ?token= for embedded viewers.
// @Tags materials
// @Produce application/pdf
// @Param id path int true "Material ID"
// @Param token query string false "Access token"
// @Success 200 {file} binary
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/materials/{id}/view [get]
func (h *MaterialHandler) View(c *gin.Context) {
	h.serveMaterial(c, service.ModeView)
}

// DownloadUpload godoc
// @Summary Download the file behind an uploaded material
// @Tags materials
// @Produce application/pdf
// @Security BearerAuth
// @Param uploadId path int true "Upload ID"
// @Success 200 {file} binary
// @Failure 401 {object} model.ErrorResponse
// @Failure 403 {object} model.ErrorResponse
// @Failure 404 {object} model.ErrorResponse
// @Router /api/download/upload/{uploadId} [get]
func (h *MaterialHandler) DownloadUpload(c *gin.Context) {
	id, ok := pathID(c, "uploadId", "File not found")
	if !ok {
		return
	}
	delivery, err := h.delivery.OpenUpload(c.Request.Context(), GetAuthUser(c), id)
	if err != nil {
		writeError(c, err)
		return
	}
	h.stream(c, delivery, "attachment")
}

func (h *MaterialHandler) serveMaterial(c *gin.Context, mode service.Mode) {
	// the gate order puts authentication ahead of the material lookup
	identity := GetAuthUser(c)
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		if identity == nil {
			abortMessage(c, http.StatusUnauthorized, "Authentication required")
			return
		}
		abortMessage(c, http.StatusNotFound, "Material not found")
		return
	}

	delivery, err := h.delivery.OpenMaterial(c.Request.Context(), identity, id, mode)
	if err != nil {
		writeError(c, err)
		return
	}

	disposition := "attachment"
	if mode == service.ModeView {
		disposition = "inline"
	}
	h.stream(c, delivery, disposition)
}

func (h *MaterialHandler) stream(c *gin.Context, delivery *service.Delivery, disposition string) {
	defer delivery.Body.Close()

	c.Header("Content-Type", delivery.ContentType)
	c.Header("Content-Disposition", fmt.Sprintf("%s; filename=%q", disposition, delivery.Filename))
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Cache-Control", "private, no-store")
	if delivery.Size > 0 {
		c.Header("Content-Length", strconv.FormatInt(delivery.Size, 10))
	}
	c.Status(http.StatusOK)

	if _, err := io.Copy(c.Writer, delivery.Body); err != nil {
		// headers are gone; the client most likely disconnected
		h.logger.Debug("stream aborted", zap.String("file", delivery.Filename), zap.Error(err))
		c.Abort()
	}
}

// Sitemap godoc
// @Summary Sitemap
// @Tags seo
// @Produce xml
// @Success 200 {string} string
// @Router /sitemap.xml [get]
func (h *MaterialHandler) Sitemap(c *gin.Context) {
	raw, err := h.catalog.Sitemap(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", raw)
}

// Robots godoc
// @Summary robots.txt
// @Tags seo
// @Produce plain
// @Success 200 {string} string
// @Router /robots.txt [get]
func (h *MaterialHandler) Robots(c *gin.Context) {
	c.String(http.StatusOK, h.catalog.Robots())
}
