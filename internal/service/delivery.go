package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"github.com/prepvault/storefront/internal/db"
	"github.com/prepvault/storefront/internal/model"
	"github.com/prepvault/storefront/internal/storage"
)

// UploadContentPrefix is the contentUrl form that points a material at a row
// in the uploads table.
const UploadContentPrefix = "/api/download/upload/"

const defaultContentType = "application/pdf"

type Mode int

const (
	ModeDownload Mode = iota
	ModeView
)

func (m Mode) forbiddenMessage() string {
	if m == ModeView {
		return "Purchase required to view this material"
	}
	return "Purchase required to download this material"
}

type deliveryRepo interface {
	GetMaterial(ctx context.Context, id int64) (*model.Material, error)
	GetUpload(ctx context.Context, id int64) (*model.Upload, error)
	GetMaterialByContentURL(ctx context.Context, contentURL string) (*model.Material, error)
}

type entitlementChecker interface {
	HasPurchased(ctx context.Context, userID string, materialID int64) (bool, error)
}

type blobResolver interface {
	For(path string) storage.Store
}

// Delivery is an opened file ready to be streamed. Callers must close Body.
type Delivery struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
	Filename    string
}

// DeliveryService turns a material id into bytes for an entitled caller.
// Gates run in order: authentication, entitlement, material lookup, content
// resolution, physical retrieval.
type DeliveryService struct {
	repo         deliveryRepo
	entitlements entitlementChecker
	blobs        blobResolver
}

func NewDeliveryService(repo deliveryRepo, entitlements entitlementChecker, blobs blobResolver) *DeliveryService {
	return &DeliveryService{repo: repo, entitlements: entitlements, blobs: blobs}
}

func (s *DeliveryService) OpenMaterial(ctx context.Context, identity *model.AuthUser, materialID int64, mode Mode) (*Delivery, error) {
	if identity == nil || identity.ID == "" {
		return nil, userError(ErrUnauthorized, "Authentication required")
	}

	owned, err := s.entitlements.HasPurchased(ctx, identity.ID, materialID)
	if err != nil {
		return nil, err
	}
	if !owned {
		return nil, userError(ErrForbidden, mode.forbiddenMessage())
	}

	material, err := s.repo.GetMaterial(ctx, materialID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, userError(ErrNotFound, "Material not found")
		}
		return nil, err
	}

	fileName := material.Title + ".pdf"
	contentType := defaultContentType

	path, uploadID, ok := parseContentURL(material.ContentURL)
	if !ok {
		return nil, fileNotFound()
	}
	if uploadID > 0 {
		upload, err := s.repo.GetUpload(ctx, uploadID)
		if err != nil {
			if db.IsNoRows(err) {
				return nil, fileNotFound()
			}
			return nil, err
		}
		path = upload.FilePath
		if upload.MimeType != "" {
			contentType = upload.MimeType
		}
	}

	return s.open(ctx, path, contentType, fileName)
}

// OpenUpload streams an upload by id. Access is granted through the material
// that references the upload.
func (s *DeliveryService) OpenUpload(ctx context.Context, identity *model.AuthUser, uploadID int64) (*Delivery, error) {
	if identity == nil || identity.ID == "" {
		return nil, userError(ErrUnauthorized, "Authentication required")
	}

	material, err := s.repo.GetMaterialByContentURL(ctx, UploadContentURL(uploadID))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, fileNotFound()
		}
		return nil, err
	}

	if !identity.IsAdmin() {
		owned, err := s.entitlements.HasPurchased(ctx, identity.ID, material.ID)
		if err != nil {
			return nil, err
		}
		if !owned {
			return nil, userError(ErrForbidden, ModeDownload.forbiddenMessage())
		}
	}

	upload, err := s.repo.GetUpload(ctx, uploadID)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, fileNotFound()
		}
		return nil, err
	}

	contentType := upload.MimeType
	if contentType == "" {
		contentType = defaultContentType
	}
	name := upload.OriginalName
	if name == "" {
		name = material.Title + ".pdf"
	}
	return s.open(ctx, upload.FilePath, contentType, name)
}

func (s *DeliveryService) open(ctx context.Context, path, contentType, fileName string) (*Delivery, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fileNotFound()
	}
	obj, err := s.blobs.For(path).Get(ctx, path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fileNotFound()
		}
		return nil, fmt.Errorf("%w: %v", ErrDependency, err)
	}
	return &Delivery{
		Body:        obj.Body,
		Size:        obj.Size,
		ContentType: contentType,
		Filename:    SanitizeFilename(fileName),
	}, nil
}

func UploadContentURL(uploadID int64) string {
	return UploadContentPrefix + strconv.FormatInt(uploadID, 10)
}

// parseContentURL classifies a material contentUrl. It returns an upload id
// for internal references, a path for bare file references, and ok=false for
// anything that cannot be streamed (external URLs, other API paths).
func parseContentURL(raw string) (path string, uploadID int64, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", 0, false
	}
	if rest, found := strings.CutPrefix(raw, UploadContentPrefix); found {
		id, err := strconv.ParseInt(rest, 10, 64)
		if err != nil || id <= 0 {
			return "", 0, false
		}
		return "", id, true
	}
	if u, err := url.Parse(raw); err != nil || u.Scheme != "" || u.Host != "" {
		return "", 0, false
	}
	if strings.HasPrefix(raw, "/api/") {
		return "", 0, false
	}
	return filepath.FromSlash(raw), 0, true
}

// SanitizeFilename makes a name safe for a quoted Content-Disposition value.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case unicode.IsControl(r):
			continue
		case r == '/' || r == '\\' || r == '"' || r == ';':
			continue
		case r > unicode.MaxASCII:
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Join(strings.Fields(b.String()), " ")
	out = strings.Trim(out, ". ")
	if out == "" {
		return "download.pdf"
	}
	return out
}

func fileNotFound() error {
	return userError(ErrNotFound, "File not found")
}
