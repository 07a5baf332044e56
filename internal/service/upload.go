package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/prepvault/storefront/internal/client"
	"github.com/prepvault/storefront/internal/db"
	"github.com/prepvault/storefront/internal/model"
	"github.com/prepvault/storefront/internal/storage"
	"go.uber.org/zap"
)

const (
	PDFContentType       = "application/pdf"
	DefaultMaxUploadSize = 10 << 20

	maxTechnologyLength = 64
	uploadRating        = 4.8
	uploadReviewCount   = 500
	uploadDifficulty    = "intermediate"
)

var pdfMagic = []byte("%PDF-")

type uploadRepo interface {
	CreateUploadWithMaterial(ctx context.Context, u model.Upload, m model.Material, contentURLFor func(uploadID int64) string) (*model.Upload, *model.Material, error)
	GetUpload(ctx context.Context, id int64) (*model.Upload, error)
	ListUploads(ctx context.Context) ([]model.Upload, error)
	DeleteUpload(ctx context.Context, id int64, contentURL string) error
}

type malwareScanner interface {
	Scan(ctx context.Context, data []byte) (*client.ScanResult, error)
}

type blobWriter interface {
	Writer() storage.Store
	For(path string) storage.Store
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context)
}

// UploadInput is one admin-submitted file plus its catalog metadata, as
// received from the multipart form.
type UploadInput struct {
	Data         []byte
	OriginalName string
	MimeType     string
	Technology   string
	Price        string
	PageCount    string
	UploadedBy   string
}

// UploadService admits scanned PDFs into storage and the catalog.
type UploadService struct {
	repo     uploadRepo
	scanner  malwareScanner
	blobs    blobWriter
	catalog  cacheInvalidator
	events   eventPublisher
	policy   *bluemonday.Policy
	maxBytes int64
	logger   *zap.Logger
}

func NewUploadService(repo uploadRepo, scanner malwareScanner, blobs blobWriter, catalog cacheInvalidator, events eventPublisher, maxBytes int64, logger *zap.Logger) *UploadService {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadSize
	}
	return &UploadService{
		repo:     repo,
		scanner:  scanner,
		blobs:    blobs,
		catalog:  catalog,
		events:   events,
		policy:   bluemonday.StrictPolicy(),
		maxBytes: maxBytes,
		logger:   logger.Named("upload"),
	}
}

func (s *UploadService) MaxBytes() int64 {
	return s.maxBytes
}

// Intake validates, scans, stores and catalogs one file. Nothing is written
// unless the scanner returns a clean verdict.
func (s *UploadService) Intake(ctx context.Context, in UploadInput) (*model.Upload, *model.Material, error) {
	if len(in.Data) == 0 {
		return nil, nil, userError(ErrInvalidInput, "No file uploaded")
	}
	if int64(len(in.Data)) > s.maxBytes {
		return nil, nil, userError(ErrInvalidInput, "File too large")
	}
	if in.MimeType != PDFContentType || !bytes.HasPrefix(in.Data, pdfMagic) {
		return nil, nil, userError(ErrInvalidInput, "Only PDF files are allowed")
	}

	technology := s.cleanTechnology(in.Technology)
	if technology == "" {
		return nil, nil, userError(ErrInvalidInput, "Technology is required")
	}
	if strings.TrimSpace(in.Price) == "" {
		return nil, nil, userError(ErrInvalidInput, "Price is required")
	}
	price, err := model.ParseMajor(in.Price)
	if err != nil || price <= 0 {
		return nil, nil, userError(ErrInvalidInput, "Price must be a positive number")
	}
	if strings.TrimSpace(in.PageCount) == "" {
		return nil, nil, userError(ErrInvalidInput, "Number Of Questions is required")
	}
	pages, err := strconv.Atoi(strings.TrimSpace(in.PageCount))
	if err != nil || pages <= 0 {
		return nil, nil, userError(ErrInvalidInput, "Number Of Questions must be a positive number")
	}

	result, err := s.scanner.Scan(ctx, in.Data)
	if err != nil {
		s.logger.Error("malware scan failed", zap.String("originalName", in.OriginalName), zap.Error(err))
		return nil, nil, fmt.Errorf("%w: malware scan unavailable", ErrDependency)
	}
	if result.Infected {
		s.logger.Warn("upload rejected by malware scan",
			zap.String("originalName", in.OriginalName),
			zap.String("signature", result.Signature),
			zap.String("uploadedBy", in.UploadedBy),
		)
		return nil, nil, userError(ErrInfected, "File rejected: malware detected")
	}

	key := uuid.NewString() + ".pdf"
	storedPath, err := s.blobs.Writer().Put(ctx, key, bytes.NewReader(in.Data), int64(len(in.Data)), PDFContentType)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: failed to store upload: %v", ErrDependency, err)
	}

	upload := model.Upload{
		Filename:     key,
		OriginalName: displayName(in.OriginalName),
		FilePath:     storedPath,
		FileSize:     int64(len(in.Data)),
		MimeType:     PDFContentType,
		Technology:   technology,
		UploadedBy:   in.UploadedBy,
	}
	lower := strings.ToLower(technology)
	material := model.Material{
		Title:              strings.ToUpper(technology) + " Interview Questions & Answers",
		Description:        fmt.Sprintf("Comprehensive %s interview preparation guide with real questions and detailed answers. Perfect for cracking your next interview.", technology),
		Technology:         lower,
		Difficulty:         uploadDifficulty,
		PriceMinor:         price,
		OriginalPriceMinor: int64(math.Round(float64(price) * 1.15)),
		Pages:              pages,
		Rating:             uploadRating,
		ReviewCount:        uploadReviewCount,
		ImageURL:           "/images/" + lower + "-guide.jpg",
		PreviewURL:         "/preview/" + lower + "-preview.pdf",
	}

	created, createdMaterial, err := s.repo.CreateUploadWithMaterial(ctx, upload, material, UploadContentURL)
	if err != nil {
		if delErr := s.blobs.For(storedPath).Delete(ctx, storedPath); delErr != nil && !errors.Is(delErr, storage.ErrNotFound) {
			s.logger.Warn("failed to remove orphaned upload", zap.String("path", storedPath), zap.Error(delErr))
		}
		return nil, nil, fmt.Errorf("failed to create upload: %w", err)
	}

	s.catalog.Invalidate(ctx)
	if err := s.events.Publish(ctx, client.EventUploadCreated, created); err != nil {
		s.logger.Warn("failed to publish upload event", zap.Int64("uploadId", created.ID), zap.Error(err))
	}
	s.logger.Info("upload stored",
		zap.Int64("uploadId", created.ID),
		zap.Int64("materialId", createdMaterial.ID),
		zap.Int64("bytes", created.FileSize),
	)
	return created, createdMaterial, nil
}

func (s *UploadService) List(ctx context.Context) ([]model.Upload, error) {
	uploads, err := s.repo.ListUploads(ctx)
	if err != nil {
		return nil, err
	}
	if uploads == nil {
		uploads = []model.Upload{}
	}
	return uploads, nil
}

// Delete removes the stored bytes (best effort) and then the upload row. The
// referencing material is deactivated rather than deleted, since purchases
// point at it.
func (s *UploadService) Delete(ctx context.Context, id int64) error {
	upload, err := s.repo.GetUpload(ctx, id)
	if err != nil {
		if db.IsNoRows(err) {
			return userError(ErrNotFound, "Upload not found")
		}
		return err
	}

	if upload.FilePath != "" {
		if err := s.blobs.For(upload.FilePath).Delete(ctx, upload.FilePath); err != nil && !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("failed to delete upload bytes", zap.Int64("uploadId", id), zap.Error(err))
		}
	}

	if err := s.repo.DeleteUpload(ctx, id, UploadContentURL(id)); err != nil {
		if db.IsNoRows(err) {
			return userError(ErrNotFound, "Upload not found")
		}
		return err
	}

	s.catalog.Invalidate(ctx)
	if err := s.events.Publish(ctx, client.EventUploadDeleted, map[string]int64{"id": id}); err != nil {
		s.logger.Warn("failed to publish upload event", zap.Int64("uploadId", id), zap.Error(err))
	}
	return nil
}

// cleanTechnology strips markup; the value is embedded in catalog titles.
// The policy escapes the text it keeps, so entities are decoded back before
// storage.
func (s *UploadService) cleanTechnology(raw string) string {
	clean := html.UnescapeString(s.policy.Sanitize(raw))
	clean = strings.Join(strings.Fields(clean), " ")
	if runes := []rune(clean); len(runes) > maxTechnologyLength {
		clean = strings.TrimSpace(string(runes[:maxTechnologyLength]))
	}
	return clean
}

func displayName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "upload.pdf"
	}
	return name
}
