package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/prepvault/storefront/internal/model"
)

const materialColumns = `id, title, description, technology, difficulty, price_minor, original_price_minor,
	pages, rating::float8, review_count, image_url, content_url, preview_url, is_active, created_at`

func scanMaterial(row interface{ Scan(...any) error }) (*model.Material, error) {
	var m model.Material
	err := row.Scan(
		&m.ID,
		&m.Title,
		&m.Description,
		&m.Technology,
		&m.Difficulty,
		&m.PriceMinor,
		&m.OriginalPriceMinor,
		&m.Pages,
		&m.Rating,
		&m.ReviewCount,
		&m.ImageURL,
		&m.ContentURL,
		&m.PreviewURL,
		&m.IsActive,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMaterial returns an active material.
func (db *Postgres) GetMaterial(ctx context.Context, id int64) (*model.Material, error) {
	query := `SELECT ` + materialColumns + ` FROM materials WHERE id = $1 AND is_active = TRUE`
	return scanMaterial(db.Pool.QueryRow(ctx, query, id))
}

func (db *Postgres) ListMaterials(ctx context.Context) ([]model.Material, error) {
	query := `SELECT ` + materialColumns + ` FROM materials WHERE is_active = TRUE ORDER BY created_at DESC, id DESC`
	rows, err := db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var materials []model.Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, err
		}
		materials = append(materials, *m)
	}
	return materials, rows.Err()
}

// GetMaterialByContentURL finds the active material that references an upload.
func (db *Postgres) GetMaterialByContentURL(ctx context.Context, contentURL string) (*model.Material, error) {
	query := `SELECT ` + materialColumns + ` FROM materials WHERE content_url = $1 AND is_active = TRUE LIMIT 1`
	return scanMaterial(db.Pool.QueryRow(ctx, query, contentURL))
}

func insertMaterial(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}, m model.Material) (*model.Material, error) {
	query := `
		INSERT INTO materials (title, description, technology, difficulty, price_minor, original_price_minor,
			pages, rating, review_count, image_url, content_url, preview_url, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, TRUE, NOW())
		RETURNING ` + materialColumns
	return scanMaterial(q.QueryRow(ctx, query,
		m.Title, m.Description, m.Technology, m.Difficulty, m.PriceMinor, m.OriginalPriceMinor,
		m.Pages, m.Rating, m.ReviewCount, m.ImageURL, m.ContentURL, m.PreviewURL,
	))
}

func (db *Postgres) CreateMaterial(ctx context.Context, m model.Material) (*model.Material, error) {
	return insertMaterial(ctx, db.Pool, m)
}

const uploadColumns = `id, filename, original_name, file_path, file_size, mime_type, technology, uploaded_by, is_active, created_at`

func scanUpload(row interface{ Scan(...any) error }) (*model.Upload, error) {
	var u model.Upload
	err := row.Scan(
		&u.ID,
		&u.Filename,
		&u.OriginalName,
		&u.FilePath,
		&u.FileSize,
		&u.MimeType,
		&u.Technology,
		&u.UploadedBy,
		&u.IsActive,
		&u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (db *Postgres) GetUpload(ctx context.Context, id int64) (*model.Upload, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads WHERE id = $1`
	return scanUpload(db.Pool.QueryRow(ctx, query, id))
}

func (db *Postgres) ListUploads(ctx context.Context) ([]model.Upload, error) {
	query := `SELECT ` + uploadColumns + ` FROM uploads WHERE is_active = TRUE ORDER BY created_at DESC, id DESC`
	rows, err := db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uploads []model.Upload
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, *u)
	}
	return uploads, rows.Err()
}

// CreateUploadWithMaterial inserts the upload row and the material that
// points at it in one transaction. contentURLFor receives the new upload id.
func (db *Postgres) CreateUploadWithMaterial(ctx context.Context, u model.Upload, m model.Material, contentURLFor func(uploadID int64) string) (*model.Upload, *model.Material, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	query := `
		INSERT INTO uploads (filename, original_name, file_path, file_size, mime_type, technology, uploaded_by, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, NOW())
		RETURNING ` + uploadColumns
	upload, err := scanUpload(tx.QueryRow(ctx, query,
		u.Filename, u.OriginalName, u.FilePath, u.FileSize, u.MimeType, u.Technology, u.UploadedBy,
	))
	if err != nil {
		return nil, nil, err
	}

	m.ContentURL = contentURLFor(upload.ID)
	material, err := insertMaterial(ctx, tx, m)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}
	return upload, material, nil
}

// DeleteUpload removes the upload row and deactivates any material that
// references it, so no purchasable entry is left pointing at missing bytes.
func (db *Postgres) DeleteUpload(ctx context.Context, id int64, contentURL string) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `UPDATE materials SET is_active = FALSE WHERE content_url = $1`, contentURL); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx, `DELETE FROM uploads WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return tx.Commit(ctx)
}
