package db

import (
	"context"

	"github.com/prepvault/storefront/internal/model"
)

func (db *Postgres) HasPurchased(ctx context.Context, userID string, materialID int64) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM purchases WHERE user_id = $1 AND material_id = $2)`
	var exists bool
	if err := db.Pool.QueryRow(ctx, query, userID, materialID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// RecordPurchases inserts one row per item in a single transaction. Rows that
// already exist for (payment_id, material_id) are skipped, so replaying the
// same payment never duplicates entitlement. Only newly inserted rows are
// returned.
func (db *Postgres) RecordPurchases(ctx context.Context, purchases []model.Purchase) ([]model.Purchase, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	query := `
		INSERT INTO purchases (user_id, material_id, price_minor, payment_id, order_id, signature, purchased_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT ON CONSTRAINT purchases_payment_material_key DO NOTHING
		RETURNING id, purchased_at
	`
	recorded := make([]model.Purchase, 0, len(purchases))
	for _, p := range purchases {
		err := tx.QueryRow(ctx, query, p.UserID, p.MaterialID, p.PriceMinor, p.PaymentID, p.OrderID, p.Signature).
			Scan(&p.ID, &p.PurchasedAt)
		if IsNoRows(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		p.Price = model.FormatMinor(p.PriceMinor)
		recorded = append(recorded, p)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return recorded, nil
}

func (db *Postgres) ListPurchases(ctx context.Context, userID string) ([]model.Purchase, error) {
	query := `
		SELECT id, user_id, material_id, price_minor, payment_id, order_id, purchased_at
		FROM purchases
		WHERE user_id = $1
		ORDER BY purchased_at DESC, id DESC
	`
	rows, err := db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var purchases []model.Purchase
	for rows.Next() {
		var p model.Purchase
		if err := rows.Scan(&p.ID, &p.UserID, &p.MaterialID, &p.PriceMinor, &p.PaymentID, &p.OrderID, &p.PurchasedAt); err != nil {
			return nil, err
		}
		p.Price = model.FormatMinor(p.PriceMinor)
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

func (db *Postgres) GetCartItems(ctx context.Context, userID string) ([]model.CartItem, error) {
	query := `
		SELECT c.id, c.user_id, c.material_id, c.added_at,
			m.id, m.title, m.description, m.technology, m.difficulty, m.price_minor, m.original_price_minor,
			m.pages, m.rating::float8, m.review_count, m.image_url, m.content_url, m.preview_url, m.is_active, m.created_at
		FROM cart_items c
		JOIN materials m ON m.id = c.material_id
		WHERE c.user_id = $1 AND m.is_active = TRUE
		ORDER BY c.added_at, c.id
	`
	rows, err := db.Pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []model.CartItem
	for rows.Next() {
		var item model.CartItem
		m := &item.Material
		if err := rows.Scan(
			&item.ID, &item.UserID, &item.MaterialID, &item.AddedAt,
			&m.ID, &m.Title, &m.Description, &m.Technology, &m.Difficulty, &m.PriceMinor, &m.OriginalPriceMinor,
			&m.Pages, &m.Rating, &m.ReviewCount, &m.ImageURL, &m.ContentURL, &m.PreviewURL, &m.IsActive, &m.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (db *Postgres) AddCartItem(ctx context.Context, userID string, materialID int64) error {
	query := `
		INSERT INTO cart_items (user_id, material_id, added_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT ON CONSTRAINT cart_items_user_material_key DO NOTHING
	`
	_, err := db.Pool.Exec(ctx, query, userID, materialID)
	return err
}

func (db *Postgres) RemoveCartItem(ctx context.Context, userID string, materialID int64) error {
	_, err := db.Pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND material_id = $2`, userID, materialID)
	return err
}

func (db *Postgres) ClearCart(ctx context.Context, userID string) error {
	_, err := db.Pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	return err
}

func (db *Postgres) SavePaymentOrder(ctx context.Context, order model.PaymentOrder) error {
	query := `
		INSERT INTO payment_orders (order_id, user_id, material_ids, amount_minor, currency, receipt, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (order_id) DO NOTHING
	`
	materialIDs := order.MaterialIDs
	if materialIDs == nil {
		materialIDs = []int64{}
	}
	_, err := db.Pool.Exec(ctx, query, order.OrderID, order.UserID, materialIDs, order.AmountMinor, order.Currency, order.Receipt)
	return err
}

func (db *Postgres) GetPaymentOrder(ctx context.Context, orderID string) (*model.PaymentOrder, error) {
	query := `
		SELECT order_id, user_id, material_ids, amount_minor, currency, receipt, created_at
		FROM payment_orders
		WHERE order_id = $1
	`
	var order model.PaymentOrder
	err := db.Pool.QueryRow(ctx, query, orderID).Scan(
		&order.OrderID,
		&order.UserID,
		&order.MaterialIDs,
		&order.AmountMinor,
		&order.Currency,
		&order.Receipt,
		&order.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListAllPurchases returns every purchase with its material title and the
// buyer's email, newest first. Guest buyers without an email have none.
func (db *Postgres) ListAllPurchases(ctx context.Context) ([]model.AdminPurchase, error) {
	query := `
		SELECT p.id, p.user_id, p.material_id, p.price_minor, p.payment_id, p.order_id, p.purchased_at,
			m.title, COALESCE(u.email, '')
		FROM purchases p
		JOIN materials m ON m.id = p.material_id
		LEFT JOIN users u ON u.id = p.user_id
		ORDER BY p.purchased_at DESC, p.id DESC
	`
	rows, err := db.Pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var purchases []model.AdminPurchase
	for rows.Next() {
		var p model.AdminPurchase
		if err := rows.Scan(
			&p.ID, &p.UserID, &p.MaterialID, &p.PriceMinor, &p.PaymentID, &p.OrderID, &p.PurchasedAt,
			&p.MaterialTitle, &p.UserEmail,
		); err != nil {
			return nil, err
		}
		p.Price = model.FormatMinor(p.PriceMinor)
		purchases = append(purchases, p)
	}
	return purchases, rows.Err()
}

func (db *Postgres) PaymentEventSeen(ctx context.Context, eventID string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM payment_events WHERE event_id = $1)`
	var seen bool
	if err := db.Pool.QueryRow(ctx, query, eventID).Scan(&seen); err != nil {
		return false, err
	}
	return seen, nil
}

// MarkPaymentEvent records a webhook event id. It reports false when the
// event was already seen.
func (db *Postgres) MarkPaymentEvent(ctx context.Context, eventID, event, paymentID string) (bool, error) {
	query := `
		INSERT INTO payment_events (event_id, event, payment_id, received_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (event_id) DO NOTHING
	`
	tag, err := db.Pool.Exec(ctx, query, eventID, event, paymentID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
