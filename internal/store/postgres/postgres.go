package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/srikarsubramaniam/kishore-billing-software/internal/domain"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/store"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sql.DB
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	s := &Store{db: db}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the tables and indexes if they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *Store) Driver() string {
	return "postgres"
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const itemColumns = `id, name, category, price, quantity, description, sku, image, created_at, updated_at`

func scanItem(row rowScanner) (domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := row.Scan(&item.ID, &item.Name, &item.Category, &item.Price, &item.Quantity,
		&item.Description, &item.SKU, &item.Image, &item.CreatedAt, &item.UpdatedAt)
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return item, err
}

func (s *Store) ListItems(ctx context.Context, category string) ([]domain.InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+`
		FROM inventory_items
		WHERE ($1 = '' OR category = lower($1))
		ORDER BY created_at DESC, id
	`, category)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.InventoryItem, 0, 64)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) GetItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	item, err := scanItem(s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) GetItemsByIDs(ctx context.Context, ids []string) (map[string]domain.InventoryItem, error) {
	result := make(map[string]domain.InventoryItem, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		result[item.ID] = item
	}
	return result, rows.Err()
}

func (s *Store) CreateItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}
	if err := insertItem(ctx, s.db, item); err != nil {
		return nil, err
	}
	return &item, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertItem(ctx context.Context, db execer, item domain.InventoryItem) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO inventory_items (`+itemColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, item.ID, item.Name, item.Category, item.Price, item.Quantity,
		item.Description, item.SKU, item.Image, item.CreatedAt, item.UpdatedAt)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	return err
}

func (s *Store) UpdateItem(ctx context.Context, item domain.InventoryItem, setQuantity bool) (*domain.InventoryItem, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}
	updated, err := scanItem(s.db.QueryRowContext(ctx, `
		UPDATE inventory_items
		SET name = $2, category = $3, price = $4,
			quantity = CASE WHEN $10::boolean THEN $5::integer ELSE quantity END,
			description = $6, sku = $7, image = $8, updated_at = $9
		WHERE id = $1
		RETURNING `+itemColumns,
		item.ID, item.Name, item.Category, item.Price, item.Quantity,
		item.Description, item.SKU, item.Image, item.UpdatedAt, setQuantity))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CountItems(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM inventory_items`).Scan(&n)
	return n, err
}

func (s *Store) CreateBill(ctx context.Context, bill domain.Bill, policy domain.StockPolicy) (*domain.Bill, error) {
	if err := bill.Validate(); err != nil {
		return nil, err
	}

	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	shortfalls := make([]domain.StockShortfall, 0)
	for _, line := range bill.Items {
		res, err := pgTx.ExecContext(ctx, `
			UPDATE inventory_items
			SET quantity = quantity - $1, updated_at = $2
			WHERE id = $3 AND quantity >= $1
		`, line.Quantity, bill.CreatedAt, line.ID)
		if err != nil {
			return nil, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return nil, err
		}
		if affected == 1 {
			continue
		}

		var available int
		err = pgTx.QueryRowContext(ctx, `SELECT quantity FROM inventory_items WHERE id = $1`, line.ID).Scan(&available)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			shortfalls = append(shortfalls, domain.StockShortfall{
				ItemID: line.ID, Name: line.Name, Requested: line.Quantity,
				Reason: domain.ShortfallNotInInventory,
			})
		case err != nil:
			return nil, err
		default:
			shortfalls = append(shortfalls, domain.StockShortfall{
				ItemID: line.ID, Name: line.Name, Requested: line.Quantity, Available: available,
				Reason: domain.ShortfallInsufficientStock,
			})
		}
	}

	if err := store.CheckShortfalls(policy, shortfalls); err != nil {
		return nil, err
	}

	if err := insertBill(ctx, pgTx, bill); err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	if len(shortfalls) > 0 {
		bill.Shortfalls = shortfalls
	} else {
		bill.Shortfalls = nil
	}
	return &bill, nil
}

func insertBill(ctx context.Context, db execer, bill domain.Bill) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO bills (id, bill_number, total, customer_name, customer_phone, payment_method, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, bill.ID, bill.BillNumber, bill.Total, bill.CustomerName, bill.CustomerPhone, bill.PaymentMethod, bill.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	if err != nil {
		return err
	}

	for i, line := range bill.Items {
		if _, err := db.ExecContext(ctx, `
			INSERT INTO bill_lines (bill_id, line_no, item_id, name, price, quantity)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, bill.ID, i, line.ID, line.Name, line.Price, line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

const billColumns = `id, bill_number, total, customer_name, customer_phone, payment_method, created_at`

func scanBill(row rowScanner) (domain.Bill, error) {
	var bill domain.Bill
	err := row.Scan(&bill.ID, &bill.BillNumber, &bill.Total, &bill.CustomerName,
		&bill.CustomerPhone, &bill.PaymentMethod, &bill.CreatedAt)
	bill.CreatedAt = bill.CreatedAt.UTC()
	return bill, err
}

func (s *Store) GetBill(ctx context.Context, id string) (*domain.Bill, error) {
	bill, err := scanBill(s.db.QueryRowContext(ctx, `SELECT `+billColumns+` FROM bills WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	lines, err := loadLines(ctx, s.db, []string{bill.ID})
	if err != nil {
		return nil, err
	}
	bill.Items = lines[bill.ID]
	return &bill, nil
}

func (s *Store) ListBills(ctx context.Context, from time.Time, to time.Time) ([]domain.Bill, error) {
	conds := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if !from.IsZero() {
		args = append(args, from)
		conds = append(conds, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if !to.IsZero() {
		args = append(args, to)
		conds = append(conds, fmt.Sprintf("created_at < $%d", len(args)))
	}
	query := `SELECT ` + billColumns + ` FROM bills`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, bill_number DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bills := make([]domain.Bill, 0, 64)
	ids := make([]string, 0, 64)
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		bills = append(bills, bill)
		ids = append(ids, bill.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lines, err := loadLines(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	for i := range bills {
		bills[i].Items = lines[bills[i].ID]
	}
	return bills, nil
}

func loadLines(ctx context.Context, q queryer, billIDs []string) (map[string][]domain.BillLine, error) {
	result := make(map[string][]domain.BillLine, len(billIDs))
	if len(billIDs) == 0 {
		return result, nil
	}
	rows, err := q.QueryContext(ctx, `
		SELECT bill_id, item_id, name, price, quantity
		FROM bill_lines
		WHERE bill_id = ANY($1)
		ORDER BY bill_id, line_no
	`, billIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var billID string
		var line domain.BillLine
		if err := rows.Scan(&billID, &line.ID, &line.Name, &line.Price, &line.Quantity); err != nil {
			return nil, err
		}
		result[billID] = append(result[billID], line)
	}
	return result, rows.Err()
}

func (s *Store) CountBills(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bills`).Scan(&n)
	return n, err
}

func (s *Store) ImportItems(ctx context.Context, items []domain.InventoryItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
		if err := insertItem(ctx, tx, item); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) ImportBills(ctx context.Context, bills []domain.Bill) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, bill := range bills {
		if err := bill.Validate(); err != nil {
			return err
		}
		if err := insertBill(ctx, tx, bill); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
