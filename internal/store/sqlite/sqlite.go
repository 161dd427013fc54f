package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/srikarsubramaniam/kishore-billing-software/internal/domain"
	"github.com/srikarsubramaniam/kishore-billing-software/internal/store"
)

//go:embed schema.sql
var schema string

// Store keeps inventory and bills in a single SQLite file. Timestamps are
// stored as Unix nanoseconds so range scans compare numerically.
type Store struct {
	db *sqlx.DB
}

type itemRow struct {
	ID          string          `db:"id"`
	Name        string          `db:"name"`
	Category    string          `db:"category"`
	Price       decimal.Decimal `db:"price"`
	Quantity    int             `db:"quantity"`
	Description string          `db:"description"`
	SKU         string          `db:"sku"`
	Image       string          `db:"image"`
	CreatedAt   int64           `db:"created_at"`
	UpdatedAt   int64           `db:"updated_at"`
}

type billRow struct {
	ID            string          `db:"id"`
	BillNumber    string          `db:"bill_number"`
	Total         decimal.Decimal `db:"total"`
	CustomerName  string          `db:"customer_name"`
	CustomerPhone string          `db:"customer_phone"`
	PaymentMethod string          `db:"payment_method"`
	CreatedAt     int64           `db:"created_at"`
}

type lineRow struct {
	BillID   string          `db:"bill_id"`
	LineNo   int             `db:"line_no"`
	ItemID   string          `db:"item_id"`
	Name     string          `db:"name"`
	Price    decimal.Decimal `db:"price"`
	Quantity int             `db:"quantity"`
}

func Open(ctx context.Context, path string) (*Store, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// A single connection serialises writers, so a bill's check-and-decrement
	// never interleaves with another.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Driver() string {
	return "sqlite"
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

func toItemRow(item domain.InventoryItem) itemRow {
	return itemRow{
		ID:          item.ID,
		Name:        item.Name,
		Category:    item.Category,
		Price:       item.Price,
		Quantity:    item.Quantity,
		Description: item.Description,
		SKU:         item.SKU,
		Image:       item.Image,
		CreatedAt:   item.CreatedAt.UnixNano(),
		UpdatedAt:   item.UpdatedAt.UnixNano(),
	}
}

func (r itemRow) toDomain() domain.InventoryItem {
	return domain.InventoryItem{
		ID:          r.ID,
		Name:        r.Name,
		Category:    r.Category,
		Price:       r.Price,
		Quantity:    r.Quantity,
		Description: r.Description,
		SKU:         r.SKU,
		Image:       r.Image,
		CreatedAt:   time.Unix(0, r.CreatedAt).UTC(),
		UpdatedAt:   time.Unix(0, r.UpdatedAt).UTC(),
	}
}

func (s *Store) ListItems(ctx context.Context, category string) ([]domain.InventoryItem, error) {
	var rows []itemRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM inventory_items
		WHERE (? = '' OR category = lower(?))
		ORDER BY created_at DESC, id
	`, category, category)
	if err != nil {
		return nil, err
	}
	items := make([]domain.InventoryItem, 0, len(rows))
	for _, r := range rows {
		items = append(items, r.toDomain())
	}
	return items, nil
}

func (s *Store) GetItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	var row itemRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM inventory_items WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	item := row.toDomain()
	return &item, nil
}

func (s *Store) GetItemsByIDs(ctx context.Context, ids []string) (map[string]domain.InventoryItem, error) {
	result := make(map[string]domain.InventoryItem, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(`SELECT * FROM inventory_items WHERE id IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var rows []itemRow
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	for _, r := range rows {
		result[r.ID] = r.toDomain()
	}
	return result, nil
}

const insertItemSQL = `
	INSERT INTO inventory_items (id, name, category, price, quantity, description, sku, image, created_at, updated_at)
	VALUES (:id, :name, :category, :price, :quantity, :description, :sku, :image, :created_at, :updated_at)
`

func (s *Store) CreateItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.db.NamedExecContext(ctx, insertItemSQL, toItemRow(item)); err != nil {
		return nil, mapConstraint(err)
	}
	return &item, nil
}

type itemUpdateRow struct {
	itemRow
	SetQuantity bool `db:"set_quantity"`
}

func (s *Store) UpdateItem(ctx context.Context, item domain.InventoryItem, setQuantity bool) (*domain.InventoryItem, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.NamedExecContext(ctx, `
		UPDATE inventory_items
		SET name = :name, category = :category, price = :price,
			quantity = CASE WHEN :set_quantity THEN :quantity ELSE quantity END,
			description = :description, sku = :sku, image = :image, updated_at = :updated_at
		WHERE id = :id
	`, itemUpdateRow{itemRow: toItemRow(item), SetQuantity: setQuantity})
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrNotFound
	}

	var row itemRow
	if err := tx.GetContext(ctx, &row, `SELECT * FROM inventory_items WHERE id = ?`, item.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	updated := row.toDomain()
	return &updated, nil
}

func (s *Store) DeleteItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM inventory_items WHERE id = ?`, id)
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
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM inventory_items`)
	return n, err
}

func (s *Store) CreateBill(ctx context.Context, bill domain.Bill, policy domain.StockPolicy) (*domain.Bill, error) {
	if err := bill.Validate(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	at := bill.CreatedAt.UnixNano()
	shortfalls := make([]domain.StockShortfall, 0)
	for _, line := range bill.Items {
		res, err := tx.ExecContext(ctx, `
			UPDATE inventory_items
			SET quantity = quantity - ?, updated_at = ?
			WHERE id = ? AND quantity >= ?
		`, line.Quantity, at, line.ID, line.Quantity)
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
		err = tx.GetContext(ctx, &available, `SELECT quantity FROM inventory_items WHERE id = ?`, line.ID)
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
	if err := insertBill(ctx, tx, bill); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	bill.Shortfalls = nil
	if len(shortfalls) > 0 {
		bill.Shortfalls = shortfalls
	}
	return &bill, nil
}

func insertBill(ctx context.Context, tx *sqlx.Tx, bill domain.Bill) error {
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO bills (id, bill_number, total, customer_name, customer_phone, payment_method, created_at)
		VALUES (:id, :bill_number, :total, :customer_name, :customer_phone, :payment_method, :created_at)
	`, billRow{
		ID:            bill.ID,
		BillNumber:    bill.BillNumber,
		Total:         bill.Total,
		CustomerName:  bill.CustomerName,
		CustomerPhone: bill.CustomerPhone,
		PaymentMethod: bill.PaymentMethod,
		CreatedAt:     bill.CreatedAt.UnixNano(),
	})
	if err != nil {
		return mapConstraint(err)
	}

	for i, line := range bill.Items {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO bill_lines (bill_id, line_no, item_id, name, price, quantity)
			VALUES (:bill_id, :line_no, :item_id, :name, :price, :quantity)
		`, lineRow{BillID: bill.ID, LineNo: i, ItemID: line.ID, Name: line.Name, Price: line.Price, Quantity: line.Quantity}); err != nil {
			return err
		}
	}
	return nil
}

func (r billRow) toDomain() domain.Bill {
	return domain.Bill{
		ID:            r.ID,
		BillNumber:    r.BillNumber,
		Total:         r.Total,
		CustomerName:  r.CustomerName,
		CustomerPhone: r.CustomerPhone,
		PaymentMethod: r.PaymentMethod,
		CreatedAt:     time.Unix(0, r.CreatedAt).UTC(),
	}
}

func (s *Store) GetBill(ctx context.Context, id string) (*domain.Bill, error) {
	var row billRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM bills WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	bills, err := s.attachLines(ctx, []billRow{row})
	if err != nil {
		return nil, err
	}
	return &bills[0], nil
}

func (s *Store) ListBills(ctx context.Context, from time.Time, to time.Time) ([]domain.Bill, error) {
	conds := make([]string, 0, 2)
	args := make([]any, 0, 2)
	if !from.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, from.UnixNano())
	}
	if !to.IsZero() {
		conds = append(conds, "created_at < ?")
		args = append(args, to.UnixNano())
	}
	query := `SELECT * FROM bills`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC, bill_number DESC`

	var rows []billRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return s.attachLines(ctx, rows)
}

func (s *Store) attachLines(ctx context.Context, rows []billRow) ([]domain.Bill, error) {
	bills := make([]domain.Bill, 0, len(rows))
	if len(rows) == 0 {
		return bills, nil
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}

	query, args, err := sqlx.In(`SELECT * FROM bill_lines WHERE bill_id IN (?) ORDER BY bill_id, line_no`, ids)
	if err != nil {
		return nil, err
	}
	var lines []lineRow
	if err := s.db.SelectContext(ctx, &lines, s.db.Rebind(query), args...); err != nil {
		return nil, err
	}
	byBill := make(map[string][]domain.BillLine, len(rows))
	for _, l := range lines {
		byBill[l.BillID] = append(byBill[l.BillID], domain.BillLine{ID: l.ItemID, Name: l.Name, Price: l.Price, Quantity: l.Quantity})
	}

	for _, r := range rows {
		bill := r.toDomain()
		bill.Items = byBill[r.ID]
		bills = append(bills, bill)
	}
	return bills, nil
}

func (s *Store) CountBills(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM bills`)
	return n, err
}

func (s *Store) ImportItems(ctx context.Context, items []domain.InventoryItem) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
		if _, err := tx.NamedExecContext(ctx, insertItemSQL, toItemRow(item)); err != nil {
			return mapConstraint(err)
		}
	}
	return tx.Commit()
}

func (s *Store) ImportBills(ctx context.Context, bills []domain.Bill) error {
	tx, err := s.db.BeginTxx(ctx, nil)
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

func mapConstraint(err error) error {
	var sqlErr *sqlite.Error
	if errors.As(err, &sqlErr) {
		switch sqlErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return store.ErrDuplicate
		case sqlite3.SQLITE_CONSTRAINT:
			if strings.Contains(sqlErr.Error(), "UNIQUE") {
				return store.ErrDuplicate
			}
		}
	}
	return err
}
