package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection for readiness probes
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Migrate applies the embedded schema; every statement is idempotent
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

const productColumns = "id, vendor_id, name, description, category, price, stock_quantity, images, is_active, created_at, updated_at"

// GetProductByID retrieves a product regardless of visibility
func (s *Store) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT "+productColumns+" FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("product", id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT "+productColumns+" FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// visibleProductsQuery joins the owning vendor so that only active products
// of active, approved vendors are returned
const visibleProductsQuery = `
	SELECT p.id, p.vendor_id, p.name, p.description, p.category, p.price, p.stock_quantity,
	       p.images, p.is_active, p.created_at, p.updated_at,
	       v.full_name AS vendor_name, v.store_name AS vendor_store_name
	FROM products p
	JOIN profiles v ON v.user_id = p.vendor_id
	WHERE p.is_active AND v.is_active AND v.approval_status = 'approved'`

// ListVisibleProducts returns the public catalog, newest first
func (s *Store) ListVisibleProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	query := visibleProductsQuery
	var args []interface{}

	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(" AND p.category = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		query += fmt.Sprintf(" AND p.name ILIKE $%d", len(args))
	}
	query += " ORDER BY p.created_at DESC"

	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// GetVisibleProduct retrieves one product from the public catalog
func (s *Store) GetVisibleProduct(ctx context.Context, id string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, visibleProductsQuery+" AND p.id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("product", id)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProductsByVendor returns a vendor's own products, newest first
func (s *Store) ListProductsByVendor(ctx context.Context, vendorID string) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products,
		"SELECT "+productColumns+" FROM products WHERE vendor_id = $1 ORDER BY created_at DESC", vendorID)
	return products, err
}

// CreateProduct inserts a product
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (id, vendor_id, name, description, category, price, stock_quantity, images, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	return s.db.GetContext(ctx, p, query,
		p.ID, p.VendorID, p.Name, p.Description, p.Category, p.Price, p.StockQuantity, p.Images, p.IsActive)
}

// UpdateProduct rewrites the editable fields of a vendor's product
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	query := `
		UPDATE products
		SET name = $1, description = $2, category = $3, price = $4, stock_quantity = $5,
		    images = $6, is_active = $7, updated_at = NOW()
		WHERE id = $8 AND vendor_id = $9
		RETURNING updated_at`

	err := s.db.GetContext(ctx, &p.UpdatedAt, query,
		p.Name, p.Description, p.Category, p.Price, p.StockQuantity, p.Images, p.IsActive, p.ID, p.VendorID)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.NotFound("product", p.ID)
	}
	return err
}

// DeleteProduct removes a vendor's product; cart lines cascade, order items keep their snapshot
func (s *Store) DeleteProduct(ctx context.Context, id, vendorID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1 AND vendor_id = $2", id, vendorID)
	if err != nil {
		return err
	}
	return requireRow(res, apperr.NotFound("product", id))
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
