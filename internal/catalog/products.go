package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_jewelry/internal/domain"
)

// ProductFilter narrows ListProducts. Zero values match everything.
type ProductFilter struct {
	CategoryID int64
	// Query matches name, description or material, case-insensitively.
	Query string
}

const productColumns = `id, name, description, price, image_url, category_id, material, stock, created_at`

func (r *Repository) ListProducts(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	var (
		where []string
		args  []any
	)
	if f.CategoryID != 0 {
		where = append(where, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if q := strings.TrimSpace(f.Query); q != "" {
		like := "%" + q + "%"
		where = append(where, "(name LIKE ? OR description LIKE ? OR material LIKE ?)")
		args = append(args, like, like, like)
	}

	query := "SELECT " + productColumns + " FROM products"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []domain.Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

func (r *Repository) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+productColumns+" FROM products WHERE id = ?", id)

	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, err
	}
	return p, nil
}

// CreateProduct validates p and inserts it. A non-zero CategoryID must
// reference an existing category.
func (r *Repository) CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error) {
	if err := p.Validate(); err != nil {
		return domain.Product{}, err
	}
	if p.CategoryID != 0 {
		_, err := r.GetCategory(ctx, p.CategoryID)
		if errors.Is(err, ErrCategoryNotFound) {
			return domain.Product{}, fmt.Errorf("%w: category %d does not exist", domain.ErrInvalidProduct, p.CategoryID)
		}
		if err != nil {
			return domain.Product{}, err
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}

	var category sql.NullInt64
	if p.CategoryID != 0 {
		category = sql.NullInt64{Int64: p.CategoryID, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO products (id, name, description, price, image_url, category_id, material, stock, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Price, p.ImageURL, category, p.Material, p.Stock, p.CreatedAt,
	)
	if IsUniqueViolation(err) {
		return domain.Product{}, fmt.Errorf("%w: %s", ErrDuplicateProduct, p.ID)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to insert product: %w", err)
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(s rowScanner) (domain.Product, error) {
	var (
		p        domain.Product
		category sql.NullInt64
	)
	err := s.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.ImageURL,
		&category,
		&p.Material,
		&p.Stock,
		&p.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, err
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("failed to scan product: %w", err)
	}
	p.CategoryID = category.Int64
	return p, nil
}
