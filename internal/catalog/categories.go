package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/fjod/go_jewelry/internal/domain"
)

var ErrInvalidCategory = errors.New("invalid category")

func (r *Repository) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, slug, description, created_at, updated_at
		FROM categories
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	categories := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return categories, nil
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (domain.Category, error) {
	var c domain.Category
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, slug, description, created_at, updated_at
		FROM categories
		WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Category{}, ErrCategoryNotFound
	}
	if err != nil {
		return domain.Category{}, fmt.Errorf("failed to get category: %w", err)
	}
	return c, nil
}

func (r *Repository) CreateCategory(ctx context.Context, name, description string) (domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Category{}, fmt.Errorf("%w: name is required", ErrInvalidCategory)
	}

	now := time.Now().UTC()
	c := domain.Category{
		Name:        name,
		Slug:        slugify(name),
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO categories (name, slug, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.Name, c.Slug, c.Description, c.CreatedAt, c.UpdatedAt,
	)
	if IsUniqueViolation(err) {
		return domain.Category{}, fmt.Errorf("%w: %s", ErrDuplicateCategory, name)
	}
	if err != nil {
		return domain.Category{}, fmt.Errorf("failed to insert category: %w", err)
	}

	c.ID, err = res.LastInsertId()
	if err != nil {
		return domain.Category{}, fmt.Errorf("failed to read category id: %w", err)
	}
	return c, nil
}

func (r *Repository) UpdateCategory(ctx context.Context, id int64, name, description string) (domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Category{}, fmt.Errorf("%w: name is required", ErrInvalidCategory)
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE categories
		SET name = ?, slug = ?, description = ?, updated_at = ?
		WHERE id = ?`,
		name, slugify(name), description, time.Now().UTC(), id,
	)
	if IsUniqueViolation(err) {
		return domain.Category{}, fmt.Errorf("%w: %s", ErrDuplicateCategory, name)
	}
	if err != nil {
		return domain.Category{}, fmt.Errorf("failed to update category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Category{}, ErrCategoryNotFound
	}
	return r.GetCategory(ctx, id)
}

// DeleteCategory removes the category and detaches its products.
func (r *Repository) DeleteCategory(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `UPDATE products SET category_id = NULL WHERE category_id = ?`, id); err != nil {
		return fmt.Errorf("failed to detach products: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrCategoryNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
