package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fjod/go_jewelry/internal/domain"
	"gopkg.in/yaml.v3"
)

// Fixture is the YAML catalog file accepted by `shopctl seed`.
type Fixture struct {
	Categories []CategoryFixture `yaml:"categories"`
	Products   []ProductFixture  `yaml:"products"`
}

type CategoryFixture struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

type ProductFixture struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Description string  `yaml:"description"`
	Price       float64 `yaml:"price"`
	ImageURL    string  `yaml:"image_url"`
	Category    string  `yaml:"category"`
	Material    string  `yaml:"material"`
	Stock       int     `yaml:"stock"`
}

type SeedResult struct {
	CategoriesCreated int
	ProductsCreated   int
	Skipped           int
}

func LoadFixture(r io.Reader) (Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return Fixture{}, fmt.Errorf("decode catalog fixture: %w", err)
	}
	return f, nil
}

// Seed inserts the fixture. Existing categories and products are skipped,
// so seeding twice is harmless. Products name their category by name.
func (r *Repository) Seed(ctx context.Context, f Fixture) (SeedResult, error) {
	var res SeedResult

	for _, c := range f.Categories {
		_, err := r.CreateCategory(ctx, c.Name, c.Description)
		switch {
		case errors.Is(err, ErrDuplicateCategory):
			res.Skipped++
		case err != nil:
			return res, err
		default:
			res.CategoriesCreated++
		}
	}

	existing, err := r.ListCategories(ctx)
	if err != nil {
		return res, err
	}
	byName := make(map[string]int64, len(existing))
	for _, c := range existing {
		byName[c.Name] = c.ID
	}

	for _, pf := range f.Products {
		p := domain.Product{
			ID:          pf.ID,
			Name:        pf.Name,
			Description: pf.Description,
			Price:       pf.Price,
			ImageURL:    pf.ImageURL,
			Material:    pf.Material,
			Stock:       pf.Stock,
		}
		if pf.Category != "" {
			id, ok := byName[pf.Category]
			if !ok {
				return res, fmt.Errorf("product %s: %w: %s", pf.ID, ErrCategoryNotFound, pf.Category)
			}
			p.CategoryID = id
		}

		_, err := r.CreateProduct(ctx, p)
		switch {
		case errors.Is(err, ErrDuplicateProduct):
			res.Skipped++
		case err != nil:
			return res, fmt.Errorf("product %s: %w", pf.ID, err)
		default:
			res.ProductsCreated++
		}
	}
	return res, nil
}
