package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/fjod/go_jewelry/internal/catalog"
	"github.com/fjod/go_jewelry/internal/domain"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type Catalog interface {
	ListProducts(ctx context.Context, f catalog.ProductFilter) ([]domain.Product, error)
	GetProduct(ctx context.Context, id string) (domain.Product, error)
	CreateProduct(ctx context.Context, p domain.Product) (domain.Product, error)
	ListCategories(ctx context.Context) ([]domain.Category, error)
	GetCategory(ctx context.Context, id int64) (domain.Category, error)
	CreateCategory(ctx context.Context, name, description string) (domain.Category, error)
	UpdateCategory(ctx context.Context, id int64, name, description string) (domain.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
}

type CatalogHandler struct {
	catalog Catalog
	log     *zap.Logger
}

func NewCatalogHandler(c Catalog, log *zap.Logger) *CatalogHandler {
	return &CatalogHandler{catalog: c, log: log}
}

type ProductsResponse struct {
	Products []domain.Product `json:"products"`
}

type CategoryRequestDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// GET /api/products?category_id=&q=
func (h *CatalogHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	var f catalog.ProductFilter
	if raw := r.URL.Query().Get("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			respondError(w, http.StatusBadRequest, "invalid_category_id", "category_id must be a positive integer")
			return
		}
		f.CategoryID = id
	}
	f.Query = r.URL.Query().Get("q")

	products, err := h.catalog.ListProducts(r.Context(), f)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, ProductsResponse{Products: products})
}

// GET /api/products/{id}
func (h *CatalogHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.catalog.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

// POST /api/products
func (h *CatalogHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var p domain.Product
	if !decodeJSON(w, r, &p) {
		return
	}

	created, err := h.catalog.CreateProduct(r.Context(), p)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// GET /api/categories
func (h *CatalogHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, categories)
}

// GET /api/categories/{id}
func (h *CatalogHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := categoryID(w, r)
	if !ok {
		return
	}
	c, err := h.catalog.GetCategory(r.Context(), id)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// POST /api/categories
func (h *CatalogHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.catalog.CreateCategory(r.Context(), req.Name, req.Description)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, c)
}

// PUT /api/categories/{id}
func (h *CatalogHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := categoryID(w, r)
	if !ok {
		return
	}
	var req CategoryRequestDTO
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.catalog.UpdateCategory(r.Context(), id, req.Name, req.Description)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, c)
}

// DELETE /api/categories/{id}
func (h *CatalogHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := categoryID(w, r)
	if !ok {
		return
	}
	if err := h.catalog.DeleteCategory(r.Context(), id); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func categoryID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_category_id", "id must be a positive integer")
		return 0, false
	}
	return id, true
}
