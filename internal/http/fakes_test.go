package http

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/fjod/go_jewelry/internal/auth"
	"github.com/fjod/go_jewelry/internal/cache"
	"github.com/fjod/go_jewelry/internal/catalog"
	"github.com/fjod/go_jewelry/internal/domain"
	"github.com/fjod/go_jewelry/internal/repository"
	"github.com/fjod/go_jewelry/internal/service"
	"go.uber.org/zap"
)

// handlers reach sessions only through the session.Shopper contract
var _ SessionService = (*service.SessionService)(nil)

type fakeCatalog struct {
	m          sync.RWMutex
	products   map[string]domain.Product
	categories map[int64]domain.Category
	nextCat    int64
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		products: map[string]domain.Product{
			"1": {ID: "1", Name: "Solitaire Diamond Ring", Price: 100, CategoryID: 1, Material: "platinum", Stock: 5},
			"2": {ID: "2", Name: "Freshwater Pearl Necklace", Price: 245, CategoryID: 2, Stock: 3},
			"3": {ID: "3", Name: "Gold Hoop Earrings", Price: 180, CategoryID: 3, Material: "gold", Stock: 20},
		},
		categories: map[int64]domain.Category{
			1: {ID: 1, Name: "Rings", Slug: "rings"},
			2: {ID: 2, Name: "Necklaces", Slug: "necklaces"},
			3: {ID: 3, Name: "Earrings", Slug: "earrings"},
		},
		nextCat: 4,
	}
}

func (f *fakeCatalog) ListProducts(_ context.Context, filter catalog.ProductFilter) ([]domain.Product, error) {
	f.m.RLock()
	defer f.m.RUnlock()
	out := []domain.Product{}
	for _, p := range f.products {
		if filter.CategoryID != 0 && p.CategoryID != filter.CategoryID {
			continue
		}
		if filter.Query != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Query)) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeCatalog) GetProduct(_ context.Context, id string) (domain.Product, error) {
	f.m.RLock()
	defer f.m.RUnlock()
	p, ok := f.products[id]
	if !ok {
		return domain.Product{}, catalog.ErrProductNotFound
	}
	return p, nil
}

func (f *fakeCatalog) CreateProduct(_ context.Context, p domain.Product) (domain.Product, error) {
	if err := p.Validate(); err != nil {
		return domain.Product{}, err
	}
	f.m.Lock()
	defer f.m.Unlock()
	if _, ok := f.categories[p.CategoryID]; p.CategoryID != 0 && !ok {
		return domain.Product{}, fmt.Errorf("%w: category %d does not exist", domain.ErrInvalidProduct, p.CategoryID)
	}
	if _, ok := f.products[p.ID]; ok {
		return domain.Product{}, catalog.ErrDuplicateProduct
	}
	f.products[p.ID] = p
	return p, nil
}

func (f *fakeCatalog) ListCategories(context.Context) ([]domain.Category, error) {
	f.m.RLock()
	defer f.m.RUnlock()
	out := make([]domain.Category, 0, len(f.categories))
	for _, c := range f.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (f *fakeCatalog) GetCategory(_ context.Context, id int64) (domain.Category, error) {
	f.m.RLock()
	defer f.m.RUnlock()
	c, ok := f.categories[id]
	if !ok {
		return domain.Category{}, catalog.ErrCategoryNotFound
	}
	return c, nil
}

func (f *fakeCatalog) CreateCategory(_ context.Context, name, description string) (domain.Category, error) {
	if strings.TrimSpace(name) == "" {
		return domain.Category{}, catalog.ErrInvalidCategory
	}
	f.m.Lock()
	defer f.m.Unlock()
	for _, c := range f.categories {
		if strings.EqualFold(c.Name, name) {
			return domain.Category{}, catalog.ErrDuplicateCategory
		}
	}
	c := domain.Category{ID: f.nextCat, Name: name, Slug: strings.ToLower(name), Description: description}
	f.categories[c.ID] = c
	f.nextCat++
	return c, nil
}

func (f *fakeCatalog) UpdateCategory(_ context.Context, id int64, name, description string) (domain.Category, error) {
	f.m.Lock()
	defer f.m.Unlock()
	c, ok := f.categories[id]
	if !ok {
		return domain.Category{}, catalog.ErrCategoryNotFound
	}
	c.Name, c.Slug, c.Description = name, strings.ToLower(name), description
	f.categories[id] = c
	return c, nil
}

func (f *fakeCatalog) DeleteCategory(_ context.Context, id int64) error {
	f.m.Lock()
	defer f.m.Unlock()
	if _, ok := f.categories[id]; !ok {
		return catalog.ErrCategoryNotFound
	}
	delete(f.categories, id)
	return nil
}

type fakeAuth struct {
	m     sync.Mutex
	users map[string]string // email -> password
}

func newFakeAuth() *fakeAuth {
	return &fakeAuth{users: map[string]string{"ada@example.com": "correct-horse"}}
}

func (f *fakeAuth) Register(_ context.Context, name, email, password string, role domain.Role) (domain.User, error) {
	if name == "" || len(password) < 8 {
		return domain.User{}, auth.ErrInvalidInput
	}
	f.m.Lock()
	defer f.m.Unlock()
	if _, ok := f.users[email]; ok {
		return domain.User{}, auth.ErrEmailTaken
	}
	f.users[email] = password
	return domain.User{ID: "u-" + email, Name: name, Email: email, Role: role, Token: "tok-" + email}, nil
}

func (f *fakeAuth) Login(_ context.Context, email, password string) (domain.User, error) {
	f.m.Lock()
	defer f.m.Unlock()
	if pw, ok := f.users[email]; !ok || pw != password {
		return domain.User{}, auth.ErrInvalidCredentials
	}
	return domain.User{ID: "u-" + email, Name: "Ada", Email: email, Role: domain.RoleCustomer, Token: "tok-" + email}, nil
}

type fakeTokens struct{}

func (fakeTokens) ParseToken(token string) (auth.Claims, error) {
	switch token {
	case "admin-token":
		return auth.Claims{UserID: "admin-1", Role: domain.RoleAdmin}, nil
	case "customer-token":
		return auth.Claims{UserID: "cust-1", Role: domain.RoleCustomer}, nil
	default:
		return auth.Claims{}, auth.ErrInvalidToken
	}
}

type testServer struct {
	handler  http.Handler
	sessions *service.SessionService
	catalog  *fakeCatalog
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	svc := service.NewSessionService(repository.NewMemoryRepository(), cache.NopCache{})
	t.Cleanup(svc.Wait)

	cat := newFakeCatalog()
	h := NewRouter(RouterConfig{
		Sessions:    svc,
		Catalog:     cat,
		Auth:        newFakeAuth(),
		Tokens:      fakeTokens{},
		CookieStore: NewCookieStore([]byte("0123456789abcdef0123456789abcdef"), false),
		Logger:      zap.NewNop(),
	})
	return &testServer{handler: h, sessions: svc, catalog: cat}
}
