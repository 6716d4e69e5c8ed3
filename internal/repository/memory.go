package repository

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/productcatalog/internal/domain"
)

// MemoryProductRepository keeps products in process memory. Listing order is
// insertion order.
type MemoryProductRepository struct {
	mu     sync.RWMutex
	order  []string
	byID   map[string]domain.Product
	bySlug map[string]string
}

func NewMemoryProductRepository() *MemoryProductRepository {
	return &MemoryProductRepository{
		byID:   make(map[string]domain.Product),
		bySlug: make(map[string]string),
	}
}

func (m *MemoryProductRepository) Find(_ context.Context, filter domain.ProductFilter, sort *domain.SortDirective) ([]*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*domain.Product{}
	if filter.MatchesNothing() {
		return out, nil
	}
	for _, id := range m.order {
		p := m.byID[id]
		if filter.Match(&p) {
			out = append(out, &p)
		}
	}

	if sort != nil && sort.Field == domain.SortByPrice {
		slices.SortStableFunc(out, func(a, b *domain.Product) int {
			if sort.Descending {
				return cmp.Compare(b.Price, a.Price)
			}
			return cmp.Compare(a.Price, b.Price)
		})
	}
	return out, nil
}

func (m *MemoryProductRepository) FindByID(_ context.Context, id string) (*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, domain.NotFound("Product with id %q not found", id)
	}
	return &p, nil
}

func (m *MemoryProductRepository) FindBySlug(_ context.Context, slug string) (*domain.Product, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.bySlug[slug]
	if !ok {
		return nil, domain.NotFound("Product with slug %q not found", slug)
	}
	p := m.byID[id]
	return &p, nil
}

func (m *MemoryProductRepository) Insert(_ context.Context, p *domain.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.bySlug[p.Slug]; taken {
		return domain.Conflict("Product with slug %q already exists", p.Slug)
	}

	ts := now()
	p.ID = uuid.NewString()
	p.CreatedAt = ts
	p.UpdatedAt = ts

	m.byID[p.ID] = *p
	m.bySlug[p.Slug] = p.ID
	m.order = append(m.order, p.ID)
	return nil
}

func (m *MemoryProductRepository) UpdateByID(_ context.Context, id string, patch domain.ProductPatch) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, domain.NotFound("Product with id %q not found", id)
	}
	if patch.Slug != nil && *patch.Slug != p.Slug {
		if _, taken := m.bySlug[*patch.Slug]; taken {
			return nil, domain.Conflict("Product with slug %q already exists", *patch.Slug)
		}
	}

	oldSlug := p.Slug
	patch.Apply(&p)
	p.UpdatedAt = now()
	m.byID[id] = p
	if p.Slug != oldSlug {
		delete(m.bySlug, oldSlug)
		m.bySlug[p.Slug] = id
	}
	return &p, nil
}

func (m *MemoryProductRepository) DeleteByID(_ context.Context, id string) (*domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, domain.NotFound("Product with id %q not found", id)
	}
	delete(m.byID, id)
	delete(m.bySlug, p.Slug)
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == id })
	return &p, nil
}

func (m *MemoryProductRepository) Categories(_ context.Context) ([]domain.Category, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	present := map[domain.Category]bool{}
	for _, p := range m.byID {
		present[p.Category] = true
	}
	return orderCategories(present), nil
}

func (m *MemoryProductRepository) Count(_ context.Context) (int, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	available := 0
	for _, p := range m.byID {
		if p.Availability {
			available++
		}
	}
	return len(m.byID), available, nil
}

// MemoryUserRepository keeps users in process memory
type MemoryUserRepository struct {
	mu      sync.RWMutex
	order   []string
	byID    map[string]domain.User
	byEmail map[string]string
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:    make(map[string]domain.User),
		byEmail: make(map[string]string),
	}
}

func (m *MemoryUserRepository) Insert(_ context.Context, u *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byEmail[u.Email]; taken {
		return domain.Conflict("User with this email already exists")
	}

	ts := now()
	u.ID = uuid.NewString()
	u.CreatedAt = ts
	u.UpdatedAt = ts

	m.byID[u.ID] = *u
	m.byEmail[u.Email] = u.ID
	m.order = append(m.order, u.ID)
	return nil
}

func (m *MemoryUserRepository) FindByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, domain.NotFound("User with id %q not found", id)
	}
	return &u, nil
}

func (m *MemoryUserRepository) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byEmail[email]
	if !ok {
		return nil, domain.NotFound("User with email %q not found", email)
	}
	u := m.byID[id]
	return &u, nil
}

func (m *MemoryUserRepository) List(_ context.Context) ([]*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*domain.User, 0, len(m.order))
	for _, id := range m.order {
		u := m.byID[id]
		out = append(out, &u)
	}
	return out, nil
}

func (m *MemoryUserRepository) UpdateByID(_ context.Context, id string, patch domain.UserPatch) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, domain.NotFound("User with id %q not found", id)
	}
	if patch.Email != nil && *patch.Email != u.Email {
		if _, taken := m.byEmail[*patch.Email]; taken {
			return nil, domain.Conflict("User with this email already exists")
		}
	}

	oldEmail := u.Email
	patch.Apply(&u)
	u.UpdatedAt = now()
	m.byID[id] = u
	if u.Email != oldEmail {
		delete(m.byEmail, oldEmail)
		m.byEmail[u.Email] = id
	}
	return &u, nil
}

func (m *MemoryUserRepository) DeleteByID(_ context.Context, id string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.byID[id]
	if !ok {
		return nil, domain.NotFound("User with id %q not found", id)
	}
	delete(m.byID, id)
	delete(m.byEmail, u.Email)
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == id })
	return &u, nil
}

func (m *MemoryUserRepository) CountActive(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, u := range m.byID {
		if u.IsActive {
			n++
		}
	}
	return n, nil
}

var (
	_ domain.ProductRepository = (*MemoryProductRepository)(nil)
	_ domain.UserRepository    = (*MemoryUserRepository)(nil)
)
