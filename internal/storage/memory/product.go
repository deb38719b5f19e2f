// Package memory provides an in-process product repository.
package memory

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/xenking/catalog-service/internal/domain/product"
)

// ProductRepository is an in-memory implementation of product.Repository.
// Records are copied on the way in and out.
type ProductRepository struct {
	mu     sync.RWMutex
	byID   map[int64]product.Product
	byName map[string]int64
	nextID int64
}

var _ product.Repository = (*ProductRepository)(nil)

// NewProductRepository creates an empty repository.
func NewProductRepository() *ProductRepository {
	return &ProductRepository{
		byID:   make(map[int64]product.Product),
		byName: make(map[string]int64),
	}
}

func nameKey(name string) string {
	return strings.ToLower(name)
}

// FindByID implements product.Repository.
func (r *ProductRepository) FindByID(_ context.Context, id int64) (*product.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

// FindAll implements product.Repository.
func (r *ProductRepository) FindAll(_ context.Context, req product.PageRequest) (product.Page[product.Product], error) {
	return r.page(req, func(product.Product) bool { return true }), nil
}

// FindByCategory implements product.Repository.
func (r *ProductRepository) FindByCategory(_ context.Context, category string, req product.PageRequest) (product.Page[product.Product], error) {
	return r.page(req, func(p product.Product) bool { return p.Category == category }), nil
}

// FindByNameContaining implements product.Repository.
func (r *ProductRepository) FindByNameContaining(_ context.Context, substr string, req product.PageRequest) (product.Page[product.Product], error) {
	needle := strings.ToLower(substr)
	return r.page(req, func(p product.Product) bool {
		return strings.Contains(strings.ToLower(p.Name), needle)
	}), nil
}

// FindByExactName implements product.Repository.
func (r *ProductRepository) FindByExactName(_ context.Context, name string) (*product.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byName[nameKey(name)]
	if !ok {
		return nil, product.ErrNotFound
	}
	p := r.byID[id]
	return &p, nil
}

// Save implements product.Repository. The name index is checked and
// updated under the same lock as the record itself.
func (r *ProductRepository) Save(_ context.Context, p *product.Product) (*product.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := nameKey(p.Name)
	if owner, ok := r.byName[key]; ok && owner != p.ID {
		return nil, &product.DuplicateNameError{Name: p.Name}
	}

	saved := *p
	if saved.ID == 0 {
		r.nextID++
		saved.ID = r.nextID
	} else {
		prev, ok := r.byID[saved.ID]
		if !ok {
			return nil, product.ErrNotFound
		}
		delete(r.byName, nameKey(prev.Name))
	}

	r.byID[saved.ID] = saved
	r.byName[key] = saved.ID
	return &saved, nil
}

// DeleteByID implements product.Repository.
func (r *ProductRepository) DeleteByID(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return product.ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byName, nameKey(p.Name))
	return nil
}

// ExistsByID implements product.Repository.
func (r *ProductRepository) ExistsByID(_ context.Context, id int64) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.byID[id]
	return ok, nil
}

// Count implements product.Repository.
func (r *ProductRepository) Count(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.byID)), nil
}

func (r *ProductRepository) page(req product.PageRequest, keep func(product.Product) bool) product.Page[product.Product] {
	r.mu.RLock()
	matched := make([]product.Product, 0, len(r.byID))
	for _, p := range r.byID {
		if keep(p) {
			matched = append(matched, p)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(matched, comparator(req))

	total := int64(len(matched))
	start := req.Offset()
	if start < 0 || start > total {
		// Overflowed offsets land past the end like any other far page.
		start = total
	}
	end := min(start+int64(req.Size), total)
	return product.NewPage(matched[start:end], req, total)
}

// comparator orders by the requested field and breaks ties by ascending id.
func comparator(req product.PageRequest) func(a, b product.Product) int {
	byField := fieldCompare(req.Sort)
	return func(a, b product.Product) int {
		c := byField(a, b)
		if req.Direction == product.Desc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	}
}

func fieldCompare(f product.SortField) func(a, b product.Product) int {
	switch f {
	case product.SortByName:
		return func(a, b product.Product) int { return strings.Compare(a.Name, b.Name) }
	case product.SortByPrice:
		return func(a, b product.Product) int { return a.Price.Cmp(b.Price) }
	case product.SortByCategory:
		return func(a, b product.Product) int { return strings.Compare(a.Category, b.Category) }
	case product.SortByAvailable:
		return func(a, b product.Product) int { return compareBool(a.Available, b.Available) }
	case product.SortByCreatedAt:
		return func(a, b product.Product) int { return a.CreatedAt.Compare(b.CreatedAt) }
	case product.SortByUpdatedAt:
		return func(a, b product.Product) int { return a.UpdatedAt.Compare(b.UpdatedAt) }
	default:
		return func(a, b product.Product) int { return cmp.Compare(a.ID, b.ID) }
	}
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	default:
		return 1
	}
}
