package product

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DefaultCategory is assigned to products created without a category.
const DefaultCategory = "Uncategorized"

var (
	// ErrNotFound is returned when a requested product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrDuplicateName is returned when another product already holds the
	// requested name (compared case-insensitively).
	ErrDuplicateName = errors.New("product name already exists")
	// ErrValidation is returned when a request or page query is malformed.
	ErrValidation = errors.New("validation failed")
)

// Product represents a catalog item. Price is expressed in USD.
type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	Category    string
	ImageURL    string
	Available   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Repository defines persistence operations for the product catalog.
//
// Implementations must enforce case-insensitive name uniqueness themselves
// and report violations from Save as ErrDuplicateName, so that concurrent
// writers cannot both pass the service-level pre-check and commit.
type Repository interface {
	FindByID(ctx context.Context, id int64) (*Product, error)
	FindAll(ctx context.Context, req PageRequest) (Page[Product], error)
	FindByCategory(ctx context.Context, category string, req PageRequest) (Page[Product], error)
	FindByNameContaining(ctx context.Context, substr string, req PageRequest) (Page[Product], error)
	// FindByExactName returns ErrNotFound when no product has the name.
	FindByExactName(ctx context.Context, name string) (*Product, error)
	// Save inserts p when p.ID is zero and updates it otherwise. The stored
	// record is returned with its assigned ID.
	Save(ctx context.Context, p *Product) (*Product, error)
	DeleteByID(ctx context.Context, id int64) error
	ExistsByID(ctx context.Context, id int64) (bool, error)
	Count(ctx context.Context) (int64, error)
}

// DuplicateNameError indicates that a product with the same name exists.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return "product with name '" + e.Name + "' already exists"
}

// Is reports ErrDuplicateName so callers may match either form.
func (e *DuplicateNameError) Is(target error) bool {
	return target == ErrDuplicateName
}

// ValidationError carries per-field validation messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	return "validation failed"
}

// Is reports ErrValidation so callers may match either form.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NotFoundError wraps ErrNotFound with the missing identifier.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return "product not found with ID: " + strconv.FormatInt(e.ID, 10)
}

// Is reports ErrNotFound so callers may match either form.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}
