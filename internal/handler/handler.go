// Package handler exposes the catalog over HTTP.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/xenking/catalog-service/internal/domain/product"
)

// BasePath prefixes every catalog route.
const BasePath = "/api/v1"

// ProductService is the catalog use-case surface consumed by the handlers.
type ProductService interface {
	List(ctx context.Context, req product.PageRequest) (product.Page[product.View], error)
	ListByCategory(ctx context.Context, category string, req product.PageRequest) (product.Page[product.View], error)
	SearchByName(ctx context.Context, name string, req product.PageRequest) (product.Page[product.View], error)
	Get(ctx context.Context, id int64) (product.View, error)
	Create(ctx context.Context, req product.Request) (product.View, error)
	Update(ctx context.Context, id int64, req product.Request) (product.View, error)
	Delete(ctx context.Context, id int64) error
}

// RateCache is the exchange-rate cache exposed for operator invalidation.
type RateCache interface {
	Purge()
}

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// DefaultPageSize is used when a query omits size.
	DefaultPageSize int
	// MaxPageSize caps the size query parameter.
	MaxPageSize int
	// Security guards mutating routes when set.
	Security *SecurityHandler
}

// Handler serves the catalog API.
type Handler struct {
	products ProductService
	rates    RateCache
	security *SecurityHandler

	defaultSize int
	maxSize     int
	now         func() time.Time
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(cfg HandlerConfig, products ProductService, rates RateCache) *Handler {
	if cfg.DefaultPageSize <= 0 {
		cfg.DefaultPageSize = product.DefaultPageSize
	}
	if cfg.MaxPageSize <= 0 || cfg.MaxPageSize > product.MaxPageSize {
		cfg.MaxPageSize = product.MaxPageSize
	}
	cfg.DefaultPageSize = min(cfg.DefaultPageSize, cfg.MaxPageSize)

	return &Handler{
		products:    products,
		rates:       rates,
		security:    cfg.Security,
		defaultSize: cfg.DefaultPageSize,
		maxSize:     cfg.MaxPageSize,
		now:         time.Now,
	}
}

// Mount registers the API routes on r along with problem-detail responses
// for unknown routes and unsupported methods.
func (h *Handler) Mount(r chi.Router) {
	r.NotFound(h.notFound)
	r.MethodNotAllowed(h.methodNotAllowed)

	r.Route(BasePath, func(r chi.Router) {
		r.NotFound(h.notFound)
		r.MethodNotAllowed(h.methodNotAllowed)

		r.Route("/products", func(r chi.Router) {
			r.NotFound(h.notFound)
			r.MethodNotAllowed(h.methodNotAllowed)

			r.Get("/", h.listProducts)
			r.Get("/category/{category}", h.listProductsByCategory)
			r.Get("/search", h.searchProducts)
			r.Get("/{id}", h.getProduct)

			r.Group(func(r chi.Router) {
				h.protect(r)
				r.Post("/", h.createProduct)
				r.Put("/{id}", h.updateProduct)
				r.Delete("/{id}", h.deleteProduct)
			})
		})

		r.Group(func(r chi.Router) {
			h.protect(r)
			r.Delete("/exchange/cache", h.purgeRateCache)
		})
	})
}

// Router returns a standalone router serving the API.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	h.Mount(r)
	return r
}

func (h *Handler) protect(r chi.Router) {
	if h.security != nil {
		r.Use(h.security.Middleware(h))
	}
}

func (h *Handler) purgeRateCache(w http.ResponseWriter, _ *http.Request) {
	if h.rates != nil {
		h.rates.Purge()
	}
	w.WriteHeader(http.StatusNoContent)
}
