package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
)

// EventKind identifies a catalog mutation.
type EventKind string

// Catalog mutation kinds.
const (
	EventCreated EventKind = "created"
	EventUpdated EventKind = "updated"
	EventDeleted EventKind = "deleted"
)

// Event describes a committed catalog mutation. For deletions only
// Product.ID is populated.
type Event struct {
	Kind    EventKind
	Product Product
}

// Notifier is informed of committed mutations. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// ServiceConfig holds optional collaborators for the Service.
type ServiceConfig struct {
	Notifier       Notifier
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// Service encapsulates catalog business rules: name uniqueness, request
// defaults, timestamps and price enrichment.
type Service struct {
	products Repository
	rates    RateSource
	notifier Notifier
	now      func() time.Time

	tracer     trace.Tracer
	operations metric.Int64Counter
}

// NewService creates a Service over the given repository and rate source.
func NewService(cfg ServiceConfig, products Repository, rates RateSource) (*Service, error) {
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = metricnoop.NewMeterProvider()
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = tracenoop.NewTracerProvider()
	}

	operations, err := cfg.MeterProvider.Meter("catalog/product").Int64Counter(
		"catalog.product.operations",
		metric.WithDescription("Number of product operations by result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create operations counter")
	}

	return &Service{
		products:   products,
		rates:      rates,
		notifier:   cfg.Notifier,
		now:        time.Now,
		tracer:     cfg.TracerProvider.Tracer("catalog/product"),
		operations: operations,
	}, nil
}

// List returns a page of all products.
func (s *Service) List(ctx context.Context, req PageRequest) (_ Page[View], err error) {
	ctx, done := s.observe(ctx, "list")
	defer func() { done(err) }()

	page, err := s.products.FindAll(ctx, req)
	if err != nil {
		return Page[View]{}, errors.Wrap(err, "find products")
	}
	return s.enrichPage(ctx, page)
}

// ListByCategory returns a page of products in exactly the given category.
func (s *Service) ListByCategory(ctx context.Context, category string, req PageRequest) (_ Page[View], err error) {
	ctx, done := s.observe(ctx, "list_by_category")
	defer func() { done(err) }()

	page, err := s.products.FindByCategory(ctx, category, req)
	if err != nil {
		return Page[View]{}, errors.Wrapf(err, "find products by category %q", category)
	}
	return s.enrichPage(ctx, page)
}

// SearchByName returns a page of products whose name contains the given
// substring, ignoring case.
func (s *Service) SearchByName(ctx context.Context, name string, req PageRequest) (_ Page[View], err error) {
	ctx, done := s.observe(ctx, "search")
	defer func() { done(err) }()

	page, err := s.products.FindByNameContaining(ctx, name, req)
	if err != nil {
		return Page[View]{}, errors.Wrapf(err, "search products by name %q", name)
	}
	return s.enrichPage(ctx, page)
}

// Get returns a single product by ID.
func (s *Service) Get(ctx context.Context, id int64) (_ View, err error) {
	ctx, done := s.observe(ctx, "get")
	defer func() { done(err) }()

	p, err := s.find(ctx, id)
	if err != nil {
		return View{}, err
	}
	return s.enrich(ctx, *p)
}

// Create validates req, rejects duplicate names and persists a new product.
func (s *Service) Create(ctx context.Context, req Request) (_ View, err error) {
	ctx, done := s.observe(ctx, "create")
	defer func() { done(err) }()

	if err := req.Validate(); err != nil {
		return View{}, err
	}

	existing, err := s.products.FindByExactName(ctx, req.Name)
	switch {
	case err == nil:
		zctx.From(ctx).Warn("Product name already exists",
			zap.String("name", req.Name),
			zap.Int64("existing_id", existing.ID),
		)
		return View{}, &DuplicateNameError{Name: req.Name}
	case !errors.Is(err, ErrNotFound):
		return View{}, errors.Wrap(err, "check name")
	}

	now := s.timestamp()
	p := &Product{CreatedAt: now, UpdatedAt: now}
	req.applyTo(p)

	saved, err := s.products.Save(ctx, p)
	if err != nil {
		if errors.Is(err, ErrDuplicateName) {
			return View{}, &DuplicateNameError{Name: req.Name}
		}
		return View{}, errors.Wrap(err, "save product")
	}

	zctx.From(ctx).Info("Created product", zap.Int64("id", saved.ID))
	s.notify(ctx, Event{Kind: EventCreated, Product: *saved})

	return s.enrich(ctx, *saved)
}

// Update replaces every mutable field of the product with the given ID.
// Keeping the product's own name is allowed; taking another product's name
// is not.
func (s *Service) Update(ctx context.Context, id int64, req Request) (_ View, err error) {
	ctx, done := s.observe(ctx, "update")
	defer func() { done(err) }()

	if err := req.Validate(); err != nil {
		return View{}, err
	}

	p, err := s.find(ctx, id)
	if err != nil {
		return View{}, err
	}

	existing, err := s.products.FindByExactName(ctx, req.Name)
	switch {
	case err == nil && existing.ID != id:
		zctx.From(ctx).Warn("Another product already has this name",
			zap.String("name", req.Name),
			zap.Int64("existing_id", existing.ID),
		)
		return View{}, &DuplicateNameError{Name: req.Name}
	case err != nil && !errors.Is(err, ErrNotFound):
		return View{}, errors.Wrap(err, "check name")
	}

	req.applyTo(p)
	p.UpdatedAt = s.timestamp()

	saved, err := s.products.Save(ctx, p)
	if err != nil {
		switch {
		case errors.Is(err, ErrDuplicateName):
			return View{}, &DuplicateNameError{Name: req.Name}
		case errors.Is(err, ErrNotFound):
			return View{}, &NotFoundError{ID: id}
		}
		return View{}, errors.Wrapf(err, "save product %d", id)
	}

	zctx.From(ctx).Info("Updated product", zap.Int64("id", saved.ID))
	s.notify(ctx, Event{Kind: EventUpdated, Product: *saved})

	return s.enrich(ctx, *saved)
}

// Delete removes the product with the given ID.
func (s *Service) Delete(ctx context.Context, id int64) (err error) {
	ctx, done := s.observe(ctx, "delete")
	defer func() { done(err) }()

	exists, err := s.products.ExistsByID(ctx, id)
	if err != nil {
		return errors.Wrapf(err, "check product %d", id)
	}
	if !exists {
		return &NotFoundError{ID: id}
	}

	if err := s.products.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return &NotFoundError{ID: id}
		}
		return errors.Wrapf(err, "delete product %d", id)
	}

	zctx.From(ctx).Info("Deleted product", zap.Int64("id", id))
	s.notify(ctx, Event{Kind: EventDeleted, Product: Product{ID: id}})

	return nil
}

func (s *Service) find(ctx context.Context, id int64) (*Product, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &NotFoundError{ID: id}
		}
		return nil, errors.Wrapf(err, "find product %d", id)
	}
	return p, nil
}

func (s *Service) rate(ctx context.Context) (decimal.Decimal, error) {
	rate, err := s.rates.Rate(ctx, BaseCurrency, DisplayCurrency)
	if err != nil {
		return decimal.Decimal{}, errors.Wrap(err, "exchange rate")
	}
	return rate, nil
}

func (s *Service) enrich(ctx context.Context, p Product) (View, error) {
	rate, err := s.rate(ctx)
	if err != nil {
		return View{}, err
	}
	return NewView(p, rate), nil
}

// enrichPage resolves the rate once and converts every element with it.
func (s *Service) enrichPage(ctx context.Context, page Page[Product]) (Page[View], error) {
	rate, err := s.rate(ctx)
	if err != nil {
		return Page[View]{}, err
	}
	return MapPage(page, func(p Product) View {
		return NewView(p, rate)
	}), nil
}

func (s *Service) notify(ctx context.Context, e Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, e); err != nil {
		zctx.From(ctx).Warn("Product notification failed",
			zap.String("kind", string(e.Kind)),
			zap.Int64("id", e.Product.ID),
			zap.Error(err),
		)
	}
}

// timestamp returns the current time truncated to the precision kept by
// the database so stored and returned values compare equal.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// observe starts a span for op and returns a func recording its outcome.
func (s *Service) observe(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := s.tracer.Start(ctx, "product.Service."+op)
	return ctx, func(err error) {
		result := "success"
		if err != nil {
			result = resultOf(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, result)
		}
		s.operations.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", op),
			attribute.String("result", result),
		))
		span.End()
	}
}

func resultOf(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicateName):
		return "duplicate"
	case errors.Is(err, ErrValidation):
		return "invalid"
	default:
		return "failure"
	}
}
