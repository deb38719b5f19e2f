package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/catalog-service/internal/domain/auth"
	"github.com/xenking/catalog-service/internal/domain/product"
	"github.com/xenking/catalog-service/internal/storage/postgres"
)

const seedConcurrency = 4

// unitRate satisfies product.RateSource without calling the exchange API.
type unitRate struct{}

func (unitRate) Rate(context.Context, string, string) (decimal.Decimal, error) {
	return decimal.NewFromInt(1), nil
}

// apiKeyStore is the subset of the API key repository used for seeding.
type apiKeyStore interface {
	Upsert(ctx context.Context, info auth.APIKeyInfo) error
}

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "", "path to a products JSON file, optionally .gz (default: built-in samples)")
	flag.StringVar(&apiKey, "api-key", "", "API key to seed (or CATALOG_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or CATALOG_AUTH_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("CATALOG_SEED_API_KEY")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("CATALOG_AUTH_PEPPER")
	}
	if apiKey != "" && apiKeyPepper == "" {
		slog.Error("API key pepper is required when seeding an API key")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	reqs, err := loadProducts(productsFile)
	if err != nil {
		return errors.Wrap(err, "load products")
	}

	if err := seedProducts(ctx, postgres.NewProductRepository(pool), reqs); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if apiKey != "" {
		if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
			return errors.Wrap(err, "seed api key")
		}
	}

	return nil
}

// seedProducts creates reqs through the product service so the usual
// validation and uniqueness rules apply. A catalog that already holds any
// product is left untouched.
func seedProducts(ctx context.Context, repo product.Repository, reqs []product.Request) error {
	count, err := repo.Count(ctx)
	if err != nil {
		return errors.Wrap(err, "count products")
	}
	if count > 0 {
		slog.Info("product catalog already contains data, skipping", slog.Int64("count", count))
		return nil
	}

	svc, err := product.NewService(product.ServiceConfig{}, repo, unitRate{})
	if err != nil {
		return errors.Wrap(err, "create product service")
	}

	slog.Info("creating products", slog.Int("count", len(reqs)))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(seedConcurrency)
	for _, req := range reqs {
		g.Go(func() error {
			v, err := svc.Create(ctx, req)
			if err != nil {
				return errors.Wrapf(err, "create product %q", req.Name)
			}
			slog.Info("created product", slog.Int64("id", v.ID), slog.String("name", v.Name))
			return nil
		})
	}
	return g.Wait()
}

func seedAPIKey(ctx context.Context, store apiKeyStore, apiKey, pepper string) error {
	slog.Info("seeding default API key")

	info := auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.HashKey([]byte(pepper), apiKey),
		Name:    "Default catalog admin key",
		Scopes:  []string{"catalog:write"},
	}
	if err := store.Upsert(ctx, info); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", info.ID), slog.String("name", info.Name))

	return nil
}
