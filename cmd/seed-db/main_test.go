package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	pgzip "github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/catalog-service/internal/domain/auth"
	"github.com/xenking/catalog-service/internal/domain/product"
	"github.com/xenking/catalog-service/internal/storage/memory"
)

func TestLoadProducts_Samples(t *testing.T) {
	reqs, err := loadProducts("")
	require.NoError(t, err)
	require.Len(t, reqs, 10)

	for _, req := range reqs {
		require.NoError(t, req.Validate(), req.Name)
	}
	assert.Equal(t, "Smartphone X", reqs[0].Name)
	assert.Equal(t, "999.99", reqs[0].Price.String())
}

func TestLoadProducts_Gzip(t *testing.T) {
	var buf bytes.Buffer
	gz := pgzip.NewWriter(&buf)
	_, err := gz.Write([]byte(`[{"name":"Desk","description":"Standing desk with motor","price":"450.00"}]`))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	path := filepath.Join(t.TempDir(), "products.json.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	reqs, err := loadProducts(path)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "Desk", reqs[0].Name)
	assert.Nil(t, reqs[0].Category)
}

func TestLoadProducts_Errors(t *testing.T) {
	_, err := loadProducts(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not":"a list"}`), 0o600))
	_, err = loadProducts(path)
	require.Error(t, err)
}

func TestSeedProducts(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewProductRepository()
	reqs, err := loadProducts("")
	require.NoError(t, err)

	require.NoError(t, seedProducts(ctx, repo, reqs))
	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), count)

	// A second run leaves the populated catalog alone.
	require.NoError(t, seedProducts(ctx, repo, reqs))
	count, err = repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), count)

	p, err := repo.FindByExactName(ctx, "gaming console")
	require.NoError(t, err)
	assert.Equal(t, "Gaming", p.Category)
	assert.True(t, p.Available)
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)
}

func TestSeedProducts_InvalidEntry(t *testing.T) {
	err := seedProducts(context.Background(), memory.NewProductRepository(), []product.Request{{Name: "x"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, product.ErrValidation)
}

type recordingKeys struct {
	got []auth.APIKeyInfo
}

func (r *recordingKeys) Upsert(_ context.Context, info auth.APIKeyInfo) error {
	r.got = append(r.got, info)
	return nil
}

func TestSeedAPIKey(t *testing.T) {
	store := &recordingKeys{}
	require.NoError(t, seedAPIKey(context.Background(), store, "secret", "pepper"))

	require.Len(t, store.got, 1)
	assert.Equal(t, "default", store.got[0].ID)
	assert.Equal(t, auth.HashKey([]byte("pepper"), "secret"), store.got[0].KeyHash)
}
