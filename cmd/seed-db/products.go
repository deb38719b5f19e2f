package main

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"

	"github.com/xenking/catalog-service/internal/domain/product"
)

//go:embed products.json
var sampleProducts []byte

// loadProducts reads product requests from path, gunzipping files ending in
// .gz. An empty path selects the built-in sample catalog.
func loadProducts(path string) ([]product.Request, error) {
	if path == "" {
		return decodeProducts(bytes.NewReader(sampleProducts))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open products file")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}
	return decodeProducts(r)
}

func decodeProducts(r io.Reader) ([]product.Request, error) {
	var reqs []product.Request
	if err := json.NewDecoder(r).Decode(&reqs); err != nil {
		return nil, errors.Wrap(err, "parse products JSON")
	}
	return reqs, nil
}
