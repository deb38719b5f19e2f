package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/catalog-service/internal/domain/auth"
	"github.com/xenking/catalog-service/internal/domain/product"
	"github.com/xenking/catalog-service/internal/storage/memory"
)

type fixedRate struct {
	rate decimal.Decimal
}

func (f fixedRate) Rate(context.Context, string, string) (decimal.Decimal, error) {
	return f.rate, nil
}

type countingCache struct {
	purges int
}

func (c *countingCache) Purge() { c.purges++ }

type mockAPIKeys struct {
	keys map[string]*auth.APIKeyInfo
}

func (m *mockAPIKeys) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	info, ok := m.keys[hash]
	if !ok {
		return nil, auth.ErrUnauthorized
	}
	return info, nil
}

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestHandler(t *testing.T, cfg HandlerConfig) (*Handler, *countingCache) {
	t.Helper()
	svc, err := product.NewService(product.ServiceConfig{},
		memory.NewProductRepository(),
		fixedRate{rate: decimal.RequireFromString("1.1")},
	)
	require.NoError(t, err)

	cache := &countingCache{}
	h := NewHandler(cfg, svc, cache)
	h.now = func() time.Time { return testTime }
	return h, cache
}

func do(t *testing.T, h http.Handler, method, target, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	d := json.NewDecoder(w.Body)
	d.UseNumber()
	var body map[string]any
	require.NoError(t, d.Decode(&body))
	return body
}

type problemBody struct {
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Status    int               `json:"status"`
	Detail    string            `json:"detail"`
	Instance  string            `json:"instance"`
	Timestamp string            `json:"timestamp"`
	Errors    map[string]string `json:"errors"`
}

func decodeProblem(t *testing.T, w *httptest.ResponseRecorder) problemBody {
	t.Helper()
	assert.Equal(t, ProblemContentType, w.Header().Get("Content-Type"))
	var p problemBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&p))
	return p
}

const laptopJSON = `{"name":"Laptop","description":"High-performance laptop","price":999.99,"category":"Electronics"}`

func createProduct(t *testing.T, h http.Handler, body string) map[string]any {
	t.Helper()
	w := do(t, h, http.MethodPost, "/api/v1/products", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decodeBody(t, w)
}

func TestCreateAndGetProduct(t *testing.T) {
	h, _ := newTestHandler(t, HandlerConfig{})
	r := h.Router()

	w := do(t, r, http.MethodPost, "/api/v1/products",
		`{"name":"Test Product","description":"This is a test product description","price":99.99}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "/api/v1/products/1", w.Header().Get("Location"))
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	created := decodeBody(t, w)
	assert.Equal(t, json.Number("1"), created["id"])
	assert.Equal(t, json.Number("99.99"), created["priceUSD"])
	assert.Equal(t, json.Number("90.90"), created["priceEUR"])
	assert.Equal(t, product.DefaultCategory, created["category"])
	assert.Equal(t, "", created["imageUrl"])
	assert.Equal(t, true, created["available"])
	assert.NotEmpty(t, created["createdAt"])
	assert.Equal(t, created["createdAt"], created["updatedAt"])

	w = do(t, r, http.MethodGet, "/api/v1/products/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decodeBody(t, w)
	assert.Equal(t, created, got)
}

func TestCreateProduct_ValidationErrors(t *testing.T) {
	h, _ := newTestHandler(t, HandlerConfig{})

	w := do(t, h.Router(), http.MethodPost, "/api/v1/products", `{"price":-5}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	p := decodeProblem(t, w)
	assert.Equal(t, ProblemTypeBase+"validation-error", p.Type)
	assert.Equal(t, "Validation Error", p.Title)
	assert.Equal(t, http.StatusBadRequest, p.Status)
	assert.Equal(t, "Validation failed", p.Detail)
	assert.Equal(t, "/api/v1/products", p.Instance)
	assert.Equal(t, testTime.Format(time.RFC3339Nano), p.Timestamp)
	assert.Equal(t, map[string]string{
		"name":        "Product name is required",
		"description": "Product description is required",
		"price":       "Product price must be positive",
	}, p.Errors)
}

func TestCreateProduct_StorageBounds(t *testing.T) {
	h, _ := newTestHandler(t, HandlerConfig{})
	r := h.Router()

	for _, tt := range []struct {
		name  string
		body  string
		field string
	}{
		{"SubCentPrice", `{"name":"Pencil","description":"A very cheap pencil","price":0.001}`, "price"},
		{"HugePrice", `{"name":"Yacht","description":"An expensive yacht","price":1e11}`, "price"},
		{"LongCategory", `{"name":"Chair","description":"A comfortable chair","price":10,"category":"` +
			strings.Repeat("c", 101) + `"}`, "category"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/api/v1/products", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)

			p := decodeProblem(t, w)
			assert.Equal(t, ProblemTypeBase+"validation-error", p.Type)
			assert.Contains(t, p.Errors, tt.field)
		})
	}
}

func TestCreateProduct_DuplicateName(t *testing.T) {
	h, _ := newTestHandler(t, HandlerConfig{})
	r := h.Router()
	createProduct(t, r, laptopJSON)

	w := do(t, r, http.MethodPost, "/api/v1/products",
		`{"name":"LAPTOP","description":"Another laptop entirely","price":10}`)
	require.Equal(t, http.StatusBadRequest, w.Code)

	p := decodeProblem(t, w)
	assert.Equal(t, ProblemTypeBase+"invalid-request", p.Type)
	assert.Equal(t, "product with name 'LAPTOP' already exists", p.Detail)
}

func TestCreateProduct_MalformedBody(t *testing.T) {
	h, _ := newTestHandler(t, HandlerConfig{})

	for _, body := range []string{`{`, `[1,2]`, `{"price":"abc"}`, `{"available":"yes"}`} {
		t.Run(body, func(t *testing.T) {
			w := do(t, h.Router(), http.MethodPost, "/api/v1/products", body)
			require.Equal(t, http.StatusBadRequest, w.Code)

			p := decodeProblem(t, w)
			assert.Equal(t, ProblemTypeBase+"invalid-request", p.Type)
			assert.Equal(t, "Invalid Request", p.Title)
			assert.Equal(t, "Malformed JSON request body", p.Detail)
		})
	}
}

func TestGetProduct_NotFound(t *testing.T) {
	h, _ := newTestHandler(t, HandlerConfig{})

	w := do(t, h.Router(), http.MethodGet, "/api/v1/products/99", "")
	require.Equal(t, http.StatusNotFound, w.Code)

	p := decodeProblem(t, w)
	assert.Equal(t, ProblemTypeBase+"not-found", p.Type)
	assert.Equal(t, "Resource Not Found", p.Title)
	assert.Equal(t, "product not found with ID: 99", p.Detail)
	assert.Equal(t, "/api/v1/products/99", p.Instance)
}

func TestGetProduct_TypeMismatch(t *testing.T) {
	h, _ := newTestHandler(t, HandlerConfig{})

	w := do(t, h.Router(), http.MethodGet, "/api/v1/products/abc", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	p := decodeProblem(t, w)
	assert.Equal(t, ProblemTypeBase+"type-mismatch", p.Type)
	assert.Equal(t, "Type Mismatch", p.Title)
	assert.Equal(t, "Parameter 'id' should be of type 'long'", p.Detail)
}

func TestListProducts(t *testing.T) {
	h, _ := newTestHandler(t, HandlerConfig{})
	r := h.Router()
	createProduct(t, r, laptopJSON)
	createProduct(t, r, `{"name":"Mouse","description":"Wireless optical mouse","price":25.50,"category":"Electronics"}`)
	createProduct(t, r, `{"name":"Desk","description":"Standing desk with motor","price":"450.00","category":"Furniture"}`)

	t.Run("Defaults", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/v1/products", "")
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Len(t, body["content"], 3)
		assert.Equal(t, json.Number("0"), body["page"])
		assert.Equal(t, json.Number("100"), body["size"])
		assert.Equal(t, json.Number("3"), body["totalElements"])
		assert.Equal(t, json.Number("1"), body["totalPages"])
		assert.Equal(t, true, body["first"])
		assert.Equal(t, true, body["last"])
	})
	t.Run("SortedPaged", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/v1/products?page=0&size=2&sort=price&direction=DESC", "")
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)

		content := body["content"].([]any)
		require.Len(t, content, 2)
		assert.Equal(t, "Laptop", content[0].(map[string]any)["name"])
		assert.Equal(t, "Desk", content[1].(map[string]any)["name"])
		assert.Equal(t, json.Number("2"), body["totalPages"])
		assert.Equal(t, true, body["first"])
		assert.Equal(t, false, body["last"])
	})
	t.Run("PageBeyondEnd", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/v1/products?page=5&size=2", "")
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Empty(t, body["content"])
		assert.Equal(t, json.Number("3"), body["totalElements"])
	})
	t.Run("Category", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/v1/products/category/Electronics", "")
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		assert.Equal(t, json.Number("2"), body["totalElements"])
	})
	t.Run("Search", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/v1/products/search?name=MOU", "")
		require.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(t, w)
		content := body["content"].([]any)
		require.Len(t, content, 1)
		assert.Equal(t, "Mouse", content[0].(map[string]any)["name"])
		assert.Equal(t, json.Number("23.18"), content[0].(map[string]any)["priceEUR"])
	})
}

func TestListProducts_BadParameters(t *testing.T) {
	h, _ := newTestHandler(t, HandlerConfig{MaxPageSize: 50})

	for _, tt := range []struct {
		name   string
		target string
		kind   string
		detail string
		field  string
	}{
		{"UnknownSort", "/api/v1/products?sort=password", "constraint-violation", "", "sort"},
		{"BadDirection", "/api/v1/products?direction=up", "constraint-violation", "", "direction"},
		{"NegativePage", "/api/v1/products?page=-1", "constraint-violation", "", "page"},
		{"PageOffsetOverflow", "/api/v1/products?page=9223372036854775807&size=2", "constraint-violation", "", "page"},
		{"ZeroSize", "/api/v1/products?size=0", "constraint-violation", "", "size"},
		{"SizeOverMax", "/api/v1/products?size=51", "constraint-violation", "size: size must not exceed 50", "size"},
		{"PageNotInt", "/api/v1/products?page=one", "type-mismatch", "Parameter 'page' should be of type 'int'", ""},
		{"SizeNotInt", "/api/v1/products/category/Books?size=1.5", "type-mismatch", "Parameter 'size' should be of type 'int'", ""},
	} {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h.Router(), http.MethodGet, tt.target, "")
			require.Equal(t, http.StatusBadRequest, w.Code)

			p := decodeProblem(t, w)
			assert.Equal(t, ProblemTypeBase+tt.kind, p.Type)
			if tt.detail != "" {
				assert.Equal(t, tt.detail, p.Detail)
			}
			if tt.field != "" {
				assert.Contains(t, p.Errors, tt.field)
			}
		})
	}
}

func TestSearchProducts_MissingName(t *testing.T) {
	h, _ := newTestHandler(t, HandlerConfig{})

	w := do(t, h.Router(), http.MethodGet, "/api/v1/products/search", "")
	require.Equal(t, http.StatusBadRequest, w.Code)

	p := decodeProblem(t, w)
	assert.Equal(t, ProblemTypeBase+"invalid-request", p.Type)
	assert.Equal(t, "Required parameter 'name' is not present", p.Detail)
}

func TestUpdateProduct(t *testing.T) {
	h, _ := newTestHandler(t, HandlerConfig{})
	r := h.Router()
	createProduct(t, r, laptopJSON)
	createProduct(t, r, `{"name":"Mouse","description":"Wireless optical mouse","price":25.50}`)

	t.Run("ReplacesFields", func(t *testing.T) {
		w := do(t, r, http.MethodPut, "/api/v1/products/1",
			`{"name":"laptop","description":"Refurbished laptop","price":"500","available":false}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		body := decodeBody(t, w)
		assert.Equal(t, "laptop", body["name"])
		assert.Equal(t, json.Number("500.00"), body["priceUSD"])
		assert.Equal(t, product.DefaultCategory, body["category"])
		assert.Equal(t, false, body["available"])
	})
	t.Run("NameTakenByOther", func(t *testing.T) {
		w := do(t, r, http.MethodPut, "/api/v1/products/1",
			`{"name":"MOUSE","description":"Refurbished laptop","price":500}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, ProblemTypeBase+"invalid-request", decodeProblem(t, w).Type)
	})
	t.Run("NotFound", func(t *testing.T) {
		w := do(t, r, http.MethodPut, "/api/v1/products/42", laptopJSON)
		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "product not found with ID: 42", decodeProblem(t, w).Detail)
	})
	t.Run("Invalid", func(t *testing.T) {
		w := do(t, r, http.MethodPut, "/api/v1/products/1", `{"name":"x","description":"Refurbished laptop","price":1}`)
		require.Equal(t, http.StatusBadRequest, w.Code)
		p := decodeProblem(t, w)
		assert.Equal(t, "Product name must be between 2 and 100 characters", p.Errors["name"])
	})
}

func TestDeleteProduct(t *testing.T) {
	h, _ := newTestHandler(t, HandlerConfig{})
	r := h.Router()
	createProduct(t, r, laptopJSON)

	w := do(t, r, http.MethodDelete, "/api/v1/products/1", "")
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	w = do(t, r, http.MethodGet, "/api/v1/products/1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, r, http.MethodDelete, "/api/v1/products/1", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, ProblemTypeBase+"not-found", decodeProblem(t, w).Type)
}

func TestUnknownRoute(t *testing.T) {
	h, _ := newTestHandler(t, HandlerConfig{})

	for _, target := range []string{"/api/v1/unknown", "/nope", "/api/v1/products/1/extra"} {
		t.Run(target, func(t *testing.T) {
			w := do(t, h.Router(), http.MethodGet, target, "")
			require.Equal(t, http.StatusNotFound, w.Code)
			p := decodeProblem(t, w)
			assert.Equal(t, ProblemTypeBase+"not-found", p.Type)
			assert.Equal(t, "No endpoint GET "+target, p.Detail)
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h, _ := newTestHandler(t, HandlerConfig{})

	w := do(t, h.Router(), http.MethodPatch, "/api/v1/products/1", `{}`)
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)

	p := decodeProblem(t, w)
	assert.Equal(t, ProblemTypeBase+"method-not-allowed", p.Type)
	assert.Equal(t, "Request method 'PATCH' is not supported", p.Detail)
}

func TestPurgeRateCache(t *testing.T) {
	h, cache := newTestHandler(t, HandlerConfig{})

	w := do(t, h.Router(), http.MethodDelete, "/api/v1/exchange/cache", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, cache.purges)
}

func TestSecurity(t *testing.T) {
	pepper := []byte("pepper")
	keys := &mockAPIKeys{keys: map[string]*auth.APIKeyInfo{
		auth.HashKey(pepper, "secret"): {ID: "admin", KeyHash: auth.HashKey(pepper, "secret"), Name: "admin"},
	}}
	h, cache := newTestHandler(t, HandlerConfig{Security: NewSecurityHandler(keys, pepper)})
	r := h.Router()

	t.Run("ReadsArePublic", func(t *testing.T) {
		w := do(t, r, http.MethodGet, "/api/v1/products", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})
	for _, key := range []string{"", "wrong"} {
		t.Run("Rejected/"+key, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/api/v1/products", laptopJSON, APIKeyHeader, key)
			require.Equal(t, http.StatusUnauthorized, w.Code)
			p := decodeProblem(t, w)
			assert.Equal(t, ProblemTypeBase+"unauthorized", p.Type)

			w = do(t, r, http.MethodDelete, "/api/v1/exchange/cache", "", APIKeyHeader, key)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
	t.Run("Accepted", func(t *testing.T) {
		w := do(t, r, http.MethodPost, "/api/v1/products", laptopJSON, APIKeyHeader, "secret")
		assert.Equal(t, http.StatusCreated, w.Code)

		w = do(t, r, http.MethodDelete, "/api/v1/products/1", "", APIKeyHeader, "secret")
		assert.Equal(t, http.StatusNoContent, w.Code)

		w = do(t, r, http.MethodDelete, "/api/v1/exchange/cache", "", APIKeyHeader, "secret")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, 1, cache.purges)
	})
}

type failingService struct {
	ProductService
}

func (failingService) List(context.Context, product.PageRequest) (product.Page[product.View], error) {
	return product.Page[product.View]{}, errors.New("connection reset by peer")
}

func TestInternalError(t *testing.T) {
	h := NewHandler(HandlerConfig{}, failingService{}, nil)

	w := do(t, h.Router(), http.MethodGet, "/api/v1/products", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)

	p := decodeProblem(t, w)
	assert.Equal(t, ProblemTypeBase+"internal-error", p.Type)
	assert.Equal(t, "Internal Server Error", p.Title)
	assert.Equal(t, "An unexpected error occurred", p.Detail)
	assert.NotContains(t, p.Detail, "connection reset")
}

func TestNewHandler_PageSizeBounds(t *testing.T) {
	h := NewHandler(HandlerConfig{DefaultPageSize: 500, MaxPageSize: 200}, nil, nil)
	assert.Equal(t, 200, h.maxSize)
	assert.Equal(t, 200, h.defaultSize)

	h = NewHandler(HandlerConfig{MaxPageSize: 5000}, nil, nil)
	assert.Equal(t, product.MaxPageSize, h.maxSize)
	assert.Equal(t, product.DefaultPageSize, h.defaultSize)
}
