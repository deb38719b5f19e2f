package handler

import (
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/catalog-service/internal/domain/product"
)

const maxBodyBytes = 1 << 20

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	req, ok := h.pageRequest(w, r)
	if !ok {
		return
	}

	page, err := h.products.List(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writePage(w, page)
}

func (h *Handler) listProductsByCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	req, ok := h.pageRequest(w, r)
	if !ok {
		return
	}

	page, err := h.products.ListByCategory(r.Context(), category, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writePage(w, page)
}

func (h *Handler) searchProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if !q.Has("name") {
		h.writeInvalidRequest(w, r, "Required parameter 'name' is not present")
		return
	}
	req, ok := h.pageRequest(w, r)
	if !ok {
		return
	}

	page, err := h.products.SearchByName(r.Context(), q.Get("name"), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writePage(w, page)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	v, err := h.products.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeView(w, http.StatusOK, v)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	req, ok := h.readRequest(w, r)
	if !ok {
		return
	}

	v, err := h.products.Create(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", BasePath+"/products/"+strconv.FormatInt(v.ID, 10))
	writeView(w, http.StatusCreated, v)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}
	req, ok := h.readRequest(w, r)
	if !ok {
		return
	}

	v, err := h.products.Update(r.Context(), id, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeView(w, http.StatusOK, v)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	if err := h.products.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pageRequest parses page, size, sort and direction. On failure the problem
// response has already been written.
func (h *Handler) pageRequest(w http.ResponseWriter, r *http.Request) (product.PageRequest, bool) {
	q := r.URL.Query()

	page := 0
	if s := q.Get("page"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			h.writeTypeMismatch(w, r, "page", "int")
			return product.PageRequest{}, false
		}
		page = v
	}

	size := h.defaultSize
	if s := q.Get("size"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			h.writeTypeMismatch(w, r, "size", "int")
			return product.PageRequest{}, false
		}
		size = v
	}
	if size > h.maxSize {
		h.writeConstraintViolation(w, r, map[string]string{
			"size": "size must not exceed " + strconv.Itoa(h.maxSize),
		})
		return product.PageRequest{}, false
	}

	req, err := product.NewPageRequest(page, size, q.Get("sort"), q.Get("direction"))
	if err != nil {
		var verr *product.ValidationError
		if errors.As(err, &verr) {
			h.writeConstraintViolation(w, r, verr.Fields)
		} else {
			h.writeError(w, r, err)
		}
		return product.PageRequest{}, false
	}
	return req, true
}

func (h *Handler) productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.writeTypeMismatch(w, r, "id", "long")
		return 0, false
	}
	return id, true
}

func (h *Handler) readRequest(w http.ResponseWriter, r *http.Request) (product.Request, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeInvalidRequest(w, r, "Request body could not be read")
		return product.Request{}, false
	}

	req, err := decodeRequest(body)
	if err != nil {
		zctx.From(r.Context()).Debug("Malformed request body", zap.Error(err))
		h.writeInvalidRequest(w, r, "Malformed JSON request body")
		return product.Request{}, false
	}
	return req, true
}

func writeView(w http.ResponseWriter, status int, v product.View) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encodeView(e, v)
	writeJSON(w, status, e.Bytes())
}

func writePage(w http.ResponseWriter, p product.Page[product.View]) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encodePage(e, p)
	writeJSON(w, http.StatusOK, e.Bytes())
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
