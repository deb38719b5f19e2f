package handler

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/catalog-service/internal/domain/auth"
	"github.com/xenking/catalog-service/internal/domain/product"
	"github.com/xenking/catalog-service/internal/exchange"
)

// ProblemTypeBase prefixes the type URI of every problem response.
const ProblemTypeBase = "https://api.product-catalog.com/problems/"

// ProblemContentType is the media type of error responses.
const ProblemContentType = "application/problem+json"

// Problem is an RFC 9457 problem detail.
type Problem struct {
	Type      string
	Title     string
	Status    int
	Detail    string
	Instance  string
	Timestamp time.Time
	Errors    map[string]string
}

func newProblem(status int, kind, title, detail string) Problem {
	return Problem{
		Type:   ProblemTypeBase + kind,
		Title:  title,
		Status: status,
		Detail: detail,
	}
}

// Encode writes the problem as a JSON object. Errors are emitted with keys
// in sorted order.
func (p Problem) Encode(e *jx.Encoder) {
	e.ObjStart()
	e.FieldStart("type")
	e.Str(p.Type)
	e.FieldStart("title")
	e.Str(p.Title)
	e.FieldStart("status")
	e.Int(p.Status)
	e.FieldStart("detail")
	e.Str(p.Detail)
	e.FieldStart("instance")
	e.Str(p.Instance)
	e.FieldStart("timestamp")
	e.Str(p.Timestamp.UTC().Format(time.RFC3339Nano))
	if len(p.Errors) > 0 {
		keys := make([]string, 0, len(p.Errors))
		for k := range p.Errors {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		e.FieldStart("errors")
		e.ObjStart()
		for _, k := range keys {
			e.FieldStart(k)
			e.Str(p.Errors[k])
		}
		e.ObjEnd()
	}
	e.ObjEnd()
}

// WriteProblem completes p with the request path and time and writes it.
func (h *Handler) WriteProblem(w http.ResponseWriter, r *http.Request, p Problem) {
	p.Instance = r.URL.Path
	p.Timestamp = h.now()

	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	p.Encode(e)

	w.Header().Set("Content-Type", ProblemContentType)
	w.WriteHeader(p.Status)
	_, _ = w.Write(e.Bytes())
}

// writeError maps a domain error to its problem response. Unrecognized
// errors are logged and reported without detail.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	lg := zctx.From(r.Context())

	var (
		verr *product.ValidationError
		dup  *product.DuplicateNameError
	)
	switch {
	case errors.As(err, &verr):
		lg.Warn("Validation error", zap.Any("errors", verr.Fields))
		p := newProblem(http.StatusBadRequest, "validation-error", "Validation Error", "Validation failed")
		p.Errors = verr.Fields
		h.WriteProblem(w, r, p)
	case errors.As(err, &dup):
		lg.Warn("Invalid request", zap.Error(err))
		h.WriteProblem(w, r, newProblem(http.StatusBadRequest, "invalid-request", "Invalid Request", dup.Error()))
	case errors.Is(err, product.ErrNotFound):
		lg.Warn("Resource not found", zap.Error(err))
		h.WriteProblem(w, r, newProblem(http.StatusNotFound, "not-found", "Resource Not Found", notFoundDetail(err)))
	case errors.Is(err, exchange.ErrInvalidCurrency):
		lg.Warn("Invalid request", zap.Error(err))
		h.WriteProblem(w, r, newProblem(http.StatusBadRequest, "invalid-request", "Invalid Request", err.Error()))
	case errors.Is(err, auth.ErrUnauthorized):
		h.WriteProblem(w, r, newProblem(http.StatusUnauthorized, "unauthorized", "Unauthorized", "A valid API key is required"))
	default:
		lg.Error("Unhandled error", zap.Error(err))
		h.WriteProblem(w, r, newProblem(http.StatusInternalServerError, "internal-error",
			"Internal Server Error", "An unexpected error occurred"))
	}
}

func notFoundDetail(err error) string {
	var nf *product.NotFoundError
	if errors.As(err, &nf) {
		return nf.Error()
	}
	return "Resource not found"
}

func (h *Handler) writeTypeMismatch(w http.ResponseWriter, r *http.Request, param, typ string) {
	detail := "Parameter '" + param + "' should be of type '" + typ + "'"
	zctx.From(r.Context()).Warn("Type mismatch", zap.String("detail", detail))
	h.WriteProblem(w, r, newProblem(http.StatusBadRequest, "type-mismatch", "Type Mismatch", detail))
}

func (h *Handler) writeConstraintViolation(w http.ResponseWriter, r *http.Request, fields map[string]string) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + fields[k]
	}
	detail := strings.Join(parts, ", ")

	zctx.From(r.Context()).Warn("Constraint violation", zap.String("detail", detail))
	p := newProblem(http.StatusBadRequest, "constraint-violation", "Constraint Violation", detail)
	p.Errors = fields
	h.WriteProblem(w, r, p)
}

func (h *Handler) writeInvalidRequest(w http.ResponseWriter, r *http.Request, detail string) {
	zctx.From(r.Context()).Warn("Invalid request", zap.String("detail", detail))
	h.WriteProblem(w, r, newProblem(http.StatusBadRequest, "invalid-request", "Invalid Request", detail))
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	h.WriteProblem(w, r, newProblem(http.StatusNotFound, "not-found", "Resource Not Found",
		"No endpoint "+r.Method+" "+r.URL.Path))
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.WriteProblem(w, r, newProblem(http.StatusMethodNotAllowed, "method-not-allowed", "Method Not Allowed",
		"Request method '"+r.Method+"' is not supported"))
}
