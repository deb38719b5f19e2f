package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/catalog-service/internal/domain/auth"
)

// APIKeyHeader carries the client API key.
const APIKeyHeader = "api_key"

// SecurityHandler authenticates requests via HMAC-SHA256 hashed API keys.
type SecurityHandler struct {
	verifier *auth.Verifier
}

// NewSecurityHandler creates a SecurityHandler with the given API key
// repository and HMAC pepper.
func NewSecurityHandler(apikeys auth.Repository, pepper []byte) *SecurityHandler {
	return &SecurityHandler{verifier: auth.NewVerifier(apikeys, pepper)}
}

// Middleware rejects requests without a valid key with a 401 problem
// written through h.
func (s *SecurityHandler) Middleware(h *Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			info, err := s.verifier.Verify(r.Context(), r.Header.Get(APIKeyHeader))
			if err != nil {
				if !errors.Is(err, auth.ErrUnauthorized) {
					h.writeError(w, r, err)
					return
				}
				zctx.From(r.Context()).Warn("Rejected API key", zap.Error(err))
				h.writeError(w, r, auth.ErrUnauthorized)
				return
			}

			ctx := zctx.With(r.Context(), zap.String("api_key_id", info.ID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
