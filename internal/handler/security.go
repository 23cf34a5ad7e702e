package handler

import (
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/bakery-pos/internal/domain/auth"
)

// APIKeyHeader carries the client API key.
const APIKeyHeader = "api_key"

// SecurityHandler authenticates API requests via HMAC-SHA256 hashed API keys.
type SecurityHandler struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurityHandler creates a SecurityHandler with the given API key
// repository and HMAC pepper.
func NewSecurityHandler(apikeys auth.Repository, pepper []byte) *SecurityHandler {
	return &SecurityHandler{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// Authenticate rejects requests without a known API key with 401. The key
// is hashed with the pepper, looked up, and compared in constant time; the
// matched key is attached to the request context.
func (s *SecurityHandler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get(APIKeyHeader)
		if key == "" {
			unauthorized(w)
			return
		}

		hash := auth.Hash(s.pepper, key)
		info, err := s.apikeys.FindByHash(r.Context(), hex.EncodeToString(hash))
		if err != nil {
			if !errors.Is(err, auth.ErrNotFound) {
				zctx.From(r.Context()).Error("API key lookup failed", zap.Error(err))
			}
			unauthorized(w)
			return
		}

		stored, err := hex.DecodeString(info.KeyHash)
		if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
			unauthorized(w)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithInfo(r.Context(), info)))
	})
}

func unauthorized(w http.ResponseWriter) {
	writeJSON(w, http.StatusUnauthorized, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(http.StatusUnauthorized) })
			e.Field("reason", func(e *jx.Encoder) { e.Str("unauthorized") })
			e.Field("message", func(e *jx.Encoder) { e.Str("unauthorized") })
		})
	})
}
