package handler

import (
	"context"
	"crypto/subtle"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/auth"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// SecurityHandler authenticates administrative requests via HMAC-SHA256
// hashed API keys.
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

var errUnauthorized = errors.New("unauthorized")

type keyInfoKey struct{}

// KeyFromContext returns the API key that authenticated the request.
func KeyFromContext(ctx context.Context) (*auth.APIKeyInfo, bool) {
	info, ok := ctx.Value(keyInfoKey{}).(*auth.APIKeyInfo)
	return info, ok
}

// AdminKey buckets requests by the API key that authenticated them, falling
// back to the client IP. Only use it behind Require.
func AdminKey(r *http.Request) string {
	if info, ok := KeyFromContext(r.Context()); ok {
		return "key:" + info.ID
	}
	return "ip:" + httpmiddleware.ClientIP(r)
}

// Authenticate resolves a presented API key. The stored hash is compared in
// constant time against the computed one.
func (s *SecurityHandler) Authenticate(ctx context.Context, key string) (*auth.APIKeyInfo, error) {
	if key == "" {
		return nil, errUnauthorized
	}
	hash := auth.HashKey(s.pepper, key)

	info, err := s.apikeys.FindByHash(ctx, hex.EncodeToString(hash))
	if err != nil {
		if !errors.Is(err, auth.ErrKeyNotFound) {
			zctx.From(ctx).Error("API key lookup failed", zap.Error(err))
		}
		return nil, errUnauthorized
	}

	stored, err := hex.DecodeString(info.KeyHash)
	if err != nil || subtle.ConstantTimeCompare(hash, stored) != 1 {
		return nil, errUnauthorized
	}
	return info, nil
}

// Require rejects requests without a valid API key with 401, and keys
// holding none of scopes with 403.
func (s *SecurityHandler) Require(scopes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			info, err := s.Authenticate(ctx, presentedKey(r))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if !info.HasAnyScope(scopes...) {
				zctx.From(ctx).Warn("API key lacks scope",
					zap.String("key", info.Name),
					zap.Strings("required", scopes),
				)
				writeError(w, http.StatusForbidden, "Forbidden")
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, keyInfoKey{}, info)))
		})
	}
}

// presentedKey reads the api_key header, falling back to a bearer token.
func presentedKey(r *http.Request) string {
	if k := r.Header.Get("api_key"); k != "" {
		return k
	}
	if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(v)
	}
	return ""
}
