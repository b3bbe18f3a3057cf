package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/errors"

	"github.com/xenking/plantshop/internal/domain/auth"
	"github.com/xenking/plantshop/pkg/httpmiddleware"
)

// APIKeyHeader carries the caller's API key. A bearer token in the
// Authorization header is accepted as well.
const APIKeyHeader = "api_key"

var errForbidden = errors.New("forbidden")

// authenticate resolves the request's API key and stores it in the context.
func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, err := h.auth.Authenticate(r.Context(), requestKey(r))
		if err != nil {
			if !errors.Is(err, auth.ErrUnauthorized) {
				h.fail(w, r, err)
				return
			}
			httpmiddleware.WriteError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithKey(r.Context(), info)))
	})
}

// identify is authenticate for public routes: requests without a key pass
// through anonymously.
func (h *Handler) identify(next http.Handler) http.Handler {
	authed := h.authenticate(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestKey(r) == "" {
			next.ServeHTTP(w, r)
			return
		}
		authed.ServeHTTP(w, r)
	})
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return h.requireScope(auth.ScopeAdmin)(next)
}

// requireScope rejects keys that hold neither scope nor admin before the
// handler touches any resource.
func (h *Handler) requireScope(scope auth.Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k, ok := auth.FromContext(r.Context())
			if !ok || !(k.Has(scope) || k.Has(auth.ScopeAdmin)) {
				h.fail(w, r, errForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// actingAs reports whether the caller may act for principalID under scope
// and writes 403 when it may not.
func (h *Handler) actingAs(w http.ResponseWriter, r *http.Request, scope auth.Scope, principalID string) bool {
	k, ok := auth.FromContext(r.Context())
	if !ok || !k.CanActAs(scope, principalID) {
		h.fail(w, r, errForbidden)
		return false
	}
	return true
}

func requestKey(r *http.Request) string {
	if k := r.Header.Get(APIKeyHeader); k != "" {
		return k
	}
	const prefix = "Bearer "
	if v := r.Header.Get("Authorization"); len(v) > len(prefix) && strings.EqualFold(v[:len(prefix)], prefix) {
		return strings.TrimSpace(v[len(prefix):])
	}
	return ""
}
