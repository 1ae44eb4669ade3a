package api

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const userContextKey contextKey = "user"

// requireAuth validates the bearer token, confirms the user still exists,
// and stashes the username in the request context.
func (h *Handler) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found || token == "" {
			unauthorized(w)
			return
		}

		username, err := h.tokens.Verify(token)
		if err != nil {
			unauthorized(w)
			return
		}

		user, err := h.store.GetUser(username)
		if err != nil {
			respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		if user == nil {
			unauthorized(w)
			return
		}

		ctx := context.WithValue(r.Context(), userContextKey, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	respondWithError(w, http.StatusUnauthorized, "Could not validate credentials")
}

func userFromContext(ctx context.Context) string {
	username, _ := ctx.Value(userContextKey).(string)
	return username
}
