package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"condoledger/internal/repository"
)

type ctxKey string

const UserIDKey ctxKey = "userID"

// Middleware authenticates requests with a bearer token, falling back to a
// token query parameter for websocket upgrades, where headers cannot be set
// from the browser.
func Middleware(tokens *repository.TokenRepository, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			plain := ""
			if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
				plain = strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
			}
			if plain == "" {
				plain = r.URL.Query().Get("token")
			}
			if plain == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			t, err := tokens.FindByPlainToken(r.Context(), plain)
			if err != nil {
				log.Debug("token rejected", "path", r.URL.Path, "err", err)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, t.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetUserID(ctx context.Context) (int64, error) {
	userID, ok := ctx.Value(UserIDKey).(int64)
	if !ok {
		return 0, errors.New("userID not found in context")
	}
	return userID, nil
}
