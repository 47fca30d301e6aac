package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"twipost/storage"
	"twipost/storage/models"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type contextKey struct{}

// CurrentUser returns the authenticated user of the request, or nil.
func CurrentUser(ctx context.Context) *models.User {
	user, _ := ctx.Value(contextKey{}).(*models.User)
	return user
}

func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, contextKey{}, user)
}

// Middleware resolves the session cookie or bearer token to a user. Requests
// without valid credentials continue anonymously; views decide whether that
// is allowed.
func Middleware(sessions *Sessions, users storage.UserStorage) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				if cookie, err := r.Cookie(CookieName); err == nil {
					token = cookie.Value
				}
			}
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			userID, err := sessions.Verify(token)
			if err != nil {
				log.Debugf("Ignoring session: %s", err.Error())
				next.ServeHTTP(w, r)
				return
			}
			user, err := users.GetUser(r.Context(), userID)
			if err != nil {
				if !errors.Is(err, storage.NotFoundError) {
					log.Printf("Failed to load session user %s: %s", userID, err.Error())
				}
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return header[7:]
	}
	return ""
}
