package handlers

import (
	"net/http"
	"twipost/middleware"

	"github.com/gorilla/mux"
)

// Register adds every route to r. Views are named so that callers and
// templates resolve paths by name.
func (h *HTTPHandler) Register(r *mux.Router, authLimiter *middleware.RateLimiter) {
	h.router = r

	r.HandleFunc("/", h.HandleTweetList).Methods(http.MethodGet).Name("tweet_list")
	r.HandleFunc("/tweet/create/", h.loginRequired(h.HandleTweetCreate)).
		Methods(http.MethodGet, http.MethodPost).Name("tweet_create")
	r.HandleFunc("/tweet/{id}/edit/", h.loginRequired(h.HandleTweetEdit)).
		Methods(http.MethodGet, http.MethodPost).Name("tweet_edit")
	r.HandleFunc("/tweet/{id}/delete/", h.loginRequired(h.HandleTweetDelete)).
		Methods(http.MethodGet, http.MethodPost).Name("tweet_delete")

	r.Handle("/register/", authLimiter.HandlerFunc(h.HandleRegister)).
		Methods(http.MethodGet, http.MethodPost).Name("register")
	r.Handle("/login/", authLimiter.HandlerFunc(h.HandleLogin)).
		Methods(http.MethodGet, http.MethodPost).Name("login")
	r.HandleFunc("/logout/", h.HandleLogout).Methods(http.MethodPost).Name("logout")

	r.HandleFunc("/maintenance/ping", h.HealthCheck).Methods(http.MethodGet).Name("health")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Handle("/auth/token", authLimiter.HandlerFunc(h.HandleToken)).Methods(http.MethodPost).Name("api_token")
	api.HandleFunc("/posts", h.HandleGetPosts).Methods(http.MethodGet).Name("api_posts")
	api.HandleFunc("/posts", h.tokenRequired(h.HandleCreatePost)).Methods(http.MethodPost).Name("api_post_create")
	api.HandleFunc("/posts/{postId}", h.HandleGetPost).Methods(http.MethodGet).Name("api_post")
	api.HandleFunc("/posts/{postId}", h.tokenRequired(h.HandlePatchPost)).Methods(http.MethodPatch).Name("api_post_patch")
	api.HandleFunc("/posts/{postId}", h.tokenRequired(h.HandleDeletePost)).Methods(http.MethodDelete).Name("api_post_delete")
	api.HandleFunc("/users/{username}/posts", h.HandleGetUserPosts).Methods(http.MethodGet).Name("api_user_posts")
}
