package handlers

import (
	"errors"
	"net/http"
	"twipost/auth"
	"twipost/storage"

	log "github.com/sirupsen/logrus"
)

func (h *HTTPHandler) HandleTweetDelete(w http.ResponseWriter, r *http.Request) {
	post := h.ownedPost(w, r)
	if post == nil {
		return
	}
	if r.Method == http.MethodGet {
		h.render(w, r, http.StatusOK, "tweet_confirm_delete.html", map[string]interface{}{"Post": post})
		return
	}

	user := auth.CurrentUser(r.Context())
	err := h.Storage.DeletePost(r.Context(), post.Id, user.Id)
	if err != nil {
		switch {
		case errors.Is(err, storage.Forbidden):
			http.Error(w, "Post is owned by another user.", http.StatusForbidden)
		case errors.Is(err, storage.NotFoundError):
			http.Error(w, "Post not found.", http.StatusNotFound)
		default:
			log.Printf("Internal error while deleting post: %s", err.Error())
			http.Error(w, INTERNAL_ERROR_MESSAGE, http.StatusInternalServerError)
		}
		return
	}
	log.WithFields(log.Fields{"post": post.Id, "user": user.Username}).Info("post deleted")
	h.redirect(w, r, "tweet_list")
}
