package handlers

import (
	"errors"
	"net/http"
	"twipost/auth"
	"twipost/storage"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

func (h *HTTPHandler) HandleDeletePost(w http.ResponseWriter, r *http.Request) {
	postId := mux.Vars(r)["postId"]
	user := auth.CurrentUser(r.Context())
	err := h.Storage.DeletePost(r.Context(), postId, user.Id)
	if err != nil {
		switch {
		case errors.Is(err, storage.Forbidden):
			jsonError(w, "Post is owned by another user.", http.StatusForbidden)
		case errors.Is(err, storage.NotFoundError):
			jsonError(w, "Post not found.", http.StatusNotFound)
		default:
			log.Printf("Internal error while deleting post: %s", err.Error())
			jsonError(w, INTERNAL_ERROR_MESSAGE, http.StatusInternalServerError)
		}
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
