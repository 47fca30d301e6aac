package handlers

import (
	"errors"
	"net/http"
	"twipost/storage"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

func (h *HTTPHandler) HandleGetPost(w http.ResponseWriter, r *http.Request) {
	postId := mux.Vars(r)["postId"]
	post, err := h.Storage.GetPost(r.Context(), postId)
	if err != nil {
		if errors.Is(err, storage.NotFoundError) {
			jsonError(w, "Post not found.", http.StatusNotFound)
			return
		}
		log.Printf("Failed to get post: %s", err.Error())
		jsonError(w, INTERNAL_ERROR_MESSAGE, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, post)
}
