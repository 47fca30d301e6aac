package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"twipost/auth"
	"twipost/storage"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type PatchPostRequestData struct {
	Text string `json:"text"`
}

func (h *HTTPHandler) HandlePatchPost(w http.ResponseWriter, r *http.Request) {
	postId := mux.Vars(r)["postId"]
	var data PatchPostRequestData
	err := json.NewDecoder(r.Body).Decode(&data)
	if err != nil {
		log.Printf("Failed to decode post data while updating post: %s", err.Error())
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	user := auth.CurrentUser(r.Context())
	post, err := h.Storage.PatchPost(r.Context(), postId, user.Id, data.Text)
	if err != nil {
		switch {
		case errors.Is(err, storage.Forbidden):
			log.Printf("Forbidden error while updating post: %s", err.Error())
			jsonError(w, "Post is owned by another user.", http.StatusForbidden)
		case errors.Is(err, storage.NotFoundError):
			jsonError(w, "Post not found.", http.StatusNotFound)
		case errors.Is(err, storage.ValidationError):
			jsonError(w, textError(err, data.Text), http.StatusBadRequest)
		case errors.Is(err, storage.CollisionError):
			jsonError(w, "Post was modified concurrently, retry.", http.StatusConflict)
		default:
			log.Printf("Internal error while updating post: %s", err.Error())
			jsonError(w, INTERNAL_ERROR_MESSAGE, http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, post)
}
