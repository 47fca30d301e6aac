package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"twipost/auth"
	"twipost/storage"

	log "github.com/sirupsen/logrus"
)

type CreatePostRequestData struct {
	Text string `json:"text"`
}

func (h *HTTPHandler) HandleCreatePost(w http.ResponseWriter, r *http.Request) {
	var data CreatePostRequestData
	err := json.NewDecoder(r.Body).Decode(&data)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	user := auth.CurrentUser(r.Context())
	post, err := h.Storage.AddPost(r.Context(), user.Id, data.Text)
	if err != nil {
		if errors.Is(err, storage.ValidationError) {
			jsonError(w, textError(err, data.Text), http.StatusBadRequest)
			return
		}
		log.Printf("Failed to add post: %s", err.Error())
		jsonError(w, INTERNAL_ERROR_MESSAGE, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, post)
}
