package handlers

import (
	"errors"
	"net/http"
	"twipost/storage"
	"twipost/storage/models"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

type PostsResponse struct {
	Posts    []*models.Post `json:"posts"`
	NextPage *string        `json:"nextPage,omitempty"`
}

func (h *HTTPHandler) HandleGetPosts(w http.ResponseWriter, r *http.Request) {
	h.writePosts(w, r, nil)
}

func (h *HTTPHandler) HandleGetUserPosts(w http.ResponseWriter, r *http.Request) {
	username := mux.Vars(r)["username"]
	user, err := h.Storage.GetUserByUsername(r.Context(), username)
	if err != nil {
		if errors.Is(err, storage.NotFoundError) {
			jsonError(w, "User not found.", http.StatusNotFound)
			return
		}
		log.Printf("Failed to get user %s: %s", username, err.Error())
		jsonError(w, INTERNAL_ERROR_MESSAGE, http.StatusInternalServerError)
		return
	}
	h.writePosts(w, r, &user.Id)
}

func (h *HTTPHandler) writePosts(w http.ResponseWriter, r *http.Request, userId *string) {
	page, size, err := parsePageParams(r, DEFAULT_PAGE_SIZE)
	if err != nil {
		jsonError(w, "Invalid size", http.StatusBadRequest)
		return
	}

	posts, nextPage, err := h.Storage.GetPosts(r.Context(), userId, page, size)
	if err != nil {
		if errors.Is(err, storage.ClientError) {
			log.Printf("Client error while getting posts: %s", err.Error())
			jsonError(w, "Invalid request", http.StatusBadRequest)
			return
		}
		log.Printf("Failed to get posts: %s", err.Error())
		jsonError(w, INTERNAL_ERROR_MESSAGE, http.StatusInternalServerError)
		return
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	writeJSON(w, http.StatusOK, PostsResponse{posts, nextPage})
}
