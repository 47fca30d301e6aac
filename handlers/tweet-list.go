package handlers

import (
	"errors"
	"net/http"
	"twipost/storage"

	log "github.com/sirupsen/logrus"
)

func (h *HTTPHandler) HandleTweetList(w http.ResponseWriter, r *http.Request) {
	var page *string
	if cgiPage := r.URL.Query().Get("page"); cgiPage != "" {
		page = &cgiPage
	}

	posts, nextPage, err := h.Storage.GetPosts(r.Context(), nil, page, h.PageSize)
	if err != nil {
		if errors.Is(err, storage.ClientError) {
			http.Error(w, "Invalid page.", http.StatusBadRequest)
			return
		}
		log.Printf("Failed to list posts: %s", err.Error())
		http.Error(w, INTERNAL_ERROR_MESSAGE, http.StatusInternalServerError)
		return
	}

	h.render(w, r, http.StatusOK, "tweet_list.html", map[string]interface{}{
		"Posts":    posts,
		"NextPage": nextPage,
	})
}
