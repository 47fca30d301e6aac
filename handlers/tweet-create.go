package handlers

import (
	"errors"
	"net/http"
	"twipost/auth"
	"twipost/storage"
	"twipost/storage/models"

	log "github.com/sirupsen/logrus"
)

func tweetForm(post *models.Post, text string, errs ...string) map[string]interface{} {
	return map[string]interface{}{
		"Post":      post,
		"Text":      text,
		"Errors":    errs,
		"MaxLength": models.MaxTextLength,
	}
}

func (h *HTTPHandler) HandleTweetCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		h.render(w, r, http.StatusOK, "tweet_form.html", tweetForm(nil, ""))
		return
	}

	text := r.PostFormValue("text")
	user := auth.CurrentUser(r.Context())
	post, err := h.Storage.AddPost(r.Context(), user.Id, text)
	if err != nil {
		if errors.Is(err, storage.ValidationError) {
			h.render(w, r, http.StatusOK, "tweet_form.html", tweetForm(nil, text, textError(err, text)))
			return
		}
		log.Printf("Failed to add post: %s", err.Error())
		http.Error(w, INTERNAL_ERROR_MESSAGE, http.StatusInternalServerError)
		return
	}
	log.WithFields(log.Fields{"post": post.Id, "user": user.Username}).Info("post created")
	h.redirect(w, r, "tweet_list")
}
