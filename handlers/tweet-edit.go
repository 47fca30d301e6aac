package handlers

import (
	"errors"
	"net/http"
	"twipost/auth"
	"twipost/storage"

	log "github.com/sirupsen/logrus"
)

func (h *HTTPHandler) HandleTweetEdit(w http.ResponseWriter, r *http.Request) {
	post := h.ownedPost(w, r)
	if post == nil {
		return
	}
	if r.Method == http.MethodGet {
		h.render(w, r, http.StatusOK, "tweet_form.html", tweetForm(post, post.Text))
		return
	}

	text := r.PostFormValue("text")
	user := auth.CurrentUser(r.Context())
	_, err := h.Storage.PatchPost(r.Context(), post.Id, user.Id, text)
	if err != nil {
		switch {
		case errors.Is(err, storage.ValidationError):
			h.render(w, r, http.StatusOK, "tweet_form.html", tweetForm(post, text, textError(err, text)))
		case errors.Is(err, storage.Forbidden):
			http.Error(w, "Post is owned by another user.", http.StatusForbidden)
		case errors.Is(err, storage.NotFoundError):
			http.Error(w, "Post not found.", http.StatusNotFound)
		case errors.Is(err, storage.CollisionError):
			h.render(w, r, http.StatusConflict, "tweet_form.html",
				tweetForm(post, text, "The tweet was changed in the meantime, please try again."))
		default:
			log.Printf("Internal error while updating post: %s", err.Error())
			http.Error(w, INTERNAL_ERROR_MESSAGE, http.StatusInternalServerError)
		}
		return
	}
	h.redirect(w, r, "tweet_list")
}
