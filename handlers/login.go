package handlers

import (
	"errors"
	"net/http"
	"twipost/auth"

	log "github.com/sirupsen/logrus"
)

func (h *HTTPHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	next := r.FormValue("next")
	if r.Method == http.MethodGet {
		h.render(w, r, http.StatusOK, "login.html", map[string]interface{}{
			"Next":     next,
			"Username": "",
			"Errors":   []string{},
		})
		return
	}

	username := r.PostFormValue("username")
	user, err := auth.Authenticate(r.Context(), h.Storage, username, r.PostFormValue("password"))
	if err != nil {
		if !errors.Is(err, auth.ErrInvalidCredentials) {
			log.Printf("Failed to authenticate %s: %s", username, err.Error())
			http.Error(w, INTERNAL_ERROR_MESSAGE, http.StatusInternalServerError)
			return
		}
		h.render(w, r, http.StatusOK, "login.html", map[string]interface{}{
			"Next":     next,
			"Username": username,
			"Errors":   []string{"Please enter a correct username and password."},
		})
		return
	}

	if err := h.Sessions.Login(w, user.Id); err != nil {
		log.Printf("Failed to start session for %s: %s", user.Username, err.Error())
		http.Error(w, INTERNAL_ERROR_MESSAGE, http.StatusInternalServerError)
		return
	}
	if safeNext(next) {
		http.Redirect(w, r, next, http.StatusFound)
		return
	}
	h.redirect(w, r, "tweet_list")
}

func (h *HTTPHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.Sessions.Logout(w)
	h.redirect(w, r, "tweet_list")
}
