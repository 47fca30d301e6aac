package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"twipost/auth"

	log "github.com/sirupsen/logrus"
)

type TokenRequestData struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

// HandleToken exchanges credentials for a bearer token.
func (h *HTTPHandler) HandleToken(w http.ResponseWriter, r *http.Request) {
	var data TokenRequestData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	user, err := auth.Authenticate(r.Context(), h.Storage, data.Username, data.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			jsonError(w, "Invalid username or password.", http.StatusUnauthorized)
			return
		}
		log.Printf("Failed to authenticate %s: %s", data.Username, err.Error())
		jsonError(w, INTERNAL_ERROR_MESSAGE, http.StatusInternalServerError)
		return
	}
	token, err := h.Sessions.Issue(user.Id)
	if err != nil {
		log.Printf("Failed to issue token: %s", err.Error())
		jsonError(w, INTERNAL_ERROR_MESSAGE, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{Token: token})
}
