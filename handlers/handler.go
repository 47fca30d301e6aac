package handlers

import (
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"twipost/auth"
	"twipost/storage"
	"twipost/storage/models"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const INTERNAL_ERROR_MESSAGE = "Internal server error, please try again later."

var (
	DEFAULT_PAGE_SIZE = 10
	MAX_PAGE_SIZE     = 100
)

type HTTPHandler struct {
	Storage  storage.Storage
	Sessions *auth.Sessions
	// PageSize is the number of posts on one page of the HTML feed.
	PageSize int

	router *mux.Router
	pages  map[string]*template.Template
}

func NewHTTPHandler(s storage.Storage, sessions *auth.Sessions, pageSize int) *HTTPHandler {
	h := &HTTPHandler{
		Storage:  s,
		Sessions: sessions,
		PageSize: pageSize,
	}
	h.pages = h.parsePages()
	return h
}

// urlFor builds the path of a named route, the way templates do.
func (h *HTTPHandler) urlFor(name string, pairs ...string) (string, error) {
	if h.router == nil {
		return "", errors.New("routes are not registered")
	}
	route := h.router.Get(name)
	if route == nil {
		return "", errors.New("no route named " + name)
	}
	u, err := route.URL(pairs...)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func (h *HTTPHandler) redirect(w http.ResponseWriter, r *http.Request, name string, pairs ...string) {
	target, err := h.urlFor(name, pairs...)
	if err != nil {
		log.Printf("Failed to resolve route %s: %s", name, err.Error())
		http.Error(w, INTERNAL_ERROR_MESSAGE, http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// loginRequired sends anonymous visitors to the login page and back.
func (h *HTTPHandler) loginRequired(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if auth.CurrentUser(r.Context()) != nil {
			next(w, r)
			return
		}
		login, err := h.urlFor("login")
		if err != nil {
			http.Error(w, INTERNAL_ERROR_MESSAGE, http.StatusInternalServerError)
			return
		}
		http.Redirect(w, r, login+"?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)
	}
}

// tokenRequired rejects anonymous API calls.
func (h *HTTPHandler) tokenRequired(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if auth.CurrentUser(r.Context()) == nil {
			jsonError(w, "Invalid user token", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// ownedPost loads the post named in the URL for a view that only its owner
// may use. It writes the error response itself and returns nil on failure.
func (h *HTTPHandler) ownedPost(w http.ResponseWriter, r *http.Request) *models.Post {
	postId := mux.Vars(r)["id"]
	post, err := h.Storage.GetPost(r.Context(), postId)
	if err != nil {
		if errors.Is(err, storage.NotFoundError) {
			http.Error(w, "Post not found.", http.StatusNotFound)
			return nil
		}
		log.Printf("Failed to load post %s: %s", postId, err.Error())
		http.Error(w, INTERNAL_ERROR_MESSAGE, http.StatusInternalServerError)
		return nil
	}
	if post.OwnerId != auth.CurrentUser(r.Context()).Id {
		http.Error(w, "Post is owned by another user.", http.StatusForbidden)
		return nil
	}
	return post
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	body := map[string]interface{}{"status": "ok"}

	err := h.Storage.Ping(r.Context())
	var users int64
	if err == nil {
		users, err = h.Storage.CountUsers(r.Context())
	}
	if err != nil {
		log.Printf("Health check failed: %s", err.Error())
		status = http.StatusServiceUnavailable
		body["status"] = "unavailable"
	} else {
		body["users"] = users
	}
	writeJSON(w, status, body)
}

// parsePageParams reads the page token and page size query parameters.
func parsePageParams(r *http.Request, defaultSize int) (*string, int, error) {
	var page *string
	if cgiPage, found := r.URL.Query()["page"]; found {
		page = &cgiPage[0]
	}

	size := defaultSize
	if cgiSize, found := r.URL.Query()["size"]; found {
		var err error
		size, err = strconv.Atoi(cgiSize[0])
		if err != nil || size < 1 || size > MAX_PAGE_SIZE {
			return nil, 0, errors.New("invalid size")
		}
	}
	return page, size, nil
}

// textError turns a storage validation failure into a form message.
func textError(err error, text string) string {
	switch {
	case errors.Is(err, models.ErrTextTooLong):
		return "Ensure this value has at most " + strconv.Itoa(models.MaxTextLength) +
			" characters (it has " + strconv.Itoa(len([]rune(text))) + ")."
	case errors.Is(err, models.ErrEmptyText):
		return "This field is required."
	}
	return "Invalid text."
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	rawResponse, err := json.Marshal(v)
	if err != nil {
		log.Printf("Failed to dump response to json: %s", err.Error())
		http.Error(w, INTERNAL_ERROR_MESSAGE, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(rawResponse); err != nil {
		log.Debugf("Failed to write response: %s", err.Error())
	}
}

func jsonError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}

// safeNext accepts only local absolute paths as a post-login destination.
func safeNext(next string) bool {
	return strings.HasPrefix(next, "/") && !strings.HasPrefix(next, "//") && !strings.HasPrefix(next, "/\\")
}
