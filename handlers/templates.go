package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"twipost/auth"

	log "github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{
	"tweet_list.html",
	"tweet_form.html",
	"tweet_confirm_delete.html",
	"register.html",
	"login.html",
}

// parsePages parses every page together with the base layout. Route names
// are resolved lazily, so parsing may happen before Register.
func (h *HTTPHandler) parsePages() map[string]*template.Template {
	funcs := template.FuncMap{
		"url": h.urlFor,
	}
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		pages[name] = template.Must(
			template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/base.html", "templates/"+name))
	}
	return pages
}

// render executes a page into a buffer first so that template errors still
// produce a clean 500.
func (h *HTTPHandler) render(w http.ResponseWriter, r *http.Request, status int, name string, data map[string]interface{}) {
	page, found := h.pages[name]
	if !found {
		log.Printf("Unknown page %s", name)
		http.Error(w, INTERNAL_ERROR_MESSAGE, http.StatusInternalServerError)
		return
	}
	data["User"] = auth.CurrentUser(r.Context())

	var buf bytes.Buffer
	if err := page.ExecuteTemplate(&buf, "base", data); err != nil {
		log.Printf("Failed to render %s: %s", name, err.Error())
		http.Error(w, INTERNAL_ERROR_MESSAGE, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		log.Debugf("Failed to write page %s: %s", name, err.Error())
	}
}
