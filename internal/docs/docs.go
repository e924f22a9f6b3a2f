// Package docs serves the HTML reference for the quiz API under /docs/.
//
// The index page is rendered from index.tmpl with the routes, status codes and messages the api package actually
// uses, so the reference cannot drift from the handlers. Other files are served as they are.
package docs

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"os"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"

	"github.com/starquake/quizstore/internal/api"
	"github.com/starquake/quizstore/internal/config"
	"github.com/starquake/quizstore/internal/logging"
)

const (
	// Prefix is the path the reference is mounted on.
	Prefix = "/docs/"

	indexTemplate = "index.tmpl"
)

//go:embed static/*
var staticFS embed.FS

// Response is one documented outcome of a route.
type Response struct {
	Status  int
	Message string
	Body    string
}

// StatusText returns the reason phrase for the status code.
func (r Response) StatusText() string {
	return http.StatusText(r.Status)
}

// Route is one documented endpoint.
type Route struct {
	Method    string
	Path      string
	Summary   string
	Example   string
	Responses []Response
}

// Page is the data index.tmpl is rendered with.
type Page struct {
	Routes       []Route
	MaxBodyBytes int
	NotConnected string
}

// MaxBodySize returns MaxBodyBytes in a human-readable form.
func (p Page) MaxBodySize() string {
	if p.MaxBodyBytes%(1<<20) == 0 {
		return fmt.Sprintf("%d MiB", p.MaxBodyBytes>>20)
	}

	return fmt.Sprintf("%d bytes", p.MaxBodyBytes)
}

// Routes returns the documented endpoints.
func Routes() []Route {
	return []Route{
		{
			Method:  http.MethodGet,
			Path:    "/api/quizzes",
			Summary: "Lists every stored quiz in storage order. An empty store returns an empty array.",
			Responses: []Response{
				{Status: http.StatusOK, Body: "array of quizzes"},
				{Status: http.StatusInternalServerError, Message: api.MsgFetchQuizzes},
			},
		},
		{
			Method: http.MethodPost,
			Path:   "/api/quizzes",
			Summary: "Stores the quiz in the request body. title is required. questions and any other members are " +
				"stored as sent. The response carries the generated id and a Location header.",
			Example: `{"title": "Math Quiz", "questions": []}`,
			Responses: []Response{
				{Status: http.StatusCreated, Body: "the stored quiz"},
				{Status: http.StatusBadRequest, Message: api.MsgTitleRequired},
				{Status: http.StatusBadRequest, Message: api.MsgInvalidBody},
				{Status: http.StatusRequestEntityTooLarge, Message: api.MsgBodyTooLarge},
				{Status: http.StatusInternalServerError, Message: api.MsgCreateQuiz},
			},
		},
		{
			Method:  http.MethodGet,
			Path:    "/api/quizzes/{id}",
			Summary: "Returns one quiz by the id it was given on creation.",
			Responses: []Response{
				{Status: http.StatusOK, Body: "the quiz"},
				{Status: http.StatusBadRequest, Message: api.MsgInvalidID},
				{Status: http.StatusNotFound, Message: api.MsgNotFound},
				{Status: http.StatusInternalServerError, Message: api.MsgFetchQuiz},
			},
		},
		{
			Method:  http.MethodGet,
			Path:    "/healthz",
			Summary: "Pings the database.",
			Responses: []Response{
				{Status: http.StatusOK, Body: `{"status": "ok"}`},
				{Status: http.StatusServiceUnavailable, Body: `{"status": "degraded", "checks": {"database": "unhealthy"}}`},
			},
		},
	}
}

// Handler returns an [http.Handler] that serves the API reference.
// If cfg.DocsDir is not empty, it serves files from that directory and parses the template on every request.
// In production the HTML and CSS are minified.
func Handler(logger *slog.Logger, cfg *config.Config) http.Handler {
	var fsys fs.FS
	if cfg.DocsDir != "" {
		fsys = os.DirFS(cfg.DocsDir)
	} else {
		var err error
		fsys, err = fs.Sub(staticFS, "static")
		if err != nil {
			panic(err)
		}
	}

	var m *minify.M
	if cfg.IsProduction() {
		m = minify.New()
		m.AddFunc("text/html", html.Minify)
		m.AddFunc("text/css", css.Minify)
	}

	page := Page{
		Routes:       Routes(),
		MaxBodyBytes: api.MaxBodyBytes,
		NotConnected: api.MsgNotConnected,
	}

	var files http.Handler = http.FileServer(http.FS(fsys))
	if m != nil {
		files = m.Middleware(files)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", handleIndex(logger, fsys, m, page))
	mux.Handle("GET /"+indexTemplate, http.NotFoundHandler())
	mux.Handle("GET /", files)

	return http.StripPrefix(Prefix[:len(Prefix)-1], mux)
}

func handleIndex(logger *slog.Logger, fsys fs.FS, m *minify.M, page Page) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		b, err := render(fsys, m, page)
		if err != nil {
			logger.ErrorContext(ctx, "error rendering API reference", logging.ErrAttr(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)

			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if _, err = w.Write(b); err != nil {
			logger.ErrorContext(ctx, "error writing API reference", logging.ErrAttr(err))
		}
	})
}

func render(fsys fs.FS, m *minify.M, page Page) ([]byte, error) {
	tmpl, err := template.ParseFS(fsys, indexTemplate)
	if err != nil {
		return nil, fmt.Errorf("error parsing %s: %w", indexTemplate, err)
	}

	var buf bytes.Buffer
	if err = tmpl.Execute(&buf, page); err != nil {
		return nil, fmt.Errorf("error executing %s: %w", indexTemplate, err)
	}
	if m == nil {
		return buf.Bytes(), nil
	}

	b, err := m.Bytes("text/html", buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("error minifying %s: %w", indexTemplate, err)
	}

	return b, nil
}
