// Package api provides the read-only HTTP gateway over captured sessions.
package api

import (
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tull/internal/store"
	"github.com/ternarybob/tull/web"
)

// RefreshInterval is how often a session page reloads itself.
const RefreshInterval = 5 * time.Second

// Server represents the gateway.
type Server struct {
	store     *store.Store
	logger    arbor.ILogger
	router    chi.Router
	templates *template.Template
}

// NewServer creates a gateway reading from st.
func NewServer(st *store.Store, logger arbor.ILogger) (*Server, error) {
	tmpl, err := template.ParseFS(web.Templates, "templates/*.html")
	if err != nil {
		return nil, err
	}

	s := &Server{
		store:     st,
		logger:    logger,
		templates: tmpl,
	}

	s.setupRouter()
	return s, nil
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Route("/tull", func(r chi.Router) {
		r.Get("/web", s.handleWebList)
		r.Get("/web/{id}", s.handleWebSession)
		r.Get("/api", s.handleAPIList)
		r.Get("/api/{id}", s.handleAPISession)
		r.Get("/raw", s.handleRawList)
		r.Get("/raw/{id}", s.handleRawSession)
	})

	s.router = r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
