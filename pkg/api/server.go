package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/aravindb26/middleware-sub022/pkg/httputil"
	"github.com/aravindb26/middleware-sub022/pkg/observability"
)

// Server represents the resource API server
type Server struct {
	service *Service
	router  *mux.Router
	log     *observability.Logger
}

// NewServer creates a new API server
func NewServer(service *Service, log *observability.Logger, metrics *observability.Metrics) *Server {
	s := &Server{
		service: service,
		router:  mux.NewRouter(),
		log:     log,
	}
	s.setupRoutes()

	middlewares := []mux.MiddlewareFunc{
		httputil.RequestIDMiddleware,
		httputil.RecoveryMiddleware(log),
		httputil.LoggingMiddleware(log),
		httputil.MaxBytesMiddleware(1 << 20),
	}
	if metrics != nil {
		middlewares = append(middlewares, observability.HTTPMetricsMiddleware(metrics))
	}
	s.router.Use(middlewares...)

	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1/contexts/{cid:[0-9]+}").Subrouter()

	// Resource routes. Literal segments are registered before the {id}
	// capture so "search" is never parsed as a resource id.
	api.HandleFunc("/resources", s.listResources).Methods("GET")
	api.HandleFunc("/resources", s.createResource).Methods("POST")
	api.HandleFunc("/resources/search", s.searchResources).Methods("GET")
	api.HandleFunc("/resources/byprivilege", s.searchByPrivilege).Methods("GET")
	api.HandleFunc("/resources/byname/{name}", s.getResourceByName).Methods("GET")
	api.HandleFunc("/resources/modified", s.listModified).Methods("GET")
	api.HandleFunc("/resources/deleted", s.listDeleted).Methods("GET")
	api.HandleFunc("/resources/{id:[0-9]+}", s.getResource).Methods("GET")
	api.HandleFunc("/resources/{id:[0-9]+}", s.updateResource).Methods("PUT")
	api.HandleFunc("/resources/{id:[0-9]+}", s.deleteResource).Methods("DELETE")
	api.HandleFunc("/resources/{id:[0-9]+}/use", s.recordUse).Methods("POST")

	// Cascade entry point for provisioning systems.
	api.HandleFunc("/entities/deleted", s.entityDeleted).Methods("POST")

	// Resource group routes
	api.HandleFunc("/groups", s.listGroups).Methods("GET")
	api.HandleFunc("/groups/search", s.searchGroups).Methods("GET")
	api.HandleFunc("/groups/{id:[0-9]+}", s.getGroup).Methods("GET")

	s.router.HandleFunc("/healthz", s.healthz).Methods("GET")
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the underlying mux for additional registrations such as
// the metrics endpoint.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, map[string]string{"status": "ok"})
}
