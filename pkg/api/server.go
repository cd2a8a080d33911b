package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sleads/portal/pkg/audit"
	"github.com/sleads/portal/pkg/auth"
	"github.com/sleads/portal/pkg/billing"
	"github.com/sleads/portal/pkg/cms"
	"github.com/sleads/portal/pkg/config"
	"github.com/sleads/portal/pkg/dynamic"
	"github.com/sleads/portal/pkg/files"
	"github.com/sleads/portal/pkg/httputil"
	"github.com/sleads/portal/pkg/middleware"
	"github.com/sleads/portal/pkg/observability"
	"github.com/sleads/portal/pkg/orgs"
	"github.com/sleads/portal/pkg/projects"
	"github.com/sleads/portal/pkg/tasks"
)

// Dependencies carries everything the API server needs
type Dependencies struct {
	Config        *config.Config
	Authenticator *auth.Authenticator
	Orgs          orgs.Service
	Projects      projects.Service
	Files         files.Service
	CMS           cms.Service
	Billing       billing.Service
	Dynamic       dynamic.Service
	Queue         *tasks.PostgresQueue
	Audit         *audit.Service
	Logger        *observability.Logger
	Metrics       *observability.Metrics
}

// Server represents the portal API server
type Server struct {
	router *mux.Router
	deps   Dependencies
	authMW *middleware.AuthMiddleware
}

// NewServer creates a new API server
func NewServer(deps Dependencies) *Server {
	s := &Server{
		router: mux.NewRouter(),
		deps:   deps,
	}

	if deps.Authenticator != nil {
		s.authMW = middleware.NewAuthMiddleware(deps.Authenticator, false)
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	// Public content routes, consumed by client sites
	s.router.HandleFunc("/cms/listening-mode/{projectId}", s.getListeningMode).Methods("GET")
	s.router.HandleFunc("/cms/register", s.registerPage).Methods("POST")
	s.router.HandleFunc("/cms/get-fields/", s.getFields).Methods("GET")
	s.router.HandleFunc("/cms/get-languages/{projectId}", s.getLanguages).Methods("GET")

	// Dynamic object routes, gated by the shared key
	dyn := s.router.NewRoute().Subrouter()
	dyn.Use(s.requireDynamicKey)
	dyn.HandleFunc("/get-schema", s.getSchema).Methods("GET")
	dyn.HandleFunc("/get-dynamic-table-data/{table}", s.listDynamicObjects).Methods("GET")
	dyn.HandleFunc("/get-object/{id}", s.getDynamicObject).Methods("GET")
	dyn.HandleFunc("/create-dynamic-table-data/{table}", s.createDynamicObject).Methods("POST")
	dyn.HandleFunc("/update-object/{id}", s.updateDynamicObject).Methods("PUT")
	dyn.HandleFunc("/delete-object/{id}", s.deleteDynamicObject).Methods("DELETE")

	// OAuth login flow
	s.router.HandleFunc("/auth/login/{provider}", s.login).Methods("GET")
	s.router.HandleFunc("/auth/callback/{provider}", s.callback).Methods("GET")

	// Authenticated API
	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	if s.authMW != nil {
		v1.Use(s.authMW.Handler)
	}
	s.registerAuthRoutes(v1)
	s.registerOrgRoutes(v1)
	s.registerProjectRoutes(v1)
	s.registerFileRoutes(v1)
	s.registerCMSAdminRoutes(v1)
	s.registerBillingRoutes(v1)
}

// Handler wraps the router with the global middleware stack. CORS sits
// outermost so its headers land on every response, error responses
// included.
func (s *Server) Handler() http.Handler {
	maxBody := s.deps.Config.Server.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 32 << 20
	}
	middlewares := []func(http.Handler) http.Handler{
		httputil.CORSMiddleware(s.deps.Config.TrustedOrigins()),
		httputil.RecoveryMiddleware,
		httputil.RequestIDMiddleware,
		httputil.MaxBytesMiddleware(maxBody),
	}
	if s.deps.Metrics != nil {
		middlewares = append(middlewares, observability.HTTPMetricsMiddleware(s.deps.Metrics))
	}
	if s.deps.Audit != nil {
		middlewares = append(middlewares, s.deps.Audit.FailureMiddleware)
	}
	return httputil.Chain(middlewares...)(s.router)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// requireDynamicKey gates the dynamic object routes on the shared key,
// passed as the X-API-Key header or the apiKey query parameter.
func (s *Server) requireDynamicKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		configured := s.deps.Config.SmartObjectsKey
		if configured == "" {
			httputil.WriteForbidden(w, "dynamic objects are not enabled")
			return
		}

		presented := r.Header.Get("X-API-Key")
		if presented == "" {
			presented = r.URL.Query().Get("apiKey")
		}
		if subtle.ConstantTimeCompare([]byte(presented), []byte(configured)) != 1 {
			httputil.WriteUnauthorized(w, "invalid api key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// memberResolver adapts the org service for the role middleware
func (s *Server) memberResolver() middleware.MemberResolver {
	return s.deps.Orgs
}
