package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/sleads/portal/pkg/httputil"
	"github.com/sleads/portal/pkg/middleware"
)

// login redirects the browser to the provider's consent screen
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	if s.deps.Authenticator == nil {
		httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, "authentication is not configured")
		return
	}

	provider, ok := httputil.ParsePathStringOrError(w, r, "provider")
	if !ok {
		return
	}

	state := httputil.ParseQueryString(r, "state", "")
	url, err := s.deps.Authenticator.AuthCodeURL(provider, state)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

// callback exchanges the authorization code for an ID token
func (s *Server) callback(w http.ResponseWriter, r *http.Request) {
	if s.deps.Authenticator == nil {
		httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, "authentication is not configured")
		return
	}

	provider := mux.Vars(r)["provider"]
	code := r.URL.Query().Get("code")
	if code == "" {
		httputil.WriteBadRequest(w, "missing authorization code")
		return
	}

	user, idToken, err := s.deps.Authenticator.Exchange(r.Context(), provider, code)
	if err != nil {
		httputil.WriteUnauthorized(w, "authentication failed")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"token": idToken,
		"user":  user,
	})
}

func (s *Server) registerAuthRoutes(v1 *mux.Router) {
	v1.HandleFunc("/me", s.me).Methods("GET")
}

// me returns the authenticated identity
func (s *Server) me(w http.ResponseWriter, r *http.Request) {
	authCtx := middleware.GetAuthContext(r)
	if authCtx == nil {
		httputil.WriteUnauthorized(w, "Unauthorized")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, authCtx.User)
}
