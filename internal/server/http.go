package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"segcheck/internal/coordinator"
	"segcheck/internal/logging"
	"segcheck/internal/protocol"
)

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Connections int                       `json:"connections"`
	Sessions    []coordinator.SessionView `json:"sessions"`
	Locks       []coordinator.LockView    `json:"locks"`
}

// UnlockAllResponse is the body of POST /api/unlock_all.
type UnlockAllResponse struct {
	Count int    `json:"count"`
	Info  string `json:"info"`
}

func (s *Server) routes(staticDir string) *mux.Router {
	r := mux.NewRouter()
	r.StrictSlash(true)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.HandleFunc("/ws", s.handleWebSocket).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	api.HandleFunc("/routes", s.handleRoutes).Methods(http.MethodGet)
	api.HandleFunc("/unlock_all", authMiddleware(s.operatorToken, s.handleUnlockAll)).Methods(http.MethodPost)

	if staticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"connections": s.hub.Len(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.coord.Stats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	snap := s.coord.Status()
	s.writeJSON(w, http.StatusOK, StatusResponse{
		Connections: s.hub.Len(),
		Sessions:    snap.Sessions,
		Locks:       snap.Locks,
	})
}

func (s *Server) handleRoutes(w http.ResponseWriter, _ *http.Request) {
	var routes []string
	err := s.router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		tmpl, err := route.GetPathTemplate()
		if err != nil {
			return nil
		}
		methods, _ := route.GetMethods()
		if len(methods) > 0 {
			tmpl = strings.Join(methods, ",") + " " + tmpl
		}
		routes = append(routes, tmpl)
		return nil
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string][]string{"routes": routes})
}

func (s *Server) handleUnlockAll(w http.ResponseWriter, r *http.Request) {
	var body protocol.UnlockAllPayload
	if r.Body != nil {
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			s.writeError(w, http.StatusBadRequest, "invalid body: "+err.Error())
			return
		}
	}
	user := strings.TrimSpace(body.UserName)
	if user == "" {
		user = strings.TrimSpace(r.URL.Query().Get("user"))
	}
	if user == "" {
		user = "operator"
	}

	resp, err := s.coord.UnlockAll(r.Context(), "", user)
	if err != nil {
		status := http.StatusInternalServerError
		if coordinator.KindOf(err) == coordinator.KindValidation {
			status = http.StatusBadRequest
		}
		s.writeError(w, status, err.Error())
		return
	}
	var result protocol.UnlockResult
	if err := resp.DecodePayload(&result); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, UnlockAllResponse{Count: result.Count, Info: resp.Info})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
