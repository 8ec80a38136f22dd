// Package gateway exposes the HTTP API: chat turns, recipe submissions,
// task listings, credential management, and the OAuth connect flow.
package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bronhq/bron/internal/discovery"
	"github.com/bronhq/bron/internal/executor"
	"github.com/bronhq/bron/internal/oauth"
	"github.com/bronhq/bron/internal/orchestrator"
	"github.com/bronhq/bron/internal/store"
)

// Options configures a Server.
type Options struct {
	Store        *store.Store
	Orchestrator *orchestrator.Orchestrator
	Executor     *executor.Executor
	OAuthStates  *oauth.StateStore
	Logger       *slog.Logger
}

// Server is the HTTP API surface.
type Server struct {
	store  *store.Store
	orch   *orchestrator.Orchestrator
	exec   *executor.Executor
	states *oauth.StateStore
	log    *slog.Logger
	mux    *http.ServeMux
}

// New builds the server and its routes.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.OAuthStates == nil {
		opts.OAuthStates = oauth.NewStateStore(0)
	}
	s := &Server{
		store:  opts.Store,
		orch:   opts.Orchestrator,
		exec:   opts.Executor,
		states: opts.OAuthStates,
		log:    opts.Logger,
		mux:    http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /api/agents", s.handleCreateAgent)
	s.mux.HandleFunc("POST /api/chat/{agentID}", s.handleChat)
	s.mux.HandleFunc("POST /api/recipes/{id}/submit", s.handleRecipeSubmit)
	s.mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	s.mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)
	s.mux.HandleFunc("GET /api/credentials", s.handleListCredentials)
	s.mux.HandleFunc("POST /api/credentials", s.handleStoreCredential)
	s.mux.HandleFunc("DELETE /api/credentials", s.handleRevokeCredentials)
	s.mux.HandleFunc("GET /api/oauth/start", s.handleOAuthStart)
	s.mux.HandleFunc("POST /api/oauth/callback", s.handleOAuthCallback)
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
		Name   string `json:"name"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}
	agent, err := s.store.CreateAgent(req.UserID, req.Name)
	if err != nil {
		s.serverError(w, "create agent", err)
		return
	}
	writeJSON(w, http.StatusCreated, agent)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("agentID")
	var req struct {
		Message string `json:"message"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message required", http.StatusBadRequest)
		return
	}
	result, err := s.orch.ProcessUserMessage(r.Context(), agentID, req.Message)
	if err != nil {
		if isNotFound(err) {
			http.Error(w, "agent not found", http.StatusNotFound)
			return
		}
		s.serverError(w, "process message", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleRecipeSubmit(w http.ResponseWriter, r *http.Request) {
	recipeID := r.PathValue("id")
	var req struct {
		Data map[string]any `json:"data"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	result, err := s.orch.HandleRecipeSubmission(r.Context(), recipeID, req.Data)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrAlreadySubmitted):
			http.Error(w, "recipe already submitted", http.StatusConflict)
		case isNotFound(err):
			http.Error(w, "recipe not found", http.StatusNotFound)
		default:
			s.serverError(w, "submit recipe", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	agentID := r.URL.Query().Get("agent")
	if agentID == "" {
		http.Error(w, "agent query parameter required", http.StatusBadRequest)
		return
	}
	tasks, err := s.store.ListTasks(agentID)
	if err != nil {
		s.serverError(w, "list tasks", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": tasks})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	task, err := s.store.GetTask(r.PathValue("id"))
	if err != nil {
		if isNotFound(err) {
			http.Error(w, "task not found", http.StatusNotFound)
			return
		}
		s.serverError(w, "get task", err)
		return
	}
	steps, err := s.store.ListTaskSteps(task.ID)
	if err != nil {
		s.serverError(w, "list steps", err)
		return
	}
	recipes, err := s.store.ListTaskRecipes(task.ID)
	if err != nil {
		s.serverError(w, "list recipes", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"task":    task,
		"steps":   steps,
		"recipes": recipes,
	})
}

func (s *Server) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		http.Error(w, "user query parameter required", http.StatusBadRequest)
		return
	}
	creds, err := s.exec.ListCredentials(userID)
	if err != nil {
		s.serverError(w, "list credentials", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"credentials": creds})
}

func (s *Server) handleStoreCredential(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID       string `json:"user_id"`
		Provider     string `json:"provider"`
		Type         string `json:"type"`
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		Scopes       string `json:"scopes"`
		ExpiresIn    int    `json:"expires_in"`
		APIKey       string `json:"api_key"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.UserID == "" || req.Provider == "" {
		http.Error(w, "user_id and provider required", http.StatusBadRequest)
		return
	}

	var cred *store.Credential
	var err error
	switch req.Type {
	case "oauth", string(store.CredOAuthToken):
		if req.AccessToken == "" {
			http.Error(w, "access_token required", http.StatusBadRequest)
			return
		}
		cred, err = s.exec.StoreOAuthCredential(req.UserID, req.Provider, req.AccessToken, req.RefreshToken, req.Scopes, req.ExpiresIn)
	case string(store.CredAPIKey):
		if req.APIKey == "" {
			http.Error(w, "api_key required", http.StatusBadRequest)
			return
		}
		cred, err = s.exec.StoreAPIKeyCredential(req.UserID, req.Provider, req.APIKey)
	default:
		http.Error(w, "type must be oauth or api_key", http.StatusBadRequest)
		return
	}
	if err != nil {
		s.serverError(w, "store credential", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       cred.ID,
		"provider": cred.Provider,
		"type":     cred.Type,
	})
}

func (s *Server) handleRevokeCredentials(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	provider := r.URL.Query().Get("provider")
	if userID == "" || provider == "" {
		http.Error(w, "user and provider query parameters required", http.StatusBadRequest)
		return
	}
	n, err := s.exec.RevokeCredential(userID, provider)
	if err != nil {
		s.serverError(w, "revoke credentials", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revoked": n})
}

func (s *Server) handleOAuthStart(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	key := r.URL.Query().Get("provider")
	if userID == "" || key == "" {
		http.Error(w, "user and provider query parameters required", http.StatusBadRequest)
		return
	}
	api, ok := discovery.Info(key)
	if !ok {
		http.Error(w, "unknown provider", http.StatusNotFound)
		return
	}
	if api.AuthType != "oauth" {
		http.Error(w, "provider does not use oauth", http.StatusBadRequest)
		return
	}
	state := s.states.Issue(userID, key)
	writeJSON(w, http.StatusOK, map[string]any{
		"state":     state,
		"provider":  api.Key,
		"component": discovery.AuthComponent(api),
		"scopes":    api.Scopes,
	})
}

// handleOAuthCallback finishes a connect flow. The caller has already
// exchanged the authorization code and posts the resulting tokens along
// with the state issued by handleOAuthStart.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		State        string `json:"state"`
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		Scopes       string `json:"scopes"`
		ExpiresIn    int    `json:"expires_in"`
	}
	if err := decodeBody(r, &req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.AccessToken == "" {
		http.Error(w, "access_token required", http.StatusBadRequest)
		return
	}
	userID, provider, err := s.states.Consume(req.State)
	if err != nil {
		http.Error(w, "invalid or expired state", http.StatusUnauthorized)
		return
	}
	cred, err := s.exec.StoreOAuthCredential(userID, provider, req.AccessToken, req.RefreshToken, req.Scopes, req.ExpiresIn)
	if err != nil {
		s.serverError(w, "store oauth credential", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":       cred.ID,
		"provider": cred.Provider,
	})
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	s.log.Error("gateway request failed", "op", op, "error", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func decodeBody(r *http.Request, dst any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func isNotFound(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not found")
}
