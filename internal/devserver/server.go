// Package devserver emulates the managed backend the client talks to in
// production: password auth, collection-style query/mutate, count-only
// reads, public-URL blob storage and a websocket change feed. It exists for
// local development and for exercising the client end to end; it does not
// reimplement the real backend's row-level security.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"flocksync/internal/domain"
	"flocksync/internal/remote"
)

type Server struct {
	storage *Storage
	hub     *hub
	log     *zap.Logger
	mux     *chi.Mux
}

func New(storage *Storage, log *zap.Logger) *Server {
	s := &Server{
		storage: storage,
		hub:     newHub(log),
		log:     log,
	}
	s.mux = s.routes()
	return s
}

// Handler returns the root handler; tests mount it on httptest servers.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) routes() *chi.Mux {
	mux := chi.NewMux()
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	config := huma.DefaultConfig("FlockSync Dev Backend", "1.0.0")
	config.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {Type: "http", Scheme: "bearer"},
	}
	api := humachi.New(mux, config)

	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/api/v1/health",
		Summary:     "Health check",
		Tags:        []string{"system"},
	}, s.health)

	huma.Register(api, huma.Operation{
		OperationID: "auth-login",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/login",
		Summary:     "Password sign-in",
		Tags:        []string{"auth"},
	}, s.login)

	huma.Register(api, huma.Operation{
		OperationID: "auth-logout",
		Method:      http.MethodPost,
		Path:        "/api/v1/auth/logout",
		Summary:     "Invalidate the bearer token",
		Tags:        []string{"auth"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.logout)

	// The data plane is schemaless passthrough, so it stays on plain chi
	// handlers rather than fighting huma's typed bodies.
	mux.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/api/v1/data/{collection}/count", s.handleCount)
		r.Get("/api/v1/data/{collection}", s.handleQuery)
		r.Post("/api/v1/data/{collection}", s.handleInsert)
		r.Patch("/api/v1/data/{collection}/{id}", s.handleUpdate)
		r.Delete("/api/v1/data/{collection}/{id}", s.handleDeleteByID)
		r.Delete("/api/v1/data/{collection}", s.handleDeleteByFilter)
		r.Post("/api/v1/storage/{bucket}/*", s.handleUpload)
	})

	mux.Get("/api/v1/storage/{bucket}/*", s.handleServeObject)
	mux.Get("/api/v1/realtime", s.handleRealtime)

	return mux
}

// ---- auth (huma) ----

type healthOutput struct {
	Body struct {
		Status string `json:"status"`
	}
}

func (s *Server) health(context.Context, *struct{}) (*healthOutput, error) {
	out := &healthOutput{}
	out.Body.Status = "ok"
	return out, nil
}

type loginInput struct {
	Body struct {
		Email    string `json:"email" minLength:"1"`
		Password string `json:"password" minLength:"1"`
	}
}

type loginOutput struct {
	Body domain.Session
}

func (s *Server) login(ctx context.Context, input *loginInput) (*loginOutput, error) {
	u, err := s.storage.UserByEmail(ctx, input.Body.Email)
	if err != nil {
		if errors.Is(err, ErrNoSuchRow) {
			return nil, huma.Error401Unauthorized("invalid email or password")
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(input.Body.Password)); err != nil {
		return nil, huma.Error401Unauthorized("invalid email or password")
	}

	token := uuid.NewString()
	if err := s.storage.SaveToken(ctx, token, u.ID); err != nil {
		return nil, err
	}

	role, err := domain.ParseRole(u.Role)
	if err != nil {
		return nil, huma.Error500InternalServerError("user has an invalid role")
	}

	return &loginOutput{Body: domain.Session{
		Token: token,
		Profile: domain.Profile{
			UserID:    u.ID,
			Email:     u.Email,
			FullName:  u.FullName,
			Role:      role,
			UnitID:    u.UnitID,
			CreatedAt: u.CreatedAt,
		},
	}}, nil
}

type logoutInput struct {
	Authorization string `header:"Authorization"`
}

func (s *Server) logout(ctx context.Context, input *logoutInput) (*struct{}, error) {
	token := strings.TrimPrefix(input.Authorization, "Bearer ")
	if token != "" {
		if err := s.storage.DeleteToken(ctx, token); err != nil {
			return nil, err
		}
	}
	return &struct{}{}, nil
}

// ---- data plane (chi) ----

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token == "" {
			s.writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		if _, err := s.storage.UserIDForToken(r.Context(), token); err != nil {
			s.writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	filter, err := parseFilter(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := s.storage.QueryRows(r.Context(), collection, filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rows == nil {
		rows = []map[string]any{}
	}
	s.writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	filter, err := parseFilter(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rows, err := s.storage.QueryRows(r.Context(), collection, filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"count": len(rows)})
}

func (s *Server) handleInsert(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	row, err := s.storage.InsertRow(r.Context(), collection, payload)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.broadcastRow(collection, remote.ActionInsert, row)
	s.writeJSON(w, http.StatusCreated, row)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	id := chi.URLParam(r, "id")
	patch, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	row, err := s.storage.UpdateRow(r.Context(), collection, id, patch)
	if err != nil {
		if errors.Is(err, ErrNoSuchRow) {
			s.writeError(w, http.StatusNotFound, fmt.Sprintf("no %s row %s", collection, id))
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.broadcastRow(collection, remote.ActionUpdate, row)
	s.writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleDeleteByID(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	id := chi.URLParam(r, "id")
	s.deleteRows(w, r, collection, []remote.Predicate{{Field: "id", Op: remote.OpEq, Value: id}})
}

func (s *Server) handleDeleteByFilter(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	filter, err := parseFilter(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(filter) == 0 {
		s.writeError(w, http.StatusBadRequest, "refusing to delete without a filter")
		return
	}
	s.deleteRows(w, r, collection, filter)
}

func (s *Server) deleteRows(w http.ResponseWriter, r *http.Request, collection string, filter []remote.Predicate) {
	ids, err := s.storage.DeleteRows(r.Context(), collection, filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, id := range ids {
		s.broadcastRow(collection, remote.ActionDelete, map[string]any{"id": id})
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	objectPath := chi.URLParam(r, "*")
	if objectPath == "" {
		s.writeError(w, http.StatusBadRequest, "missing object path")
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if err := s.storage.PutObject(r.Context(), bucket, objectPath, data); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	url := fmt.Sprintf("%s://%s/api/v1/storage/%s/%s", scheme, r.Host, bucket, objectPath)
	s.writeJSON(w, http.StatusCreated, map[string]string{"url": url})
}

func (s *Server) handleServeObject(w http.ResponseWriter, r *http.Request) {
	bucket := chi.URLParam(r, "bucket")
	objectPath := chi.URLParam(r, "*")

	data, err := s.storage.GetObject(r.Context(), bucket, objectPath)
	if err != nil {
		if errors.Is(err, ErrNoSuchRow) {
			s.writeError(w, http.StatusNotFound, "no such object")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

func (s *Server) handleRealtime(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		s.writeError(w, http.StatusUnauthorized, "missing token")
		return
	}
	if _, err := s.storage.UserIDForToken(r.Context(), token); err != nil {
		s.writeError(w, http.StatusUnauthorized, "invalid token")
		return
	}
	s.hub.serve(w, r)
}

func (s *Server) broadcastRow(collection, action string, row map[string]any) {
	record, err := json.Marshal(row)
	if err != nil {
		s.log.Warn("marshal feed record", zap.Error(err))
		return
	}
	s.hub.broadcast(remote.Event{
		Table:  domain.Collection(collection),
		Action: action,
		Record: record,
	})
}

func parseFilter(r *http.Request) ([]remote.Predicate, error) {
	var filter []remote.Predicate
	for _, raw := range r.URL.Query()["filter"] {
		p, err := remote.ParsePredicate(raw)
		if err != nil {
			return nil, err
		}
		filter = append(filter, p)
	}
	return filter, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("write response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// HashPassword is what seeding and user-provisioning tools use.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CreateUser provisions one account; exposed for seeding and tests.
func (s *Server) CreateUser(ctx context.Context, email, password, fullName string, role domain.Role, unitID string) (string, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	err = s.storage.CreateUser(ctx, userRow{
		ID:           id,
		Email:        email,
		PasswordHash: hash,
		FullName:     fullName,
		Role:         string(role),
		UnitID:       unitID,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}
	return id, nil
}
