// Package stubserver is a local stand-in for the playground backend. It
// serves the connection list, connection creation and an echoing chat
// endpoint so the client can be exercised without a real deployment.
package stubserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"

	"github.com/yubzen/playground/internal/logging"
	"github.com/yubzen/playground/internal/providers"
)

type Config struct {
	Addr string
	// SessionCookie and Session, when both set, are required on every
	// request; a mismatch yields 401.
	SessionCookie string
	Session       string
	// ChunkDelay spaces streamed chunks.
	ChunkDelay time.Duration
}

type Server struct {
	cfg    Config
	router *chi.Mux

	mu          sync.Mutex
	connections map[string][]providers.Connection
}

func New(cfg Config) *Server {
	s := &Server{
		cfg:         cfg,
		router:      chi.NewRouter(),
		connections: make(map[string][]providers.Connection),
	}
	s.router.Use(middleware.Recoverer)
	s.router.Use(s.requireSession)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Route("/api", func(r chi.Router) {
		r.Get("/trpc/llmApiKey.all", s.listConnections)
		r.Post("/trpc/llmApiKey.create", s.createConnection)
		r.Post("/chatCompletion", s.chatCompletion)
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Seed replaces the connections of a project.
func (s *Server) Seed(projectID string, conns ...providers.Connection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connections[projectID] = append([]providers.Connection(nil), conns...)
}

// ListenAndServe runs until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{Addr: s.cfg.Addr, Handler: s, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logging.Info().Str("addr", s.cfg.Addr).Msg("stub backend listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.SessionCookie != "" && s.cfg.Session != "" {
			c, err := r.Cookie(s.cfg.SessionCookie)
			if err != nil || c.Value != s.cfg.Session {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) listConnections(w http.ResponseWriter, r *http.Request) {
	var input struct {
		JSON struct {
			ProjectID string `json:"projectId"`
		} `json:"json"`
	}
	if err := json.Unmarshal([]byte(r.URL.Query().Get("input")), &input); err != nil || input.JSON.ProjectID == "" {
		writeError(w, http.StatusBadRequest, "projectId is required")
		return
	}

	s.mu.Lock()
	conns := append([]providers.Connection{}, s.connections[input.JSON.ProjectID]...)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, trpcResult(map[string]any{"data": conns}))
}

func (s *Server) createConnection(w http.ResponseWriter, r *http.Request) {
	var body struct {
		JSON struct {
			ProjectID string `json:"projectId"`
			providers.NewConnection
		} `json:"json"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	in := body.JSON
	if in.ProjectID == "" {
		writeError(w, http.StatusBadRequest, "projectId is required")
		return
	}
	if err := in.NewConnection.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn := providers.Connection{
		ID:                ulid.Make().String(),
		ProjectID:         in.ProjectID,
		Provider:          in.Provider,
		Adapter:           in.Adapter,
		BaseURL:           in.BaseURL,
		DisplaySecretKey:  maskSecret(in.SecretKey),
		CustomModels:      in.CustomModels,
		WithDefaultModels: in.WithDefaultModels,
	}

	s.mu.Lock()
	for _, existing := range s.connections[in.ProjectID] {
		if existing.Provider == conn.Provider {
			s.mu.Unlock()
			writeError(w, http.StatusConflict, fmt.Sprintf("connection for provider %s already exists", conn.Provider))
			return
		}
	}
	s.connections[in.ProjectID] = append(s.connections[in.ProjectID], conn)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, trpcResult(conn))
}

func (s *Server) chatCompletion(w http.ResponseWriter, r *http.Request) {
	var req providers.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONMessage(w, http.StatusBadRequest, "invalid body")
		return
	}
	if req.ModelParams.Provider == "" || req.ModelParams.Model == "" {
		writeJSONMessage(w, http.StatusBadRequest, "provider and model are required")
		return
	}
	if len(req.Messages) == 0 {
		writeJSONMessage(w, http.StatusBadRequest, "messages are required")
		return
	}

	reply := echoReply(req)
	if !req.Streaming {
		writeJSON(w, http.StatusOK, map[string]any{"content": reply, "model": req.ModelParams.Model})
		return
	}

	rc := http.NewResponseController(w)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	for _, chunk := range splitWords(reply) {
		if _, err := w.Write([]byte(chunk)); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
		if s.cfg.ChunkDelay > 0 {
			select {
			case <-r.Context().Done():
				return
			case <-time.After(s.cfg.ChunkDelay):
			}
		}
	}
}

// echoReply answers with the last user-visible message, tagged with the model.
func echoReply(req providers.ChatRequest) string {
	last := req.Messages[len(req.Messages)-1].Content
	return fmt.Sprintf("[%s/%s] %s", req.ModelParams.Provider, req.ModelParams.Model, last)
}

// splitWords keeps separators attached so the pieces concatenate back.
func splitWords(s string) []string {
	var out []string
	for len(s) > 0 {
		i := strings.IndexByte(s, ' ')
		if i < 0 {
			out = append(out, s)
			break
		}
		out = append(out, s[:i+1])
		s = s[i+1:]
	}
	return out
}

func maskSecret(secret string) string {
	if len(secret) <= 4 {
		return "..."
	}
	return "..." + secret[len(secret)-4:]
}

func trpcResult(payload any) map[string]any {
	return map[string]any{"result": map[string]any{"data": map[string]any{"json": payload}}}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError uses the tRPC error shape.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": map[string]any{"json": map[string]any{"message": message, "code": status}}})
}

func writeJSONMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
