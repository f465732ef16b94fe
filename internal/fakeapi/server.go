// Package fakeapi is an in-process stand-in for the remote medical-assistant
// service. It implements every endpoint the client consumes with canned,
// deterministic answers and real bearer tokens, for tests and local
// development.
package fakeapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ModelVersion is reported in every chat reply.
const ModelVersion = "MAYBERRY-Medical-AI-v1.0"

type user struct {
	ID        string
	Email     string
	FullName  string
	Password  string
	CreatedAt time.Time
}

type fault struct {
	status int
	detail string
}

// Option configures a Server.
type Option func(*Server)

// WithSecret sets the HMAC key tokens are signed with.
func WithSecret(secret []byte) Option {
	return func(s *Server) { s.secret = secret }
}

// WithTokenTTL sets the lifetime of issued tokens.
func WithTokenTTL(ttl time.Duration) Option {
	return func(s *Server) { s.ttl = ttl }
}

// WithLatency delays every response.
func WithLatency(d time.Duration) Option {
	return func(s *Server) { s.latency = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// Server is an http.Handler serving the fake service.
type Server struct {
	router  chi.Router
	secret  []byte
	ttl     time.Duration
	latency time.Duration
	logger  *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	users     map[string]*user
	faults    map[string]fault
	encrypted int
	anonymous map[string]bool
}

// New creates a Server with no registered users.
func New(opts ...Option) *Server {
	s := &Server{
		secret:    []byte("mayberry-fake-secret"),
		ttl:       30 * time.Minute,
		logger:    slog.Default(),
		now:       time.Now,
		users:     make(map[string]*user),
		faults:    make(map[string]fault),
		anonymous: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)
	r.Use(s.injectFaults)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", s.handleRegister)
		r.Post("/login", s.handleLogin)
		r.With(s.authenticate).Get("/me", s.handleMe)
	})

	r.Route("/medical", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/chat", s.handleChat)
		r.Post("/symptom-checker", s.handleSymptomCheck)
		r.Post("/lab-analysis", s.handleLabAnalysis)
		r.Post("/second-opinion", s.handleSecondOpinion)
	})

	r.Route("/privacy", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/status", s.handlePrivacyStatus)
		r.Get("/metrics", s.handlePrivacyMetrics)
		r.Get("/compliance", s.handlePrivacyCompliance)
		r.Post("/data-export", s.handleDataExport)
		r.Delete("/data-deletion", s.handleDataDeletion)
	})

	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// AddUser registers an account directly.
func (s *Server) AddUser(email, password, fullName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[strings.ToLower(email)] = &user{
		ID:        uuid.New().String(),
		Email:     email,
		FullName:  fullName,
		Password:  password,
		CreatedAt: s.now().UTC(),
	}
}

// Fail makes every request to path answer with status and detail until
// Clear is called.
func (s *Server) Fail(path string, status int, detail string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[path] = fault{status: status, detail: detail}
}

// Clear removes all injected failures.
func (s *Server) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults = make(map[string]fault)
}

// Rotate replaces the signing key, invalidating every issued token.
func (s *Server) Rotate(secret []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secret = secret
}

func (s *Server) signingKey() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.secret
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("fake api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func (s *Server) injectFaults(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.latency > 0 {
			select {
			case <-time.After(s.latency):
			case <-r.Context().Done():
				return
			}
		}
		s.mu.Lock()
		f, ok := s.faults[r.URL.Path]
		s.mu.Unlock()
		if ok {
			writeDetail(w, f.status, f.detail)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type ctxKey struct{}

func (s *Server) issueToken(u *user) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   u.Email,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		ID:        uuid.New().String(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey())
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}

		var claims jwt.RegisteredClaims
		_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
			return s.signingKey(), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		s.mu.Lock()
		u, found := s.users[strings.ToLower(claims.Subject)]
		s.mu.Unlock()
		if !found {
			writeDetail(w, http.StatusUnauthorized, "Could not validate credentials")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, u)))
	})
}

func currentUser(r *http.Request) *user {
	u, _ := r.Context().Value(ctxKey{}).(*user)
	return u
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// fieldError is the shape of a request validation failure.
type fieldError struct {
	Loc  []string `json:"loc"`
	Msg  string   `json:"msg"`
	Type string   `json:"type"`
}

func writeFieldError(w http.ResponseWriter, field, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string][]fieldError{
		"detail": {{Loc: []string{"body", field}, Msg: msg, Type: "value_error"}},
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeFieldError(w, "body", "invalid JSON body")
		return false
	}
	return true
}

// envelope wraps privacy results as {success, data, message}.
func envelope(w http.ResponseWriter, data any, message string) {
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    data,
		"message": message,
	})
}
