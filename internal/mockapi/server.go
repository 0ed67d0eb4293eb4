// Package mockapi is an in-memory stand-in for the campus backend. It speaks the same
// envelope, paths and auth rules so the client can be exercised without a server.
package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrEthical07/goCampus/api"
	"github.com/MrEthical07/goCampus/internal/password"
	"github.com/MrEthical07/goCampus/internal/rate"
	"github.com/MrEthical07/goCampus/jwt"
)

// Config configures a [Server].
type Config struct {
	// Secret signs issued tokens. Ignored when StaticToken is set.
	Secret []byte
	// TokenTTL is reported as expiresIn and used as the JWT lifetime.
	TokenTTL time.Duration
	// StaticToken, when set, is handed out by every successful login instead of a JWT.
	StaticToken string
	// Users seeds the account table. When empty, [DefaultUsers] is used.
	Users []User
	// LoginThrottle, when set, refuses logins for accounts with too many recent
	// failures.
	LoginThrottle *rate.Limiter
	// PasswordParams sets the Argon2id cost of stored passwords. The zero value
	// means [password.MockParams].
	PasswordParams password.Params
}

// User is an account known to the mock. Password is plaintext input for seeding;
// the server keeps only PasswordHash.
type User struct {
	ID           int
	Username     string
	Password     string
	PasswordHash string
	Nickname     string
	Phone        string
	Avatar       string
	UserType     api.UserType
}

// DefaultUsers returns one account per role. Avatars are server-relative.
func DefaultUsers() []User {
	return []User{
		{ID: 1, Username: "alice", Password: "secret", Nickname: "Alice", Avatar: "/img/a.png", UserType: api.UserTypeStudent},
		{ID: 2, Username: "tina", Password: "secret", Nickname: "Tina", Avatar: "/img/t.png", UserType: api.UserTypeTeacher},
		{ID: 3, Username: "root", Password: "secret", Nickname: "Admin", UserType: api.UserTypeAdmin},
	}
}

// Server serves the mock backend. Its handler is mounted at the API root, so a test
// server URL is directly usable as the client base URL.
type Server struct {
	cfg    Config
	tokens *jwt.Manager
	hasher *password.Hasher

	mu       sync.Mutex
	users    map[int]*User
	sessions map[string]int
	nextUser int
	uploads  map[string][]byte

	students  *resource[api.Student, api.StudentInput]
	courses   *resource[api.Course, api.CourseInput]
	schedules *resource[api.Schedule, api.ScheduleInput]
	homeworks *resource[api.Homework, api.HomeworkInput]

	requests atomic.Int64
}

// New builds a server seeded with cfg.Users.
func New(cfg Config) (*Server, error) {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 2 * time.Hour
	}
	if len(cfg.Secret) == 0 {
		cfg.Secret = []byte("gocampus-mock-secret")
	}
	tokens, err := jwt.NewManager(jwt.Config{TTL: cfg.TokenTTL, Secret: cfg.Secret, Issuer: "gocampus-mock"})
	if err != nil {
		return nil, err
	}
	if cfg.PasswordParams == (password.Params{}) {
		cfg.PasswordParams = password.MockParams()
	}
	hasher, err := password.NewHasher(cfg.PasswordParams)
	if err != nil {
		return nil, err
	}
	users := cfg.Users
	if len(users) == 0 {
		users = DefaultUsers()
	}

	s := &Server{
		cfg:      cfg,
		tokens:   tokens,
		hasher:   hasher,
		users:    make(map[int]*User, len(users)),
		sessions: map[string]int{},
		uploads:  map[string][]byte{},
	}
	for i := range users {
		u := users[i]
		if u.PasswordHash == "" {
			if u.PasswordHash, err = hasher.Hash(u.Password); err != nil {
				return nil, fmt.Errorf("mockapi: seed user %q: %w", u.Username, err)
			}
		}
		u.Password = ""
		s.users[u.ID] = &u
		if u.ID > s.nextUser {
			s.nextUser = u.ID
		}
	}
	s.students = newStudents(&s.mu)
	s.courses = newCourses(&s.mu)
	s.schedules = newSchedules(&s.mu)
	s.homeworks = newHomeworks(&s.mu)
	return s, nil
}

// Requests returns how many requests the server has handled.
func (s *Server) Requests() int64 {
	return s.requests.Load()
}

// Revoke forgets token so the next call carrying it gets a 401.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// Upload returns the stored bytes of an uploaded file by its returned URL.
func (s *Server) Upload(url string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.uploads[url]
	return b, ok
}

// User returns a copy of the account with id.
func (s *Server) User(id int) (User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return User{}, false
	}
	return *u, true
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.count)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeOK(w, map[string]string{"status": "ok"})
	})
	r.Post(api.PathLogin, s.handleLogin)
	r.Post(api.PathRegister, s.handleRegister)

	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get(api.PathUserInfo, s.handleUserInfo)
		r.Put(api.PathUserUpdate, s.handleUserUpdate)
		r.Post(api.PathUploadAvatar, s.handleUploadAvatar)
		r.Post(api.PathUpload, s.handleUpload)

		s.students.mount(r, api.PathStudents)
		s.courses.mount(r, api.PathCourses)
		s.schedules.mount(r, api.PathSchedules)
		r.Post(api.PathSchedules+"/{id}/book", s.handleBook)
		s.homeworks.mount(r, api.PathHomeworks)
		r.Post(api.PathHomeworks+"/{id}/submit", s.handleSubmit)
		r.Put(api.PathHomeworks+"/{id}/grade", s.handleGrade)
	})
	return r
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.requests.Add(1)
		next.ServeHTTP(w, r)
	})
}

// Auth

type userIDKey struct{}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			writeUnauthorized(w, "missing token")
			return
		}
		id, ok := s.resolve(token)
		if !ok {
			writeUnauthorized(w, "invalid token")
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) resolve(token string) (int, bool) {
	s.mu.Lock()
	id, ok := s.sessions[token]
	s.mu.Unlock()
	if !ok {
		return 0, false
	}
	if s.cfg.StaticToken != "" && token == s.cfg.StaticToken {
		return id, true
	}
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return 0, false
	}
	sub, err := strconv.Atoi(claims.Subject)
	if err != nil || sub != id {
		return 0, false
	}
	return id, true
}

func userIDFromContext(ctx context.Context) int {
	id, _ := ctx.Value(userIDKey{}).(int)
	return id
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

// Envelope helpers

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Code: api.CodeOK, Message: "success", Data: data})
}

// writeFail answers with transport 200 and a non-200 business code.
func writeFail(w http.ResponseWriter, code int, message string) {
	writeJSON(w, http.StatusOK, envelope{Code: code, Message: message})
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusUnauthorized, envelope{Code: http.StatusUnauthorized, Message: message})
}

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("empty body")
	}
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	return dec.Decode(v)
}
