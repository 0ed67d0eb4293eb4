package mockapi

import (
	"errors"
	"io"
	"net/http"
	"path"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/goCampus/api"
	"github.com/MrEthical07/goCampus/internal/rate"
)

const maxUploadBytes = 8 << 20

type loginData struct {
	UserID    int          `json:"userId"`
	Nickname  string       `json:"nickname"`
	Username  string       `json:"username"`
	Token     string       `json:"token"`
	TokenType string       `json:"tokenType"`
	ExpiresIn int64        `json:"expiresIn"`
	Avatar    string       `json:"avatar"`
	UserType  api.UserType `json:"userType"`
}

type profileData struct {
	ID       int          `json:"id"`
	Name     string       `json:"name"`
	Nickname string       `json:"nickname"`
	Username string       `json:"username"`
	Phone    string       `json:"phone,omitempty"`
	Avatar   string       `json:"avatar"`
	UserType api.UserType `json:"userType"`
}

func profileOf(u *User) profileData {
	return profileData{
		ID:       u.ID,
		Name:     u.Nickname,
		Nickname: u.Nickname,
		Username: u.Username,
		Phone:    u.Phone,
		Avatar:   u.Avatar,
		UserType: u.UserType,
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	throttle := s.cfg.LoginThrottle
	if throttle != nil {
		if err := throttle.Check(r.Context(), req.Username); err != nil {
			writeThrottled(w, err)
			return
		}
	}

	s.mu.Lock()
	var user *User
	for _, u := range s.users {
		if u.Username == req.Username {
			found := *u
			user = &found
			break
		}
	}
	s.mu.Unlock()

	if user == nil || !s.passwordMatches(req.Password, user.PasswordHash) {
		if throttle != nil {
			if err := throttle.Fail(r.Context(), req.Username); errors.Is(err, rate.ErrRedisUnavailable) {
				writeThrottled(w, err)
				return
			}
		}
		writeFail(w, http.StatusBadRequest, "invalid username or password")
		return
	}
	if throttle != nil {
		_ = throttle.Reset(r.Context(), req.Username)
	}
	if req.UserType != 0 && req.UserType != user.UserType {
		writeFail(w, http.StatusBadRequest, "user type mismatch")
		return
	}

	token := s.cfg.StaticToken
	if token == "" {
		issued, _, err := s.tokens.Issue(strconv.Itoa(user.ID), user.Username, int(user.UserType), time.Now())
		if err != nil {
			writeFail(w, http.StatusInternalServerError, "token issue failed")
			return
		}
		token = issued
	}

	s.mu.Lock()
	s.sessions[token] = user.ID
	s.mu.Unlock()

	writeOK(w, loginData{
		UserID:    user.ID,
		Nickname:  user.Nickname,
		Username:  user.Username,
		Token:     token,
		TokenType: "Bearer",
		ExpiresIn: int64(s.tokens.TTL() / time.Second),
		Avatar:    user.Avatar,
		UserType:  user.UserType,
	})
}

func (s *Server) passwordMatches(pw, hash string) bool {
	ok, err := s.hasher.Verify(pw, hash)
	return err == nil && ok
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterRequest
	if err := decodeBody(r, &req); err != nil || req.Username == "" || req.Password == "" {
		writeFail(w, http.StatusBadRequest, "username and password are required")
		return
	}
	if !req.UserType.Valid() {
		req.UserType = api.UserTypeStudent
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		writeFail(w, http.StatusInternalServerError, "password hashing failed")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == req.Username {
			writeFail(w, http.StatusConflict, "username already exists")
			return
		}
	}
	s.nextUser++
	u := &User{
		ID:           s.nextUser,
		Username:     req.Username,
		PasswordHash: hash,
		Nickname:     req.Nickname,
		Phone:        req.Phone,
		UserType:     req.UserType,
	}
	s.users[u.ID] = u
	writeOK(w, map[string]int{"userId": u.ID})
}

func (s *Server) handleUserInfo(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	u, ok := s.users[userIDFromContext(r.Context())]
	var out profileData
	if ok {
		out = profileOf(u)
	}
	s.mu.Unlock()

	if !ok {
		writeFail(w, http.StatusNotFound, "user not found")
		return
	}
	writeOK(w, out)
}

func (s *Server) handleUserUpdate(w http.ResponseWriter, r *http.Request) {
	var req api.ProfileUpdate
	if err := decodeBody(r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userIDFromContext(r.Context())]
	if !ok {
		writeFail(w, http.StatusNotFound, "user not found")
		return
	}
	if req.Nickname != nil {
		u.Nickname = *req.Nickname
	}
	if req.Phone != nil {
		u.Phone = *req.Phone
	}
	if req.Avatar != nil {
		u.Avatar = *req.Avatar
	}
	writeOK(w, profileOf(u))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	url, name, ok := s.storeUpload(w, r, "file", "/uploads/")
	if !ok {
		return
	}
	writeOK(w, api.UploadResult{URL: url, FileName: name})
}

func (s *Server) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	url, _, ok := s.storeUpload(w, r, "avatar", "/img/avatars/")
	if !ok {
		return
	}
	caller := userIDFromContext(r.Context())
	if target := r.FormValue("userId"); target != "" && target != strconv.Itoa(caller) {
		writeFail(w, http.StatusForbidden, "cannot change another user's avatar")
		return
	}

	s.mu.Lock()
	if u, found := s.users[caller]; found {
		u.Avatar = url
	}
	s.mu.Unlock()
	writeOK(w, api.UploadResult{URL: url, Avatar: url})
}

// storeUpload reads the multipart file under field and keeps it in memory. It writes
// the failure response itself and reports ok=false when the upload is unusable.
func (s *Server) storeUpload(w http.ResponseWriter, r *http.Request, field, prefix string) (string, string, bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid multipart body")
		return "", "", false
	}
	f, header, err := r.FormFile(field)
	if err != nil {
		writeFail(w, http.StatusBadRequest, "missing "+field+" field")
		return "", "", false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
	if err != nil {
		writeFail(w, http.StatusBadRequest, "unreadable upload")
		return "", "", false
	}
	name := path.Base(header.Filename)
	url := prefix + uuid.NewString() + "/" + name

	s.mu.Lock()
	s.uploads[url] = data
	s.mu.Unlock()
	return url, name, true
}

func writeThrottled(w http.ResponseWriter, err error) {
	if errors.Is(err, rate.ErrRateLimited) {
		writeFail(w, http.StatusTooManyRequests, "too many login attempts, try again later")
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, envelope{Code: http.StatusServiceUnavailable, Message: "login temporarily unavailable"})
}
