package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/MrEthical07/goCampus/api"
	"github.com/MrEthical07/goCampus/jwt"
	"github.com/MrEthical07/goCampus/storage"
	"go.uber.org/zap"
)

// Storage keys owned by the store.
const (
	KeyToken    = "token"
	KeyUserInfo = "userInfo"
)

// Messages returned in a failed [Result] when the server supplied none.
const (
	MessageLoginFailed  = "login failed"
	MessageNetworkError = "network error"
)

const defaultTokenType = "Bearer"

// Authenticator performs the login call. *api.API satisfies it.
type Authenticator interface {
	Login(ctx context.Context, req api.LoginRequest) (*api.LoginResponse, error)
}

// EventKind names a session operation reported to an [Observer].
type EventKind uint8

const (
	EventLogin EventKind = iota + 1
	EventLogout
	EventCheckLogin
	EventUpdateUserInfo
	// EventStorageFailure is reported when mirroring state to storage fails. The
	// in-memory operation that triggered it still succeeded.
	EventStorageFailure
)

func (k EventKind) String() string {
	switch k {
	case EventLogin:
		return "login"
	case EventLogout:
		return "logout"
	case EventCheckLogin:
		return "check_login"
	case EventUpdateUserInfo:
		return "update_user_info"
	case EventStorageFailure:
		return "storage_failure"
	default:
		return "unknown"
	}
}

// Event describes one completed session operation.
type Event struct {
	Kind    EventKind
	Success bool
	UserID  string
	Err     error
}

// Observer receives session events synchronously. Implementations must not block.
type Observer interface {
	SessionEvent(Event)
}

// Config controls store behavior.
type Config struct {
	// BaseURL is prepended to server-relative avatar paths.
	BaseURL string
	// RejectExpired makes CheckLogin treat a token with a past expiry as absent.
	RejectExpired bool
}

// Option configures a [Store].
type Option func(*Store)

// WithObserver sets the event observer.
func WithObserver(o Observer) Option {
	return func(s *Store) { s.observer = o }
}

// WithLogger sets the logger used for best-effort storage failures.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Store is the single owner of one client's session state.
//
// Reads are served from memory. Mutations are serialized so that the in-memory state
// and the storage mirror are updated in the same order.
type Store struct {
	auth     Authenticator
	storage  storage.Storage
	cfg      Config
	observer Observer
	logger   *zap.Logger
	now      func() time.Time

	// writeMu serializes mutations including their storage writes.
	writeMu sync.Mutex

	mu    sync.RWMutex
	state State
}

// NewStore creates a logged-out store.
func NewStore(auth Authenticator, st storage.Storage, cfg Config, opts ...Option) *Store {
	s := &Store{
		auth:    auth,
		storage: st,
		cfg:     cfg,
		logger:  zap.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Token returns the bearer token, or "" when none is held. It implements
// api.TokenSource.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

// IsLogin reports whether a user is signed in.
func (s *Store) IsLogin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.IsLogin
}

// Login authenticates, replaces the session on success and mirrors it to storage.
// It never returns an error: failures are described by the [Result].
func (s *Store) Login(ctx context.Context, cred Credentials) Result {
	resp, err := s.auth.Login(ctx, api.LoginRequest{
		Username: cred.Username,
		Password: cred.Password,
		UserType: cred.UserType,
	})
	if err != nil {
		res := Result{Message: loginFailureMessage(err), Err: err}
		s.emit(Event{Kind: EventLogin, Err: err})
		return res
	}
	if resp.Token == "" {
		err := errors.New("login response carried no token")
		s.emit(Event{Kind: EventLogin, Err: err})
		return Result{Message: MessageLoginFailed, Err: err}
	}

	incoming := UserInfo{
		ID:       resp.UserID.String(),
		Name:     resp.Nickname,
		Username: resp.Username,
		Avatar:   api.NormalizeAvatarURL(s.cfg.BaseURL, resp.Avatar),
		UserType: resp.UserType,
	}
	tokenType := resp.TokenType
	if tokenType == "" {
		tokenType = defaultTokenType
	}
	expiresAt := s.expiry(resp.Token, resp.ExpiresIn)

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	base := s.state.UserInfo
	if base.ID != incoming.ID {
		base = UserInfo{}
	}
	next := State{
		UserInfo:  base.Merge(PartialFrom(incoming)),
		IsLogin:   true,
		Token:     resp.Token,
		TokenType: tokenType,
		ExpiresAt: expiresAt,
	}
	s.state = next
	s.mu.Unlock()

	s.persistToken(ctx, next.Token)
	s.persistUser(ctx, next)

	user := next.UserInfo
	s.emit(Event{Kind: EventLogin, Success: true, UserID: user.ID})
	return Result{Success: true, User: &user}
}

// Logout clears the session and removes both storage keys. It always succeeds; a
// storage failure is logged and reported to the observer.
func (s *Store) Logout(ctx context.Context) Result {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	userID := s.state.UserInfo.ID
	s.state = State{}
	s.mu.Unlock()

	s.remove(ctx, KeyToken)
	s.remove(ctx, KeyUserInfo)

	s.emit(Event{Kind: EventLogout, Success: true, UserID: userID})
	return Result{Success: true}
}

// CheckLogin restores the session from storage. Both keys must be present and
// decodable; otherwise the in-memory session is cleared, so no stale token is sent,
// while storage is left as found. A storage error counts as absence.
func (s *Store) CheckLogin(ctx context.Context) bool {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	state, err := s.load(ctx)
	if err != nil {
		s.mu.Lock()
		s.state = State{}
		s.mu.Unlock()
		if !errors.Is(err, storage.ErrNotFound) {
			s.logger.Warn("gocampus: session restore failed", zap.Error(err))
		}
		s.emit(Event{Kind: EventCheckLogin, Err: err})
		return false
	}

	s.mu.Lock()
	s.state = state
	s.mu.Unlock()

	s.emit(Event{Kind: EventCheckLogin, Success: true, UserID: state.UserInfo.ID})
	return true
}

var errTokenExpired = errors.New("stored token expired")

func (s *Store) load(ctx context.Context) (State, error) {
	token, err := s.storage.Get(ctx, KeyToken)
	if err != nil {
		return State{}, err
	}
	if token == "" {
		return State{}, storage.ErrNotFound
	}
	raw, err := s.storage.Get(ctx, KeyUserInfo)
	if err != nil {
		return State{}, err
	}
	rec, err := Decode([]byte(raw))
	if err != nil {
		return State{}, err
	}

	state := State{
		UserInfo:  rec.User,
		IsLogin:   true,
		Token:     token,
		TokenType: rec.TokenType,
		ExpiresAt: rec.ExpiresAt,
	}
	state.UserInfo.Avatar = api.NormalizeAvatarURL(s.cfg.BaseURL, state.UserInfo.Avatar)
	if state.TokenType == "" {
		state.TokenType = defaultTokenType
	}
	if state.ExpiresAt.IsZero() {
		state.ExpiresAt = jwt.ExpiresAt(token)
	}
	if s.cfg.RejectExpired && state.Expired(s.now()) {
		return State{}, errTokenExpired
	}
	return state, nil
}

// SetUserInfo merges p into the in-memory user record without touching storage.
func (s *Store) SetUserInfo(p Partial) UserInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.UserInfo = s.mergeLocked(p)
	return s.state.UserInfo
}

// UpdateUserInfo merges p into the user record and, when signed in, persists it.
// Fields p leaves nil are never cleared.
func (s *Store) UpdateUserInfo(ctx context.Context, p Partial) Result {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	s.state.UserInfo = s.mergeLocked(p)
	state := s.state
	s.mu.Unlock()

	var err error
	if state.IsLogin {
		err = s.persistUser(ctx, state)
	}
	user := state.UserInfo
	s.emit(Event{Kind: EventUpdateUserInfo, Success: err == nil, UserID: user.ID, Err: err})
	if err != nil {
		return Result{Message: err.Error(), User: &user, Err: err}
	}
	return Result{Success: true, User: &user}
}

func (s *Store) mergeLocked(p Partial) UserInfo {
	merged := s.state.UserInfo.Merge(p)
	merged.Avatar = api.NormalizeAvatarURL(s.cfg.BaseURL, merged.Avatar)
	return merged
}

func (s *Store) expiry(token string, expiresIn int64) time.Time {
	if expiresIn > 0 {
		return s.now().Add(time.Duration(expiresIn) * time.Second)
	}
	return jwt.ExpiresAt(token)
}

func (s *Store) persistToken(ctx context.Context, token string) {
	if err := s.storage.Set(ctx, KeyToken, token); err != nil {
		s.storageFailure(KeyToken, err)
	}
}

func (s *Store) persistUser(ctx context.Context, state State) error {
	data, err := Encode(Record{User: state.UserInfo, TokenType: state.TokenType, ExpiresAt: state.ExpiresAt})
	if err == nil {
		err = s.storage.Set(ctx, KeyUserInfo, string(data))
	}
	if err != nil {
		s.storageFailure(KeyUserInfo, err)
	}
	return err
}

func (s *Store) remove(ctx context.Context, key string) {
	if err := s.storage.Remove(ctx, key); err != nil {
		s.storageFailure(key, err)
	}
}

func (s *Store) storageFailure(key string, err error) {
	s.logger.Warn("gocampus: session storage write failed", zap.String("key", key), zap.Error(err))
	s.emit(Event{Kind: EventStorageFailure, Err: err})
}

func (s *Store) emit(e Event) {
	if s.observer != nil {
		s.observer.SessionEvent(e)
	}
}

// loginFailureMessage picks the user-facing text for a failed login: the server's
// message for rejections it explained, a generic text otherwise.
func loginFailureMessage(err error) string {
	apiErr, ok := api.AsError(err)
	if !ok {
		return MessageNetworkError
	}
	switch apiErr.Kind {
	case api.KindBusiness, api.KindUnauthorized:
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return MessageLoginFailed
	case api.KindDecode:
		return MessageLoginFailed
	default:
		return MessageNetworkError
	}
}
