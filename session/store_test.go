package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/goCampus/api"
	"github.com/MrEthical07/goCampus/storage"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
)

const testBase = "https://campus.example/api"

type fakeAuth struct {
	resp  *api.LoginResponse
	err   error
	calls int
	last  api.LoginRequest
}

func (f *fakeAuth) Login(_ context.Context, req api.LoginRequest) (*api.LoginResponse, error) {
	f.calls++
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	out := *f.resp
	return &out, nil
}

type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) SessionEvent(e Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) kinds() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventKind, 0, len(l.events))
	for _, e := range l.events {
		out = append(out, e.Kind)
	}
	return out
}

// failingStorage rejects every call.
type failingStorage struct{}

func (failingStorage) Get(context.Context, string) (string, error) { return "", storage.ErrUnavailable }
func (failingStorage) Set(context.Context, string, string) error   { return storage.ErrUnavailable }
func (failingStorage) Remove(context.Context, string) error        { return storage.ErrUnavailable }

func aliceResponse() *api.LoginResponse {
	return &api.LoginResponse{
		UserID:   "1",
		Nickname: "Alice",
		Username: "alice",
		Token:    "tok123",
		Avatar:   "/img/a.png",
		UserType: api.UserTypeStudent,
	}
}

func newTestStore(t *testing.T, auth Authenticator, st storage.Storage, opts ...Option) *Store {
	t.Helper()
	return NewStore(auth, st, Config{BaseURL: testBase}, opts...)
}

func TestLoginSuccessPopulatesStateAndStorage(t *testing.T) {
	mem := storage.NewMemory()
	auth := &fakeAuth{resp: aliceResponse()}
	events := &eventLog{}
	s := newTestStore(t, auth, mem, WithObserver(events))
	ctx := context.Background()

	res := s.Login(ctx, Credentials{Username: "alice", Password: "pw", UserType: api.UserTypeStudent})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if auth.last.Username != "alice" || auth.last.Password != "pw" || auth.last.UserType != api.UserTypeStudent {
		t.Fatalf("unexpected login request %+v", auth.last)
	}

	want := UserInfo{ID: "1", Name: "Alice", Username: "alice", Avatar: testBase + "/img/a.png", UserType: api.UserTypeStudent}
	if diff := cmp.Diff(want, *res.User); diff != "" {
		t.Fatalf("result user mismatch (-want +got):\n%s", diff)
	}

	state := s.Snapshot()
	if !state.IsLogin || state.Token != "tok123" || state.TokenType != "Bearer" {
		t.Fatalf("unexpected state %+v", state)
	}
	if diff := cmp.Diff(want, state.UserInfo); diff != "" {
		t.Fatalf("state user mismatch (-want +got):\n%s", diff)
	}

	token, err := mem.Get(ctx, KeyToken)
	if err != nil || token != "tok123" {
		t.Fatalf("expected stored token tok123, got %q (%v)", token, err)
	}
	raw, err := mem.Get(ctx, KeyUserInfo)
	if err != nil {
		t.Fatalf("expected stored userInfo: %v", err)
	}
	rec, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode stored userInfo: %v", err)
	}
	if diff := cmp.Diff(want, rec.User); diff != "" {
		t.Fatalf("stored user mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff([]EventKind{EventLogin}, events.kinds()); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestLoginExpiresInSetsExpiry(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	resp := aliceResponse()
	resp.ExpiresIn = 3600
	s := newTestStore(t, &fakeAuth{resp: resp}, storage.NewMemory(), WithClock(func() time.Time { return now }))

	if res := s.Login(context.Background(), Credentials{Username: "alice"}); !res.Success {
		t.Fatalf("login failed: %+v", res)
	}
	if got := s.Snapshot().ExpiresAt; !got.Equal(now.Add(time.Hour)) {
		t.Fatalf("expected expiry %v, got %v", now.Add(time.Hour), got)
	}
}

func TestLoginFailureMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "business with message", err: &api.Error{Kind: api.KindBusiness, Status: 200, Code: 400, Message: "wrong password"}, want: "wrong password"},
		{name: "business without message", err: &api.Error{Kind: api.KindBusiness, Status: 200, Code: 500}, want: MessageLoginFailed},
		{name: "unauthorized", err: &api.Error{Kind: api.KindUnauthorized, Status: 401}, want: MessageLoginFailed},
		{name: "undecodable body", err: &api.Error{Kind: api.KindDecode, Status: 200}, want: MessageLoginFailed},
		{name: "transport", err: &api.Error{Kind: api.KindTransport, Err: errors.New("dial tcp: refused")}, want: MessageNetworkError},
		{name: "http status", err: &api.Error{Kind: api.KindHTTPStatus, Status: 502}, want: MessageNetworkError},
		{name: "foreign error", err: errors.New("boom"), want: MessageNetworkError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mem := storage.NewMemory()
			s := newTestStore(t, &fakeAuth{err: tc.err}, mem)
			res := s.Login(context.Background(), Credentials{Username: "alice"})
			if res.Success || res.Message != tc.want || res.Err == nil {
				t.Fatalf("expected failure %q, got %+v", tc.want, res)
			}
			if s.IsLogin() || s.Token() != "" {
				t.Fatalf("failed login must not change state: %+v", s.Snapshot())
			}
			if mem.Len() != 0 {
				t.Fatalf("failed login must not write storage, have %d keys", mem.Len())
			}
		})
	}
}

func TestLoginWithoutTokenFails(t *testing.T) {
	resp := aliceResponse()
	resp.Token = ""
	s := newTestStore(t, &fakeAuth{resp: resp}, storage.NewMemory())

	res := s.Login(context.Background(), Credentials{Username: "alice"})
	if res.Success || res.Message != MessageLoginFailed {
		t.Fatalf("expected failure, got %+v", res)
	}
	if s.IsLogin() {
		t.Fatal("login flag set without a token")
	}
}

func TestLoginKeepsSameUserFieldsAndResetsOnUserChange(t *testing.T) {
	auth := &fakeAuth{resp: aliceResponse()}
	s := newTestStore(t, auth, storage.NewMemory())
	ctx := context.Background()

	s.Login(ctx, Credentials{Username: "alice"})
	s.UpdateUserInfo(ctx, Partial{Phone: Ptr("555-0100")})

	s.Login(ctx, Credentials{Username: "alice"})
	if got := s.Snapshot().UserInfo.Phone; got != "555-0100" {
		t.Fatalf("re-login of same user dropped phone, got %q", got)
	}

	auth.resp = &api.LoginResponse{UserID: "2", Nickname: "Bob", Username: "bob", Token: "tok456", UserType: api.UserTypeTeacher}
	s.Login(ctx, Credentials{Username: "bob"})
	want := UserInfo{ID: "2", Name: "Bob", Username: "bob", UserType: api.UserTypeTeacher}
	if diff := cmp.Diff(want, s.Snapshot().UserInfo); diff != "" {
		t.Fatalf("user switch leaked fields (-want +got):\n%s", diff)
	}
}

func TestLoginStorageFailureIsBestEffort(t *testing.T) {
	events := &eventLog{}
	s := newTestStore(t, &fakeAuth{resp: aliceResponse()}, failingStorage{}, WithObserver(events))

	res := s.Login(context.Background(), Credentials{Username: "alice"})
	if !res.Success || !s.IsLogin() {
		t.Fatalf("storage failure must not fail login: %+v", res)
	}
	want := []EventKind{EventStorageFailure, EventStorageFailure, EventLogin}
	if diff := cmp.Diff(want, events.kinds()); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestLogoutThenCheckLogin(t *testing.T) {
	mem := storage.NewMemory()
	s := newTestStore(t, &fakeAuth{resp: aliceResponse()}, mem)
	ctx := context.Background()

	s.Login(ctx, Credentials{Username: "alice"})
	if res := s.Logout(ctx); !res.Success {
		t.Fatalf("logout failed: %+v", res)
	}
	if mem.Len() != 0 {
		t.Fatalf("expected storage to be empty, have %d keys", mem.Len())
	}
	if s.CheckLogin(ctx) {
		t.Fatal("expected CheckLogin to report logged out")
	}
	if diff := cmp.Diff(State{}, s.Snapshot()); diff != "" {
		t.Fatalf("expected empty state (-want +got):\n%s", diff)
	}
}

func TestLogoutAlwaysSucceeds(t *testing.T) {
	s := newTestStore(t, &fakeAuth{resp: aliceResponse()}, failingStorage{})
	if res := s.Logout(context.Background()); !res.Success {
		t.Fatalf("logout must succeed even when storage fails: %+v", res)
	}
}

func TestCheckLoginRestoresFromStorage(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()
	first := newTestStore(t, &fakeAuth{resp: aliceResponse()}, mem)
	first.Login(ctx, Credentials{Username: "alice"})

	second := newTestStore(t, &fakeAuth{}, mem)
	if !second.CheckLogin(ctx) {
		t.Fatal("expected session to be restored")
	}
	if diff := cmp.Diff(first.Snapshot(), second.Snapshot()); diff != "" {
		t.Fatalf("restored state mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckLoginRequiresBothKeys(t *testing.T) {
	ctx := context.Background()
	user, err := Encode(Record{User: UserInfo{ID: "1", Name: "Alice"}})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	cases := map[string]map[string]string{
		"token only":     {KeyToken: "tok123"},
		"userInfo only":  {KeyUserInfo: string(user)},
		"empty token":    {KeyToken: "", KeyUserInfo: string(user)},
		"corrupt record": {KeyToken: "tok123", KeyUserInfo: "{not json"},
		"future schema":  {KeyToken: "tok123", KeyUserInfo: `{"v":9,"user":{}}`},
	}
	for name, seed := range cases {
		t.Run(name, func(t *testing.T) {
			mem := storage.NewMemory()
			for k, v := range seed {
				if err := mem.Set(ctx, k, v); err != nil {
					t.Fatalf("seed %s: %v", k, err)
				}
			}
			s := newTestStore(t, &fakeAuth{}, mem)
			if s.CheckLogin(ctx) {
				t.Fatal("expected logged out")
			}
			if s.IsLogin() {
				t.Fatal("login flag must be false")
			}
		})
	}
}

func TestCheckLoginFailureDropsStaleToken(t *testing.T) {
	var gotAuth []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = append(gotAuth, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"code":200,"data":{}}`))
	}))
	defer srv.Close()

	mem := storage.NewMemory()
	s := newTestStore(t, &fakeAuth{resp: aliceResponse()}, mem)
	gw, err := api.NewGateway(srv.URL, api.WithHTTPClient(srv.Client()), api.WithTokenSource(s))
	if err != nil {
		t.Fatalf("NewGateway: %v", err)
	}
	ctx := context.Background()

	s.Login(ctx, Credentials{Username: "alice"})
	if _, err := gw.Request(ctx, api.Options{Method: http.MethodGet, URL: "/user/info"}); err != nil {
		t.Fatalf("request: %v", err)
	}

	if err := mem.Remove(ctx, KeyToken); err != nil {
		t.Fatalf("remove token: %v", err)
	}
	if s.CheckLogin(ctx) {
		t.Fatal("expected CheckLogin to fail without a token")
	}
	if tok := s.Token(); tok != "" {
		t.Fatalf("expected no token after failed restore, got %q", tok)
	}
	if diff := cmp.Diff(State{}, s.Snapshot()); diff != "" {
		t.Fatalf("expected empty state (-want +got):\n%s", diff)
	}
	if _, err := mem.Get(ctx, KeyUserInfo); err != nil {
		t.Fatalf("failed restore must not touch storage: %v", err)
	}

	if _, err := gw.Request(ctx, api.Options{Method: http.MethodGet, URL: "/user/info"}); err != nil {
		t.Fatalf("request: %v", err)
	}
	want := []string{"Bearer tok123", ""}
	if diff := cmp.Diff(want, gotAuth); diff != "" {
		t.Fatalf("authorization headers mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckLoginRejectExpiredClearsMemory(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()
	s := NewStore(&fakeAuth{resp: aliceResponse()}, mem, Config{BaseURL: testBase, RejectExpired: true})
	s.Login(ctx, Credentials{Username: "alice"})

	rec, _ := Encode(Record{User: UserInfo{ID: "1"}, ExpiresAt: time.Now().Add(-time.Minute)})
	_ = mem.Set(ctx, KeyUserInfo, string(rec))

	if s.CheckLogin(ctx) {
		t.Fatal("expected expired token to be rejected")
	}
	if s.Token() != "" || s.Snapshot().UserInfo.ID != "" {
		t.Fatalf("expected cleared memory, got %+v", s.Snapshot())
	}
}

func TestCheckLoginStorageErrorIsLoggedOut(t *testing.T) {
	s := newTestStore(t, &fakeAuth{}, failingStorage{})
	if s.CheckLogin(context.Background()) {
		t.Fatal("expected storage error to count as logged out")
	}
}

func TestCheckLoginMigratesLegacyRecord(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()
	_ = mem.Set(ctx, KeyToken, "tok123")
	_ = mem.Set(ctx, KeyUserInfo, `{"id":7,"name":"Tina","role":"teacher","avatar":"/img/t.png","phone":"123"}`)

	s := newTestStore(t, &fakeAuth{}, mem)
	if !s.CheckLogin(ctx) {
		t.Fatal("expected legacy record to restore")
	}
	want := UserInfo{ID: "7", Name: "Tina", Phone: "123", Avatar: testBase + "/img/t.png", UserType: api.UserTypeTeacher}
	if diff := cmp.Diff(want, s.Snapshot().UserInfo); diff != "" {
		t.Fatalf("legacy migration mismatch (-want +got):\n%s", diff)
	}
}

func TestCheckLoginRejectExpired(t *testing.T) {
	mem := storage.NewMemory()
	ctx := context.Background()
	now := time.Now()
	rec, _ := Encode(Record{User: UserInfo{ID: "1"}, ExpiresAt: now.Add(-time.Minute)})
	_ = mem.Set(ctx, KeyToken, "tok123")
	_ = mem.Set(ctx, KeyUserInfo, string(rec))

	lenient := NewStore(&fakeAuth{}, mem, Config{BaseURL: testBase})
	if !lenient.CheckLogin(ctx) {
		t.Fatal("expired token restores unless RejectExpired is set")
	}

	strict := NewStore(&fakeAuth{}, mem, Config{BaseURL: testBase, RejectExpired: true})
	if strict.CheckLogin(ctx) {
		t.Fatal("expected expired token to be rejected")
	}
}

func TestUpdateUserInfoNeverClearsUnspecifiedFields(t *testing.T) {
	mem := storage.NewMemory()
	s := newTestStore(t, &fakeAuth{resp: aliceResponse()}, mem)
	ctx := context.Background()
	s.Login(ctx, Credentials{Username: "alice"})

	res := s.UpdateUserInfo(ctx, Partial{Name: Ptr("Alice L."), Avatar: Ptr("/img/b.png")})
	if !res.Success {
		t.Fatalf("update failed: %+v", res)
	}
	want := UserInfo{ID: "1", Name: "Alice L.", Username: "alice", Avatar: testBase + "/img/b.png", UserType: api.UserTypeStudent}
	if diff := cmp.Diff(want, *res.User); diff != "" {
		t.Fatalf("merge mismatch (-want +got):\n%s", diff)
	}

	raw, _ := mem.Get(ctx, KeyUserInfo)
	rec, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if diff := cmp.Diff(want, rec.User); diff != "" {
		t.Fatalf("persisted merge mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateUserInfoWhileLoggedOutStaysInMemory(t *testing.T) {
	mem := storage.NewMemory()
	s := newTestStore(t, &fakeAuth{}, mem)

	res := s.UpdateUserInfo(context.Background(), Partial{Name: Ptr("Guest")})
	if !res.Success || res.User.Name != "Guest" {
		t.Fatalf("unexpected result %+v", res)
	}
	if mem.Len() != 0 {
		t.Fatal("logged-out update must not write storage")
	}
}

func TestSetUserInfoNormalizesAvatar(t *testing.T) {
	s := newTestStore(t, &fakeAuth{}, storage.NewMemory())
	got := s.SetUserInfo(Partial{Avatar: Ptr("/img/c.png")})
	if got.Avatar != testBase+"/img/c.png" {
		t.Fatalf("unexpected avatar %q", got.Avatar)
	}
	again := s.SetUserInfo(Partial{Avatar: Ptr(got.Avatar)})
	if again.Avatar != got.Avatar {
		t.Fatalf("normalization not idempotent: %q", again.Avatar)
	}
}

func TestConcurrentReadsDuringMutations(t *testing.T) {
	s := newTestStore(t, &fakeAuth{resp: aliceResponse()}, storage.NewMemory())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.Login(ctx, Credentials{Username: "alice"})
			s.Logout(ctx)
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				st := s.Snapshot()
				if st.IsLogin && st.Token == "" {
					t.Error("observed logged-in state without token")
					return
				}
			}
		}()
	}
	wg.Wait()
}

// TestAliceLoginAgainstServer drives the store through a real gateway. The server
// answers with a server-relative avatar which must come back absolute.
func TestAliceLoginAgainstServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != api.PathLogin {
			http.NotFound(w, r)
			return
		}
		var req api.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username != "alice" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"code":200,"data":{"userId":1,"nickname":"Alice","username":"alice","token":"tok123","avatar":"/img/a.png","userType":1}}`))
	}))
	defer srv.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	st := storage.NewRedis(rdb, "campus")

	var s *Store
	gw, err := api.NewGateway(srv.URL, api.WithTokenSource(api.TokenFunc(func() string { return s.Token() })))
	if err != nil {
		t.Fatalf("new gateway: %v", err)
	}
	s = NewStore(api.New(gw), st, Config{BaseURL: gw.BaseURL()})

	res := s.Login(context.Background(), Credentials{Username: "alice", Password: "secret", UserType: api.UserTypeStudent})
	if !res.Success {
		t.Fatalf("login failed: %+v", res)
	}
	if got, want := res.User.Avatar, srv.URL+"/img/a.png"; got != want {
		t.Fatalf("expected avatar %q, got %q", want, got)
	}
	if token, _ := mr.Get("campus:token"); token != "tok123" {
		t.Fatalf("expected token tok123 in redis, got %q", token)
	}
	if !mr.Exists("campus:userInfo") {
		t.Fatal("expected userInfo in redis")
	}
}
