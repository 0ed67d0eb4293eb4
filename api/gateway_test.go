package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trace struct {
	mu     sync.Mutex
	events []string
	kinds  []Kind
}

func (tr *trace) add(e string) {
	tr.mu.Lock()
	tr.events = append(tr.events, e)
	tr.mu.Unlock()
}

func (tr *trace) Begin(context.Context) { tr.add("begin") }
func (tr *trace) End(context.Context)   { tr.add("end") }
func (tr *trace) React(_ context.Context, err *Error) {
	tr.add("react:" + err.Kind.String())
}
func (tr *trace) ObserveRequest(k Kind, _ time.Duration) {
	tr.mu.Lock()
	tr.kinds = append(tr.kinds, k)
	tr.mu.Unlock()
}
func (tr *trace) ObserveUpload(k Kind, d time.Duration) { tr.ObserveRequest(k, d) }

func newTestGateway(t *testing.T, h http.HandlerFunc, opts ...Option) (*Gateway, *trace) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	tr := &trace{}
	all := append([]Option{WithLoading(tr), WithReactor(tr), WithObserver(tr)}, opts...)
	gw, err := NewGateway(srv.URL+"/api/", all...)
	require.NoError(t, err)
	return gw, tr
}

func TestNewGatewayValidatesBaseURL(t *testing.T) {
	for _, raw := range []string{"", "127.0.0.1:8080", "ftp://x/api", "http://"} {
		_, err := NewGateway(raw)
		assert.ErrorIs(t, err, ErrInvalidBaseURL, raw)
	}
	gw, err := NewGateway("http://127.0.0.1:8080/api/")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/api", gw.BaseURL())
}

func TestRequestDecoratesHeaders(t *testing.T) {
	var got http.Header
	var path string
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		path = r.URL.Path
		_, _ = w.Write([]byte(`{"code":200}`))
	}, WithTokenSource(TokenFunc(func() string { return "tok123" })), WithUserAgent("campus-test"))

	ctx := WithRequestID(context.Background(), "req-1")
	_, err := gw.Request(ctx, Options{Method: http.MethodGet, URL: "/user/info", Header: http.Header{"X-Extra": {"1"}}})
	require.NoError(t, err)

	assert.Equal(t, "/api/user/info", path)
	assert.Equal(t, "Bearer tok123", got.Get("Authorization"))
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, "req-1", got.Get("X-Request-Id"))
	assert.Equal(t, "campus-test", got.Get("User-Agent"))
	assert.Equal(t, "1", got.Get("X-Extra"))
}

func TestRequestWithoutTokenOmitsAuthorization(t *testing.T) {
	var got http.Header
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte(`{"code":200}`))
	}, WithTokenSource(TokenFunc(func() string { return "" })))

	_, err := gw.Request(context.Background(), Options{URL: "/courses"})
	require.NoError(t, err)
	_, present := got["Authorization"]
	assert.False(t, present)
	assert.NotEmpty(t, got.Get("X-Request-Id"))
}

func TestCallerHeadersOverride(t *testing.T) {
	var auth string
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"code":200}`))
	}, WithTokenSource(TokenFunc(func() string { return "tok123" })))

	_, err := gw.Request(context.Background(), Options{URL: "/x", Header: http.Header{"Authorization": {"Basic abc"}}})
	require.NoError(t, err)
	assert.Equal(t, "Basic abc", auth)
}

func TestGetEncodesDataAsQuery(t *testing.T) {
	var query string
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"code":200}`))
	})

	_, err := gw.Request(context.Background(), Options{Method: http.MethodGet, URL: "/courses", Data: ListQuery{Page: 2, PageSize: 10, Keyword: "math"}})
	require.NoError(t, err)
	assert.Equal(t, "keyword=math&page=2&pageSize=10", query)
}

func TestPostSendsJSONBody(t *testing.T) {
	var body map[string]any
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = w.Write([]byte(`{"code":200}`))
	})

	_, err := gw.Request(context.Background(), Options{Method: "post", URL: "/courses", Data: CourseInput{Name: "Math"}})
	require.NoError(t, err)
	assert.Equal(t, "Math", body["name"])
}

func TestRequestSuccessBracketsLoading(t *testing.T) {
	gw, tr := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":200,"data":[1,2]}`))
	})

	env, err := gw.Request(context.Background(), Options{URL: "/x"})
	require.NoError(t, err)
	assert.JSONEq(t, `[1,2]`, string(env.Data))
	assert.Equal(t, []string{"begin", "end"}, tr.events)
	assert.Equal(t, []Kind{0}, tr.kinds)
}

func TestRequestFailureReleasesLoadingBeforeReacting(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   Kind
	}{
		{name: "business", status: 200, body: `{"code":400,"message":"nope"}`, want: KindBusiness},
		{name: "unauthorized", status: 401, body: `{"code":401}`, want: KindUnauthorized},
		{name: "status", status: 503, body: `down`, want: KindHTTPStatus},
		{name: "decode", status: 200, body: `not json`, want: KindDecode},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			gw, tr := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			env, err := gw.Request(context.Background(), Options{URL: "/x"})
			assert.Nil(t, env)
			apiErr, ok := AsError(err)
			require.True(t, ok)
			assert.Equal(t, tc.want, apiErr.Kind)
			assert.Equal(t, []string{"begin", "end", "react:" + tc.want.String()}, tr.events)
			assert.Equal(t, []Kind{tc.want}, tr.kinds)
		})
	}
}

func TestRequestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	tr := &trace{}
	gw, err := NewGateway(base, WithLoading(tr), WithReactor(tr))
	require.NoError(t, err)

	_, err = gw.Request(context.Background(), Options{URL: "/x"})
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, []string{"begin", "end", "react:transport"}, tr.events)
}

func TestRequestHonorsContextCancel(t *testing.T) {
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gw.Request(ctx, Options{URL: "/slow"})
	require.ErrorIs(t, err, ErrTransport)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestUploadSendsMultipart(t *testing.T) {
	var (
		field, fileName, content, userID, auth string
	)
	gw, tr := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		assert.True(t, strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data"))
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		userID = r.FormValue("userId")
		for name, files := range r.MultipartForm.File {
			field = name
			fileName = files[0].Filename
			f, err := files[0].Open()
			if !assert.NoError(t, err) {
				return
			}
			b, _ := io.ReadAll(f)
			_ = f.Close()
			content = string(b)
		}
		_, _ = w.Write([]byte(`{"code":200,"data":{"url":"/uploads/a.png"}}`))
	}, WithTokenSource(TokenFunc(func() string { return "tok123" })))

	path := filepath.Join(t.TempDir(), "a.png")
	require.NoError(t, os.WriteFile(path, []byte("png-bytes"), 0o600))

	env, err := gw.Upload(context.Background(), UploadOptions{
		URL:       PathUploadAvatar,
		FieldName: "avatar",
		FilePath:  path,
		FormData:  map[string]string{"userId": "1"},
	})
	require.NoError(t, err)
	assert.True(t, env.HasData())
	assert.Equal(t, "avatar", field)
	assert.Equal(t, "a.png", fileName)
	assert.Equal(t, "png-bytes", content)
	assert.Equal(t, "1", userID)
	assert.Equal(t, "Bearer tok123", auth)
	assert.Equal(t, []string{"begin", "end"}, tr.events)
}

func TestUploadDefaultsFieldAndRequiresContent(t *testing.T) {
	var field string
	gw, _ := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		for name := range r.MultipartForm.File {
			field = name
		}
		_, _ = w.Write([]byte(`{"code":200,"data":"/uploads/x"}`))
	})

	_, err := gw.Upload(context.Background(), UploadOptions{URL: PathUpload, Reader: strings.NewReader("x"), FileName: "x.txt"})
	require.NoError(t, err)
	assert.Equal(t, "file", field)

	_, err = gw.Upload(context.Background(), UploadOptions{URL: PathUpload})
	assert.ErrorIs(t, err, ErrNoUploadContent)
	assert.ErrorIs(t, err, ErrTransport)
}

func TestTypedDecodeFailureIsReactedAndObserved(t *testing.T) {
	gw, tr := newTestGateway(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"code":200,"data":[1]}`)
	})
	a := New(gw)

	_, err := a.GetUserInfo(context.Background())
	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindDecode, apiErr.Kind)

	doc := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(doc, []byte("x"), 0o600))
	_, err = a.UploadFile(context.Background(), doc)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, KindDecode, apiErr.Kind)

	assert.Equal(t, []string{"begin", "end", "react:decode", "begin", "end", "react:decode"}, tr.events)
	assert.Equal(t, []Kind{KindDecode, KindDecode}, tr.kinds)
}
