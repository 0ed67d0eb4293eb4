package goCampus

import (
	"net/http/httptest"
	"testing"

	"go.uber.org/goleak"

	"github.com/MrEthical07/goCampus/internal/mockapi"
	"github.com/MrEthical07/goCampus/notify"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

type testBackend struct {
	mock *mockapi.Server
	srv  *httptest.Server
}

func newTestBackend(t *testing.T, cfg mockapi.Config) *testBackend {
	t.Helper()

	mock, err := mockapi.New(cfg)
	if err != nil {
		t.Fatalf("mockapi.New: %v", err)
	}
	srv := httptest.NewServer(mock.Router())
	t.Cleanup(srv.Close)
	return &testBackend{mock: mock, srv: srv}
}

func testConfig(baseURL string) Config {
	cfg := DefaultConfig()
	cfg.API.BaseURL = baseURL
	return cfg
}

// newTestClient builds a client against b with an in-memory mirror unless the
// builder is given another one by configure.
func newTestClient(t *testing.T, b *testBackend, rec *notify.Recorder, configure ...func(*Builder)) *Client {
	t.Helper()

	builder := New().
		WithConfig(testConfig(b.srv.URL)).
		WithHTTPClient(b.srv.Client())
	if rec != nil {
		builder.WithNotifier(rec)
	}
	for _, fn := range configure {
		fn(builder)
	}
	client, err := builder.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}
