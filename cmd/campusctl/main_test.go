package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/goCampus/internal/mockapi"
)

type harness struct {
	t           *testing.T
	baseURL     string
	sessionFile string
	envFile     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	mock, err := mockapi.New(mockapi.Config{})
	require.NoError(t, err)
	srv := httptest.NewServer(mock.Router())
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	return &harness{
		t:           t,
		baseURL:     srv.URL,
		sessionFile: filepath.Join(dir, "session.json"),
		envFile:     filepath.Join(dir, "missing.env"),
	}
}

// run executes one campusctl invocation; each gets a fresh client, like a new process.
func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	err := execute(append([]string{
		"--base-url", h.baseURL,
		"--session-file", h.sessionFile,
		"--env-file", h.envFile,
	}, args...), &out)
	return out.String(), err
}

func (h *harness) whoami(args ...string) whoami {
	h.t.Helper()
	out, err := h.run(append([]string{"whoami"}, args...)...)
	require.NoError(h.t, err)
	var got whoami
	require.NoError(h.t, json.Unmarshal([]byte(out), &got), out)
	return got
}

func TestLoginPersistsAcrossInvocations(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("login", "-u", "alice", "-p", "secret", "-t", "student")
	require.NoError(t, err)
	assert.Contains(t, out, "logged in as alice")

	got := h.whoami()
	assert.True(t, got.IsLogin)
	assert.Equal(t, "1", got.UserInfo.ID)
	assert.Equal(t, h.baseURL+"/img/a.png", got.UserInfo.Avatar)
	assert.NotNil(t, got.ExpiresAt)

	raw, err := os.ReadFile(h.sessionFile)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "alice")

	out, err = h.run("logout")
	require.NoError(t, err)
	assert.Contains(t, out, "logged out")
	assert.False(t, h.whoami().IsLogin)
}

func TestLoginFailure(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("login", "-u", "alice", "-p", "nope")
	require.ErrorIs(t, err, errLoginFailed)
	assert.Contains(t, err.Error(), "invalid username or password")

	_, err = h.run("login", "-u", "alice", "-p", "secret", "-t", "janitor")
	require.Error(t, err)
}

func TestLoginPasswordFromEnvFile(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, os.WriteFile(h.envFile, []byte(envPassword+"=secret\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv(envPassword) })

	_, err := h.run("login", "-u", "tina")
	require.NoError(t, err)
	assert.Equal(t, "tina", h.whoami().UserInfo.Username)
}

func TestRequestAndList(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("login", "-u", "tina", "-p", "secret")
	require.NoError(t, err)

	out, err := h.run("request", "post", "/courses", "-d", `{"name":"Algebra","description":"linear"}`)
	require.NoError(t, err)
	assert.Contains(t, out, `"code": 200`)

	out, err = h.run("list", "courses", "-k", "Alg")
	require.NoError(t, err)
	var page struct {
		List []struct {
			Name string `json:"name"`
		} `json:"list"`
		Total int `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &page), out)
	require.Len(t, page.List, 1)
	assert.Equal(t, "Algebra", page.List[0].Name)

	_, err = h.run("list", "rooms")
	require.Error(t, err)
}

func TestRequestWithoutSessionIsUnauthorized(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("request", "get", "/user/info")
	require.Error(t, err)
}

func TestProfileAndAvatar(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("login", "-u", "alice", "-p", "secret")
	require.NoError(t, err)

	_, err = h.run("profile")
	require.Error(t, err)

	_, err = h.run("profile", "--nickname", "Ally", "--phone", "555")
	require.NoError(t, err)
	got := h.whoami("--refresh")
	assert.Equal(t, "Ally", got.UserInfo.Name)
	assert.Equal(t, "555", got.UserInfo.Phone)
	assert.Empty(t, got.Warnings)

	img := filepath.Join(t.TempDir(), "me.png")
	require.NoError(t, os.WriteFile(img, []byte("png"), 0o600))
	out, err := h.run("upload", "--avatar", img)
	require.NoError(t, err)
	assert.Contains(t, out, h.baseURL+"/img/avatars/")
	assert.Contains(t, h.whoami().UserInfo.Avatar, "/img/avatars/")
}

func TestMetricsCommand(t *testing.T) {
	h := newHarness(t)
	_, err := h.run("login", "-u", "alice", "-p", "secret")
	require.NoError(t, err)

	out, err := h.run("metrics")
	require.NoError(t, err)
	assert.Contains(t, out, "gocampus_session_restored_total 1")
}

func TestInvalidBaseURL(t *testing.T) {
	h := newHarness(t)
	h.baseURL = "ftp://campus"
	_, err := h.run("whoami")
	require.Error(t, err)
}
