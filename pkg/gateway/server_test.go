package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odvcencio/switchboard/pkg/command"
)

type fakeDispatcher struct {
	calls    int
	lastReq  command.Request
	response command.Response
	panicMsg string
}

func (f *fakeDispatcher) Execute(_ context.Context, req command.Request) command.Response {
	f.calls++
	f.lastReq = req
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.response
}

func newTestServer(d Dispatcher) *Server {
	return NewServer(Config{Version: "test"}, d, nil)
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != "" {
		reader = bytes.NewReader([]byte(body))
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestCatalogEndpoint(t *testing.T) {
	s := newTestServer(&fakeDispatcher{})
	req := httptest.NewRequest(http.MethodGet, "/commands", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []command.CatalogEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, len(command.Names()))

	seen := map[string]bool{}
	for _, entry := range entries {
		seen[entry.Command] = true
	}
	for _, name := range command.Names() {
		assert.True(t, seen[name], "catalog missing %s", name)
	}
}

func TestDispatchSucceeds(t *testing.T) {
	d := &fakeDispatcher{response: command.Response{Success: true}}
	s := newTestServer(d)

	rec, body := doJSON(t, s.Router(), http.MethodPost, "/", `{"command":"clickPlusButton"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, 1, d.calls)
	assert.Equal(t, "clickPlusButton", d.lastReq.Command)
}

func TestDispatchFailureStaysInBand(t *testing.T) {
	d := &fakeDispatcher{response: command.Response{Success: false, Error: "Unknown command: nope"}}
	s := newTestServer(d)

	rec, body := doJSON(t, s.Router(), http.MethodPost, "/", `{"command":"nope"}`)
	require.Equal(t, http.StatusOK, rec.Code, "command failures are not transport errors")
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Unknown command: nope", body["error"])
}

func TestDispatchAcceptsAnyPath(t *testing.T) {
	d := &fakeDispatcher{response: command.Response{Success: true}}
	s := newTestServer(d)

	for _, path := range []string{"/", "/anything", "/commands", "/deeply/nested/path"} {
		rec, _ := doJSON(t, s.Router(), http.MethodPost, path, `{"command":"clickPlusButton"}`)
		assert.Equal(t, http.StatusOK, rec.Code, "POST %s", path)
	}
	assert.Equal(t, 4, d.calls)
}

func TestMalformedBodyRejected(t *testing.T) {
	d := &fakeDispatcher{}
	s := newTestServer(d)

	rec, body := doJSON(t, s.Router(), http.MethodPost, "/", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid Request", body["error"])
	assert.Zero(t, d.calls)
}

func TestEmptyBodyRejected(t *testing.T) {
	s := newTestServer(&fakeDispatcher{})

	rec, body := doJSON(t, s.Router(), http.MethodPost, "/", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid Request", body["error"])
}

func TestOversizedBodyRejected(t *testing.T) {
	s := NewServer(Config{MaxBodyBytes: 64}, &fakeDispatcher{}, nil)

	payload := fmt.Sprintf(`{"command":"sendText","args":{"text":%q}}`, strings.Repeat("x", 256))
	rec, _ := doJSON(t, s.Router(), http.MethodPost, "/", payload)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	s := newTestServer(&fakeDispatcher{})
	router := s.Router()

	cases := []struct {
		method string
		path   string
	}{
		{http.MethodPut, "/"},
		{http.MethodDelete, "/commands"},
		{http.MethodGet, "/not-a-route"},
		{http.MethodPatch, "/anything"},
	}
	for _, tc := range cases {
		rec, body := doJSON(t, router, tc.method, tc.path, "")
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code, "%s %s", tc.method, tc.path)
		assert.Equal(t, "Method Not Allowed", body["error"])
	}
}

func TestPanicBecomesInternalServerError(t *testing.T) {
	s := newTestServer(&fakeDispatcher{panicMsg: "boom"})

	rec, body := doJSON(t, s.Router(), http.MethodPost, "/", `{"command":"clickPlusButton"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Internal Server Error", body["error"])
}

func TestHealthz(t *testing.T) {
	s := newTestServer(&fakeDispatcher{})

	rec, body := doJSON(t, s.Router(), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestCORSAllowedOrigin(t *testing.T) {
	s := NewServer(Config{AllowedOrigins: []string{"http://localhost"}}, &fakeDispatcher{}, nil)
	router := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/commands", nil)
	req.Header.Set("Origin", "http://localhost:8080")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:8080", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/commands", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(&fakeDispatcher{})

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "http://127.0.0.1")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestStartAndStop(t *testing.T) {
	d := &fakeDispatcher{response: command.Response{Success: true}}
	s := NewServer(Config{BindAddress: "127.0.0.1:0"}, d, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.Start(ctx))
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	addr := s.Addr()
	require.NotEmpty(t, addr)

	require.NoError(t, s.Start(ctx), "second start is a no-op")
	assert.Equal(t, addr, s.Addr())

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + addr + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop(context.Background()))
	assert.NoError(t, s.Stop(context.Background()), "stop is safe to repeat")
	assert.Empty(t, s.Addr())
}

func TestStartBindFailure(t *testing.T) {
	first := NewServer(Config{BindAddress: "127.0.0.1:0"}, &fakeDispatcher{}, nil)
	require.NoError(t, first.Start(context.Background()))
	t.Cleanup(func() { _ = first.Stop(context.Background()) })

	second := NewServer(Config{BindAddress: first.Addr()}, &fakeDispatcher{}, nil)
	assert.Error(t, second.Start(context.Background()))
}
