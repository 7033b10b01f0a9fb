package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	mu       sync.Mutex
	captures []map[string]string
	reject   map[string]bool
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/health":
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	case "/api/captures":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if f.reject[body["url"]] {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"url is not a supported video link"}`))
			return
		}
		f.mu.Lock()
		f.captures = append(f.captures, body)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"q-1","status":"PENDING"}`))
	default:
		http.NotFound(w, r)
	}
}

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func TestAddDeliversImmediately(t *testing.T) {
	fs := &fakeServer{}
	srv := httptest.NewServer(fs)
	defer srv.Close()
	dir := t.TempDir()

	out := run(t, "--server", srv.URL, "--data-dir", dir, "add", "https://video/1")
	require.Contains(t, out, "Queued #1 https://video/1")
	require.Contains(t, out, "Submitted 1")

	deviceID := strings.TrimSpace(run(t, "--data-dir", dir, "device"))
	require.Len(t, fs.captures, 1)
	require.Equal(t, map[string]string{"url": "https://video/1", "deviceId": deviceID}, fs.captures[0])

	require.Contains(t, run(t, "--data-dir", dir, "list"), "Queue is empty")
}

func TestAddKeepsEntryWhenOffline(t *testing.T) {
	srv := httptest.NewServer(&fakeServer{})
	url := srv.URL
	srv.Close()
	dir := t.TempDir()

	out := run(t, "--server", url, "--data-dir", dir, "add", "https://video/2")
	require.Contains(t, out, "kept offline")

	out = run(t, "--data-dir", dir, "list")
	require.Contains(t, out, "https://video/2")

	fs := &fakeServer{}
	live := httptest.NewServer(fs)
	defer live.Close()
	out = run(t, "--server", live.URL, "--data-dir", dir, "flush")
	require.Contains(t, out, "Submitted 1")
	require.Len(t, fs.captures, 1)
}

func TestFlushNamesRejectedEntry(t *testing.T) {
	fs := &fakeServer{reject: map[string]bool{"https://example.com/blog": true}}
	srv := httptest.NewServer(fs)
	defer srv.Close()
	dir := t.TempDir()

	run(t, "--data-dir", dir, "add", "--no-flush", "https://video/5")
	run(t, "--data-dir", dir, "add", "--no-flush", "https://example.com/blog")
	run(t, "--data-dir", dir, "add", "--no-flush", "https://video/6")

	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--server", srv.URL, "--data-dir", dir, "flush"})
	require.Error(t, cmd.ExecuteContext(context.Background()))
	require.Contains(t, out.String(), "Entry #2 https://example.com/blog was rejected")
	require.Contains(t, out.String(), "url is not a supported video link")
	require.Contains(t, out.String(), "capture drop 2")

	require.Contains(t, run(t, "--data-dir", dir, "drop", "2"), "Dropped #2")
	require.Contains(t, run(t, "--server", srv.URL, "--data-dir", dir, "flush"), "Submitted 2")
	require.Len(t, fs.captures, 3, "first entry was delivered twice")
}

func TestClear(t *testing.T) {
	dir := t.TempDir()
	run(t, "--data-dir", dir, "add", "--no-flush", "https://video/3")
	run(t, "--data-dir", dir, "add", "--no-flush", "https://video/4")

	require.Contains(t, run(t, "--data-dir", dir, "clear"), "Cleared 2 entries")
	require.Contains(t, run(t, "--data-dir", dir, "list"), "Queue is empty")
	require.Contains(t, run(t, "--data-dir", dir, "flush"), "Nothing to flush")
}

func TestDeviceIsStable(t *testing.T) {
	dir := t.TempDir()
	first := run(t, "--data-dir", dir, "device")
	require.NotEmpty(t, strings.TrimSpace(first))
	require.Equal(t, first, run(t, "--data-dir", dir, "device"))
}

func TestServerResolution(t *testing.T) {
	t.Setenv(serverEnv, "")
	empty := ""
	ctx := newCommandContext(&empty, &empty)
	require.Equal(t, defaultServer, ctx.server())

	t.Setenv(serverEnv, "http://env:1")
	require.Equal(t, "http://env:1", ctx.server())

	flag := "http://flag:2"
	ctx = newCommandContext(&flag, &empty)
	require.Equal(t, "http://flag:2", ctx.server())
}
