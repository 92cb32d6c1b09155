package agent

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configFor(t *testing.T, srv *httptest.Server) Config {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return Config{
		Host:     u.Hostname(),
		Port:     port,
		Path:     "/heartbeat",
		Interval: 1,
		Timeout:  time.Second,
		Label:    "pi",
		Scheme:   "http",
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "localhost", cfg.Host)
	assert.Equal(t, 5566, cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.Every())
	assert.Equal(t, "UNKNOWN", cfg.Label)
	assert.Equal(t, "http://localhost:5566/heartbeat", cfg.URL())
}

func TestLoadConfig_Env(t *testing.T) {
	t.Setenv("DROPLET_IP", "10.0.0.5")
	t.Setenv("DROPLET_PORT", "8080")
	t.Setenv("HEARTBEAT_PATH", "ping")
	t.Setenv("SEND_HEARTBEAT_INTERVAL_SECONDS", "0")
	t.Setenv("HEARTBEAT_LABEL", "garage")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.5:8080/ping", cfg.URL())
	assert.Equal(t, 10*time.Second, cfg.Every())
	assert.Equal(t, "garage", cfg.Label)
}

func TestSendOnce(t *testing.T) {
	var gotAuth, gotLabel, gotTS string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotLabel = r.URL.Query().Get("label")
		gotTS = r.URL.Query().Get("timestamp")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer srv.Close()

	cfg := configFor(t, srv)
	cfg.Token = "tok"
	a := New(cfg, nil)
	a.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	require.NoError(t, a.SendOnce(context.Background()))
	assert.Equal(t, "Bearer tok", gotAuth)
	assert.Equal(t, "pi", gotLabel)
	assert.Equal(t, "1700000000", gotTS)
}

func TestSendOnce_RejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := New(configFor(t, srv), nil).SendOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestRun_KeepsGoingAfterFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()
	New(configFor(t, srv), nil).Run(ctx)
	assert.GreaterOrEqual(t, hits.Load(), int32(2))
}
