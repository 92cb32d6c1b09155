package liveness

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/config"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/models"
	"github.com/AlexFoxalt/EC-TG-Bot-v2/internal/retry"
)

type stubHeartbeats struct {
	hb    *models.Heartbeat
	err   error
	calls int
}

func (s *stubHeartbeats) GetHeartbeat(context.Context, string) (*models.Heartbeat, error) {
	s.calls++
	return s.hb, s.err
}

func (s *stubHeartbeats) UpsertHeartbeat(_ context.Context, label string, ts time.Time) (*models.Heartbeat, error) {
	s.hb = &models.Heartbeat{Label: label, Timestamp: ts}
	return s.hb, nil
}

func fast(attempts int) retry.Policy {
	return retry.Policy{Attempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestHeartbeatSource_Staleness(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name    string
		age     time.Duration
		powered bool
	}{
		{"fresh", 5 * time.Second, true},
		{"exactly at threshold", 50 * time.Second, true},
		{"stale", 51 * time.Second, false},
		{"future dated", -30 * time.Second, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &stubHeartbeats{hb: &models.Heartbeat{Label: "pi", Timestamp: now.Add(-tc.age)}}
			src := &HeartbeatSource{Store: store, Label: "pi", PollInterval: 10 * time.Second, Multiplier: 5, Retry: fast(1)}
			res, err := src.Sample(context.Background(), now)
			require.NoError(t, err)
			assert.False(t, res.Skipped)
			assert.Equal(t, tc.powered, res.Powered)
		})
	}
}

func TestHeartbeatSource_FutureTimestampAgesFromReceipt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	future := time.Unix(4102444800, 0).UTC()
	cases := []struct {
		name     string
		storedAt time.Time
		powered  bool
	}{
		{"agent still pinging", now.Add(-5 * time.Second), true},
		{"agent silent for hours", now.Add(-2 * time.Hour), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := &stubHeartbeats{hb: &models.Heartbeat{Label: "pi", Timestamp: future, UpdatedAt: tc.storedAt}}
			src := &HeartbeatSource{Store: store, Label: "pi", PollInterval: 10 * time.Second, Multiplier: 5, Retry: fast(1)}
			res, err := src.Sample(context.Background(), now)
			require.NoError(t, err)
			assert.Equal(t, tc.powered, res.Powered)
		})
	}
}

func TestHeartbeatSource_ColdStartSkips(t *testing.T) {
	src := &HeartbeatSource{Store: &stubHeartbeats{}, Label: "pi", PollInterval: 10 * time.Second, Multiplier: 5}
	res, err := src.Sample(context.Background(), time.Now())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestHeartbeatSource_ReadFailureSkips(t *testing.T) {
	store := &stubHeartbeats{err: errors.New("connection refused")}
	src := &HeartbeatSource{Store: store, Label: "pi", PollInterval: time.Second, Multiplier: 5, Retry: fast(3)}
	res, err := src.Sample(context.Background(), time.Now())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, 3, store.calls)
	assert.Equal(t, 3, res.Attempts)
}

type stubPlug struct {
	results []error
	on      bool
	calls   int32
}

func (p *stubPlug) DeviceOn(context.Context) (bool, error) {
	i := atomic.AddInt32(&p.calls, 1) - 1
	if int(i) < len(p.results) && p.results[i] != nil {
		return false, p.results[i]
	}
	return p.on, nil
}

func TestDeviceSource_RetriesThenReports(t *testing.T) {
	plug := &stubPlug{on: true, results: []error{context.DeadlineExceeded, &retry.StatusError{Code: 503}}}
	src := &DeviceSource{Client: plug, Timeout: time.Second, Retry: fast(5)}
	res, err := src.Sample(context.Background(), time.Now())
	require.NoError(t, err)
	assert.True(t, res.Powered)
	assert.Equal(t, 3, res.Attempts)
}

func TestDeviceSource_ExhaustionReadsOff(t *testing.T) {
	timeout := context.DeadlineExceeded
	plug := &stubPlug{on: true, results: []error{timeout, timeout, timeout, timeout, timeout}}
	src := &DeviceSource{Client: plug, Timeout: time.Second, Retry: fast(5)}
	res, err := src.Sample(context.Background(), time.Now())
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.False(t, res.Powered)
	assert.Equal(t, int32(5), atomic.LoadInt32(&plug.calls))
}

func TestDeviceSource_CanceledContextSkips(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	plug := &stubPlug{results: []error{context.Canceled}}
	src := &DeviceSource{Client: plug, Retry: fast(5)}
	res, err := src.Sample(ctx, time.Now())
	require.NoError(t, err)
	assert.True(t, res.Skipped)
}

func TestHTTPPlugClient(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		want    bool
		wantErr bool
		kind    retry.ErrorKind
	}{
		{name: "on", status: 200, body: `{"result":{"device_on":true}}`, want: true},
		{name: "off", status: 200, body: `{"result":{"device_on":false}}`, want: false},
		{name: "numeric", status: 200, body: `{"result":{"device_on":1}}`, want: true},
		{name: "string", status: 200, body: `{"result":{"device_on":"OFF"}}`, want: false},
		{name: "missing", status: 200, body: `{"result":{}}`, wantErr: true, kind: retry.Permanent},
		{name: "server error", status: 502, body: `oops`, wantErr: true, kind: retry.Transient},
		{name: "unauthorized", status: 401, body: `{}`, wantErr: true, kind: retry.Permanent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client := NewHTTPPlugClient(config.DeviceConfig{URL: srv.URL, Token: "secret", Timeout: time.Second})
			got, err := client.DeviceOn(context.Background())
			if tc.wantErr {
				require.Error(t, err)
				assert.Equal(t, tc.kind, retry.Classify(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNew_SelectsByMode(t *testing.T) {
	cfg := config.Config{}
	cfg.Monitor.Mode = config.ModeHeartbeat
	cfg.Monitor.PollInterval = 10 * time.Second
	cfg.Monitor.StalenessMultiplier = 5
	src, err := New(cfg, &stubHeartbeats{}, nil)
	require.NoError(t, err)
	hs, ok := src.(*HeartbeatSource)
	require.True(t, ok)
	assert.Equal(t, 50*time.Second, hs.Threshold())

	cfg.Monitor.Mode = config.ModeDevice
	cfg.Device.URL = "http://127.0.0.1:1/status"
	src, err = New(cfg, nil, nil)
	require.NoError(t, err)
	_, ok = src.(*DeviceSource)
	assert.True(t, ok)

	_, err = New(config.Config{Monitor: config.MonitorConfig{Mode: config.ModeHeartbeat}}, nil, nil)
	assert.Error(t, err)
}
