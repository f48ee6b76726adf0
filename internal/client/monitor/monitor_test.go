package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/gophsync/internal/client/realtime"
	"github.com/iudanet/gophsync/internal/client/syncmetrics"
	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/pkg/api"
)

type fakeProber struct {
	mu        sync.Mutex
	pingErr   map[string]error
	latency   time.Duration
	bandwidth float64
	bwErr     error
	paths     []string
}

func (p *fakeProber) Ping(_ context.Context, path string) (time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paths = append(p.paths, path)
	if err := p.pingErr[path]; err != nil {
		return 0, err
	}
	return p.latency, nil
}

func (p *fakeProber) Bandwidth(context.Context, int) (float64, time.Duration, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bandwidth, p.latency, p.bwErr
}

func (p *fakeProber) failAll(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pingErr = map[string]error{api.PathPing: err, api.PathHealth: err}
}

func (p *fakeProber) recover(latency time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pingErr = nil
	p.latency = latency
}

type fakeReconnector struct {
	err   error
	calls int
}

func (r *fakeReconnector) Reconnect(context.Context) error {
	r.calls++
	return r.err
}

type fakeFallback struct {
	activations int
	rearms      int
}

func (f *fakeFallback) Activate(context.Context) {
	f.activations++
}

func (f *fakeFallback) Rearm() {
	f.rearms++
}

// fakeTimers запоминает запланированные переподключения вместо реальных таймеров
type fakeTimers struct {
	delays  []time.Duration
	pending []func()
}

func (ft *fakeTimers) after(d time.Duration, f func()) func() bool {
	ft.delays = append(ft.delays, d)
	idx := len(ft.pending)
	ft.pending = append(ft.pending, f)
	return func() bool {
		stopped := ft.pending[idx] != nil
		ft.pending[idx] = nil
		return stopped
	}
}

// fireLast runs the most recently scheduled callback
func (ft *fakeTimers) fireLast(t *testing.T) {
	t.Helper()
	require.NotEmpty(t, ft.pending)
	f := ft.pending[len(ft.pending)-1]
	require.NotNil(t, f, "last timer was cancelled")
	ft.pending[len(ft.pending)-1] = nil
	f()
}

type harness struct {
	monitor  *Monitor
	prober   *fakeProber
	recon    *fakeReconnector
	fallback *fakeFallback
	timers   *fakeTimers
	now      time.Time
}

func newHarness(t *testing.T, mutate func(*Config)) *harness {
	t.Helper()

	h := &harness{
		prober:   &fakeProber{latency: 50 * time.Millisecond, bandwidth: 1 << 20},
		recon:    &fakeReconnector{},
		fallback: &fakeFallback{},
		timers:   &fakeTimers{},
		now:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	cfg := DefaultConfig()
	cfg.HeartbeatInterval = 10 * time.Second
	cfg.MaxReconnectAttempts = 3
	if mutate != nil {
		mutate(&cfg)
	}

	m, err := New(h.prober, cfg, nil,
		WithReconnector(h.recon),
		WithFallback(h.fallback),
		WithClock(func() time.Time { return h.now }),
		withAfter(h.timers.after),
	)
	require.NoError(t, err)
	h.monitor = m
	return h
}

func (h *harness) advance(d time.Duration) {
	h.now = h.now.Add(d)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, DefaultConfig(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.PingPaths = nil
	_, err = New(&fakeProber{}, cfg, nil)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Tiers[1].MaxLatency = time.Millisecond
	_, err = New(&fakeProber{}, cfg, nil)
	assert.Error(t, err)
}

func TestClassify(t *testing.T) {
	tiers := DefaultTiers()

	tests := []struct {
		name    string
		latency time.Duration
		loss    float64
		want    models.NetworkQuality
	}{
		{name: "excellent", latency: 50 * time.Millisecond, loss: 0, want: models.QualityExcellent},
		{name: "good by latency", latency: 200 * time.Millisecond, loss: 0, want: models.QualityGood},
		{name: "good by loss", latency: 50 * time.Millisecond, loss: 0.03, want: models.QualityGood},
		{name: "fair", latency: 800 * time.Millisecond, loss: 0.10, want: models.QualityFair},
		{name: "poor", latency: 2 * time.Second, loss: 0.2, want: models.QualityPoor},
		{name: "latency beyond poor only", latency: 5 * time.Second, loss: 0, want: models.QualityPoor},
		{name: "loss beyond poor only", latency: 10 * time.Millisecond, loss: 0.5, want: models.QualityPoor},
		{name: "both beyond poor", latency: 5 * time.Second, loss: 0.5, want: models.QualityOffline},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tiers, tt.latency, tt.loss))
		})
	}
}

func TestHeartbeat_SuccessUpdatesMetrics(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	require.NoError(t, h.monitor.Heartbeat(ctx))
	h.prober.recover(70 * time.Millisecond)
	require.NoError(t, h.monitor.Heartbeat(ctx))

	st := h.monitor.State()
	assert.Equal(t, 70*time.Millisecond, st.Metrics.Latency)
	assert.Equal(t, 20*time.Millisecond, st.Metrics.Jitter)
	assert.Equal(t, 0.0, st.Metrics.PacketLoss)
	assert.Equal(t, h.now, st.Metrics.LastMeasured)
}

func TestHeartbeat_FallsBackToSecondaryPath(t *testing.T) {
	h := newHarness(t, nil)
	h.prober.pingErr = map[string]error{api.PathPing: errors.New("404")}

	require.NoError(t, h.monitor.Heartbeat(context.Background()))
	assert.Equal(t, []string{api.PathPing, api.PathHealth}, h.prober.paths)
}

func TestHeartbeat_StaleMarksDisconnected(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	var errs []ErrorEvent
	h.monitor.OnError(func(ev ErrorEvent) { errs = append(errs, ev) })

	h.monitor.applyStatus(models.ChannelSubscribed)
	require.Equal(t, models.StatusConnected, h.monitor.State().Status)

	h.prober.failAll(errors.New("connection refused"))

	// в пределах трех интервалов статус не меняется
	h.advance(20 * time.Second)
	require.Error(t, h.monitor.Heartbeat(ctx))
	assert.Equal(t, models.StatusConnected, h.monitor.State().Status)
	assert.Empty(t, h.timers.delays)

	h.advance(11 * time.Second)
	require.Error(t, h.monitor.Heartbeat(ctx))

	st := h.monitor.State()
	assert.Equal(t, models.StatusDisconnected, st.Status)
	assert.False(t, st.IsRealtimeActive)
	assert.Equal(t, models.SyncOffline, st.SyncStatus)
	assert.InDelta(t, 1.0, st.Metrics.PacketLoss, 0.001)
	require.Len(t, h.timers.delays, 1, "reconnect should be scheduled")
	require.NotEmpty(t, errs)
	assert.ErrorIs(t, errs[len(errs)-1].Err, ErrHeartbeatStale)

	// успешный heartbeat восстанавливает статус
	h.prober.recover(40 * time.Millisecond)
	require.NoError(t, h.monitor.Heartbeat(ctx))
	assert.Equal(t, models.StatusConnected, h.monitor.State().Status)
	assert.Equal(t, models.SyncPending, h.monitor.State().SyncStatus)
}

func TestPacketLossWindow(t *testing.T) {
	h := newHarness(t, func(c *Config) { c.WindowSize = 4 })
	ctx := context.Background()

	h.prober.failAll(errors.New("timeout"))
	_ = h.monitor.Heartbeat(ctx)
	h.prober.recover(50 * time.Millisecond)
	for i := 0; i < 3; i++ {
		_ = h.monitor.Heartbeat(ctx)
	}
	assert.InDelta(t, 0.25, h.monitor.State().Metrics.PacketLoss, 0.001)

	// неудачная проба вытесняется окном
	_ = h.monitor.Heartbeat(ctx)
	assert.InDelta(t, 0.0, h.monitor.State().Metrics.PacketLoss, 0.001)
}

func TestMeasureQuality(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.prober.recover(500 * time.Millisecond)
	require.NoError(t, h.monitor.Heartbeat(ctx))
	require.NoError(t, h.monitor.MeasureQuality(ctx))

	st := h.monitor.State()
	assert.Equal(t, models.QualityFair, st.NetworkQuality)
	assert.Equal(t, float64(1<<20), st.Metrics.Bandwidth)

	h.prober.bwErr = errors.New("reset")
	var kinds []ErrorKind
	h.monitor.OnError(func(ev ErrorEvent) { kinds = append(kinds, ev.Kind) })
	assert.Error(t, h.monitor.MeasureQuality(ctx))
	assert.Equal(t, []ErrorKind{ErrorQuality}, kinds)
	assert.Equal(t, float64(1<<20), h.monitor.State().Metrics.Bandwidth)
}

func TestReportStatus_Normalization(t *testing.T) {
	h := newHarness(t, nil)

	var statuses []models.ChannelStatus
	h.monitor.OnStatus(func(s models.ChannelStatus) { statuses = append(statuses, s) })

	h.monitor.ReportStatus("connected")
	st := h.monitor.State()
	assert.Equal(t, models.StatusConnected, st.Status)
	assert.True(t, st.IsRealtimeActive)
	assert.Equal(t, h.now, st.LastConnected)

	h.monitor.ReportStatus("closed")
	assert.Equal(t, models.StatusDisconnected, h.monitor.State().Status)
	assert.Empty(t, h.timers.delays, "closed channel does not schedule reconnect")

	h.monitor.ReportStatus("TIMED_OUT")
	assert.Equal(t, models.StatusError, h.monitor.State().Status)
	assert.Len(t, h.timers.delays, 1)

	assert.Equal(t, []models.ChannelStatus{
		models.ChannelSubscribed,
		models.ChannelDisconnected,
		models.ChannelTimedOut,
	}, statuses)
}

func TestReconnect_BackoffThenFallback(t *testing.T) {
	h := newHarness(t, func(c *Config) {
		c.ReconnectBase = time.Second
		c.ReconnectMax = 3 * time.Second
	})
	h.recon.err = errors.New("dial failed")

	var errs []ErrorEvent
	h.monitor.OnError(func(ev ErrorEvent) { errs = append(errs, ev) })

	h.monitor.ReportStatus("CHANNEL_ERROR")
	for i := 0; i < 3; i++ {
		h.timers.fireLast(t)
	}

	assert.Equal(t, 3, h.recon.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, h.timers.delays)
	assert.Equal(t, 1, h.fallback.activations)

	st := h.monitor.State()
	assert.Equal(t, 3, st.ReconnectAttempts)
	assert.True(t, st.IsPollingActive)
	require.NotEmpty(t, errs)
	assert.ErrorIs(t, errs[len(errs)-1].Err, ErrReconnectExhausted)

	// повторные ошибки не активируют fallback снова
	h.monitor.ReportStatus("CHANNEL_ERROR")
	assert.Equal(t, 1, h.fallback.activations)
	assert.Len(t, h.timers.delays, 3)
}

func TestReconnect_CountedOncePerAttempt(t *testing.T) {
	rec := syncmetrics.New()
	timers := &fakeTimers{}
	rt := realtime.New("ws://127.0.0.1:1/api/v1/realtime", nil, realtime.WithMetrics(rec))
	defer func() { _ = rt.Close() }()

	m, err := New(&fakeProber{}, DefaultConfig(), nil,
		WithReconnector(rt),
		WithMetrics(rec),
		withAfter(timers.after),
	)
	require.NoError(t, err)

	m.ReportStatus("CHANNEL_ERROR")
	timers.fireLast(t)
	timers.fireLast(t)

	assert.Equal(t, 2, m.State().ReconnectAttempts)
	assert.Equal(t, int64(2), rec.Snapshot().Counters[syncmetrics.CounterReconnects])
}

func TestReconnect_Success(t *testing.T) {
	h := newHarness(t, nil)

	h.monitor.ReportStatus("CHANNEL_ERROR")
	h.timers.fireLast(t)

	st := h.monitor.State()
	assert.Equal(t, 1, h.recon.calls)
	assert.Equal(t, models.StatusConnected, st.Status)
	assert.True(t, st.IsRealtimeActive)
	assert.Equal(t, 0, st.ReconnectAttempts)
}

func TestSubscribedCancelsPendingReconnect(t *testing.T) {
	h := newHarness(t, nil)

	h.monitor.ReportStatus("CHANNEL_ERROR")
	require.Len(t, h.timers.pending, 1)

	h.monitor.ReportStatus("SUBSCRIBED")
	assert.Nil(t, h.timers.pending[0], "pending reconnect should be cancelled")
}

func TestHandleOfflineAndOnline(t *testing.T) {
	h := newHarness(t, nil)
	h.monitor.ReportStatus("SUBSCRIBED")

	h.monitor.HandleOffline()
	st := h.monitor.State()
	assert.Equal(t, models.StatusDisconnected, st.Status)
	assert.Equal(t, models.QualityOffline, st.NetworkQuality)
	assert.Equal(t, models.SyncOffline, st.SyncStatus)
	assert.True(t, st.IsPollingActive)
	assert.False(t, st.IsRealtimeActive)
	assert.Equal(t, 1, h.fallback.activations)

	h.monitor.HandleOnline(context.Background())
	st = h.monitor.State()
	assert.Equal(t, 1, h.recon.calls, "online signal reconnects immediately")
	assert.Equal(t, 1, h.fallback.rearms)
	assert.Equal(t, models.StatusConnected, st.Status)
	assert.Equal(t, 0, st.ReconnectAttempts)
	assert.NotEqual(t, models.QualityOffline, st.NetworkQuality)
}

func TestHeartbeat_RecoveryAfterExhaustedReconnects(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.recon.err = errors.New("dial failed")

	h.monitor.ReportStatus("CHANNEL_ERROR")
	for i := 0; i < 3; i++ {
		h.timers.fireLast(t)
	}
	require.Equal(t, 1, h.fallback.activations)
	require.False(t, h.monitor.State().IsRealtimeActive)

	// сервер вернулся: heartbeat проходит, канал должен переподключиться
	h.recon.err = nil
	require.NoError(t, h.monitor.Heartbeat(ctx))

	st := h.monitor.State()
	assert.Equal(t, 4, h.recon.calls)
	assert.Equal(t, models.StatusConnected, st.Status)
	assert.True(t, st.IsRealtimeActive)
	assert.Equal(t, 0, st.ReconnectAttempts)
	assert.Equal(t, 1, h.fallback.rearms)
}

func TestHeartbeat_RecoveryWithinBudgetDoesNotReconnect(t *testing.T) {
	h := newHarness(t, nil)

	h.monitor.ReportStatus("CLOSED")
	require.NoError(t, h.monitor.Heartbeat(context.Background()))

	assert.Equal(t, 0, h.recon.calls)
	assert.Equal(t, 0, h.fallback.rearms)
	assert.Equal(t, models.StatusConnected, h.monitor.State().Status)
}

func TestHandleOnline_ResetsAttempts(t *testing.T) {
	h := newHarness(t, nil)
	h.recon.err = errors.New("dial failed")

	h.monitor.ReportStatus("CHANNEL_ERROR")
	h.timers.fireLast(t)
	h.timers.fireLast(t)
	require.Equal(t, 2, h.monitor.State().ReconnectAttempts)

	h.monitor.HandleOnline(context.Background())
	assert.Equal(t, 1, h.monitor.State().ReconnectAttempts)
}

func TestSetters(t *testing.T) {
	h := newHarness(t, nil)

	var snapshots []models.ConnectionState
	unsubscribe := h.monitor.Subscribe(func(s models.ConnectionState) { snapshots = append(snapshots, s) })

	h.monitor.SetRealtimeActive(true)
	h.monitor.SetPollingActive(true)
	h.monitor.SetSyncStatus(models.SyncSyncing)
	// без изменений уведомления нет
	h.monitor.SetPollingActive(true)

	require.Len(t, snapshots, 3)
	st := snapshots[2]
	assert.True(t, st.IsRealtimeActive)
	assert.True(t, st.IsPollingActive, "realtime and polling can be active together")
	assert.Equal(t, models.SyncSyncing, st.SyncStatus)

	unsubscribe()
	h.monitor.SetSyncStatus(models.SyncSynced)
	assert.Len(t, snapshots, 3)
}

func TestStartStop(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	h.monitor.Start(ctx)
	h.monitor.Start(ctx)
	assert.Len(t, h.prober.paths, 1, "second Start is a no-op")
	assert.Equal(t, models.StatusConnecting, h.monitor.State().Status)

	h.monitor.Stop()
	h.monitor.Stop()
}
