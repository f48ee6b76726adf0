// Package syncmetrics records counters, latencies, throughput and recent log
// entries for the sync engine. A nil *Recorder is valid and records nothing.
package syncmetrics

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/iudanet/gophsync/internal/observer"
)

// Counter имя счетчика
type Counter string

const (
	CounterEnqueued       Counter = "enqueued"
	CounterDeduplicated   Counter = "deduplicated"
	CounterDispatched     Counter = "dispatched"
	CounterSucceeded      Counter = "succeeded"
	CounterRetried        Counter = "retried"
	CounterDropped        Counter = "dropped"
	CounterPolls          Counter = "polls"
	CounterPollErrors     Counter = "poll_errors"
	CounterChanges        Counter = "changes"
	CounterRealtimeEvents Counter = "realtime_events"
	CounterReconnects     Counter = "reconnects"
)

// Latency categories
const (
	LatencyDispatch  = "dispatch"
	LatencyPoll      = "poll"
	LatencyHeartbeat = "heartbeat"
)

const (
	defaultLogCapacity    = 200
	defaultLatencySamples = 100
	throughputWindow      = time.Minute
)

// LogEntry одна запись журнала синхронизации
type LogEntry struct {
	Time      time.Time         `json:"time"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	Component string            `json:"component"`
	Message   string            `json:"message"`
	Level     slog.Level        `json:"level"`
}

// LatencyStats aggregates the bounded sample window of one category
type LatencyStats struct {
	Count int           `json:"count"`
	Avg   time.Duration `json:"avg"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	P95   time.Duration `json:"p95"`
}

// Snapshot is an immutable view of the recorder
type Snapshot struct {
	StartedAt  time.Time               `json:"started_at"`
	Counters   map[Counter]int64       `json:"counters"`
	Latency    map[string]LatencyStats `json:"latency"`
	Logs       []LogEntry              `json:"logs"`
	Throughput float64                 `json:"throughput_per_minute"`
}

// Recorder is a passive metrics sink
type Recorder struct {
	startedAt time.Time
	now       func() time.Time
	listeners *observer.Set[Snapshot]
	counters  map[Counter]int64
	latencies map[string][]time.Duration
	successes []time.Time
	logs      []LogEntry
	logStart  int
	logCap    int
	sampleCap int
	mu        sync.Mutex
}

// Option configures a Recorder
type Option func(*Recorder)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithLogCapacity sets the ring buffer size for log entries
func WithLogCapacity(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.logCap = n
		}
	}
}

// New creates a recorder
func New(opts ...Option) *Recorder {
	r := &Recorder{
		now:       time.Now,
		counters:  make(map[Counter]int64),
		latencies: make(map[string][]time.Duration),
		logCap:    defaultLogCapacity,
		sampleCap: defaultLatencySamples,
		listeners: observer.New[Snapshot]("syncmetrics", nil),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.startedAt = r.now()
	return r
}

// Inc adds n to a counter. Succeeded also feeds the throughput window.
func (r *Recorder) Inc(c Counter, n int) {
	if r == nil || n <= 0 {
		return
	}

	r.mu.Lock()
	r.counters[c] += int64(n)
	if c == CounterSucceeded {
		now := r.now()
		for i := 0; i < n; i++ {
			r.successes = append(r.successes, now)
		}
		r.pruneLocked(now)
	}
	r.mu.Unlock()
}

// ObserveLatency records one latency sample
func (r *Recorder) ObserveLatency(category string, d time.Duration) {
	if r == nil {
		return
	}

	r.mu.Lock()
	samples := append(r.latencies[category], d)
	if len(samples) > r.sampleCap {
		samples = samples[len(samples)-r.sampleCap:]
	}
	r.latencies[category] = samples
	r.mu.Unlock()
}

// Log appends an entry to the ring buffer and notifies subscribers.
// attrs are key/value pairs like slog.
func (r *Recorder) Log(level slog.Level, component, msg string, attrs ...any) {
	if r == nil {
		return
	}

	entry := LogEntry{
		Time:      r.now(),
		Level:     level,
		Component: component,
		Message:   msg,
		Attrs:     attrsToMap(attrs),
	}

	r.mu.Lock()
	if len(r.logs) < r.logCap {
		r.logs = append(r.logs, entry)
	} else {
		r.logs[r.logStart] = entry
		r.logStart = (r.logStart + 1) % r.logCap
	}
	r.mu.Unlock()

	r.listeners.Notify(r.Snapshot())
}

// Subscribe registers a listener called with a snapshot after each log entry
func (r *Recorder) Subscribe(fn func(Snapshot)) func() {
	if r == nil {
		return func() {}
	}
	return r.listeners.Subscribe(fn)
}

// Snapshot returns a copy of the current state
func (r *Recorder) Snapshot() Snapshot {
	if r == nil {
		return Snapshot{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.pruneLocked(now)

	snap := Snapshot{
		StartedAt: r.startedAt,
		Counters:  make(map[Counter]int64, len(r.counters)),
		Latency:   make(map[string]LatencyStats, len(r.latencies)),
		Logs:      make([]LogEntry, 0, len(r.logs)),
	}
	for k, v := range r.counters {
		snap.Counters[k] = v
	}
	for k, samples := range r.latencies {
		snap.Latency[k] = stats(samples)
	}
	// Ring buffer в хронологическом порядке
	for i := 0; i < len(r.logs); i++ {
		snap.Logs = append(snap.Logs, r.logs[(r.logStart+i)%len(r.logs)])
	}

	elapsed := now.Sub(r.startedAt)
	if elapsed > throughputWindow || elapsed <= 0 {
		elapsed = throughputWindow
	}
	snap.Throughput = float64(len(r.successes)) / elapsed.Minutes()

	return snap
}

func (r *Recorder) pruneLocked(now time.Time) {
	cutoff := now.Add(-throughputWindow)
	i := 0
	for i < len(r.successes) && !r.successes[i].After(cutoff) {
		i++
	}
	if i > 0 {
		r.successes = append(r.successes[:0], r.successes[i:]...)
	}
}

func stats(samples []time.Duration) LatencyStats {
	if len(samples) == 0 {
		return LatencyStats{}
	}

	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var sum time.Duration
	for _, d := range sorted {
		sum += d
	}

	// nearest-rank
	idx := (95*len(sorted)+99)/100 - 1
	if idx < 0 {
		idx = 0
	}

	return LatencyStats{
		Count: len(sorted),
		Avg:   sum / time.Duration(len(sorted)),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		P95:   sorted[idx],
	}
}

func attrsToMap(attrs []any) map[string]string {
	if len(attrs) == 0 {
		return nil
	}
	rec := slog.Record{}
	rec.Add(attrs...)
	out := make(map[string]string, rec.NumAttrs())
	rec.Attrs(func(a slog.Attr) bool {
		out[a.Key] = a.Value.String()
		return true
	})
	return out
}
