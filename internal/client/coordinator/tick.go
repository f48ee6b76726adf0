package coordinator

import (
	"context"
	"time"

	"github.com/iudanet/gophsync/internal/client/queue"
	"github.com/iudanet/gophsync/internal/models"
)

type pollAction int

const (
	pollKeep pollAction = iota
	pollStart
	pollStop
)

// Tick runs one control cycle: classify the backlog, adjust the tick interval,
// pick the sync method, start or stop polling and drain the queue.
// A concurrent call returns the current status without running.
func (c *Coordinator) Tick(ctx context.Context) models.SyncCoordinatorStatus {
	if !c.ticking.CompareAndSwap(false, true) {
		return c.Status()
	}
	defer c.ticking.Store(false)

	backlog := c.queue.Len()
	conn := c.monitor.State()

	c.mu.Lock()
	prev := c.regime
	next := c.classify(backlog)
	c.regime = next
	c.status.TickInterval = c.nextInterval(prev, next, c.status.TickInterval)
	c.status.BackpressureActive = next != regimeNormal
	forced := c.status.ForcedMethod
	method := naturalMethod(conn)
	if forced != "" {
		method = forced
	}
	c.status.SyncMethod = method
	interval := c.status.TickInterval
	c.mu.Unlock()

	if next != prev {
		c.logger.Info("Backpressure regime changed",
			"backlog", backlog,
			"regime", regimeName(next),
			"tick_interval", interval,
		)
	}

	errCount := 0
	action, byBackpressure := decidePolling(method, forced, next)
	switch action {
	case pollStart:
		switch {
		case c.poller.Active():
			c.monitor.SetPollingActive(true)
		case c.poller.Exhausted():
			// остановлен после серии ошибок, ждем внешнего сигнала
			c.logger.Debug("Polling exhausted, waiting for restart signal", "method", method)
			c.monitor.SetPollingActive(false)
		default:
			if err := c.poller.Start(ctx); err != nil {
				errCount++
				c.logger.Error("Failed to start polling", "error", err)
				c.monitor.SetPollingActive(false)
			} else {
				c.logger.Info("Polling activated", "method", method, "backpressure", byBackpressure)
				c.monitor.SetPollingActive(true)
			}
		}
	case pollStop:
		if c.poller.Active() {
			c.poller.Stop()
			c.logger.Info("Polling deactivated", "method", method)
		}
		c.monitor.SetPollingActive(false)
	}

	var res queue.ProcessResult
	if method != models.MethodOffline && backlog > 0 {
		var err error
		res, err = c.queue.Process(ctx)
		if err != nil {
			errCount++
			c.logger.Warn("Queue drain failed", "error", err)
		}
		errCount += res.Dropped
	}

	remaining := c.queue.Len()
	syncStatus := deriveSyncStatus(method, remaining, res, errCount)
	c.monitor.SetSyncStatus(syncStatus)

	c.mu.Lock()
	c.status.BacklogSize = remaining
	c.status.ErrorCount += errCount
	if method != models.MethodOffline && (res.Succeeded > 0 || remaining == 0) {
		c.status.LastSyncTime = c.now()
	}
	st := c.status
	c.mu.Unlock()

	if res.Dispatched > 0 {
		c.logger.Debug("Queue drained",
			"dispatched", res.Dispatched,
			"succeeded", res.Succeeded,
			"retried", res.Retried,
			"dropped", res.Dropped,
			"remaining", remaining,
		)
	}
	c.listeners.Notify(st)
	return st
}

func (c *Coordinator) classify(backlog int) regime {
	switch {
	case backlog >= c.cfg.CriticalThreshold:
		return regimeCritical
	case backlog >= c.cfg.SlowdownThreshold:
		return regimeSlowdown
	default:
		return regimeNormal
	}
}

// nextInterval grows the tick interval under backpressure and relaxes it by
// half toward base once the backlog drops to a lower regime
func (c *Coordinator) nextInterval(prev, next regime, cur time.Duration) time.Duration {
	var d time.Duration
	switch {
	case next == regimeCritical:
		d = cur * 2
	case next == regimeSlowdown && prev != regimeCritical:
		d = time.Duration(float64(cur) * 1.5)
	default:
		d = cur / 2
	}
	if d < c.cfg.BaseTick {
		d = c.cfg.BaseTick
	}
	if d > c.cfg.MaxTick {
		d = c.cfg.MaxTick
	}
	return d
}

func naturalMethod(conn models.ConnectionState) models.SyncMethod {
	switch {
	case conn.IsRealtimeActive && conn.Status == models.StatusConnected:
		return models.MethodRealtime
	case conn.NetworkQuality == models.QualityOffline:
		return models.MethodOffline
	default:
		return models.MethodPolling
	}
}

// decidePolling reports what to do with the poller. The second value is true
// when polling runs only because of the backlog.
func decidePolling(method, forced models.SyncMethod, r regime) (pollAction, bool) {
	switch {
	case forced == models.MethodOffline:
		return pollStop, false
	case method == models.MethodPolling:
		return pollStart, false
	case r == regimeCritical:
		return pollStart, true
	case method == models.MethodRealtime:
		return pollStop, false
	default:
		return pollKeep, false
	}
}

func deriveSyncStatus(method models.SyncMethod, remaining int, res queue.ProcessResult, errCount int) models.SyncStatus {
	switch {
	case method == models.MethodOffline:
		return models.SyncOffline
	case remaining == 0:
		return models.SyncSynced
	case errCount > 0:
		return models.SyncError
	case res.Dispatched > 0:
		return models.SyncSyncing
	default:
		return models.SyncPending
	}
}

func regimeName(r regime) string {
	switch r {
	case regimeCritical:
		return "critical"
	case regimeSlowdown:
		return "slowdown"
	default:
		return "normal"
	}
}
