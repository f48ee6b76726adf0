package polling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/iudanet/gophsync/internal/client/syncmetrics"
	"github.com/iudanet/gophsync/internal/fingerprint"
	"github.com/iudanet/gophsync/internal/models"
)

type snapshot struct {
	hash string
	data json.RawMessage
}

type fetchJob struct {
	since   time.Time
	err     error
	name    string
	mode    Mode
	records []models.Record
}

// PollOnce runs one poll cycle synchronously. Due entities are fetched
// concurrently; results are applied in priority order. A concurrent call
// returns immediately.
func (s *Service) PollOnce(ctx context.Context) error {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil
	}
	defer s.inFlight.Store(false)

	start := s.now()

	s.mu.Lock()
	gen := s.gen
	jobs := make([]*fetchJob, 0, len(s.entities))
	for _, e := range s.entities {
		if !e.schedule.Due(e.lastFetched, start) {
			continue
		}
		jobs = append(jobs, &fetchJob{name: e.cfg.Name, mode: e.cfg.Mode, since: e.watermark})
	}
	s.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for _, job := range jobs {
		g.Go(func() error {
			job.records, job.err = s.fetch(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}

	now := s.now()
	s.metrics.Inc(syncmetrics.CounterPolls, 1)
	s.metrics.ObserveLatency(syncmetrics.LatencyPoll, now.Sub(start))

	var (
		events   []models.ChangeEvent
		failures []ErrorEvent
		marks    = make(map[string]time.Time)
	)

	s.mu.Lock()
	if gen != s.gen {
		// Stop или перезапуск во время опроса: результат устарел
		s.mu.Unlock()
		s.logger.Debug("Discarding poll results after stop")
		return nil
	}
	for _, job := range jobs {
		e := s.lookupLocked(job.name)
		if e == nil {
			continue
		}
		if job.err != nil {
			failures = append(failures, ErrorEvent{At: now, Entity: job.name, Err: job.err})
			continue
		}
		e.lastFetched = now
		switch job.mode {
		case ModeDelta:
			evs, advanced := applyDelta(e, job.records, now)
			events = append(events, evs...)
			if advanced {
				marks[e.cfg.Name] = e.watermark
			}
		default:
			events = append(events, diffFull(e, job.records, now)...)
		}
	}

	s.state.LastPollTime = now
	stopped := false
	if len(failures) > 0 {
		s.state.ConsecutiveErrors++
		next := time.Duration(float64(s.state.CurrentInterval) * s.cfg.BackoffMultiplier)
		if next > s.intervals.Max {
			next = s.intervals.Max
		}
		s.state.CurrentInterval = next
		if s.state.IsActive && s.state.ConsecutiveErrors >= s.cfg.MaxConsecutiveErrors {
			s.stopLocked()
			s.exhausted = true
			stopped = true
		}
	} else {
		s.state.ConsecutiveErrors = 0
		s.state.CurrentInterval = s.intervals.Base
		s.state.LastSuccessTime = now
	}
	st := s.state.Clone()
	s.mu.Unlock()

	s.persistWatermarks(ctx, marks)

	s.metrics.Inc(syncmetrics.CounterChanges, len(events))
	s.metrics.Inc(syncmetrics.CounterPollErrors, len(failures))

	for _, ev := range events {
		s.changes.Notify(ev)
	}

	errs := make([]error, 0, len(failures))
	for _, f := range failures {
		s.logger.Warn("Poll failed", "entity", f.Entity, "consecutive_errors", st.ConsecutiveErrors, "error", f.Err)
		s.errs.Notify(f)
		errs = append(errs, fmt.Errorf("%s: %w", f.Entity, f.Err))
	}

	if stopped {
		s.logger.Error("Polling stopped", "consecutive_errors", st.ConsecutiveErrors)
		s.errs.Notify(ErrorEvent{
			At:       now,
			Err:      fmt.Errorf("%w: %d", ErrPollingStopped, st.ConsecutiveErrors),
			Terminal: true,
		})
	} else if len(events) > 0 {
		s.logger.Debug("Poll cycle detected changes", "changes", len(events))
	}

	s.listeners.Notify(st)
	return errors.Join(errs...)
}

func (s *Service) fetch(ctx context.Context, job *fetchJob) ([]models.Record, error) {
	if job.mode == ModeDelta {
		return s.fetcher.FetchSince(ctx, job.name, job.since)
	}
	return s.fetcher.FetchAll(ctx, job.name)
}

func (s *Service) lookupLocked(name string) *entityState {
	for _, e := range s.entities {
		if e.cfg.Name == name {
			return e
		}
	}
	return nil
}

func (s *Service) persistWatermarks(ctx context.Context, marks map[string]time.Time) {
	if s.watermarks == nil {
		return
	}
	for entity, ts := range marks {
		if err := s.watermarks.SaveWatermark(ctx, entity, ts); err != nil {
			s.logger.Warn("Failed to save watermark", "entity", entity, "error", err)
		}
	}
}

// diffFull compares a full fetch with the previous snapshot. The first
// fetch only records the baseline.
func diffFull(e *entityState, records []models.Record, now time.Time) []models.ChangeEvent {
	next, hash := buildSnapshot(records)

	if !e.baseline {
		e.records, e.hash, e.baseline = next, hash, true
		return nil
	}
	if hash == e.hash {
		return nil
	}

	var events []models.ChangeEvent
	for _, id := range sortedIDs(next) {
		cur := next[id]
		prev, existed := e.records[id]
		switch {
		case !existed:
			events = append(events, newEvent(e.cfg.Name, models.ActionInsert, cur.data, nil, now))
		case prev.hash != cur.hash:
			events = append(events, newEvent(e.cfg.Name, models.ActionUpdate, cur.data, prev.data, now))
		}
	}
	for _, id := range sortedIDs(e.records) {
		if _, ok := next[id]; !ok {
			events = append(events, newEvent(e.cfg.Name, models.ActionDelete, nil, e.records[id].data, now))
		}
	}

	e.records, e.hash = next, hash
	return events
}

// applyDelta turns a delta fetch into change events and advances the watermark.
// Without a watermark the first successful fetch after activation only records
// the baseline. An empty baseline still counts: records that appear later are
// reported even though the watermark is still zero.
func applyDelta(e *entityState, records []models.Record, now time.Time) ([]models.ChangeEvent, bool) {
	skip := !e.baseline && e.watermark.IsZero()
	e.baseline = true
	mark := e.watermark

	var events []models.ChangeEvent
	for _, r := range records {
		if r.UpdatedAt.After(mark) {
			mark = r.UpdatedAt
		}
		if skip || !r.UpdatedAt.After(e.watermark) {
			continue
		}
		if r.Deleted {
			events = append(events, newEvent(e.cfg.Name, models.ActionDelete, nil, r.Data, now))
		} else {
			events = append(events, newEvent(e.cfg.Name, models.ActionUpdate, r.Data, nil, now))
		}
	}

	if !mark.After(e.watermark) {
		return events, false
	}
	e.watermark = mark
	return events, true
}

func buildSnapshot(records []models.Record) (map[string]snapshot, string) {
	out := make(map[string]snapshot, len(records))
	for _, r := range records {
		if r.Deleted {
			continue
		}
		canonical, err := fingerprint.Canonical(r.Data)
		if err != nil {
			canonical = r.Data
		}
		out[r.ID] = snapshot{hash: fingerprint.Bytes(canonical), data: r.Data}
	}

	var b strings.Builder
	for _, id := range sortedIDs(out) {
		b.WriteString(id)
		b.WriteByte(0)
		b.WriteString(out[id].hash)
		b.WriteByte('\n')
	}
	return out, fingerprint.Bytes([]byte(b.String()))
}

func sortedIDs(m map[string]snapshot) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func newEvent(entity string, action models.Action, newData, oldData json.RawMessage, now time.Time) models.ChangeEvent {
	return models.ChangeEvent{
		EventType:  action,
		Entity:     entity,
		New:        newData,
		Old:        oldData,
		Source:     models.SourcePolling,
		ReceivedAt: now,
	}
}
