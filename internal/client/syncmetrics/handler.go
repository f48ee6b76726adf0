package syncmetrics

import (
	"context"
	"log/slog"
)

// Handler tees records at or above minLevel into the recorder's log ring
// and passes every record on to next.
type Handler struct {
	next     slog.Handler
	rec      *Recorder
	attrs    []slog.Attr
	minLevel slog.Level
}

// NewHandler wraps next. A nil recorder makes the handler a pass-through.
func NewHandler(next slog.Handler, rec *Recorder, minLevel slog.Level) *Handler {
	return &Handler{next: next, rec: rec, minLevel: minLevel}
}

func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level) || (h.rec != nil && level >= h.minLevel)
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if h.rec != nil && r.Level >= h.minLevel {
		component := ""
		var kv []any
		collect := func(a slog.Attr) bool {
			if a.Key == "component" {
				component = a.Value.String()
				return true
			}
			kv = append(kv, a)
			return true
		}
		for _, a := range h.attrs {
			collect(a)
		}
		r.Attrs(collect)
		h.rec.Log(r.Level, component, r.Message, kv...)
	}

	if !h.next.Enabled(ctx, r.Level) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &Handler{next: h.next.WithAttrs(attrs), rec: h.rec, attrs: merged, minLevel: h.minLevel}
}

// WithGroup drops the tee attribute prefixing; grouped attrs are recorded flat.
func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{next: h.next.WithGroup(name), rec: h.rec, attrs: h.attrs, minLevel: h.minLevel}
}
