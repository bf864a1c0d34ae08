package logger

import (
	"context"
	"log/slog"
	"math/rand"
	"regexp"
	"sync"
)

// AsyncHandler hands records to a single background goroutine so callers
// never block on a slow sink. With dropOnFull set (as Init sets it), records
// are dropped once the buffer fills rather than blocking the caller; without
// it, Handle blocks until the buffer has room.
type AsyncHandler struct {
	next    slog.Handler
	records chan asyncRecord
	drop    bool
	wg      *sync.WaitGroup
}

type asyncRecord struct {
	ctx context.Context
	r   slog.Record
}

func NewAsyncHandler(next slog.Handler, bufferSize int, dropOnFull bool) *AsyncHandler {
	h := &AsyncHandler{
		next:    next,
		records: make(chan asyncRecord, bufferSize),
		drop:    dropOnFull,
		wg:      &sync.WaitGroup{},
	}
	h.wg.Add(1)
	go h.run()
	return h
}

func (h *AsyncHandler) run() {
	defer h.wg.Done()
	for rec := range h.records {
		_ = h.next.Handle(rec.ctx, rec.r)
	}
}

func (h *AsyncHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *AsyncHandler) Handle(ctx context.Context, r slog.Record) error {
	rec := asyncRecord{ctx: ctx, r: r.Clone()}
	if h.drop {
		select {
		case h.records <- rec:
		default:
		}
		return nil
	}
	h.records <- rec
	return nil
}

func (h *AsyncHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &AsyncHandler{next: h.next.WithAttrs(attrs), records: h.records, drop: h.drop, wg: h.wg}
}

func (h *AsyncHandler) WithGroup(name string) slog.Handler {
	return &AsyncHandler{next: h.next.WithGroup(name), records: h.records, drop: h.drop, wg: h.wg}
}

// SamplingHandler passes through a random fraction of records. Warnings
// and errors always pass, regardless of the sample rate.
type SamplingHandler struct {
	next slog.Handler
	rate float64
}

func NewSamplingHandler(next slog.Handler, rate float64) *SamplingHandler {
	return &SamplingHandler{next: next, rate: rate}
}

func (h *SamplingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *SamplingHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level < slog.LevelWarn && rand.Float64() > h.rate {
		return nil
	}
	return h.next.Handle(ctx, r)
}

func (h *SamplingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &SamplingHandler{next: h.next.WithAttrs(attrs), rate: h.rate}
}

func (h *SamplingHandler) WithGroup(name string) slog.Handler {
	return &SamplingHandler{next: h.next.WithGroup(name), rate: h.rate}
}

// RedactHandler masks attribute values that look like emails or payment
// card numbers before they reach next.
type RedactHandler struct {
	next slog.Handler
}

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]?){13,19}\b`)
)

func NewRedactHandler(next slog.Handler) *RedactHandler {
	return &RedactHandler{next: next}
}

func (h *RedactHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *RedactHandler) Handle(ctx context.Context, r slog.Record) error {
	redacted := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		redacted.AddAttrs(redactAttr(a))
		return true
	})
	return h.next.Handle(ctx, redacted)
}

func redactAttr(a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}
	s := a.Value.String()
	if emailPattern.MatchString(s) {
		return slog.String(a.Key, "[REDACTED_EMAIL]")
	}
	if cardPattern.MatchString(s) {
		return slog.String(a.Key, "[REDACTED_CARD]")
	}
	return a
}

func (h *RedactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	redacted := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		redacted[i] = redactAttr(a)
	}
	return &RedactHandler{next: h.next.WithAttrs(redacted)}
}

func (h *RedactHandler) WithGroup(name string) slog.Handler {
	return &RedactHandler{next: h.next.WithGroup(name)}
}
