// Package logging wires tunelo's structured logging: a slog
// multi-handler fanning out to stdout and an optional log file, plus a
// bounded in-memory ring buffer the supervisor exposes via its status
// snapshot. TUNELO_LOG selects the minimum level, RUST_LOG-filter style.
package logging

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

// Entry is one ring-buffer log record.
type Entry struct {
	Time    string
	Level   string
	Message string
}

// RingBuffer is a bounded, thread-safe log history.
type RingBuffer struct {
	mu      sync.RWMutex
	maxSize int
	items   []Entry
}

func NewRingBuffer(maxSize int) *RingBuffer {
	if maxSize <= 0 {
		maxSize = 10000
	}
	return &RingBuffer{maxSize: maxSize, items: make([]Entry, 0, maxSize)}
}

func (r *RingBuffer) addEntry(ts time.Time, level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ts.IsZero() {
		ts = time.Now()
	}
	r.items = append(r.items, Entry{Time: ts.Format("2006-01-02 15:04:05"), Level: level, Message: message})
	if len(r.items) > r.maxSize {
		r.items = r.items[len(r.items)-r.maxSize:]
	}
}

// Recent returns the last n entries (or all, if n <= 0). Backs the
// supervisor's status snapshot.
func (r *RingBuffer) Recent(n int) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if n <= 0 || n >= len(r.items) {
		out := make([]Entry, len(r.items))
		copy(out, r.items)
		return out
	}
	out := make([]Entry, n)
	copy(out, r.items[len(r.items)-n:])
	return out
}

type ringBufferHandler struct {
	buffer *RingBuffer
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

func newRingBufferHandler(buffer *RingBuffer, level slog.Leveler) slog.Handler {
	return &ringBufferHandler{buffer: buffer, level: level}
}

func (h *ringBufferHandler) Enabled(_ context.Context, level slog.Level) bool {
	if h.level == nil {
		return true
	}
	return level >= h.level.Level()
}

func (h *ringBufferHandler) Handle(_ context.Context, rec slog.Record) error {
	if h.buffer == nil {
		return nil
	}
	h.buffer.addEntry(rec.Time, rec.Level.String(), h.formatMessage(rec))
	return nil
}

func (h *ringBufferHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	copied := h.clone()
	copied.attrs = append(copied.attrs, attrs...)
	return copied
}

func (h *ringBufferHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	copied := h.clone()
	copied.groups = append(copied.groups, name)
	return copied
}

func (h *ringBufferHandler) clone() *ringBufferHandler {
	copied := &ringBufferHandler{
		buffer: h.buffer,
		level:  h.level,
		attrs:  make([]slog.Attr, len(h.attrs)),
		groups: make([]string, len(h.groups)),
	}
	copy(copied.attrs, h.attrs)
	copy(copied.groups, h.groups)
	return copied
}

func (h *ringBufferHandler) formatMessage(rec slog.Record) string {
	base := strings.TrimRight(rec.Message, "\r\n")
	groupPrefix := strings.Join(h.groups, ".")
	parts := make([]string, 0, len(h.attrs)+4)

	for _, a := range h.attrs {
		appendAttrParts(&parts, groupPrefix, a)
	}
	rec.Attrs(func(a slog.Attr) bool {
		appendAttrParts(&parts, groupPrefix, a)
		return true
	})
	if len(parts) == 0 {
		return base
	}
	if base == "" {
		return strings.Join(parts, " ")
	}
	return base + " | " + strings.Join(parts, " ")
}

func appendAttrParts(parts *[]string, prefix string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if attr.Equal(slog.Attr{}) {
		return
	}

	key := joinAttrKey(prefix, attr.Key)
	if attr.Value.Kind() == slog.KindGroup {
		nextPrefix := key
		for _, ga := range attr.Value.Group() {
			appendAttrParts(parts, nextPrefix, ga)
		}
		return
	}

	if key == "" {
		return
	}
	*parts = append(*parts, key+"="+fmt.Sprint(attr.Value.Any()))
}

func joinAttrKey(prefix, key string) string {
	switch {
	case prefix == "":
		return key
	case key == "":
		return prefix
	default:
		return prefix + "." + key
	}
}

type multiHandler struct {
	handlers []slog.Handler
}

func newMultiHandler(handlers ...slog.Handler) slog.Handler {
	filtered := make([]slog.Handler, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			filtered = append(filtered, h)
		}
	}
	return &multiHandler{handlers: filtered}
}

func (h *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *multiHandler) Handle(ctx context.Context, rec slog.Record) error {
	var firstErr error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, rec.Level) {
			continue
		}
		if err := handler.Handle(ctx, rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (h *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, 0, len(h.handlers))
	for _, handler := range h.handlers {
		next = append(next, handler.WithAttrs(attrs))
	}
	return &multiHandler{handlers: next}
}

func (h *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, 0, len(h.handlers))
	for _, handler := range h.handlers {
		next = append(next, handler.WithGroup(name))
	}
	return &multiHandler{handlers: next}
}

// LevelFromEnv parses TUNELO_LOG ("debug"|"info"|"warn"|"error",
// case-insensitive); defaults to info when unset or unrecognized.
func LevelFromEnv() slog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("TUNELO_LOG"))) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup wires slog.Default to fan out to stdout, logFile (when non-empty),
// and buffer.
func Setup(logFile string, buffer *RingBuffer) (*slog.Logger, error) {
	level := LevelFromEnv()
	opts := &slog.HandlerOptions{Level: level}
	stdoutHandler := slog.NewTextHandler(os.Stdout, opts)

	var fileHandler slog.Handler
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("logging: open %s: %w", logFile, err)
		}
		fileHandler = slog.NewTextHandler(f, opts)
	}

	bufferHandler := newRingBufferHandler(buffer, level)
	logger := slog.New(newMultiHandler(stdoutHandler, fileHandler, bufferHandler))
	slog.SetDefault(logger)
	return logger, nil
}
