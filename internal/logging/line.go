package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// TimeFormat is the ISO 8601 layout used for console records.
const TimeFormat = "2006-01-02T15:04:05.000Z07:00"

// LineHandler is a slog.Handler that writes one record per line as
//
//	[2024-05-01T10:00:00.000Z] message key=value key=value
//
// Levels above INFO are prefixed to the message so warnings stand out.
type LineHandler struct {
	w      io.Writer
	mu     *sync.Mutex
	opts   slog.HandlerOptions
	prefix string // pre-rendered attrs from WithAttrs
	group  string
}

// NewLineHandler creates a LineHandler writing to w.
func NewLineHandler(w io.Writer, opts *slog.HandlerOptions) *LineHandler {
	h := &LineHandler{w: w, mu: &sync.Mutex{}}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

// Enabled reports whether records at level are written.
func (h *LineHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle formats and writes r.
func (h *LineHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	buf.WriteByte('[')
	buf.WriteString(ts.UTC().Format(TimeFormat))
	buf.WriteString("] ")

	if r.Level > slog.LevelInfo {
		buf.WriteString(r.Level.String())
		buf.WriteString(": ")
	}
	buf.WriteString(r.Message)
	buf.WriteString(h.prefix)

	r.Attrs(func(a slog.Attr) bool {
		appendAttr(&buf, h.group, a)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf.Bytes())
	return err
}

// WithAttrs returns a handler that always renders attrs.
func (h *LineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var buf bytes.Buffer
	buf.WriteString(h.prefix)
	for _, a := range attrs {
		appendAttr(&buf, h.group, a)
	}

	clone := *h
	clone.prefix = buf.String()
	return &clone
}

// WithGroup returns a handler that qualifies later keys with name.
func (h *LineHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if clone.group != "" {
		clone.group += "." + name
	} else {
		clone.group = name
	}
	return &clone
}

func appendAttr(buf *bytes.Buffer, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	key := a.Key
	if group != "" {
		key = group + "." + key
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			appendAttr(buf, key, ga)
		}
		return
	}

	buf.WriteByte(' ')
	buf.WriteString(key)
	buf.WriteByte('=')
	buf.WriteString(formatValue(a.Value))
}

func formatValue(v slog.Value) string {
	var s string
	switch v.Kind() {
	case slog.KindString:
		s = v.String()
	case slog.KindTime:
		return v.Time().UTC().Format(TimeFormat)
	case slog.KindDuration:
		return v.Duration().String()
	default:
		if err, ok := v.Any().(error); ok {
			s = err.Error()
		} else {
			s = fmt.Sprint(v.Any())
		}
	}

	if s == "" || strings.ContainsAny(s, " \t\"=") {
		return strconv.Quote(s)
	}
	return s
}
