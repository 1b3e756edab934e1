package loghandler

import (
	"context"
	"io"
	"log/slog"
	"sync"
)

const timeFormat = "2006/01/02 15:04:05"

const tagKey = "tag"

// CompactHandler writes logs in a compact form: timestamp + optional level +
// optional [tag] prefix + message + attrs.
// Timestamp format: 2006/01/02 15:04:05 (no TZ, no milliseconds). Info and
// debug records carry no level; warnings and errors are prefixed WARN/ERROR.
// If an attribute with key "tag" is present (on the record or added with
// WithAttrs), it is rendered as "[tag] " and omitted from the key=value list.
// Groups are flattened into dotted keys.
type CompactHandler struct {
	mu    *sync.Mutex
	w     io.Writer
	level slog.Leveler

	tag    string
	attrs  []slog.Attr
	prefix string // group prefix, "a.b."
}

// NewCompactHandler returns a handler that writes to w with minimum level.
func NewCompactHandler(w io.Writer, level slog.Leveler) *CompactHandler {
	return &CompactHandler{mu: &sync.Mutex{}, w: w, level: level}
}

// Enabled reports whether the handler handles records at the given level.
func (h *CompactHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats the record as: 2006/01/02 15:04:05 [LEVEL ][tag] message key=value ...
func (h *CompactHandler) Handle(_ context.Context, r slog.Record) error {
	tag := h.tag
	rest := append([]slog.Attr(nil), h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == tagKey && h.prefix == "" {
			if a.Value.Kind() == slog.KindString {
				tag = a.Value.String()
			}
			return true
		}
		rest = append(rest, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
		return true
	})

	buf := make([]byte, 0, 256)
	buf = append(buf, r.Time.Format(timeFormat)...)
	buf = append(buf, ' ')
	if r.Level >= slog.LevelWarn {
		buf = append(buf, r.Level.String()...)
		buf = append(buf, ' ')
	}
	if tag != "" {
		buf = append(buf, '[')
		buf = append(buf, tag...)
		buf = append(buf, "] "...)
	}
	buf = append(buf, r.Message...)
	for _, a := range rest {
		buf = appendAttr(buf, "", a)
	}
	buf = append(buf, '\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.w.Write(buf)
	return err
}

func appendAttr(buf []byte, prefix string, a slog.Attr) []byte {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return buf
	}
	if a.Value.Kind() == slog.KindGroup {
		p := prefix
		if a.Key != "" {
			p += a.Key + "."
		}
		for _, ga := range a.Value.Group() {
			buf = appendAttr(buf, p, ga)
		}
		return buf
	}
	buf = append(buf, ' ')
	buf = append(buf, prefix...)
	buf = append(buf, a.Key...)
	buf = append(buf, '=')
	buf = append(buf, a.Value.String()...)
	return buf
}

// WithAttrs returns a new handler that includes attrs on every record.
func (h *CompactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h
	nh.attrs = append([]slog.Attr(nil), h.attrs...)
	for _, a := range attrs {
		if a.Key == tagKey && h.prefix == "" && a.Value.Kind() == slog.KindString {
			nh.tag = a.Value.String()
			continue
		}
		nh.attrs = append(nh.attrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return &nh
}

// WithGroup returns a new handler whose subsequent attrs are keyed under name.
func (h *CompactHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	nh := *h
	nh.prefix = h.prefix + name + "."
	return &nh
}
