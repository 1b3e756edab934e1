package wsutil

import "log/slog"

// SafeSend sends data to a channel without blocking or panicking if the
// channel is closed. It reports whether the data was queued; a full or closed
// channel drops the message. Panics are recovered and logged for debugging.
func SafeSend(ch chan []byte, data []byte) (sent bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Debug("SafeSend recovered panic", "tag", "wsutil", "panic", r)
			sent = false
		}
	}()
	select {
	case ch <- data:
		return true
	default:
		slog.Warn("send buffer full; dropping message", "tag", "wsutil")
		return false
	}
}
