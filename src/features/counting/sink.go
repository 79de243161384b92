package counting

import "log/slog"

// LogSink is the default presentation sink: it writes updates to the log.
// The web dashboard pulls snapshots instead of subscribing.
type LogSink struct{}

func NewLogSink() *LogSink {
	return &LogSink{}
}

func (s *LogSink) OnCountChanged(path, display string, count int) {
	slog.Debug("Sink: count changed", "display", display, "path", path, "count", count)
}

func (s *LogSink) OnTotalChanged(total int) {
	slog.Debug("Sink: total changed", "total", total)
}
