// Package notify carries human-readable outcome messages from the booking
// core to whatever surface shows them (toasts, terminal, logs).
package notify

import (
	"fmt"
	"io"
	"sync"

	"github.com/wolfman30/carebook/pkg/logging"
)

// Level classifies a notice.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
)

// Sink receives fire-and-forget notices. Implementations must not block.
type Sink interface {
	Success(message string)
	Error(message string)
	Warning(message string)
	Info(message string)
}

// Notice is one delivered message.
type Notice struct {
	Level   Level
	Message string
}

// Send dispatches a notice to the sink method matching its level.
func Send(s Sink, n Notice) {
	if s == nil {
		return
	}
	switch n.Level {
	case LevelSuccess:
		s.Success(n.Message)
	case LevelError:
		s.Error(n.Message)
	case LevelWarning:
		s.Warning(n.Message)
	default:
		s.Info(n.Message)
	}
}

// LogSink writes notices as structured log lines.
type LogSink struct {
	logger *logging.Logger
}

func NewLogSink(logger *logging.Logger) *LogSink {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSink{logger: logger}
}

func (s *LogSink) Success(message string) { s.logger.Info("notice", "kind", LevelSuccess, "message", message) }
func (s *LogSink) Error(message string)   { s.logger.Error("notice", "kind", LevelError, "message", message) }
func (s *LogSink) Warning(message string) { s.logger.Warn("notice", "kind", LevelWarning, "message", message) }
func (s *LogSink) Info(message string)    { s.logger.Info("notice", "kind", LevelInfo, "message", message) }

// WriterSink prints one line per notice, used by the CLI.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Success(message string) { s.write("✔", message) }
func (s *WriterSink) Error(message string)   { s.write("✖", message) }
func (s *WriterSink) Warning(message string) { s.write("!", message) }
func (s *WriterSink) Info(message string)    { s.write("i", message) }

func (s *WriterSink) write(prefix, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintf(s.w, "%s %s\n", prefix, message)
}

// Fanout forwards every notice to all sinks.
type Fanout []Sink

func (f Fanout) Success(message string) { f.each(Notice{Level: LevelSuccess, Message: message}) }
func (f Fanout) Error(message string)   { f.each(Notice{Level: LevelError, Message: message}) }
func (f Fanout) Warning(message string) { f.each(Notice{Level: LevelWarning, Message: message}) }
func (f Fanout) Info(message string)    { f.each(Notice{Level: LevelInfo, Message: message}) }

func (f Fanout) each(n Notice) {
	for _, s := range f {
		Send(s, n)
	}
}

// Discard drops every notice.
type Discard struct{}

func (Discard) Success(string) {}
func (Discard) Error(string)   {}
func (Discard) Warning(string) {}
func (Discard) Info(string)    {}
