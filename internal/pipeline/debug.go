package pipeline

import (
	"fmt"
	"io"
	"log"
)

var (
	opsLogger   *log.Logger
	diagLogger  *log.Logger
	traceLogger *log.Logger
)

// SetLogWriters configures the three logging streams for the pipeline
// package. Pass nil for any writer to disable that stream.
func SetLogWriters(ops, diag, trace io.Writer) {
	opsLogger = newLogger("[pipeline] ", ops)
	diagLogger = newLogger("[pipeline] ", diag)
	traceLogger = newLogger("[pipeline] ", trace)
}

// SetLogLevel enables the streams up to the named level on w: "ops",
// "diag" (includes ops), or "trace" (includes all). An empty level
// disables all streams.
func SetLogLevel(level string, w io.Writer) error {
	switch level {
	case "":
		SetLogWriters(nil, nil, nil)
	case "ops":
		SetLogWriters(w, nil, nil)
	case "diag":
		SetLogWriters(w, w, nil)
	case "trace":
		SetLogWriters(w, w, w)
	default:
		return fmt.Errorf("unknown debug level %q (want ops, diag, or trace)", level)
	}
	return nil
}

func newLogger(prefix string, w io.Writer) *log.Logger {
	if w == nil {
		return nil
	}
	return log.New(w, prefix, log.LstdFlags|log.Lmicroseconds)
}

// opsf logs to the ops stream (actionable warnings, errors, data loss).
func opsf(format string, args ...interface{}) {
	if opsLogger != nil {
		opsLogger.Printf(format, args...)
	}
}

// diagf logs to the diag stream (day-to-day diagnostics, tuning context).
func diagf(format string, args ...interface{}) {
	if diagLogger != nil {
		diagLogger.Printf(format, args...)
	}
}

// tracef logs to the trace stream (high-frequency per-frame telemetry).
func tracef(format string, args ...interface{}) {
	if traceLogger != nil {
		traceLogger.Printf(format, args...)
	}
}
