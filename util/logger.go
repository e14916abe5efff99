package util

import "log"

// Logger is the logging capability threaded through the engine's
// construction parameters. There is no process-wide mutable logger;
// callers that don't care can pass NopLogger{}.
type Logger interface {
	Logf(tag string, key string, format string, args ...interface{})
}

// StdLogger adapts the standard library's log package to Logger, in the
// same "[TAG key] message" shape the teacher's util.Logf used.
type StdLogger struct{}

func (StdLogger) Logf(tag string, key string, format string, args ...interface{}) {
	log.Printf("[%s %s] "+format, append([]interface{}{tag, key}, args...)...)
}

// NopLogger discards everything. Useful in tests that don't want noise.
type NopLogger struct{}

func (NopLogger) Logf(tag string, key string, format string, args ...interface{}) {}
