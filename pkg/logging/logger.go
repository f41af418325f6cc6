// Package logging adapts the standard library logger to the key/value
// logger interface used by the Temporal SDK, so phase code logs the same way
// inside and outside a worker.
package logging

import (
	"fmt"
	stdlog "log"
	"strings"

	"go.temporal.io/sdk/log"
)

// StdLogger writes "LEVEL msg key=value ..." lines through a *log.Logger
type StdLogger struct {
	out    *stdlog.Logger
	debug  bool
	fields []interface{}
}

var _ log.Logger = (*StdLogger)(nil)
var _ log.WithLogger = (*StdLogger)(nil)

// NewStdLogger creates a logger on top of out. Debug lines are dropped
// unless debug is set.
func NewStdLogger(out *stdlog.Logger, debug bool) *StdLogger {
	return &StdLogger{out: out, debug: debug}
}

func (l *StdLogger) Debug(msg string, keyvals ...interface{}) {
	if l.debug {
		l.write("DEBUG", msg, keyvals)
	}
}

func (l *StdLogger) Info(msg string, keyvals ...interface{}) {
	l.write("INFO", msg, keyvals)
}

func (l *StdLogger) Warn(msg string, keyvals ...interface{}) {
	l.write("WARN", msg, keyvals)
}

func (l *StdLogger) Error(msg string, keyvals ...interface{}) {
	l.write("ERROR", msg, keyvals)
}

// With returns a child logger that prefixes keyvals to every line
func (l *StdLogger) With(keyvals ...interface{}) log.Logger {
	fields := make([]interface{}, 0, len(l.fields)+len(keyvals))
	fields = append(fields, l.fields...)
	fields = append(fields, keyvals...)
	return &StdLogger{out: l.out, debug: l.debug, fields: fields}
}

func (l *StdLogger) write(level, msg string, keyvals []interface{}) {
	var b strings.Builder
	b.WriteString(level)
	b.WriteByte(' ')
	b.WriteString(msg)
	writeKeyvals(&b, l.fields)
	writeKeyvals(&b, keyvals)
	l.out.Print(b.String())
}

func writeKeyvals(b *strings.Builder, keyvals []interface{}) {
	for i := 0; i < len(keyvals); i += 2 {
		b.WriteByte(' ')
		if i+1 < len(keyvals) {
			fmt.Fprintf(b, "%v=%v", keyvals[i], keyvals[i+1])
		} else {
			fmt.Fprintf(b, "%v=<missing>", keyvals[i])
		}
	}
}

// Nop discards everything
type Nop struct{}

func (Nop) Debug(string, ...interface{}) {}
func (Nop) Info(string, ...interface{})  {}
func (Nop) Warn(string, ...interface{})  {}
func (Nop) Error(string, ...interface{}) {}
