// Package ops provides the structured logging convention used across this
// module's components: level-gated, field-pair logging on top of logrus,
// mirroring the reference codebase's ops.Publisher / ops.PublishLog pattern.
package ops

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Logger is a minimal structured logger bound to a component name (e.g. a
// Call's id, or "dispatch", "combiner"). It exists so call sites don't
// depend directly on logrus, and so field conventions (call id, source,
// op-mask) stay consistent across the module.
type Logger struct {
	entry *logrus.Entry
}

// New returns a Logger that annotates every record with the given fields.
func New(fields logrus.Fields) Logger {
	return Logger{entry: logrus.WithFields(fields)}
}

// With returns a Logger with additional fields merged in.
func (l Logger) With(fields logrus.Fields) Logger {
	return Logger{entry: l.entry.WithFields(fields)}
}

// Debug logs routine state-machine transitions: batch starts, completions,
// status-register writes, and the like.
func (l Logger) Debug(message string, fields ...interface{}) {
	l.log(logrus.DebugLevel, message, fields)
}

// Warn logs recoverable anomalies: an unknown accept-encoding token, a
// redundant cancel, a retried memoization miss.
func (l Logger) Warn(message string, fields ...interface{}) {
	l.log(logrus.WarnLevel, message, fields)
}

// Error logs conditions that abort a batch or the call: transport failures,
// a filter violating an ordering assertion.
func (l Logger) Error(message string, fields ...interface{}) {
	l.log(logrus.ErrorLevel, message, fields)
}

func (l Logger) log(level logrus.Level, message string, fields []interface{}) {
	if !l.entry.Logger.IsLevelEnabled(level) {
		return
	}
	if len(fields)%2 != 0 {
		panic(fmt.Sprintf("ops: fields must be of even length: %#v", fields))
	}

	var entry = l.entry
	for i := 0; i != len(fields); i += 2 {
		var key, ok = fields[i].(string)
		if !ok {
			panic(fmt.Sprintf("ops: field key must be a string, got %#v", fields[i]))
		}
		var value = fields[i+1]
		if err, ok := value.(error); ok {
			value = err.Error()
		}
		entry = entry.WithField(key, value)
	}
	entry.Log(level, message)
}
