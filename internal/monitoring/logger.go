// Package monitoring holds the diagnostic logging hook shared by the link's
// library packages.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Prefixed returns a logger that prepends "name: " to every message and
// forwards to whatever Logf is at call time, so SetLogger still applies.
func Prefixed(name string) func(format string, v ...interface{}) {
	return func(format string, v ...interface{}) {
		Logf(name+": "+format, v...)
	}
}
