package monitoring

import "log"

// Logf is the diagnostic logger shared by the library packages. It defaults to
// log.Printf; the tracker daemon and tests replace it via SetLogger to redirect
// or mute library output.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
