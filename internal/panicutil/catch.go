package panicutil

import (
	"github.com/sourcegraph/conc/panics"
)

// Catch runs f and returns a panic raised by f as *panics.ErrRecovered.
// It returns nil if f returns normally.
// If f calls runtime.Goexit, Catch does not return.
func Catch(f func()) error {
	var pc panics.Catcher
	pc.Try(f)
	return pc.Recovered().AsError()
}
