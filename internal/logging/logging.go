// Package logging holds the module-wide logger. Output is discarded by
// default; consumers that want visibility replace Logger or flip Debug.
package logging

import (
	"fmt"
	"io"
	"log"
)

// Debug enables Debugf output when true.
var Debug bool

// Logger receives all module log output.
var Logger = log.New(io.Discard, "shmsync: ", log.LstdFlags)

// Debugf logs a formatted message when Debug is enabled.
func Debugf(s string, args ...interface{}) {
	if !Debug {
		return
	}
	Logger.Output(2, fmt.Sprintf(s, args...))
}

// Logf logs a formatted message unconditionally.
func Logf(s string, args ...interface{}) {
	Logger.Output(2, fmt.Sprintf(s, args...))
}
