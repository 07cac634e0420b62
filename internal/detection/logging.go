package detection

import (
	"io"
	"log"
)

var opsLogger *log.Logger

// SetLogWriter configures the ops stream for malformed input and detector
// failures. Pass nil to disable it.
func SetLogWriter(w io.Writer) {
	if w == nil {
		opsLogger = nil
		return
	}
	opsLogger = log.New(w, "[detection] ", log.LstdFlags|log.Lmicroseconds)
}

func opsf(format string, args ...interface{}) {
	if opsLogger != nil {
		opsLogger.Printf(format, args...)
	}
}
