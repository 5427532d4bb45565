package debug

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/sdelrio0/xyflow-flow/pkg/reactive"
	"github.com/sdelrio0/xyflow-flow/pkg/scheduler"
)

// EnableLogging routes the scheduler and reactive trace output to logger at
// debug level. Call it before any store is created.
func EnableLogging(logger *log.Logger) {
	logFn := func(args ...interface{}) {
		logger.Debug(sprint(args...))
	}

	scheduler.SetDebugLog(logFn)
	reactive.SetDebugLog(logFn)
}

// DisableLogging turns the trace output off again
func DisableLogging() {
	scheduler.SetDebugLog(nil)
	reactive.SetDebugLog(nil)
}

// sprint joins args with spaces like console.log does
func sprint(args ...interface{}) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	return strings.Join(parts, " ")
}
