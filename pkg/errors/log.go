package errors

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// LogHandler is an ErrorHandler that logs errors to stderr.
type LogHandler struct {
	// Verbose enables detailed output including stack traces.
	Verbose bool
	// Out overrides the destination. Nil means os.Stderr.
	Out io.Writer

	mu sync.Mutex
}

func (h *LogHandler) writer() io.Writer {
	if h.Out != nil {
		return h.Out
	}
	return os.Stderr
}

// HandleError logs an Error.
func (h *LogHandler) HandleError(err *Error) {
	if err == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	w := h.writer()
	if h.Verbose {
		fmt.Fprintf(w, "[permit error] %s\n", err.Error())
	} else {
		fmt.Fprintf(w, "[permit error] %s: %v\n", err.Op, err.Err)
	}
}

// HandlePanic logs a PanicError.
func (h *LogHandler) HandlePanic(err *PanicError) {
	if err == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	w := h.writer()
	if err.Op != "" {
		fmt.Fprintf(w, "[permit panic] %s: %v\n", err.Op, err.Value)
	} else {
		fmt.Fprintf(w, "[permit panic] %v\n", err.Value)
	}
	if h.Verbose && err.StackTrace != "" {
		fmt.Fprintf(w, "Stack trace:\n%s\n", err.StackTrace)
	}
}
