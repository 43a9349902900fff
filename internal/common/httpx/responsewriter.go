package httpx

import (
	"net/http"
)

// ResponseWriter wraps http.ResponseWriter and records the status and body
// size for request logging.
type ResponseWriter struct {
	http.ResponseWriter
	written bool
	status  int
	bytes   int
}

// NewResponseWriter creates a new ResponseWriter wrapping w. An existing
// *ResponseWriter is returned unchanged.
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	if rw, ok := w.(*ResponseWriter); ok {
		return rw
	}
	return &ResponseWriter{ResponseWriter: w}
}

// WriteHeader implements http.ResponseWriter. Repeated calls are ignored.
func (rw *ResponseWriter) WriteHeader(code int) {
	if rw.written {
		return
	}
	rw.status = code
	rw.written = true
	rw.ResponseWriter.WriteHeader(code)
}

// Write implements http.ResponseWriter, writing StatusOK first if needed.
func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.written {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// BytesWritten returns the number of body bytes written.
func (rw *ResponseWriter) BytesWritten() int {
	return rw.bytes
}

// Written reports whether the header was written.
func (rw *ResponseWriter) Written() bool {
	return rw.written
}

// Status returns the status code, http.StatusOK if not set.
func (rw *ResponseWriter) Status() int {
	if rw.status == 0 {
		return http.StatusOK
	}
	return rw.status
}
