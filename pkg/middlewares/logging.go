package middlewares

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/jake-scott/smartrent-lock/internal/pkg/logging"
)

const TxnIDHeader = "X-Txn-ID"

// headers whose values never reach the debug log
var sensitiveHeaders = []string{"Authorization", "Cookie", "Set-Cookie"}

func redactedHeaders(h http.Header) http.Header {
	out := h.Clone()
	for _, name := range sensitiveHeaders {
		if v := out.Get(name); v != "" {
			out.Set(name, logging.Redact(v))
		}
	}
	return out
}

// responseWriterEx records the status and size of what the handler wrote
type responseWriterEx struct {
	http.ResponseWriter

	ctx              context.Context
	statusCode       int
	size             int
	logData          bool
	hasLoggedHeaders bool
}

func newResponseWriterEx(ctx context.Context, logData bool, rw http.ResponseWriter) *responseWriterEx {
	return &responseWriterEx{
		ResponseWriter: rw,
		ctx:            ctx,
		statusCode:     http.StatusOK,
		logData:        logData,
	}
}

func (rw *responseWriterEx) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.logHeaders()
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriterEx) logHeaders() {
	if rw.logData && !rw.hasLoggedHeaders {
		logging.Logger(rw.ctx).Debugf("response headers: %+v", redactedHeaders(rw.Header()))
		rw.hasLoggedHeaders = true
	}
}

func (rw *responseWriterEx) Write(b []byte) (int, error) {
	rw.logHeaders()

	size, err := rw.ResponseWriter.Write(b)
	rw.size += size

	if err == nil && rw.logData {
		logging.Logger(rw.ctx).Debugf("wrote %d bytes: %s", size, b[:size])
	}
	return size, err
}

// loggingReader logs request body reads
type loggingReader struct {
	io.ReadCloser
	ctx context.Context
}

func (lr loggingReader) Read(b []byte) (size int, err error) {
	size, err = lr.ReadCloser.Read(b)
	if size > 0 {
		logging.Logger(lr.ctx).Debugf("read %d bytes: --:--%s--:--", size, b[:size])
	}

	return size, err
}

// LoggingMw tags each request with a transaction ID and writes an audit
// line when it completes
type LoggingMw struct {
	logRequests bool
	next        http.Handler
}

func NewLoggingMw(logRequests bool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return NewLogging(logRequests, next)
	}
}

func NewLogging(logRequests bool, next http.Handler) *LoggingMw {
	return &LoggingMw{next: next, logRequests: logRequests}
}

func (mw *LoggingMw) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	txnID := uuid.New().String()
	startTime := time.Now()

	// must be set before anything writes the body
	rw.Header().Set(TxnIDHeader, txnID)

	r = r.WithContext(logging.WithTxnID(r.Context(), txnID))

	if mw.logRequests {
		logging.Logger(r.Context()).Debugf("request headers: %+v", redactedHeaders(r.Header))
		r.Body = loggingReader{ReadCloser: r.Body, ctx: r.Context()}
	}

	rwex := newResponseWriterEx(r.Context(), mw.logRequests, rw)
	mw.next.ServeHTTP(rwex, r)

	route := ""
	if cr := mux.CurrentRoute(r); cr != nil {
		route, _ = cr.GetPathTemplate()
	}

	logrus.WithFields(
		logrus.Fields{
			"entrytype": "audit",
			"status":    rwex.statusCode,
			"method":    r.Method,
			"proto":     r.Proto,
			"host":      r.Host,
			"remote":    r.RemoteAddr,
			"start":     startTime.Format(time.RFC3339Nano),
			"duration":  time.Since(startTime),
			"path":      r.URL.String(),
			"route":     route,
			"txnid":     txnID,
			"size":      rwex.size,
		},
	).Info(http.StatusText(rwex.statusCode))
}
