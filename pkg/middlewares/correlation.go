package middlewares

import (
	"net/http"
	"regexp"

	"github.com/gorilla/mux"

	"github.com/jake-scott/smartrent-lock/internal/pkg/logging"
)

const DefaultCorrelationHeader = "X-Correlation-ID"

const badCorrelationID = "<Bad_Correlation_Id>"

var correlationIDRegexp = regexp.MustCompile(`^[\w-]{3,36}$`)

// CorrelationMw echoes a caller supplied correlation ID back on the response
// and records it in the request's log context
type CorrelationMw struct {
	headerName string
	next       http.Handler
}

func NewCorrelationMw(headerName string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return NewCorrelation(headerName, next)
	}
}

func NewCorrelation(headerName string, next http.Handler) *CorrelationMw {
	if headerName == "" {
		headerName = DefaultCorrelationHeader
	}
	return &CorrelationMw{headerName: http.CanonicalHeaderKey(headerName), next: next}
}

func (mw *CorrelationMw) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if id, ok := mw.correlationID(r); ok {
		rw.Header().Set(mw.headerName, id)
		r = r.WithContext(logging.WithCorrelationID(r.Context(), id))
	}

	mw.next.ServeHTTP(rw, r)
}

func (mw *CorrelationMw) correlationID(r *http.Request) (string, bool) {
	ids, ok := r.Header[mw.headerName]
	if !ok || len(ids) == 0 {
		return "", false
	}

	if correlationIDRegexp.MatchString(ids[0]) {
		return ids[0], true
	}

	return badCorrelationID, true
}
