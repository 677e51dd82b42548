package middlewares

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/jake-scott/smartrent-lock/internal/pkg/logging"
)

// CorsMw lets browser dashboards on the allowed origins drive the widget API
type CorsMw struct {
	h http.Handler
}

// CorsOptions allows origins to call the lock and widget routes.  An empty
// list leaves CORS disabled.
func CorsOptions(origins []string) cors.Options {
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", DefaultCorrelationHeader},
		ExposedHeaders: []string{"X-Txn-ID", DefaultCorrelationHeader},
		MaxAge:         600,
	}
}

func NewCorsMw(opts cors.Options) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return NewCors(opts, next)
	}
}

func NewCors(opts cors.Options, next http.Handler) *CorsMw {
	c := cors.New(opts)
	c.Log = corsLogger{}

	return &CorsMw{
		h: c.Handler(next),
	}
}

// This should be the first Middleware in the chain
func (mw *CorsMw) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	mw.h.ServeHTTP(rw, r)
}

// corsLogger sends the cors package's decisions to the debug log
type corsLogger struct{}

func (corsLogger) Printf(format string, v ...interface{}) {
	logging.Logger(nil).Debugf("cors: "+format, v...)
}
