package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Routes registers the lock and widget API on r
func Routes(r *mux.Router, lh *LocksHandler, wh *WidgetsHandler) {
	r.HandleFunc("/locks", lh.List).Methods(http.MethodGet)
	r.HandleFunc("/locks/{id:[0-9]+}/{action}", lh.Command).Methods(http.MethodPost)

	r.HandleFunc("/widgets", wh.List).Methods(http.MethodGet)
	r.HandleFunc("/widgets/{id}", wh.Bind).Methods(http.MethodPut)
	r.HandleFunc("/widgets/{id}", wh.Unbind).Methods(http.MethodDelete)
	r.HandleFunc("/widgets/{id}/press", wh.Press).Methods(http.MethodPost)
}
