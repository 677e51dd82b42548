package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-openapi/runtime/middleware/header"
	"github.com/pkg/errors"

	"github.com/jake-scott/smartrent-lock/internal/pkg/logging"
	"github.com/jake-scott/smartrent-lock/internal/pkg/smartrent"
	"github.com/jake-scott/smartrent-lock/internal/pkg/widgets"
)

type errorResponse struct {
	Error string `json:"error"`
	TxnID string `json:"txnid,omitempty"`
}

func sendJSONResponse(w http.ResponseWriter, r *http.Request, code int, d interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	enc := json.NewEncoder(w)
	if err := enc.Encode(d); err != nil {
		logging.Logger(r.Context()).WithError(err).Error("sending json response")
	}
}

// statusFor maps the client error taxonomy onto HTTP
func statusFor(err error) int {
	switch {
	case errors.Is(err, widgets.ErrUnknownWidget):
		return http.StatusNotFound
	case errors.Is(err, smartrent.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, smartrent.ErrTransport),
		errors.Is(err, smartrent.ErrParse),
		errors.Is(err, smartrent.ErrProtocol):
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}

func sendErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	logging.Logger(r.Context()).WithError(err).Errorf("request failed with HTTP %d", code)

	sendJSONResponse(w, r, code, errorResponse{
		Error: http.StatusText(code),
		TxnID: w.Header().Get("X-Txn-ID"),
	})
}

func sendBadRequest(w http.ResponseWriter, r *http.Request, detail string) {
	logging.Logger(r.Context()).Warnf("bad request: %s", detail)
	sendJSONResponse(w, r, http.StatusBadRequest, errorResponse{Error: detail})
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.Header.Get("Content-Type") != "" {
		value, _ := header.ParseValueAndParams(r.Header, "Content-Type")
		if value != "application/json" {
			return fmt.Errorf("expected JSON request, got %s", value)
		}
	}

	// 10kb max body
	reader := http.MaxBytesReader(w, r.Body, 10*1024)
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("request body must only contain a single JSON object")
	}

	return nil
}
