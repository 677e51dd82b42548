package handlers

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/jake-scott/smartrent-lock/internal/pkg/smartrent"
)

type lockView struct {
	DeviceID    int    `json:"device_id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
}

func newLockView(l smartrent.Lock) lockView {
	return lockView{DeviceID: l.DeviceID, Name: l.Name, DisplayName: l.DisplayName()}
}

// LocksHandler serves the lock list and direct lock/unlock commands
type LocksHandler struct {
	service smartrent.LockService
}

func NewLocksHandler(service smartrent.LockService) *LocksHandler {
	return &LocksHandler{service: service}
}

func (h *LocksHandler) List(w http.ResponseWriter, r *http.Request) {
	locks, err := h.service.ListLocks(r.Context())
	if err != nil {
		sendErrorResponse(w, r, err)
		return
	}

	views := make([]lockView, 0, len(locks))
	for _, l := range locks {
		views = append(views, newLockView(l))
	}

	sendJSONResponse(w, r, http.StatusOK, views)
}

// Command waits for the channel to resolve before answering
func (h *LocksHandler) Command(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	deviceID, err := strconv.Atoi(vars["id"])
	if err != nil {
		sendBadRequest(w, r, "device id must be an integer")
		return
	}

	var cmd smartrent.Command
	switch vars["action"] {
	case "lock":
		cmd = smartrent.LockCommand(deviceID)
	case "unlock":
		cmd = smartrent.UnlockCommand(deviceID)
	default:
		sendBadRequest(w, r, "action must be lock or unlock")
		return
	}

	result := make(chan error, 1)
	h.service.SendCommand(r.Context(), cmd,
		func() { result <- nil },
		func(err error) { result <- err },
	)

	if err := <-result; err != nil {
		sendErrorResponse(w, r, err)
		return
	}

	sendJSONResponse(w, r, http.StatusOK, map[string]interface{}{
		"device_id": deviceID,
		"action":    vars["action"],
		"status":    "ok",
	})
}
