package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jake-scott/smartrent-lock/internal/pkg/logging"
	"github.com/jake-scott/smartrent-lock/internal/pkg/smartrent"
	"github.com/jake-scott/smartrent-lock/internal/pkg/widgets"
)

// WidgetStore is the widget map plus listing
type WidgetStore interface {
	widgets.LockMap
	List() ([]widgets.Binding, error)
}

// Presser starts a widget press
type Presser interface {
	Press(ctx context.Context, widgetID string) error
}

type widgetView struct {
	WidgetID string   `json:"widget_id"`
	Lock     lockView `json:"lock"`
	Showing  string   `json:"showing"`
}

type bindRequest struct {
	DeviceID *int `json:"device_id"`
}

// WidgetsHandler manages widget bindings and presses
type WidgetsHandler struct {
	store   WidgetStore
	service smartrent.LockService
	presser Presser
	board   *widgets.Board
}

func NewWidgetsHandler(store WidgetStore, service smartrent.LockService, presser Presser, board *widgets.Board) *WidgetsHandler {
	return &WidgetsHandler{
		store:   store,
		service: service,
		presser: presser,
		board:   board,
	}
}

func (h *WidgetsHandler) view(b widgets.Binding) widgetView {
	v := widgetView{WidgetID: b.WidgetID, Lock: newLockView(b.Lock), Showing: b.Lock.DisplayName()}
	if shown, ok := h.board.Shown(b.WidgetID); ok {
		v.Showing = shown
	}
	return v
}

func (h *WidgetsHandler) List(w http.ResponseWriter, r *http.Request) {
	bindings, err := h.store.List()
	if err != nil {
		sendErrorResponse(w, r, err)
		return
	}

	views := make([]widgetView, 0, len(bindings))
	for _, b := range bindings {
		views = append(views, h.view(b))
	}

	sendJSONResponse(w, r, http.StatusOK, views)
}

// Bind attaches a widget to one of the account's locks, the lock name is
// taken from the vendor
func (h *WidgetsHandler) Bind(w http.ResponseWriter, r *http.Request) {
	widgetID := mux.Vars(r)["id"]

	req := bindRequest{}
	if err := decodeJSONBody(w, r, &req); err != nil {
		sendBadRequest(w, r, err.Error())
		return
	}
	if req.DeviceID == nil {
		sendBadRequest(w, r, "device_id is required")
		return
	}

	locks, err := h.service.ListLocks(r.Context())
	if err != nil {
		sendErrorResponse(w, r, err)
		return
	}

	for _, l := range locks {
		if l.DeviceID != *req.DeviceID {
			continue
		}

		if err := h.store.Save(widgetID, l); err != nil {
			sendErrorResponse(w, r, err)
			return
		}
		h.board.ShowIdle(widgetID, l.DisplayName())

		logging.Logger(r.Context()).Infof("widget %s bound to %s (device %d)", widgetID, l.DisplayName(), l.DeviceID)
		sendJSONResponse(w, r, http.StatusOK, h.view(widgets.Binding{WidgetID: widgetID, Lock: l}))
		return
	}

	sendJSONResponse(w, r, http.StatusNotFound, errorResponse{Error: "no lock with that device id"})
}

func (h *WidgetsHandler) Unbind(w http.ResponseWriter, r *http.Request) {
	widgetID := mux.Vars(r)["id"]

	if err := h.store.Delete(widgetID); err != nil {
		sendErrorResponse(w, r, err)
		return
	}
	h.board.Forget(widgetID)

	w.WriteHeader(http.StatusNoContent)
}

// Press answers 202 straight away; the result shows up on the board
func (h *WidgetsHandler) Press(w http.ResponseWriter, r *http.Request) {
	widgetID := mux.Vars(r)["id"]

	// the press outlives the request
	ctx := context.Background()
	if txnID := w.Header().Get("X-Txn-ID"); txnID != "" {
		ctx = logging.WithTxnID(ctx, txnID)
	}

	if err := h.presser.Press(ctx, widgetID); err != nil {
		sendErrorResponse(w, r, err)
		return
	}

	sendJSONResponse(w, r, http.StatusAccepted, map[string]string{
		"widget_id": widgetID,
		"showing":   widgets.GlyphBusy,
	})
}
