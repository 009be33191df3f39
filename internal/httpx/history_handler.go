package httpx

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mgHariom/orderly/internal/export"
	"github.com/mgHariom/orderly/internal/orders"
	"github.com/mgHariom/orderly/pkg/logger"
)

type saveOrderReq struct {
	GroupKey string            `json:"group_key"`
	Items    []orders.LineItem `json:"items"`
}

// historyFilter reads ?group=&batch=&from=&to=&order=oldest. Times are RFC 3339.
func historyFilter(r *http.Request) (orders.Filter, error) {
	q := r.URL.Query()
	f := orders.Filter{
		GroupKey:    q.Get("group"),
		BatchID:     q.Get("batch"),
		OldestFirst: q.Get("order") == "oldest",
	}
	var err error
	if s := q.Get("from"); s != "" {
		if f.From, err = time.Parse(time.RFC3339, s); err != nil {
			return f, fmt.Errorf("invalid from: %w", err)
		}
	}
	if s := q.Get("to"); s != "" {
		if f.To, err = time.Parse(time.RFC3339, s); err != nil {
			return f, fmt.Errorf("invalid to: %w", err)
		}
	}
	return f, nil
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	f, err := historyFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	ctx, cancel := opContext(r.Context())
	defer cancel()

	list, err := h.History.List(ctx, f)
	if err != nil {
		writeError(w, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) saveOrder(w http.ResponseWriter, r *http.Request) {
	var req saveOrderReq
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := opContext(r.Context())
	defer cancel()

	o, err := h.Engine.SaveDirect(ctx, req.GroupKey, req.Items)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, o)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := opContext(r.Context())
	defer cancel()

	o, err := h.History.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) exportOrders(w http.ResponseWriter, r *http.Request) {
	f, err := historyFilter(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	ctx, cancel := opContext(r.Context())
	defer cancel()

	list, err := h.History.List(ctx, f)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="orders.avro"`)
	w.WriteHeader(http.StatusOK)
	if err := export.WriteOrders(w, list); err != nil {
		// headers are gone, only the log can tell
		h.Log.Error("export orders", logger.Error(err))
	}
}
