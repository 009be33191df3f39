package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mgHariom/orderly/internal/orders"
	"github.com/mgHariom/orderly/pkg/logger"
)

const idempotencyHeader = "Idempotency-Key"

type createPendingReq struct {
	GroupKey string            `json:"group_key"`
	Items    []orders.LineItem `json:"items"`
}

type adjustReq struct {
	Items []orders.LineItem `json:"items"`
}

func (h *Handler) listPending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := opContext(r.Context())
	defer cancel()

	bs, err := h.Pending.List(ctx)
	if err != nil {
		writeError(w, err)
		return
	}
	if bs == nil {
		bs = []orders.PendingBatch{}
	}
	writeJSON(w, http.StatusOK, bs)
}

func (h *Handler) createPending(w http.ResponseWriter, r *http.Request) {
	var req createPendingReq
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := opContext(r.Context())
	defer cancel()

	key := strings.TrimSpace(r.Header.Get(idempotencyHeader))
	if key != "" && h.Idem != nil {
		id, err := h.Idem.Lookup(ctx, key)
		if err != nil {
			// fast path only, the store stays authoritative
			h.Log.Warn("idempotency lookup failed", logger.String("key", key), logger.Error(err))
		} else if id != "" {
			b, err := h.Pending.Get(ctx, id)
			switch {
			case err == nil:
				writeJSON(w, http.StatusOK, b)
			case errors.Is(err, orders.ErrNotFound):
				writeJSON(w, http.StatusConflict, map[string]string{
					"error":    "idempotency key already used by a resolved batch",
					"batch_id": id,
				})
			default:
				writeError(w, err)
			}
			return
		}
	}

	b, err := h.Engine.CreateBatch(ctx, req.GroupKey, req.Items)
	if err != nil {
		writeError(w, err)
		return
	}
	if key != "" && h.Idem != nil {
		if err := h.Idem.Remember(ctx, key, b.ID); err != nil {
			h.Log.Warn("idempotency remember failed", logger.String("key", key), logger.Error(err))
		}
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *Handler) getPending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := opContext(r.Context())
	defer cancel()

	b, err := h.Pending.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handler) deletePending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := opContext(r.Context())
	defer cancel()

	if err := h.Engine.RemovePendingBatch(ctx, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) adjustPending(w http.ResponseWriter, r *http.Request) {
	var req adjustReq
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := opContext(r.Context())
	defer cancel()

	res, err := h.Engine.ApplyAdjustment(ctx, chi.URLParam(r, "id"), req.Items)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) deliverPending(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := opContext(r.Context())
	defer cancel()

	o, err := h.Engine.ConfirmFullDelivery(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

const streamHeartbeat = 25 * time.Second

// streamPending relays pending-collection change notices as Server-Sent Events.
func (h *Handler) streamPending(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}
	ctx := r.Context()
	changes, err := h.Pending.Watch(ctx)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ping := time.NewTicker(streamHeartbeat)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		case c, ok := <-changes:
			if !ok {
				return
			}
			b, err := json.Marshal(c)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: change\ndata: %s\n\n", b); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	alerts := []orders.AgedAlert{}
	if h.Monitor != nil {
		alerts = append(alerts, h.Monitor.Alerts()...)
	}
	writeJSON(w, http.StatusOK, alerts)
}
