package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mgHariom/orderly/internal/orders"
)

type stageItemReq struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type setQuantityReq struct {
	Quantity int `json:"quantity"`
}

type stagingResp struct {
	Group string            `json:"group"`
	Items []orders.LineItem `json:"items"`
	Total string            `json:"total"`
}

func staging(group string, items []orders.LineItem) stagingResp {
	if items == nil {
		items = []orders.LineItem{}
	}
	return stagingResp{Group: group, Items: items, Total: orders.Total(items).StringFixed(2)}
}

func (h *Handler) listStagingGroups(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Stager.Groups())
}

func (h *Handler) getStaging(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")
	writeJSON(w, http.StatusOK, staging(group, h.Stager.Items(group)))
}

func (h *Handler) clearStaging(w http.ResponseWriter, r *http.Request) {
	h.Stager.Clear(chi.URLParam(r, "group"))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) addStagedItem(w http.ResponseWriter, r *http.Request) {
	var req stageItemReq
	if !decode(w, r, &req) {
		return
	}
	ctx, cancel := opContext(r.Context())
	defer cancel()

	group := chi.URLParam(r, "group")
	items, err := h.Stager.Add(ctx, group, req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, staging(group, items))
}

func (h *Handler) setStagedQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQuantityReq
	if !decode(w, r, &req) {
		return
	}
	group := chi.URLParam(r, "group")
	items, err := h.Stager.SetQuantity(group, chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, staging(group, items))
}

func (h *Handler) removeStagedItem(w http.ResponseWriter, r *http.Request) {
	group := chi.URLParam(r, "group")
	items := h.Stager.Remove(group, chi.URLParam(r, "productID"))
	writeJSON(w, http.StatusOK, staging(group, items))
}

func (h *Handler) submitStaging(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := opContext(r.Context())
	defer cancel()

	b, err := h.Stager.Submit(ctx, chi.URLParam(r, "group"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *Handler) submitStagingByCategory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := opContext(r.Context())
	defer cancel()

	bs, err := h.Stager.SubmitByCategory(ctx, chi.URLParam(r, "group"))
	if err != nil && len(bs) == 0 {
		writeError(w, err)
		return
	}
	resp := map[string]any{"batches": bs}
	if err != nil {
		// partial: the failed categories stay staged
		resp["error"] = err.Error()
	}
	writeJSON(w, http.StatusCreated, resp)
}
