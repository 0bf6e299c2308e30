package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/clothy-store/checkout-service/internal/checkout"
	"github.com/clothy-store/checkout-service/internal/rating"
)

// OrderedHandler serves the purchase listing/reporting screens and the
// per-line rating endpoint.
type OrderedHandler struct {
	Ledger *checkout.Ledger
	Rating *rating.Service
	Log    *zap.Logger
}

type UpdateOrderedReq struct {
	Status         *checkout.Status         `json:"status"`
	ArriveDate     *time.Time               `json:"arrive_date"`
	PackageDate    *time.Time               `json:"package_date"`
	TotalBill      *decimal.Decimal         `json:"total_bill"`
	BillingDetails *checkout.BillingDetails `json:"billing_details"`
}

type RateProductReq struct {
	Rate       int    `json:"rate"`
	PurchaseID string `json:"purchase_id"`
	Color      string `json:"color"`
}

type ListResp struct {
	Data  []checkout.Purchase `json:"data"`
	Total int                 `json:"total"`
}

func (h *OrderedHandler) Register(r *chi.Mux) {
	r.Get("/ordered", h.list)
	r.Get("/ordered/self", h.self)
	r.Get("/ordered/{id}", h.get)
	r.Put("/ordered/{id}", h.update)
	r.Post("/products/{id}/rating", h.rate)
}

func (h *OrderedHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offset, _ := strconv.Atoi(q.Get("offset"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, total, err := h.Ledger.ListAll(ctx, q.Get("search"), offset, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []checkout.Purchase{}
	}
	writeJSON(w, http.StatusOK, ListResp{Data: items, Total: total})
}

func (h *OrderedHandler) self(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing user id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	items, err := h.Ledger.ListForUser(ctx, uid)
	if err != nil {
		writeError(w, err)
		return
	}
	if items == nil {
		items = []checkout.Purchase{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *OrderedHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Ledger.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *OrderedHandler) update(w http.ResponseWriter, r *http.Request) {
	var req UpdateOrderedReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Ledger.Update(ctx, chi.URLParam(r, "id"), checkout.UpdatePatch{
		Status:      req.Status,
		ArriveDate:  req.ArriveDate,
		PackageDate: req.PackageDate,
		TotalBill:   req.TotalBill,
		Billing:     req.BillingDetails,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *OrderedHandler) rate(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing user id"})
		return
	}
	var req RateProductReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	err := h.Rating.Apply(ctx, rating.Input{
		UserID:     uid,
		PurchaseID: req.PurchaseID,
		ProductID:  chi.URLParam(r, "id"),
		Color:      req.Color,
		Rate:       req.Rate,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
