package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/clothy-store/checkout-service/internal/catalog"
	"github.com/clothy-store/checkout-service/internal/checkout"
)

type PaymentHandler struct {
	Checkout *checkout.Service
	Guard    *catalog.StockGuard
	Log      *zap.Logger
}

type CheckoutReq struct {
	PaymentMethodType string `json:"paymentMethodType"`
	Currency          string `json:"currency"`
}

type ConfirmReq struct {
	PaymentMethod  string                  `json:"payment_method"`
	BillingDetails checkout.BillingDetails `json:"billing_details"`
}

func (h *PaymentHandler) Register(r *chi.Mux) {
	r.Post("/payment/checkout", h.initiate)
	r.Post("/payment/confirm", h.confirm)
	r.Get("/payment/product-check/{id}", h.productCheck)
}

func (h *PaymentHandler) initiate(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing user id"})
		return
	}
	var req CheckoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.PaymentMethodType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing paymentMethodType"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	res, err := h.Checkout.Initiate(ctx, uid, checkout.InitiateInput{
		PaymentMethodType: req.PaymentMethodType,
		Currency:          req.Currency,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *PaymentHandler) confirm(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing user id"})
		return
	}
	var req ConfirmReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.PaymentMethod == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing payment_method"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	purchases, err := h.Checkout.Confirm(ctx, uid, req.PaymentMethod, req.BillingDetails)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, purchases)
}

func (h *PaymentHandler) productCheck(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "id")
	qty, err := strconv.Atoi(r.URL.Query().Get("quantity"))
	if err != nil || qty <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid quantity"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ok, err := h.Guard.HasStock(ctx, productID, qty)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": ok})
}
