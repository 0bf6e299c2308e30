package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/clothy-store/checkout-service/internal/catalog"
	"github.com/clothy-store/checkout-service/internal/checkout"
	"github.com/clothy-store/checkout-service/internal/rating"
	"github.com/clothy-store/checkout-service/internal/userdir"
)

func NewRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, userdir.ErrUserNotFound),
		errors.Is(err, catalog.ErrProductNotFound),
		errors.Is(err, checkout.ErrPurchaseNotFound),
		errors.Is(err, checkout.ErrLineNotFound):
		return http.StatusNotFound
	case errors.Is(err, checkout.ErrInvalidTransition),
		errors.Is(err, rating.ErrInvalidRate):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// userID extracts the authenticated user the edge proxy injects. Auth itself
// lives outside this service.
func userID(r *http.Request) string {
	return r.Header.Get("X-User-Id")
}
