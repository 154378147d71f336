package currency

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"storefront/pkg/platform/httputil"
)

type RatesResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// Handler exposes the rate table for client-side display.
type Handler struct {
	converter *Converter
}

func NewHandler(converter *Converter) *Handler {
	return &Handler{converter: converter}
}

func (h *Handler) Register(r chi.Router) {
	r.Get("/currency/rates", h.handleRates)
}

func (h *Handler) handleRates(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, RatesResponse{Base: h.converter.Base(), Rates: h.converter.Rates()})
}
