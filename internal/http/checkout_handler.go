package http

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/fjod/restaurant-ordering/internal/checkout"
	"github.com/fjod/restaurant-ordering/internal/domain"
)

type CheckoutHandler struct {
	sessions SessionStore
	log      *slog.Logger
}

func NewCheckoutHandler(sessions SessionStore, log *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{sessions: sessions, log: log}
}

type DeliveryRequestDTO struct {
	DeliveryType domain.DeliveryType `json:"delivery_type"`
	Address      string              `json:"address"`
	City         string              `json:"city"`
	PostalCode   string              `json:"postal_code"`
	Phone        string              `json:"phone"`
	Notes        string              `json:"notes"`
}

type PaymentRequestDTO struct {
	Method             domain.PaymentMethod `json:"method"`
	CardNumber         string               `json:"card_number"`
	Expiry             string               `json:"expiry"`
	CVV                string               `json:"cvv"`
	CardholderName     string               `json:"cardholder_name"`
	PaymentMethodToken string               `json:"payment_method_token"`
}

type CheckoutResponseDTO struct {
	Step         string                `json:"step"`
	DeliveryType domain.DeliveryType   `json:"delivery_type"`
	Delivery     domain.DeliveryInfo   `json:"delivery"`
	Payment      domain.PaymentInfo    `json:"payment"`
	Items        []domain.CartLineItem `json:"items"`
	Totals       domain.Totals         `json:"totals"`
}

func newCheckoutResponse(flow *checkout.Flow) CheckoutResponseDTO {
	s := flow.Session()
	return CheckoutResponseDTO{
		Step:         s.CurrentStep.String(),
		DeliveryType: s.DeliveryType,
		Delivery:     s.Delivery,
		Payment:      s.Payment.Redacted(),
		Items:        s.Snapshot.Items,
		Totals:       flow.Totals(),
	}
}

// POST /api/v1/checkout
func (h *CheckoutHandler) Begin(w http.ResponseWriter, r *http.Request) {
	flow, err := h.sessions.StartCheckout(r.Context(), getSessionIDFromContext(r.Context()))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, newCheckoutResponse(flow))
}

// GET /api/v1/checkout
func (h *CheckoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.flow(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, newCheckoutResponse(flow))
}

// DELETE /api/v1/checkout
func (h *CheckoutHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.flow(w, r)
	if !ok {
		return
	}
	flow.Cancel()
	h.sessions.EndCheckout(flow.SessionID(), flow)
	w.WriteHeader(http.StatusNoContent)
}

// PUT /api/v1/checkout/delivery
func (h *CheckoutHandler) UpdateDelivery(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.flow(w, r)
	if !ok {
		return
	}

	var req DeliveryRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.DeliveryType != "" {
		if err := flow.SetDeliveryType(req.DeliveryType); err != nil {
			handleError(w, r, h.log, err)
			return
		}
	}
	err := flow.UpdateDelivery(domain.DeliveryInfo{
		Address:    req.Address,
		City:       req.City,
		PostalCode: req.PostalCode,
		Phone:      req.Phone,
		Notes:      req.Notes,
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, newCheckoutResponse(flow))
}

// PUT /api/v1/checkout/payment
func (h *CheckoutHandler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.flow(w, r)
	if !ok {
		return
	}

	var req PaymentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	err := flow.UpdatePayment(domain.PaymentInfo{
		Method:             req.Method,
		CardNumber:         req.CardNumber,
		Expiry:             req.Expiry,
		CVV:                req.CVV,
		CardholderName:     req.CardholderName,
		PaymentMethodToken: req.PaymentMethodToken,
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, newCheckoutResponse(flow))
}

// POST /api/v1/checkout/next
func (h *CheckoutHandler) Next(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.flow(w, r)
	if !ok {
		return
	}
	if _, err := flow.Next(); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, newCheckoutResponse(flow))
}

// POST /api/v1/checkout/back
func (h *CheckoutHandler) Back(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.flow(w, r)
	if !ok {
		return
	}
	if _, err := flow.Back(); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, newCheckoutResponse(flow))
}

// POST /api/v1/checkout/submit
func (h *CheckoutHandler) Submit(w http.ResponseWriter, r *http.Request) {
	flow, ok := h.flow(w, r)
	if !ok {
		return
	}

	res, err := flow.Submit(r.Context())
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	h.sessions.EndCheckout(flow.SessionID(), flow)
	h.log.InfoContext(r.Context(), "order placed",
		slog.String("session_id", flow.SessionID()),
		slog.String("order_id", res.OrderID),
		slog.Bool("test_mode", res.TestMode),
	)
	respondJSON(w, http.StatusCreated, res)
}

func (h *CheckoutHandler) flow(w http.ResponseWriter, r *http.Request) (*checkout.Flow, bool) {
	flow, ok := h.sessions.Checkout(getSessionIDFromContext(r.Context()))
	if !ok {
		respondError(w, http.StatusNotFound, "no_checkout", "no checkout in progress")
		return nil, false
	}
	return flow, true
}
