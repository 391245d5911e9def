package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjod/restaurant-ordering/internal/cart"
	"github.com/fjod/restaurant-ordering/internal/catalog"
	"github.com/fjod/restaurant-ordering/internal/checkout"
	"github.com/fjod/restaurant-ordering/internal/orders"
)

type ErrorResponse struct {
	Error   string                `json:"error"`
	Code    string                `json:"code,omitempty"`
	Details string                `json:"details,omitempty"`
	Fields  []checkout.FieldError `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", slog.Any("error", err))
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError maps domain errors to HTTP status codes.
func handleError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var verr *checkout.ValidationError
	var gerr *checkout.GatewayError
	var oerr *checkout.OrderSubmissionError

	switch {
	case errors.As(err, &verr):
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   verr.Error(),
			Code:    "validation_failed",
			Details: verr.Step.String(),
			Fields:  verr.Fields,
		})
	case errors.As(err, &gerr):
		code := "payment_failed"
		if errors.Is(err, checkout.ErrGatewayTimeout) {
			code = "payment_timeout"
		}
		respondError(w, http.StatusPaymentRequired, code, gerr.Reason)
	case errors.As(err, &oerr):
		log.ErrorContext(r.Context(), "order submission failed", slog.Any("error", err))
		respondError(w, http.StatusBadGateway, "order_submission_failed", "your order could not be placed, please try again")
	case errors.Is(err, checkout.ErrSubmissionInProgress):
		respondError(w, http.StatusConflict, "submission_in_progress", err.Error())
	case errors.Is(err, checkout.ErrIllegalTransition):
		respondError(w, http.StatusConflict, "illegal_transition", err.Error())
	case errors.Is(err, checkout.ErrEmptyCart):
		respondError(w, http.StatusConflict, "empty_cart", err.Error())
	case errors.Is(err, checkout.ErrFlowClosed), errors.Is(err, checkout.ErrCheckoutCancelled):
		respondError(w, http.StatusConflict, "checkout_closed", err.Error())
	case errors.Is(err, cart.ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, catalog.ErrDishNotFound):
		respondError(w, http.StatusNotFound, "dish_not_found", err.Error())
	case errors.Is(err, orders.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order_not_found", err.Error())
	default:
		log.ErrorContext(r.Context(), "request failed", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
