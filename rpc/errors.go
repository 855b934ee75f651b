package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"flashreserve/native/bank"
	"flashreserve/native/reserve"
)

// statusFor maps an operation failure onto an HTTP status and a stable code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, reserve.ErrUnknownReceiver), errors.Is(err, reserve.ErrNotInitialized):
		return http.StatusNotFound, reserve.CodeOf(err)
	case errors.Is(err, bank.ErrInsufficientBalance):
		return http.StatusUnprocessableEntity, "insufficient_balance"
	case errors.Is(err, bank.ErrUnknownToken):
		return http.StatusBadRequest, "unknown_token"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "canceled"
	}
	switch reserve.KindOf(err) {
	case reserve.KindAuthorization:
		return http.StatusForbidden, reserve.CodeOf(err)
	case reserve.KindPolicyGuard:
		return http.StatusConflict, reserve.CodeOf(err)
	case reserve.KindProtocolInvariant, reserve.KindCallbackContract, reserve.KindArithmeticOverflow:
		return http.StatusUnprocessableEntity, reserve.CodeOf(err)
	case reserve.KindValidation:
		return http.StatusBadRequest, reserve.CodeOf(err)
	case reserve.KindInvocation:
		return http.StatusFailedDependency, reserve.CodeOf(err)
	}
	return http.StatusInternalServerError, "internal"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code string, err error) {
	body := ErrorBody{Code: code, Message: err.Error(), RequestID: requestIDFrom(r.Context())}
	if kind := reserve.KindOf(err); kind != reserve.KindUnknown {
		body.Kind = kind.String()
	}
	writeJSON(w, status, errorResponse{Error: body})
}

func writeOpError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status == http.StatusInternalServerError {
		// Internal failures do not leak details to the client.
		writeError(w, r, status, code, errors.New(http.StatusText(status)))
		return
	}
	writeError(w, r, status, code, err)
}
