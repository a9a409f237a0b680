package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/courseloom/marketplace/services"
	"github.com/courseloom/marketplace/utils"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

// writeResultError maps a failed result's stable error code onto an HTTP
// status. Unknown codes become a 500 so nothing leaks as a false success.
func writeResultError(w http.ResponseWriter, result utils.AnyResult) {
	var rateLimitErr *services.RateLimitError
	if errors.As(result.Error(), &rateLimitErr) {
		seconds := int(rateLimitErr.RetryAfter.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", fmt.Sprintf("%d", seconds))
		writeError(w, http.StatusTooManyRequests, services.ErrCodeRateLimitExceeded, "Too many checkout attempts, slow down")
		return
	}

	code := result.ErrorCode()
	message := result.ErrorMessage()
	if message == "" {
		message = "Internal error"
	}

	switch code {
	case services.ErrCodeUnauthorized:
		writeError(w, http.StatusUnauthorized, code, message)
	case services.ErrCodeUserNotFound, services.ErrCodeCourseNotFound, services.ErrCodeSubscriptionNotFound, services.ErrCodePurchaseNotFound:
		writeError(w, http.StatusNotFound, code, message)
	case services.ErrCodeIntegrityFault:
		writeError(w, http.StatusBadRequest, code, message)
	case services.ErrCodeUpstreamFailure:
		writeError(w, http.StatusBadGateway, code, message)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "Internal error")
	}
}
