package utils

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
)

type APIResponse struct {
	Status  string      `json:"status"`
	Code    int         `json:"code"`
	Message string      `json:"message,omitempty"`
	TraceID string      `json:"trace_id,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func RespondSuccess(c *gin.Context, data interface{}, message string) {
	c.JSON(http.StatusOK, APIResponse{
		Status:  "success",
		Code:    http.StatusOK,
		Message: message,
		TraceID: c.GetString("trace_id"),
		Data:    data,
	})
}

func RespondError(c *gin.Context, code int, message string) {
	c.JSON(code, APIResponse{
		Status:  "error",
		Code:    code,
		Message: message,
		TraceID: c.GetString("trace_id"),
	})
}

// HandleServiceError maps the settlement error taxonomy onto HTTP responses.
// Checkout failures stay generic towards the payer; transition conflicts are
// 409 so callers can tell "already settled" apart from a gateway outage.
func HandleServiceError(c *gin.Context, err error) {
	var ve *ValidationError
	var ge *GatewayError
	var ite *IllegalTransitionError

	switch {
	case errors.As(err, &ve):
		RespondError(c, http.StatusBadRequest, ve.Error())
	case errors.Is(err, ErrTransactionNotFound), errors.Is(err, ErrOfferNotFound):
		RespondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotTransactionOwner):
		RespondError(c, http.StatusForbidden, "Forbidden: not a party to this transaction")
	case errors.Is(err, ErrInvalidOfferState):
		RespondError(c, http.StatusConflict, err.Error())
	case errors.As(err, &ite):
		log.Printf("illegal transition rejected: %v", err)
		RespondError(c, http.StatusConflict, ite.Error())
	case errors.Is(err, ErrProviderNotSettleable):
		RespondError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrGatewayTimeout):
		RespondError(c, http.StatusServiceUnavailable, "Payment gateway timed out")
	case errors.As(err, &ge):
		log.Printf("gateway error: %v", err)
		RespondError(c, http.StatusBadGateway, "Payment could not be processed")
	case errors.Is(err, ErrDatabaseError):
		log.Printf("Database error: %v", err)
		RespondError(c, http.StatusInternalServerError, "Internal server error")
	default:
		log.Printf("Unknown error: %v", err)
		RespondError(c, http.StatusInternalServerError, "Internal server error")
	}
}
