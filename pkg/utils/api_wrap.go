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

func HandleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrTransactionNotFound):
		RespondError(c, http.StatusNotFound, "Transaction not found")
	case errors.Is(err, ErrPlanNotFound):
		RespondError(c, http.StatusNotFound, "Plan not found")
	case errors.Is(err, ErrInvalidStatus):
		RespondError(c, http.StatusBadRequest, "Unknown transaction status")
	case errors.Is(err, ErrInvalidPaymentCode):
		RespondError(c, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, ErrConcurrentUpdate):
		RespondError(c, http.StatusConflict, "Transaction changed concurrently, retry")
	case errors.Is(err, ErrTickInProgress):
		RespondError(c, http.StatusConflict, "Already running")
	default:
		log.Printf("Unhandled service error: %v", err)
		RespondError(c, http.StatusInternalServerError, "Internal server error")
	}
}
