package utils

import "errors"

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrPlanNotFound        = errors.New("plan not found")
	ErrInvalidStatus       = errors.New("invalid transaction status")
	ErrInvalidPaymentCode  = errors.New("invalid payment code")
	ErrConcurrentUpdate    = errors.New("transaction changed concurrently, retry")
	ErrTickInProgress      = errors.New("a run of this task is already in progress")
	ErrDatabaseError       = errors.New("database error")
)
