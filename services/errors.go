package services

import (
	"fmt"
	"net/http"
	"order-payment-service/models"
)

const (
	CodeNotFound               = "NOT_FOUND"
	CodeOwnershipConflict      = "OWNERSHIP_CONFLICT"
	CodeInvalidStateTransition = "INVALID_STATE_TRANSITION"
	CodeAmountMismatch         = "AMOUNT_MISMATCH"
	CodeVerificationFailed     = "VERIFICATION_FAILED"
	CodeGatewayUnavailable     = "GATEWAY_UNAVAILABLE"
	CodeProvisioningFailed     = "PROVISIONING_FAILED"
	CodeValidationFailed       = "VALIDATION_FAILED"
	CodeDuplicateOrder         = "DUPLICATE_ORDER"
	CodeInternal               = "INTERNAL"
)

// ServiceError is returned by every service method. StatusCode is the HTTP
// status the controller should answer with.
type ServiceError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Retryable reports whether the caller may repeat the request unchanged.
func (e *ServiceError) Retryable() bool {
	return e.Code == CodeGatewayUnavailable || e.Code == CodeInternal
}

func errNotFound(orderNo string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusNotFound, Code: CodeNotFound, Message: fmt.Sprintf("order %s not found", orderNo)}
}

func errOwnership() *ServiceError {
	return &ServiceError{StatusCode: http.StatusForbidden, Code: CodeOwnershipConflict, Message: "order does not belong to the caller"}
}

func errInvalidTransition(from, to models.OrderStatus) *ServiceError {
	return &ServiceError{
		StatusCode: http.StatusConflict,
		Code:       CodeInvalidStateTransition,
		Message:    fmt.Sprintf("order cannot move from %s to %s", from, to),
	}
}

func errNotPayable(status models.OrderStatus) *ServiceError {
	return &ServiceError{
		StatusCode: http.StatusConflict,
		Code:       CodeInvalidStateTransition,
		Message:    fmt.Sprintf("order is %s and can no longer be paid", status),
	}
}

func errAmountMismatch() *ServiceError {
	return &ServiceError{StatusCode: http.StatusConflict, Code: CodeAmountMismatch, Message: "amount does not match the order"}
}

func errVerification() *ServiceError {
	return &ServiceError{StatusCode: http.StatusBadRequest, Code: CodeVerificationFailed, Message: "notification failed verification"}
}

func errGateway() *ServiceError {
	return &ServiceError{StatusCode: http.StatusBadGateway, Code: CodeGatewayUnavailable, Message: "payment gateway unavailable, please retry"}
}

func errValidation(msg string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusBadRequest, Code: CodeValidationFailed, Message: msg}
}

func errDuplicate(orderNo string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusConflict, Code: CodeDuplicateOrder, Message: fmt.Sprintf("order %s already exists", orderNo)}
}

func errInternal(msg string) *ServiceError {
	return &ServiceError{StatusCode: http.StatusInternalServerError, Code: CodeInternal, Message: msg}
}
