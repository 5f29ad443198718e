package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	DeliveryErrorBadInput         = "DELIVERY_BAD_INPUT"
	DeliveryErrorNotFound         = "DELIVERY_NOT_FOUND"
	DeliveryErrorDispatchInFlight = "DELIVERY_DISPATCH_IN_FLIGHT"
	DeliveryErrorRateLimited      = "DELIVERY_RATE_LIMITED"
	DeliveryErrorUpstreamFailed   = "DELIVERY_UPSTREAM_FAILED"
	DeliveryErrorCircuitOpen      = "DELIVERY_CIRCUIT_OPEN"
	DeliveryErrorInternal         = "DELIVERY_INTERNAL_ERROR"
)

func deliveryErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureDeliveryErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "not found"):
		return newDeliveryError(err.Error(), goerrors.CategoryNotFound, DeliveryErrorNotFound)
	case strings.Contains(msg, "already in flight"):
		return newDeliveryError(err.Error(), goerrors.CategoryConflict, DeliveryErrorDispatchInFlight)
	case strings.Contains(msg, "throttl"), strings.Contains(msg, "rate limit"):
		return newDeliveryError(err.Error(), goerrors.CategoryRateLimit, DeliveryErrorRateLimited)
	case strings.Contains(msg, "circuit"):
		return newDeliveryError(err.Error(), goerrors.CategoryExternal, DeliveryErrorCircuitOpen)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "mismatch"):
		return newDeliveryError(err.Error(), goerrors.CategoryBadInput, DeliveryErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureDeliveryErrorEnvelope(mapped)
}

func newDeliveryError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureDeliveryErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureDeliveryErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = deliveryHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultDeliveryTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultDeliveryTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return DeliveryErrorBadInput
	case goerrors.CategoryNotFound:
		return DeliveryErrorNotFound
	case goerrors.CategoryConflict:
		return DeliveryErrorDispatchInFlight
	case goerrors.CategoryRateLimit:
		return DeliveryErrorRateLimited
	case goerrors.CategoryExternal:
		return DeliveryErrorUpstreamFailed
	default:
		return DeliveryErrorInternal
	}
}

func deliveryHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
