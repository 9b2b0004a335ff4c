package port

import "errors"

// Sentinel errors used across ports.
var (
	ErrValidation          = errors.New("validation failed")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrUpstreamMalformed   = errors.New("upstream response malformed")
	ErrNetwork             = errors.New("network error")
	ErrAuthFailure         = errors.New("token rejected")
	ErrNoToken             = errors.New("no token")
	ErrEventNotAllowed     = errors.New("conversion event not allowed")
	ErrSinkNotReady        = errors.New("analytics sink not ready")
	ErrAnalyticsDelivery   = errors.New("analytics delivery failed")
)
