package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// DeliveryKind classifies why a code could not be delivered.
type DeliveryKind string

const (
	DeliveryInvalidEmail     DeliveryKind = "INVALID_EMAIL"
	DeliveryInvalidCode      DeliveryKind = "INVALID_CODE"
	DeliveryAuthFailed       DeliveryKind = "AUTH_FAILED"
	DeliveryTimeout          DeliveryKind = "TIMEOUT"
	DeliveryConnectionFailed DeliveryKind = "CONNECTION_FAILED"
	DeliveryNotConfigured    DeliveryKind = "NOT_CONFIGURED"
	DeliverySendFailed       DeliveryKind = "SEND_FAILED"
)

// DeliveryError is the only failure shape a delivery gateway returns.
type DeliveryError struct {
	Kind DeliveryKind
	Err  error
}

func (e *DeliveryError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("delivery failed (%s)", e.Kind)
	}
	return fmt.Sprintf("delivery failed (%s): %v", e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

func NewDeliveryError(kind DeliveryKind, err error) *DeliveryError {
	return &DeliveryError{Kind: kind, Err: err}
}

// ClassifyDeliveryError turns an arbitrary transport error into a DeliveryError.
// Errors that are already classified are returned unchanged.
func ClassifyDeliveryError(err error) *DeliveryError {
	if err == nil {
		return nil
	}
	var de *DeliveryError
	if errors.As(err, &de) {
		return de
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewDeliveryError(DeliveryTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewDeliveryError(DeliveryTimeout, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return NewDeliveryError(DeliveryConnectionFailed, err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return NewDeliveryError(DeliveryConnectionFailed, err)
	}
	return NewDeliveryError(DeliverySendFailed, err)
}
