package otp

import (
	"context"
	"errors"

	"github.com/AVISH911/donorhub-blood-donation/internal/domain"
)

// deliver calls the gateway under the service's own deadline. A gateway that
// ignores ctx and hangs still resolves as TIMEOUT once the deadline passes.
func (s *Service) deliver(ctx context.Context, email, code string) *domain.DeliveryError {
	ctx, cancel := context.WithTimeout(ctx, s.opts.DeliveryTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- s.gateway.Send(ctx, email, code, s.opts.Validity)
	}()

	select {
	case err := <-done:
		if err == nil {
			return nil
		}
		return domain.ClassifyDeliveryError(err)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return domain.NewDeliveryError(domain.DeliveryTimeout, ctx.Err())
		}
		return domain.NewDeliveryError(domain.DeliverySendFailed, ctx.Err())
	}
}

// deliveryFailure maps a delivery kind to the caller-facing code and message.
func deliveryFailure(derr *domain.DeliveryError, kind issueKind) *domain.Error {
	e := &domain.Error{Err: derr}
	switch derr.Kind {
	case domain.DeliveryTimeout:
		e.Code, e.Message = domain.CodeEmailTimeout, "Email service timeout. Please try again."
	case domain.DeliveryAuthFailed:
		e.Code, e.Message = domain.CodeEmailAuthFailed, "Email service is temporarily unavailable. Please contact support."
	case domain.DeliveryConnectionFailed:
		e.Code, e.Message = domain.CodeEmailConnFailed, "Unable to connect to email service. Please try again."
	case domain.DeliveryNotConfigured:
		e.Code, e.Message = domain.CodeEmailNotConfigured, "Email service is not configured. Please contact support."
	case domain.DeliveryInvalidEmail:
		e.Code, e.Message = domain.CodeInvalidEmail, "Invalid email address. Please check and try again."
	default:
		e.Code = domain.CodeEmailSendFailed
		if kind == issueResend {
			e.Message = "Failed to resend OTP email. Please try again."
		} else {
			e.Message = "Failed to send OTP email. Please try again."
		}
	}
	return e
}
