package domain

import (
	"errors"
	"fmt"
)

var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrValidationFailed       = errors.New("validation failed")
	ErrGatewayUnavailable     = errors.New("gateway unavailable")
	ErrPaymentCancelled       = errors.New("payment cancelled")
	// ErrRefreshFailed is only logged and counted; callers of a refresh
	// never see it.
	ErrRefreshFailed = errors.New("cart refresh failed")
)

type Field string

const (
	FieldName    Field = "name"
	FieldEmail   Field = "email"
	FieldPhone   Field = "phone"
	FieldStreet  Field = "street"
	FieldCity    Field = "city"
	FieldState   Field = "state"
	FieldPincode Field = "pincode"
	FieldCart    Field = "cart"

	FieldPaymentMethod Field = "paymentMethod"
)

type ValidationError struct {
	Field   Field
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// GatewayError is a failed call to the remote API. Message holds the
// server-provided message when the response carried one.
type GatewayError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *GatewayError) Error() string {
	switch {
	case e.Message != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
}

func (e *GatewayError) Is(target error) bool {
	return target == ErrGatewayUnavailable
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// ServerMessage returns the message the server sent, if any.
func ServerMessage(err error) (string, bool) {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) && gwErr.Message != "" {
		return gwErr.Message, true
	}
	return "", false
}
