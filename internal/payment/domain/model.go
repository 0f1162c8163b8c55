package domain

import (
	"errors"
	"fmt"
)

// Invariant violations, raised before any provider call.
var (
	ErrNoUnlimitedInstrument       = errors.New("at least 1 unlimited instrument required")
	ErrMultipleUnlimitedInstrument = errors.New("only 1 unlimited instrument allowed")
	ErrLimitsExceedOrderTotal      = errors.New("instrument limits exceed order total")
)

// Illegal arguments, rejected before any provider interaction.
var (
	ErrInvalidAmount          = errors.New("invalid_amount")
	ErrShipmentAlreadyShipped = errors.New("shipment_already_shipped")
	ErrManualCreditDisabled   = errors.New("manual_credit_disabled")
	ErrManualCreditAboveLimit = errors.New("manual_credit_above_limit")
)

// ErrPaymentDeclined is the sentinel for provider-side failures. Use
// errors.Is against it; the concrete error is a DeclinedError carrying the
// provider's messages.
var ErrPaymentDeclined = errors.New("payment_declined")

// DeclinedError surfaces a provider decline to the caller, after any
// returned events (failed ones included) have been persisted.
type DeclinedError struct {
	ExternalMessage string
	InternalMessage string
}

func (e *DeclinedError) Error() string {
	if e.InternalMessage != "" {
		return fmt.Sprintf("payment_declined: %s", e.InternalMessage)
	}
	if e.ExternalMessage != "" {
		return fmt.Sprintf("payment_declined: %s", e.ExternalMessage)
	}
	return "payment_declined"
}

func (e *DeclinedError) Is(target error) bool { return target == ErrPaymentDeclined }
