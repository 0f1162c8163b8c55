package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/payflow/internal/ledger/domain"
)

// Service drives an order's payment lifecycle against the provider workflow.
// Every operation re-reads all order and ledger state; the engine holds no
// state between invocations. Serialization of concurrent operations on one
// order is the caller's responsibility.
type Service interface {
	// OrderCreated validates the instrument selection and reserves the
	// order total.
	OrderCreated(ctx context.Context, orderID snowflake.ID) error

	// OrderCreatedRollback cancels all reservations made for the order.
	OrderCreatedRollback(ctx context.Context, orderID snowflake.ID) error

	// ShipmentCompleted charges the cumulative total of completed
	// shipments, flagging the final payment when no other shipment is
	// still pending.
	ShipmentCompleted(ctx context.Context, orderID, shipmentID snowflake.ID) error

	// ShipmentCompletedRollback reverses the supplied prior charge events.
	ShipmentCompletedRollback(ctx context.Context, orderID snowflake.ID, priorEvents []ledgerdomain.PaymentEvent) error

	// ShipmentCanceled shrinks or finishes the reservation for a shipment
	// that will never ship.
	ShipmentCanceled(ctx context.Context, orderID, shipmentID snowflake.ID) error

	// OrderCanceled cancels all reservations for the order.
	OrderCanceled(ctx context.Context, orderID snowflake.ID) error

	// OrderModified re-targets the reservation to the new order total.
	OrderModified(ctx context.Context, orderID snowflake.ID, newTotal int64) error

	// Refund credits the given amount back to the customer.
	Refund(ctx context.Context, orderID snowflake.ID, amount int64) error

	// ManualRefund credits the given amount outside the regular refund
	// path, subject to the operational guardrails.
	ManualRefund(ctx context.Context, orderID snowflake.ID, amount int64) error
}
