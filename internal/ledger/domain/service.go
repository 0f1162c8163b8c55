package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Service reads and appends an order's payment ledger.
type Service interface {
	// Read reconstructs the ordered event sequence for an order from its
	// persisted records, resolving each event's instrument profile. It has
	// no side effects and is re-derived on every call.
	Read(ctx context.Context, orderID snowflake.ID) ([]PaymentEvent, error)

	// Append persists the given events as new ledger records and returns
	// them with assigned identifiers. Prior records are never touched.
	Append(ctx context.Context, orderID snowflake.ID, orderNumber string, events []PaymentEvent) ([]PaymentEvent, error)
}

// Repository is the raw record store beneath the ledger service.
type Repository interface {
	ListByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]PaymentRecord, error)
	Insert(ctx context.Context, db *gorm.DB, record *PaymentRecord) (bool, error)
}
