package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository reads the payment-relevant order state. Every orchestration
// operation re-reads through it; nothing is cached.
type Repository interface {
	FindOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*Order, error)
	FindShipment(ctx context.Context, db *gorm.DB, orderID, shipmentID snowflake.ID) (*Shipment, error)
	ListSelections(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]InstrumentSelection, error)
	FindSelection(ctx context.Context, db *gorm.DB, selectionID snowflake.ID) (*InstrumentSelection, error)
}
