package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type ShipmentStatus string

const (
	ShipmentStatusPending   ShipmentStatus = "pending"
	ShipmentStatusShipped   ShipmentStatus = "shipped"
	ShipmentStatusCancelled ShipmentStatus = "cancelled"
)

// Order is the payment-relevant view of a customer order. Amounts are minor
// units in Currency.
type Order struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	OrderNumber string       `gorm:"type:text;not null;uniqueIndex"`
	Currency    string       `gorm:"type:text;not null"`
	TotalAmount int64        `gorm:"not null"`

	BillingName       string `gorm:"type:text"`
	BillingStreet     string `gorm:"type:text"`
	BillingCity       string `gorm:"type:text"`
	BillingRegion     string `gorm:"type:text"`
	BillingPostalCode string `gorm:"type:text"`
	BillingCountry    string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`

	LineItems []LineItem `gorm:"-"`
	Shipments []Shipment `gorm:"-"`
}

func (Order) TableName() string { return "orders" }

// LineItem carries the per-line figures the provider needs for its own
// reconciliation.
type LineItem struct {
	ID              snowflake.ID `gorm:"primaryKey"`
	OrderID         snowflake.ID `gorm:"not null;index"`
	Name            string       `gorm:"type:text;not null"`
	Quantity        int64        `gorm:"not null"`
	UnitPrice       int64        `gorm:"not null"`
	TaxAmount       int64        `gorm:"not null"`
	DiscountedTotal int64        `gorm:"not null"`
}

func (LineItem) TableName() string { return "order_line_items" }

// ChargeableTotal is the tax-inclusive line total when the line carries tax,
// otherwise the discounted pre-tax total.
func (li LineItem) ChargeableTotal() int64 {
	if li.TaxAmount != 0 {
		return li.DiscountedTotal + li.TaxAmount
	}
	return li.DiscountedTotal
}

type Shipment struct {
	ID          snowflake.ID   `gorm:"primaryKey"`
	OrderID     snowflake.ID   `gorm:"not null;index"`
	Status      ShipmentStatus `gorm:"type:text;not null"`
	TotalAmount int64          `gorm:"not null"`
	CreatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Shipment) TableName() string { return "order_shipments" }

// InstrumentSelection associates an order with a chosen payment instrument.
// A nil LimitAmount means the instrument is unlimited and absorbs residual
// liability.
type InstrumentSelection struct {
	ID           snowflake.ID `gorm:"primaryKey"`
	OrderID      snowflake.ID `gorm:"not null;index"`
	InstrumentID snowflake.ID `gorm:"not null;index"`
	LimitAmount  *int64       `gorm:""`
	Original     bool         `gorm:"not null;default:false"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (InstrumentSelection) TableName() string { return "order_instrument_selections" }

func (s InstrumentSelection) Unlimited() bool { return s.LimitAmount == nil }

var (
	ErrOrderNotFound     = errors.New("order_not_found")
	ErrShipmentNotFound  = errors.New("shipment_not_found")
	ErrSelectionNotFound = errors.New("instrument_selection_not_found")
)
