package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	instrumentdomain "github.com/smallbiznis/payflow/internal/instrument/domain"
	"gorm.io/datatypes"
)

// EventKind classifies a payment event.
type EventKind string

const (
	EventKindReserve       EventKind = "reserve"
	EventKindModifyReserve EventKind = "modify_reserve"
	EventKindCharge        EventKind = "charge"
	EventKindCancelReserve EventKind = "cancel_reserve"
	EventKindCredit        EventKind = "credit"
	EventKindManualCredit  EventKind = "manual_credit"
)

// EventStatus is the provider's verdict on a single event.
type EventStatus string

const (
	EventStatusApproved EventStatus = "approved"
	EventStatusFailed   EventStatus = "failed"
	EventStatusSkipped  EventStatus = "skipped"
)

// PaymentEvent is one entry in an order's payment ledger. The ledger is the
// sole source of financial truth for an order; there is no running balance
// anywhere. Events are immutable once persisted.
type PaymentEvent struct {
	ID     snowflake.ID
	Kind   EventKind
	Status EventStatus

	Amount   int64
	Currency string

	OccurredAt  time.Time
	OrderNumber string

	// SelectionID links the event to the instrument selection it was
	// executed against. Instrument carries the resolved provider-facing
	// profile; the reader fills it in, provider responses may leave it nil.
	SelectionID snowflake.ID
	Instrument  *instrumentdomain.Profile

	// ParentID references the reservation an event derives from. Reserve
	// events never have a parent.
	ParentID *snowflake.ID

	OriginalInstrument bool
	EventData          map[string]any

	ExternalMessage string
	InternalMessage string
}

// PaymentRecord is the persisted form of a PaymentEvent. Append-only:
// records are never updated or deleted by this engine.
type PaymentRecord struct {
	ID                 snowflake.ID   `gorm:"primaryKey"`
	OrderID            snowflake.ID   `gorm:"not null;index"`
	OrderNumber        string         `gorm:"type:text;not null"`
	Kind               EventKind      `gorm:"type:text;not null"`
	Status             EventStatus    `gorm:"type:text;not null"`
	Amount             int64          `gorm:"not null"`
	Currency           string         `gorm:"type:text;not null"`
	SelectionID        snowflake.ID   `gorm:"not null;index"`
	ParentID           *snowflake.ID  `gorm:"index"`
	OriginalInstrument bool           `gorm:"not null;default:false"`
	EventData          datatypes.JSON `gorm:"type:jsonb"`
	ExternalMessage    string         `gorm:"type:text"`
	InternalMessage    string         `gorm:"type:text"`
	OccurredAt         time.Time      `gorm:"not null;index"`
	CreatedAt          time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (PaymentRecord) TableName() string { return "payment_records" }

var (
	ErrInvalidOrder    = errors.New("invalid_order")
	ErrInvalidEvent    = errors.New("invalid_event")
	ErrInvalidKind     = errors.New("invalid_event_kind")
	ErrInvalidStatus   = errors.New("invalid_event_status")
	ErrInvalidCurrency = errors.New("invalid_currency")
)
