package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Profile is the provider-facing view of a stored payment instrument:
// the billing address to submit and the capability flags the provider
// reported when the instrument was vaulted.
type Profile struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	ProviderConfigID string       `gorm:"type:text;not null"`

	HasLimit                   bool `gorm:"not null;default:false"`
	SingleReservePerInstrument bool `gorm:"not null;default:false"`

	BillingName       string `gorm:"type:text"`
	BillingStreet     string `gorm:"type:text"`
	BillingCity       string `gorm:"type:text"`
	BillingRegion     string `gorm:"type:text"`
	BillingPostalCode string `gorm:"type:text"`
	BillingCountry    string `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Profile) TableName() string { return "instrument_profiles" }

// Directory resolves instrument references to their profiles.
type Directory interface {
	Resolve(ctx context.Context, db *gorm.DB, instrumentID snowflake.ID) (*Profile, error)
}

var ErrInstrumentNotFound = errors.New("instrument_not_found")
