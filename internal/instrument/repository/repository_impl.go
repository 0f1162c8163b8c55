package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payflow/internal/instrument/domain"
	"gorm.io/gorm"
)

type directory struct{}

func Provide() domain.Directory {
	return &directory{}
}

func (d *directory) Resolve(ctx context.Context, db *gorm.DB, instrumentID snowflake.ID) (*domain.Profile, error) {
	var profile domain.Profile
	err := db.WithContext(ctx).Raw(
		`SELECT id, provider_config_id, has_limit, single_reserve_per_instrument,
			billing_name, billing_street, billing_city, billing_region,
			billing_postal_code, billing_country, created_at
		 FROM instrument_profiles
		 WHERE id = ?
		 LIMIT 1`,
		instrumentID,
	).Scan(&profile).Error
	if err != nil {
		return nil, err
	}
	if profile.ID == 0 {
		return nil, domain.ErrInstrumentNotFound
	}
	return &profile, nil
}
