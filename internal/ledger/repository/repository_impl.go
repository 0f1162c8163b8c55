package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payflow/internal/ledger/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) ListByOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]domain.PaymentRecord, error) {
	var records []domain.PaymentRecord
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, order_number, kind, status, amount, currency,
			selection_id, parent_id, original_instrument, event_data,
			external_message, internal_message, occurred_at, created_at
		 FROM payment_records
		 WHERE order_id = ?
		 ORDER BY occurred_at, id`,
		orderID,
	).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, record *domain.PaymentRecord) (bool, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO payment_records (
			id, order_id, order_number, kind, status, amount, currency,
			selection_id, parent_id, original_instrument, event_data,
			external_message, internal_message, occurred_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		record.ID,
		record.OrderID,
		record.OrderNumber,
		record.Kind,
		record.Status,
		record.Amount,
		record.Currency,
		record.SelectionID,
		record.ParentID,
		record.OriginalInstrument,
		record.EventData,
		record.ExternalMessage,
		record.InternalMessage,
		record.OccurredAt,
		record.CreatedAt,
	)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
