package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payflow/internal/order/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindOrder(ctx context.Context, db *gorm.DB, orderID snowflake.ID) (*domain.Order, error) {
	var order domain.Order
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_number, currency, total_amount,
			billing_name, billing_street, billing_city, billing_region,
			billing_postal_code, billing_country, created_at, updated_at
		 FROM orders
		 WHERE id = ?
		 LIMIT 1`,
		orderID,
	).Scan(&order).Error
	if err != nil {
		return nil, err
	}
	if order.ID == 0 {
		return nil, domain.ErrOrderNotFound
	}

	if err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, name, quantity, unit_price, tax_amount, discounted_total
		 FROM order_line_items
		 WHERE order_id = ?
		 ORDER BY id`,
		orderID,
	).Scan(&order.LineItems).Error; err != nil {
		return nil, err
	}

	if err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, status, total_amount, created_at, updated_at
		 FROM order_shipments
		 WHERE order_id = ?
		 ORDER BY id`,
		orderID,
	).Scan(&order.Shipments).Error; err != nil {
		return nil, err
	}

	return &order, nil
}

func (r *repo) FindShipment(ctx context.Context, db *gorm.DB, orderID, shipmentID snowflake.ID) (*domain.Shipment, error) {
	var shipment domain.Shipment
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, status, total_amount, created_at, updated_at
		 FROM order_shipments
		 WHERE id = ? AND order_id = ?
		 LIMIT 1`,
		shipmentID,
		orderID,
	).Scan(&shipment).Error
	if err != nil {
		return nil, err
	}
	if shipment.ID == 0 {
		return nil, domain.ErrShipmentNotFound
	}
	return &shipment, nil
}

func (r *repo) ListSelections(ctx context.Context, db *gorm.DB, orderID snowflake.ID) ([]domain.InstrumentSelection, error) {
	var selections []domain.InstrumentSelection
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, instrument_id, limit_amount, original, created_at
		 FROM order_instrument_selections
		 WHERE order_id = ?
		 ORDER BY created_at, id`,
		orderID,
	).Scan(&selections).Error
	if err != nil {
		return nil, err
	}
	return selections, nil
}

func (r *repo) FindSelection(ctx context.Context, db *gorm.DB, selectionID snowflake.ID) (*domain.InstrumentSelection, error) {
	var selection domain.InstrumentSelection
	err := db.WithContext(ctx).Raw(
		`SELECT id, order_id, instrument_id, limit_amount, original, created_at
		 FROM order_instrument_selections
		 WHERE id = ?
		 LIMIT 1`,
		selectionID,
	).Scan(&selection).Error
	if err != nil {
		return nil, err
	}
	if selection.ID == 0 {
		return nil, domain.ErrSelectionNotFound
	}
	return &selection, nil
}
