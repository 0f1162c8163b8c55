package service

import (
	orderdomain "github.com/smallbiznis/payflow/internal/order/domain"
)

// CompletedShipmentsTotal sums the totals of all shipped shipments.
func CompletedShipmentsTotal(order *orderdomain.Order) int64 {
	var total int64
	for _, shipment := range order.Shipments {
		if shipment.Status == orderdomain.ShipmentStatusShipped {
			total += shipment.TotalAmount
		}
	}
	return total
}

// IsLastShipment reports whether every shipment other than the current one
// is already shipped or cancelled, i.e. the current shipment is the last one
// still pending completion.
func IsLastShipment(order *orderdomain.Order, current *orderdomain.Shipment) bool {
	for _, shipment := range order.Shipments {
		if shipment.ID == current.ID {
			continue
		}
		switch shipment.Status {
		case orderdomain.ShipmentStatusShipped, orderdomain.ShipmentStatusCancelled:
		default:
			return false
		}
	}
	return true
}
