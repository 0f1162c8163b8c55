package service

import (
	ledgerdomain "github.com/smallbiznis/payflow/internal/ledger/domain"
	orderdomain "github.com/smallbiznis/payflow/internal/order/domain"
	providerdomain "github.com/smallbiznis/payflow/internal/provider/domain"
)

// One builder per provider operation. Each produces an immutable request
// carrying the instrument list, the order context, the target amount and the
// full ledger, so the provider can reconcile against prior events.

func buildReserveRequest(order *orderdomain.Order, instruments []providerdomain.Instrument, ledger []ledgerdomain.PaymentEvent, amount int64) *providerdomain.Request {
	req := buildRequest(order, instruments, ledger, amount)
	req.SingleReservePerInstrument = IsSingleReservePerInstrument(instruments)
	return req
}

func buildModifyReservationRequest(order *orderdomain.Order, instruments []providerdomain.Instrument, ledger []ledgerdomain.PaymentEvent, amount int64, final bool) *providerdomain.Request {
	req := buildRequest(order, instruments, ledger, amount)
	req.FinalPayment = final
	return req
}

func buildChargeRequest(order *orderdomain.Order, instruments []providerdomain.Instrument, ledger []ledgerdomain.PaymentEvent, amount int64, final bool) *providerdomain.Request {
	req := buildRequest(order, instruments, ledger, amount)
	req.FinalPayment = final
	req.SingleReservePerInstrument = IsSingleReservePerInstrument(instruments)
	return req
}

func buildCancelAllReservationsRequest(order *orderdomain.Order, instruments []providerdomain.Instrument, ledger []ledgerdomain.PaymentEvent) *providerdomain.Request {
	return buildRequest(order, instruments, ledger, 0)
}

func buildCreditRequest(order *orderdomain.Order, instruments []providerdomain.Instrument, ledger []ledgerdomain.PaymentEvent, amount int64) *providerdomain.Request {
	return buildRequest(order, instruments, ledger, amount)
}

func buildManualCreditRequest(order *orderdomain.Order, instruments []providerdomain.Instrument, ledger []ledgerdomain.PaymentEvent, amount int64) *providerdomain.Request {
	return buildRequest(order, instruments, ledger, amount)
}

func buildRequest(order *orderdomain.Order, instruments []providerdomain.Instrument, ledger []ledgerdomain.PaymentEvent, amount int64) *providerdomain.Request {
	lines := make([]providerdomain.OrderLine, 0, len(order.LineItems))
	for _, item := range order.LineItems {
		lines = append(lines, providerdomain.OrderLine{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			TaxAmount: item.TaxAmount,
			Total:     item.ChargeableTotal(),
		})
	}

	return &providerdomain.Request{
		OrderNumber: order.OrderNumber,
		Currency:    order.Currency,
		Amount:      amount,
		Instruments: instruments,
		Lines:       lines,
		Ledger:      ledger,
	}
}
