package service

import (
	paymentdomain "github.com/smallbiznis/payflow/internal/payment/domain"
	providerdomain "github.com/smallbiznis/payflow/internal/provider/domain"
)

// IsSingleReservePerInstrument reports whether any selected instrument
// declares single-reserve-per-instrument semantics: charge once at the end
// instead of incrementally per shipment.
func IsSingleReservePerInstrument(instruments []providerdomain.Instrument) bool {
	for _, inst := range instruments {
		if inst.SingleReservePerInstrument {
			return true
		}
	}
	return false
}

// ValidateReservation enforces the instrument-selection invariant: exactly
// one unlimited instrument, and the limited caps must not exceed the target
// amount. Free orders skip validation entirely.
func ValidateReservation(req *providerdomain.Request) error {
	if req.Amount == 0 {
		return nil
	}

	var (
		unlimited    int
		limitedTotal int64
	)
	for _, inst := range req.Instruments {
		if inst.Unlimited() {
			unlimited++
			continue
		}
		limitedTotal += *inst.LimitAmount
	}

	if unlimited == 0 {
		return paymentdomain.ErrNoUnlimitedInstrument
	}
	if unlimited > 1 {
		return paymentdomain.ErrMultipleUnlimitedInstrument
	}
	if limitedTotal > req.Amount {
		return paymentdomain.ErrLimitsExceedOrderTotal
	}
	return nil
}
