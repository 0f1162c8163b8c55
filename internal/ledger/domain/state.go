package domain

import "sort"

// LifecycleState is the payment lifecycle state implied by a ledger. It is
// never stored; it exists so the implicit state machine can be inspected and
// tested.
type LifecycleState string

const (
	StateUnpaid           LifecycleState = "unpaid"
	StateReserved         LifecycleState = "reserved"
	StatePartiallyCharged LifecycleState = "partially_charged"
	StateFullyCharged     LifecycleState = "fully_charged"
	StateCanceled         LifecycleState = "canceled"
	StateRefunded         LifecycleState = "refunded"
)

// DeriveState replays a ledger and returns the lifecycle state it implies.
// Only approved events move the state; failed and skipped events are history
// but carry no financial effect.
func DeriveState(events []PaymentEvent) LifecycleState {
	ordered := make([]PaymentEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OccurredAt.Before(ordered[j].OccurredAt)
	})

	var (
		reserveTarget int64
		charged       int64
		credited      int64
		reserved      bool
		canceled      bool
		prevModify    bool
	)

	for _, event := range ordered {
		if event.Status != EventStatusApproved {
			continue
		}
		modify := false
		switch event.Kind {
		case EventKindReserve:
			reserveTarget += event.Amount
			reserved = true
			canceled = false
		case EventKindModifyReserve:
			// A modification batch replaces the target; consecutive modify
			// events (one per instrument) accumulate into the new target.
			if !prevModify {
				reserveTarget = 0
			}
			reserveTarget += event.Amount
			reserved = true
			modify = true
		case EventKindCancelReserve:
			canceled = true
			reserveTarget = 0
		case EventKindCharge:
			charged += event.Amount
		case EventKindCredit, EventKindManualCredit:
			credited += event.Amount
		}
		prevModify = modify
	}

	switch {
	case charged > 0 && credited >= charged:
		return StateRefunded
	case canceled && charged == 0:
		return StateCanceled
	case charged > 0 && reserveTarget > 0 && charged < reserveTarget:
		return StatePartiallyCharged
	case charged > 0:
		return StateFullyCharged
	case reserved:
		return StateReserved
	default:
		return StateUnpaid
	}
}
