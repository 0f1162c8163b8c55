// Package sandbox is an in-process provider adapter that approves every
// operation. It keeps the full orchestration path exercisable in development
// and in tests without a real payment provider.
package sandbox

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/smallbiznis/payflow/internal/clock"
	ledgerdomain "github.com/smallbiznis/payflow/internal/ledger/domain"
	"github.com/smallbiznis/payflow/internal/provider/domain"
	"go.uber.org/zap"
)

const providerName = "sandbox"

type factory struct{}

func NewFactory() domain.AdapterFactory { return factory{} }

func (factory) Provider() string { return providerName }

func (factory) NewAdapter(cfg domain.AdapterConfig) (domain.Workflow, error) {
	log := cfg.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &adapter{
		log:   log.Named("provider.sandbox"),
		genID: cfg.GenID,
		clock: cfg.Clock,
	}, nil
}

type adapter struct {
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
}

func (a *adapter) Reserve(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	shares := allocate(req.Amount, req.Instruments)
	events := make([]ledgerdomain.PaymentEvent, 0, len(req.Instruments))
	for i, inst := range req.Instruments {
		if shares[i] == 0 && !inst.Unlimited() {
			events = append(events, a.event(req, inst, ledgerdomain.EventKindReserve, ledgerdomain.EventStatusSkipped, 0, nil))
			continue
		}
		events = append(events, a.event(req, inst, ledgerdomain.EventKindReserve, ledgerdomain.EventStatusApproved, shares[i], nil))
	}
	return &domain.Response{Success: true, Events: events}, nil
}

func (a *adapter) ModifyReservation(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	shares := allocate(req.Amount, req.Instruments)
	events := make([]ledgerdomain.PaymentEvent, 0, len(req.Instruments))
	for i, inst := range req.Instruments {
		parent := latestReservation(req.Ledger, inst.SelectionID)
		if parent == nil {
			// Nothing to modify for an instrument that never held a
			// reservation.
			events = append(events, a.event(req, inst, ledgerdomain.EventKindModifyReserve, ledgerdomain.EventStatusSkipped, 0, nil))
			continue
		}
		events = append(events, a.event(req, inst, ledgerdomain.EventKindModifyReserve, ledgerdomain.EventStatusApproved, shares[i], &parent.ID))
	}
	return &domain.Response{Success: true, Events: events}, nil
}

func (a *adapter) ChargePayment(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	// The request amount is cumulative; only the delta beyond what the
	// ledger already shows as charged is captured now.
	due := req.Amount - approvedTotal(req.Ledger, ledgerdomain.EventKindCharge)
	if due <= 0 {
		return &domain.Response{Success: true}, nil
	}

	shares := allocate(due, req.Instruments)
	events := make([]ledgerdomain.PaymentEvent, 0, len(req.Instruments))
	for i, inst := range req.Instruments {
		if shares[i] == 0 {
			continue
		}
		var parentID *snowflake.ID
		if parent := latestReservation(req.Ledger, inst.SelectionID); parent != nil {
			parentID = &parent.ID
		}
		events = append(events, a.event(req, inst, ledgerdomain.EventKindCharge, ledgerdomain.EventStatusApproved, shares[i], parentID))
	}
	return &domain.Response{Success: true, Events: events}, nil
}

func (a *adapter) CancelAllReservations(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	events := make([]ledgerdomain.PaymentEvent, 0, len(req.Instruments))
	for _, inst := range req.Instruments {
		parent := latestReservation(req.Ledger, inst.SelectionID)
		if parent == nil {
			continue
		}
		events = append(events, a.event(req, inst, ledgerdomain.EventKindCancelReserve, ledgerdomain.EventStatusApproved, parent.Amount, &parent.ID))
	}
	return &domain.Response{Success: true, Events: events}, nil
}

func (a *adapter) Credit(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	return a.credit(req, ledgerdomain.EventKindCredit)
}

func (a *adapter) ManualCredit(ctx context.Context, req *domain.Request) (*domain.Response, error) {
	return a.credit(req, ledgerdomain.EventKindManualCredit)
}

func (a *adapter) credit(req *domain.Request, kind ledgerdomain.EventKind) (*domain.Response, error) {
	if req.Amount == 0 {
		return &domain.Response{Success: true}, nil
	}
	inst, ok := creditTarget(req.Instruments)
	if !ok {
		return &domain.Response{
			Success:         false,
			InternalMessage: "no instrument available for credit",
		}, nil
	}
	var parentID *snowflake.ID
	if parent := latestCharge(req.Ledger, inst.SelectionID); parent != nil {
		parentID = &parent.ID
	}
	event := a.event(req, inst, kind, ledgerdomain.EventStatusApproved, req.Amount, parentID)
	return &domain.Response{Success: true, Events: []ledgerdomain.PaymentEvent{event}}, nil
}

func (a *adapter) event(req *domain.Request, inst domain.Instrument, kind ledgerdomain.EventKind, status ledgerdomain.EventStatus, amount int64, parentID *snowflake.ID) ledgerdomain.PaymentEvent {
	return ledgerdomain.PaymentEvent{
		Kind:               kind,
		Status:             status,
		Amount:             amount,
		Currency:           req.Currency,
		OccurredAt:         a.clock.Now(),
		OrderNumber:        req.OrderNumber,
		SelectionID:        inst.SelectionID,
		ParentID:           parentID,
		OriginalInstrument: inst.Original,
		EventData: map[string]any{
			"provider":           providerName,
			"provider_reference": uuid.NewString(),
		},
	}
}

// allocate splits amount across instruments: limited instruments are filled
// up to their caps in order, the unlimited instrument takes the remainder.
func allocate(amount int64, instruments []domain.Instrument) []int64 {
	shares := make([]int64, len(instruments))
	remaining := amount
	for i, inst := range instruments {
		if inst.Unlimited() {
			continue
		}
		share := *inst.LimitAmount
		if share > remaining {
			share = remaining
		}
		shares[i] = share
		remaining -= share
	}
	for i, inst := range instruments {
		if inst.Unlimited() {
			shares[i] = remaining
			break
		}
	}
	return shares
}

func approvedTotal(ledger []ledgerdomain.PaymentEvent, kind ledgerdomain.EventKind) int64 {
	var total int64
	for _, event := range ledger {
		if event.Kind == kind && event.Status == ledgerdomain.EventStatusApproved {
			total += event.Amount
		}
	}
	return total
}

func latestReservation(ledger []ledgerdomain.PaymentEvent, selectionID snowflake.ID) *ledgerdomain.PaymentEvent {
	return latest(ledger, selectionID, ledgerdomain.EventKindReserve)
}

func latestCharge(ledger []ledgerdomain.PaymentEvent, selectionID snowflake.ID) *ledgerdomain.PaymentEvent {
	return latest(ledger, selectionID, ledgerdomain.EventKindCharge)
}

func latest(ledger []ledgerdomain.PaymentEvent, selectionID snowflake.ID, kind ledgerdomain.EventKind) *ledgerdomain.PaymentEvent {
	var found *ledgerdomain.PaymentEvent
	for i := range ledger {
		event := ledger[i]
		if event.SelectionID != selectionID || event.Kind != kind {
			continue
		}
		if event.Status != ledgerdomain.EventStatusApproved {
			continue
		}
		if found == nil || event.OccurredAt.After(found.OccurredAt) {
			found = &ledger[i]
		}
	}
	return found
}

func creditTarget(instruments []domain.Instrument) (domain.Instrument, bool) {
	for _, inst := range instruments {
		if inst.Unlimited() {
			return inst, true
		}
	}
	if len(instruments) > 0 {
		return instruments[0], true
	}
	return domain.Instrument{}, false
}
