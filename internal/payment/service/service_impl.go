package service

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payflow/internal/clock"
	"github.com/smallbiznis/payflow/internal/config"
	instrumentdomain "github.com/smallbiznis/payflow/internal/instrument/domain"
	ledgerdomain "github.com/smallbiznis/payflow/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/payflow/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/payflow/internal/order/domain"
	paymentdomain "github.com/smallbiznis/payflow/internal/payment/domain"
	providerdomain "github.com/smallbiznis/payflow/internal/provider/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	OrderRepo  orderdomain.Repository
	Directory  instrumentdomain.Directory
	LedgerSvc  ledgerdomain.Service
	Workflow   providerdomain.Workflow
	OrchCfg    *config.OrchestrationConfigHolder
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	orderRepo  orderdomain.Repository
	directory  instrumentdomain.Directory
	ledgerSvc  ledgerdomain.Service
	workflow   providerdomain.Workflow
	orchCfg    *config.OrchestrationConfigHolder
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		orderRepo:  p.OrderRepo,
		directory:  p.Directory,
		ledgerSvc:  p.LedgerSvc,
		workflow:   p.Workflow,
		orchCfg:    p.OrchCfg,
		obsMetrics: p.ObsMetrics,
	}
}

// paymentContext is the state re-read at the start of every operation. The
// engine keeps nothing between invocations.
type paymentContext struct {
	order       *orderdomain.Order
	instruments []providerdomain.Instrument
	ledger      []ledgerdomain.PaymentEvent
}

func (s *Service) loadContext(ctx context.Context, orderID snowflake.ID) (*paymentContext, error) {
	order, err := s.orderRepo.FindOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}

	selections, err := s.orderRepo.ListSelections(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}

	instruments := make([]providerdomain.Instrument, 0, len(selections))
	for _, selection := range selections {
		profile, err := s.directory.Resolve(ctx, s.db, selection.InstrumentID)
		if err != nil {
			return nil, err
		}
		instruments = append(instruments, providerdomain.Instrument{
			SelectionID:                selection.ID,
			ProviderConfigID:           profile.ProviderConfigID,
			LimitAmount:                selection.LimitAmount,
			Original:                   selection.Original,
			SingleReservePerInstrument: profile.SingleReservePerInstrument,
			Billing: providerdomain.Address{
				Name:       profile.BillingName,
				Street:     profile.BillingStreet,
				City:       profile.BillingCity,
				Region:     profile.BillingRegion,
				PostalCode: profile.BillingPostalCode,
				Country:    profile.BillingCountry,
			},
		})
	}

	events, err := s.ledgerSvc.Read(ctx, orderID)
	if err != nil {
		return nil, err
	}

	return &paymentContext{order: order, instruments: instruments, ledger: events}, nil
}

func (s *Service) OrderCreated(ctx context.Context, orderID snowflake.ID) error {
	err := s.orderCreated(ctx, orderID)
	s.recordOperation(ctx, "order_created", err)
	return err
}

func (s *Service) orderCreated(ctx context.Context, orderID snowflake.ID) error {
	pc, err := s.loadContext(ctx, orderID)
	if err != nil {
		return err
	}

	req := buildReserveRequest(pc.order, pc.instruments, pc.ledger, pc.order.TotalAmount)
	if err := ValidateReservation(req); err != nil {
		return err
	}

	resp, err := s.workflow.Reserve(ctx, req)
	s.recordProviderCall(ctx, "reserve", resp, err)
	if err != nil {
		return err
	}
	return s.finalize(ctx, pc.order, "order_created", resp)
}

func (s *Service) OrderCreatedRollback(ctx context.Context, orderID snowflake.ID) error {
	err := s.cancelAllReservations(ctx, orderID, "order_created_rollback")
	s.recordOperation(ctx, "order_created_rollback", err)
	return err
}

func (s *Service) ShipmentCompleted(ctx context.Context, orderID, shipmentID snowflake.ID) error {
	err := s.shipmentCompleted(ctx, orderID, shipmentID)
	s.recordOperation(ctx, "shipment_completed", err)
	return err
}

func (s *Service) shipmentCompleted(ctx context.Context, orderID, shipmentID snowflake.ID) error {
	pc, err := s.loadContext(ctx, orderID)
	if err != nil {
		return err
	}
	shipment, err := s.orderRepo.FindShipment(ctx, s.db, orderID, shipmentID)
	if err != nil {
		return err
	}

	// Cumulative chargeable amount: everything already shipped plus the
	// shipment completing now. The provider reconciles the delta against
	// the ledger, so prior charges are never repeated.
	amount := CompletedShipmentsTotal(pc.order)
	if shipment.Status != orderdomain.ShipmentStatusShipped {
		amount += shipment.TotalAmount
	}
	final := IsLastShipment(pc.order, shipment)

	req := buildChargeRequest(pc.order, pc.instruments, pc.ledger, amount, final)
	resp, err := s.workflow.ChargePayment(ctx, req)
	s.recordProviderCall(ctx, "charge", resp, err)
	if err != nil {
		return err
	}
	return s.finalize(ctx, pc.order, "shipment_completed", resp)
}

func (s *Service) ShipmentCompletedRollback(ctx context.Context, orderID snowflake.ID, priorEvents []ledgerdomain.PaymentEvent) error {
	err := s.shipmentCompletedRollback(ctx, orderID, priorEvents)
	s.recordOperation(ctx, "shipment_completed_rollback", err)
	return err
}

func (s *Service) shipmentCompletedRollback(ctx context.Context, orderID snowflake.ID, priorEvents []ledgerdomain.PaymentEvent) error {
	var amount int64
	for _, event := range priorEvents {
		if event.Kind == ledgerdomain.EventKindCharge && event.Status == ledgerdomain.EventStatusApproved {
			amount += event.Amount
		}
	}
	if amount == 0 {
		return nil
	}

	pc, err := s.loadContext(ctx, orderID)
	if err != nil {
		return err
	}

	req := buildCreditRequest(pc.order, pc.instruments, pc.ledger, amount)
	resp, err := s.workflow.Credit(ctx, req)
	s.recordProviderCall(ctx, "credit", resp, err)
	if err != nil {
		return err
	}
	return s.finalize(ctx, pc.order, "shipment_completed_rollback", resp)
}

func (s *Service) ShipmentCanceled(ctx context.Context, orderID, shipmentID snowflake.ID) error {
	err := s.shipmentCanceled(ctx, orderID, shipmentID)
	s.recordOperation(ctx, "shipment_canceled", err)
	return err
}

func (s *Service) shipmentCanceled(ctx context.Context, orderID, shipmentID snowflake.ID) error {
	pc, err := s.loadContext(ctx, orderID)
	if err != nil {
		return err
	}
	shipment, err := s.orderRepo.FindShipment(ctx, s.db, orderID, shipmentID)
	if err != nil {
		return err
	}
	if shipment.Status == orderdomain.ShipmentStatusShipped {
		return paymentdomain.ErrShipmentAlreadyShipped
	}

	single := IsSingleReservePerInstrument(pc.instruments)
	last := IsLastShipment(pc.order, shipment)

	if single && last {
		completed := CompletedShipmentsTotal(pc.order)
		if completed > 0 {
			// Everything shippable has shipped; settle the charged total
			// and release whatever is still reserved beyond it.
			cancelReq := buildCancelAllReservationsRequest(pc.order, pc.instruments, pc.ledger)
			cancelResp, err := s.workflow.CancelAllReservations(ctx, cancelReq)
			s.recordProviderCall(ctx, "cancel_all_reservations", cancelResp, err)
			if err != nil {
				return err
			}
			if err := s.finalize(ctx, pc.order, "shipment_canceled", cancelResp); err != nil {
				return err
			}

			ledger, err := s.ledgerSvc.Read(ctx, orderID)
			if err != nil {
				return err
			}
			chargeReq := buildChargeRequest(pc.order, pc.instruments, ledger, completed, true)
			chargeResp, err := s.workflow.ChargePayment(ctx, chargeReq)
			s.recordProviderCall(ctx, "charge", chargeResp, err)
			if err != nil {
				return err
			}
			return s.finalize(ctx, pc.order, "shipment_canceled", chargeResp)
		}

		req := buildModifyReservationRequest(pc.order, pc.instruments, pc.ledger, 0, true)
		resp, err := s.workflow.ModifyReservation(ctx, req)
		s.recordProviderCall(ctx, "modify_reservation", resp, err)
		if err != nil {
			return err
		}
		return s.finalize(ctx, pc.order, "shipment_canceled", resp)
	}

	newAmount := pc.order.TotalAmount - shipment.TotalAmount
	if newAmount < 0 {
		newAmount = 0
	}
	req := buildModifyReservationRequest(pc.order, pc.instruments, pc.ledger, newAmount, false)
	resp, err := s.workflow.ModifyReservation(ctx, req)
	s.recordProviderCall(ctx, "modify_reservation", resp, err)
	if err != nil {
		return err
	}
	return s.finalize(ctx, pc.order, "shipment_canceled", resp)
}

func (s *Service) OrderCanceled(ctx context.Context, orderID snowflake.ID) error {
	err := s.cancelAllReservations(ctx, orderID, "order_canceled")
	s.recordOperation(ctx, "order_canceled", err)
	return err
}

func (s *Service) cancelAllReservations(ctx context.Context, orderID snowflake.ID, operation string) error {
	pc, err := s.loadContext(ctx, orderID)
	if err != nil {
		return err
	}
	if !hasApprovedReservation(pc.ledger) {
		return nil
	}

	req := buildCancelAllReservationsRequest(pc.order, pc.instruments, pc.ledger)
	resp, err := s.workflow.CancelAllReservations(ctx, req)
	s.recordProviderCall(ctx, "cancel_all_reservations", resp, err)
	if err != nil {
		return err
	}
	return s.finalize(ctx, pc.order, operation, resp)
}

func (s *Service) OrderModified(ctx context.Context, orderID snowflake.ID, newTotal int64) error {
	err := s.orderModified(ctx, orderID, newTotal)
	s.recordOperation(ctx, "order_modified", err)
	return err
}

func (s *Service) orderModified(ctx context.Context, orderID snowflake.ID, newTotal int64) error {
	if newTotal < 0 {
		return paymentdomain.ErrInvalidAmount
	}

	pc, err := s.loadContext(ctx, orderID)
	if err != nil {
		return err
	}

	req := buildModifyReservationRequest(pc.order, pc.instruments, pc.ledger, newTotal, false)
	resp, err := s.workflow.ModifyReservation(ctx, req)
	s.recordProviderCall(ctx, "modify_reservation", resp, err)
	if err != nil {
		return err
	}

	// A declined modification that produced no events is a hard decline:
	// there is nothing to persist or log, so fail right away.
	if !resp.Success && len(resp.Events) == 0 {
		return &paymentdomain.DeclinedError{
			ExternalMessage: resp.ExternalMessage,
			InternalMessage: resp.InternalMessage,
		}
	}
	return s.finalize(ctx, pc.order, "order_modified", resp)
}

func (s *Service) Refund(ctx context.Context, orderID snowflake.ID, amount int64) error {
	err := s.refund(ctx, orderID, amount)
	s.recordOperation(ctx, "refund", err)
	return err
}

func (s *Service) refund(ctx context.Context, orderID snowflake.ID, amount int64) error {
	if amount < 0 {
		return paymentdomain.ErrInvalidAmount
	}

	pc, err := s.loadContext(ctx, orderID)
	if err != nil {
		return err
	}

	req := buildCreditRequest(pc.order, pc.instruments, pc.ledger, amount)
	resp, err := s.workflow.Credit(ctx, req)
	s.recordProviderCall(ctx, "credit", resp, err)
	if err != nil {
		return err
	}
	return s.finalize(ctx, pc.order, "refund", resp)
}

func (s *Service) ManualRefund(ctx context.Context, orderID snowflake.ID, amount int64) error {
	err := s.manualRefund(ctx, orderID, amount)
	s.recordOperation(ctx, "manual_refund", err)
	return err
}

func (s *Service) manualRefund(ctx context.Context, orderID snowflake.ID, amount int64) error {
	if amount < 0 {
		return paymentdomain.ErrInvalidAmount
	}

	guardrails := s.orchCfg.Get()
	if !guardrails.ManualCreditEnabled {
		return paymentdomain.ErrManualCreditDisabled
	}
	if guardrails.MaxManualCreditAmount > 0 && amount > guardrails.MaxManualCreditAmount {
		return paymentdomain.ErrManualCreditAboveLimit
	}

	pc, err := s.loadContext(ctx, orderID)
	if err != nil {
		return err
	}

	req := buildManualCreditRequest(pc.order, pc.instruments, pc.ledger, amount)
	resp, err := s.workflow.ManualCredit(ctx, req)
	s.recordProviderCall(ctx, "manual_credit", resp, err)
	if err != nil {
		return err
	}
	return s.finalize(ctx, pc.order, "manual_refund", resp)
}

func hasApprovedReservation(ledger []ledgerdomain.PaymentEvent) bool {
	for _, event := range ledger {
		if event.Kind == ledgerdomain.EventKindReserve && event.Status == ledgerdomain.EventStatusApproved {
			return true
		}
	}
	return false
}

func (s *Service) recordOperation(ctx context.Context, operation string, err error) {
	if s.obsMetrics == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	s.obsMetrics.RecordOperation(ctx, operation, outcome)
}

func (s *Service) recordProviderCall(ctx context.Context, operation string, resp *providerdomain.Response, err error) {
	if s.obsMetrics == nil {
		return
	}
	success := err == nil && resp != nil && resp.Success
	s.obsMetrics.RecordProviderCall(ctx, operation, success)
}
