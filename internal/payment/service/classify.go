package service

import (
	"context"
	"sort"

	ledgerdomain "github.com/smallbiznis/payflow/internal/ledger/domain"
	orderdomain "github.com/smallbiznis/payflow/internal/order/domain"
	paymentdomain "github.com/smallbiznis/payflow/internal/payment/domain"
	providerdomain "github.com/smallbiznis/payflow/internal/provider/domain"
	"go.uber.org/zap"
)

// finalize is the shared post-sequence of every orchestration operation:
// persist the returned events, log failed and skipped events without
// aborting, then fail the operation iff the aggregate response did.
func (s *Service) finalize(ctx context.Context, order *orderdomain.Order, operation string, resp *providerdomain.Response) error {
	persisted, err := s.ledgerSvc.Append(ctx, order.ID, order.OrderNumber, resp.Events)
	if err != nil {
		return err
	}

	s.logAnomalies(operation, order.OrderNumber, persisted)

	if !resp.Success {
		return declineError(resp, persisted)
	}
	return nil
}

// logAnomalies writes failed events, and skipped events that carry a
// message, to the operational log. Most recent first; never fatal.
func (s *Service) logAnomalies(operation, orderNumber string, events []ledgerdomain.PaymentEvent) {
	ordered := make([]ledgerdomain.PaymentEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].OccurredAt.After(ordered[j].OccurredAt)
	})

	for _, event := range ordered {
		switch event.Status {
		case ledgerdomain.EventStatusFailed:
			s.log.Warn("payment event failed",
				zap.String("operation", operation),
				zap.String("order_number", orderNumber),
				zap.String("kind", string(event.Kind)),
				zap.Int64("amount", event.Amount),
				zap.String("external_message", event.ExternalMessage),
				zap.String("internal_message", event.InternalMessage),
			)
		case ledgerdomain.EventStatusSkipped:
			if event.ExternalMessage == "" && event.InternalMessage == "" {
				continue
			}
			s.log.Warn("payment event skipped",
				zap.String("operation", operation),
				zap.String("order_number", orderNumber),
				zap.String("kind", string(event.Kind)),
				zap.String("external_message", event.ExternalMessage),
				zap.String("internal_message", event.InternalMessage),
			)
		}
	}
}

// declineError builds the caller-visible failure, preferring the most recent
// failed event's context over the response's own messages.
func declineError(resp *providerdomain.Response, events []ledgerdomain.PaymentEvent) error {
	var lastFailed *ledgerdomain.PaymentEvent
	for i := range events {
		event := events[i]
		if event.Status != ledgerdomain.EventStatusFailed {
			continue
		}
		if lastFailed == nil || event.OccurredAt.After(lastFailed.OccurredAt) {
			lastFailed = &events[i]
		}
	}

	if lastFailed != nil {
		return &paymentdomain.DeclinedError{
			ExternalMessage: lastFailed.ExternalMessage,
			InternalMessage: lastFailed.InternalMessage,
		}
	}
	return &paymentdomain.DeclinedError{
		ExternalMessage: resp.ExternalMessage,
		InternalMessage: resp.InternalMessage,
	}
}
