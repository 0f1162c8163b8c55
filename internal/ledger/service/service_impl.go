package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payflow/internal/clock"
	instrumentdomain "github.com/smallbiznis/payflow/internal/instrument/domain"
	ledgerdomain "github.com/smallbiznis/payflow/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/payflow/internal/observability/metrics"
	orderdomain "github.com/smallbiznis/payflow/internal/order/domain"
	"github.com/smallbiznis/payflow/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       ledgerdomain.Repository
	OrderRepo  orderdomain.Repository
	Directory  instrumentdomain.Directory
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       ledgerdomain.Repository
	orderRepo  orderdomain.Repository
	directory  instrumentdomain.Directory
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		orderRepo:  p.OrderRepo,
		directory:  p.Directory,
		obsMetrics: p.ObsMetrics,
	}
}

// Read performs the inverse mapping of persisted records back into ordered
// PaymentEvents, resolving each originating instrument into its
// provider-facing profile.
func (s *Service) Read(ctx context.Context, orderID snowflake.ID) ([]ledgerdomain.PaymentEvent, error) {
	if orderID == 0 {
		return nil, ledgerdomain.ErrInvalidOrder
	}

	records, err := s.repo.ListByOrder(ctx, s.db, orderID)
	if err != nil {
		return nil, err
	}

	profiles := map[snowflake.ID]*instrumentdomain.Profile{}
	events := make([]ledgerdomain.PaymentEvent, 0, len(records))
	for _, record := range records {
		event := ledgerdomain.PaymentEvent{
			ID:                 record.ID,
			Kind:               record.Kind,
			Status:             record.Status,
			Amount:             record.Amount,
			Currency:           record.Currency,
			OccurredAt:         record.OccurredAt,
			OrderNumber:        record.OrderNumber,
			SelectionID:        record.SelectionID,
			ParentID:           record.ParentID,
			OriginalInstrument: record.OriginalInstrument,
			ExternalMessage:    record.ExternalMessage,
			InternalMessage:    record.InternalMessage,
		}

		if len(record.EventData) > 0 {
			data := map[string]any{}
			if err := json.Unmarshal(record.EventData, &data); err != nil {
				s.log.Warn("unreadable event data",
					zap.String("record_id", record.ID.String()),
					zap.Error(err),
				)
			} else {
				event.EventData = data
			}
		}

		if record.SelectionID != 0 {
			profile, err := s.resolveProfile(ctx, profiles, record.SelectionID)
			if err != nil {
				return nil, err
			}
			event.Instrument = profile
		}

		events = append(events, event)
	}

	return events, nil
}

func (s *Service) resolveProfile(ctx context.Context, cache map[snowflake.ID]*instrumentdomain.Profile, selectionID snowflake.ID) (*instrumentdomain.Profile, error) {
	if profile, ok := cache[selectionID]; ok {
		return profile, nil
	}
	selection, err := s.orderRepo.FindSelection(ctx, s.db, selectionID)
	if err != nil {
		return nil, err
	}
	profile, err := s.directory.Resolve(ctx, s.db, selection.InstrumentID)
	if err != nil {
		return nil, err
	}
	cache[selectionID] = profile
	return profile, nil
}

// Append converts each event into a persisted record. Records for reserve
// events always have their parent link cleared, even when the provider
// supplied one.
func (s *Service) Append(ctx context.Context, orderID snowflake.ID, orderNumber string, events []ledgerdomain.PaymentEvent) ([]ledgerdomain.PaymentEvent, error) {
	if orderID == 0 {
		return nil, ledgerdomain.ErrInvalidOrder
	}

	persisted := make([]ledgerdomain.PaymentEvent, 0, len(events))
	for _, event := range events {
		if err := validateEvent(&event); err != nil {
			return nil, err
		}

		if event.ID == 0 {
			event.ID = s.genID.Generate()
		}
		if event.Kind == ledgerdomain.EventKindReserve {
			event.ParentID = nil
		}
		if event.OccurredAt.IsZero() {
			event.OccurredAt = s.clock.Now()
		}
		if event.OrderNumber == "" {
			event.OrderNumber = orderNumber
		}

		record := ledgerdomain.PaymentRecord{
			ID:                 event.ID,
			OrderID:            orderID,
			OrderNumber:        event.OrderNumber,
			Kind:               event.Kind,
			Status:             event.Status,
			Amount:             event.Amount,
			Currency:           event.Currency,
			SelectionID:        event.SelectionID,
			ParentID:           event.ParentID,
			OriginalInstrument: event.OriginalInstrument,
			ExternalMessage:    event.ExternalMessage,
			InternalMessage:    event.InternalMessage,
			OccurredAt:         event.OccurredAt.UTC(),
			CreatedAt:          s.clock.Now(),
		}

		if len(event.EventData) > 0 {
			raw, err := json.Marshal(event.EventData)
			if err != nil {
				return nil, ledgerdomain.ErrInvalidEvent
			}
			record.EventData = datatypes.JSON(raw)
		}

		inserted, err := s.repo.Insert(ctx, s.db, &record)
		if err != nil {
			if !db.IsDuplicateKeyErr(err) {
				return nil, err
			}
			inserted = false
		}
		if !inserted {
			s.log.Warn("ledger record already present, skipping",
				zap.String("record_id", record.ID.String()),
				zap.String("order_number", record.OrderNumber),
			)
		} else if s.obsMetrics != nil {
			s.obsMetrics.RecordLedgerRecord(ctx, string(record.Kind), string(record.Status))
		}

		persisted = append(persisted, event)
	}

	return persisted, nil
}

func validateEvent(event *ledgerdomain.PaymentEvent) error {
	switch event.Kind {
	case ledgerdomain.EventKindReserve,
		ledgerdomain.EventKindModifyReserve,
		ledgerdomain.EventKindCharge,
		ledgerdomain.EventKindCancelReserve,
		ledgerdomain.EventKindCredit,
		ledgerdomain.EventKindManualCredit:
	default:
		return ledgerdomain.ErrInvalidKind
	}
	switch event.Status {
	case ledgerdomain.EventStatusApproved,
		ledgerdomain.EventStatusFailed,
		ledgerdomain.EventStatusSkipped:
	default:
		return ledgerdomain.ErrInvalidStatus
	}
	currency := strings.ToUpper(strings.TrimSpace(event.Currency))
	if currency == "" {
		return ledgerdomain.ErrInvalidCurrency
	}
	event.Currency = currency
	return nil
}
