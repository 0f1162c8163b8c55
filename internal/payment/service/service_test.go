package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/payflow/internal/clock"
	"github.com/smallbiznis/payflow/internal/config"
	instrumentdomain "github.com/smallbiznis/payflow/internal/instrument/domain"
	instrumentrepo "github.com/smallbiznis/payflow/internal/instrument/repository"
	ledgerdomain "github.com/smallbiznis/payflow/internal/ledger/domain"
	ledgerrepo "github.com/smallbiznis/payflow/internal/ledger/repository"
	ledgerservice "github.com/smallbiznis/payflow/internal/ledger/service"
	orderdomain "github.com/smallbiznis/payflow/internal/order/domain"
	orderrepo "github.com/smallbiznis/payflow/internal/order/repository"
	paymentdomain "github.com/smallbiznis/payflow/internal/payment/domain"
	"github.com/smallbiznis/payflow/internal/provider/adapters/sandbox"
	providerdomain "github.com/smallbiznis/payflow/internal/provider/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type mockWorkflow struct {
	mock.Mock
}

func (m *mockWorkflow) Reserve(ctx context.Context, req *providerdomain.Request) (*providerdomain.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providerdomain.Response), args.Error(1)
}

func (m *mockWorkflow) ModifyReservation(ctx context.Context, req *providerdomain.Request) (*providerdomain.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providerdomain.Response), args.Error(1)
}

func (m *mockWorkflow) ChargePayment(ctx context.Context, req *providerdomain.Request) (*providerdomain.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providerdomain.Response), args.Error(1)
}

func (m *mockWorkflow) CancelAllReservations(ctx context.Context, req *providerdomain.Request) (*providerdomain.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providerdomain.Response), args.Error(1)
}

func (m *mockWorkflow) Credit(ctx context.Context, req *providerdomain.Request) (*providerdomain.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providerdomain.Response), args.Error(1)
}

func (m *mockWorkflow) ManualCredit(ctx context.Context, req *providerdomain.Request) (*providerdomain.Response, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*providerdomain.Response), args.Error(1)
}

type env struct {
	db       *gorm.DB
	node     *snowflake.Node
	clk      *clock.FakeClock
	payments paymentdomain.Service
	ledger   ledgerdomain.Service
}

func newEnv(t *testing.T, wf providerdomain.Workflow) *env {
	t.Helper()

	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&orderdomain.Order{},
		&orderdomain.LineItem{},
		&orderdomain.Shipment{},
		&orderdomain.InstrumentSelection{},
		&instrumentdomain.Profile{},
		&ledgerdomain.PaymentRecord{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	logger := zap.NewNop()

	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{
		DB:        db,
		Log:       logger,
		GenID:     node,
		Clock:     clk,
		Repo:      ledgerrepo.Provide(),
		OrderRepo: orderrepo.Provide(),
		Directory: instrumentrepo.Provide(),
	})

	if wf == nil {
		wf, err = sandbox.NewFactory().NewAdapter(providerdomain.AdapterConfig{
			Log:   logger,
			GenID: node,
			Clock: clk,
		})
		require.NoError(t, err)
	}

	payments := NewService(Params{
		DB:        db,
		Log:       logger,
		GenID:     node,
		Clock:     clk,
		OrderRepo: orderrepo.Provide(),
		Directory: instrumentrepo.Provide(),
		LedgerSvc: ledgerSvc,
		Workflow:  wf,
		OrchCfg: config.NewStaticOrchestrationConfigHolder(config.OrchestrationConfig{
			Provider:            "sandbox",
			ManualCreditEnabled: true,
		}),
	})

	return &env{db: db, node: node, clk: clk, payments: payments, ledger: ledgerSvc}
}

func (e *env) seedOrder(t *testing.T, total int64, shipmentTotals ...int64) (*orderdomain.Order, []orderdomain.Shipment) {
	t.Helper()

	order := &orderdomain.Order{
		ID:          e.node.Generate(),
		OrderNumber: "ORD-" + e.node.Generate().String(),
		Currency:    "USD",
		TotalAmount: total,
	}
	require.NoError(t, e.db.Create(order).Error)
	require.NoError(t, e.db.Create(&orderdomain.LineItem{
		ID:              e.node.Generate(),
		OrderID:         order.ID,
		Name:            "widget",
		Quantity:        1,
		UnitPrice:       total,
		DiscountedTotal: total,
	}).Error)

	shipments := make([]orderdomain.Shipment, 0, len(shipmentTotals))
	for _, amount := range shipmentTotals {
		shipment := orderdomain.Shipment{
			ID:          e.node.Generate(),
			OrderID:     order.ID,
			Status:      orderdomain.ShipmentStatusPending,
			TotalAmount: amount,
		}
		require.NoError(t, e.db.Create(&shipment).Error)
		shipments = append(shipments, shipment)
	}
	return order, shipments
}

func (e *env) seedSelection(t *testing.T, orderID snowflake.ID, limitAmount *int64, original, single bool) orderdomain.InstrumentSelection {
	t.Helper()

	profile := instrumentdomain.Profile{
		ID:                         e.node.Generate(),
		ProviderConfigID:           "cfg-" + e.node.Generate().String(),
		HasLimit:                   limitAmount != nil,
		SingleReservePerInstrument: single,
	}
	require.NoError(t, e.db.Create(&profile).Error)

	selection := orderdomain.InstrumentSelection{
		ID:           e.node.Generate(),
		OrderID:      orderID,
		InstrumentID: profile.ID,
		LimitAmount:  limitAmount,
		Original:     original,
	}
	require.NoError(t, e.db.Create(&selection).Error)
	return selection
}

func (e *env) events(t *testing.T, orderID snowflake.ID) []ledgerdomain.PaymentEvent {
	t.Helper()
	events, err := e.ledger.Read(context.Background(), orderID)
	require.NoError(t, err)
	return events
}

func (e *env) markShipped(t *testing.T, shipmentID snowflake.ID) {
	t.Helper()
	require.NoError(t, e.db.Exec(
		`UPDATE order_shipments SET status = ? WHERE id = ?`,
		orderdomain.ShipmentStatusShipped, shipmentID,
	).Error)
}

func limitOf(v int64) *int64 { return &v }

func TestOrderCreated_SplitsReservationAcrossInstruments(t *testing.T) {
	e := newEnv(t, nil)
	order, _ := e.seedOrder(t, 10000, 10000)
	limited := e.seedSelection(t, order.ID, limitOf(3000), false, false)
	unlimited := e.seedSelection(t, order.ID, nil, true, false)

	require.NoError(t, e.payments.OrderCreated(context.Background(), order.ID))

	events := e.events(t, order.ID)
	require.Len(t, events, 2)

	amounts := map[snowflake.ID]int64{}
	for _, event := range events {
		assert.Equal(t, ledgerdomain.EventKindReserve, event.Kind)
		assert.Equal(t, ledgerdomain.EventStatusApproved, event.Status)
		assert.Nil(t, event.ParentID)
		assert.Equal(t, "USD", event.Currency)
		assert.Equal(t, order.OrderNumber, event.OrderNumber)
		amounts[event.SelectionID] = event.Amount
	}
	assert.Equal(t, int64(3000), amounts[limited.ID])
	assert.Equal(t, int64(7000), amounts[unlimited.ID])
	assert.Equal(t, ledgerdomain.StateReserved, ledgerdomain.DeriveState(events))
}

func TestOrderCreated_InstrumentInvariant(t *testing.T) {
	tests := []struct {
		name    string
		limits  []*int64
		wantErr error
	}{
		{"no unlimited instrument", []*int64{limitOf(3000)}, paymentdomain.ErrNoUnlimitedInstrument},
		{"two unlimited instruments", []*int64{nil, nil}, paymentdomain.ErrMultipleUnlimitedInstrument},
		{"limits exceed order total", []*int64{limitOf(12000), nil}, paymentdomain.ErrLimitsExceedOrderTotal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t, nil)
			order, _ := e.seedOrder(t, 10000, 10000)
			for _, l := range tt.limits {
				e.seedSelection(t, order.ID, l, false, false)
			}

			err := e.payments.OrderCreated(context.Background(), order.ID)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, e.events(t, order.ID), "invariant violations must not touch the provider or the ledger")
		})
	}
}

func TestOrderCreated_OrderNotFound(t *testing.T) {
	e := newEnv(t, nil)
	err := e.payments.OrderCreated(context.Background(), e.node.Generate())
	assert.ErrorIs(t, err, orderdomain.ErrOrderNotFound)
}

func TestShipmentCompleted_ChargesCumulativeDelta(t *testing.T) {
	e := newEnv(t, nil)
	order, shipments := e.seedOrder(t, 10000, 4000, 6000)
	e.seedSelection(t, order.ID, nil, true, false)

	require.NoError(t, e.payments.OrderCreated(context.Background(), order.ID))
	e.clk.Advance(time.Minute)

	require.NoError(t, e.payments.ShipmentCompleted(context.Background(), order.ID, shipments[0].ID))
	e.markShipped(t, shipments[0].ID)
	e.clk.Advance(time.Minute)

	require.NoError(t, e.payments.ShipmentCompleted(context.Background(), order.ID, shipments[1].ID))
	e.markShipped(t, shipments[1].ID)

	var charges []int64
	events := e.events(t, order.ID)
	for _, event := range events {
		if event.Kind == ledgerdomain.EventKindCharge {
			assert.Equal(t, ledgerdomain.EventStatusApproved, event.Status)
			require.NotNil(t, event.ParentID)
			charges = append(charges, event.Amount)
		}
	}
	// Second completion charges only the 6000 beyond the first shipment's
	// charge, never the cumulative 10000 again.
	assert.Equal(t, []int64{4000, 6000}, charges)
	assert.Equal(t, ledgerdomain.StateFullyCharged, ledgerdomain.DeriveState(events))
}

func TestShipmentCompleted_RepeatIsNoOp(t *testing.T) {
	e := newEnv(t, nil)
	order, shipments := e.seedOrder(t, 4000, 4000)
	e.seedSelection(t, order.ID, nil, true, false)

	require.NoError(t, e.payments.OrderCreated(context.Background(), order.ID))
	e.clk.Advance(time.Minute)
	require.NoError(t, e.payments.ShipmentCompleted(context.Background(), order.ID, shipments[0].ID))
	e.markShipped(t, shipments[0].ID)
	before := len(e.events(t, order.ID))

	e.clk.Advance(time.Minute)
	require.NoError(t, e.payments.ShipmentCompleted(context.Background(), order.ID, shipments[0].ID))
	assert.Len(t, e.events(t, order.ID), before, "already charged shipment must not be charged again")
}

func TestOrderCanceled_CancelsOpenReservations(t *testing.T) {
	e := newEnv(t, nil)
	order, _ := e.seedOrder(t, 10000, 10000)
	e.seedSelection(t, order.ID, limitOf(3000), false, false)
	e.seedSelection(t, order.ID, nil, true, false)

	require.NoError(t, e.payments.OrderCreated(context.Background(), order.ID))
	e.clk.Advance(time.Minute)
	require.NoError(t, e.payments.OrderCanceled(context.Background(), order.ID))

	events := e.events(t, order.ID)
	var cancels int
	for _, event := range events {
		if event.Kind == ledgerdomain.EventKindCancelReserve {
			assert.Equal(t, ledgerdomain.EventStatusApproved, event.Status)
			require.NotNil(t, event.ParentID)
			cancels++
		}
	}
	assert.Equal(t, 2, cancels)
	assert.Equal(t, ledgerdomain.StateCanceled, ledgerdomain.DeriveState(events))
}

func TestOrderCanceled_WithoutReservationIsNoOp(t *testing.T) {
	e := newEnv(t, nil)
	order, _ := e.seedOrder(t, 10000, 10000)
	e.seedSelection(t, order.ID, nil, true, false)

	require.NoError(t, e.payments.OrderCanceled(context.Background(), order.ID))
	assert.Empty(t, e.events(t, order.ID))
}

func TestOrderModified_RetargetsReservation(t *testing.T) {
	e := newEnv(t, nil)
	order, _ := e.seedOrder(t, 10000, 10000)
	limited := e.seedSelection(t, order.ID, limitOf(3000), false, false)
	unlimited := e.seedSelection(t, order.ID, nil, true, false)

	require.NoError(t, e.payments.OrderCreated(context.Background(), order.ID))
	e.clk.Advance(time.Minute)
	require.NoError(t, e.payments.OrderModified(context.Background(), order.ID, 8000))

	amounts := map[snowflake.ID]int64{}
	events := e.events(t, order.ID)
	for _, event := range events {
		if event.Kind == ledgerdomain.EventKindModifyReserve {
			assert.Equal(t, ledgerdomain.EventStatusApproved, event.Status)
			require.NotNil(t, event.ParentID)
			amounts[event.SelectionID] = event.Amount
		}
	}
	assert.Equal(t, int64(3000), amounts[limited.ID])
	assert.Equal(t, int64(5000), amounts[unlimited.ID])
	assert.Equal(t, ledgerdomain.StateReserved, ledgerdomain.DeriveState(events))
}

func TestOrderModified_NegativeTotal(t *testing.T) {
	e := newEnv(t, nil)
	order, _ := e.seedOrder(t, 10000, 10000)
	e.seedSelection(t, order.ID, nil, true, false)

	err := e.payments.OrderModified(context.Background(), order.ID, -1)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidAmount)
}

func TestOrderModified_DeclinedWithoutEvents(t *testing.T) {
	wf := &mockWorkflow{}
	wf.On("ModifyReservation", mock.Anything, mock.Anything).Return(&providerdomain.Response{
		Success:         false,
		ExternalMessage: "card expired",
		InternalMessage: "issuer refused modification",
	}, nil)

	e := newEnv(t, wf)
	order, _ := e.seedOrder(t, 10000, 10000)
	e.seedSelection(t, order.ID, nil, true, false)

	err := e.payments.OrderModified(context.Background(), order.ID, 8000)
	require.ErrorIs(t, err, paymentdomain.ErrPaymentDeclined)

	var declined *paymentdomain.DeclinedError
	require.ErrorAs(t, err, &declined)
	assert.Equal(t, "card expired", declined.ExternalMessage)
	assert.Equal(t, "issuer refused modification", declined.InternalMessage)
	assert.Empty(t, e.events(t, order.ID), "a hard decline leaves no ledger trace")
}

func TestOrderCreated_DeclinedPersistsFailedEvents(t *testing.T) {
	wf := &mockWorkflow{}
	e := newEnv(t, wf)
	order, _ := e.seedOrder(t, 10000, 10000)
	selection := e.seedSelection(t, order.ID, nil, true, false)

	wf.On("Reserve", mock.Anything, mock.Anything).Return(&providerdomain.Response{
		Success: false,
		Events: []ledgerdomain.PaymentEvent{{
			Kind:            ledgerdomain.EventKindReserve,
			Status:          ledgerdomain.EventStatusFailed,
			Amount:          10000,
			Currency:        "USD",
			SelectionID:     selection.ID,
			ExternalMessage: "insufficient funds",
			InternalMessage: "balance check failed",
		}},
	}, nil)

	err := e.payments.OrderCreated(context.Background(), order.ID)
	require.ErrorIs(t, err, paymentdomain.ErrPaymentDeclined)

	var declined *paymentdomain.DeclinedError
	require.ErrorAs(t, err, &declined)
	assert.Equal(t, "insufficient funds", declined.ExternalMessage)
	assert.Equal(t, "balance check failed", declined.InternalMessage)

	// Failed events are financial history and must survive the decline.
	events := e.events(t, order.ID)
	require.Len(t, events, 1)
	assert.Equal(t, ledgerdomain.EventStatusFailed, events[0].Status)
	assert.Equal(t, ledgerdomain.StateUnpaid, ledgerdomain.DeriveState(events))
}

func TestShipmentCanceled_AlreadyShipped(t *testing.T) {
	e := newEnv(t, nil)
	order, shipments := e.seedOrder(t, 10000, 4000, 6000)
	e.seedSelection(t, order.ID, nil, true, false)

	require.NoError(t, e.payments.OrderCreated(context.Background(), order.ID))
	e.markShipped(t, shipments[0].ID)

	err := e.payments.ShipmentCanceled(context.Background(), order.ID, shipments[0].ID)
	assert.ErrorIs(t, err, paymentdomain.ErrShipmentAlreadyShipped)
}

func TestShipmentCanceled_ShrinksReservation(t *testing.T) {
	e := newEnv(t, nil)
	order, shipments := e.seedOrder(t, 10000, 4000, 6000)
	e.seedSelection(t, order.ID, nil, true, false)

	require.NoError(t, e.payments.OrderCreated(context.Background(), order.ID))
	e.clk.Advance(time.Minute)
	require.NoError(t, e.payments.ShipmentCanceled(context.Background(), order.ID, shipments[0].ID))

	events := e.events(t, order.ID)
	var modified []int64
	for _, event := range events {
		if event.Kind == ledgerdomain.EventKindModifyReserve {
			modified = append(modified, event.Amount)
		}
	}
	assert.Equal(t, []int64{6000}, modified)
	assert.Equal(t, ledgerdomain.StateReserved, ledgerdomain.DeriveState(events))
}

func TestShipmentCanceled_FloorsReservationAtZero(t *testing.T) {
	e := newEnv(t, nil)
	order, shipments := e.seedOrder(t, 4000, 9000)
	e.seedSelection(t, order.ID, nil, true, false)

	require.NoError(t, e.payments.OrderCreated(context.Background(), order.ID))
	e.clk.Advance(time.Minute)

	// The shipment total exceeds the order total; the retarget must clamp
	// at zero instead of going negative.
	require.NoError(t, e.payments.ShipmentCanceled(context.Background(), order.ID, shipments[0].ID))

	events := e.events(t, order.ID)
	var modified []int64
	for _, event := range events {
		if event.Kind == ledgerdomain.EventKindModifyReserve {
			assert.Equal(t, ledgerdomain.EventStatusApproved, event.Status)
			modified = append(modified, event.Amount)
		}
	}
	assert.Equal(t, []int64{0}, modified)
}

func TestShipmentCanceled_SingleReserveLastShipment_NothingShipped(t *testing.T) {
	e := newEnv(t, nil)
	order, shipments := e.seedOrder(t, 10000, 10000)
	e.seedSelection(t, order.ID, nil, true, true)

	require.NoError(t, e.payments.OrderCreated(context.Background(), order.ID))
	e.clk.Advance(time.Minute)
	require.NoError(t, e.payments.ShipmentCanceled(context.Background(), order.ID, shipments[0].ID))

	events := e.events(t, order.ID)
	var modified []int64
	for _, event := range events {
		if event.Kind == ledgerdomain.EventKindModifyReserve {
			modified = append(modified, event.Amount)
		}
	}
	assert.Equal(t, []int64{0}, modified, "finishing reservation is modified down to zero")
}

func TestShipmentCanceled_SingleReserveLastShipment_SettlesShippedTotal(t *testing.T) {
	e := newEnv(t, nil)
	order, shipments := e.seedOrder(t, 10000, 4000, 6000)
	e.seedSelection(t, order.ID, nil, true, true)

	require.NoError(t, e.payments.OrderCreated(context.Background(), order.ID))
	e.markShipped(t, shipments[0].ID)
	e.clk.Advance(time.Minute)

	require.NoError(t, e.payments.ShipmentCanceled(context.Background(), order.ID, shipments[1].ID))

	events := e.events(t, order.ID)
	var (
		cancels int
		charges []int64
	)
	for _, event := range events {
		switch event.Kind {
		case ledgerdomain.EventKindCancelReserve:
			cancels++
		case ledgerdomain.EventKindCharge:
			charges = append(charges, event.Amount)
		}
	}
	assert.Equal(t, 1, cancels)
	assert.Equal(t, []int64{4000}, charges, "only the shipped portion is settled")
	assert.Equal(t, ledgerdomain.StateFullyCharged, ledgerdomain.DeriveState(events))
}

func TestShipmentCompletedRollback_CreditsPriorCharges(t *testing.T) {
	e := newEnv(t, nil)
	order, shipments := e.seedOrder(t, 4000, 4000)
	unlimited := e.seedSelection(t, order.ID, nil, true, false)

	require.NoError(t, e.payments.OrderCreated(context.Background(), order.ID))
	e.clk.Advance(time.Minute)
	require.NoError(t, e.payments.ShipmentCompleted(context.Background(), order.ID, shipments[0].ID))

	var prior []ledgerdomain.PaymentEvent
	for _, event := range e.events(t, order.ID) {
		if event.Kind == ledgerdomain.EventKindCharge {
			prior = append(prior, event)
		}
	}
	require.NotEmpty(t, prior)

	e.clk.Advance(time.Minute)
	require.NoError(t, e.payments.ShipmentCompletedRollback(context.Background(), order.ID, prior))

	var credits []int64
	for _, event := range e.events(t, order.ID) {
		if event.Kind == ledgerdomain.EventKindCredit {
			assert.Equal(t, unlimited.ID, event.SelectionID)
			credits = append(credits, event.Amount)
		}
	}
	assert.Equal(t, []int64{4000}, credits)
}

func TestShipmentCompletedRollback_NoApprovedCharges(t *testing.T) {
	e := newEnv(t, nil)
	order, _ := e.seedOrder(t, 4000, 4000)
	e.seedSelection(t, order.ID, nil, true, false)

	prior := []ledgerdomain.PaymentEvent{{
		Kind:   ledgerdomain.EventKindCharge,
		Status: ledgerdomain.EventStatusFailed,
		Amount: 4000,
	}}
	require.NoError(t, e.payments.ShipmentCompletedRollback(context.Background(), order.ID, prior))
	assert.Empty(t, e.events(t, order.ID))
}

func TestRefund_FullAmountMarksRefunded(t *testing.T) {
	e := newEnv(t, nil)
	order, shipments := e.seedOrder(t, 10000, 10000)
	e.seedSelection(t, order.ID, nil, true, false)

	require.NoError(t, e.payments.OrderCreated(context.Background(), order.ID))
	e.clk.Advance(time.Minute)
	require.NoError(t, e.payments.ShipmentCompleted(context.Background(), order.ID, shipments[0].ID))
	e.markShipped(t, shipments[0].ID)
	e.clk.Advance(time.Minute)

	require.NoError(t, e.payments.Refund(context.Background(), order.ID, 10000))

	events := e.events(t, order.ID)
	var credit *ledgerdomain.PaymentEvent
	for i := range events {
		if events[i].Kind == ledgerdomain.EventKindCredit {
			credit = &events[i]
		}
	}
	require.NotNil(t, credit)
	assert.Equal(t, int64(10000), credit.Amount)
	require.NotNil(t, credit.ParentID)
	assert.Equal(t, ledgerdomain.StateRefunded, ledgerdomain.DeriveState(events))
}

func TestRefund_PartialKeepsChargedState(t *testing.T) {
	e := newEnv(t, nil)
	order, shipments := e.seedOrder(t, 10000, 10000)
	e.seedSelection(t, order.ID, nil, true, false)

	require.NoError(t, e.payments.OrderCreated(context.Background(), order.ID))
	e.clk.Advance(time.Minute)
	require.NoError(t, e.payments.ShipmentCompleted(context.Background(), order.ID, shipments[0].ID))
	e.markShipped(t, shipments[0].ID)
	e.clk.Advance(time.Minute)

	require.NoError(t, e.payments.Refund(context.Background(), order.ID, 4000))
	assert.Equal(t, ledgerdomain.StateFullyCharged, ledgerdomain.DeriveState(e.events(t, order.ID)))
}

func TestRefund_NegativeAmount(t *testing.T) {
	e := newEnv(t, nil)
	order, _ := e.seedOrder(t, 10000, 10000)
	e.seedSelection(t, order.ID, nil, true, false)

	err := e.payments.Refund(context.Background(), order.ID, -100)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidAmount)
}

func TestManualRefund_Guardrails(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		e := newEnv(t, nil)
		order, _ := e.seedOrder(t, 10000, 10000)
		e.seedSelection(t, order.ID, nil, true, false)

		svc := e.payments.(*Service)
		svc.orchCfg = config.NewStaticOrchestrationConfigHolder(config.OrchestrationConfig{
			Provider:            "sandbox",
			ManualCreditEnabled: false,
		})

		err := svc.ManualRefund(context.Background(), order.ID, 1000)
		assert.ErrorIs(t, err, paymentdomain.ErrManualCreditDisabled)
		assert.Empty(t, e.events(t, order.ID))
	})

	t.Run("above limit", func(t *testing.T) {
		e := newEnv(t, nil)
		order, _ := e.seedOrder(t, 10000, 10000)
		e.seedSelection(t, order.ID, nil, true, false)

		svc := e.payments.(*Service)
		svc.orchCfg = config.NewStaticOrchestrationConfigHolder(config.OrchestrationConfig{
			Provider:              "sandbox",
			ManualCreditEnabled:   true,
			MaxManualCreditAmount: 500,
		})

		err := svc.ManualRefund(context.Background(), order.ID, 1000)
		assert.ErrorIs(t, err, paymentdomain.ErrManualCreditAboveLimit)
		assert.Empty(t, e.events(t, order.ID))
	})

	t.Run("allowed", func(t *testing.T) {
		e := newEnv(t, nil)
		order, _ := e.seedOrder(t, 10000, 10000)
		e.seedSelection(t, order.ID, nil, true, false)

		require.NoError(t, e.payments.ManualRefund(context.Background(), order.ID, 1000))

		events := e.events(t, order.ID)
		require.Len(t, events, 1)
		assert.Equal(t, ledgerdomain.EventKindManualCredit, events[0].Kind)
		assert.Equal(t, int64(1000), events[0].Amount)
	})
}

func TestOrderCreatedRollback_CancelsReservations(t *testing.T) {
	e := newEnv(t, nil)
	order, _ := e.seedOrder(t, 10000, 10000)
	e.seedSelection(t, order.ID, nil, true, false)

	require.NoError(t, e.payments.OrderCreated(context.Background(), order.ID))
	e.clk.Advance(time.Minute)
	require.NoError(t, e.payments.OrderCreatedRollback(context.Background(), order.ID))

	assert.Equal(t, ledgerdomain.StateCanceled, ledgerdomain.DeriveState(e.events(t, order.ID)))
}

func TestLedgerIsAppendOnly(t *testing.T) {
	e := newEnv(t, nil)
	order, _ := e.seedOrder(t, 10000, 10000)
	e.seedSelection(t, order.ID, nil, true, false)

	require.NoError(t, e.payments.OrderCreated(context.Background(), order.ID))
	first := e.events(t, order.ID)

	e.clk.Advance(time.Minute)
	require.NoError(t, e.payments.OrderModified(context.Background(), order.ID, 8000))
	second := e.events(t, order.ID)

	require.Greater(t, len(second), len(first))
	for i, event := range first {
		assert.Equal(t, event.ID, second[i].ID)
		assert.Equal(t, event.Amount, second[i].Amount)
		assert.Equal(t, event.Status, second[i].Status)
	}
}
