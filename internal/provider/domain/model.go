package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/payflow/internal/clock"
	ledgerdomain "github.com/smallbiznis/payflow/internal/ledger/domain"
	"go.uber.org/zap"
)

// Address is the billing address submitted with an instrument.
type Address struct {
	Name       string
	Street     string
	City       string
	Region     string
	PostalCode string
	Country    string
}

// Instrument is the provider-facing view of one selected payment instrument.
// A nil LimitAmount marks the unlimited instrument carrying residual
// liability.
type Instrument struct {
	SelectionID                snowflake.ID
	ProviderConfigID           string
	LimitAmount                *int64
	Original                   bool
	SingleReservePerInstrument bool
	Billing                    Address
}

func (i Instrument) Unlimited() bool { return i.LimitAmount == nil }

// OrderLine carries the per-line figures for provider-side reconciliation.
// Total is tax-inclusive whenever the line carries tax.
type OrderLine struct {
	Name      string
	Quantity  int64
	UnitPrice int64
	TaxAmount int64
	Total     int64
}

// Request is the immutable provider request. It carries the full ledger so
// the provider can reconcile the target amount against prior events.
type Request struct {
	OrderNumber string
	Currency    string
	Amount      int64

	Instruments []Instrument
	Lines       []OrderLine
	Ledger      []ledgerdomain.PaymentEvent

	FinalPayment               bool
	SingleReservePerInstrument bool
}

// Response is the provider's verdict: an overall success flag, the events to
// append to the ledger (failed ones included), and optional messages.
type Response struct {
	Success bool
	Events  []ledgerdomain.PaymentEvent

	ExternalMessage string
	InternalMessage string
}

// Workflow is the external payment-provider execution engine. Each call is a
// single synchronous request/response cycle; this engine never retries.
type Workflow interface {
	Reserve(ctx context.Context, req *Request) (*Response, error)
	ModifyReservation(ctx context.Context, req *Request) (*Response, error)
	ChargePayment(ctx context.Context, req *Request) (*Response, error)
	CancelAllReservations(ctx context.Context, req *Request) (*Response, error)
	Credit(ctx context.Context, req *Request) (*Response, error)
	ManualCredit(ctx context.Context, req *Request) (*Response, error)
}

// AdapterConfig is handed to adapter factories when instantiating a concrete
// provider adapter.
type AdapterConfig struct {
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Settings map[string]any
}

// AdapterFactory builds a Workflow for one real provider.
type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (Workflow, error)
}

var ErrProviderNotFound = errors.New("provider_not_found")
