package params

import (
	"time"

	"github.com/dealerdesk/dealerdesk-tax/types/business"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccessoryInput is a dealer-installed accessory on the deal
type AccessoryInput struct {
	Description string
	Amount      decimal.Decimal
}

// FeeInput is one fee line on the deal, identified by its product code
type FeeInput struct {
	Code        string
	Description string
	Amount      decimal.Decimal
}

// TradeIn carries the traded vehicle's agreed value and loan payoff.
// Tax credit is always computed from the value; the payoff only affects
// equity and negative equity.
type TradeIn struct {
	Value  decimal.Decimal
	Payoff decimal.Decimal
}

// RebateInput is a rebate applied to the deal
type RebateInput struct {
	Source business.RebateSource
	Amount decimal.Decimal
}

// CapReductionKind identifies what funds a lease cap cost reduction
type CapReductionKind string

const (
	CapReductionCash    CapReductionKind = "cash"
	CapReductionRebate  CapReductionKind = "rebate"
	CapReductionTradeIn CapReductionKind = "trade_in"
)

// CapReduction is one amount applied at lease inception to reduce the
// capitalized cost.
type CapReduction struct {
	Kind   CapReductionKind
	Source business.RebateSource // set when Kind is rebate
	Amount decimal.Decimal
}

// LeaseTerms carries the lease-specific inputs. Required when
// TransactionType is lease.
type LeaseTerms struct {
	GrossCapCost   decimal.Decimal
	CapReductions  []CapReduction
	MonthlyPayment decimal.Decimal
	TermMonths     int
}

// PriorTaxPaid supports a reciprocity credit claim for tax already paid to
// another jurisdiction. RegistrationDate anchors time-window overrides so
// the computation never reads the wall clock.
type PriorTaxPaid struct {
	Amount             decimal.Decimal
	OriginJurisdiction string
	ProofProvided      bool
	PaidDate           time.Time
	RegistrationDate   time.Time
}

// TaxCalculationParams is the normalized transaction the engine computes
// tax for. It is assembled by the deal persistence layer from stored deal,
// scenario, fee and accessory records.
type TaxCalculationParams struct {
	DealID          uuid.UUID
	Jurisdiction    string // buyer's jurisdiction code, e.g. "US-KS"
	PointOfSale     string // selling dealer's jurisdiction code, informational
	Location        *business.Location
	TransactionType string // constants.TransactionTypeRetail or TransactionTypeLease

	Price decimal.Decimal
	// AssessedValue is the DMV-assessed value used by TAVT-style schemes,
	// which tax max(price, assessed value).
	AssessedValue *decimal.Decimal
	// VehicleClass selects the rate row for class-rated schemes (HUT).
	VehicleClass string

	Accessories    []AccessoryInput
	Fees           []FeeInput
	TradeIn        *TradeIn
	Rebates        []RebateInput
	NegativeEquity decimal.Decimal

	Lease        *LeaseTerms
	PriorTaxPaid *PriorTaxPaid
}
