package interfaces

import (
	"context"

	"github.com/dealerdesk/dealerdesk-tax/types/api/params"
	"github.com/dealerdesk/dealerdesk-tax/types/api/responses"
	"github.com/dealerdesk/dealerdesk-tax/types/business"
)

// RateResolver maps a buyer location to its state and local rate stack.
// Implemented by the jurisdiction/zip-code lookup store, which owns the only
// I/O in the pipeline; the engine consumes it when a jurisdiction stacks
// local rates on top of the state rate.
type RateResolver interface {
	ResolveRates(ctx context.Context, location business.Location) (business.RateStack, error)
}

// TaxCalculator computes the tax owed on a normalized transaction
type TaxCalculator interface {
	CalculateTax(ctx context.Context, params params.TaxCalculationParams) (*responses.TaxComputationResult, error)
}
