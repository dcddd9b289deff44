package services

import (
	"context"
	"fmt"

	"github.com/dealerdesk/dealerdesk-tax/interfaces"
	"github.com/dealerdesk/dealerdesk-tax/types/business"
	"github.com/shopspring/decimal"
)

// resolvedRate is a combined rate plus the audit description of how it was
// assembled.
type resolvedRate struct {
	Rate  decimal.Decimal
	Notes []string
}

// resolveStandardRate assembles the standard (non-special-scheme) rate for
// a jurisdiction. Flat-rate jurisdictions carry their rate in the rule
// record; stacked jurisdictions consult the rate resolver collaborator for
// the buyer's location. forLease selects the lease-rate override where a
// jurisdiction taxes leases at a different flat rate than retail sales.
func resolveStandardRate(
	ctx context.Context,
	rateResolver interfaces.RateResolver,
	rules *business.JurisdictionTaxRules,
	location *business.Location,
	forLease bool,
) (resolvedRate, error) {
	if forLease && rules.Extras.LeaseRate.IsPositive() {
		return resolvedRate{
			Rate:  rules.Extras.LeaseRate,
			Notes: []string{fmt.Sprintf("lease rate %s", rules.Extras.LeaseRate.String())},
		}, nil
	}

	switch rules.VehicleTaxScheme {
	case business.SchemeStateOnly:
		return resolvedRate{
			Rate:  rules.Extras.Rate,
			Notes: []string{fmt.Sprintf("flat state rate %s", rules.Extras.Rate.String())},
		}, nil

	case business.SchemeStatePlusLocal, business.SchemeLocalOnly:
		if location == nil {
			return resolvedRate{}, fmt.Errorf("%w: %s requires a buyer location for local rate lookup", ErrMalformedTransaction, rules.Code)
		}
		stack, err := rateResolver.ResolveRates(ctx, *location)
		if err != nil {
			return resolvedRate{}, fmt.Errorf("resolving local rate stack for %s: %w", rules.Code, err)
		}
		if rules.VehicleTaxScheme == business.SchemeLocalOnly {
			return resolvedRate{
				Rate:  stack.LocalTotal(),
				Notes: []string{fmt.Sprintf("local-only rate %s", stack.LocalTotal().String())},
			}, nil
		}
		notes := []string{fmt.Sprintf("state rate %s", stack.StateRate.String())}
		for _, component := range stack.LocalComponents {
			notes = append(notes, fmt.Sprintf("local %s %s", component.Name, component.Rate.String()))
		}
		return resolvedRate{Rate: stack.Combined(), Notes: notes}, nil

	default:
		// Special schemes own their rates; reaching here means a lease fell
		// back to the standard pipeline without a lease rate override.
		return resolvedRate{}, fmt.Errorf("%w: no standard rate for scheme %q in %s", ErrInvalidSchemeDispatch, rules.VehicleTaxScheme, rules.Code)
	}
}
