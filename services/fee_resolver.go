package services

import (
	"fmt"

	"github.com/dealerdesk/dealerdesk-tax/constants"
	"github.com/dealerdesk/dealerdesk-tax/types/business"
)

// FeeContext selects which rule sub-tree governs a fee lookup
type FeeContext string

const (
	FeeContextRetail FeeContext = "retail"
	FeeContextLease  FeeContext = "lease"
)

// FeeRuling is the resolved taxability of one fee code, with the provenance
// the audit trail records.
type FeeRuling struct {
	Taxable bool
	Note    string
	// Source records which rule decided the ruling: "explicit",
	// "lease_explicit", "doc_fee_rule", "lease_doc_fee_rule" or
	// "global_flag".
	Source string
}

// FeeResolver determines whether a line item is taxable in a given context.
// Lookup order: explicit per-code rule, then category fallback via the
// jurisdiction's global product flags. A code matching neither fails with
// ErrUnresolvedFeeCode; defaulting silently to non-taxable is how deals end
// up under-collected, so the resolver never does it.
type FeeResolver struct{}

// NewFeeResolver creates a new fee resolver
func NewFeeResolver() *FeeResolver {
	return &FeeResolver{}
}

// Resolve returns the taxability ruling for a fee code under a
// jurisdiction's rules in the given context.
func (r *FeeResolver) Resolve(rules *business.JurisdictionTaxRules, code string, fctx FeeContext) (FeeRuling, error) {
	if fctx == FeeContextLease {
		if ruling, ok := r.resolveLease(rules, code); ok {
			return ruling, nil
		}
		// No lease-specific rule: the fee follows its retail treatment.
	}

	if rule, ok := rules.ExplicitFeeRule(code); ok {
		return FeeRuling{Taxable: rule.Taxable, Note: rule.Note, Source: "explicit"}, nil
	}

	if ruling, ok := r.categoryFallback(rules, code); ok {
		return ruling, nil
	}

	return FeeRuling{}, fmt.Errorf("%w: %q in %s context for %s", ErrUnresolvedFeeCode, code, fctx, rules.Code)
}

// resolveLease checks the lease rule sub-tree. The doc fee has its own
// three-way lease switch; other codes consult the lease fee rule list.
func (r *FeeResolver) resolveLease(rules *business.JurisdictionTaxRules, code string) (FeeRuling, bool) {
	if code == constants.FeeCodeDoc {
		switch rules.LeaseRules.DocFeeTaxability {
		case business.DocFeeAlways:
			return FeeRuling{Taxable: true, Source: "lease_doc_fee_rule"}, true
		case business.DocFeeNever:
			return FeeRuling{Taxable: false, Source: "lease_doc_fee_rule"}, true
		case business.DocFeeFollowRetail:
			return FeeRuling{}, false
		}
	}

	if rule, ok := rules.ExplicitLeaseFeeRule(code); ok {
		return FeeRuling{Taxable: rule.Taxable, Note: rule.Note, Source: "lease_explicit"}, true
	}

	return FeeRuling{}, false
}

// categoryFallback maps well-known fee codes onto the jurisdiction's global
// product flags.
func (r *FeeResolver) categoryFallback(rules *business.JurisdictionTaxRules, code string) (FeeRuling, bool) {
	switch code {
	case constants.FeeCodeDoc:
		return FeeRuling{Taxable: rules.DocFeeTaxable, Source: "doc_fee_rule"}, true
	case constants.FeeCodeServiceContract:
		return FeeRuling{Taxable: rules.GlobalProductFlags.TaxOnServiceContracts, Source: "global_flag"}, true
	case constants.FeeCodeGap:
		return FeeRuling{Taxable: rules.GlobalProductFlags.TaxOnGap, Source: "global_flag"}, true
	case constants.FeeCodeAccessory:
		return FeeRuling{Taxable: rules.GlobalProductFlags.TaxOnAccessories, Source: "global_flag"}, true
	}
	return FeeRuling{}, false
}
