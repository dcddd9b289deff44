package services

import (
	"fmt"
	"sort"

	"github.com/dealerdesk/dealerdesk-tax/logger"
	"github.com/dealerdesk/dealerdesk-tax/types/business"
	"go.uber.org/zap"
)

// RuleRegistry holds one immutable, versioned rule record per jurisdiction.
// Records are validated once at construction and never mutated afterwards,
// so lookups are safe from any number of goroutines without locking.
type RuleRegistry struct {
	records map[string]*business.JurisdictionTaxRules
	logger  *zap.Logger
}

// NewRuleRegistry validates every record and builds the registry. A record
// that fails validation rejects the whole load: a malformed or stub
// jurisdiction must never be allowed to compute tax as if fully researched.
func NewRuleRegistry(records []business.JurisdictionTaxRules) (*RuleRegistry, error) {
	registry := &RuleRegistry{
		records: make(map[string]*business.JurisdictionTaxRules, len(records)),
		logger:  logger.Log,
	}

	for i := range records {
		record := records[i]
		if err := ValidateRuleRecord(&record); err != nil {
			return nil, fmt.Errorf("jurisdiction %q: %w", record.Code, err)
		}
		if _, exists := registry.records[record.Code]; exists {
			return nil, fmt.Errorf("jurisdiction %q: duplicate record: %w", record.Code, ErrInvalidRuleRecord)
		}
		registry.records[record.Code] = &record
	}

	registry.logger.Info("Loaded jurisdiction rule registry",
		zap.Int("jurisdictions", len(registry.records)))

	return registry, nil
}

// Lookup resolves a jurisdiction code to its rule record.
func (r *RuleRegistry) Lookup(code string) (*business.JurisdictionTaxRules, error) {
	record, exists := r.records[code]
	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrUnknownJurisdiction, code)
	}
	return record, nil
}

// Codes returns the sorted list of loaded jurisdiction codes.
func (r *RuleRegistry) Codes() []string {
	codes := make([]string, 0, len(r.records))
	for code := range r.records {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// NeedsReview returns the sorted codes of jurisdictions whose rule research
// is flagged as unsettled. Callers surface these distinctly rather than
// treating the numbers as final.
func (r *RuleRegistry) NeedsReview() []string {
	var codes []string
	for code, record := range r.records {
		if record.Extras.Confidence == business.ConfidenceNeedsReview {
			codes = append(codes, code)
		}
	}
	sort.Strings(codes)
	return codes
}

// ValidateRuleRecord checks a jurisdiction record against the strict schema.
// Every required sub-object must be present and every variant field must
// hold a known value; incomplete records are rejected, never defaulted.
func ValidateRuleRecord(record *business.JurisdictionTaxRules) error {
	if record.Code == "" {
		return fmt.Errorf("missing code: %w", ErrInvalidRuleRecord)
	}
	if record.Version == "" {
		return fmt.Errorf("missing version: %w", ErrInvalidRuleRecord)
	}

	switch record.TradeInPolicy.Kind {
	case business.TradeInFull, business.TradeInNone:
	case business.TradeInCapped:
		if !record.TradeInPolicy.Cap.IsPositive() {
			return fmt.Errorf("capped trade-in policy requires a positive cap: %w", ErrInvalidRuleRecord)
		}
	default:
		return fmt.Errorf("unknown trade-in policy %q: %w", record.TradeInPolicy.Kind, ErrInvalidRuleRecord)
	}

	// Both rebate sources must be ruled on explicitly so runtime resolution
	// never guesses.
	if record.RebateRules == nil {
		return fmt.Errorf("missing rebate rules: %w", ErrInvalidRuleRecord)
	}
	for _, source := range []business.RebateSource{business.RebateManufacturer, business.RebateDealer} {
		if _, ok := record.RebateRules[source]; !ok {
			return fmt.Errorf("missing rebate rule for source %q: %w", source, ErrInvalidRuleRecord)
		}
	}

	if record.FeeTaxRules == nil {
		return fmt.Errorf("missing fee tax rules: %w", ErrInvalidRuleRecord)
	}
	if record.DocFeeCap != nil && !record.DocFeeCap.IsPositive() {
		return fmt.Errorf("doc fee cap must be positive when present: %w", ErrInvalidRuleRecord)
	}

	switch record.VehicleTaxScheme {
	case business.SchemeStateOnly:
		if !record.Extras.Rate.IsPositive() {
			return fmt.Errorf("state_only scheme requires a flat rate in extras: %w", ErrInvalidRuleRecord)
		}
	case business.SchemeStatePlusLocal, business.SchemeLocalOnly:
		if !record.UsesLocalRateStack {
			return fmt.Errorf("%s scheme requires uses_local_rate_stack: %w", record.VehicleTaxScheme, ErrInvalidRuleRecord)
		}
	case business.SchemeSpecial:
		if !knownSchemeID(record.SpecialScheme) {
			return fmt.Errorf("unknown special scheme %q: %w", record.SpecialScheme, ErrInvalidRuleRecord)
		}
	default:
		return fmt.Errorf("unknown vehicle tax scheme %q: %w", record.VehicleTaxScheme, ErrInvalidRuleRecord)
	}

	if err := validateLeaseRules(&record.LeaseRules); err != nil {
		return err
	}
	// A special-scheme jurisdiction must route leases somewhere concrete:
	// its own lease scheme, or a flat lease rate for the standard pipeline.
	// Without either, every lease request would dead-end at dispatch.
	if record.VehicleTaxScheme == business.SchemeSpecial &&
		record.LeaseRules.SpecialScheme == "" && !record.Extras.LeaseRate.IsPositive() {
		return fmt.Errorf("special scheme %q has no lease scheme and no lease rate: %w", record.SpecialScheme, ErrInvalidRuleRecord)
	}
	if err := validateReciprocity(&record.Reciprocity); err != nil {
		return err
	}

	switch record.Extras.Confidence {
	case business.ConfidenceVerified, business.ConfidenceNeedsReview:
	default:
		return fmt.Errorf("unknown confidence %q: %w", record.Extras.Confidence, ErrInvalidRuleRecord)
	}

	return nil
}

func validateLeaseRules(lease *business.LeaseRules) error {
	switch lease.Method {
	case business.LeaseMonthly, business.LeaseFullUpfront, business.LeaseHybrid:
	default:
		return fmt.Errorf("unknown lease method %q: %w", lease.Method, ErrInvalidRuleRecord)
	}

	switch lease.DocFeeTaxability {
	case business.DocFeeAlways, business.DocFeeNever, business.DocFeeFollowRetail:
	default:
		return fmt.Errorf("unknown lease doc fee taxability %q: %w", lease.DocFeeTaxability, ErrInvalidRuleRecord)
	}

	switch lease.TradeInCredit {
	case business.LeaseTradeInFull, business.LeaseTradeInNone,
		business.LeaseTradeInCapCostOnly, business.LeaseTradeInFollowRetail:
	default:
		return fmt.Errorf("unknown lease trade-in credit %q: %w", lease.TradeInCredit, ErrInvalidRuleRecord)
	}

	switch lease.RebateBehavior {
	case business.LeaseRebateTaxable, business.LeaseRebateExempt, business.LeaseRebateFollowRetail:
	default:
		return fmt.Errorf("unknown lease rebate behavior %q: %w", lease.RebateBehavior, ErrInvalidRuleRecord)
	}

	if lease.FeeTaxRules == nil {
		return fmt.Errorf("missing lease fee tax rules: %w", ErrInvalidRuleRecord)
	}

	if lease.SpecialScheme != "" && !knownSchemeID(lease.SpecialScheme) {
		return fmt.Errorf("unknown lease special scheme %q: %w", lease.SpecialScheme, ErrInvalidRuleRecord)
	}

	return nil
}

func validateReciprocity(recip *business.ReciprocityRules) error {
	if !recip.Enabled {
		return nil
	}

	switch recip.Scope {
	case business.ReciprocityRetailOnly, business.ReciprocityLeaseOnly, business.ReciprocityBoth:
	default:
		return fmt.Errorf("unknown reciprocity scope %q: %w", recip.Scope, ErrInvalidRuleRecord)
	}

	switch recip.CreditBasis {
	case business.CreditBasisTaxPaid:
	default:
		return fmt.Errorf("unknown reciprocity credit basis %q: %w", recip.CreditBasis, ErrInvalidRuleRecord)
	}

	for i, override := range recip.Overrides {
		if override.Origin == "" {
			return fmt.Errorf("reciprocity override %d missing origin: %w", i, ErrInvalidRuleRecord)
		}
		if override.MaxAgeDays != nil && *override.MaxAgeDays <= 0 {
			return fmt.Errorf("reciprocity override %d max age must be positive: %w", i, ErrInvalidRuleRecord)
		}
	}

	return nil
}

func knownSchemeID(id business.SchemeID) bool {
	for _, known := range business.KnownSchemeIDs {
		if id == known {
			return true
		}
	}
	return false
}
