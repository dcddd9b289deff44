package business

import "github.com/shopspring/decimal"

// TradeInPolicyKind selects how a trade-in reduces the retail taxable base
type TradeInPolicyKind string

const (
	TradeInFull   TradeInPolicyKind = "full"
	TradeInNone   TradeInPolicyKind = "none"
	TradeInCapped TradeInPolicyKind = "capped"
)

// TradeInPolicy is the retail trade-in credit rule. Cap is only meaningful
// for TradeInCapped.
type TradeInPolicy struct {
	Kind TradeInPolicyKind `json:"kind"`
	Cap  decimal.Decimal   `json:"cap,omitempty"`
}

// Credit returns the base reduction earned by a trade-in value under this
// policy. The credit is based on the trade-in's value, not its payoff.
func (p TradeInPolicy) Credit(value decimal.Decimal) decimal.Decimal {
	switch p.Kind {
	case TradeInFull:
		return value
	case TradeInCapped:
		return MinDecimal(value, p.Cap)
	default:
		return decimal.Zero
	}
}

// RebateSource identifies who funds a rebate
type RebateSource string

const (
	RebateManufacturer RebateSource = "manufacturer"
	RebateDealer       RebateSource = "dealer"
)

// RebateRule states whether a rebate from a given source remains in the
// taxable base. Only rebates marked non-taxable reduce the base.
type RebateRule struct {
	Taxable bool   `json:"taxable"`
	Note    string `json:"note,omitempty"`
}

// FeeTaxRule is an explicit per-product taxability override. An explicit
// entry always wins over the GlobalProductFlags fallback.
type FeeTaxRule struct {
	Code    string `json:"code"`
	Taxable bool   `json:"taxable"`
	Note    string `json:"note,omitempty"`
}

// GlobalProductFlags are the category-level fallback defaults consulted when
// a fee code has no explicit rule.
type GlobalProductFlags struct {
	TaxOnAccessories      bool `json:"tax_on_accessories"`
	TaxOnNegativeEquity   bool `json:"tax_on_negative_equity"`
	TaxOnServiceContracts bool `json:"tax_on_service_contracts"`
	TaxOnGap              bool `json:"tax_on_gap"`
}

// VehicleTaxScheme selects the jurisdiction's overall taxing pipeline
type VehicleTaxScheme string

const (
	SchemeStateOnly      VehicleTaxScheme = "state_only"
	SchemeStatePlusLocal VehicleTaxScheme = "state_plus_local"
	SchemeLocalOnly      VehicleTaxScheme = "local_only"
	SchemeSpecial        VehicleTaxScheme = "special"
)

// SchemeID names a special (non-stacked-rate) tax pipeline. The set is
// closed: every id must have a registered handler.
type SchemeID string

const (
	SchemeTAVT      SchemeID = "tavt"
	SchemeHUT       SchemeID = "hut"
	SchemeGET       SchemeID = "get"
	SchemePrivilege SchemeID = "privilege_tax"
	SchemeIMFCapped SchemeID = "imf_capped"
)

// KnownSchemeIDs lists every scheme id the engine ships a handler for.
// Rule validation rejects any other value at load time.
var KnownSchemeIDs = []SchemeID{
	SchemeTAVT, SchemeHUT, SchemeGET, SchemePrivilege, SchemeIMFCapped,
}

// LeaseMethod is the lease taxation state machine selector
type LeaseMethod string

const (
	LeaseMonthly     LeaseMethod = "monthly"
	LeaseFullUpfront LeaseMethod = "full_upfront"
	LeaseHybrid      LeaseMethod = "hybrid"
)

// DocFeeTaxability controls the doc fee on leases independently of retail
type DocFeeTaxability string

const (
	DocFeeAlways       DocFeeTaxability = "always"
	DocFeeNever        DocFeeTaxability = "never"
	DocFeeFollowRetail DocFeeTaxability = "follow_retail"
)

// LeaseTradeInCredit controls how trade-in equity is treated at lease
// inception. This is deliberately independent of the retail TradeInPolicy:
// several jurisdictions credit a trade-in on a retail sale but tax the same
// equity as a cap cost reduction on a lease.
type LeaseTradeInCredit string

const (
	LeaseTradeInFull         LeaseTradeInCredit = "full"
	LeaseTradeInNone         LeaseTradeInCredit = "none"
	LeaseTradeInCapCostOnly  LeaseTradeInCredit = "cap_cost_only"
	LeaseTradeInFollowRetail LeaseTradeInCredit = "follow_retail"
)

// LeaseRebateBehavior controls rebate cap reductions at lease inception
type LeaseRebateBehavior string

const (
	LeaseRebateTaxable      LeaseRebateBehavior = "taxable"
	LeaseRebateExempt       LeaseRebateBehavior = "exempt"
	LeaseRebateFollowRetail LeaseRebateBehavior = "follow_retail"
)

// LeaseRules is the lease-side rule sub-tree for a jurisdiction
type LeaseRules struct {
	Method                 LeaseMethod         `json:"method"`
	TaxCapReductionUpfront bool                `json:"tax_cap_reduction_upfront"`
	RebateBehavior         LeaseRebateBehavior `json:"rebate_behavior"`
	DocFeeTaxability       DocFeeTaxability    `json:"doc_fee_taxability"`
	TradeInCredit          LeaseTradeInCredit  `json:"trade_in_credit"`
	NegativeEquityTaxable  bool                `json:"negative_equity_taxable"`
	FeeTaxRules            []FeeTaxRule        `json:"fee_tax_rules"`
	TaxFeesUpfront         bool                `json:"tax_fees_upfront"`
	SpecialScheme          SchemeID            `json:"special_scheme,omitempty"`
}

// ReciprocityScope limits credit for out-of-state tax to a transaction type
type ReciprocityScope string

const (
	ReciprocityRetailOnly ReciprocityScope = "retail_only"
	ReciprocityLeaseOnly  ReciprocityScope = "lease_only"
	ReciprocityBoth       ReciprocityScope = "both"
)

// CreditBasis names what the reciprocity credit is measured against
type CreditBasis string

const (
	// CreditBasisTaxPaid credits the dollar amount of tax actually paid to
	// the origin jurisdiction.
	CreditBasisTaxPaid CreditBasis = "tax_paid"
)

// ReciprocityOverrideAll matches any origin jurisdiction in an override.
const ReciprocityOverrideAll = "ALL"

// ReciprocityOverride is an ordered, origin-specific exception to the
// jurisdiction's general reciprocity rule. Overrides are evaluated in rule
// order; the first matching override that zeroes the credit ends evaluation.
type ReciprocityOverride struct {
	Origin         string `json:"origin"` // jurisdiction code or ReciprocityOverrideAll
	MaxAgeDays     *int   `json:"max_age_days,omitempty"`
	DisallowCredit bool   `json:"disallow_credit"`
	Note           string `json:"note,omitempty"`
}

// ReciprocityRules governs credit for tax already paid elsewhere
type ReciprocityRules struct {
	Enabled      bool                  `json:"enabled"`
	Scope        ReciprocityScope      `json:"scope"`
	CreditBasis  CreditBasis           `json:"credit_basis"`
	CapAtHomeTax bool                  `json:"cap_at_home_tax"`
	RequireProof bool                  `json:"require_proof"`
	Overrides    []ReciprocityOverride `json:"overrides,omitempty"`
}

// Confidence records whether a rule's legal research is settled
type Confidence string

const (
	ConfidenceVerified    Confidence = "verified"
	ConfidenceNeedsReview Confidence = "needs_review"
)

// JurisdictionExtras holds the jurisdiction-specific constants consumed by
// special scheme handlers and flat-rate pipelines.
type JurisdictionExtras struct {
	// Rate is the jurisdiction's flat rate: the state rate for state_only
	// pipelines and the scheme rate for special pipelines.
	Rate decimal.Decimal `json:"rate,omitempty"`
	// LeaseRate, when set, overrides the rate used by the standard lease
	// pipeline. Needed where retail runs a special scheme but leases fall
	// back to an ordinary sales-tax rate.
	LeaseRate decimal.Decimal `json:"lease_rate,omitempty"`
	// CapAmount bounds the scheme's total tax (e.g. the IMF $500 cap).
	// Zero means uncapped.
	CapAmount decimal.Decimal `json:"cap_amount,omitempty"`
	// VehicleClassRates is the per-class rate table used by HUT-style
	// schemes. Keyed by vehicle class, with "default" as the fallback.
	VehicleClassRates map[string]decimal.Decimal `json:"vehicle_class_rates,omitempty"`
	Confidence        Confidence                 `json:"confidence"`
}

// JurisdictionTaxRules is the complete, versioned rule record for one
// jurisdiction. Records are immutable once loaded into the registry; the
// engine only ever reads them.
type JurisdictionTaxRules struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Version string `json:"version"`

	TradeInPolicy TradeInPolicy               `json:"trade_in_policy"`
	RebateRules   map[RebateSource]RebateRule `json:"rebate_rules"`

	DocFeeTaxable bool             `json:"doc_fee_taxable"`
	DocFeeCap     *decimal.Decimal `json:"doc_fee_cap,omitempty"`
	FeeTaxRules   []FeeTaxRule     `json:"fee_tax_rules"`

	GlobalProductFlags GlobalProductFlags `json:"global_product_flags"`

	VehicleTaxScheme   VehicleTaxScheme `json:"vehicle_tax_scheme"`
	SpecialScheme      SchemeID         `json:"special_scheme,omitempty"`
	UsesLocalRateStack bool             `json:"uses_local_rate_stack"`

	// TradeInAppliedAfterFees selects the Kansas-style composition order:
	// taxable fees enter the base before the trade-in credit is applied.
	// The majority order offsets trade-in and rebates against price alone.
	TradeInAppliedAfterFees bool `json:"trade_in_applied_after_fees"`

	LeaseRules  LeaseRules         `json:"lease_rules"`
	Reciprocity ReciprocityRules   `json:"reciprocity"`
	Extras      JurisdictionExtras `json:"extras"`
}

// ExplicitFeeRule returns the explicit rule for a fee code, if one exists.
func (r *JurisdictionTaxRules) ExplicitFeeRule(code string) (FeeTaxRule, bool) {
	for _, rule := range r.FeeTaxRules {
		if rule.Code == code {
			return rule, true
		}
	}
	return FeeTaxRule{}, false
}

// ExplicitLeaseFeeRule returns the lease-context explicit rule for a fee
// code, if one exists.
func (r *JurisdictionTaxRules) ExplicitLeaseFeeRule(code string) (FeeTaxRule, bool) {
	for _, rule := range r.LeaseRules.FeeTaxRules {
		if rule.Code == code {
			return rule, true
		}
	}
	return FeeTaxRule{}, false
}
