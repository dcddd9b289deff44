package business

import "github.com/shopspring/decimal"

// Line codes identifying what produced a breakdown line
const (
	LineVehiclePrice   = "VEHICLE_PRICE"
	LineAccessory      = "ACCESSORY"
	LineFee            = "FEE"
	LineTradeIn        = "TRADE_IN"
	LineRebate         = "REBATE"
	LineNegativeEquity = "NEGATIVE_EQUITY"
	LineCapReduction   = "CAP_REDUCTION"
	LineMonthlyPayment = "MONTHLY_PAYMENT"
	LineSchemeBase     = "SCHEME_BASE"
)

// TaxLineItem is one audited component of a tax computation. Every input
// amount the engine considered appears as a line with its resolved
// taxability and signed contribution to the taxable base, so any computed
// number can be traced to the rule that produced it.
type TaxLineItem struct {
	Code             string          `json:"code"`        // e.g. "FEE:DOC", "REBATE:manufacturer"
	Description      string          `json:"description"` //
	Amount           decimal.Decimal `json:"amount"`
	Taxable          bool            `json:"taxable"`
	BaseContribution decimal.Decimal `json:"base_contribution"` // signed
	TaxAmount        decimal.Decimal `json:"tax_amount"`        // for lines taxed directly (schemes, upfront lease items)
	RuleNote         string          `json:"rule_note,omitempty"`
}

// PeriodTax is one period of a lease tax schedule
type PeriodTax struct {
	Period    int             `json:"period"` // 1-based
	Payment   decimal.Decimal `json:"payment"`
	TaxAmount decimal.Decimal `json:"tax_amount"`
}

// TaxAuditTrail contains audit information for tax computations
type TaxAuditTrail struct {
	RulesVersion string   `json:"rules_version"`
	Jurisdiction string   `json:"jurisdiction"`
	AppliedRules []string `json:"applied_rules"`
	Notes        []string `json:"notes,omitempty"`
}
