package responses

import (
	"github.com/dealerdesk/dealerdesk-tax/types/business"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TaxComputationResult contains the computed tax for one transaction.
// It is a pure function of the rule record and the transaction input:
// identical inputs always produce an identical result, which is what makes
// stored results auditable and reproducible.
type TaxComputationResult struct {
	DealID          uuid.UUID `json:"deal_id"`
	Jurisdiction    string    `json:"jurisdiction"`
	TransactionType string    `json:"transaction_type"`

	TaxableBase       decimal.Decimal `json:"taxable_base"`
	TotalTax          decimal.Decimal `json:"total_tax"`
	ReciprocityCredit decimal.Decimal `json:"reciprocity_credit"`
	NetTaxDue         decimal.Decimal `json:"net_tax_due"`
	AmountFinanced    decimal.Decimal `json:"amount_financed"`

	Lines    []business.TaxLineItem `json:"lines"`
	Schedule []business.PeriodTax   `json:"schedule,omitempty"`

	// NeedsReview is set when the jurisdiction's rule record is flagged as
	// unsettled legal research. The number is still computed, but callers
	// must surface it distinctly rather than treat it as final.
	NeedsReview bool `json:"needs_review"`

	AuditTrail business.TaxAuditTrail `json:"audit_trail"`
}
