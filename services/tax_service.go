package services

import (
	"context"
	"fmt"

	"github.com/dealerdesk/dealerdesk-tax/constants"
	"github.com/dealerdesk/dealerdesk-tax/interfaces"
	"github.com/dealerdesk/dealerdesk-tax/logger"
	"github.com/dealerdesk/dealerdesk-tax/types/api/params"
	"github.com/dealerdesk/dealerdesk-tax/types/api/responses"
	"github.com/dealerdesk/dealerdesk-tax/types/business"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// TaxService is the engine facade: it validates the transaction, resolves
// the jurisdiction's rules, dispatches the retail or lease pipeline,
// applies reciprocity and assembles the final result with its audit trail.
//
// The whole computation is a pure function of the rule record and the
// transaction input. Nothing here performs I/O or reads the clock, so
// identical inputs always produce identical results and concurrent
// computations need no coordination.
type TaxService struct {
	registry    *RuleRegistry
	retail      *RetailTaxService
	lease       *LeaseTaxService
	reciprocity *ReciprocityService
	logger      *zap.Logger
}

var _ interfaces.TaxCalculator = (*TaxService)(nil)

// NewTaxService wires the engine together around a validated rule registry
// and the caller's rate resolver collaborator.
func NewTaxService(registry *RuleRegistry, rateResolver interfaces.RateResolver) *TaxService {
	fees := NewFeeResolver()
	schemes := NewSchemeRegistry(fees)
	base := NewTaxableBaseResolver(fees)

	return &TaxService{
		registry:    registry,
		retail:      NewRetailTaxService(base, schemes, rateResolver),
		lease:       NewLeaseTaxService(fees, schemes, rateResolver),
		reciprocity: NewReciprocityService(),
		logger:      logger.Log,
	}
}

// CalculateTax computes the tax owed on a normalized transaction.
func (s *TaxService) CalculateTax(ctx context.Context, p params.TaxCalculationParams) (*responses.TaxComputationResult, error) {
	s.logger.Info("Calculating vehicle tax",
		zap.String("deal_id", p.DealID.String()),
		zap.String("jurisdiction", p.Jurisdiction),
		zap.String("transaction_type", p.TransactionType),
		zap.String("price", p.Price.String()))

	if err := validateTransaction(p); err != nil {
		return nil, err
	}

	rules, err := s.registry.Lookup(p.Jurisdiction)
	if err != nil {
		return nil, err
	}

	var outcome *pipelineOutcome
	switch p.TransactionType {
	case constants.TransactionTypeRetail:
		outcome, err = s.retail.Calculate(ctx, rules, p)
	case constants.TransactionTypeLease:
		outcome, err = s.lease.Calculate(ctx, rules, p)
	default:
		return nil, fmt.Errorf("%w: unknown transaction type %q", ErrMalformedTransaction, p.TransactionType)
	}
	if err != nil {
		return nil, err
	}

	credit := s.reciprocity.ComputeCredit(rules, p.TransactionType, outcome.Tax, p.PriorTaxPaid)
	netDue := business.FloorZero(outcome.Tax.Sub(credit.Credit))

	result := &responses.TaxComputationResult{
		DealID:            p.DealID,
		Jurisdiction:      rules.Code,
		TransactionType:   p.TransactionType,
		TaxableBase:       outcome.Base,
		TotalTax:          outcome.Tax,
		ReciprocityCredit: credit.Credit,
		NetTaxDue:         netDue,
		AmountFinanced:    amountFinanced(p, netDue),
		Lines:             outcome.Lines,
		Schedule:          outcome.Schedule,
		NeedsReview:       rules.Extras.Confidence == business.ConfidenceNeedsReview,
		AuditTrail: business.TaxAuditTrail{
			RulesVersion: rules.Version,
			Jurisdiction: rules.Code,
			AppliedRules: append(append([]string{}, outcome.AppliedRules...), credit.AppliedRules...),
			Notes:        append(append([]string{}, outcome.Notes...), credit.Notes...),
		},
	}

	if result.NeedsReview {
		result.AuditTrail.Notes = append(result.AuditTrail.Notes,
			fmt.Sprintf("%s rules flagged needs_review: verify before quoting", rules.Code))
	}

	s.logger.Info("Computed vehicle tax",
		zap.String("deal_id", p.DealID.String()),
		zap.String("jurisdiction", rules.Code),
		zap.String("taxable_base", result.TaxableBase.String()),
		zap.String("total_tax", result.TotalTax.String()),
		zap.String("net_tax_due", result.NetTaxDue.String()))

	return result, nil
}

// validateTransaction rejects inputs that cannot be computed before any
// rule interpretation happens.
func validateTransaction(p params.TaxCalculationParams) error {
	if p.Jurisdiction == "" {
		return fmt.Errorf("%w: missing jurisdiction", ErrMalformedTransaction)
	}
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: negative price", ErrMalformedTransaction)
	}
	if p.NegativeEquity.IsNegative() {
		return fmt.Errorf("%w: negative equity amount must be non-negative", ErrMalformedTransaction)
	}
	for _, fee := range p.Fees {
		if fee.Code == "" {
			return fmt.Errorf("%w: fee with empty code", ErrMalformedTransaction)
		}
		if fee.Amount.IsNegative() {
			return fmt.Errorf("%w: negative fee amount for %q", ErrMalformedTransaction, fee.Code)
		}
	}
	for _, accessory := range p.Accessories {
		if accessory.Amount.IsNegative() {
			return fmt.Errorf("%w: negative accessory amount", ErrMalformedTransaction)
		}
	}
	for _, rebate := range p.Rebates {
		if rebate.Amount.IsNegative() {
			return fmt.Errorf("%w: negative rebate amount", ErrMalformedTransaction)
		}
	}
	if p.TradeIn != nil && p.TradeIn.Value.IsNegative() {
		return fmt.Errorf("%w: negative trade-in value", ErrMalformedTransaction)
	}

	switch p.TransactionType {
	case constants.TransactionTypeRetail:
	case constants.TransactionTypeLease:
		if p.Lease == nil {
			return fmt.Errorf("%w: lease transaction missing lease terms", ErrMalformedTransaction)
		}
		if p.Lease.TermMonths <= 0 {
			return fmt.Errorf("%w: lease term must be positive", ErrMalformedTransaction)
		}
		if p.Lease.MonthlyPayment.IsNegative() || p.Lease.GrossCapCost.IsNegative() {
			return fmt.Errorf("%w: negative lease amounts", ErrMalformedTransaction)
		}
		for _, reduction := range p.Lease.CapReductions {
			if reduction.Amount.IsNegative() {
				return fmt.Errorf("%w: negative cap reduction", ErrMalformedTransaction)
			}
			if reduction.Kind == params.CapReductionRebate && reduction.Source == "" {
				return fmt.Errorf("%w: rebate cap reduction missing source", ErrMalformedTransaction)
			}
		}
	default:
		return fmt.Errorf("%w: unknown transaction type %q", ErrMalformedTransaction, p.TransactionType)
	}

	return nil
}

// amountFinanced is the cash the deal rolls into the note: everything owed
// (price, fees, accessories, negative equity, net tax) less everything
// applied against it (trade-in equity, rebates, lease cap reductions).
func amountFinanced(p params.TaxCalculationParams, netTaxDue decimal.Decimal) decimal.Decimal {
	if p.TransactionType == constants.TransactionTypeLease {
		financed := p.Lease.GrossCapCost
		for _, reduction := range p.Lease.CapReductions {
			financed = financed.Sub(reduction.Amount)
		}
		if p.NegativeEquity.IsPositive() {
			financed = financed.Add(p.NegativeEquity)
		}
		return business.FloorZero(financed)
	}

	financed := p.Price.Add(netTaxDue).Add(p.NegativeEquity)
	for _, fee := range p.Fees {
		financed = financed.Add(fee.Amount)
	}
	for _, accessory := range p.Accessories {
		financed = financed.Add(accessory.Amount)
	}
	for _, rebate := range p.Rebates {
		financed = financed.Sub(rebate.Amount)
	}
	if p.TradeIn != nil {
		equity := p.TradeIn.Value.Sub(p.TradeIn.Payoff)
		financed = financed.Sub(equity)
	}
	return business.FloorZero(financed)
}
