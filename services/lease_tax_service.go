package services

import (
	"context"
	"fmt"

	"github.com/dealerdesk/dealerdesk-tax/constants"
	"github.com/dealerdesk/dealerdesk-tax/interfaces"
	"github.com/dealerdesk/dealerdesk-tax/logger"
	"github.com/dealerdesk/dealerdesk-tax/types/api/params"
	"github.com/dealerdesk/dealerdesk-tax/types/business"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// LeaseTaxService computes lease tax. Each jurisdiction selects exactly one
// of the three methods; the interpreter never blends methods.
type LeaseTaxService struct {
	fees         *FeeResolver
	schemes      *SchemeRegistry
	rateResolver interfaces.RateResolver
	logger       *zap.Logger
}

// NewLeaseTaxService creates a new lease tax service
func NewLeaseTaxService(fees *FeeResolver, schemes *SchemeRegistry, rateResolver interfaces.RateResolver) *LeaseTaxService {
	return &LeaseTaxService{
		fees:         fees,
		schemes:      schemes,
		rateResolver: rateResolver,
		logger:       logger.Log,
	}
}

// Calculate runs the lease pipeline for a validated transaction. Lease
// scheme dispatch is independent of retail: the same jurisdiction can run a
// special scheme on retail sales and an ordinary rate on lease payments, or
// the reverse.
func (s *LeaseTaxService) Calculate(ctx context.Context, rules *business.JurisdictionTaxRules, p params.TaxCalculationParams) (*pipelineOutcome, error) {
	if rules.LeaseRules.SpecialScheme != "" {
		handler, err := s.schemes.Dispatch(rules.LeaseRules.SpecialScheme)
		if err != nil {
			return nil, err
		}
		result, err := handler.CalculateLease(rules, p)
		if err != nil {
			return nil, err
		}
		return &pipelineOutcome{
			Base:         result.Base,
			Tax:          result.Tax,
			Lines:        result.Lines,
			Schedule:     result.Schedule,
			AppliedRules: []string{result.AppliedRule},
			Notes:        result.Notes,
		}, nil
	}

	rate, err := resolveStandardRate(ctx, s.rateResolver, rules, p.Location, true)
	if err != nil {
		return nil, err
	}

	var outcome *pipelineOutcome
	switch rules.LeaseRules.Method {
	case business.LeaseMonthly:
		outcome, err = s.calculateMonthly(rules, p, rate.Rate)
	case business.LeaseFullUpfront:
		outcome, err = s.calculateFullUpfront(rules, p, rate.Rate)
	case business.LeaseHybrid:
		outcome, err = s.calculateHybrid(rules, p, rate.Rate)
	default:
		return nil, fmt.Errorf("%w: no handler for lease method %q in %s", ErrInvalidSchemeDispatch, rules.LeaseRules.Method, rules.Code)
	}
	if err != nil {
		return nil, err
	}

	outcome.Notes = append(outcome.Notes, rate.Notes...)

	s.logger.Debug("Computed lease tax",
		zap.String("jurisdiction", rules.Code),
		zap.String("method", string(rules.LeaseRules.Method)),
		zap.String("tax", outcome.Tax.String()))

	return outcome, nil
}

// calculateMonthly taxes each payment as it falls due. When the
// jurisdiction taxes cap cost reductions, cash and rebate money down is
// taxed once at signing at the same rate, itemized per reduction so an
// exempt trade-in is never lumped in with taxed cash.
func (s *LeaseTaxService) calculateMonthly(rules *business.JurisdictionTaxRules, p params.TaxCalculationParams, rate decimal.Decimal) (*pipelineOutcome, error) {
	lease := p.Lease
	perPeriod := business.RoundCents(lease.MonthlyPayment.Mul(rate))
	termMonths := decimal.NewFromInt(int64(lease.TermMonths))
	monthlyTotal := perPeriod.Mul(termMonths)

	outcome := &pipelineOutcome{
		Base:     lease.MonthlyPayment.Mul(termMonths),
		Schedule: flatSchedule(lease, perPeriod),
		Lines: []business.TaxLineItem{{
			Code:        business.LineMonthlyPayment,
			Description: fmt.Sprintf("Tax on %d monthly payments", lease.TermMonths),
			Amount:      lease.MonthlyPayment,
			Taxable:     true,
			TaxAmount:   monthlyTotal,
		}},
		AppliedRules: []string{fmt.Sprintf("LEASE_MONTHLY_%s", rules.Code)},
	}

	upfront := decimal.Zero

	if rules.LeaseRules.TaxCapReductionUpfront {
		capTax, lines, err := s.taxCapReductions(rules, lease, rate)
		if err != nil {
			return nil, err
		}
		upfront = upfront.Add(capTax)
		outcome.Lines = append(outcome.Lines, lines...)
		for _, line := range lines {
			if line.Taxable {
				outcome.Base = outcome.Base.Add(line.BaseContribution)
			}
		}
	}

	if rules.LeaseRules.TaxFeesUpfront {
		feeTax, feeBase, lines, err := s.taxUpfrontFees(rules, p, rate)
		if err != nil {
			return nil, err
		}
		upfront = upfront.Add(feeTax)
		outcome.Base = outcome.Base.Add(feeBase)
		outcome.Lines = append(outcome.Lines, lines...)
	}

	if line, ok := taxNegativeEquity(rules, p, rate); ok {
		upfront = upfront.Add(line.TaxAmount)
		outcome.Base = outcome.Base.Add(line.BaseContribution)
		outcome.Lines = append(outcome.Lines, line)
	}

	outcome.Tax = monthlyTotal.Add(upfront)
	return outcome, nil
}

// calculateFullUpfront taxes the adjusted capitalized cost once at
// inception: gross cap cost, plus cap reductions the jurisdiction taxes,
// minus the trade-in credit its lease rules allow. No further tax ever
// applies to the monthly payments.
func (s *LeaseTaxService) calculateFullUpfront(rules *business.JurisdictionTaxRules, p params.TaxCalculationParams, rate decimal.Decimal) (*pipelineOutcome, error) {
	lease := p.Lease
	base := lease.GrossCapCost
	lines := []business.TaxLineItem{{
		Code:             business.LineVehiclePrice,
		Description:      "Gross capitalized cost",
		Amount:           lease.GrossCapCost,
		Taxable:          true,
		BaseContribution: lease.GrossCapCost,
	}}

	for _, reduction := range lease.CapReductions {
		ruling, err := s.classifyCapReduction(rules, reduction)
		if err != nil {
			return nil, err
		}
		line := business.TaxLineItem{
			Code:        business.LineCapReduction + ":" + string(reduction.Kind),
			Description: fmt.Sprintf("%s cap reduction", reduction.Kind),
			Amount:      reduction.Amount,
			Taxable:     ruling.Taxable,
			RuleNote:    ruling.Note,
		}
		switch {
		case ruling.Taxable:
			// The legislated asymmetry: equity that would earn a retail
			// credit is itself taxed as a cap reduction on a lease.
			line.BaseContribution = reduction.Amount
			base = base.Add(reduction.Amount)
		case ruling.Credit:
			line.BaseContribution = reduction.Amount.Neg()
			base = base.Sub(reduction.Amount)
		}
		lines = append(lines, line)
	}

	if rules.LeaseRules.TaxFeesUpfront {
		_, feeBase, feeLines, err := s.taxUpfrontFees(rules, p, decimal.Zero)
		if err != nil {
			return nil, err
		}
		// Fee tax is folded into the single upfront computation, so only
		// the base contributions matter here.
		base = base.Add(feeBase)
		lines = append(lines, feeLines...)
	}

	if rules.LeaseRules.NegativeEquityTaxable && p.NegativeEquity.IsPositive() {
		base = base.Add(p.NegativeEquity)
		lines = append(lines, business.TaxLineItem{
			Code:             business.LineNegativeEquity,
			Description:      "Negative equity rolled into cap cost",
			Amount:           p.NegativeEquity,
			Taxable:          true,
			BaseContribution: p.NegativeEquity,
		})
	}

	base = business.FloorZero(base)
	tax := business.RoundCents(base.Mul(rate))

	outcome := &pipelineOutcome{
		Base:         base,
		Lines:        lines,
		Schedule:     flatSchedule(lease, decimal.Zero),
		AppliedRules: []string{fmt.Sprintf("LEASE_FULL_UPFRONT_%s", rules.Code)},
	}
	if rules.VehicleTaxScheme != business.SchemeSpecial && rules.Extras.CapAmount.IsPositive() && tax.GreaterThan(rules.Extras.CapAmount) {
		outcome.Notes = append(outcome.Notes,
			fmt.Sprintf("upfront lease tax capped at %s", rules.Extras.CapAmount.StringFixed(2)))
		tax = rules.Extras.CapAmount
	}
	outcome.Tax = tax
	return outcome, nil
}

// calculateHybrid taxes an upfront component (cap reductions and upfront
// fees) once at signing plus an ongoing per-period component, both at the
// jurisdiction's rate.
func (s *LeaseTaxService) calculateHybrid(rules *business.JurisdictionTaxRules, p params.TaxCalculationParams, rate decimal.Decimal) (*pipelineOutcome, error) {
	lease := p.Lease
	perPeriod := business.RoundCents(lease.MonthlyPayment.Mul(rate))
	termMonths := decimal.NewFromInt(int64(lease.TermMonths))
	monthlyTotal := perPeriod.Mul(termMonths)

	outcome := &pipelineOutcome{
		Base:     lease.MonthlyPayment.Mul(termMonths),
		Schedule: flatSchedule(lease, perPeriod),
		Lines: []business.TaxLineItem{{
			Code:        business.LineMonthlyPayment,
			Description: fmt.Sprintf("Tax on %d monthly payments", lease.TermMonths),
			Amount:      lease.MonthlyPayment,
			Taxable:     true,
			TaxAmount:   monthlyTotal,
		}},
		AppliedRules: []string{fmt.Sprintf("LEASE_HYBRID_%s", rules.Code)},
	}

	capTax, capLines, err := s.taxCapReductions(rules, lease, rate)
	if err != nil {
		return nil, err
	}
	outcome.Lines = append(outcome.Lines, capLines...)
	for _, line := range capLines {
		if line.Taxable {
			outcome.Base = outcome.Base.Add(line.BaseContribution)
		}
	}

	feeTax, feeBase, feeLines, err := s.taxUpfrontFees(rules, p, rate)
	if err != nil {
		return nil, err
	}
	outcome.Base = outcome.Base.Add(feeBase)
	outcome.Lines = append(outcome.Lines, feeLines...)

	upfront := capTax.Add(feeTax)
	if line, ok := taxNegativeEquity(rules, p, rate); ok {
		upfront = upfront.Add(line.TaxAmount)
		outcome.Base = outcome.Base.Add(line.BaseContribution)
		outcome.Lines = append(outcome.Lines, line)
	}

	outcome.Tax = monthlyTotal.Add(upfront)
	return outcome, nil
}

// taxNegativeEquity taxes negative equity rolled into the cap cost once at
// signing, the same treatment taxed cap reductions get. The full-upfront
// method folds the amount into its single base instead.
func taxNegativeEquity(rules *business.JurisdictionTaxRules, p params.TaxCalculationParams, rate decimal.Decimal) (business.TaxLineItem, bool) {
	if !rules.LeaseRules.NegativeEquityTaxable || !p.NegativeEquity.IsPositive() {
		return business.TaxLineItem{}, false
	}
	return business.TaxLineItem{
		Code:             business.LineNegativeEquity,
		Description:      "Negative equity rolled into cap cost",
		Amount:           p.NegativeEquity,
		Taxable:          true,
		BaseContribution: p.NegativeEquity,
		TaxAmount:        business.RoundCents(p.NegativeEquity.Mul(rate)),
	}, true
}

// capReductionRuling is the lease-inception treatment of one cap reduction
type capReductionRuling struct {
	// Taxable means the reduction is taxed (monthly/hybrid) or added to the
	// upfront base (full upfront).
	Taxable bool
	// Credit means the reduction earns a deduction from the upfront base.
	Credit bool
	Note   string
}

// classifyCapReduction applies the lease rule sub-tree to a single cap
// reduction. Trade-in equity follows LeaseRules.TradeInCredit, never the
// retail TradeInPolicy, unless the lease rule explicitly defers to retail.
func (s *LeaseTaxService) classifyCapReduction(rules *business.JurisdictionTaxRules, reduction params.CapReduction) (capReductionRuling, error) {
	switch reduction.Kind {
	case params.CapReductionCash:
		return capReductionRuling{Taxable: true}, nil

	case params.CapReductionRebate:
		behavior := rules.LeaseRules.RebateBehavior
		if behavior == business.LeaseRebateFollowRetail {
			rule, ok := rules.RebateRules[reduction.Source]
			if !ok {
				return capReductionRuling{}, fmt.Errorf("%w: rebate cap reduction missing a ruled source", ErrMalformedTransaction)
			}
			return capReductionRuling{Taxable: rule.Taxable, Note: rule.Note}, nil
		}
		return capReductionRuling{Taxable: behavior == business.LeaseRebateTaxable}, nil

	case params.CapReductionTradeIn:
		credit := rules.LeaseRules.TradeInCredit
		if credit == business.LeaseTradeInFollowRetail {
			if rules.TradeInPolicy.Kind == business.TradeInNone {
				credit = business.LeaseTradeInNone
			} else {
				credit = business.LeaseTradeInFull
			}
		}
		switch credit {
		case business.LeaseTradeInFull:
			return capReductionRuling{Credit: true, Note: "trade-in equity exempt"}, nil
		case business.LeaseTradeInNone:
			return capReductionRuling{Taxable: true, Note: "trade-in equity taxed as cap reduction"}, nil
		default: // cap_cost_only
			return capReductionRuling{Note: "trade-in reduces cap cost only"}, nil
		}

	default:
		return capReductionRuling{}, fmt.Errorf("%w: unknown cap reduction kind %q", ErrMalformedTransaction, reduction.Kind)
	}
}

// taxCapReductions taxes cash/rebate/trade-in money down at signing,
// itemized per reduction. rate taxes each taxable reduction immediately.
func (s *LeaseTaxService) taxCapReductions(rules *business.JurisdictionTaxRules, lease *params.LeaseTerms, rate decimal.Decimal) (decimal.Decimal, []business.TaxLineItem, error) {
	total := decimal.Zero
	var lines []business.TaxLineItem

	for _, reduction := range lease.CapReductions {
		ruling, err := s.classifyCapReduction(rules, reduction)
		if err != nil {
			return decimal.Zero, nil, err
		}
		line := business.TaxLineItem{
			Code:        business.LineCapReduction + ":" + string(reduction.Kind),
			Description: fmt.Sprintf("%s cap reduction", reduction.Kind),
			Amount:      reduction.Amount,
			Taxable:     ruling.Taxable,
			RuleNote:    ruling.Note,
		}
		if ruling.Taxable {
			line.BaseContribution = reduction.Amount
			line.TaxAmount = business.RoundCents(reduction.Amount.Mul(rate))
			total = total.Add(line.TaxAmount)
		}
		lines = append(lines, line)
	}

	return total, lines, nil
}

// taxUpfrontFees resolves each fee in the lease context and taxes the
// taxable ones once at signing. A zero rate only accumulates base
// contributions (full-upfront folds fee tax into its single computation).
func (s *LeaseTaxService) taxUpfrontFees(rules *business.JurisdictionTaxRules, p params.TaxCalculationParams, rate decimal.Decimal) (decimal.Decimal, decimal.Decimal, []business.TaxLineItem, error) {
	totalTax := decimal.Zero
	totalBase := decimal.Zero
	var lines []business.TaxLineItem

	for _, fee := range p.Fees {
		ruling, err := s.fees.Resolve(rules, fee.Code, FeeContextLease)
		if err != nil {
			return decimal.Zero, decimal.Zero, nil, err
		}
		line := business.TaxLineItem{
			Code:        business.LineFee + ":" + fee.Code,
			Description: fee.Description,
			Amount:      fee.Amount,
			Taxable:     ruling.Taxable,
			RuleNote:    ruling.Note,
		}
		if ruling.Taxable {
			contribution := fee.Amount
			if fee.Code == constants.FeeCodeDoc && rules.DocFeeCap != nil {
				contribution = business.MinDecimal(fee.Amount, *rules.DocFeeCap)
			}
			line.BaseContribution = contribution
			totalBase = totalBase.Add(contribution)
			if rate.IsPositive() {
				line.TaxAmount = business.RoundCents(contribution.Mul(rate))
				totalTax = totalTax.Add(line.TaxAmount)
			}
		}
		lines = append(lines, line)
	}

	return totalTax, totalBase, lines, nil
}
