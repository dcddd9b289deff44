package services

import (
	"fmt"

	"github.com/dealerdesk/dealerdesk-tax/constants"
	"github.com/dealerdesk/dealerdesk-tax/types/api/params"
	"github.com/dealerdesk/dealerdesk-tax/types/business"
	"github.com/shopspring/decimal"
)

// BaseComputation is the resolved taxable base with its per-line audit
// breakdown.
type BaseComputation struct {
	Base  decimal.Decimal
	Lines []business.TaxLineItem
}

// TaxableBaseResolver combines price, taxable fees and accessories,
// trade-in credit, rebate treatment and negative equity into a taxable
// base, following the jurisdiction's legal composition order.
type TaxableBaseResolver struct {
	fees *FeeResolver
}

// NewTaxableBaseResolver creates a new taxable base resolver
func NewTaxableBaseResolver(fees *FeeResolver) *TaxableBaseResolver {
	return &TaxableBaseResolver{fees: fees}
}

// Resolve computes the retail taxable base for a transaction.
//
// Two composition orders exist in the data. The majority order offsets
// trade-in and rebate credits against the vehicle price alone, then adds
// taxable fees and accessories. Kansas-style jurisdictions fold taxable
// fees into the base before the trade-in credit applies, which matters when
// the credit exceeds the price. Both orders floor the base at zero.
func (r *TaxableBaseResolver) Resolve(rules *business.JurisdictionTaxRules, p params.TaxCalculationParams) (*BaseComputation, error) {
	lines := []business.TaxLineItem{{
		Code:             business.LineVehiclePrice,
		Description:      "Vehicle selling price",
		Amount:           p.Price,
		Taxable:          true,
		BaseContribution: p.Price,
	}}

	adds := decimal.Zero

	for _, accessory := range p.Accessories {
		ruling, err := r.fees.Resolve(rules, constants.FeeCodeAccessory, FeeContextRetail)
		if err != nil {
			return nil, err
		}
		line := business.TaxLineItem{
			Code:        business.LineAccessory,
			Description: accessory.Description,
			Amount:      accessory.Amount,
			Taxable:     ruling.Taxable,
			RuleNote:    ruling.Note,
		}
		if ruling.Taxable {
			line.BaseContribution = accessory.Amount
			adds = adds.Add(accessory.Amount)
		}
		lines = append(lines, line)
	}

	for _, fee := range p.Fees {
		ruling, err := r.fees.Resolve(rules, fee.Code, FeeContextRetail)
		if err != nil {
			return nil, err
		}
		contribution := feeBaseContribution(rules, fee, ruling)
		line := business.TaxLineItem{
			Code:             business.LineFee + ":" + fee.Code,
			Description:      fee.Description,
			Amount:           fee.Amount,
			Taxable:          ruling.Taxable,
			BaseContribution: contribution,
			RuleNote:         ruling.Note,
		}
		adds = adds.Add(contribution)
		lines = append(lines, line)
	}

	if p.NegativeEquity.IsPositive() {
		taxable := rules.GlobalProductFlags.TaxOnNegativeEquity
		line := business.TaxLineItem{
			Code:        business.LineNegativeEquity,
			Description: "Negative equity rolled into deal",
			Amount:      p.NegativeEquity,
			Taxable:     taxable,
		}
		if taxable {
			line.BaseContribution = p.NegativeEquity
			adds = adds.Add(p.NegativeEquity)
		}
		lines = append(lines, line)
	}

	credits := decimal.Zero

	if p.TradeIn != nil && p.TradeIn.Value.IsPositive() {
		credit := rules.TradeInPolicy.Credit(p.TradeIn.Value)
		line := business.TaxLineItem{
			Code:             business.LineTradeIn,
			Description:      "Trade-in credit",
			Amount:           p.TradeIn.Value,
			Taxable:          false,
			BaseContribution: credit.Neg(),
		}
		if rules.TradeInPolicy.Kind == business.TradeInCapped {
			line.RuleNote = fmt.Sprintf("credit capped at %s", rules.TradeInPolicy.Cap.StringFixed(2))
		}
		credits = credits.Add(credit)
		lines = append(lines, line)
	}

	for _, rebate := range p.Rebates {
		rule, ok := rules.RebateRules[rebate.Source]
		if !ok {
			return nil, fmt.Errorf("%w: no rebate rule for source %q", ErrMalformedTransaction, rebate.Source)
		}
		line := business.TaxLineItem{
			Code:        business.LineRebate + ":" + string(rebate.Source),
			Description: fmt.Sprintf("%s rebate", rebate.Source),
			Amount:      rebate.Amount,
			Taxable:     rule.Taxable,
			RuleNote:    rule.Note,
		}
		// Only rebates the jurisdiction treats as non-taxable reduce the base.
		if !rule.Taxable {
			line.BaseContribution = rebate.Amount.Neg()
			credits = credits.Add(rebate.Amount)
		}
		lines = append(lines, line)
	}

	var base decimal.Decimal
	if rules.TradeInAppliedAfterFees {
		base = business.FloorZero(p.Price.Add(adds).Sub(credits))
	} else {
		base = business.FloorZero(p.Price.Sub(credits)).Add(adds)
	}
	base = business.FloorZero(base)

	return &BaseComputation{Base: base, Lines: lines}, nil
}

// feeBaseContribution bounds a taxable fee's contribution to the base.
// A doc fee cap limits only this contribution, never the final tax; that is
// a different cap semantic that belongs to scheme handlers.
func feeBaseContribution(rules *business.JurisdictionTaxRules, fee params.FeeInput, ruling FeeRuling) decimal.Decimal {
	if !ruling.Taxable {
		return decimal.Zero
	}
	if fee.Code == constants.FeeCodeDoc && rules.DocFeeCap != nil {
		return business.MinDecimal(fee.Amount, *rules.DocFeeCap)
	}
	return fee.Amount
}
