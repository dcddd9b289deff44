package services

import (
	"context"
	"fmt"

	"github.com/dealerdesk/dealerdesk-tax/interfaces"
	"github.com/dealerdesk/dealerdesk-tax/logger"
	"github.com/dealerdesk/dealerdesk-tax/types/api/params"
	"github.com/dealerdesk/dealerdesk-tax/types/business"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// pipelineOutcome is the calculator-internal computation before reciprocity
// and final aggregation.
type pipelineOutcome struct {
	Base         decimal.Decimal
	Tax          decimal.Decimal
	Lines        []business.TaxLineItem
	Schedule     []business.PeriodTax
	AppliedRules []string
	Notes        []string
}

// RetailTaxService computes one-time purchase tax
type RetailTaxService struct {
	base         *TaxableBaseResolver
	schemes      *SchemeRegistry
	rateResolver interfaces.RateResolver
	logger       *zap.Logger
}

// NewRetailTaxService creates a new retail tax service
func NewRetailTaxService(base *TaxableBaseResolver, schemes *SchemeRegistry, rateResolver interfaces.RateResolver) *RetailTaxService {
	return &RetailTaxService{
		base:         base,
		schemes:      schemes,
		rateResolver: rateResolver,
		logger:       logger.Log,
	}
}

// Calculate runs the retail pipeline for a validated transaction. Special
// scheme jurisdictions are handed wholesale to their scheme handler; the
// stacked-rate pipeline is never partially applied to them.
func (s *RetailTaxService) Calculate(ctx context.Context, rules *business.JurisdictionTaxRules, p params.TaxCalculationParams) (*pipelineOutcome, error) {
	if rules.VehicleTaxScheme == business.SchemeSpecial {
		handler, err := s.schemes.Dispatch(rules.SpecialScheme)
		if err != nil {
			return nil, err
		}
		result, err := handler.CalculateRetail(rules, p)
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

	computation, err := s.base.Resolve(rules, p)
	if err != nil {
		return nil, err
	}

	rate, err := resolveStandardRate(ctx, s.rateResolver, rules, p.Location, false)
	if err != nil {
		return nil, err
	}

	tax := business.RoundCents(computation.Base.Mul(rate.Rate))

	s.logger.Debug("Computed retail tax",
		zap.String("jurisdiction", rules.Code),
		zap.String("taxable_base", computation.Base.String()),
		zap.String("rate", rate.Rate.String()),
		zap.String("tax", tax.String()))

	return &pipelineOutcome{
		Base:         computation.Base,
		Tax:          tax,
		Lines:        computation.Lines,
		AppliedRules: []string{fmt.Sprintf("STANDARD_TAX_%s", rules.Code)},
		Notes:        rate.Notes,
	}, nil
}
