package services

import (
	"fmt"

	"github.com/dealerdesk/dealerdesk-tax/constants"
	"github.com/dealerdesk/dealerdesk-tax/types/api/params"
	"github.com/dealerdesk/dealerdesk-tax/types/business"
	"github.com/shopspring/decimal"
)

// SchemeResult is the outcome of a special scheme pipeline. Schemes own
// their whole computation: base, rate, caps and (for leases) the schedule.
type SchemeResult struct {
	Base     decimal.Decimal
	Tax      decimal.Decimal
	Lines    []business.TaxLineItem
	Schedule []business.PeriodTax
	// AppliedRule is the audit tag for the scheme application.
	AppliedRule string
	Notes       []string
}

// SchemeHandler is a fully self-contained alternate tax pipeline. The
// standard stacked-rate logic is never partially applied to a special
// scheme jurisdiction. Retail and lease pipelines are dispatched
// independently because one jurisdiction can run different schemes for the
// two transaction types.
type SchemeHandler interface {
	ID() business.SchemeID
	CalculateRetail(rules *business.JurisdictionTaxRules, p params.TaxCalculationParams) (*SchemeResult, error)
	CalculateLease(rules *business.JurisdictionTaxRules, p params.TaxCalculationParams) (*SchemeResult, error)
}

// SchemeRegistry holds the closed set of scheme handlers keyed by scheme id
type SchemeRegistry struct {
	handlers map[business.SchemeID]SchemeHandler
}

// NewSchemeRegistry creates the registry with every known scheme handler
// registered.
func NewSchemeRegistry(fees *FeeResolver) *SchemeRegistry {
	registry := &SchemeRegistry{handlers: make(map[business.SchemeID]SchemeHandler)}
	for _, handler := range []SchemeHandler{
		&tavtHandler{},
		&hutHandler{},
		&getHandler{},
		&privilegeHandler{fees: fees},
		&imfCappedHandler{},
	} {
		registry.handlers[handler.ID()] = handler
	}
	return registry
}

// Dispatch resolves a scheme id to its handler.
func (r *SchemeRegistry) Dispatch(id business.SchemeID) (SchemeHandler, error) {
	handler, exists := r.handlers[id]
	if !exists {
		return nil, fmt.Errorf("%w: no handler for scheme %q", ErrInvalidSchemeDispatch, id)
	}
	return handler, nil
}

// tradeInValue returns the trade-in's value, or zero when absent.
func tradeInValue(p params.TaxCalculationParams) decimal.Decimal {
	if p.TradeIn == nil {
		return decimal.Zero
	}
	return p.TradeIn.Value
}

// --- TAVT (title ad valorem tax) ---

// tavtHandler taxes the vehicle once at titling. The base is the greater of
// the selling price and the DMV-assessed value, less trade-in; fees never
// enter a TAVT base.
type tavtHandler struct{}

func (h *tavtHandler) ID() business.SchemeID { return business.SchemeTAVT }

func (h *tavtHandler) CalculateRetail(rules *business.JurisdictionTaxRules, p params.TaxCalculationParams) (*SchemeResult, error) {
	assessed := p.Price
	if p.AssessedValue != nil {
		assessed = business.MaxDecimal(p.Price, *p.AssessedValue)
	}
	tradeIn := tradeInValue(p)
	base := business.FloorZero(assessed.Sub(tradeIn))
	tax := business.RoundCents(base.Mul(rules.Extras.Rate))

	result := &SchemeResult{
		Base:        base,
		Tax:         tax,
		AppliedRule: fmt.Sprintf("SCHEME_TAVT_%s", rules.Code),
		Lines: []business.TaxLineItem{{
			Code:             business.LineSchemeBase,
			Description:      "TAVT base: greater of price and assessed value",
			Amount:           assessed,
			Taxable:          true,
			BaseContribution: assessed,
			TaxAmount:        tax,
		}},
	}
	if tradeIn.IsPositive() {
		result.Lines = append(result.Lines, business.TaxLineItem{
			Code:             business.LineTradeIn,
			Description:      "Trade-in credit",
			Amount:           tradeIn,
			BaseContribution: tradeIn.Neg(),
		})
	}
	if p.AssessedValue != nil && p.AssessedValue.GreaterThan(p.Price) {
		result.Notes = append(result.Notes, "assessed value exceeded selling price")
	}
	return result, nil
}

// CalculateLease applies TAVT to the lease stream: the total of base
// payments plus cash and rebate cap reductions, taxed once at inception.
func (h *tavtHandler) CalculateLease(rules *business.JurisdictionTaxRules, p params.TaxCalculationParams) (*SchemeResult, error) {
	paymentTotal := p.Lease.MonthlyPayment.Mul(decimal.NewFromInt(int64(p.Lease.TermMonths)))
	base := paymentTotal
	lines := []business.TaxLineItem{{
		Code:             business.LineSchemeBase,
		Description:      fmt.Sprintf("TAVT lease base: %d payments", p.Lease.TermMonths),
		Amount:           paymentTotal,
		Taxable:          true,
		BaseContribution: paymentTotal,
	}}

	for _, reduction := range p.Lease.CapReductions {
		if reduction.Kind == params.CapReductionTradeIn {
			// Trade-in equity is excluded from the TAVT lease base.
			lines = append(lines, business.TaxLineItem{
				Code:        business.LineCapReduction + ":" + string(reduction.Kind),
				Description: "Trade-in cap reduction",
				Amount:      reduction.Amount,
			})
			continue
		}
		base = base.Add(reduction.Amount)
		lines = append(lines, business.TaxLineItem{
			Code:             business.LineCapReduction + ":" + string(reduction.Kind),
			Description:      fmt.Sprintf("%s cap reduction", reduction.Kind),
			Amount:           reduction.Amount,
			Taxable:          true,
			BaseContribution: reduction.Amount,
		})
	}

	tax := business.RoundCents(base.Mul(rules.Extras.Rate))
	schedule := flatSchedule(p.Lease, decimal.Zero)

	return &SchemeResult{
		Base:        base,
		Tax:         tax,
		Lines:       lines,
		Schedule:    schedule,
		AppliedRule: fmt.Sprintf("SCHEME_TAVT_LEASE_%s", rules.Code),
	}, nil
}

// --- HUT (highway use tax) ---

// hutHandler taxes the price less trade-in at a vehicle-class rate, with an
// optional statutory cap on the total tax.
type hutHandler struct{}

func (h *hutHandler) ID() business.SchemeID { return business.SchemeHUT }

func (h *hutHandler) classRate(rules *business.JurisdictionTaxRules, p params.TaxCalculationParams) (decimal.Decimal, error) {
	if len(rules.Extras.VehicleClassRates) == 0 {
		return rules.Extras.Rate, nil
	}
	class := p.VehicleClass
	if class == "" {
		class = "default"
	}
	if rate, ok := rules.Extras.VehicleClassRates[class]; ok {
		return rate, nil
	}
	if rate, ok := rules.Extras.VehicleClassRates["default"]; ok {
		return rate, nil
	}
	return decimal.Zero, fmt.Errorf("%w: no rate for vehicle class %q", ErrMalformedTransaction, p.VehicleClass)
}

func (h *hutHandler) CalculateRetail(rules *business.JurisdictionTaxRules, p params.TaxCalculationParams) (*SchemeResult, error) {
	rate, err := h.classRate(rules, p)
	if err != nil {
		return nil, err
	}

	tradeIn := tradeInValue(p)
	base := business.FloorZero(p.Price.Sub(tradeIn))
	tax := business.RoundCents(base.Mul(rate))

	result := &SchemeResult{
		Base:        base,
		AppliedRule: fmt.Sprintf("SCHEME_HUT_%s", rules.Code),
		Lines: []business.TaxLineItem{{
			Code:             business.LineSchemeBase,
			Description:      "Highway use tax base",
			Amount:           base,
			Taxable:          true,
			BaseContribution: base,
		}},
	}
	if rules.Extras.CapAmount.IsPositive() && tax.GreaterThan(rules.Extras.CapAmount) {
		result.Notes = append(result.Notes,
			fmt.Sprintf("tax capped at %s", rules.Extras.CapAmount.StringFixed(2)))
		tax = rules.Extras.CapAmount
	}
	result.Tax = tax
	result.Lines[0].TaxAmount = tax
	return result, nil
}

// CalculateLease applies the alternate gross-receipts rate to each payment.
func (h *hutHandler) CalculateLease(rules *business.JurisdictionTaxRules, p params.TaxCalculationParams) (*SchemeResult, error) {
	rate, err := h.classRate(rules, p)
	if err != nil {
		return nil, err
	}

	perPeriod := business.RoundCents(p.Lease.MonthlyPayment.Mul(rate))
	schedule := flatSchedule(p.Lease, perPeriod)
	total := perPeriod.Mul(decimal.NewFromInt(int64(p.Lease.TermMonths)))

	return &SchemeResult{
		Base:     p.Lease.MonthlyPayment.Mul(decimal.NewFromInt(int64(p.Lease.TermMonths))),
		Tax:      total,
		Schedule: schedule,
		Lines: []business.TaxLineItem{{
			Code:        business.LineMonthlyPayment,
			Description: fmt.Sprintf("Gross receipts on %d lease payments", p.Lease.TermMonths),
			Amount:      p.Lease.MonthlyPayment,
			Taxable:     true,
			TaxAmount:   total,
		}},
		AppliedRule: fmt.Sprintf("SCHEME_HUT_LEASE_%s", rules.Code),
	}, nil
}

// --- GET (general excise tax) ---

// getHandler taxes gross receipts: fees and accessories are always in the
// base regardless of the standard product flags, so no fee resolution
// happens here. Trade-in credit still follows the jurisdiction's policy.
type getHandler struct{}

func (h *getHandler) ID() business.SchemeID { return business.SchemeGET }

func (h *getHandler) CalculateRetail(rules *business.JurisdictionTaxRules, p params.TaxCalculationParams) (*SchemeResult, error) {
	base := p.Price
	lines := []business.TaxLineItem{{
		Code:             business.LineVehiclePrice,
		Description:      "Vehicle selling price",
		Amount:           p.Price,
		Taxable:          true,
		BaseContribution: p.Price,
	}}

	for _, accessory := range p.Accessories {
		base = base.Add(accessory.Amount)
		lines = append(lines, business.TaxLineItem{
			Code:             business.LineAccessory,
			Description:      accessory.Description,
			Amount:           accessory.Amount,
			Taxable:          true,
			BaseContribution: accessory.Amount,
			RuleNote:         "gross receipts: always taxable",
		})
	}
	for _, fee := range p.Fees {
		base = base.Add(fee.Amount)
		lines = append(lines, business.TaxLineItem{
			Code:             business.LineFee + ":" + fee.Code,
			Description:      fee.Description,
			Amount:           fee.Amount,
			Taxable:          true,
			BaseContribution: fee.Amount,
			RuleNote:         "gross receipts: always taxable",
		})
	}

	if tradeIn := tradeInValue(p); tradeIn.IsPositive() {
		credit := rules.TradeInPolicy.Credit(tradeIn)
		base = base.Sub(credit)
		lines = append(lines, business.TaxLineItem{
			Code:             business.LineTradeIn,
			Description:      "Trade-in credit",
			Amount:           tradeIn,
			BaseContribution: credit.Neg(),
		})
	}

	base = business.FloorZero(base)
	tax := business.RoundCents(base.Mul(rules.Extras.Rate))

	return &SchemeResult{
		Base:        base,
		Tax:         tax,
		Lines:       lines,
		AppliedRule: fmt.Sprintf("SCHEME_GET_%s", rules.Code),
	}, nil
}

// CalculateLease applies the excise rate to each lease payment.
func (h *getHandler) CalculateLease(rules *business.JurisdictionTaxRules, p params.TaxCalculationParams) (*SchemeResult, error) {
	perPeriod := business.RoundCents(p.Lease.MonthlyPayment.Mul(rules.Extras.Rate))
	schedule := flatSchedule(p.Lease, perPeriod)
	total := perPeriod.Mul(decimal.NewFromInt(int64(p.Lease.TermMonths)))

	return &SchemeResult{
		Base:     p.Lease.MonthlyPayment.Mul(decimal.NewFromInt(int64(p.Lease.TermMonths))),
		Tax:      total,
		Schedule: schedule,
		Lines: []business.TaxLineItem{{
			Code:        business.LineMonthlyPayment,
			Description: fmt.Sprintf("General excise tax on %d lease payments", p.Lease.TermMonths),
			Amount:      p.Lease.MonthlyPayment,
			Taxable:     true,
			TaxAmount:   total,
		}},
		AppliedRule: fmt.Sprintf("SCHEME_GET_LEASE_%s", rules.Code),
	}, nil
}

// --- Privilege tax ---

// privilegeHandler taxes the dealer's privilege of selling: trade-in equity
// is exempt from the base, but rebates never reduce it regardless of
// source.
type privilegeHandler struct {
	fees *FeeResolver
}

func (h *privilegeHandler) ID() business.SchemeID { return business.SchemePrivilege }

func (h *privilegeHandler) CalculateRetail(rules *business.JurisdictionTaxRules, p params.TaxCalculationParams) (*SchemeResult, error) {
	base := p.Price
	lines := []business.TaxLineItem{{
		Code:             business.LineVehiclePrice,
		Description:      "Vehicle selling price",
		Amount:           p.Price,
		Taxable:          true,
		BaseContribution: p.Price,
	}}

	for _, accessory := range p.Accessories {
		ruling, err := h.fees.Resolve(rules, constants.FeeCodeAccessory, FeeContextRetail)
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
			base = base.Add(accessory.Amount)
		}
		lines = append(lines, line)
	}

	for _, fee := range p.Fees {
		ruling, err := h.fees.Resolve(rules, fee.Code, FeeContextRetail)
		if err != nil {
			return nil, err
		}
		line := business.TaxLineItem{
			Code:        business.LineFee + ":" + fee.Code,
			Description: fee.Description,
			Amount:      fee.Amount,
			Taxable:     ruling.Taxable,
			RuleNote:    ruling.Note,
		}
		if ruling.Taxable {
			line.BaseContribution = fee.Amount
			base = base.Add(fee.Amount)
		}
		lines = append(lines, line)
	}

	if tradeIn := tradeInValue(p); tradeIn.IsPositive() {
		base = base.Sub(tradeIn)
		lines = append(lines, business.TaxLineItem{
			Code:             business.LineTradeIn,
			Description:      "Trade-in credit",
			Amount:           tradeIn,
			BaseContribution: tradeIn.Neg(),
		})
	}

	for _, rebate := range p.Rebates {
		lines = append(lines, business.TaxLineItem{
			Code:        business.LineRebate + ":" + string(rebate.Source),
			Description: fmt.Sprintf("%s rebate", rebate.Source),
			Amount:      rebate.Amount,
			Taxable:     true,
			RuleNote:    "rebates do not reduce the privilege tax base",
		})
	}

	base = business.FloorZero(base)
	tax := business.RoundCents(base.Mul(rules.Extras.Rate))

	return &SchemeResult{
		Base:        base,
		Tax:         tax,
		Lines:       lines,
		AppliedRule: fmt.Sprintf("SCHEME_PRIVILEGE_%s", rules.Code),
	}, nil
}

// CalculateLease fails: every privilege-tax jurisdiction in the data taxes
// leases under its ordinary sales-tax pipeline, so a rule record routing a
// lease here is incomplete.
func (h *privilegeHandler) CalculateLease(rules *business.JurisdictionTaxRules, p params.TaxCalculationParams) (*SchemeResult, error) {
	return nil, fmt.Errorf("%w: privilege tax has no lease pipeline (jurisdiction %s)", ErrInvalidSchemeDispatch, rules.Code)
}

// --- IMF (infrastructure maintenance fee, capped) ---

// imfCappedHandler taxes price less trade-in at a flat rate, with the total
// bounded by a statutory cap no matter how high the uncapped figure runs.
type imfCappedHandler struct{}

func (h *imfCappedHandler) ID() business.SchemeID { return business.SchemeIMFCapped }

func (h *imfCappedHandler) CalculateRetail(rules *business.JurisdictionTaxRules, p params.TaxCalculationParams) (*SchemeResult, error) {
	tradeIn := tradeInValue(p)
	base := business.FloorZero(p.Price.Sub(tradeIn))
	uncapped := business.RoundCents(base.Mul(rules.Extras.Rate))
	tax := uncapped

	result := &SchemeResult{
		Base:        base,
		AppliedRule: fmt.Sprintf("SCHEME_IMF_%s", rules.Code),
		Lines: []business.TaxLineItem{{
			Code:             business.LineSchemeBase,
			Description:      "Infrastructure maintenance fee base",
			Amount:           base,
			Taxable:          true,
			BaseContribution: base,
		}},
	}
	if rules.Extras.CapAmount.IsPositive() && uncapped.GreaterThan(rules.Extras.CapAmount) {
		tax = rules.Extras.CapAmount
		result.Notes = append(result.Notes,
			fmt.Sprintf("uncapped fee %s capped at %s", uncapped.StringFixed(2), rules.Extras.CapAmount.StringFixed(2)))
	}
	result.Tax = tax
	result.Lines[0].TaxAmount = tax
	return result, nil
}

// CalculateLease fails: IMF jurisdictions tax leases under the standard
// monthly pipeline, not the capped fee.
func (h *imfCappedHandler) CalculateLease(rules *business.JurisdictionTaxRules, p params.TaxCalculationParams) (*SchemeResult, error) {
	return nil, fmt.Errorf("%w: capped IMF has no lease pipeline (jurisdiction %s)", ErrInvalidSchemeDispatch, rules.Code)
}

// flatSchedule builds a per-period schedule with the same tax every period.
func flatSchedule(lease *params.LeaseTerms, perPeriodTax decimal.Decimal) []business.PeriodTax {
	schedule := make([]business.PeriodTax, lease.TermMonths)
	for i := range schedule {
		schedule[i] = business.PeriodTax{
			Period:    i + 1,
			Payment:   lease.MonthlyPayment,
			TaxAmount: perPeriodTax,
		}
	}
	return schedule
}
