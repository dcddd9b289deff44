// Package ruleset loads versioned jurisdiction rule packs from YAML and
// validates them into immutable rule records. Packs are supplied by the tax
// research/admin tooling; a bundled pack ships embedded in the binary.
package ruleset

import (
	"bytes"
	"fmt"

	"github.com/dealerdesk/dealerdesk-tax/services"
	"github.com/dealerdesk/dealerdesk-tax/types/business"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ruleRecordDTO is the YAML shape of one jurisdiction record. Currency and
// rate fields are strings so they decode through decimal exactly instead of
// through float64.
type ruleRecordDTO struct {
	Code    string `yaml:"code"`
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Unusable marks a placeholder record whose research is not done.
	// Unusable records are rejected at load so they can never compute tax
	// as if fully researched.
	Unusable bool `yaml:"unusable"`

	TradeInPolicy struct {
		Kind string `yaml:"kind"`
		Cap  string `yaml:"cap"`
	} `yaml:"trade_in_policy"`

	RebateRules map[string]struct {
		Taxable bool   `yaml:"taxable"`
		Note    string `yaml:"note"`
	} `yaml:"rebate_rules"`

	DocFeeTaxable bool            `yaml:"doc_fee_taxable"`
	DocFeeCap     string          `yaml:"doc_fee_cap"`
	FeeTaxRules   []feeTaxRuleDTO `yaml:"fee_tax_rules"`

	GlobalProductFlags struct {
		TaxOnAccessories      bool `yaml:"tax_on_accessories"`
		TaxOnNegativeEquity   bool `yaml:"tax_on_negative_equity"`
		TaxOnServiceContracts bool `yaml:"tax_on_service_contracts"`
		TaxOnGap              bool `yaml:"tax_on_gap"`
	} `yaml:"global_product_flags"`

	VehicleTaxScheme        string `yaml:"vehicle_tax_scheme"`
	SpecialScheme           string `yaml:"special_scheme"`
	UsesLocalRateStack      bool   `yaml:"uses_local_rate_stack"`
	TradeInAppliedAfterFees bool   `yaml:"trade_in_applied_after_fees"`

	LeaseRules struct {
		Method                 string          `yaml:"method"`
		TaxCapReductionUpfront bool            `yaml:"tax_cap_reduction_upfront"`
		RebateBehavior         string          `yaml:"rebate_behavior"`
		DocFeeTaxability       string          `yaml:"doc_fee_taxability"`
		TradeInCredit          string          `yaml:"trade_in_credit"`
		NegativeEquityTaxable  bool            `yaml:"negative_equity_taxable"`
		FeeTaxRules            []feeTaxRuleDTO `yaml:"fee_tax_rules"`
		TaxFeesUpfront         bool            `yaml:"tax_fees_upfront"`
		SpecialScheme          string          `yaml:"special_scheme"`
	} `yaml:"lease_rules"`

	Reciprocity struct {
		Enabled      bool   `yaml:"enabled"`
		Scope        string `yaml:"scope"`
		CreditBasis  string `yaml:"credit_basis"`
		CapAtHomeTax bool   `yaml:"cap_at_home_tax"`
		RequireProof bool   `yaml:"require_proof"`
		Overrides    []struct {
			Origin         string `yaml:"origin"`
			MaxAgeDays     *int   `yaml:"max_age_days"`
			DisallowCredit bool   `yaml:"disallow_credit"`
			Note           string `yaml:"note"`
		} `yaml:"overrides"`
	} `yaml:"reciprocity"`

	Extras struct {
		Rate              string            `yaml:"rate"`
		LeaseRate         string            `yaml:"lease_rate"`
		CapAmount         string            `yaml:"cap_amount"`
		VehicleClassRates map[string]string `yaml:"vehicle_class_rates"`
		Confidence        string            `yaml:"confidence"`
	} `yaml:"extras"`
}

type feeTaxRuleDTO struct {
	Code    string `yaml:"code"`
	Taxable bool   `yaml:"taxable"`
	Note    string `yaml:"note"`
}

// Parse decodes and validates a single jurisdiction record document.
func Parse(data []byte) (business.JurisdictionTaxRules, error) {
	var dto ruleRecordDTO
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&dto); err != nil {
		return business.JurisdictionTaxRules{}, errors.Wrap(err, "decoding jurisdiction record")
	}

	if dto.Unusable {
		return business.JurisdictionTaxRules{}, errors.Wrapf(services.ErrInvalidRuleRecord,
			"jurisdiction %q is marked unusable (research incomplete)", dto.Code)
	}

	record, err := dto.toRecord()
	if err != nil {
		return business.JurisdictionTaxRules{}, errors.Wrapf(err, "jurisdiction %q", dto.Code)
	}

	if err := services.ValidateRuleRecord(&record); err != nil {
		return business.JurisdictionTaxRules{}, err
	}

	return record, nil
}

func (dto *ruleRecordDTO) toRecord() (business.JurisdictionTaxRules, error) {
	record := business.JurisdictionTaxRules{
		Code:                    dto.Code,
		Name:                    dto.Name,
		Version:                 dto.Version,
		DocFeeTaxable:           dto.DocFeeTaxable,
		VehicleTaxScheme:        business.VehicleTaxScheme(dto.VehicleTaxScheme),
		SpecialScheme:           business.SchemeID(dto.SpecialScheme),
		UsesLocalRateStack:      dto.UsesLocalRateStack,
		TradeInAppliedAfterFees: dto.TradeInAppliedAfterFees,
	}

	record.TradeInPolicy.Kind = business.TradeInPolicyKind(dto.TradeInPolicy.Kind)
	if dto.TradeInPolicy.Cap != "" {
		capAmount, err := parseAmount(dto.TradeInPolicy.Cap, "trade_in_policy.cap")
		if err != nil {
			return record, err
		}
		record.TradeInPolicy.Cap = capAmount
	}

	if dto.RebateRules != nil {
		record.RebateRules = make(map[business.RebateSource]business.RebateRule, len(dto.RebateRules))
		for source, rule := range dto.RebateRules {
			record.RebateRules[business.RebateSource(source)] = business.RebateRule{
				Taxable: rule.Taxable,
				Note:    rule.Note,
			}
		}
	}

	if dto.DocFeeCap != "" {
		capAmount, err := parseAmount(dto.DocFeeCap, "doc_fee_cap")
		if err != nil {
			return record, err
		}
		record.DocFeeCap = &capAmount
	}

	record.FeeTaxRules = toFeeRules(dto.FeeTaxRules)

	record.GlobalProductFlags = business.GlobalProductFlags{
		TaxOnAccessories:      dto.GlobalProductFlags.TaxOnAccessories,
		TaxOnNegativeEquity:   dto.GlobalProductFlags.TaxOnNegativeEquity,
		TaxOnServiceContracts: dto.GlobalProductFlags.TaxOnServiceContracts,
		TaxOnGap:              dto.GlobalProductFlags.TaxOnGap,
	}

	record.LeaseRules = business.LeaseRules{
		Method:                 business.LeaseMethod(dto.LeaseRules.Method),
		TaxCapReductionUpfront: dto.LeaseRules.TaxCapReductionUpfront,
		RebateBehavior:         business.LeaseRebateBehavior(dto.LeaseRules.RebateBehavior),
		DocFeeTaxability:       business.DocFeeTaxability(dto.LeaseRules.DocFeeTaxability),
		TradeInCredit:          business.LeaseTradeInCredit(dto.LeaseRules.TradeInCredit),
		NegativeEquityTaxable:  dto.LeaseRules.NegativeEquityTaxable,
		FeeTaxRules:            toFeeRules(dto.LeaseRules.FeeTaxRules),
		TaxFeesUpfront:         dto.LeaseRules.TaxFeesUpfront,
		SpecialScheme:          business.SchemeID(dto.LeaseRules.SpecialScheme),
	}

	record.Reciprocity = business.ReciprocityRules{
		Enabled:      dto.Reciprocity.Enabled,
		Scope:        business.ReciprocityScope(dto.Reciprocity.Scope),
		CreditBasis:  business.CreditBasis(dto.Reciprocity.CreditBasis),
		CapAtHomeTax: dto.Reciprocity.CapAtHomeTax,
		RequireProof: dto.Reciprocity.RequireProof,
	}
	for _, override := range dto.Reciprocity.Overrides {
		record.Reciprocity.Overrides = append(record.Reciprocity.Overrides, business.ReciprocityOverride{
			Origin:         override.Origin,
			MaxAgeDays:     override.MaxAgeDays,
			DisallowCredit: override.DisallowCredit,
			Note:           override.Note,
		})
	}

	var err error
	if record.Extras.Rate, err = optionalAmount(dto.Extras.Rate, "extras.rate"); err != nil {
		return record, err
	}
	if record.Extras.LeaseRate, err = optionalAmount(dto.Extras.LeaseRate, "extras.lease_rate"); err != nil {
		return record, err
	}
	if record.Extras.CapAmount, err = optionalAmount(dto.Extras.CapAmount, "extras.cap_amount"); err != nil {
		return record, err
	}
	if len(dto.Extras.VehicleClassRates) > 0 {
		record.Extras.VehicleClassRates = make(map[string]decimal.Decimal, len(dto.Extras.VehicleClassRates))
		for class, rate := range dto.Extras.VehicleClassRates {
			parsed, err := parseAmount(rate, fmt.Sprintf("extras.vehicle_class_rates.%s", class))
			if err != nil {
				return record, err
			}
			record.Extras.VehicleClassRates[class] = parsed
		}
	}
	record.Extras.Confidence = business.Confidence(dto.Extras.Confidence)

	return record, nil
}

func toFeeRules(dtos []feeTaxRuleDTO) []business.FeeTaxRule {
	if dtos == nil {
		return nil
	}
	rules := make([]business.FeeTaxRule, 0, len(dtos))
	for _, dto := range dtos {
		rules = append(rules, business.FeeTaxRule{Code: dto.Code, Taxable: dto.Taxable, Note: dto.Note})
	}
	return rules
}

func parseAmount(value, field string) (decimal.Decimal, error) {
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, errors.Wrapf(err, "parsing %s", field)
	}
	return parsed, nil
}

func optionalAmount(value, field string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	return parseAmount(value, field)
}
