package services_test

import (
	"github.com/dealerdesk/dealerdesk-tax/logger"
	"github.com/dealerdesk/dealerdesk-tax/types/business"
	"github.com/shopspring/decimal"
)

func init() {
	logger.InitLogger("test")
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

// baselineRules is a plain stacked-rate jurisdiction: full trade-in credit,
// manufacturer rebates reduce the base, doc fee taxable, everything else
// conventional. Tests override individual fields per case.
func baselineRules() business.JurisdictionTaxRules {
	return business.JurisdictionTaxRules{
		Code:    "US-XX",
		Name:    "Test State",
		Version: "2025.2",
		TradeInPolicy: business.TradeInPolicy{
			Kind: business.TradeInFull,
		},
		RebateRules: map[business.RebateSource]business.RebateRule{
			business.RebateManufacturer: {Taxable: false},
			business.RebateDealer:       {Taxable: false},
		},
		DocFeeTaxable: true,
		FeeTaxRules: []business.FeeTaxRule{
			{Code: "TITLE", Taxable: false},
			{Code: "REGISTRATION", Taxable: false},
		},
		GlobalProductFlags: business.GlobalProductFlags{
			TaxOnAccessories:      true,
			TaxOnNegativeEquity:   true,
			TaxOnServiceContracts: true,
			TaxOnGap:              false,
		},
		VehicleTaxScheme:   business.SchemeStatePlusLocal,
		UsesLocalRateStack: true,
		LeaseRules: business.LeaseRules{
			Method:                 business.LeaseMonthly,
			TaxCapReductionUpfront: true,
			RebateBehavior:         business.LeaseRebateFollowRetail,
			DocFeeTaxability:       business.DocFeeFollowRetail,
			TradeInCredit:          business.LeaseTradeInFull,
			NegativeEquityTaxable:  true,
			FeeTaxRules:            []business.FeeTaxRule{},
			TaxFeesUpfront:         true,
		},
		Reciprocity: business.ReciprocityRules{
			Enabled:      true,
			Scope:        business.ReciprocityBoth,
			CreditBasis:  business.CreditBasisTaxPaid,
			CapAtHomeTax: true,
			RequireProof: true,
		},
		Extras: business.JurisdictionExtras{
			Confidence: business.ConfidenceVerified,
		},
	}
}

// flatRules is a state_only jurisdiction at the given flat rate.
func flatRules(rate string) business.JurisdictionTaxRules {
	rules := baselineRules()
	rules.VehicleTaxScheme = business.SchemeStateOnly
	rules.UsesLocalRateStack = false
	rules.Extras.Rate = dec(rate)
	return rules
}

func stack(stateRate string, locals ...business.RateComponent) business.RateStack {
	return business.RateStack{
		StateRate:       dec(stateRate),
		LocalComponents: locals,
	}
}
