package services_test

import (
	"testing"

	"github.com/dealerdesk/dealerdesk-tax/services"
	"github.com/dealerdesk/dealerdesk-tax/types/business"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleRegistry_Lookup(t *testing.T) {
	registry, err := services.NewRuleRegistry([]business.JurisdictionTaxRules{
		baselineRules(),
		flatRules("0.0625"),
	})
	require.Error(t, err, "both helpers share a code, duplicate must be rejected")

	second := flatRules("0.0625")
	second.Code = "US-YY"

	registry, err = services.NewRuleRegistry([]business.JurisdictionTaxRules{
		baselineRules(),
		second,
	})
	require.NoError(t, err)

	record, err := registry.Lookup("US-XX")
	require.NoError(t, err)
	assert.Equal(t, "US-XX", record.Code)

	_, err = registry.Lookup("US-ZZ")
	assert.ErrorIs(t, err, services.ErrUnknownJurisdiction)

	assert.Equal(t, []string{"US-XX", "US-YY"}, registry.Codes())
}

func TestRuleRegistry_NeedsReview(t *testing.T) {
	flagged := flatRules("0.05")
	flagged.Code = "US-YY"
	flagged.Extras.Confidence = business.ConfidenceNeedsReview

	registry, err := services.NewRuleRegistry([]business.JurisdictionTaxRules{
		baselineRules(),
		flagged,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"US-YY"}, registry.NeedsReview())
}

func TestValidateRuleRecord(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*business.JurisdictionTaxRules)
		wantErr bool
	}{
		{
			name:   "baseline record is valid",
			mutate: func(r *business.JurisdictionTaxRules) {},
		},
		{
			name:    "missing code",
			mutate:  func(r *business.JurisdictionTaxRules) { r.Code = "" },
			wantErr: true,
		},
		{
			name:    "missing version",
			mutate:  func(r *business.JurisdictionTaxRules) { r.Version = "" },
			wantErr: true,
		},
		{
			name:    "unknown trade-in policy",
			mutate:  func(r *business.JurisdictionTaxRules) { r.TradeInPolicy.Kind = "generous" },
			wantErr: true,
		},
		{
			name: "capped trade-in without a cap",
			mutate: func(r *business.JurisdictionTaxRules) {
				r.TradeInPolicy = business.TradeInPolicy{Kind: business.TradeInCapped}
			},
			wantErr: true,
		},
		{
			name: "capped trade-in with a positive cap",
			mutate: func(r *business.JurisdictionTaxRules) {
				r.TradeInPolicy = business.TradeInPolicy{Kind: business.TradeInCapped, Cap: dec("10000")}
			},
		},
		{
			name: "missing dealer rebate rule",
			mutate: func(r *business.JurisdictionTaxRules) {
				delete(r.RebateRules, business.RebateDealer)
			},
			wantErr: true,
		},
		{
			name:    "nil fee tax rules rejected",
			mutate:  func(r *business.JurisdictionTaxRules) { r.FeeTaxRules = nil },
			wantErr: true,
		},
		{
			name:   "empty fee tax rules accepted",
			mutate: func(r *business.JurisdictionTaxRules) { r.FeeTaxRules = []business.FeeTaxRule{} },
		},
		{
			name: "non-positive doc fee cap",
			mutate: func(r *business.JurisdictionTaxRules) {
				zero := decimal.Zero
				r.DocFeeCap = &zero
			},
			wantErr: true,
		},
		{
			name: "state_only without a flat rate",
			mutate: func(r *business.JurisdictionTaxRules) {
				r.VehicleTaxScheme = business.SchemeStateOnly
				r.Extras.Rate = decimal.Zero
			},
			wantErr: true,
		},
		{
			name: "stacked scheme without a rate stack",
			mutate: func(r *business.JurisdictionTaxRules) {
				r.UsesLocalRateStack = false
			},
			wantErr: true,
		},
		{
			name: "special scheme with unknown id",
			mutate: func(r *business.JurisdictionTaxRules) {
				r.VehicleTaxScheme = business.SchemeSpecial
				r.SpecialScheme = "wheel_tax"
			},
			wantErr: true,
		},
		{
			name: "special scheme with known id",
			mutate: func(r *business.JurisdictionTaxRules) {
				r.VehicleTaxScheme = business.SchemeSpecial
				r.SpecialScheme = business.SchemeTAVT
				r.Extras.Rate = dec("0.07")
				r.LeaseRules.SpecialScheme = business.SchemeTAVT
			},
		},
		{
			name: "special scheme with a lease rate instead of a lease scheme",
			mutate: func(r *business.JurisdictionTaxRules) {
				r.VehicleTaxScheme = business.SchemeSpecial
				r.SpecialScheme = business.SchemeIMFCapped
				r.Extras.Rate = dec("0.05")
				r.Extras.LeaseRate = dec("0.05")
			},
		},
		{
			name: "special scheme that routes leases nowhere",
			mutate: func(r *business.JurisdictionTaxRules) {
				r.VehicleTaxScheme = business.SchemeSpecial
				r.SpecialScheme = business.SchemeTAVT
				r.Extras.Rate = dec("0.07")
				r.LeaseRules.SpecialScheme = ""
				r.Extras.LeaseRate = decimal.Zero
			},
			wantErr: true,
		},
		{
			name:    "unknown lease method",
			mutate:  func(r *business.JurisdictionTaxRules) { r.LeaseRules.Method = "quarterly" },
			wantErr: true,
		},
		{
			name:    "unknown lease trade-in credit",
			mutate:  func(r *business.JurisdictionTaxRules) { r.LeaseRules.TradeInCredit = "partial" },
			wantErr: true,
		},
		{
			name:    "nil lease fee tax rules rejected",
			mutate:  func(r *business.JurisdictionTaxRules) { r.LeaseRules.FeeTaxRules = nil },
			wantErr: true,
		},
		{
			name:    "unknown reciprocity scope",
			mutate:  func(r *business.JurisdictionTaxRules) { r.Reciprocity.Scope = "export_only" },
			wantErr: true,
		},
		{
			name: "disabled reciprocity skips sub-validation",
			mutate: func(r *business.JurisdictionTaxRules) {
				r.Reciprocity = business.ReciprocityRules{Enabled: false}
			},
		},
		{
			name: "reciprocity override without origin",
			mutate: func(r *business.JurisdictionTaxRules) {
				r.Reciprocity.Overrides = []business.ReciprocityOverride{{DisallowCredit: true}}
			},
			wantErr: true,
		},
		{
			name: "reciprocity override with non-positive window",
			mutate: func(r *business.JurisdictionTaxRules) {
				days := 0
				r.Reciprocity.Overrides = []business.ReciprocityOverride{{Origin: "US-OR", MaxAgeDays: &days}}
			},
			wantErr: true,
		},
		{
			name:    "unknown confidence",
			mutate:  func(r *business.JurisdictionTaxRules) { r.Extras.Confidence = "probably_fine" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := baselineRules()
			tt.mutate(&record)

			err := services.ValidateRuleRecord(&record)

			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, services.ErrInvalidRuleRecord)
				return
			}
			assert.NoError(t, err)
		})
	}
}
