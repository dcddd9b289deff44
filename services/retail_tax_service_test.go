package services_test

import (
	"context"
	"testing"

	"github.com/dealerdesk/dealerdesk-tax/mocks"
	"github.com/dealerdesk/dealerdesk-tax/services"
	"github.com/dealerdesk/dealerdesk-tax/types/api/params"
	"github.com/dealerdesk/dealerdesk-tax/types/business"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newRetailService(rateResolver *mocks.MockRateResolver) *services.RetailTaxService {
	fees := services.NewFeeResolver()
	return services.NewRetailTaxService(
		services.NewTaxableBaseResolver(fees),
		services.NewSchemeRegistry(fees),
		rateResolver,
	)
}

func TestRetailTaxService_StackedRate(t *testing.T) {
	ctrl := gomock.NewController(t)
	rateResolver := mocks.NewMockRateResolver(ctrl)
	service := newRetailService(rateResolver)

	location := business.Location{Zip: "95814", County: "Sacramento", State: "CA"}
	rateResolver.EXPECT().
		ResolveRates(gomock.Any(), location).
		Return(stack("0.06",
			business.RateComponent{Name: "county", Rate: dec("0.0125")},
			business.RateComponent{Name: "district", Rate: dec("0.0085")},
		), nil)

	rules := baselineRules()
	outcome, err := service.Calculate(context.Background(), &rules, params.TaxCalculationParams{
		Jurisdiction: "US-XX",
		Location:     &location,
		Price:        dec("30000"),
		TradeIn:      &params.TradeIn{Value: dec("10000")},
	})

	require.NoError(t, err)
	assert.True(t, dec("20000").Equal(outcome.Base), "base = %s", outcome.Base)
	assert.True(t, dec("1620").Equal(outcome.Tax), "tax = %s", outcome.Tax)
	assert.Equal(t, []string{"STANDARD_TAX_US-XX"}, outcome.AppliedRules)
	assert.Contains(t, outcome.Notes, "state rate 0.06")
}

func TestRetailTaxService_StackedRateRequiresLocation(t *testing.T) {
	ctrl := gomock.NewController(t)
	service := newRetailService(mocks.NewMockRateResolver(ctrl))

	rules := baselineRules()
	_, err := service.Calculate(context.Background(), &rules, params.TaxCalculationParams{
		Jurisdiction: "US-XX",
		Price:        dec("30000"),
	})

	assert.ErrorIs(t, err, services.ErrMalformedTransaction)
}

func TestRetailTaxService_FlatRate(t *testing.T) {
	ctrl := gomock.NewController(t)
	service := newRetailService(mocks.NewMockRateResolver(ctrl))

	rules := flatRules("0.0625")
	outcome, err := service.Calculate(context.Background(), &rules, params.TaxCalculationParams{
		Jurisdiction: "US-XX",
		Price:        dec("24000"),
	})

	require.NoError(t, err)
	assert.True(t, dec("1500").Equal(outcome.Tax), "tax = %s", outcome.Tax)
}

func TestRetailTaxService_SpecialSchemes(t *testing.T) {
	ctrl := gomock.NewController(t)
	service := newRetailService(mocks.NewMockRateResolver(ctrl))

	t.Run("capped IMF stops at the statutory cap", func(t *testing.T) {
		rules := baselineRules()
		rules.VehicleTaxScheme = business.SchemeSpecial
		rules.SpecialScheme = business.SchemeIMFCapped
		rules.Extras.Rate = dec("0.05")
		rules.Extras.CapAmount = dec("500")

		outcome, err := service.Calculate(context.Background(), &rules, params.TaxCalculationParams{
			Jurisdiction: "US-XX",
			Price:        dec("20000"),
		})

		require.NoError(t, err)
		// Uncapped the fee would be 1000.
		assert.True(t, dec("500").Equal(outcome.Tax), "tax = %s", outcome.Tax)
		assert.Equal(t, []string{"SCHEME_IMF_US-XX"}, outcome.AppliedRules)
		require.Len(t, outcome.Notes, 1)
		assert.Contains(t, outcome.Notes[0], "capped at 500.00")
	})

	t.Run("capped IMF below the cap is untouched", func(t *testing.T) {
		rules := baselineRules()
		rules.VehicleTaxScheme = business.SchemeSpecial
		rules.SpecialScheme = business.SchemeIMFCapped
		rules.Extras.Rate = dec("0.05")
		rules.Extras.CapAmount = dec("500")

		outcome, err := service.Calculate(context.Background(), &rules, params.TaxCalculationParams{
			Jurisdiction: "US-XX",
			Price:        dec("8000"),
		})

		require.NoError(t, err)
		assert.True(t, dec("400").Equal(outcome.Tax), "tax = %s", outcome.Tax)
		assert.Empty(t, outcome.Notes)
	})

	t.Run("privilege tax ignores rebates but honors trade-in", func(t *testing.T) {
		rules := baselineRules()
		rules.VehicleTaxScheme = business.SchemeSpecial
		rules.SpecialScheme = business.SchemePrivilege
		rules.Extras.Rate = dec("0.07")

		outcome, err := service.Calculate(context.Background(), &rules, params.TaxCalculationParams{
			Jurisdiction: "US-XX",
			Price:        dec("25000"),
			TradeIn:      &params.TradeIn{Value: dec("5000")},
			Rebates: []params.RebateInput{
				{Source: business.RebateManufacturer, Amount: dec("3000")},
			},
		})

		require.NoError(t, err)
		assert.True(t, dec("20000").Equal(outcome.Base), "base = %s", outcome.Base)
		assert.True(t, dec("1400").Equal(outcome.Tax), "tax = %s", outcome.Tax)

		var rebateLine *business.TaxLineItem
		for i := range outcome.Lines {
			if outcome.Lines[i].Code == "REBATE:manufacturer" {
				rebateLine = &outcome.Lines[i]
			}
		}
		require.NotNil(t, rebateLine)
		assert.True(t, rebateLine.BaseContribution.IsZero())
		assert.Equal(t, "rebates do not reduce the privilege tax base", rebateLine.RuleNote)
	})

	t.Run("privilege tax includes taxable accessories in the base", func(t *testing.T) {
		rules := baselineRules()
		rules.VehicleTaxScheme = business.SchemeSpecial
		rules.SpecialScheme = business.SchemePrivilege
		rules.Extras.Rate = dec("0.07")

		outcome, err := service.Calculate(context.Background(), &rules, params.TaxCalculationParams{
			Jurisdiction: "US-XX",
			Price:        dec("25000"),
			Accessories: []params.AccessoryInput{
				{Description: "Roof rack", Amount: dec("1000")},
			},
		})

		require.NoError(t, err)
		assert.True(t, dec("26000").Equal(outcome.Base), "base = %s", outcome.Base)
		assert.True(t, dec("1820").Equal(outcome.Tax), "tax = %s", outcome.Tax)

		var accessoryLine *business.TaxLineItem
		for i := range outcome.Lines {
			if outcome.Lines[i].Code == business.LineAccessory {
				accessoryLine = &outcome.Lines[i]
			}
		}
		require.NotNil(t, accessoryLine)
		assert.True(t, dec("1000").Equal(accessoryLine.BaseContribution))
	})

	t.Run("TAVT uses the greater of price and assessed value", func(t *testing.T) {
		rules := baselineRules()
		rules.VehicleTaxScheme = business.SchemeSpecial
		rules.SpecialScheme = business.SchemeTAVT
		rules.Extras.Rate = dec("0.07")

		assessed := dec("32000")
		outcome, err := service.Calculate(context.Background(), &rules, params.TaxCalculationParams{
			Jurisdiction:  "US-XX",
			Price:         dec("30000"),
			AssessedValue: &assessed,
			TradeIn:       &params.TradeIn{Value: dec("10000")},
		})

		require.NoError(t, err)
		assert.True(t, dec("22000").Equal(outcome.Base), "base = %s", outcome.Base)
		assert.True(t, dec("1540").Equal(outcome.Tax), "tax = %s", outcome.Tax)
		assert.Contains(t, outcome.Notes, "assessed value exceeded selling price")
	})

	t.Run("TAVT ignores fees entirely", func(t *testing.T) {
		rules := baselineRules()
		rules.VehicleTaxScheme = business.SchemeSpecial
		rules.SpecialScheme = business.SchemeTAVT
		rules.Extras.Rate = dec("0.07")

		outcome, err := service.Calculate(context.Background(), &rules, params.TaxCalculationParams{
			Jurisdiction: "US-XX",
			Price:        dec("30000"),
			Fees:         []params.FeeInput{{Code: "DOC", Amount: dec("599")}},
		})

		require.NoError(t, err)
		assert.True(t, dec("30000").Equal(outcome.Base), "base = %s", outcome.Base)
	})

	t.Run("HUT picks the vehicle class rate and caps the total", func(t *testing.T) {
		rules := baselineRules()
		rules.VehicleTaxScheme = business.SchemeSpecial
		rules.SpecialScheme = business.SchemeHUT
		rules.Extras.VehicleClassRates = map[string]decimal.Decimal{
			"default":    dec("0.03"),
			"commercial": dec("0.03"),
		}
		rules.Extras.CapAmount = dec("2000")

		outcome, err := service.Calculate(context.Background(), &rules, params.TaxCalculationParams{
			Jurisdiction: "US-XX",
			Price:        dec("90000"),
			VehicleClass: "commercial",
		})

		require.NoError(t, err)
		assert.True(t, dec("2000").Equal(outcome.Tax), "tax = %s", outcome.Tax)
		require.Len(t, outcome.Notes, 1)
		assert.Contains(t, outcome.Notes[0], "capped at 2000.00")
	})

	t.Run("GET pulls every fee into the gross receipts base", func(t *testing.T) {
		rules := baselineRules()
		rules.VehicleTaxScheme = business.SchemeSpecial
		rules.SpecialScheme = business.SchemeGET
		rules.Extras.Rate = dec("0.04")

		outcome, err := service.Calculate(context.Background(), &rules, params.TaxCalculationParams{
			Jurisdiction: "US-XX",
			Price:        dec("20000"),
			Fees:         []params.FeeInput{{Code: "TITLE", Amount: dec("50")}},
			Accessories:  []params.AccessoryInput{{Description: "Roof rack", Amount: dec("450")}},
		})

		require.NoError(t, err)
		// TITLE is exempt under the standard pipeline but not under GET.
		assert.True(t, dec("20500").Equal(outcome.Base), "base = %s", outcome.Base)
		assert.True(t, dec("820").Equal(outcome.Tax), "tax = %s", outcome.Tax)
	})
}
