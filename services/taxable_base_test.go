package services_test

import (
	"testing"

	"github.com/dealerdesk/dealerdesk-tax/services"
	"github.com/dealerdesk/dealerdesk-tax/types/api/params"
	"github.com/dealerdesk/dealerdesk-tax/types/business"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBaseResolver() *services.TaxableBaseResolver {
	return services.NewTaxableBaseResolver(services.NewFeeResolver())
}

func TestTaxableBaseResolver_TradeInPolicies(t *testing.T) {
	resolver := newBaseResolver()

	tests := []struct {
		name     string
		policy   business.TradeInPolicy
		tradeIn  string
		wantBase string
	}{
		{
			name:     "full credit",
			policy:   business.TradeInPolicy{Kind: business.TradeInFull},
			tradeIn:  "10000",
			wantBase: "20000",
		},
		{
			name:     "no credit",
			policy:   business.TradeInPolicy{Kind: business.TradeInNone},
			tradeIn:  "10000",
			wantBase: "30000",
		},
		{
			name:     "capped credit",
			policy:   business.TradeInPolicy{Kind: business.TradeInCapped, Cap: dec("10000")},
			tradeIn:  "15000",
			wantBase: "20000",
		},
		{
			name:     "capped credit below cap",
			policy:   business.TradeInPolicy{Kind: business.TradeInCapped, Cap: dec("10000")},
			tradeIn:  "6000",
			wantBase: "24000",
		},
		{
			name:     "full credit exceeding price floors at zero",
			policy:   business.TradeInPolicy{Kind: business.TradeInFull},
			tradeIn:  "40000",
			wantBase: "0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := baselineRules()
			rules.TradeInPolicy = tt.policy

			computation, err := resolver.Resolve(&rules, params.TaxCalculationParams{
				Price:   dec("30000"),
				TradeIn: &params.TradeIn{Value: dec(tt.tradeIn)},
			})

			require.NoError(t, err)
			assert.True(t, dec(tt.wantBase).Equal(computation.Base),
				"base = %s, want %s", computation.Base, tt.wantBase)
		})
	}
}

// The full trade-in identity: base(price, tradeIn) == max(base(price, 0) − tradeIn, 0).
func TestTaxableBaseResolver_FullTradeInIdentity(t *testing.T) {
	resolver := newBaseResolver()
	rules := baselineRules()

	prices := []string{"5000", "18500.50", "30000", "120000"}
	tradeIns := []string{"0", "2500", "18500.50", "95000"}

	for _, price := range prices {
		for _, tradeIn := range tradeIns {
			with, err := resolver.Resolve(&rules, params.TaxCalculationParams{
				Price:   dec(price),
				TradeIn: &params.TradeIn{Value: dec(tradeIn)},
			})
			require.NoError(t, err)

			without, err := resolver.Resolve(&rules, params.TaxCalculationParams{Price: dec(price)})
			require.NoError(t, err)

			want := business.FloorZero(without.Base.Sub(dec(tradeIn)))
			assert.True(t, want.Equal(with.Base),
				"price %s trade-in %s: base = %s, want %s", price, tradeIn, with.Base, want)
		}
	}
}

func TestTaxableBaseResolver_RebatesAndFees(t *testing.T) {
	resolver := newBaseResolver()

	t.Run("only non-taxable rebates reduce the base", func(t *testing.T) {
		rules := baselineRules()
		rules.RebateRules[business.RebateManufacturer] = business.RebateRule{Taxable: true}
		rules.RebateRules[business.RebateDealer] = business.RebateRule{Taxable: false}

		computation, err := resolver.Resolve(&rules, params.TaxCalculationParams{
			Price: dec("30000"),
			Rebates: []params.RebateInput{
				{Source: business.RebateManufacturer, Amount: dec("3000")},
				{Source: business.RebateDealer, Amount: dec("1000")},
			},
		})

		require.NoError(t, err)
		assert.True(t, dec("29000").Equal(computation.Base), "base = %s", computation.Base)
	})

	t.Run("doc fee cap bounds only the fee's base contribution", func(t *testing.T) {
		rules := baselineRules()
		docCap := dec("100")
		rules.DocFeeCap = &docCap

		computation, err := resolver.Resolve(&rules, params.TaxCalculationParams{
			Price: dec("30000"),
			Fees:  []params.FeeInput{{Code: "DOC", Description: "Doc fee", Amount: dec("399")}},
		})

		require.NoError(t, err)
		assert.True(t, dec("30100").Equal(computation.Base), "base = %s", computation.Base)
	})

	t.Run("non-taxable fee contributes nothing", func(t *testing.T) {
		rules := baselineRules()

		computation, err := resolver.Resolve(&rules, params.TaxCalculationParams{
			Price: dec("30000"),
			Fees:  []params.FeeInput{{Code: "TITLE", Description: "Title", Amount: dec("55")}},
		})

		require.NoError(t, err)
		assert.True(t, dec("30000").Equal(computation.Base), "base = %s", computation.Base)
	})

	t.Run("unresolved fee code fails the computation", func(t *testing.T) {
		rules := baselineRules()

		_, err := resolver.Resolve(&rules, params.TaxCalculationParams{
			Price: dec("30000"),
			Fees:  []params.FeeInput{{Code: "ETCH", Amount: dec("199")}},
		})

		assert.ErrorIs(t, err, services.ErrUnresolvedFeeCode)
	})
}

// Composition order matters when the trade-in credit exceeds the price:
// the majority order wipes out only the price, while the fee-first order
// lets the excess credit absorb taxable fees too.
func TestTaxableBaseResolver_CompositionOrder(t *testing.T) {
	resolver := newBaseResolver()

	input := params.TaxCalculationParams{
		Price:   dec("20000"),
		Fees:    []params.FeeInput{{Code: "DOC", Description: "Doc fee", Amount: dec("500")}},
		TradeIn: &params.TradeIn{Value: dec("20400")},
	}

	t.Run("majority order applies trade-in to price alone", func(t *testing.T) {
		rules := baselineRules()
		rules.TradeInAppliedAfterFees = false

		computation, err := resolver.Resolve(&rules, input)
		require.NoError(t, err)
		assert.True(t, dec("500").Equal(computation.Base), "base = %s", computation.Base)
	})

	t.Run("fee-first order lets the credit absorb fees", func(t *testing.T) {
		rules := baselineRules()
		rules.TradeInAppliedAfterFees = true

		computation, err := resolver.Resolve(&rules, input)
		require.NoError(t, err)
		assert.True(t, dec("100").Equal(computation.Base), "base = %s", computation.Base)
	})
}

func TestTaxableBaseResolver_NegativeEquity(t *testing.T) {
	resolver := newBaseResolver()

	tests := []struct {
		name     string
		taxed    bool
		wantBase string
	}{
		{name: "taxed when flagged", taxed: true, wantBase: "33000"},
		{name: "ignored when not flagged", taxed: false, wantBase: "30000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := baselineRules()
			rules.GlobalProductFlags.TaxOnNegativeEquity = tt.taxed

			computation, err := resolver.Resolve(&rules, params.TaxCalculationParams{
				Price:          dec("30000"),
				NegativeEquity: dec("3000"),
			})

			require.NoError(t, err)
			assert.True(t, dec(tt.wantBase).Equal(computation.Base), "base = %s", computation.Base)
		})
	}
}

func TestTaxableBaseResolver_LineBreakdown(t *testing.T) {
	resolver := newBaseResolver()
	rules := baselineRules()

	computation, err := resolver.Resolve(&rules, params.TaxCalculationParams{
		Price:       dec("30000"),
		Accessories: []params.AccessoryInput{{Description: "Bed liner", Amount: dec("450")}},
		Fees:        []params.FeeInput{{Code: "DOC", Description: "Doc fee", Amount: dec("399")}},
		TradeIn:     &params.TradeIn{Value: dec("10000")},
		Rebates:     []params.RebateInput{{Source: business.RebateManufacturer, Amount: dec("2000")}},
	})

	require.NoError(t, err)
	require.Len(t, computation.Lines, 5)

	byCode := make(map[string]business.TaxLineItem, len(computation.Lines))
	for _, line := range computation.Lines {
		byCode[line.Code] = line
	}

	assert.True(t, byCode["VEHICLE_PRICE"].Taxable)
	assert.True(t, byCode["FEE:DOC"].Taxable)
	assert.True(t, dec("-10000").Equal(byCode["TRADE_IN"].BaseContribution))
	assert.True(t, dec("-2000").Equal(byCode["REBATE:manufacturer"].BaseContribution))
	assert.True(t, decimal.Zero.Equal(byCode["TRADE_IN"].TaxAmount))
}
