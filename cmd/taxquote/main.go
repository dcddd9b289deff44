// taxquote computes a vehicle tax quote for a deal described in a JSON file,
// using the bundled jurisdiction rule pack. Stacked-rate jurisdictions need
// the local rate components supplied via -state-rate/-local-rate because the
// binary carries no rate lookup service.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dealerdesk/dealerdesk-tax/logger"
	"github.com/dealerdesk/dealerdesk-tax/ruleset"
	"github.com/dealerdesk/dealerdesk-tax/services"
	"github.com/dealerdesk/dealerdesk-tax/types/api/params"
	"github.com/dealerdesk/dealerdesk-tax/types/business"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// flagRateResolver serves one rate stack from the command line for every
// location.
type flagRateResolver struct {
	stack business.RateStack
}

func (r *flagRateResolver) ResolveRates(ctx context.Context, location business.Location) (business.RateStack, error) {
	return r.stack, nil
}

func main() {
	dealPath := flag.String("deal", "", "path to the deal JSON file (required)")
	stateRate := flag.String("state-rate", "0", "state rate for stacked jurisdictions, e.g. 0.06")
	localRate := flag.String("local-rate", "0", "combined local rate for stacked jurisdictions, e.g. 0.021")
	listJurisdictions := flag.Bool("list", false, "list bundled jurisdictions and exit")
	flag.Parse()

	logger.InitLogger(os.Getenv("STAGE"))

	registry, err := ruleset.BundledRegistry()
	if err != nil {
		log.Fatalf("loading bundled rule pack: %v", err)
	}

	if *listJurisdictions {
		for _, code := range registry.Codes() {
			fmt.Println(code)
		}
		if review := registry.NeedsReview(); len(review) > 0 {
			fmt.Printf("needs review: %v\n", review)
		}
		return
	}

	if *dealPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	data, err := os.ReadFile(*dealPath)
	if err != nil {
		log.Fatalf("reading deal file: %v", err)
	}
	var deal params.TaxCalculationParams
	if err := json.Unmarshal(data, &deal); err != nil {
		log.Fatalf("decoding deal file: %v", err)
	}

	resolver := &flagRateResolver{stack: business.RateStack{
		StateRate: mustRate(*stateRate, "state-rate"),
	}}
	if local := mustRate(*localRate, "local-rate"); local.IsPositive() {
		resolver.stack.LocalComponents = []business.RateComponent{{Name: "local", Rate: local}}
	}

	service := services.NewTaxService(registry, resolver)
	result, err := service.CalculateTax(context.Background(), deal)
	if err != nil {
		logger.Error("Tax computation failed", zap.Error(err))
		os.Exit(1)
	}

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("encoding result: %v", err)
	}
	fmt.Println(string(output))
}

func mustRate(value, name string) decimal.Decimal {
	rate, err := decimal.NewFromString(value)
	if err != nil {
		log.Fatalf("invalid -%s %q: %v", name, value, err)
	}
	return rate
}
