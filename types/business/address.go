package business

import "github.com/shopspring/decimal"

// Location identifies where a buyer takes delivery for local rate lookup
type Location struct {
	Zip    string `json:"zip"`
	County string `json:"county,omitempty"`
	City   string `json:"city,omitempty"`
	State  string `json:"state"`
}

// RateComponent is a single local taxing authority's contribution to the
// combined rate, e.g. a county or transit district levy.
type RateComponent struct {
	Name string          `json:"name"`
	Rate decimal.Decimal `json:"rate"`
}

// RateStack is the resolved state plus local rate composition for a
// location. Produced by the jurisdiction rate resolver collaborator.
type RateStack struct {
	StateRate       decimal.Decimal `json:"state_rate"`
	LocalComponents []RateComponent `json:"local_components"`
}

// Combined returns the full stacked rate (state plus all local components).
func (s RateStack) Combined() decimal.Decimal {
	total := s.StateRate
	for _, c := range s.LocalComponents {
		total = total.Add(c.Rate)
	}
	return total
}

// LocalTotal returns the sum of the local components only.
func (s RateStack) LocalTotal() decimal.Decimal {
	total := decimal.Zero
	for _, c := range s.LocalComponents {
		total = total.Add(c.Rate)
	}
	return total
}
