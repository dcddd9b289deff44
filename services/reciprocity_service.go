package services

import (
	"fmt"

	"github.com/dealerdesk/dealerdesk-tax/constants"
	"github.com/dealerdesk/dealerdesk-tax/logger"
	"github.com/dealerdesk/dealerdesk-tax/types/api/params"
	"github.com/dealerdesk/dealerdesk-tax/types/business"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ReciprocityCredit is the resolved credit for tax already paid to another
// jurisdiction, with the audit trail of how it was (or was not) granted.
type ReciprocityCredit struct {
	Credit       decimal.Decimal
	AppliedRules []string
	Notes        []string
}

// ReciprocityService computes credit for tax paid to another jurisdiction.
// Gaps degrade gracefully: a failed proof requirement or an exceeded time
// window zeroes the credit with a note rather than failing the computation,
// because the home jurisdiction's tax is still owed either way.
type ReciprocityService struct {
	logger *zap.Logger
}

// NewReciprocityService creates a new reciprocity service
func NewReciprocityService() *ReciprocityService {
	return &ReciprocityService{logger: logger.Log}
}

// ComputeCredit resolves the credit against taxOwed for a prior payment.
// Overrides run first, in rule order: an origin-specific exception can
// disallow the credit outright or void it when the payment is older than
// the jurisdiction's window, even though the tax was genuinely paid.
func (s *ReciprocityService) ComputeCredit(
	rules *business.JurisdictionTaxRules,
	transactionType string,
	taxOwed decimal.Decimal,
	prior *params.PriorTaxPaid,
) ReciprocityCredit {
	if prior == nil || !prior.Amount.IsPositive() {
		return ReciprocityCredit{Credit: decimal.Zero}
	}

	recip := rules.Reciprocity
	if !recip.Enabled {
		return ReciprocityCredit{
			Credit: decimal.Zero,
			Notes:  []string{fmt.Sprintf("%s does not grant reciprocity credit", rules.Code)},
		}
	}

	if !scopeMatches(recip.Scope, transactionType) {
		return ReciprocityCredit{
			Credit: decimal.Zero,
			Notes:  []string{fmt.Sprintf("reciprocity scope %s excludes %s transactions", recip.Scope, transactionType)},
		}
	}

	for _, override := range recip.Overrides {
		if override.Origin != business.ReciprocityOverrideAll && override.Origin != prior.OriginJurisdiction {
			continue
		}
		if override.DisallowCredit {
			return ReciprocityCredit{
				Credit:       decimal.Zero,
				AppliedRules: []string{fmt.Sprintf("RECIPROCITY_DISALLOWED_%s", override.Origin)},
				Notes:        []string{noteOrDefault(override.Note, fmt.Sprintf("credit disallowed for tax paid to %s", prior.OriginJurisdiction))},
			}
		}
		if override.MaxAgeDays != nil {
			ageDays := int(prior.RegistrationDate.Sub(prior.PaidDate).Hours() / 24)
			if ageDays > *override.MaxAgeDays {
				return ReciprocityCredit{
					Credit:       decimal.Zero,
					AppliedRules: []string{fmt.Sprintf("RECIPROCITY_WINDOW_EXPIRED_%s", override.Origin)},
					Notes: []string{fmt.Sprintf("tax paid %d days before registration exceeds the %d-day window",
						ageDays, *override.MaxAgeDays)},
				}
			}
		}
	}

	// Fail closed: a claim without proof earns nothing, it does not block
	// the computation.
	if recip.RequireProof && !prior.ProofProvided {
		s.logger.Info("Reciprocity proof missing, credit zeroed",
			zap.String("jurisdiction", rules.Code),
			zap.String("origin", prior.OriginJurisdiction))
		return ReciprocityCredit{
			Credit:       decimal.Zero,
			AppliedRules: []string{"RECIPROCITY_PROOF_MISSING"},
			Notes:        []string{"proof of prior tax payment required but not provided"},
		}
	}

	credit := prior.Amount
	notes := []string{fmt.Sprintf("credit for tax paid to %s", prior.OriginJurisdiction)}
	if recip.CapAtHomeTax && credit.GreaterThan(taxOwed) {
		credit = taxOwed
		notes = append(notes, "credit capped at home jurisdiction tax")
	}

	return ReciprocityCredit{
		Credit:       credit,
		AppliedRules: []string{fmt.Sprintf("RECIPROCITY_CREDIT_%s", prior.OriginJurisdiction)},
		Notes:        notes,
	}
}

func scopeMatches(scope business.ReciprocityScope, transactionType string) bool {
	switch scope {
	case business.ReciprocityBoth:
		return true
	case business.ReciprocityRetailOnly:
		return transactionType == constants.TransactionTypeRetail
	case business.ReciprocityLeaseOnly:
		return transactionType == constants.TransactionTypeLease
	default:
		return false
	}
}

func noteOrDefault(note, fallback string) string {
	if note != "" {
		return note
	}
	return fallback
}
