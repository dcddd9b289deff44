package services

import "errors"

// Tax engine error taxonomy. Jurisdiction- and scheme-level failures are
// surfaced to the caller as request errors and never recovered by falling
// back to a guessed rate. Reciprocity gaps are the one exception: they
// degrade to zero credit instead of failing the computation (tax is still
// owed and computable without the credit).
var (
	// ErrUnknownJurisdiction means no rule record exists for the requested
	// jurisdiction code.
	ErrUnknownJurisdiction = errors.New("unknown jurisdiction")

	// ErrUnresolvedFeeCode means a line item matched neither an explicit fee
	// rule nor a category fallback. Silent non-taxability is a compliance
	// risk, so this is fatal to the request.
	ErrUnresolvedFeeCode = errors.New("unresolved fee code")

	// ErrInvalidSchemeDispatch means a special scheme or lease method has no
	// registered handler, i.e. the jurisdiction's implementation is
	// incomplete.
	ErrInvalidSchemeDispatch = errors.New("invalid scheme dispatch")

	// ErrMalformedTransaction means the transaction input is not computable
	// (negative price, lease without lease terms, unknown rebate source).
	ErrMalformedTransaction = errors.New("malformed transaction")

	// ErrInvalidRuleRecord means a jurisdiction record failed load-time
	// validation and was rejected rather than silently defaulted.
	ErrInvalidRuleRecord = errors.New("invalid jurisdiction rule record")
)
