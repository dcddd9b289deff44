package constants

// Common string constants used throughout the codebase
const (
	// Log levels
	ErrorLevel = "error"

	// Environments
	ProdEnvironment = "prod"

	// Transaction types
	TransactionTypeRetail = "retail"
	TransactionTypeLease  = "lease"

	// Currencies
	USDCurrency = "USD"
)

// Well-known fee codes. Rule packs may define explicit rules for any code;
// these are the codes the category fallback understands.
const (
	FeeCodeDoc             = "DOC"
	FeeCodeServiceContract = "SERVICE_CONTRACT"
	FeeCodeGap             = "GAP"
	FeeCodeAccessory       = "ACCESSORY"
	FeeCodeTitle           = "TITLE"
	FeeCodeRegistration    = "REGISTRATION"
)
