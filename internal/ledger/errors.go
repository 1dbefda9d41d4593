package ledger

import "fmt"

// Trade quantities and prices are capped at the GE cash limit (max int32),
// matching what the game client itself can represent.
const (
	MaxQuantity     = int64(2147483647)
	MaxPricePerItem = int64(2147483647)
)

// Validation error codes surfaced to the caller. These are user input or
// state errors, never retried, and always terminal for the one mutation.
const (
	CodeInvalidQuantity       = "INVALID_QUANTITY"
	CodeQuantityTooLarge      = "QUANTITY_TOO_LARGE"
	CodeNegativePrice         = "NEGATIVE_PRICE"
	CodePriceTooLarge         = "PRICE_TOO_LARGE"
	CodeInsufficientBankroll  = "INSUFFICIENT_BANKROLL"
	CodeNoInventory           = "NO_INVENTORY"
	CodeInsufficientInventory = "INSUFFICIENT_INVENTORY"
)

// ValidationError describes why a trade mutation was rejected. For
// inventory and bankroll failures it carries the available amount so the
// caller can build an actionable message.
type ValidationError struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	AvailableQuantity *int64 `json:"available_quantity,omitempty"`
	AvailableBankroll *int64 `json:"available_bankroll,omitempty"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newValidationError(code, message string) *ValidationError {
	return &ValidationError{Code: code, Message: message}
}
