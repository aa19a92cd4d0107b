package validator

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Errors collects field-level validation messages. The zero value is not
// usable; create with make or New.
type Errors map[string]string

// New creates an empty validation error set.
func New() Errors {
	return make(Errors)
}

// Add records a message for a field. The first message per field wins.
func (e Errors) Add(field, message string) {
	if _, exists := e[field]; !exists {
		e[field] = message
	}
}

// Empty reports whether no validation errors were recorded.
func (e Errors) Empty() bool {
	return len(e) == 0
}

// Details converts the error set into the map shape carried by AppError.
func (e Errors) Details() map[string]interface{} {
	details := make(map[string]interface{}, len(e))
	for field, message := range e {
		details[field] = message
	}
	return details
}

// Required records an error when value is empty.
func (e Errors) Required(field, value string) {
	if value == "" {
		e.Add(field, "is required")
	}
}

// PositiveAmount records an error unless amount > 0.
func (e Errors) PositiveAmount(field string, amount decimal.Decimal) {
	if amount.Cmp(decimal.Zero) <= 0 {
		e.Add(field, "must be positive")
	}
}

// OneOf records an error unless value is one of allowed.
func (e Errors) OneOf(field, value string, allowed ...string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	e.Add(field, fmt.Sprintf("must be one of %v", allowed))
}
