package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/andy/duesink/internal/domain"
	"github.com/andy/duesink/internal/money"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var validate = validator.New()

// validateInput runs struct tag validation and reports the first failure as
// a *domain.ValidationError.
func validateInput(input interface{}) error {
	err := validate.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return domain.NewValidationError("input", nil, err.Error())
	}

	fe := fieldErrs[0]
	return domain.NewValidationError(fieldName(fe.Namespace()), fe.Value(), tagMessage(fe))
}

// fieldName drops the struct name from a validator namespace and lower-cases
// the first letter of each segment: "CreateInvoiceInput.Items[0].Quantity"
// becomes "items[0].quantity".
func fieldName(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToLower(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, ".")
}

func tagMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s", fe.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt", "gte":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	}
	return fmt.Sprintf("failed %q check", fe.Tag())
}

// parseAmount parses an optional locale-formatted amount; blank is zero.
func parseAmount(field, s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	d, err := money.Parse(s)
	if err != nil {
		return decimal.Zero, domain.NewValidationError(field, s, err.Error())
	}
	return d, nil
}

func parseRate(field, s string) (decimal.Decimal, error) {
	if strings.TrimSpace(s) == "" {
		return decimal.Zero, nil
	}
	d, err := money.ParseRate(s)
	if err != nil {
		return decimal.Zero, domain.NewValidationError(field, s, err.Error())
	}
	return d, nil
}
