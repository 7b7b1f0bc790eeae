package payment

import (
	"fmt"

	"harambee/utils"
)

// ValidatePhone normalizes raw input and checks it against the carrier numbering plan.
func ValidatePhone(raw string) (string, error) {
	phone := utils.NormalizePhone(raw)
	if !utils.IsValidMpesaPhone(phone) {
		return "", NewValidationError("phone", "Enter a valid M-Pesa number, e.g. 0712345678.")
	}
	return phone, nil
}

func ValidateAmount(amount, minimum int64) error {
	if amount <= 0 {
		return NewValidationError("amount", "Amount must be a positive whole number.")
	}
	if amount < minimum {
		return NewValidationError("amount", fmt.Sprintf("Minimum amount is KES %d.", minimum))
	}
	return nil
}

// validatePlan returns the normalized phone. Nothing reaches the gateway unless this passes.
func validatePlan(p Plan) (string, error) {
	if !p.Purpose.Kind.Valid() {
		return "", ErrUnknownPurpose
	}
	if err := ValidateAmount(p.Amount, p.MinAmount); err != nil {
		return "", err
	}
	return ValidatePhone(p.Phone)
}
