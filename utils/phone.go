package utils

import (
	"regexp"
	"strings"
)

var (
	nonDigits    = regexp.MustCompile(`\D`)
	mpesaPattern = regexp.MustCompile(`^254[17]\d{8}$`)
)

// NormalizePhone rewrites a Kenyan mobile number into the 2547XXXXXXXX form the gateway expects.
// Input that does not fit a known shape is returned digits-only so validation can reject it.
func NormalizePhone(raw string) string {
	digits := nonDigits.ReplaceAllString(raw, "")

	switch {
	case strings.HasPrefix(digits, "254"):
		return digits
	case strings.HasPrefix(digits, "0") && len(digits) == 10:
		return "254" + digits[1:]
	case len(digits) == 9 && (digits[0] == '7' || digits[0] == '1'):
		return "254" + digits
	}
	return digits
}

// IsValidMpesaPhone checks an already normalized number.
func IsValidMpesaPhone(phone string) bool {
	return mpesaPattern.MatchString(phone)
}

// MaskPhone keeps the first and last three digits for logs.
func MaskPhone(phone string) string {
	if len(phone) < 7 {
		return "***"
	}
	return phone[:3] + strings.Repeat("*", len(phone)-6) + phone[len(phone)-3:]
}
