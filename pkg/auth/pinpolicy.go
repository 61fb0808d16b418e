package auth

import (
	"strconv"

	"github.com/lanternworks/lantern-core/internal/models"
)

// PINLength is the fixed length of the primary credential.
const PINLength = 6

// Common weak PINs to reject
var weakPINs = map[string]bool{
	"123123": true,
	"112233": true,
	"121212": true,
	"123321": true,
	"696969": true,
	"101010": true,
	"111222": true,
	"131313": true,
	"100000": true,
	"520520": true,
	"789456": true,
	"159753": true,
}

// ValidatePIN rejects malformed or guessable PINs before any hashing
// happens. Every rejection carries a specific reason.
func ValidatePIN(pin string) error {
	if len(pin) != PINLength {
		return models.NewValidationError("pin", "must be exactly 6 digits")
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return models.NewValidationError("pin", "must contain only digits")
		}
	}

	if isRepeatedDigit(pin) {
		return models.NewValidationError("pin", "repeated digits are not allowed")
	}
	if isSequentialRun(pin) {
		return models.NewValidationError("pin", "sequential digits are not allowed")
	}
	if weakPINs[pin] {
		return models.NewValidationError("pin", "this PIN is too common")
	}
	if containsBirthYear(pin) {
		return models.NewValidationError("pin", "must not contain a birth year")
	}

	return nil
}

func isRepeatedDigit(pin string) bool {
	for i := 1; i < len(pin); i++ {
		if pin[i] != pin[0] {
			return false
		}
	}
	return true
}

// isSequentialRun catches fully ascending or descending runs such as
// 123456, 456789 and 987654, including the 90-wrap (890123).
func isSequentialRun(pin string) bool {
	asc, desc := true, true
	for i := 1; i < len(pin); i++ {
		prev, cur := int(pin[i-1]-'0'), int(pin[i]-'0')
		if cur != (prev+1)%10 {
			asc = false
		}
		if cur != (prev+9)%10 {
			desc = false
		}
	}
	return asc || desc
}

// containsBirthYear rejects PINs embedding a four-digit year between 1900
// and 2099 at any position, the most common date-derived choice.
func containsBirthYear(pin string) bool {
	for i := 0; i+4 <= len(pin); i++ {
		year, err := strconv.Atoi(pin[i : i+4])
		if err != nil {
			continue
		}
		if year >= 1900 && year <= 2099 {
			return true
		}
	}
	return false
}
