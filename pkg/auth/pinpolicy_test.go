package auth

import (
	"testing"

	"github.com/lanternworks/lantern-core/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePIN_Accepts(t *testing.T) {
	for _, pin := range []string{"174952", "638194", "285736", "902847"} {
		assert.NoError(t, ValidatePIN(pin), "pin %q should be accepted", pin)
	}
}

func TestValidatePIN_Rejects(t *testing.T) {
	cases := []struct {
		pin    string
		reason string
	}{
		{"1234", "must be exactly 6 digits"},
		{"12345678", "must be exactly 6 digits"},
		{"", "must be exactly 6 digits"},
		{"12345a", "must contain only digits"},
		{"1234 6", "must contain only digits"},
		{"111111", "repeated digits are not allowed"},
		{"000000", "repeated digits are not allowed"},
		{"123456", "sequential digits are not allowed"},
		{"456789", "sequential digits are not allowed"},
		{"987654", "sequential digits are not allowed"},
		{"890123", "sequential digits are not allowed"},
		{"123123", "this PIN is too common"},
		{"159753", "this PIN is too common"},
		{"198734", "must not contain a birth year"},
		{"342015", "must not contain a birth year"},
		{"120994", "must not contain a birth year"},
	}

	for _, tc := range cases {
		err := ValidatePIN(tc.pin)
		var verr *models.ValidationError
		require.ErrorAs(t, err, &verr, "pin %q", tc.pin)
		assert.Equal(t, tc.reason, verr.Reason, "pin %q", tc.pin)
	}
}

func TestValidatePIN_YearOutsideRangeAllowed(t *testing.T) {
	// 1749 and 2184 are outside the 1900-2099 window.
	assert.NoError(t, ValidatePIN("174952"))
	assert.NoError(t, ValidatePIN("218463"))
}
