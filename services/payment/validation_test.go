package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"0712345678", "254712345678", false},
		{"712345678", "254712345678", false},
		{"254712345678", "254712345678", false},
		{"+254 712 345 678", "254712345678", false},
		{"0112345678", "254112345678", false},
		{"12345", "", true},
		{"2547123456789", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ValidatePhone(tt.raw)
			if tt.wantErr {
				var ve *ValidationError
				require.ErrorAs(t, err, &ve)
				assert.Equal(t, "phone", ve.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateAmount(t *testing.T) {
	assert.NoError(t, ValidateAmount(100, 10))
	assert.NoError(t, ValidateAmount(10, 10))

	for _, amount := range []int64{0, -5, 9} {
		err := ValidateAmount(amount, 10)
		var ve *ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Equal(t, "amount", ve.Field)
	}
}
