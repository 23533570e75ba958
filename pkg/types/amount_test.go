package types

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    Amount
		wantErr error
	}{
		{in: "0.001", want: MinimumFundingV1},
		{in: "0.0005", want: MinimumFundingV2},
		{in: "0.0009", want: 900_000},
		{in: "1", want: Coin},
		{in: "1.5", want: Coin + Coin/2},
		{in: ".25", want: Coin / 4},
		{in: "2.", want: 2 * Coin},
		{in: " 3 ", want: 3 * Coin},
		{in: "0.000000001", want: 1},
		{in: "", wantErr: ErrInvalidAmount},
		{in: ".", wantErr: ErrInvalidAmount},
		{in: "-1", wantErr: ErrInvalidAmount},
		{in: "1e3", wantErr: ErrInvalidAmount},
		{in: "0.0000000001", wantErr: ErrInvalidAmount},
		{in: "99999999999999999999", wantErr: ErrAmountOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAmountString(t *testing.T) {
	assert.Equal(t, "0", Amount(0).String())
	assert.Equal(t, "0.001", MinimumFundingV1.String())
	assert.Equal(t, "0.0005", MinimumFundingV2.String())
	assert.Equal(t, "12", (12 * Coin).String())
	assert.Equal(t, "1.000000001", (Coin + 1).String())
}

func TestAmountAdd(t *testing.T) {
	sum, err := Amount(2).Add(3)
	require.NoError(t, err)
	assert.Equal(t, Amount(5), sum)

	_, err = Amount(math.MaxUint64).Add(1)
	assert.ErrorIs(t, err, ErrAmountOverflow)
}

func TestIdentityValidate(t *testing.T) {
	assert.NoError(t, Identity("user1").Validate())
	assert.ErrorIs(t, Identity("").Validate(), ErrInvalidIdentity)
	assert.ErrorIs(t, Identity("user 1").Validate(), ErrInvalidIdentity)
}
