package types

import (
	"math"
	"strconv"
	"strings"
)

// Amount is a quantity of value in base units.
type Amount uint64

// Coin is one whole coin expressed in base units.
const Coin Amount = 1_000_000_000

// coinDecimals is the number of fractional digits a Coin carries.
const coinDecimals = 9

// Add returns a+b, or ErrAmountOverflow if the sum does not fit.
func (a Amount) Add(b Amount) (Amount, error) {
	if b > math.MaxUint64-a {
		return 0, ErrAmountOverflow
	}
	return a + b, nil
}

// String renders the amount in decimal coin notation with trailing zeros
// trimmed, e.g. 1_000_000 base units is "0.001".
func (a Amount) String() string {
	whole := uint64(a / Coin)
	frac := uint64(a % Coin)
	if frac == 0 {
		return strconv.FormatUint(whole, 10)
	}
	fs := strconv.FormatUint(frac, 10)
	fs = strings.Repeat("0", coinDecimals-len(fs)) + fs
	fs = strings.TrimRight(fs, "0")
	return strconv.FormatUint(whole, 10) + "." + fs
}

// ParseAmount parses decimal coin notation ("0.001", "2", "1.5") into base
// units. At most nine fractional digits are accepted. Returns ErrInvalidAmount
// for malformed input and ErrAmountOverflow when the value does not fit.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrInvalidAmount
	}

	wholePart, fracPart, hasDot := strings.Cut(s, ".")
	if hasDot && fracPart == "" && wholePart == "" {
		return 0, ErrInvalidAmount
	}
	if wholePart == "" {
		wholePart = "0"
	}
	if len(fracPart) > coinDecimals {
		return 0, ErrInvalidAmount
	}
	if !isDigits(wholePart) || (fracPart != "" && !isDigits(fracPart)) {
		return 0, ErrInvalidAmount
	}

	whole, err := strconv.ParseUint(wholePart, 10, 64)
	if err != nil {
		return 0, ErrAmountOverflow
	}
	if whole > uint64(math.MaxUint64/uint64(Coin)) {
		return 0, ErrAmountOverflow
	}

	var frac uint64
	if fracPart != "" {
		padded := fracPart + strings.Repeat("0", coinDecimals-len(fracPart))
		frac, err = strconv.ParseUint(padded, 10, 64)
		if err != nil {
			return 0, ErrInvalidAmount
		}
	}

	return Amount(whole).mulCoin().Add(Amount(frac))
}

// mulCoin scales a whole-coin count to base units. Callers check the bound.
func (a Amount) mulCoin() Amount { return a * Coin }

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
