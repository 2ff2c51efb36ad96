package chain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for amounts that are not plain decimal numbers
// or that carry more fractional digits than the unit allows.
var ErrInvalidAmount = errors.New("invalid amount")

// ParseUnits converts a human decimal string such as "1.5" into an integer
// amount of minor units with the given number of decimals.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, amount)
	}

	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%w: %q has more than %d decimals", ErrInvalidAmount, amount, decimals)
	}
	return scaled.BigInt(), nil
}

// ParsePositiveUnits is ParseUnits that also rejects zero and negative values.
func ParsePositiveUnits(amount string, decimals uint8) (*big.Int, error) {
	v, err := ParseUnits(amount, decimals)
	if err != nil {
		return nil, err
	}
	if v.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %q must be greater than zero", ErrInvalidAmount, strings.TrimSpace(amount))
	}
	return v, nil
}

// FormatUnits renders minor units as an exact decimal string without trailing
// zeros ("1000", "0.5").
func FormatUnits(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).String()
}

// FormatBalance formats a balance with decimals as a human-readable string
// with at most six fractional digits.
func FormatBalance(balance *big.Int, decimals uint8) string {
	if balance == nil {
		return "0"
	}

	d := decimal.NewFromBigInt(balance, -int32(decimals))
	if decimals > 6 {
		return d.StringFixed(6)
	}
	return d.StringFixed(int32(decimals))
}
