// Package sale quotes, buys and tracks the token sale.
package sale

import (
	"fmt"
	"strings"
)

// TokenDecimals is the sale token's fixed-point precision.
const TokenDecimals uint8 = 18

// Currency is a payment currency accepted by the sale.
type Currency int

const (
	Native Currency = iota
	Stable
)

// Currencies lists every payment currency in display order.
func Currencies() []Currency {
	return []Currency{Native, Stable}
}

// ParseCurrency accepts the symbol or the kind, case-insensitively.
func ParseCurrency(s string) (Currency, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "eth", "native":
		return Native, nil
	case "usdt", "stable":
		return Stable, nil
	default:
		return 0, fmt.Errorf("unknown currency %q (want eth or usdt)", s)
	}
}

// Decimals is the fixed-point precision used for amounts in this currency,
// in both quote directions and for purchases.
func (c Currency) Decimals() uint8 {
	if c == Stable {
		return 6
	}
	return 18
}

func (c Currency) Symbol() string {
	if c == Stable {
		return "USDT"
	}
	return "ETH"
}

func (c Currency) String() string {
	return strings.ToLower(c.Symbol())
}

// NeedsApproval reports whether buying with c spends an ERC20 allowance.
func (c Currency) NeedsApproval() bool {
	return c == Stable
}

func (c Currency) valid() bool {
	return c == Native || c == Stable
}
