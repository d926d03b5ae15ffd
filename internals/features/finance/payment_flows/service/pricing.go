package service

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Pricing = sumber tarif komisi platform (dipasang dari luar, bukan global).
type Pricing interface {
	Lookup(key string) (decimal.Decimal, bool)
}

// StaticPricing: rate per provider, contoh {"ONLINE_PSP": 0.025}.
type StaticPricing map[string]decimal.Decimal

func (p StaticPricing) Lookup(key string) (decimal.Decimal, bool) {
	v, ok := p[strings.ToUpper(strings.TrimSpace(key))]
	return v, ok
}

// Commission = amount × rate (2 desimal). Tanpa rate → 0.
func Commission(p Pricing, provider string, amount decimal.Decimal) decimal.Decimal {
	if p == nil {
		return decimal.Zero
	}
	rate, ok := p.Lookup(provider)
	if !ok || rate.IsNegative() {
		return decimal.Zero
	}
	return amount.Mul(rate).Round(2)
}
