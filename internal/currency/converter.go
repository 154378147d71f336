// Package currency converts display prices between the store's base
// currency and a fixed table of rates loaded from configuration.
//
// All amounts are integer minor units and every supported currency is
// assumed to have two decimal places.
package currency

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	dErrors "storefront/pkg/domain-errors"
)

// Converter holds rates expressed as units of currency per one unit of base.
type Converter struct {
	base  string
	rates map[string]float64
}

// New validates codes and rates. The base currency is always rate 1.
func New(base string, rates map[string]float64) (*Converter, error) {
	base = strings.ToUpper(strings.TrimSpace(base))
	if !validCode(base) {
		return nil, fmt.Errorf("invalid base currency %q", base)
	}
	table := map[string]float64{base: 1}
	for code, rate := range rates {
		code = strings.ToUpper(strings.TrimSpace(code))
		if !validCode(code) {
			return nil, fmt.Errorf("invalid currency code %q", code)
		}
		if rate <= 0 || math.IsInf(rate, 0) || math.IsNaN(rate) {
			return nil, fmt.Errorf("invalid rate for %s: %v", code, rate)
		}
		if code == base && rate != 1 {
			return nil, fmt.Errorf("base currency %s must have rate 1", base)
		}
		table[code] = rate
	}
	return &Converter{base: base, rates: table}, nil
}

// ParseRates reads "EUR=0.92,GBP=0.79".
func ParseRates(raw string) (map[string]float64, error) {
	rates := make(map[string]float64)
	for pair := range strings.SplitSeq(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		code, value, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("rate %q must be CODE=VALUE", pair)
		}
		rate, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, fmt.Errorf("rate %q: %w", pair, err)
		}
		rates[strings.ToUpper(strings.TrimSpace(code))] = rate
	}
	return rates, nil
}

func (c *Converter) Base() string { return c.base }

// Supported reports whether code has a rate.
func (c *Converter) Supported(code string) bool {
	_, ok := c.rates[strings.ToUpper(code)]
	return ok
}

// Codes lists supported currencies, sorted.
func (c *Converter) Codes() []string {
	return slices.Sorted(maps.Keys(c.rates))
}

// Rates returns a copy of the rate table.
func (c *Converter) Rates() map[string]float64 {
	return maps.Clone(c.rates)
}

// Convert moves amount from one currency to another, rounding half away from zero.
func (c *Converter) Convert(amount int64, from, to string) (int64, error) {
	from, to = strings.ToUpper(from), strings.ToUpper(to)
	fromRate, ok := c.rates[from]
	if !ok {
		return 0, dErrors.Newf(dErrors.CodeValidation, "unsupported currency %q", from)
	}
	toRate, ok := c.rates[to]
	if !ok {
		return 0, dErrors.Newf(dErrors.CodeValidation, "unsupported currency %q", to)
	}
	if from == to {
		return amount, nil
	}
	return int64(math.Round(float64(amount) * toRate / fromRate)), nil
}

// Normalize upper-cases code and defaults empty input to the base currency.
func (c *Converter) Normalize(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return c.base, nil
	}
	if !c.Supported(code) {
		return "", dErrors.Newf(dErrors.CodeValidation, "unsupported currency %q", code)
	}
	return code, nil
}

// Format renders minor units as "12.34 EUR".
func Format(amount int64, code string) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, amount/100, amount%100, strings.ToUpper(code))
}

func validCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
