// Package pricing computes registration and renewal prices. Policies are
// pure: the same name and duration always produce the same price, so the
// quoted amount is the authoritative charge at both registration and renewal.
package pricing

import (
	"time"
	"unicode/utf8"
)

// SecondsPerYear is the pricing year. Rates are quoted per year and scaled
// by integer division, truncating toward zero; both the quote and the charge
// use this same computation so the two can never disagree.
const SecondsPerYear = 365 * 24 * 60 * 60

// Quote is the price of an operation.
type Quote struct {
	Base    uint64 `json:"base"`
	Premium uint64 `json:"premium"`
}

// Total returns base plus premium.
func (q Quote) Total() uint64 { return q.Base + q.Premium }

// Policy prices a name for a duration. Implementations must be pure and
// total for every name of length >= 3; shorter names are rejected by
// validation upstream, never here. A zero duration prices to zero and must
// be rejected by the caller.
type Policy interface {
	Price(name string, duration time.Duration) Quote
}

// TierRates holds per-year rates in microcredits, tiered by label length.
type TierRates struct {
	ThreeChar uint64
	FourChar  uint64
	Longer    uint64
}

// DefaultRates mirrors the launch pricing schedule.
var DefaultRates = TierRates{
	ThreeChar: 640_000_000,
	FourChar:  160_000_000,
	Longer:    5_000_000,
}

// TierPolicy prices by label length with a multi-year discount. The premium
// hook is reserved for scarcity pricing of newly released names and defaults
// to zero.
type TierPolicy struct {
	Rates TierRates
	// MultiYearDiscountBps is subtracted from the base, in basis points,
	// when the duration is at least two pricing years.
	MultiYearDiscountBps uint64
	// PremiumFn, when set, prices scarcity on top of the base.
	PremiumFn func(name string) uint64
}

// NewTierPolicy builds the standard policy with the default schedule.
func NewTierPolicy() *TierPolicy {
	return &TierPolicy{Rates: DefaultRates}
}

// Price implements Policy.
func (p *TierPolicy) Price(name string, duration time.Duration) Quote {
	seconds := uint64(duration / time.Second)

	var rate uint64
	switch utf8.RuneCountInString(name) {
	case 0, 1, 2:
		// Unregistrable, but the policy stays total.
		rate = p.Rates.ThreeChar
	case 3:
		rate = p.Rates.ThreeChar
	case 4:
		rate = p.Rates.FourChar
	default:
		rate = p.Rates.Longer
	}

	base := rate * seconds / SecondsPerYear
	if p.MultiYearDiscountBps > 0 && seconds >= 2*SecondsPerYear {
		base = base * (10_000 - p.MultiYearDiscountBps) / 10_000
	}

	var premium uint64
	if p.PremiumFn != nil {
		premium = p.PremiumFn(name)
	}
	return Quote{Base: base, Premium: premium}
}
