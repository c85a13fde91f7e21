package pricing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

const year = 365 * 24 * time.Hour

func TestTierPolicyRates(t *testing.T) {
	p := NewTierPolicy()

	assert.Equal(t, uint64(640_000_000), p.Price("abc", year).Base)
	assert.Equal(t, uint64(160_000_000), p.Price("abcd", year).Base)
	assert.Equal(t, uint64(5_000_000), p.Price("abcde", year).Base)
	assert.Equal(t, uint64(5_000_000), p.Price("a-very-long-name", year).Base)
}

func TestTierPolicyScalesBySeconds(t *testing.T) {
	p := NewTierPolicy()

	half := p.Price("abcde", year/2).Base
	full := p.Price("abcde", year).Base
	assert.Equal(t, full/2, half)

	// Integer division truncates toward zero.
	tiny := p.Price("abcde", time.Second)
	assert.Equal(t, uint64(5_000_000)/uint64(SecondsPerYear), tiny.Base)

	zero := p.Price("abcde", 0)
	assert.Zero(t, zero.Base)
	assert.Zero(t, zero.Total())
}

func TestTierPolicyDeterministic(t *testing.T) {
	p := NewTierPolicy()
	a := p.Price("alice", 2*year)
	b := p.Price("alice", 2*year)
	assert.Equal(t, a, b)
}

func TestMultiYearDiscount(t *testing.T) {
	p := &TierPolicy{Rates: DefaultRates, MultiYearDiscountBps: 1_000}

	oneYear := p.Price("abcde", year).Base
	assert.Equal(t, uint64(5_000_000), oneYear, "no discount below two years")

	twoYears := p.Price("abcde", 2*year).Base
	assert.Equal(t, uint64(10_000_000)*9_000/10_000, twoYears)
}

func TestPremiumHook(t *testing.T) {
	p := &TierPolicy{
		Rates:     DefaultRates,
		PremiumFn: func(name string) uint64 { return 42 },
	}
	q := p.Price("abcde", year)
	assert.Equal(t, uint64(42), q.Premium)
	assert.Equal(t, q.Base+42, q.Total())

	assert.Zero(t, NewTierPolicy().Price("abcde", year).Premium, "premium defaults to zero")
}

func TestShortNamesStillPriced(t *testing.T) {
	// Unregistrable lengths are rejected upstream; the policy stays total.
	p := NewTierPolicy()
	assert.Equal(t, uint64(640_000_000), p.Price("ab", year).Base)
	assert.Equal(t, uint64(640_000_000), p.Price("", year).Base)
}
