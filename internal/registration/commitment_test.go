package registration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"selns/internal/state"
	"selns/pkg/domain"
	"selns/pkg/namehash"
)

func baseParams() Params {
	return Params{
		Name:     "alice",
		Owner:    domain.Principal("0x00000000000000000000000000000000000000aa"),
		Duration: 365 * 24 * time.Hour,
		Secret:   namehash.LabelHash("super-secret"),
	}
}

func TestMakeCommitmentDeterministic(t *testing.T) {
	a := MakeCommitment(baseParams())
	b := MakeCommitment(baseParams())
	assert.Equal(t, a, b)
	assert.False(t, a.IsZero())
}

func TestMakeCommitmentSensitivity(t *testing.T) {
	base := MakeCommitment(baseParams())

	mutations := map[string]func(*Params){
		"name":     func(p *Params) { p.Name = "alicf" },
		"owner":    func(p *Params) { p.Owner = "0x00000000000000000000000000000000000000bb" },
		"duration": func(p *Params) { p.Duration += time.Second },
		"secret":   func(p *Params) { p.Secret = namehash.LabelHash("other-secret") },
		"resolver": func(p *Params) { p.Resolver = "0x00000000000000000000000000000000000000cc" },
		"records": func(p *Params) {
			p.Records = []state.Record{{Kind: state.RecordText, Key: "url", Value: "https://x"}}
		},
		"reverse": func(p *Params) { p.ReverseRecord = true },
	}

	for field, mutate := range mutations {
		t.Run(field, func(t *testing.T) {
			p := baseParams()
			mutate(&p)
			assert.NotEqual(t, base, MakeCommitment(p), "changing %s must change the hash", field)
		})
	}
}

func TestMakeCommitmentNoFieldBleed(t *testing.T) {
	// Length-prefixed encoding keeps adjacent fields from colliding.
	a := baseParams()
	a.Name = "ab"
	a.Owner = "0x00000000000000000000000000000000000000cc"

	b := baseParams()
	b.Name = "abc"
	// Different split of the same byte stream must not collide.
	assert.NotEqual(t, MakeCommitment(a), MakeCommitment(b))
}
