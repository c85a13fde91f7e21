package registration

import (
	"encoding/binary"
	"time"

	"selns/internal/state"
	"selns/pkg/domain"
	"selns/pkg/namehash"
)

// Params are the full registration parameters a client reveals. The
// commitment hash binds every field plus a caller-chosen secret, so nothing
// can change between commit and reveal.
type Params struct {
	Name          string
	Owner         domain.Principal
	Duration      time.Duration
	Secret        namehash.Hash
	Resolver      domain.Principal
	Records       []state.Record
	ReverseRecord bool
}

// MakeCommitment derives the commitment hash from the parameters. The
// encoding is deterministic (length-prefixed fields in declaration order),
// so any client can compute the same hash off-line without revealing intent
// when submitting it.
func MakeCommitment(p Params) namehash.Hash {
	var buf []byte
	buf = appendString(buf, p.Name)
	buf = appendString(buf, p.Owner.String())
	buf = binary.BigEndian.AppendUint64(buf, uint64(p.Duration/time.Second))
	buf = append(buf, p.Secret[:]...)
	buf = appendString(buf, p.Resolver.String())
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(p.Records)))
	for _, rec := range p.Records {
		buf = appendString(buf, string(rec.Kind))
		buf = appendString(buf, rec.Key)
		buf = appendString(buf, rec.Value)
	}
	if p.ReverseRecord {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return namehash.Keccak256(buf)
}

func appendString(buf []byte, s string) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(s)))
	return append(buf, s...)
}
