package nucleotide

import "math/rand"

// Policy is the invalid-nucleotide substitution collaborator (§6). Handle is
// invoked only when raw fails to pack as-is. It returns (corrected, true,
// nil) when corrected is usable and should be re-packed, (nil, false, nil)
// to skip the record entirely, or a non-nil error to fail the caller's
// write operation outright.
//
// Concrete substitution policies are outside this module's scope (§1); the
// two policies below exist only so the encoder's skip/correct/fail paths
// are each exercised by a real collaborator.
type Policy interface {
	Handle(raw []byte, rng *rand.Rand) (corrected []byte, ok bool, err error)
}

// SkipPolicy always declines to correct, signalling "skip this record" for
// any sequence the packer rejects. It is the zero-value default.
type SkipPolicy struct{}

// Handle implements Policy.
func (SkipPolicy) Handle(raw []byte, rng *rand.Rand) ([]byte, bool, error) {
	return nil, false, nil
}

// RandomBasePolicy replaces every invalid byte with a uniformly random base
// drawn from the encoder's seeded PRNG, leaving valid bytes untouched. It
// never fails and never skips.
type RandomBasePolicy struct{}

// Handle implements Policy.
func (RandomBasePolicy) Handle(raw []byte, rng *rand.Rand) ([]byte, bool, error) {
	out := make([]byte, len(raw))
	copy(out, raw)
	for i, b := range out {
		if baseCode[b] == 0xFF {
			out[i] = baseChar[rng.Intn(4)]
		}
	}
	return out, true, nil
}
