package nucleotide

import "math/rand"

// EncoderSeed is the fixed PRNG seed every Encoder must start from (§9):
// reproducibility requires no encoder instance ever be reseeded implicitly.
const EncoderSeed = 42

// Encoder wraps the 2-bit packer and an invalid-input Policy behind reusable
// internal storage: two word buffers (primary/extended packed sequence) and
// two byte buffers (policy-corrected bytes), all cleared between records.
type Encoder struct {
	policy Policy
	rng    *rand.Rand

	primaryWords  []uint64
	extendedWords []uint64

	correctedPrimary  []byte
	correctedExtended []byte
}

// NewEncoder returns an Encoder bound to policy, seeded per §9. A nil policy
// defaults to SkipPolicy.
func NewEncoder(policy Policy) *Encoder {
	if policy == nil {
		policy = SkipPolicy{}
	}
	return &Encoder{
		policy: policy,
		rng:    rand.New(rand.NewSource(EncoderSeed)),
	}
}

// Single encodes an unpaired sequence. ok is false when the policy elected
// to skip the record; the caller must not mutate any write-path state in
// that case. The returned slice aliases Encoder-owned storage and is only
// valid until the next call to Single or Paired.
func (e *Encoder) Single(primary []byte) (packed []uint64, ok bool, err error) {
	return e.encodeSequence(primary, &e.primaryWords, &e.correctedPrimary)
}

// Paired encodes a paired record's two sequences. A skip on either sequence
// drops the whole record (§4.2: the policy signals "skip this record", not
// "skip this sequence").
func (e *Encoder) Paired(primary, extended []byte) (primaryPacked, extendedPacked []uint64, ok bool, err error) {
	primaryPacked, ok, err = e.encodeSequence(primary, &e.primaryWords, &e.correctedPrimary)
	if err != nil || !ok {
		return nil, nil, false, err
	}
	extendedPacked, ok, err = e.encodeSequence(extended, &e.extendedWords, &e.correctedExtended)
	if err != nil || !ok {
		return nil, nil, false, err
	}
	return primaryPacked, extendedPacked, true, nil
}

func (e *Encoder) encodeSequence(raw []byte, words *[]uint64, corrected *[]byte) ([]uint64, bool, error) {
	packed, err := Encode(raw, *words)
	*words = packed
	if err == nil {
		return packed, true, nil
	}
	if _, invalid := err.(*ErrInvalidBase); !invalid {
		return nil, false, err
	}

	fixed, usable, perr := e.policy.Handle(raw, e.rng)
	if perr != nil {
		return nil, false, perr
	}
	if !usable {
		return nil, false, nil
	}

	*corrected = append((*corrected)[:0], fixed...)
	packed, err = Encode(*corrected, *words)
	*words = packed
	if err != nil {
		// A policy that returns "usable" must hand back a sequence the
		// packer accepts; a second failure is the policy's bug, not a
		// skippable record.
		return nil, false, err
	}
	return packed, true, nil
}
