// Package nucleotide packs/unpacks byte sequences of {A,C,G,T} bases into
// 2-bit-per-base 64-bit words, and wraps that packer with an invalid-input
// recovery policy so higher layers never have to reason about malformed
// sequences directly.
package nucleotide

import "fmt"

// ErrInvalidBase reports a byte that is not one of {A,C,G,T}.
type ErrInvalidBase struct {
	Base byte
	Pos  int
}

func (e *ErrInvalidBase) Error() string {
	return fmt.Sprintf("nucleotide: invalid base %q at position %d", e.Base, e.Pos)
}

// baseCode maps {A,C,G,T} to {0,1,2,3}; every other byte maps to 0xFF.
var baseCode [256]byte

// baseChar is the inverse of baseCode for the four valid codes.
var baseChar = [4]byte{'A', 'C', 'G', 'T'}

func init() {
	for i := range baseCode {
		baseCode[i] = 0xFF
	}
	baseCode['A'] = 0
	baseCode['C'] = 1
	baseCode['G'] = 2
	baseCode['T'] = 3
}

// PackedWords returns the number of 64-bit words needed to hold n packed
// bases: ceil(n/32).
func PackedWords(n int) int {
	return (n + 31) / 32
}

// Encode packs bases into dst, a reusable word buffer that is reset and
// grown as needed, writing 32 bases per word with the first base of the
// word in the low-order two bits (§6). It fails with *ErrInvalidBase on
// the first byte outside {A,C,G,T} and leaves dst in an indeterminate but
// reusable state.
func Encode(bases []byte, dst []uint64) ([]uint64, error) {
	n := len(bases)
	words := PackedWords(n)
	dst = growUint64(dst[:0], words)
	dst = dst[:words]
	for i := range dst {
		dst[i] = 0
	}

	for i, b := range bases {
		code := baseCode[b]
		if code == 0xFF {
			return dst, &ErrInvalidBase{Base: b, Pos: i}
		}
		word := i / 32
		shift := uint(i%32) * 2
		dst[word] |= uint64(code) << shift
	}
	return dst, nil
}

// Decode unpacks the first length bases from packed into dst, a reusable
// byte buffer that is reset and grown as needed.
func Decode(packed []uint64, length int, dst []byte) []byte {
	dst = growByte(dst[:0], length)
	dst = dst[:length]
	for i := 0; i < length; i++ {
		word := packed[i/32]
		shift := uint(i%32) * 2
		code := (word >> shift) & 0x3
		dst[i] = baseChar[code]
	}
	return dst
}

func growUint64(buf []uint64, n int) []uint64 {
	if cap(buf) < n {
		return make([]uint64, 0, n)
	}
	return buf
}

func growByte(buf []byte, n int) []byte {
	if cap(buf) < n {
		return make([]byte, 0, n)
	}
	return buf
}
