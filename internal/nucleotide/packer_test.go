package nucleotide

import "testing"

func TestPackedWords(t *testing.T) {
	cases := []struct {
		n    int
		want int
	}{
		{0, 0},
		{1, 1},
		{32, 1},
		{33, 2},
		{64, 2},
		{65, 3},
	}
	for _, c := range cases {
		if got := PackedWords(c.n); got != c.want {
			t.Errorf("PackedWords(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	seqs := []string{
		"",
		"A",
		"ACGT",
		"ACGTACGTACGTACGTACGTACGTACGTACGTA", // exactly 33 bases, spans 2 words
		"AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA", // exactly 32 bases, 1 word
	}
	for _, s := range seqs {
		words, err := Encode([]byte(s), nil)
		if err != nil {
			t.Fatalf("Encode(%q): %v", s, err)
		}
		if got, want := len(words), PackedWords(len(s)); got != want {
			t.Fatalf("Encode(%q) produced %d words, want %d", s, got, want)
		}
		decoded := Decode(words, len(s), nil)
		if string(decoded) != s {
			t.Fatalf("round trip mismatch: got %q, want %q", decoded, s)
		}
	}
}

func TestEncodeInvalidBase(t *testing.T) {
	_, err := Encode([]byte("ACGN"), nil)
	ib, ok := err.(*ErrInvalidBase)
	if !ok {
		t.Fatalf("got %v, want *ErrInvalidBase", err)
	}
	if ib.Base != 'N' || ib.Pos != 3 {
		t.Fatalf("got base=%q pos=%d, want base='N' pos=3", ib.Base, ib.Pos)
	}
}

func TestEncodeReusesBuffer(t *testing.T) {
	var buf []uint64
	buf, err := Encode([]byte("ACGTACGTACGTACGTACGTACGTACGTACGTAC"), buf)
	if err != nil {
		t.Fatal(err)
	}
	before := cap(buf)
	buf, err = Encode([]byte("AC"), buf)
	if err != nil {
		t.Fatal(err)
	}
	if cap(buf) != before {
		t.Fatalf("Encode reallocated a smaller buffer: cap %d != %d", cap(buf), before)
	}
	if len(buf) != 1 {
		t.Fatalf("len(buf) = %d, want 1", len(buf))
	}
}

func TestFirstBaseInLowOrderBits(t *testing.T) {
	words, err := Encode([]byte("CA"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := words[0] & 0x3; got != 1 {
		t.Fatalf("low two bits = %d, want 1 (code for 'C')", got)
	}
	if got := (words[0] >> 2) & 0x3; got != 0 {
		t.Fatalf("next two bits = %d, want 0 (code for 'A')", got)
	}
}
