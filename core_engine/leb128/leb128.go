// Package leb128 implements the operand shifter described in spec §4.3: a
// small, fixed-width accumulator that consumes one LEB128 continuation byte
// at a time and reports when the operand is complete, without ever widening
// beyond a plain uint64 — overlong encodings are tolerated by truncation,
// never by arbitrary-precision arithmetic.
//
// Grounded in the sign-extension idiom of decodeSLEB128/decodeULEB128 as
// implemented by llvm-dwarfparser in the retrieved pack (shift-and-mask,
// sign bit is bit 0x40 of the terminating byte), adapted here from a
// whole-slice decode into a byte-at-a-time Shifter so the decoder can feed
// it from the opcode queue one tick at a time.
package leb128

// Kind selects the two LEB128 encodings DWARF-5 §7.6 uses for operands.
type Kind int

const (
	Unsigned Kind = iota
	Signed
)

// Shifter accumulates one LEB128 operand. The zero value is not ready for
// use; call Reset before the first PushByte.
type Shifter struct {
	kind  Kind
	acc   uint64
	shift uint
	last  byte
}

// Reset prepares the shifter to accumulate a new operand of the given kind.
func (s *Shifter) Reset(kind Kind) {
	s.kind = kind
	s.acc = 0
	s.shift = 0
	s.last = 0
}

// PushByte folds one continuation byte into the accumulator and reports
// whether the operand is now complete (the byte's MSB was clear). Bytes
// pushed past 64 bits of shift still mark the operand complete on a
// terminating byte — they simply no longer change the accumulator, which is
// exactly the truncation behavior the overlong-encoding tests exercise.
func (s *Shifter) PushByte(b byte) (complete bool) {
	s.last = b
	if s.shift < 64 {
		s.acc |= uint64(b&0x7f) << s.shift
	}
	s.shift += 7
	return b&0x80 == 0
}

// Raw returns the accumulated magnitude bits with no sign extension applied.
func (s *Shifter) Raw() uint64 {
	return s.acc
}

// Signed returns the operand as a sign-extended 64-bit value, valid only
// after PushByte has reported completion on a Signed shifter. Bits above the
// final shift are set to 1 when the terminating byte's bit 0x40 is set, per
// DWARF-5 §7.6's SLEB128 decoding rule.
func (s *Shifter) Signed() int64 {
	v := s.acc
	if s.shift < 64 && s.last&0x40 != 0 {
		v |= ^uint64(0) << s.shift
	}
	return int64(v)
}

// Kind reports which encoding this shifter is currently accumulating.
func (s *Shifter) Kind() Kind {
	return s.kind
}
