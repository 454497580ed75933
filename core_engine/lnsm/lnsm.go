// Package lnsm holds the line-number state machine registers themselves:
// address, file, line, column, and the five status bits, plus the
// discriminator. It knows nothing about opcodes or the bus; it only knows how
// to advance, truncate, and reset its own fields.
//
// Grounded on core_engine/devices/rtc.go's register bank (a fixed set of
// named fields with documented reset values and narrow per-field update
// rules), adapted from CMOS bytes to the LNSM's typed, width-constrained
// fields.
package lnsm

// Field widths, per the register file's packing of AM_ADDRESS /
// AM_FILE_DISCRIM / AM_LINE_COL_FLAGS.
const (
	AddressBits = 24
	FileBits    = 16
	LineBits    = 16
	ColumnBits  = 10
	DiscrimBits = 16

	addressMask = (1 << AddressBits) - 1
	fileMask    = (1 << FileBits) - 1
	lineMask    = (1 << LineBits) - 1
	columnMask  = (1 << ColumnBits) - 1
	discrimMask = (1 << DiscrimBits) - 1

	// setAddressMask is the wider mask DW_LNE_set_address alone uses: its
	// payload is assembled into a 64-bit accumulator and the low 28 bits are
	// kept (not the usual 24), with bit 0 then cleared. advance_pc and
	// fixed_advance_pc continue to use addressMask.
	setAddressMask = (1 << 28) - 1
)

// State is the nine addressable LNSM fields plus the discriminator. The zero value is not a valid reset state; use Reset.
type State struct {
	Address uint32
	File    uint16
	Line    uint16
	Column  uint16

	IsStmt        bool
	BasicBlock    bool
	EndSequence   bool
	PrologueEnd   bool
	EpilogueBegin bool

	Discriminator uint16
}

// Reset restores every field to the DWARF-5 line-number program's initial
// state (§6.2.2 of the format this peripheral decodes), with is_stmt seeded
// from the header's default_is_stmt bit. Used on power-up, on a
// PROGRAM_HEADER write, and after DW_LNE_end_sequence.
func (s *State) Reset(defaultIsStmt bool) {
	*s = State{
		File:   1,
		Line:   1,
		IsStmt: defaultIsStmt,
	}
}

// ResetRow clears the fields that do not survive a row emission
// (DW_LNS_copy), leaving address/file/line/column/is_stmt untouched per the
// "appended row" semantics of the line-number program.
func (s *State) ResetRow() {
	s.BasicBlock = false
	s.PrologueEnd = false
	s.EpilogueBegin = false
	s.Discriminator = 0
}

// AdvancePC adds delta to the address and truncates to the 24-bit address
// space. delta is already the final operation_advance*minimum_instruction
// value; this peripheral does not model VLIW bundles, so it is used as-is.
func (s *State) AdvancePC(delta uint32) {
	s.Address = (s.Address + delta) & addressMask
}

// SetAddressRaw applies DW_LNE_set_address's documented quirk: the payload
// bytes are assembled little-endian into a wide accumulator regardless of
// how many bytes were written, the low 28 bits are kept, and bit 0 is then
// forced clear.
func (s *State) SetAddressRaw(acc uint64) {
	s.Address = uint32(acc&setAddressMask) &^ 1
}

// FixedAdvancePC implements DW_LNS_fixed_advance_pc: the operand is a plain
// 16-bit value added directly to the address with no operation_advance
// scaling, still wrapping at 24 bits.
func (s *State) FixedAdvancePC(delta uint16) {
	s.Address = (s.Address + uint32(delta)) & addressMask
}

// AdvanceLine adds a signed delta to line using 16-bit wraparound: overflow
// and underflow both wrap rather than saturate, matching the truncating
// arithmetic the rest of this state machine uses.
func (s *State) AdvanceLine(delta int64) {
	s.Line = uint16(wrap16(int64(s.Line) + delta))
}

// SetFile truncates v to the 16-bit file register.
func (s *State) SetFile(v uint64) {
	s.File = uint16(v & fileMask)
}

// SetColumn truncates v to the 10-bit column field.
func (s *State) SetColumn(v uint64) {
	s.Column = uint16(v & columnMask)
}

// SetDiscriminator truncates v to the 16-bit discriminator field.
func (s *State) SetDiscriminator(v uint64) {
	s.Discriminator = uint16(v & discrimMask)
}

// NegateStmt flips is_stmt.
func (s *State) NegateStmt() {
	s.IsStmt = !s.IsStmt
}

// SetBasicBlock sets basic_block unconditionally; DWARF never clears it
// except on row emission or reset.
func (s *State) SetBasicBlock() {
	s.BasicBlock = true
}

// SetPrologueEnd sets prologue_end unconditionally.
func (s *State) SetPrologueEnd() {
	s.PrologueEnd = true
}

// SetEpilogueBegin sets epilogue_begin unconditionally.
func (s *State) SetEpilogueBegin() {
	s.EpilogueBegin = true
}

// MarkEndSequence sets the end_sequence flag, per DW_LNE_end_sequence.
func (s *State) MarkEndSequence() {
	s.EndSequence = true
}

// AMAddress returns the AM_ADDRESS register contents: the address register
// zero-extended to 32 bits. It holds 24 bits, except after
// DW_LNE_set_address, which keeps 28 (see SetAddressRaw).
func (s *State) AMAddress() uint32 {
	return s.Address
}

// AMFileDiscrim returns the AM_FILE_DISCRIM register: file in the low
// halfword, discriminator in the high halfword.
func (s *State) AMFileDiscrim() uint32 {
	return uint32(s.File) | uint32(s.Discriminator)<<16
}

// AMLineColFlags returns the AM_LINE_COL_FLAGS register: line in bits
// [15:0], column in bits [25:16], and the five status bits above that.
func (s *State) AMLineColFlags() uint32 {
	v := uint32(s.Line) | uint32(s.Column&columnMask)<<16
	if s.IsStmt {
		v |= 1 << 26
	}
	if s.BasicBlock {
		v |= 1 << 27
	}
	if s.EndSequence {
		v |= 1 << 28
	}
	if s.PrologueEnd {
		v |= 1 << 29
	}
	if s.EpilogueBegin {
		v |= 1 << 30
	}
	return v
}

// wrap16 folds x into the range [0, 65536) using floored modulo, since Go's
// % operator returns a negative remainder for negative x.
func wrap16(x int64) int64 {
	const m = 1 << 16
	r := x % m
	if r < 0 {
		r += m
	}
	return r
}
