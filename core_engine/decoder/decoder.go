// Package decoder implements the opcode decoder and sequencer: the finite
// state machine that turns a byte-at-a-time stream of DWARF-5 line-number
// program opcodes into updates against an lnsm.State, pausing once per
// emitted row until the host acknowledges it.
//
// Grounded on core_engine/devices/pic.go's PICController, whose icwCount
// field and writeCommandPort/writeDataPort split is the same shape: a
// handful of named states threaded through one byte at a time, with a
// switch on the current state picking how the next byte is interpreted.
package decoder

import (
	"example.com/lnsm-peripheral/core_engine/leb128"
	"example.com/lnsm-peripheral/core_engine/lnsm"
	"example.com/lnsm-peripheral/core_engine/queue"
)

// State names the sequencer's current position in an opcode or operand.
type State int

const (
	StateIdle State = iota
	StateStdOperand
	StateFixedOperand
	StateExtLen
	StateExtOpcode
	StateExtOperand
	StatePausedRow
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStdOperand:
		return "STD_OPERAND"
	case StateFixedOperand:
		return "FIXED_OPERAND"
	case StateExtLen:
		return "EXT_LEN"
	case StateExtOpcode:
		return "EXT_OPCODE"
	case StateExtOperand:
		return "EXT_OPERAND"
	case StatePausedRow:
		return "PAUSED_ROW"
	default:
		return "UNKNOWN"
	}
}

// standard opcodes, duplicated from devices.constants to keep this package
// free of an import cycle back to devices.
const (
	opCopy             = 0x01
	opAdvancePC        = 0x02
	opAdvanceLine      = 0x03
	opSetFile          = 0x04
	opSetColumn        = 0x05
	opNegateStmt       = 0x06
	opSetBasicBlock    = 0x07
	opConstAddPC       = 0x08
	opFixedAdvancePC   = 0x09
	opSetPrologueEnd   = 0x0A
	opSetEpilogueBegin = 0x0B
	opSetISA           = 0x0C

	extPrefix           = 0x00
	extEndSequence      = 0x01
	extSetAddress       = 0x02
	extSetDiscriminator = 0x04
)

// extOperandKind selects how EXT_OPERAND bytes are folded into a result once
// an extended opcode's sub-opcode byte has been read.
type extOperandKind int

const (
	extKindDiscard extOperandKind = iota
	extKindSetAddress
	extKindSetDiscriminator
)

// Sequencer is the decoder/sequencer FSM. It owns no queue and no bus
// registers; Drain is handed a queue.Queue to consume from and an lnsm.State
// to mutate.
type Sequencer struct {
	state State

	// Standard-opcode operand accumulation.
	stdOpcode byte
	stdOperand leb128.Shifter

	// Fixed-width operand accumulation (DW_LNS_fixed_advance_pc).
	fixedAcc       uint32
	fixedRemaining int
	fixedShift     uint

	// Extended-opcode accumulation.
	extLen       leb128.Shifter
	extRemaining int
	extKind      extOperandKind
	extAcc       uint64
	extShift     uint
	extULEB      leb128.Shifter

	rowEndSequence bool

	// rowResetDue is true once a DW_LNS_copy row has been emitted; the
	// per-row fields are cleared at the start of the next Drain after
	// Acknowledge, so the host still sees them while the row is held.
	rowResetDue bool

	// pendingReset is true while PAUSED_ROW holds a row emitted by
	// DW_LNE_end_sequence, so Acknowledge's caller knows to reset the LNSM
	// only once the host has actually observed that row.
	pendingReset bool
}

// New returns a Sequencer in the IDLE state.
func New() *Sequencer {
	s := &Sequencer{}
	s.reset()
	return s
}

func (s *Sequencer) reset() {
	s.state = StateIdle
	s.stdOpcode = 0
	s.fixedAcc = 0
	s.fixedRemaining = 0
	s.fixedShift = 0
	s.extRemaining = 0
	s.extAcc = 0
	s.extShift = 0
	s.rowEndSequence = false
	s.rowResetDue = false
	s.pendingReset = false
}

// State reports the sequencer's current FSM state.
func (s *Sequencer) State() State {
	return s.state
}

// Reset returns the sequencer to IDLE, discarding any partially-accumulated
// operand. It does not touch lnsm.State; callers reset that separately (a
// PROGRAM_HEADER write resets both together).
func (s *Sequencer) Reset() {
	s.reset()
}

// Acknowledge clears PAUSED_ROW and returns the sequencer to IDLE. It is a
// no-op if the sequencer is not currently paused, matching a host that
// writes STATUS defensively.
func (s *Sequencer) Acknowledge() {
	if s.state == StatePausedRow {
		s.state = StateIdle
		s.pendingReset = false
	}
}

// PendingReset reports whether the row currently (or most recently) held in
// PAUSED_ROW was emitted by DW_LNE_end_sequence, meaning the LNSM must be
// reset once the host acknowledges it. Valid to call right up until
// Acknowledge, which clears it.
func (s *Sequencer) PendingReset() bool {
	return s.pendingReset
}

// Drain consumes bytes from q, applying each to m, until the queue runs dry
// or a row is emitted (DW_LNS_copy or DW_LNE_end_sequence), whichever comes
// first. It returns true if a row was just emitted during this call; the
// caller is responsible for latching STATUS/the interrupt line and for
// calling Acknowledge once the host has observed the row.
//
// If the sequencer is already in PAUSED_ROW, Drain does nothing and returns
// false: the queue may keep filling, but no bytes are consumed until
// Acknowledge.
func (s *Sequencer) Drain(q *queue.Queue, m *lnsm.State) bool {
	if s.state == StatePausedRow {
		return false
	}
	if s.rowResetDue {
		m.ResetRow()
		s.rowResetDue = false
	}
	for {
		b, ok := q.Pop()
		if !ok {
			return false
		}
		if s.step(b, m) {
			return true
		}
		if s.state == StatePausedRow {
			return true
		}
	}
}

// step applies one byte and reports whether it caused a row to be emitted.
func (s *Sequencer) step(b byte, m *lnsm.State) bool {
	switch s.state {
	case StateIdle:
		return s.stepIdle(b, m)
	case StateStdOperand:
		return s.stepStdOperand(b, m)
	case StateFixedOperand:
		return s.stepFixedOperand(b, m)
	case StateExtLen:
		s.stepExtLen(b)
		return false
	case StateExtOpcode:
		return s.stepExtOpcode(b, m)
	case StateExtOperand:
		return s.stepExtOperand(b, m)
	default:
		return false
	}
}

func (s *Sequencer) stepIdle(b byte, m *lnsm.State) bool {
	switch b {
	case extPrefix:
		s.extLen.Reset(leb128.Unsigned)
		s.state = StateExtLen
	case opCopy:
		s.rowResetDue = true
		s.state = StatePausedRow
		return true
	case opAdvancePC:
		s.beginStdOperand(opAdvancePC, leb128.Unsigned)
	case opAdvanceLine:
		s.beginStdOperand(opAdvanceLine, leb128.Signed)
	case opSetFile:
		s.beginStdOperand(opSetFile, leb128.Unsigned)
	case opSetColumn:
		s.beginStdOperand(opSetColumn, leb128.Unsigned)
	case opNegateStmt:
		m.NegateStmt()
	case opSetBasicBlock:
		m.SetBasicBlock()
	case opConstAddPC:
		// Reserved: no operand, no effect. DWARF-5 defines this as adding the
		// address/op_index advance of special opcode 255 without emitting a
		// row; this implementation does not model special opcodes at all, so
		// it is a deliberate no-op.
	case opFixedAdvancePC:
		s.stdOpcode = opFixedAdvancePC
		s.fixedAcc = 0
		s.fixedRemaining = 2
		s.fixedShift = 0
		s.state = StateFixedOperand
	case opSetPrologueEnd:
		m.SetPrologueEnd()
	case opSetEpilogueBegin:
		m.SetEpilogueBegin()
	case opSetISA:
		s.beginStdOperand(opSetISA, leb128.Unsigned)
	default:
		// 0x0D-0xFF: unimplemented special-opcode range. No operand bytes
		// belong to this opcode under the normal encoding, but since special
		// opcodes aren't decoded here at all, the safest no-op is to consume
		// just the one byte and stay in IDLE.
	}
	return false
}

func (s *Sequencer) beginStdOperand(opcode byte, kind leb128.Kind) {
	s.stdOpcode = opcode
	s.stdOperand.Reset(kind)
	s.state = StateStdOperand
}

func (s *Sequencer) stepStdOperand(b byte, m *lnsm.State) bool {
	if !s.stdOperand.PushByte(b) {
		return false
	}
	switch s.stdOpcode {
	case opAdvancePC:
		m.AdvancePC(uint32(s.stdOperand.Raw()) &^ 1)
	case opAdvanceLine:
		m.AdvanceLine(s.stdOperand.Signed())
	case opSetFile:
		m.SetFile(s.stdOperand.Raw())
	case opSetColumn:
		m.SetColumn(s.stdOperand.Raw())
	case opSetISA:
		// Value intentionally discarded; set_isa has no modeled effect.
	}
	s.state = StateIdle
	return false
}

func (s *Sequencer) stepFixedOperand(b byte, m *lnsm.State) bool {
	s.fixedAcc |= uint32(b) << s.fixedShift
	s.fixedShift += 8
	s.fixedRemaining--
	if s.fixedRemaining > 0 {
		return false
	}
	switch s.stdOpcode {
	case opFixedAdvancePC:
		m.FixedAdvancePC(uint16(s.fixedAcc) &^ 1)
	}
	s.state = StateIdle
	return false
}

func (s *Sequencer) stepExtLen(b byte) {
	if !s.extLen.PushByte(b) {
		return
	}
	s.extRemaining = int(s.extLen.Raw())
	s.state = StateExtOpcode
}

func (s *Sequencer) stepExtOpcode(b byte, m *lnsm.State) bool {
	s.extRemaining--
	s.extAcc = 0
	s.extShift = 0
	switch b {
	case extEndSequence:
		s.extKind = extKindDiscard
		s.rowEndSequence = true
	case extSetAddress:
		s.extKind = extKindSetAddress
	case extSetDiscriminator:
		s.extKind = extKindSetDiscriminator
		s.extULEB.Reset(leb128.Unsigned)
	default:
		s.extKind = extKindDiscard
	}
	if s.extRemaining <= 0 {
		return s.finishExtended(m)
	}
	s.state = StateExtOperand
	return false
}

func (s *Sequencer) stepExtOperand(b byte, m *lnsm.State) bool {
	switch s.extKind {
	case extKindSetAddress:
		s.extAcc |= uint64(b) << s.extShift
		s.extShift += 8
	case extKindSetDiscriminator:
		s.extULEB.PushByte(b)
	}
	s.extRemaining--
	if s.extRemaining > 0 {
		return false
	}
	return s.finishExtended(m)
}

// finishExtended applies the accumulated extended-instruction operand and
// reports whether a row was just emitted. On DW_LNE_end_sequence it only
// marks end_sequence and the pending-reset flag; the LNSM itself is reset
// only once the host acknowledges the row (see Sequencer.PendingReset and
// devices.LineNumberPeripheral.handleStatus), not at the moment of emission.
func (s *Sequencer) finishExtended(m *lnsm.State) bool {
	switch s.extKind {
	case extKindSetAddress:
		m.SetAddressRaw(s.extAcc)
	case extKindSetDiscriminator:
		m.SetDiscriminator(s.extULEB.Raw())
	}
	if s.rowEndSequence {
		s.rowEndSequence = false
		if m != nil {
			m.MarkEndSequence()
		}
		s.pendingReset = true
		s.state = StatePausedRow
		return true
	}
	s.state = StateIdle
	return false
}
