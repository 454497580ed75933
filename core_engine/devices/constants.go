// Updated core_engine/devices/constants.go
package devices

// Register addresses in the peripheral's 64-slot register space. Only 0..6
// are backed by real state; 7..63 read as zero and ignore writes.
const (
	RegProgramHeader  uint8 = 0x00 // R/W: bit 0 = default_is_stmt, [31:8] scratch
	RegProgramCode    uint8 = 0x01 // W: opcode byte port
	RegAMAddress      uint8 = 0x02 // R: address, zero-extended
	RegAMFileDiscrim  uint8 = 0x03 // R: [15:0]=file, [31:16]=discriminator
	RegAMLineColFlags uint8 = 0x04 // R: line/column/flag bits
	RegStatus         uint8 = 0x05 // R/W*: EMIT_ROW latch
	RegInfo           uint8 = 0x06 // R: implemented-opcode bitmap

	RegFirstUnmapped uint8 = 0x07
	RegSpaceSize     uint8 = 0x40 // 64 addresses total
)

// ProgramHeaderMask is the set of PROGRAM_HEADER bits the device actually
// stores: bits [31:8] are host-defined scratch that must read back exactly
// as written, bits [7:1] are reserved and always read 0, and bit 0 is
// default_is_stmt.
const ProgramHeaderMask uint32 = 0xFFFFFF01

// STATUS register values.
const (
	StatusReady   uint32 = 0
	StatusEmitRow uint32 = 1
)

// INFO is a constant word whose value is part of the external contract. It
// is a fixed literal, not derived from which opcodes the decoder handles.
const InfoBitmap uint32 = 0x00000155

// Standard opcodes (single byte, 0x01..0x0C in this implementation).
const (
	DwLnsCopy             byte = 0x01
	DwLnsAdvancePc        byte = 0x02
	DwLnsAdvanceLine      byte = 0x03
	DwLnsSetFile          byte = 0x04
	DwLnsSetColumn        byte = 0x05
	DwLnsNegateStmt       byte = 0x06
	DwLnsSetBasicBlock    byte = 0x07
	DwLnsConstAddPc       byte = 0x08
	DwLnsFixedAdvancePc   byte = 0x09
	DwLnsSetPrologueEnd   byte = 0x0A
	DwLnsSetEpilogueBegin byte = 0x0B
	DwLnsSetIsa           byte = 0x0C
)

// Extended opcode prefix byte and the extended opcodes implemented.
const (
	DwLneStart            byte = 0x00
	DwLneEndSequence      byte = 0x01
	DwLneSetAddress       byte = 0x02
	DwLneSetDiscriminator byte = 0x04
)

// AM_LINE_COL_FLAGS bit positions.
const (
	LineColFlagIsStmt        = 26
	LineColFlagBasicBlock    = 27
	LineColFlagEndSequence   = 28
	LineColFlagPrologueEnd   = 29
	LineColFlagEpilogueBegin = 30
)

// Access widths and direction, mirroring the teacher's port-I/O model
// (core_engine/devices/iobus.go) but addressed by register index instead
// of port number.
type Direction uint8

const (
	DirectionRead Direction = iota
	DirectionWrite
)

type Width uint8

const (
	WidthByte Width = 1
	WidthHalf Width = 2
	WidthWord Width = 4
)
