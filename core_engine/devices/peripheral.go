// Package devices provides the register-mapped view of the line-number
// state machine: LineNumberPeripheral wires together the opcode queue, the
// LEB128 shifter, the LNSM register bank, and the decoder/sequencer behind a
// bus.RegisterDevice, reading and writing registers with the same
// lock-then-switch pattern as core_engine/devices/serial.go and
// core_engine/devices/rtc.go.
package devices

import (
	"encoding/binary"
	"fmt"
	"log"
	"sync"

	"example.com/lnsm-peripheral/core_engine/decoder"
	"example.com/lnsm-peripheral/core_engine/lnsm"
	"example.com/lnsm-peripheral/core_engine/queue"
)

// InterruptRaiser mirrors the teacher's level-sensitive IRQ signaling
// interface (see serial.go, ne2000_constants.go): RaiseIRQ asserts the line,
// LowerIRQ deasserts it. The peripheral has exactly one IRQ line.
type InterruptRaiser interface {
	RaiseIRQ(irqLine uint8)
	LowerIRQ(irqLine uint8)
}

// IRQLine is the single interrupt line this peripheral drives.
const IRQLine uint8 = 0

// LineNumberPeripheral is the register-mapped DWARF-5 line-number program
// interpreter. It implements bus.RegisterDevice.
type LineNumberPeripheral struct {
	lock sync.Mutex

	irqRaiser InterruptRaiser
	irqLine   uint8

	queue *queue.Queue
	seq   *decoder.Sequencer
	lnsm  lnsm.State

	defaultIsStmt bool
	programHeader uint32
	status        uint32
	irqAsserted   bool

	// Trace enables verbose per-access logging in the teacher's
	// "Component: message" style. Off by default.
	Trace bool
}

// NewLineNumberPeripheral creates a peripheral wired to irqRaiser for
// interrupt signaling. queueCapacity of 0 uses queue.DefaultCapacity.
func NewLineNumberPeripheral(irqRaiser InterruptRaiser, queueCapacity int) *LineNumberPeripheral {
	p := &LineNumberPeripheral{
		irqRaiser: irqRaiser,
		irqLine:   IRQLine,
		queue:     queue.New(queueCapacity),
		seq:       decoder.New(),
	}
	p.lnsm.Reset(false)
	return p
}

// HandleIO implements bus.RegisterDevice, dispatching on register index.
func (p *LineNumberPeripheral) HandleIO(reg uint8, direction uint8, size uint8, data []byte) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	if len(data) < int(size) {
		return fmt.Errorf("LineNumberPeripheral: data buffer shorter than size %d for register 0x%x", size, reg)
	}

	switch reg {
	case RegProgramHeader:
		return p.handleProgramHeader(direction, size, data)
	case RegProgramCode:
		return p.handleProgramCode(direction, size, data)
	case RegAMAddress:
		return p.handleReadOnlyWord(direction, size, data, p.lnsm.AMAddress(), "AM_ADDRESS")
	case RegAMFileDiscrim:
		return p.handleReadOnlyWord(direction, size, data, p.lnsm.AMFileDiscrim(), "AM_FILE_DISCRIM")
	case RegAMLineColFlags:
		return p.handleReadOnlyWord(direction, size, data, p.lnsm.AMLineColFlags(), "AM_LINE_COL_FLAGS")
	case RegStatus:
		return p.handleStatus(direction, size, data)
	case RegInfo:
		return p.handleReadOnlyWord(direction, size, data, InfoBitmap, "INFO")
	default:
		if direction == uint8(DirectionRead) {
			for i := range data[:size] {
				data[i] = 0
			}
		}
		return nil
	}
}

func (p *LineNumberPeripheral) handleProgramHeader(direction uint8, size uint8, data []byte) error {
	if direction == uint8(DirectionWrite) {
		v := readLE(data[:size])
		p.programHeader = v & ProgramHeaderMask
		p.defaultIsStmt = p.programHeader&1 != 0
		p.lnsm.Reset(p.defaultIsStmt)
		p.seq.Reset()
		p.clearInterrupt()
		if p.Trace {
			log.Printf("LineNumberPeripheral: PROGRAM_HEADER write 0x%x, default_is_stmt=%t, LNSM and sequencer reset", p.programHeader, p.defaultIsStmt)
		}
		return nil
	}
	writeLE(data[:size], p.programHeader)
	return nil
}

func (p *LineNumberPeripheral) handleProgramCode(direction uint8, size uint8, data []byte) error {
	if direction == uint8(DirectionRead) {
		for i := range data[:size] {
			data[i] = 0
		}
		return nil
	}
	bs := data[:size]
	if err := p.queue.Push(bs...); err != nil {
		return fmt.Errorf("LineNumberPeripheral: PROGRAM_CODE write: %w", err)
	}
	p.drain()
	return nil
}

func (p *LineNumberPeripheral) handleStatus(direction uint8, size uint8, data []byte) error {
	if direction == uint8(DirectionRead) {
		writeLE(data[:size], p.status)
		return nil
	}
	v := readLE(data[:size])
	if v&StatusEmitRow != 0 {
		endSequence := p.seq.PendingReset()
		p.status = StatusReady
		p.seq.Acknowledge()
		if endSequence {
			p.lnsm.Reset(p.defaultIsStmt)
		}
		p.clearInterrupt()
		if p.Trace {
			log.Printf("LineNumberPeripheral: STATUS acknowledged, resuming sequencer (lnsm reset=%t)", endSequence)
		}
		p.drain()
	}
	return nil
}

func (p *LineNumberPeripheral) handleReadOnlyWord(direction uint8, size uint8, data []byte, v uint32, name string) error {
	if direction == uint8(DirectionWrite) {
		if p.Trace {
			log.Printf("LineNumberPeripheral: ignoring write to read-only register %s", name)
		}
		return nil
	}
	writeLE(data[:size], v)
	return nil
}

// drain runs the sequencer until it stalls (queue empty) or a row is
// emitted, latching STATUS and the interrupt line on emission.
func (p *LineNumberPeripheral) drain() {
	if p.seq.Drain(p.queue, &p.lnsm) {
		p.status = StatusEmitRow
		p.raiseInterrupt()
		if p.Trace {
			log.Printf("LineNumberPeripheral: row emitted, address=%#x line=%d file=%d", p.lnsm.AMAddress(), p.lnsm.Line, p.lnsm.File)
		}
	}
}

func (p *LineNumberPeripheral) raiseInterrupt() {
	if p.irqAsserted {
		return
	}
	p.irqAsserted = true
	if p.irqRaiser != nil {
		p.irqRaiser.RaiseIRQ(p.irqLine)
	}
}

func (p *LineNumberPeripheral) clearInterrupt() {
	if !p.irqAsserted {
		return
	}
	p.irqAsserted = false
	if p.irqRaiser != nil {
		p.irqRaiser.LowerIRQ(p.irqLine)
	}
}

// readLE decodes a little-endian register value of 1, 2, or 4 bytes.
func readLE(bs []byte) uint32 {
	switch len(bs) {
	case 1:
		return uint32(bs[0])
	case 2:
		return uint32(binary.LittleEndian.Uint16(bs))
	default:
		return binary.LittleEndian.Uint32(bs)
	}
}

// writeLE encodes v into bs, truncating to the buffer's width.
func writeLE(bs []byte, v uint32) {
	switch len(bs) {
	case 1:
		bs[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(bs, uint16(v))
	default:
		binary.LittleEndian.PutUint32(bs, v)
	}
}
