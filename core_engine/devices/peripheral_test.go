package devices_test

import (
	"sync"
	"testing"

	"example.com/lnsm-peripheral/core_engine/devices"
)

// mockInterruptRaiser implements devices.InterruptRaiser for testing,
// recording every assert/deassert in order.
type mockInterruptRaiser struct {
	mu      sync.Mutex
	raised  []uint8
	lowered []uint8
}

func (m *mockInterruptRaiser) RaiseIRQ(line uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raised = append(m.raised, line)
}

func (m *mockInterruptRaiser) LowerIRQ(line uint8) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lowered = append(m.lowered, line)
}

func readWord(t *testing.T, p *devices.LineNumberPeripheral, reg uint8) uint32 {
	t.Helper()
	data := make([]byte, 4)
	if err := p.HandleIO(reg, uint8(devices.DirectionRead), uint8(devices.WidthWord), data); err != nil {
		t.Fatalf("HandleIO read reg 0x%x: %v", reg, err)
	}
	return uint32(data[0]) | uint32(data[1])<<8 | uint32(data[2])<<16 | uint32(data[3])<<24
}

func writeByte(t *testing.T, p *devices.LineNumberPeripheral, reg uint8, b byte) {
	t.Helper()
	if err := p.HandleIO(reg, uint8(devices.DirectionWrite), uint8(devices.WidthByte), []byte{b}); err != nil {
		t.Fatalf("HandleIO write reg 0x%x = %#x: %v", reg, b, err)
	}
}

func writeWord(t *testing.T, p *devices.LineNumberPeripheral, reg uint8, v uint32) {
	t.Helper()
	data := []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
	if err := p.HandleIO(reg, uint8(devices.DirectionWrite), uint8(devices.WidthWord), data); err != nil {
		t.Fatalf("HandleIO write reg 0x%x = %#x: %v", reg, v, err)
	}
}

func TestInfoRegisterIsConstant(t *testing.T) {
	irq := &mockInterruptRaiser{}
	p := devices.NewLineNumberPeripheral(irq, 0)
	if got := readWord(t, p, devices.RegInfo); got != devices.InfoBitmap {
		t.Fatalf("INFO = %#x, want %#x", got, devices.InfoBitmap)
	}
}

func TestCopyRaisesInterruptAndSetsStatus(t *testing.T) {
	irq := &mockInterruptRaiser{}
	p := devices.NewLineNumberPeripheral(irq, 0)

	writeByte(t, p, devices.RegProgramCode, devices.DwLnsCopy)

	if got := readWord(t, p, devices.RegStatus); got != devices.StatusEmitRow {
		t.Fatalf("STATUS = %#x, want EMIT_ROW", got)
	}
	irq.mu.Lock()
	raisedCount := len(irq.raised)
	irq.mu.Unlock()
	if raisedCount != 1 {
		t.Fatalf("RaiseIRQ called %d times, want 1", raisedCount)
	}
}

func TestAcknowledgeClearsStatusAndInterrupt(t *testing.T) {
	irq := &mockInterruptRaiser{}
	p := devices.NewLineNumberPeripheral(irq, 0)
	writeByte(t, p, devices.RegProgramCode, devices.DwLnsCopy)

	writeWord(t, p, devices.RegStatus, devices.StatusEmitRow)

	if got := readWord(t, p, devices.RegStatus); got != devices.StatusReady {
		t.Fatalf("STATUS after ack = %#x, want READY", got)
	}
	irq.mu.Lock()
	loweredCount := len(irq.lowered)
	irq.mu.Unlock()
	if loweredCount != 1 {
		t.Fatalf("LowerIRQ called %d times, want 1", loweredCount)
	}
}

func TestProgramHeaderSeedsDefaultIsStmt(t *testing.T) {
	irq := &mockInterruptRaiser{}
	p := devices.NewLineNumberPeripheral(irq, 0)
	writeWord(t, p, devices.RegProgramHeader, 1)

	writeByte(t, p, devices.RegProgramCode, devices.DwLnsCopy)
	writeWord(t, p, devices.RegStatus, devices.StatusEmitRow)

	flags := readWord(t, p, devices.RegAMLineColFlags)
	if flags&(1<<devices.LineColFlagIsStmt) == 0 {
		t.Fatalf("AM_LINE_COL_FLAGS = %#x, expected is_stmt bit set after default_is_stmt=1 reset", flags)
	}
}

func TestAdvancePCAndCopySequence(t *testing.T) {
	irq := &mockInterruptRaiser{}
	p := devices.NewLineNumberPeripheral(irq, 0)

	writeByte(t, p, devices.RegProgramCode, devices.DwLnsAdvancePc)
	writeByte(t, p, devices.RegProgramCode, 0x04) // ULEB operand 4
	writeByte(t, p, devices.RegProgramCode, devices.DwLnsCopy)

	if got := readWord(t, p, devices.RegAMAddress); got != 4 {
		t.Fatalf("AM_ADDRESS = %#x, want 0x4", got)
	}
}

func TestQueuePacesPastPausedRow(t *testing.T) {
	irq := &mockInterruptRaiser{}
	p := devices.NewLineNumberPeripheral(irq, 0)

	writeByte(t, p, devices.RegProgramCode, devices.DwLnsCopy)
	// Queued while paused; must not apply until acknowledged.
	writeByte(t, p, devices.RegProgramCode, devices.DwLnsNegateStmt)

	flagsBefore := readWord(t, p, devices.RegAMLineColFlags)

	writeWord(t, p, devices.RegStatus, devices.StatusEmitRow)

	flagsAfter := readWord(t, p, devices.RegAMLineColFlags)
	if flagsBefore&(1<<devices.LineColFlagIsStmt) == flagsAfter&(1<<devices.LineColFlagIsStmt) {
		t.Fatalf("negate_stmt queued during PAUSED_ROW should apply once acknowledged")
	}
}

func TestProgramHeaderRoundTripsScratchBits(t *testing.T) {
	irq := &mockInterruptRaiser{}
	p := devices.NewLineNumberPeripheral(irq, 0)

	writeWord(t, p, devices.RegProgramHeader, 0xFFFFFFFF)
	if got, want := readWord(t, p, devices.RegProgramHeader), uint32(0xFFFFFF01); got != want {
		t.Fatalf("PROGRAM_HEADER readback = %#x, want %#x", got, want)
	}

	writeWord(t, p, devices.RegProgramHeader, 0xABCD2301)
	if got, want := readWord(t, p, devices.RegProgramHeader), uint32(0xABCD2301); got != want {
		t.Fatalf("PROGRAM_HEADER readback = %#x, want %#x unchanged", got, want)
	}
}

func TestEndSequenceResetIsDeferredUntilAcknowledged(t *testing.T) {
	irq := &mockInterruptRaiser{}
	p := devices.NewLineNumberPeripheral(irq, 0)

	writeByte(t, p, devices.RegProgramCode, devices.DwLnsSetFile)
	writeByte(t, p, devices.RegProgramCode, 10) // set_file 10
	writeByte(t, p, devices.RegProgramCode, devices.DwLnsAdvanceLine)
	writeByte(t, p, devices.RegProgramCode, 0x04) // advance_line +4 (1 + 4 = 5)
	writeByte(t, p, devices.RegProgramCode, devices.DwLnsSetColumn)
	writeByte(t, p, devices.RegProgramCode, 11) // set_column 11
	writeByte(t, p, devices.RegProgramCode, 0x00)
	writeByte(t, p, devices.RegProgramCode, 0x02)
	writeByte(t, p, devices.RegProgramCode, devices.DwLneSetDiscriminator)
	writeByte(t, p, devices.RegProgramCode, 6) // set_discriminator 6
	writeByte(t, p, devices.RegProgramCode, 0x00)
	writeByte(t, p, devices.RegProgramCode, 0x01)
	writeByte(t, p, devices.RegProgramCode, devices.DwLneEndSequence)

	if got := readWord(t, p, devices.RegStatus); got != devices.StatusEmitRow {
		t.Fatalf("STATUS = %#x, want EMIT_ROW", got)
	}

	fileDiscrim := readWord(t, p, devices.RegAMFileDiscrim)
	if file := fileDiscrim & 0xFFFF; file != 10 {
		t.Fatalf("pre-ack file = %d, want 10 (unreset)", file)
	}
	if discrim := fileDiscrim >> 16; discrim != 6 {
		t.Fatalf("pre-ack discriminator = %d, want 6 (unreset)", discrim)
	}
	lineColFlags := readWord(t, p, devices.RegAMLineColFlags)
	if line := lineColFlags & 0xFFFF; line != 5 {
		t.Fatalf("pre-ack line = %d, want 5 (unreset)", line)
	}
	if col := (lineColFlags >> 16) & 0x3FF; col != 11 {
		t.Fatalf("pre-ack column = %d, want 11 (unreset)", col)
	}
	if lineColFlags&(1<<devices.LineColFlagEndSequence) == 0 {
		t.Fatalf("expected end_sequence bit set before acknowledgement")
	}

	writeWord(t, p, devices.RegStatus, devices.StatusEmitRow)

	fileDiscrimAfter := readWord(t, p, devices.RegAMFileDiscrim)
	if file := fileDiscrimAfter & 0xFFFF; file != 1 {
		t.Fatalf("post-ack file = %d, want 1 (reset)", file)
	}
	if discrim := fileDiscrimAfter >> 16; discrim != 0 {
		t.Fatalf("post-ack discriminator = %d, want 0 (reset)", discrim)
	}
	lineColFlagsAfter := readWord(t, p, devices.RegAMLineColFlags)
	if line := lineColFlagsAfter & 0xFFFF; line != 1 {
		t.Fatalf("post-ack line = %d, want 1 (reset)", line)
	}
	if lineColFlagsAfter&(1<<devices.LineColFlagEndSequence) != 0 {
		t.Fatalf("expected end_sequence bit clear after reset")
	}
}

func TestUnmappedRegisterReadsZero(t *testing.T) {
	irq := &mockInterruptRaiser{}
	p := devices.NewLineNumberPeripheral(irq, 0)
	data := []byte{0xFF, 0xFF, 0xFF, 0xFF}
	if err := p.HandleIO(devices.RegFirstUnmapped, uint8(devices.DirectionRead), uint8(devices.WidthWord), data); err != nil {
		t.Fatalf("HandleIO: %v", err)
	}
	for _, b := range data {
		if b != 0 {
			t.Fatalf("unmapped register read %v, want all zero", data)
		}
	}
}
