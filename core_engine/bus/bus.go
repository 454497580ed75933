// Package bus implements the register bus that routes host accesses to the
// peripheral's register file by register index rather than by I/O port.
//
// Grounded on core_engine/devices/iobus.go's IOBus: a map from address to a
// single registered handler, with the same HandleIO(direction, size, data)
// signature adapted from port numbers to register indices.
package bus

import (
	"fmt"
	"log"
)

// RegisterDevice is anything addressable on the register bus.
type RegisterDevice interface {
	HandleIO(reg uint8, direction uint8, size uint8, data []byte) error
}

// Direction matches devices.DirectionRead/DirectionWrite.
const (
	DirectionIn  uint8 = 0
	DirectionOut uint8 = 1
)

// Bus maps register indices to a device. Unlike IOBus, a single peripheral
// occupies the whole bus in this module. The bus rejects indices outside
// its range with an error; indices inside the range with no registered
// device read as zero and discard writes.
type Bus struct {
	size    uint8
	devices map[uint8]RegisterDevice
}

// New creates a Bus spanning [0, size).
func New(size uint8) *Bus {
	return &Bus{
		size:    size,
		devices: make(map[uint8]RegisterDevice),
	}
}

// RegisterDevice registers dev for every address in [start, end].
func (b *Bus) RegisterDevice(start, end uint8, dev RegisterDevice) {
	if dev == nil {
		log.Printf("Bus: Warning: attempted to register a nil device for registers 0x%x-0x%x", start, end)
		return
	}
	for reg := start; ; reg++ {
		if existing, ok := b.devices[reg]; ok {
			log.Printf("Bus: Warning: register 0x%x already registered to %T, overwriting with %T", reg, existing, dev)
		}
		b.devices[reg] = dev
		if reg == end {
			break
		}
	}
}

// HandleIO routes a register access to its registered device. Addresses with
// no registered device read as zero and discard writes, matching the
// register file's documented behavior for the unbacked tail of its address
// space.
func (b *Bus) HandleIO(reg uint8, direction uint8, size uint8, data []byte) error {
	if reg >= b.size {
		return fmt.Errorf("bus: register 0x%x out of range [0, 0x%x)", reg, b.size)
	}
	dev, ok := b.devices[reg]
	if !ok {
		if direction == DirectionIn {
			for i := range data {
				data[i] = 0
			}
		}
		return nil
	}
	return dev.HandleIO(reg, direction, size, data)
}
