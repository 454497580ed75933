// Command lnsmctl is a demonstration harness for the line-number peripheral:
// it is not part of the peripheral's own contract, only a way to feed it
// opcode bytes from a file or a terminal and observe the rows it emits.
//
// Grounded on cmd/z80opt/main.go's cobra root-command-plus-subcommands
// layout.
package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"example.com/lnsm-peripheral/core_engine/bus"
	"example.com/lnsm-peripheral/core_engine/devices"
	"example.com/lnsm-peripheral/internal/termio"
)

// consoleIRQ logs interrupt transitions; it is not wired to anything else
// since this harness drives one peripheral with no other bus master.
type consoleIRQ struct {
	verbose bool
}

func (c *consoleIRQ) RaiseIRQ(line uint8) {
	if c.verbose {
		fmt.Fprintf(os.Stderr, "lnsmctl: IRQ %d asserted\n", line)
	}
}

func (c *consoleIRQ) LowerIRQ(line uint8) {
	if c.verbose {
		fmt.Fprintf(os.Stderr, "lnsmctl: IRQ %d deasserted\n", line)
	}
}

func newRegisterBus(verbose bool) (*bus.Bus, *devices.LineNumberPeripheral) {
	peripheral := devices.NewLineNumberPeripheral(&consoleIRQ{verbose: verbose}, 0)
	peripheral.Trace = verbose
	b := bus.New(devices.RegSpaceSize)
	b.RegisterDevice(devices.RegProgramHeader, devices.RegInfo, peripheral)
	return b, peripheral
}

func writeReg(b *bus.Bus, reg uint8, width uint8, v uint32) error {
	data := make([]byte, width)
	switch width {
	case 1:
		data[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(data, uint16(v))
	default:
		binary.LittleEndian.PutUint32(data, v)
	}
	return b.HandleIO(reg, bus.DirectionOut, width, data)
}

func readReg(b *bus.Bus, reg uint8, width uint8) (uint32, error) {
	data := make([]byte, width)
	if err := b.HandleIO(reg, bus.DirectionIn, width, data); err != nil {
		return 0, err
	}
	switch width {
	case 1:
		return uint32(data[0]), nil
	case 2:
		return uint32(binary.LittleEndian.Uint16(data)), nil
	default:
		return binary.LittleEndian.Uint32(data), nil
	}
}

func printRowIfPending(b *bus.Bus) (bool, error) {
	status, err := readReg(b, devices.RegStatus, 1)
	if err != nil {
		return false, err
	}
	if status != devices.StatusEmitRow {
		return false, nil
	}
	addr, err := readReg(b, devices.RegAMAddress, 4)
	if err != nil {
		return false, err
	}
	fileDiscrim, err := readReg(b, devices.RegAMFileDiscrim, 4)
	if err != nil {
		return false, err
	}
	lineColFlags, err := readReg(b, devices.RegAMLineColFlags, 4)
	if err != nil {
		return false, err
	}
	fmt.Printf("row: address=0x%06x file=%d line=%d column=%d is_stmt=%t end_sequence=%t\n",
		addr,
		fileDiscrim&0xFFFF,
		lineColFlags&0xFFFF,
		(lineColFlags>>16)&0x3FF,
		(lineColFlags>>devices.LineColFlagIsStmt)&1 != 0,
		(lineColFlags>>devices.LineColFlagEndSequence)&1 != 0,
	)
	return true, writeReg(b, devices.RegStatus, 1, devices.StatusEmitRow)
}

func runFile(path string, defaultIsStmt bool, verbose bool) error {
	bs, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("lnsmctl: %w", err)
	}
	b, _ := newRegisterBus(verbose)
	header := uint32(0)
	if defaultIsStmt {
		header = 1
	}
	if err := writeReg(b, devices.RegProgramHeader, 4, header); err != nil {
		return err
	}
	for _, byt := range bs {
		if err := writeReg(b, devices.RegProgramCode, 1, uint32(byt)); err != nil {
			return err
		}
		for {
			emitted, err := printRowIfPending(b)
			if err != nil {
				return err
			}
			if !emitted {
				break
			}
		}
	}
	return nil
}

func feedInteractive(defaultIsStmt bool, verbose bool) error {
	restore, err := termio.RawMode(int(os.Stdin.Fd()))
	if err != nil {
		return fmt.Errorf("lnsmctl: feed requires a terminal: %w", err)
	}
	defer restore()

	b, _ := newRegisterBus(verbose)
	header := uint32(0)
	if defaultIsStmt {
		header = 1
	}
	if err := writeReg(b, devices.RegProgramHeader, 4, header); err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Fprintln(os.Stderr, "lnsmctl: feed bytes as two hex digits, Ctrl-D to quit")
	for {
		// Raw mode turns off canonical input, so Ctrl-D arrives as byte 0x04.
		hi, err := reader.ReadByte()
		if err != nil || hi == 0x04 {
			return nil
		}
		lo, err := reader.ReadByte()
		if err != nil || lo == 0x04 {
			return nil
		}
		v, err := parseHexByte(hi, lo)
		if err != nil {
			fmt.Fprintf(os.Stderr, "lnsmctl: %v\n", err)
			continue
		}
		if err := writeReg(b, devices.RegProgramCode, 1, uint32(v)); err != nil {
			return err
		}
		for {
			emitted, err := printRowIfPending(b)
			if err != nil {
				return err
			}
			if !emitted {
				break
			}
		}
	}
}

func parseHexByte(hi, lo byte) (byte, error) {
	h, err := hexDigit(hi)
	if err != nil {
		return 0, err
	}
	l, err := hexDigit(lo)
	if err != nil {
		return 0, err
	}
	return h<<4 | l, nil
}

func hexDigit(b byte) (byte, error) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', nil
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, nil
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, nil
	default:
		return 0, fmt.Errorf("not a hex digit: %q", b)
	}
}

func regsDump(verbose bool) error {
	b, _ := newRegisterBus(verbose)
	info, err := readReg(b, devices.RegInfo, 4)
	if err != nil {
		return err
	}
	status, err := readReg(b, devices.RegStatus, 4)
	if err != nil {
		return err
	}
	fmt.Printf("INFO=0x%08x STATUS=0x%08x\n", info, status)
	return nil
}

func main() {
	var verbose bool
	var defaultIsStmt bool

	root := &cobra.Command{
		Use:   "lnsmctl",
		Short: "Drive the DWARF-5 line-number peripheral from a byte stream",
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "trace register accesses and IRQ transitions")
	root.PersistentFlags().BoolVar(&defaultIsStmt, "default-is-stmt", true, "value seeded into PROGRAM_HEADER's default_is_stmt bit")

	runCmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Feed a file of opcode bytes through the peripheral and print emitted rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFile(args[0], defaultIsStmt, verbose)
		},
	}

	feedCmd := &cobra.Command{
		Use:   "feed",
		Short: "Feed opcode bytes interactively from the terminal, two hex digits at a time",
		RunE: func(cmd *cobra.Command, args []string) error {
			return feedInteractive(defaultIsStmt, verbose)
		},
	}

	regsCmd := &cobra.Command{
		Use:   "regs",
		Short: "Print the INFO and STATUS registers of a freshly reset peripheral",
		RunE: func(cmd *cobra.Command, args []string) error {
			return regsDump(verbose)
		},
	}

	root.AddCommand(runCmd, feedCmd, regsCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
