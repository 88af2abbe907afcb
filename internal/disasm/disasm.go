// Package disasm prints a linear listing of a raw program image using the
// interpreter's own decoder.
package disasm

import (
	"fmt"
	"io"

	"github.com/kapitanov/chip8/internal/vm"
)

// Write emits one line per instruction word, addressed from vm.ProgramStart.
// A trailing odd byte is printed as data.
func Write(w io.Writer, program []byte) error {
	if len(program) > vm.MaxProgramSize {
		return fmt.Errorf("%w: %d bytes, limit is %d", vm.ErrProgramTooLarge, len(program), vm.MaxProgramSize)
	}

	addr := vm.ProgramStart
	for i := 0; i+1 < len(program); i += vm.InstructionSize {
		opcode := uint16(program[i])<<8 | uint16(program[i+1])
		instr := vm.Decode(opcode)

		if _, err := fmt.Fprintf(w, "0x%04x  %04X  %s\n", addr, opcode, instr); err != nil {
			return err
		}
		addr += vm.InstructionSize
	}

	if len(program)%2 == 1 {
		if _, err := fmt.Fprintf(w, "0x%04x  %02X    db 0x%02x\n", addr, program[len(program)-1], program[len(program)-1]); err != nil {
			return err
		}
	}

	return nil
}
