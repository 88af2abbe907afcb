package vm

import (
	"context"
	"fmt"
	"log/slog"
)

const flagRegister = 0xF

// Step fetches the instruction at PC and executes it.
func (s *State) Step() error {
	return s.Execute(s.Fetch())
}

// Fetch returns the instruction word at PC without advancing it.
func (s *State) Fetch() uint16 {
	hi := s.read(s.PC)
	lo := s.read(s.PC + 1)

	return uint16(hi)<<8 | uint16(lo) // Op code is two bytes
}

// Execute runs one instruction word against the state.
// PC is advanced past the instruction before the operation runs.
// When an error is returned the state is left as it was before the call.
func (s *State) Execute(opcode uint16) error {
	instr := Decode(opcode)
	pc := s.PC

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		slog.Debug(
			"exec",
			"pc", fmt.Sprintf("0x%04x", pc),
			"opcode", fmt.Sprintf("0x%04x", opcode),
			"instr", instr.String(),
		)
	}

	s.PC = (pc + InstructionSize) & addressMask

	if err := s.execute(instr); err != nil {
		s.PC = pc
		return fmt.Errorf("%s at 0x%04x: %w", instr, pc, err)
	}

	return nil
}

func (s *State) skipIf(cond bool) {
	if cond {
		s.PC = (s.PC + InstructionSize) & addressMask
	}
}

func (s *State) execute(in Instruction) error {
	x, y := in.X(), in.Y()
	vx, vy := s.V[x], s.V[y]

	switch in.Op {
	case OpCls:
		s.Display = [ScreenWidth * ScreenHeight]bool{}
		s.Drawing = true

	case OpRts:
		if s.SP == 0 {
			return ErrStackUnderflow
		}
		s.SP--
		s.PC = s.Stack[s.SP]

	case OpJmp:
		s.PC = in.NNN()

	case OpJsr:
		if int(s.SP) >= StackSize {
			return ErrStackOverflow
		}
		s.Stack[s.SP] = s.PC
		s.SP++
		s.PC = in.NNN()

	case OpSkeqImm:
		s.skipIf(vx == in.NN())

	case OpSkneImm:
		s.skipIf(vx != in.NN())

	case OpSkeqReg:
		s.skipIf(vx == vy)

	case OpMovImm:
		s.V[x] = in.NN()

	case OpAddImm:
		// No carry generated
		s.V[x] = vx + in.NN()

	case OpMovReg:
		s.V[x] = vy

	case OpOr:
		s.V[x] = vx | vy

	case OpAnd:
		s.V[x] = vx & vy

	case OpXor:
		s.V[x] = vx ^ vy

	case OpAddReg:
		s.V[flagRegister] = boolToFlag(uint16(vx)+uint16(vy) > 0xFF)
		s.V[x] = vx + vy

	case OpSub:
		s.V[flagRegister] = boolToFlag(vx > vy)
		s.V[x] = vx - vy

	case OpShr:
		s.V[flagRegister] = vx & 0x01
		s.V[x] = vx >> 1

	case OpRsb:
		s.V[flagRegister] = boolToFlag(vy > vx)
		s.V[x] = vy - vx

	case OpShl:
		// VF receives the masked high nibble, not bit 7.
		s.V[flagRegister] = vx & 0xF0
		s.V[x] = vx << 1

	case OpSkneReg:
		s.skipIf(vx != vy)

	case OpMvi:
		s.I = in.NNN()

	case OpJmi:
		s.PC = (in.NNN() + uint16(s.V[0])) & addressMask

	case OpRand:
		s.V[x] = s.randomByte() & in.NN()

	case OpSprite:
		s.drawSprite(int(vx), int(vy), in.N())

	case OpSkpr:
		s.skipIf(s.keyPressed(vx))

	case OpSkup:
		s.skipIf(!s.keyPressed(vx))

	case OpGdelay:
		s.V[x] = s.DelayTimer

	case OpKey:
		for i, pressed := range s.Keys {
			if pressed {
				s.V[x] = uint8(i)
				return nil
			}
		}

		// Nothing pressed: rewind so the same instruction runs again on the next step.
		s.PC = (s.PC - InstructionSize) & addressMask

	case OpSdelay:
		s.DelayTimer = vx

	case OpSsound:
		s.SoundTimer = vx

	case OpAdi:
		sum := s.I + uint16(vx)
		s.V[flagRegister] = boolToFlag(sum > addressMask)
		s.I = sum

	case OpFont:
		s.I = fontAddress + uint16(vx)*fontGlyphBytes

	case OpBcd:
		s.write(s.I, vx/100)
		s.write(s.I+1, (vx/10)%10)
		s.write(s.I+2, vx%10)

	case OpStr:
		for i := uint16(0); i <= uint16(x); i++ {
			s.write(s.I+i, s.V[i])
		}

		// On the original interpreter, when the operation is done, I = I + X + 1.
		s.I += uint16(x) + 1

	case OpLdr:
		for i := uint16(0); i <= uint16(x); i++ {
			s.V[i] = s.read(s.I + i)
		}

		s.I += uint16(x) + 1

	default:
		slog.Warn("unknown instruction",
			"pc", fmt.Sprintf("0x%04x", (s.PC-InstructionSize)&addressMask),
			"opcode", fmt.Sprintf("0x%04X", in.Opcode),
		)
	}

	return nil
}

func (s *State) randomByte() uint8 {
	if s.Random == nil {
		return defaultRandom()
	}
	return s.Random()
}

func (s *State) keyPressed(key uint8) bool {
	return int(key) < KeyCount && s.Keys[key]
}

// drawSprite XORs height rows of 8 pixels read from I onto the display
// at (x, y). VF is set when any lit pixel is turned off.
func (s *State) drawSprite(x, y int, height uint8) {
	s.V[flagRegister] = 0

	for row := 0; row < int(height); row++ {
		pixel := s.read(s.I + uint16(row))

		const width = 8
		for col := 0; col < width; col++ {
			mask := uint8(0x80 >> col)
			if pixel&mask == 0 {
				continue
			}

			if s.togglePixel(x+col, y+row) {
				s.V[flagRegister] = 1
			}
		}
	}

	s.Drawing = true
}

// togglePixel flips one pixel and reports whether it was turned off.
func (s *State) togglePixel(x, y int) bool {
	x = wrapOnce(x, ScreenWidth)
	y = wrapOnce(y, ScreenHeight)

	// Far off-screen coordinates are still outside after a single wrap.
	if x < 0 || x >= ScreenWidth || y < 0 || y >= ScreenHeight {
		return false
	}

	addr := y*ScreenWidth + x
	s.Display[addr] = !s.Display[addr]
	return !s.Display[addr]
}

func wrapOnce(v, size int) int {
	if v >= size {
		return v - size
	}
	if v < 0 {
		return v + size
	}
	return v
}

func boolToFlag(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
