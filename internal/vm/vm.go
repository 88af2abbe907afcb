package vm

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
)

const (
	MemorySize    = 4096
	StackSize     = 16
	RegisterCount = 16
	ScreenWidth   = 64
	ScreenHeight  = 32
	KeyCount      = 16

	ProgramStart    = uint16(0x200)
	MaxProgramSize  = MemorySize - int(ProgramStart)
	InstructionSize = 2

	addressMask = 0x0FFF
)

var (
	ErrProgramTooLarge = errors.New("program too large")
	ErrStackOverflow   = errors.New("stack overflow")
	ErrStackUnderflow  = errors.New("stack underflow")
)

// RandomSource returns a uniformly distributed byte.
type RandomSource func() uint8

func defaultRandom() uint8 {
	return uint8(rand.IntN(256))
}

// State holds everything an executing program can observe or change.
// It is not safe for concurrent use.
type State struct {
	Memory [MemorySize]uint8    // Memory (4k)
	V      [RegisterCount]uint8 // V registers (V0-VF)

	Stack [StackSize]uint16 // Stack
	SP    uint8             // Stack pointer

	PC uint16 // Program counter
	I  uint16 // Index register

	DelayTimer uint8 // Delay timer
	SoundTimer uint8 // Sound timer

	Keys    [KeyCount]bool                  // Keypad
	Display [ScreenWidth * ScreenHeight]bool // Graphics buffer
	Drawing bool                            // Display changed since the consumer last cleared it

	Random RandomSource
}

// Option overrides a field of a freshly initialized State.
type Option func(s *State)

// WithRegister presets Vx.
func WithRegister(x int, value uint8) Option {
	return func(s *State) {
		s.V[x&0xF] = value
	}
}

// WithRegisters presets V0..V(len(values)-1).
func WithRegisters(values ...uint8) Option {
	return func(s *State) {
		copy(s.V[:], values)
	}
}

func WithIndex(i uint16) Option {
	return func(s *State) {
		s.I = i
	}
}

func WithPC(pc uint16) Option {
	return func(s *State) {
		s.PC = pc
	}
}

// WithMemory copies data into memory at addr. Bytes past the end of memory are dropped.
func WithMemory(addr uint16, data []byte) Option {
	return func(s *State) {
		if int(addr) < MemorySize {
			copy(s.Memory[addr:], data)
		}
	}
}

// WithStack presets the return stack; SP is set to the number of entries.
func WithStack(addrs ...uint16) Option {
	return func(s *State) {
		n := copy(s.Stack[:], addrs)
		s.SP = uint8(n)
	}
}

func WithKeys(keys ...Key) Option {
	return func(s *State) {
		for _, k := range keys {
			s.PressKey(k)
		}
	}
}

func WithTimers(delay, sound uint8) Option {
	return func(s *State) {
		s.DelayTimer = delay
		s.SoundTimer = sound
	}
}

func WithRandom(r RandomSource) Option {
	return func(s *State) {
		s.Random = r
	}
}

// New returns a power-on state with the built-in font loaded and the given overrides applied.
func New(opts ...Option) *State {
	s := &State{}
	s.initialize()

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Reset discards the current contents and reinitializes the state in place.
func (s *State) Reset(opts ...Option) {
	*s = *New(opts...)
}

func (s *State) initialize() {
	s.PC = ProgramStart
	s.Random = defaultRandom

	// Load font set into memory
	slog.Debug("load font", "at", fmt.Sprintf("0x%04x", fontAddress), "n", len(chip8Font))
	copy(s.Memory[fontAddress:], chip8Font[:])
}

// LoadProgram copies a raw program image to ProgramStart.
// Nothing is written when the image does not fit.
func (s *State) LoadProgram(program []byte) error {
	if len(program) > MaxProgramSize {
		return fmt.Errorf("%w: %d bytes, limit is %d", ErrProgramTooLarge, len(program), MaxProgramSize)
	}

	slog.Info("load program", "at", fmt.Sprintf("0x%04x", ProgramStart), "n", len(program))
	copy(s.Memory[ProgramStart:], program)
	return nil
}

// TickTimers decrements both timers, stopping at zero.
// It reports whether the sound timer is still running.
func (s *State) TickTimers() bool {
	if s.DelayTimer > 0 {
		s.DelayTimer--
	}

	if s.SoundTimer > 0 {
		s.SoundTimer--
	}

	return s.SoundTimer > 0
}

type Key uint8

const (
	Key0 = Key(iota)
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	KeyA
	KeyB
	KeyC
	KeyD
	KeyE
	KeyF
)

func (s *State) PressKey(key Key) {
	if int(key) < KeyCount {
		s.Keys[key] = true
	}
}

func (s *State) ReleaseKey(key Key) {
	if int(key) < KeyCount {
		s.Keys[key] = false
	}
}

// Pixel reports whether the pixel at (x, y) is lit. Coordinates outside the grid are unlit.
func (s *State) Pixel(x, y int) bool {
	if x < 0 || x >= ScreenWidth || y < 0 || y >= ScreenHeight {
		return false
	}
	return s.Display[y*ScreenWidth+x]
}

func (s *State) read(addr uint16) uint8 {
	return s.Memory[addr&addressMask]
}

func (s *State) write(addr uint16, value uint8) {
	s.Memory[addr&addressMask] = value
}
