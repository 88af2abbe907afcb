// Package emulator drives a vm.State: it interleaves instruction steps with
// 60 Hz timer ticks, pushes the display to a HAL when it changes and feeds
// HAL key events back into the machine.
package emulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kapitanov/chip8/internal/vm"
)

const (
	DefaultSpeed     = 700
	DefaultTimerRate = 60
)

var ErrInvalidConfig = errors.New("invalid config")

type HAL interface {
	ReadInput(keyDown func(vm.Key), keyUp func(vm.Key)) error
	Draw(display []bool) error
	WaitForNextFrame() error
}

type Config struct {
	Speed     int // Instructions per second
	TimerRate int // Timer decrements per second, also the frame rate
}

func DefaultConfig() Config {
	return Config{
		Speed:     DefaultSpeed,
		TimerRate: DefaultTimerRate,
	}
}

func (c Config) Validate() error {
	if c.TimerRate <= 0 {
		return fmt.Errorf("%w: timer rate must be positive, got %d", ErrInvalidConfig, c.TimerRate)
	}
	if c.Speed < c.TimerRate {
		return fmt.Errorf("%w: speed must be at least %d instructions per second, got %d", ErrInvalidConfig, c.TimerRate, c.Speed)
	}
	return nil
}

// StepsPerFrame is the number of instructions executed between two timer ticks.
func (c Config) StepsPerFrame() int {
	return c.Speed / c.TimerRate
}

type Emulator struct {
	config  Config
	program []byte
	options []vm.Option

	state  *vm.State
	looped bool
}

// New validates the config and checks that the program fits in memory.
// The options are applied to every fresh state created by Run.
func New(program []byte, config Config, opts ...vm.Option) (*Emulator, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	e := &Emulator{
		config:  config,
		program: program,
		options: opts,
	}

	if err := e.initialize(); err != nil {
		return nil, err
	}

	return e, nil
}

// State exposes the machine being driven.
func (e *Emulator) State() *vm.State {
	return e.state
}

// Looped reports whether the program has jumped to itself and stepping stopped.
func (e *Emulator) Looped() bool {
	return e.looped
}

func (e *Emulator) initialize() error {
	state := vm.New(e.options...)
	if err := state.LoadProgram(e.program); err != nil {
		return fmt.Errorf("unable to load program: %w", err)
	}

	// Force the first frame to be drawn
	state.Drawing = true

	e.state = state
	e.looped = false
	return nil
}

// Run powers on a fresh machine and runs frames until the context is done
// or the HAL or the machine fails.
func (e *Emulator) Run(ctx context.Context, hal HAL) error {
	if err := e.initialize(); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := e.RunFrame(hal); err != nil {
			return err
		}
	}
}

// RunFrame reads input, executes one frame worth of instructions, ticks the
// timers once, draws the display if it changed and waits for the next frame.
func (e *Emulator) RunFrame(hal HAL) error {
	if err := hal.ReadInput(e.state.PressKey, e.state.ReleaseKey); err != nil {
		return err
	}

	if !e.looped {
		if err := e.runSteps(e.config.StepsPerFrame()); err != nil {
			return err
		}
	}

	e.state.TickTimers()

	if e.state.Drawing {
		if err := hal.Draw(e.state.Display[:]); err != nil {
			return err
		}
		e.state.Drawing = false
	}

	return hal.WaitForNextFrame()
}

func (e *Emulator) runSteps(n int) error {
	for i := 0; i < n; i++ {
		pc := e.state.PC
		instr := vm.Decode(e.state.Fetch())

		if err := e.state.Step(); err != nil {
			return err
		}

		if instr.Op == vm.OpJmp && e.state.PC == pc {
			slog.Info("program looped", "pc", fmt.Sprintf("0x%04x", pc))
			e.looped = true
			return nil
		}
	}

	return nil
}
