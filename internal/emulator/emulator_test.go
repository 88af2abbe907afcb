package emulator

import (
	"context"
	"errors"
	"testing"

	"github.com/kapitanov/chip8/internal/vm"
	"github.com/retroenv/retrogolib/assert"
)

var errStop = errors.New("stop")

type fakeHAL struct {
	frames    int
	maxFrames int

	draws   int
	lastGfx []bool

	onInput func(frame int, keyDown, keyUp func(vm.Key))
	drawErr error
}

func (h *fakeHAL) ReadInput(keyDown func(vm.Key), keyUp func(vm.Key)) error {
	if h.onInput != nil {
		h.onInput(h.frames, keyDown, keyUp)
	}
	return nil
}

func (h *fakeHAL) Draw(display []bool) error {
	if h.drawErr != nil {
		return h.drawErr
	}
	h.draws++
	h.lastGfx = append(h.lastGfx[:0], display...)
	return nil
}

func (h *fakeHAL) WaitForNextFrame() error {
	h.frames++
	if h.maxFrames > 0 && h.frames >= h.maxFrames {
		return errStop
	}
	return nil
}

func testConfig() Config {
	return Config{Speed: 600, TimerRate: 60}
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.Equal(t, 11, DefaultConfig().StepsPerFrame())
	assert.Equal(t, 10, testConfig().StepsPerFrame())

	err := Config{Speed: 30, TimerRate: 60}.Validate()
	assert.True(t, errors.Is(err, ErrInvalidConfig))

	err = Config{Speed: 700, TimerRate: 0}.Validate()
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestNewRejectsLargeProgram(t *testing.T) {
	_, err := New(make([]byte, vm.MaxProgramSize+1), testConfig())
	assert.True(t, errors.Is(err, vm.ErrProgramTooLarge))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	_, err := New(nil, Config{})
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestRunFrameStepsAndTicksTimers(t *testing.T) {
	// 20 x "add v0, 1"
	program := make([]byte, 0, 40)
	for i := 0; i < 20; i++ {
		program = append(program, 0x70, 0x01)
	}

	e, err := New(program, testConfig(), vm.WithTimers(5, 1))
	assert.NoError(t, err)

	hal := &fakeHAL{}
	assert.NoError(t, e.RunFrame(hal))

	s := e.State()
	assert.Equal(t, uint8(10), s.V[0])
	assert.Equal(t, uint8(4), s.DelayTimer)
	assert.Equal(t, uint8(0), s.SoundTimer)
	assert.Equal(t, 1, hal.frames)

	assert.NoError(t, e.RunFrame(hal))
	assert.Equal(t, uint8(20), s.V[0])
	assert.Equal(t, uint8(3), s.DelayTimer)
	assert.Equal(t, uint8(0), s.SoundTimer)
}

func TestRunFrameDrawsOnlyWhenDirty(t *testing.T) {
	program := []byte{
		0xA2, 0x0A, // mvi 0x20a
		0xD0, 0x01, // sprite v0, v0, 1
		0x12, 0x04, // jmp 0x204
		0x00, 0x00,
		0x00, 0x00,
		0x80, // sprite data
	}

	e, err := New(program, Config{Speed: 120, TimerRate: 60})
	assert.NoError(t, err)

	hal := &fakeHAL{}
	assert.NoError(t, e.RunFrame(hal))
	assert.Equal(t, 1, hal.draws)
	assert.True(t, hal.lastGfx[0])
	assert.False(t, hal.lastGfx[1])
	assert.False(t, e.State().Drawing)

	assert.NoError(t, e.RunFrame(hal))
	assert.Equal(t, 1, hal.draws)
}

func TestRunFrameFeedsKeys(t *testing.T) {
	program := []byte{
		0xF1, 0x0A, // key v1
		0x12, 0x02, // jmp 0x202
	}

	e, err := New(program, testConfig())
	assert.NoError(t, err)

	hal := &fakeHAL{
		onInput: func(frame int, keyDown, keyUp func(vm.Key)) {
			switch frame {
			case 1:
				keyDown(vm.KeyB)
			case 2:
				keyUp(vm.KeyB)
			}
		},
	}

	assert.NoError(t, e.RunFrame(hal))
	assert.Equal(t, vm.ProgramStart, e.State().PC)

	assert.NoError(t, e.RunFrame(hal))
	assert.True(t, e.State().Keys[vm.KeyB])
	assert.Equal(t, uint8(0xB), e.State().V[1])
	assert.True(t, e.Looped())

	assert.NoError(t, e.RunFrame(hal))
	assert.False(t, e.State().Keys[vm.KeyB])
}

func TestRunFrameStopsSteppingWhenLooped(t *testing.T) {
	program := []byte{
		0x70, 0x01, // add v0, 1
		0x12, 0x02, // jmp 0x202
	}

	e, err := New(program, testConfig(), vm.WithTimers(10, 0))
	assert.NoError(t, err)

	hal := &fakeHAL{}
	assert.NoError(t, e.RunFrame(hal))
	assert.True(t, e.Looped())
	assert.Equal(t, uint8(1), e.State().V[0])
	assert.Equal(t, uint16(0x202), e.State().PC)

	assert.NoError(t, e.RunFrame(hal))
	assert.Equal(t, uint8(8), e.State().DelayTimer)
}

func TestRunStopsOnHALError(t *testing.T) {
	e, err := New([]byte{0x12, 0x00}, testConfig())
	assert.NoError(t, err)

	hal := &fakeHAL{maxFrames: 3}
	err = e.Run(context.Background(), hal)
	assert.True(t, errors.Is(err, errStop))
	assert.Equal(t, 3, hal.frames)
}

func TestRunStopsOnDrawError(t *testing.T) {
	e, err := New([]byte{0x12, 0x00}, testConfig())
	assert.NoError(t, err)

	hal := &fakeHAL{drawErr: errStop}
	err = e.Run(context.Background(), hal)
	assert.True(t, errors.Is(err, errStop))
}

func TestRunStopsOnContextCancel(t *testing.T) {
	e, err := New([]byte{0x12, 0x00}, testConfig())
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = e.Run(ctx, &fakeHAL{})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRunSurfacesStackUnderflow(t *testing.T) {
	e, err := New([]byte{0x00, 0xEE}, testConfig())
	assert.NoError(t, err)

	err = e.Run(context.Background(), &fakeHAL{})
	assert.True(t, errors.Is(err, vm.ErrStackUnderflow))
	assert.Equal(t, vm.ProgramStart, e.State().PC)
}

func TestRunStartsFromFreshState(t *testing.T) {
	e, err := New([]byte{0x70, 0x01, 0x12, 0x00}, testConfig())
	assert.NoError(t, err)

	hal := &fakeHAL{maxFrames: 1}
	assert.True(t, errors.Is(e.Run(context.Background(), hal), errStop))
	first := e.State().V[0]

	hal = &fakeHAL{maxFrames: 1}
	assert.True(t, errors.Is(e.Run(context.Background(), hal), errStop))
	assert.Equal(t, first, e.State().V[0])
}
