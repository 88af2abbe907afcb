package disasm

import (
	"bytes"
	"errors"
	"testing"

	"github.com/kapitanov/chip8/internal/vm"
	"github.com/retroenv/retrogolib/assert"
)

func TestWrite(t *testing.T) {
	program := []byte{
		0x00, 0xE0,
		0xA2, 0x2A,
		0x60, 0x0C,
		0xD0, 0x15,
		0x12, 0x08,
		0xFF,
	}

	var buf bytes.Buffer
	assert.NoError(t, Write(&buf, program))

	expected := "0x0200  00E0  cls\n" +
		"0x0202  A22A  mvi 0x022a\n" +
		"0x0204  600C  mov v0, 12\n" +
		"0x0206  D015  sprite v0, v1, 5\n" +
		"0x0208  1208  jmp 0x0208\n" +
		"0x020a  FF    db 0xff\n"
	assert.Equal(t, expected, buf.String())
}

func TestWriteUnknown(t *testing.T) {
	var buf bytes.Buffer
	assert.NoError(t, Write(&buf, []byte{0x51, 0x23}))
	assert.Equal(t, "0x0200  5123  unknown 0x5123\n", buf.String())
}

func TestWriteTooLarge(t *testing.T) {
	var buf bytes.Buffer
	err := Write(&buf, make([]byte, vm.MaxProgramSize+1))
	assert.True(t, errors.Is(err, vm.ErrProgramTooLarge))
	assert.Equal(t, 0, buf.Len())
}
