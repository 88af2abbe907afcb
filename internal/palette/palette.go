// Package palette converts the two display colours of the monochrome screen
// into ARGB8888 texels.
package palette

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	DefaultForeground = "#bea700"
	DefaultBackground = "#000000"
)

type Palette struct {
	Foreground colorful.Color
	Background colorful.Color
}

func Default() Palette {
	p, _ := Parse(DefaultForeground, DefaultBackground)
	return p
}

// Parse reads the foreground and background colours from "#rrggbb" strings.
func Parse(fg, bg string) (Palette, error) {
	fgColor, err := colorful.Hex(fg)
	if err != nil {
		return Palette{}, fmt.Errorf("invalid foreground color %q: %w", fg, err)
	}

	bgColor, err := colorful.Hex(bg)
	if err != nil {
		return Palette{}, fmt.Errorf("invalid background color %q: %w", bg, err)
	}

	return Palette{
		Foreground: fgColor,
		Background: bgColor,
	}, nil
}

// Texel returns the ARGB8888 value for a lit or unlit pixel.
func (p Palette) Texel(lit bool) uint32 {
	if lit {
		return argb(p.Foreground)
	}
	return argb(p.Background)
}

// Fill renders a pixel grid into dst, which must be at least as long as pixels.
func (p Palette) Fill(dst []uint32, pixels []bool) {
	fg, bg := argb(p.Foreground), argb(p.Background)
	for i, lit := range pixels {
		if lit {
			dst[i] = fg
		} else {
			dst[i] = bg
		}
	}
}

func argb(c colorful.Color) uint32 {
	r, g, b := c.Clamped().RGB255()
	return 0xFF000000 | uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}
