// Package process holds the post-stack image stages: demosaicing,
// 8 bit conversion, geometry, colour and contrast, and annotation.
package process

import(
	"fmt"
	"log"
	"strings"

	"github.com/abworrall/allsky/pkg/ecolor"
	"github.com/abworrall/allsky/pkg/frame"
)

// A CFA describes the 2x2 Bayer tile, in reading order; each entry is
// the channel (0=R, 1=G, 2=B) of that photosite.
type CFA [4]int

func ParseCFA(s string) (CFA, error) {
	cfa := CFA{}
	s = strings.ToUpper(s)
	if len(s) != 4 {
		return cfa, fmt.Errorf("%w: bayer pattern %q", ErrUnknownAlgorithm, s)
	}
	for i, r := range s {
		switch r {
		case 'R': cfa[i] = 0
		case 'G': cfa[i] = 1
		case 'B': cfa[i] = 2
		default:
			return cfa, fmt.Errorf("%w: bayer pattern %q", ErrUnknownAlgorithm, s)
		}
	}
	return cfa, nil
}

func (c CFA)At(x, y int) int { return c[(y&1)*2 + (x&1)] }

// Debayer does bilinear demosaicing of a mono mosaic into RGB. A
// buffer that's already colour comes back as is.
func Debayer(b frame.Buffer, pattern string) (frame.Buffer, error) {
	if b.IsColor() {
		return b, nil
	}
	cfa, err := ParseCFA(pattern)
	if err != nil {
		return b, err
	}

	out := frame.NewBuffer(b.Width, b.Height, 3)
	for y:=0; y<b.Height; y++ {
		for x:=0; x<b.Width; x++ {
			own := cfa.At(x, y)
			for c:=0; c<3; c++ {
				if c == own {
					out.Set(x, y, c, b.At(x, y, 0))
					continue
				}
				sum, n := 0, 0
				for dy:=-1; dy<=1; dy++ {
					for dx:=-1; dx<=1; dx++ {
						nx, ny := x+dx, y+dy
						if nx < 0 || ny < 0 || nx >= b.Width || ny >= b.Height {
							continue
						}
						if cfa.At(nx, ny) == c {
							sum += int(b.At(nx, ny, 0))
							n++
						}
					}
				}
				if n > 0 {
					out.Set(x, y, c, uint16(sum/n))
				}
			}
		}
	}
	return out, nil
}

// Grayscale collapses colour to luminance.
func Grayscale(b frame.Buffer) frame.Buffer {
	if !b.IsColor() {
		return b
	}
	out := frame.NewBuffer(b.Width, b.Height, 1)
	for y:=0; y<b.Height; y++ {
		for x:=0; x<b.Width; x++ {
			l := ecolor.Luma(float64(b.At(x,y,0)), float64(b.At(x,y,1)), float64(b.At(x,y,2)))
			out.Set(x, y, 0, uint16(l + 0.5))
		}
	}
	return out
}

// DebayerFrame applies the right demosaic for the time of day: colour,
// or grayscale if that's been configured. No-op without a pattern.
func DebayerFrame(b frame.Buffer, pattern string, gray bool) frame.Buffer {
	if b.IsColor() {
		return b
	}
	if pattern == "" {
		log.Printf("No bayer pattern detected\n")
		return b
	}

	rgb, err := Debayer(b, pattern)
	if err != nil {
		log.Printf("Debayer: %v\n", err)
		return b
	}
	if gray {
		return Grayscale(rgb)
	}
	return rgb
}
