package process

import(
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/abworrall/allsky/pkg/ephem"
)

type TextProperties struct {
	Color       color.RGBA
	X           int
	Y           int
	LineHeight  int
	Size        float64
	Outline     bool
}

type OrbProperties struct {
	Mode        OrbMode
	Radius      int
	SunColor    color.RGBA
	MoonColor   color.RGBA
}

// An Annotator draws the text label, orbs and banners onto the final
// image.
type Annotator struct {
	Text          TextProperties
	Orbs          OrbProperties
	Template      *LabelTemplate
	ExtraTextFile string

	face          font.Face
}

// Annotation is the per frame input to the annotator.
type Annotation struct {
	Label     LabelData
	Astro     ephem.Astrometry
	Night     bool
	MoonMode  bool
	Focus     bool
}

func NewAnnotator(tp TextProperties, op OrbProperties, tmpl *LabelTemplate, extraTextFile string) (*Annotator, error) {
	f, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("parse font: %v", err)
	}
	if tp.Size <= 0 { tp.Size = 20 }
	if tp.LineHeight <= 0 { tp.LineHeight = int(tp.Size * 1.5) }

	if tmpl == nil {
		if tmpl, err = NewLabelTemplate(""); err != nil {
			return nil, err
		}
	}

	return &Annotator{
		Text:          tp,
		Orbs:          op,
		Template:      tmpl,
		ExtraTextFile: extraTextFile,
		face:          truetype.NewFace(f, &truetype.Options{Size: tp.Size}),
	}, nil
}

// Lines is the text that will be drawn, top to bottom.
func (a *Annotator)Lines(an Annotation) []string {
	lines, err := a.Template.Lines(an.Label)
	if err != nil {
		log.Printf("Image label: %v\n", err)
		lines = nil
	}

	if an.MoonMode {
		lines = append(lines, "* Moon Mode *")
	}
	if an.Astro.SunMoonSep < 1.25 && an.Night {
		lines = append(lines, "* LUNAR ECLIPSE *")
	} else if an.Astro.SunMoonSep > 179.0 && !an.Night {
		lines = append(lines, "* SOLAR ECLIPSE *")
	}

	if extra := ReadExtraText(a.ExtraTextFile); len(extra) > 0 {
		log.Printf("Adding extra text from %s\n", a.ExtraTextFile)
		lines = append(lines, extra...)
	}
	return lines
}

// Draw returns an annotated copy of the image. In focus mode all that
// is drawn is a small timestamp in the bottom right corner. Gray
// images stay gray.
func (a *Annotator)Draw(img image.Image, an Annotation) image.Image {
	dc := gg.NewContextForImage(img)
	dc.SetFontFace(a.face)
	w, h := dc.Width(), dc.Height()

	if an.Focus {
		log.Printf("Focus mode enabled, image labels disabled\n")
		a.drawText(dc, an.Label.Timestamp.Format("15:04:05"), float64(w-125), float64(h-10))
		return sameKind(img, dc.Image())
	}

	a.drawOrbs(dc, an.Astro)

	y := a.Text.Y
	for _, line := range a.Lines(an) {
		a.drawText(dc, line, float64(a.Text.X), float64(y))
		y += a.Text.LineHeight
	}

	return sameKind(img, dc.Image())
}

func (a *Annotator)drawText(dc *gg.Context, s string, x, y float64) {
	if a.Text.Outline {
		dc.SetRGB(0, 0, 0)
		for dy:=-1; dy<=1; dy++ {
			for dx:=-1; dx<=1; dx++ {
				if dx != 0 || dy != 0 {
					dc.DrawString(s, x+float64(dx), y+float64(dy))
				}
			}
		}
	}
	dc.SetColor(a.Text.Color)
	dc.DrawString(s, x, y)
}

func (a *Annotator)drawOrbs(dc *gg.Context, astro ephem.Astrometry) {
	if a.Orbs.Mode == OrbOff {
		return
	}
	r := float64(a.Orbs.Radius)
	if r <= 0 { r = 9 }

	for _, orb := range []struct{
		b ephem.Body
		c color.RGBA
	}{{astro.Sun, a.Orbs.SunColor}, {astro.Moon, a.Orbs.MoonColor}} {
		x, y, ok := OrbPosition(a.Orbs.Mode, orb.b, dc.Width(), dc.Height(), r)
		if !ok {
			continue
		}
		dc.DrawCircle(x, y, r)
		dc.SetColor(orb.c)
		dc.FillPreserve()
		dc.SetRGB(0, 0, 0)
		dc.SetLineWidth(1)
		dc.Stroke()
	}
}

// sameKind converts the drawn result back to gray if that's what we
// started with.
func sameKind(orig, drawn image.Image) image.Image {
	if !isGray(orig) {
		return drawn
	}
	g := image.NewGray(drawn.Bounds())
	draw.Draw(g, g.Bounds(), drawn, drawn.Bounds().Min, draw.Src)
	return g
}
