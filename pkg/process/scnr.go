package process

import(
	"fmt"
	"image"
	"math"
)

// SCNR (subtractive chromatic noise reduction) pulls down a green
// cast, a common result of debayering with a green-heavy CFA.
type SCNR int
const(
	SCNRNone SCNR = iota
	SCNRAverageNeutral
	SCNRMaximumNeutral
	SCNRMaximumMask
	SCNRAdditiveMask
)

var scnrNames = map[string]SCNR{
	"":                SCNRNone,
	"average_neutral": SCNRAverageNeutral,
	"maximum_neutral": SCNRMaximumNeutral,
	"maximum_mask":    SCNRMaximumMask,
	"additive_mask":   SCNRAdditiveMask,
}

func ParseSCNR(s string) (SCNR, error) {
	if a, exists := scnrNames[s]; exists {
		return a, nil
	}
	return SCNRNone, fmt.Errorf("%w: SCNR %q", ErrUnknownAlgorithm, s)
}

func (a SCNR)String() string {
	for k, v := range scnrNames {
		if v == a && k != "" { return k }
	}
	return "none"
}

// greenFunc maps normalized (r,g,b) to the new green value.
type greenFunc func(r, g, b float64) float64

var scnrFuncs = map[SCNR]greenFunc{
	SCNRAverageNeutral: func(r, g, b float64) float64 { return math.Min(g, (r+b)/2) },
	SCNRMaximumNeutral: func(r, g, b float64) float64 { return math.Min(g, math.Max(r, b)) },
	SCNRMaximumMask:    func(r, g, b float64) float64 { return g * math.Max(r, b) },
	SCNRAdditiveMask:   func(r, g, b float64) float64 { return g * math.Min(1, r+b) },
}

// ApplySCNR returns a new image; mono images, and SCNRNone, come
// back untouched.
func ApplySCNR(img image.Image, a SCNR) image.Image {
	fn, exists := scnrFuncs[a]
	if !exists || isGray(img) {
		return img
	}

	out := ToNRGBA(img)
	for i:=0; i<len(out.Pix); i+=4 {
		r, g, b := float64(out.Pix[i])/255, float64(out.Pix[i+1])/255, float64(out.Pix[i+2])/255
		out.Pix[i+1] = uint8(math.Round(fn(r, g, b) * 255))
	}
	return out
}

