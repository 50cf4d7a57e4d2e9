package process

import(
	"image"
	"log"

	"gonum.org/v1/gonum/stat"

	"github.com/abworrall/allsky/pkg/emath"
)

// WhiteBalance multiplies each channel by its factor (RGB order),
// saturating at 255.
func WhiteBalance(img image.Image, factors emath.Vec3) image.Image {
	if isGray(img) {
		return img
	}
	out := ToNRGBA(img)
	for i:=0; i<len(out.Pix); i+=4 {
		for c:=0; c<3; c++ {
			out.Pix[i+c] = uint8(emath.Clamp(float64(out.Pix[i+c]) * factors[c], 0, 255))
		}
	}
	return out
}

// ChannelMeans of a colour image, RGB order.
func ChannelMeans(img *image.NRGBA) emath.Vec3 {
	n := len(img.Pix) / 4
	ch := [3][]float64{make([]float64, n), make([]float64, n), make([]float64, n)}
	for i:=0; i<n; i++ {
		for c:=0; c<3; c++ {
			ch[c][i] = float64(img.Pix[i*4+c])
		}
	}
	return emath.Vec3{stat.Mean(ch[0], nil), stat.Mean(ch[1], nil), stat.Mean(ch[2], nil)}
}

// AutoWhiteBalance scales each channel so its mean matches the mean of
// all three channel means (gray world). A black channel is treated as
// having a mean of 0.1.
func AutoWhiteBalance(img image.Image) image.Image {
	if isGray(img) {
		return img
	}
	nrgba := ToNRGBA(img)
	means := ChannelMeans(nrgba)
	k := means.Mean()
	means.FloorAt(0.1)

	gains := emath.Vec3{k / means[0], k / means[1], k / means[2]}
	log.Printf("Auto white balance gains: R=%0.3f G=%0.3f B=%0.3f\n", gains[0], gains[1], gains[2])
	return WhiteBalance(nrgba, gains)
}
