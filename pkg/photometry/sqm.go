package photometry

import(
	"image"
	"log"

	"github.com/abworrall/allsky/pkg/frame"
)

// SQMConfig is what the sky quality estimate needs from the config.
type SQMConfig struct {
	ROI          []int    // [x1,y1,x2,y2] in unbinned pixels; empty means central
	Binning      int
	ExposureMax  float64
	NightGain    int
}

// A SQMCalculator estimates sky brightness from the raw data. The
// mask is worked out on the first frame and reused.
type SQMCalculator struct {
	Config SQMConfig
	mask   *image.Gray
}

func NewSQMCalculator(cfg SQMConfig) *SQMCalculator {
	return &SQMCalculator{Config: cfg}
}

// Calculate returns the raw masked mean weighted by how far exposure
// and gain are from their night time maxima; darker skies need longer
// exposures and more gain to reach the same mean.
func (s *SQMCalculator)Calculate(b frame.Buffer, exposure float64, gain int) float64 {
	if s.mask == nil || s.mask.Bounds().Dx() != b.Width || s.mask.Bounds().Dy() != b.Height {
		s.mask = ROIMask(b.Width, b.Height, s.Config.ROI, s.Config.Binning, 0.25)
	}

	avg := MaskedMean(b, s.mask)
	log.Printf("Raw SQM average: %0.2f\n", avg)

	weighted := (((s.Config.ExposureMax - exposure) / 10) + 1) * (avg * ((float64(s.Config.NightGain - gain) / 10) + 1))
	log.Printf("Weighted SQM average: %0.2f\n", weighted)

	return weighted
}
