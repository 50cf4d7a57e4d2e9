package process

import(
	"fmt"

	"github.com/abworrall/allsky/pkg/ephem"
)

// OrbMode picks how the sun and moon markers are laid out on the
// frame.
type OrbMode int
const(
	OrbHourAngle OrbMode = iota // x from hour angle
	OrbAzimuth                  // x from azimuth
	OrbAltitude                 // y from altitude; sun on the left edge, moon on the right
	OrbOff
)

var orbNames = map[string]OrbMode{
	"":    OrbHourAngle,
	"ha":  OrbHourAngle,
	"az":  OrbAzimuth,
	"alt": OrbAltitude,
	"off": OrbOff,
}

func ParseOrbMode(s string) (OrbMode, error) {
	if m, exists := orbNames[s]; exists {
		return m, nil
	}
	return OrbOff, fmt.Errorf("%w: orb mode %q", ErrUnknownAlgorithm, s)
}

// OrbPosition places a body's orb in a w*h image. For the hour angle
// and azimuth modes the orb sits along the top edge while the body is
// up, and along the bottom edge once it has set.
func OrbPosition(mode OrbMode, b ephem.Body, w, h int, radius float64) (x, y float64, ok bool) {
	fw, fh := float64(w), float64(h)

	edgeY := radius
	if b.Alt < 0 { edgeY = fh - radius }

	switch mode {
	case OrbHourAngle:
		return fw/2 + (b.HA/180)*(fw/2), edgeY, true

	case OrbAzimuth:
		return (b.Az/360)*fw, edgeY, true

	case OrbAltitude:
		x = radius
		if b.Name == "moon" { x = fw - radius }
		return x, fh/2 - (b.Alt/90)*(fh/2), true
	}

	return 0, 0, false
}
