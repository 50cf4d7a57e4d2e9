package ephem

import(
	"fmt"
	"math"
	"time"
)

// An Observer is a site on the ground; latitude north and longitude
// east are positive, in degrees.
type Observer struct {
	Lat  float64
	Lon  float64
}

// A Body is where something is in the sky, as seen from an Observer.
// All angles in degrees; HA is in [-180,180), positive to the west.
type Body struct {
	Name  string
	RA    float64
	Dec   float64
	HA    float64
	Alt   float64
	Az    float64
}

func (b Body)String() string {
	return fmt.Sprintf("%s[alt=%.1f az=%.1f ha=%.1f]", b.Name, b.Alt, b.Az, b.HA)
}

func (o Observer)Locate(name string, ra, dec float64, t time.Time) Body {
	ha := norm360(LST(t, o.Lon) - ra)
	if ha >= 180 { ha -= 360 }

	lat, d, h := o.Lat*deg, dec*deg, ha*deg
	alt := math.Asin(math.Sin(lat)*math.Sin(d) + math.Cos(lat)*math.Cos(d)*math.Cos(h))
	az := math.Atan2(-math.Sin(h)*math.Cos(d), math.Cos(lat)*math.Sin(d) - math.Sin(lat)*math.Cos(d)*math.Cos(h))

	return Body{Name: name, RA: ra, Dec: dec, HA: ha, Alt: alt / deg, Az: norm360(az / deg)}
}

func (o Observer)Sun(t time.Time) Body {
	ra, dec := SunRADec(t)
	return o.Locate("sun", ra, dec, t)
}

func (o Observer)Moon(t time.Time) Body {
	ra, dec := MoonRADec(t)
	return o.Locate("moon", ra, dec, t)
}

// Astrometry is the sky summary that goes into labels and publish
// records.
type Astrometry struct {
	Time          time.Time
	Sun           Body
	Moon          Body
	SunAlt        float64
	MoonAlt       float64
	MoonPhase     float64 // percent illuminated
	SunMoonSep    float64 // |separation - 180|; near 180 means a solar eclipse, near 0 a lunar one
	SiderealTime  string
}

func (o Observer)Astrometry(t time.Time) Astrometry {
	sun, moon := o.Sun(t), o.Moon(t)
	return Astrometry{
		Time:         t,
		Sun:          sun,
		Moon:         moon,
		SunAlt:       sun.Alt,
		MoonAlt:      moon.Alt,
		MoonPhase:    MoonPhase(t) * 100,
		SunMoonSep:   math.Abs(Separation(moon.RA, moon.Dec, sun.RA, sun.Dec) - 180),
		SiderealTime: SiderealString(LST(t, o.Lon)),
	}
}
