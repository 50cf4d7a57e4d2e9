// Package ephem has low precision positions for the sun and moon,
// good to a fraction of a degree; plenty for deciding whether it is
// night, and for drawing orbs on a label.
package ephem

import(
	"fmt"
	"math"
	"time"
)

const(
	J2000 = 2451545.0
	deg   = math.Pi / 180.0
)

// JulianDate for an instant (UTC).
func JulianDate(t time.Time) float64 {
	return float64(t.UTC().UnixNano())/86400e9 + 2440587.5
}

// GMST is Greenwich mean sidereal time, in degrees [0,360).
func GMST(t time.Time) float64 {
	d := JulianDate(t) - J2000
	T := d / 36525.0
	g := 280.46061837 + 360.98564736629*d + 0.000387933*T*T - T*T*T/38710000.0
	return norm360(g)
}

// LST is local sidereal time in degrees, for an east-positive longitude.
func LST(t time.Time, lon float64) float64 {
	return norm360(GMST(t) + lon)
}

// SiderealString formats a sidereal angle as hours, H:MM:SS.ss
func SiderealString(lstDeg float64) string {
	h := norm360(lstDeg) / 15.0
	hh := int(h)
	m := (h - float64(hh)) * 60
	mm := int(m)
	ss := (m - float64(mm)) * 60
	if ss >= 59.995 {
		ss = 0
		mm++
		if mm == 60 { mm = 0; hh = (hh+1) % 24 }
	}
	return fmt.Sprintf("%d:%02d:%05.2f", hh, mm, ss)
}

func norm360(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 { a += 360 }
	return a
}

func obliquity(d float64) float64 {
	return 23.439 - 0.0000004*d
}

// eclipticToEquatorial, all in degrees.
func eclipticToEquatorial(lambda, beta, eps float64) (ra, dec float64) {
	l, b, e := lambda*deg, beta*deg, eps*deg
	ra = math.Atan2(math.Sin(l)*math.Cos(e) - math.Tan(b)*math.Sin(e), math.Cos(l)) / deg
	dec = math.Asin(math.Sin(b)*math.Cos(e) + math.Cos(b)*math.Sin(e)*math.Sin(l)) / deg
	return norm360(ra), dec
}

// sunEcliptic returns the sun's ecliptic longitude in degrees.
func sunEcliptic(t time.Time) float64 {
	d := JulianDate(t) - J2000
	L := 280.460 + 0.9856474*d
	g := (357.528 + 0.9856003*d) * deg
	return norm360(L + 1.915*math.Sin(g) + 0.020*math.Sin(2*g))
}

// moonEcliptic returns the moon's geocentric ecliptic longitude and
// latitude, in degrees.
func moonEcliptic(t time.Time) (lambda, beta float64) {
	T := (JulianDate(t) - J2000) / 36525.0
	s := func(a, b float64) float64 { return math.Sin((a + b*T) * deg) }

	lambda = 218.32 + 481267.881*T +
		6.29*s(135.0, 477198.87) - 1.27*s(259.3, -413335.36) +
		0.66*s(235.7, 890534.22) + 0.21*s(269.9, 954397.74) -
		0.19*s(357.5, 35999.05) - 0.11*s(186.5, 966404.03)
	beta = 5.13*s(93.3, 483202.02) + 0.28*s(228.2, 960400.89) -
		0.28*s(318.3, 6003.15) - 0.17*s(217.6, -407332.21)
	return norm360(lambda), beta
}

// SunRADec, in degrees.
func SunRADec(t time.Time) (ra, dec float64) {
	d := JulianDate(t) - J2000
	return eclipticToEquatorial(sunEcliptic(t), 0, obliquity(d))
}

// MoonRADec, in degrees (geocentric).
func MoonRADec(t time.Time) (ra, dec float64) {
	d := JulianDate(t) - J2000
	l, b := moonEcliptic(t)
	return eclipticToEquatorial(l, b, obliquity(d))
}

// MoonPhase is the illuminated fraction of the moon, 0..1
func MoonPhase(t time.Time) float64 {
	l, b := moonEcliptic(t)
	cosElong := math.Cos(b*deg) * math.Cos((l-sunEcliptic(t))*deg)
	return (1 - cosElong) / 2
}

// Separation is the angle between two equatorial positions, in degrees.
func Separation(ra1, dec1, ra2, dec2 float64) float64 {
	c := math.Sin(dec1*deg)*math.Sin(dec2*deg) + math.Cos(dec1*deg)*math.Cos(dec2*deg)*math.Cos((ra1-ra2)*deg)
	return math.Acos(math.Max(-1, math.Min(1, c))) / deg
}
