package ephem

import(
	"math"
	"testing"
	"time"
)

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestJulianDate(t *testing.T) {
	j2000 := time.Date(2000, 1, 1, 12, 0, 0, 0, time.UTC)
	if jd := JulianDate(j2000); !near(jd, J2000, 1e-6) {
		t.Errorf("JD(J2000) = %f", jd)
	}
	if g := GMST(j2000); !near(g, 280.46061837, 1e-4) {
		t.Errorf("GMST(J2000) = %f", g)
	}
}

func TestSiderealString(t *testing.T) {
	tests := map[float64]string{
		0:      "0:00:00.00",
		15:     "1:00:00.00",
		90.5:   "6:02:00.00",
		359.99: "23:59:57.60",
		-15:    "23:00:00.00",
	}
	for in, want := range tests {
		if got := SiderealString(in); got != want {
			t.Errorf("SiderealString(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestSunDeclination(t *testing.T) {
	solstice := time.Date(2023, 6, 21, 14, 58, 0, 0, time.UTC)
	if _, dec := SunRADec(solstice); !near(dec, 23.44, 0.1) {
		t.Errorf("solstice dec %f", dec)
	}
	equinox := time.Date(2023, 3, 20, 21, 24, 0, 0, time.UTC)
	if _, dec := SunRADec(equinox); !near(dec, 0, 0.1) {
		t.Errorf("equinox dec %f", dec)
	}
}

func TestSunAltitude(t *testing.T) {
	// Greenwich-ish, summer: high at noon, below the horizon at midnight
	o := Observer{Lat: 51.48, Lon: 0}
	noon := o.Sun(time.Date(2023, 6, 21, 12, 2, 0, 0, time.UTC))
	if !near(noon.Alt, 90-51.48+23.44, 1.0) {
		t.Errorf("noon %s", noon)
	}
	if !near(noon.Az, 180, 3) {
		t.Errorf("noon azimuth %f", noon.Az)
	}
	midnight := o.Sun(time.Date(2023, 6, 21, 0, 2, 0, 0, time.UTC))
	if midnight.Alt > -10 {
		t.Errorf("midnight %s", midnight)
	}
}

func TestMoonPhase(t *testing.T) {
	full := time.Date(2024, 1, 25, 17, 54, 0, 0, time.UTC)
	if p := MoonPhase(full); p < 0.98 {
		t.Errorf("full moon phase %f", p)
	}
	newMoon := time.Date(2024, 1, 11, 11, 57, 0, 0, time.UTC)
	if p := MoonPhase(newMoon); p > 0.02 {
		t.Errorf("new moon phase %f", p)
	}
}

func TestAstrometry(t *testing.T) {
	o := Observer{Lat: 33, Lon: -84}
	full := time.Date(2024, 1, 25, 17, 54, 0, 0, time.UTC)
	a := o.Astrometry(full)
	// moon opposite the sun: separation near 180, so the metric is small
	if a.SunMoonSep > 10 {
		t.Errorf("sun moon sep %f at full moon", a.SunMoonSep)
	}
	if a.MoonPhase < 98 || a.MoonPhase > 100 {
		t.Errorf("phase %f", a.MoonPhase)
	}
	if a.SiderealTime == "" {
		t.Errorf("no sidereal time")
	}
}

func TestSeparation(t *testing.T) {
	if s := Separation(0, 0, 90, 0); !near(s, 90, 1e-9) {
		t.Errorf("sep %f", s)
	}
	if s := Separation(10, 89, 190, 89); !near(s, 2, 1e-6) {
		t.Errorf("polar sep %f", s)
	}
}
