package allsky

import(
	"log"
	"time"

	"github.com/abworrall/allsky/pkg/ephem"
)

// DetectNight is true once the sun is below the configured altitude.
func DetectNight(c Config, t time.Time) bool {
	sun := ephem.Observer{Lat: c.Latitude, Lon: c.Longitude}.Sun(t)
	log.Printf("Sun altitude: %.1f\n", sun.Alt)
	return sun.Alt < c.NightSunAlt
}

// DetectMoonMode is true at night when the moon is up and bright
// enough to wash out the sky.
func DetectMoonMode(c Config, t time.Time, night bool) bool {
	if !night {
		return false
	}
	moon := ephem.Observer{Lat: c.Latitude, Lon: c.Longitude}.Moon(t)
	phase := ephem.MoonPhase(t) * 100
	log.Printf("Moon altitude: %.1f, phase %0.1f%%\n", moon.Alt, phase)

	if moon.Alt >= c.MoonModeAlt && phase >= c.MoonModePhase {
		log.Printf("Moon Mode conditions detected\n")
		return true
	}
	return false
}

// UpdateSky re-evaluates night and moon mode into the register. It
// reports whether the night flag changed.
func UpdateSky(c Config, tel *Telemetry, t time.Time) bool {
	night := DetectNight(c, t)
	moonMode := DetectMoonMode(c, t, night)
	changed := tel.Night() != night
	tel.SetNight(night, moonMode)

	mode := c.Mode(night)
	tel.Update(func(s *Snapshot) {
		s.Gain = mode.Gain
		s.Binning = mode.Binning
	})
	return changed
}
