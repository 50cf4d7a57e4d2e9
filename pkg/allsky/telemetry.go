package allsky

import(
	"fmt"
	"sync"
)

// Snapshot is a consistent copy of the shared camera values.
type Snapshot struct {
	Exposure   float64
	Gain       int
	Binning    int
	Temp       float64
	Night      bool
	MoonMode   bool
	Latitude   float64
	Longitude  float64
}

func (s Snapshot)String() string {
	return fmt.Sprintf("exp=%.6f gain=%d bin=%d temp=%.1f night=%v moonmode=%v",
		s.Exposure, s.Gain, s.Binning, s.Temp, s.Night, s.MoonMode)
}

// Telemetry is the register shared between the worker (which writes
// the exposure) and the camera control side (which writes the rest).
// Every access holds the lock, so no reader sees a half written
// update.
type Telemetry struct {
	mu  sync.RWMutex
	s   Snapshot
}

func NewTelemetry(s Snapshot) *Telemetry {
	return &Telemetry{s: s}
}

func (t *Telemetry)Snapshot() Snapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.s
}

// Update applies fn to the values under the write lock.
func (t *Telemetry)Update(fn func(*Snapshot)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn(&t.s)
}

// SetExposure is how the exposure controller hands back its new
// target.
func (t *Telemetry)SetExposure(e float64) {
	t.Update(func(s *Snapshot) { s.Exposure = e })
}

func (t *Telemetry)Exposure() float64 { return t.Snapshot().Exposure }
func (t *Telemetry)Night() bool       { return t.Snapshot().Night }

func (t *Telemetry)SetNight(night, moonMode bool) {
	t.Update(func(s *Snapshot) {
		s.Night = night
		s.MoonMode = moonMode
	})
}

func (t *Telemetry)SetTemp(temp float64) {
	t.Update(func(s *Snapshot) { s.Temp = temp })
}

func (t *Telemetry)SetSensor(gain, binning int, temp float64) {
	t.Update(func(s *Snapshot) {
		s.Gain = gain
		s.Binning = binning
		s.Temp = temp
	})
}
