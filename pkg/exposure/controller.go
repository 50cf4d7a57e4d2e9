// Package exposure closes the auto-exposure loop: each frame's ADU
// nudges the exposure the capture side should use next.
package exposure

import(
	"fmt"
	"log"
	"strings"

	"github.com/brandondube/ringo"
)

const(
	HistoryLen    = 6
	DayExposure   = 0.001 // exposures shorter than this mean it's daytime
	dayScale      = 0.5
	nightScale    = 1.0
)

type State int
const(
	Seeking State = iota
	Converged
)

func (s State)String() string {
	if s == Converged { return "CONVERGED" }
	return "SEEKING"
}

// An ExposureSetter receives new exposure values; the shared
// telemetry register implements it.
type ExposureSetter interface {
	SetExposure(float64)
}

type Config struct {
	TargetADU    float64
	Dev          float64 // night deviation band
	DevDay       float64
	ExposureMin  float64
	ExposureMax  float64
}

// Result is what one Update decided.
type Result struct {
	ADU          float64
	Average      float64 // only set once the history is full
	NewExposure  float64 // zero unless the exposure was recalculated
	Changed      bool
}

// A Controller is the per camera feedback state.
type Controller struct {
	Config
	Out           ExposureSetter

	TargetFound   bool
	CurrentTarget float64
	history       ringo.CircleF64
	samples       int // how much of history is real; ringo pads with zeros
}

func NewController(cfg Config, out ExposureSetter) *Controller {
	c := &Controller{Config: cfg, Out: out}
	c.clearHistory()
	return c
}

func (c *Controller)clearHistory() {
	c.history.Init(HistoryLen)
	c.samples = 0
}

func (c *Controller)State() State {
	if c.TargetFound { return Converged }
	return Seeking
}

// History is the ADU samples since convergence, oldest first.
func (c *Controller)History() []float64 {
	if c.samples == 0 {
		return []float64{}
	}
	return append([]float64{}, c.history.Contiguous()...)
}

func (c *Controller)String() string {
	s := []string{}
	for _, v := range c.History() {
		s = append(s, fmt.Sprintf("%0.2f", v))
	}
	return fmt.Sprintf("%s target=%0.2f current=%0.2f history=[%s]", c.State(), c.TargetADU, c.CurrentTarget,
		strings.Join(s, ", "))
}

// band picks the deviation and scale from the exposure that produced
// this frame; the exposure itself says whether it is day or night.
func (c *Controller)band(exposure float64) (dev, scale float64) {
	if exposure < DayExposure {
		return c.DevDay, dayScale
	}
	return c.Dev, nightScale
}

// Update feeds in the (already floored) ADU of a frame taken with the
// given exposure.
func (c *Controller)Update(adu, exposure float64) Result {
	if adu <= 0 { adu = 0.1 }
	dev, scale := c.band(exposure)
	res := Result{ADU: adu}

	if !c.TargetFound {
		if adu >= c.TargetADU-dev && adu <= c.TargetADU+dev {
			log.Printf("Found target value for exposure (adu=%0.2f)\n", adu)
			c.CurrentTarget = adu
			c.TargetFound = true
			c.clearHistory()
			return res
		}
		res.NewExposure = c.recalculate(adu, exposure, scale)
		res.Changed = true
		return res
	}

	if c.samples == 0 {
		c.clearHistory() // a zero Controller has no buffer yet
	}
	c.history.Append(adu)
	if c.samples < HistoryLen { c.samples++ }
	if c.samples < HistoryLen {
		return res
	}

	sum := 0.0
	for _, v := range c.history.Contiguous() {
		sum += v
	}
	res.Average = sum / HistoryLen

	if res.Average > c.CurrentTarget+dev {
		log.Printf("ADU increasing beyond limits (%0.2f > %0.2f), recalculating next exposure\n",
			res.Average, c.CurrentTarget+dev)
		c.reset()
	} else if res.Average < c.CurrentTarget-dev {
		log.Printf("ADU decreasing beyond limits (%0.2f < %0.2f), recalculating next exposure\n",
			res.Average, c.CurrentTarget-dev)
		c.reset()
	}

	return res
}

func (c *Controller)reset() {
	c.TargetFound = false
	c.clearHistory()
}

func (c *Controller)recalculate(adu, exposure, scale float64) float64 {
	e := exposure - (exposure - exposure*(c.TargetADU/adu)) * scale
	if e < c.ExposureMin {
		e = c.ExposureMin
	} else if c.ExposureMax > 0 && e > c.ExposureMax {
		e = c.ExposureMax
	}

	log.Printf("New calculated exposure: %0.6f\n", e)
	if c.Out != nil {
		c.Out.SetExposure(e)
	}
	return e
}
