package exposure

import(
	"testing"

	"github.com/google/go-cmp/cmp"
)

type fakeRegister struct {
	sets []float64
}
func (r *fakeRegister)SetExposure(e float64) { r.sets = append(r.sets, e) }

func newTestController() (*Controller, *fakeRegister) {
	r := &fakeRegister{}
	c := NewController(Config{TargetADU: 100, Dev: 10, DevDay: 20, ExposureMin: 0.000032, ExposureMax: 15}, r)
	return c, r
}

func TestConvergeOnTarget(t *testing.T) {
	c, r := newTestController()

	res := c.Update(100, 5)
	if c.State() != Converged || c.CurrentTarget != 100 {
		t.Fatalf("did not converge: %s", c)
	}
	if res.Changed || len(r.sets) != 0 {
		t.Errorf("exposure changed on convergence: %v", r.sets)
	}
	if len(c.History()) != 0 {
		t.Errorf("history not cleared on convergence")
	}
}

func TestSteadyFramesMakeNoChanges(t *testing.T) {
	c, r := newTestController()
	for i:=0; i<6; i++ {
		res := c.Update(100, 5)
		if res.Changed {
			t.Errorf("frame %d: unexpected exposure change", i+1)
		}
	}
	if len(r.sets) != 0 {
		t.Errorf("exposure was written: %v", r.sets)
	}
	if c.State() != Converged {
		t.Errorf("lost convergence: %s", c)
	}
	if n := len(c.History()); n != 5 {
		t.Errorf("history length %d, want 5", n)
	}
}

func TestDriftBackToSeeking(t *testing.T) {
	c, _ := newTestController()
	c.Update(100, 5)

	for i, adu := range []float64{110, 120, 115, 115, 110} {
		c.Update(adu, 5)
		if c.State() != Converged {
			t.Fatalf("sample %d: left CONVERGED before history was full", i)
		}
	}
	res := c.Update(120, 5) // mean of the six is 115
	if res.Average != 115 {
		t.Errorf("average %f, want 115", res.Average)
	}
	if c.State() != Seeking {
		t.Errorf("still %s after drifting", c.State())
	}
	if len(c.History()) != 0 {
		t.Errorf("history kept while seeking: %v", c.History())
	}
}

func TestHistoryIsBounded(t *testing.T) {
	c, _ := newTestController()
	c.Update(100, 5)
	for i:=0; i<20; i++ {
		c.Update(100, 5)
		if len(c.History()) > HistoryLen {
			t.Fatalf("history grew to %d", len(c.History()))
		}
	}
	if diff := cmp.Diff([]float64{100, 100, 100, 100, 100, 100}, c.History()); diff != "" {
		t.Errorf("history (-want +got):\n%s", diff)
	}
}

func TestHistoryKeepsNewestInOrder(t *testing.T) {
	c, _ := newTestController()
	c.Update(100, 5)
	for _, adu := range []float64{101, 102, 103, 104, 105, 106, 107, 108} {
		c.Update(adu, 5)
	}
	if diff := cmp.Diff([]float64{103, 104, 105, 106, 107, 108}, c.History()); diff != "" {
		t.Errorf("history (-want +got):\n%s", diff)
	}

	var zero Controller
	zero.Config = c.Config
	zero.TargetFound, zero.CurrentTarget = true, 100
	zero.Update(99, 5)
	if diff := cmp.Diff([]float64{99}, zero.History()); diff != "" {
		t.Errorf("zero Controller history (-want +got):\n%s", diff)
	}
}

func TestRecalculate(t *testing.T) {
	tests := []struct{
		name      string
		adu       float64
		exposure  float64
		want      float64
	}{
		{"night too dark", 50, 2, 4},
		{"night too bright", 200, 2, 1},
		{"day uses half scale", 200, 0.0008, 0.0006},
		{"clamped to min", 10000, 0.002, 0.000032},
		{"clamped to max", 0.1, 1, 15},
	}

	for _, tc := range tests {
		c, r := newTestController()
		res := c.Update(tc.adu, tc.exposure)
		if !res.Changed {
			t.Errorf("%s: no change", tc.name)
			continue
		}
		if diff := cmp.Diff(tc.want, res.NewExposure, cmp.Comparer(approx)); diff != "" {
			t.Errorf("%s: exposure (-want +got):\n%s", tc.name, diff)
		}
		if len(r.sets) != 1 || !approx(r.sets[0], tc.want) {
			t.Errorf("%s: register got %v", tc.name, r.sets)
		}
	}
}

func TestFloorNeverBelowMin(t *testing.T) {
	c, _ := newTestController()
	res := c.Update(0.1, 0.000032)
	if res.NewExposure < c.ExposureMin {
		t.Errorf("exposure %g below min", res.NewExposure)
	}
	// zero ADU would divide by zero without the floor
	res = c.Update(0, 0.5)
	if res.ADU != 0.1 || res.NewExposure != c.ExposureMax {
		t.Errorf("zero ADU: %+v", res)
	}
}

// The day band is wider, and is chosen by the exposure of the frame,
// not by any global mode.
func TestDayBand(t *testing.T) {
	c, _ := newTestController()
	c.Update(118, 0.0005)
	if c.State() != Converged {
		t.Errorf("118 should be inside the day band")
	}

	c, _ = newTestController()
	c.Update(118, 0.5)
	if c.State() != Seeking {
		t.Errorf("118 should be outside the night band")
	}
}

// Before the first convergence the current target is zero; a bright
// frame must not be compared against it.
func TestNoDecisionAgainstInitialTarget(t *testing.T) {
	c, r := newTestController()
	if c.CurrentTarget != 0 {
		t.Fatalf("initial target %f", c.CurrentTarget)
	}
	c.Update(100, 5)
	if c.State() != Converged || len(r.sets) != 0 {
		t.Errorf("first in-band frame compared against initial target: %s %v", c, r.sets)
	}
}

func approx(a, b float64) bool {
	d := a - b
	if d < 0 { d = -d }
	return d < 1e-9
}
