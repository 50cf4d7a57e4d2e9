package emath

// A Vec3 holds one value per colour channel, RGB order.
type Vec3 [3]float64

// FloorAt raises any channel below min up to it.
func (v *Vec3)FloorAt(min float64) {
	for i := range v {
		if v[i] < min { v[i] = min }
	}
}

func (v Vec3)Mean() float64 { return (v[0] + v[1] + v[2]) / 3.0 }

func Clamp(v, min, max float64) float64 {
	if v < min { return min }
	if v > max { return max }
	return v
}
