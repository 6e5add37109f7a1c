package fm

import (
	"math"
	"sync"
)

// fastAtan2 approximates math.Atan2 to within about 0.0015 rad using a
// polynomial over the first octant.
func fastAtan2(y, x float64) float64 {
	if x == 0 && y == 0 {
		return 0
	}
	ax, ay := math.Abs(x), math.Abs(y)
	swap := ay > ax
	var a float64
	if swap {
		a = ax / ay
	} else {
		a = ay / ax
	}

	r := math.Pi/4*a - a*(a-1)*(0.2447+0.0663*a)
	if swap {
		r = math.Pi/2 - r
	}
	if x < 0 {
		r = math.Pi - r
	}
	if y < 0 {
		r = -r
	}
	return r
}

const lutBits = 10

var (
	lutOnce sync.Once
	// atanLUT[i] is atan(i / 2^lutBits) in output units.
	atanLUT [1<<lutBits + 1]int32
)

func initLUT() {
	lutOnce.Do(func() {
		for i := range atanLUT {
			atanLUT[i] = int32(math.Round(math.Atan(float64(i)/(1<<lutBits)) / math.Pi * scale))
		}
	})
}

// lutAtan2 folds (x, y) into the first octant, looks up the angle and unfolds
// it. The result is in output units (pi = 1<<14).
func lutAtan2(y, x int) int16 {
	if x == 0 && y == 0 {
		return 0
	}
	ax, ay := x, y
	if ax < 0 {
		ax = -ax
	}
	if ay < 0 {
		ay = -ay
	}

	var angle int32
	if ay <= ax {
		angle = atanLUT[(ay<<lutBits)/ax]
	} else {
		angle = scale/2 - atanLUT[(ax<<lutBits)/ay]
	}
	if x < 0 {
		angle = scale - angle
	}
	if y < 0 {
		angle = -angle
	}
	return int16(angle)
}
