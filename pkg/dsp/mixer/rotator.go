package mixer

// Rotator mixes interleaved I/Q samples by a quarter of the sample rate,
// multiplying sample k by j^k. With the tuner set fs/4 above the wanted
// channel this moves the channel to DC and the tuner's DC spike out of band.
type Rotator struct {
	phase int
}

func NewRotator() *Rotator {
	return &Rotator{}
}

func (r *Rotator) incrementPhase() {
	r.phase = (r.phase + 1) & 3
}

// WorkBuffer rotates input into output; both are interleaved I/Q and may alias.
func (r *Rotator) WorkBuffer(input, output []int16) int {
	n := len(input) &^ 1
	for i := 0; i < n; i += 2 {
		re, im := input[i], input[i+1]
		switch r.phase {
		case 0:
			output[i], output[i+1] = re, im
		case 1:
			output[i], output[i+1] = negate(im), re
		case 2:
			output[i], output[i+1] = negate(re), negate(im)
		case 3:
			output[i], output[i+1] = im, negate(re)
		}
		r.incrementPhase()
	}
	return n
}

func (r *Rotator) PredictOutputSize(inputSize int) int {
	return inputSize
}

func (r *Rotator) Reset() {
	r.phase = 0
}

func (r *Rotator) HistoryZero() bool {
	return r.phase == 0
}

func negate(v int16) int16 {
	if v == -32768 {
		return 32767
	}
	return -v
}
