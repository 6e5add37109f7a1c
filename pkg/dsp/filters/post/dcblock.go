package post

// DCBlock removes a slowly tracked block mean.
type DCBlock struct {
	avg int64
}

func NewDCBlock() *DCBlock {
	return &DCBlock{}
}

func (d *DCBlock) WorkBuffer(input, output []int16) int {
	if len(input) == 0 {
		return 0
	}
	var sum int64
	for _, x := range input {
		sum += int64(x)
	}
	mean := sum / int64(len(input))
	d.avg = (mean + d.avg*9) / 10
	for i, x := range input {
		output[i] = clampSub(x, d.avg)
	}
	return len(input)
}

func (d *DCBlock) PredictOutputSize(inputSize int) int {
	return inputSize
}

func (d *DCBlock) Reset() {
	d.avg = 0
}

func (d *DCBlock) HistoryZero() bool {
	return d.avg == 0
}

func clampSub(x int16, v int64) int16 {
	r := int64(x) - v
	if r > 32767 {
		return 32767
	}
	if r < -32768 {
		return -32768
	}
	return int16(r)
}
