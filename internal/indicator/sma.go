package indicator

import "strconv"

// SMA calculates a Simple Moving Average over a rolling window.
// Uses a preallocated circular buffer for a zero-allocation hot path.
//
// minPeriods controls warm-up: the average is reported once that many values
// have been seen, averaging over what is available until the window fills.
// NewSMA uses minPeriods == period (strict warm-up).
type SMA struct {
	period     int
	minPeriods int
	buf        []float64 // preallocated circular buffer
	idx        int       // current write position
	count      int       // total values received
	sum        float64
}

// NewSMA creates a strict SMA that is ready after period values.
func NewSMA(period int) *SMA {
	return NewRollingMean(period, period)
}

// NewRollingMean creates a trailing mean over up to period values that is
// ready once minPeriods values have been seen.
func NewRollingMean(period, minPeriods int) *SMA {
	if minPeriods < 1 {
		minPeriods = 1
	}
	if minPeriods > period {
		minPeriods = period
	}
	return &SMA{
		period:     period,
		minPeriods: minPeriods,
		buf:        make([]float64, period),
	}
}

func (s *SMA) Name() string { return "SMA_" + strconv.Itoa(s.period) }

func (s *SMA) Update(v float64) {
	if s.count >= s.period {
		// Subtract the oldest value being overwritten
		s.sum -= s.buf[s.idx]
	}

	s.buf[s.idx] = v
	s.sum += v
	s.idx = (s.idx + 1) % s.period
	s.count++
}

func (s *SMA) Value() float64 {
	if !s.Ready() {
		return 0
	}
	return s.sum / float64(s.filled())
}

func (s *SMA) Ready() bool { return s.count >= s.minPeriods }

func (s *SMA) filled() int {
	if s.count < s.period {
		return s.count
	}
	return s.period
}

// Reset clears the SMA state for reuse.
func (s *SMA) Reset() {
	s.idx = 0
	s.count = 0
	s.sum = 0
	for i := range s.buf {
		s.buf[i] = 0
	}
}
