package indicator

import "strconv"

// RSI calculates the Relative Strength Index from simple rolling means of
// gains and losses over the last period close-to-close deltas.
//
// When the average loss is zero the RSI is 100, unless the average gain is
// also zero (a flat window), in which case it is the neutral 50.
type RSI struct {
	period    int
	count     int
	prevClose float64
	gains     *SMA
	losses    *SMA
}

// NewRSI creates a new RSI indicator with the given period (typically 14).
func NewRSI(period int) *RSI {
	return &RSI{
		period: period,
		gains:  NewSMA(period),
		losses: NewSMA(period),
	}
}

func (r *RSI) Name() string { return "RSI_" + strconv.Itoa(r.period) }

func (r *RSI) Update(price float64) {
	r.count++
	if r.count == 1 {
		// First value: record the price, no delta yet
		r.prevClose = price
		return
	}

	delta := price - r.prevClose
	r.prevClose = price

	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}
	r.gains.Update(gain)
	r.losses.Update(loss)
}

func (r *RSI) Value() float64 {
	if !r.Ready() {
		return 0
	}
	avgGain := r.gains.Value()
	avgLoss := r.losses.Value()
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50.0
		}
		return 100.0
	}
	rs := avgGain / avgLoss
	return 100.0 - (100.0 / (1.0 + rs))
}

func (r *RSI) Ready() bool { return r.gains.Ready() }
