// Package successrate measures, per signal tag, how often the bar after a
// tagged bar closed in the tag's expected direction.
package successrate

import (
	"math"

	"github.com/appigoo/stock-trend-monitor/internal/model"
	"github.com/appigoo/stock-trend-monitor/internal/signal"
)

// LowSampleMax is the largest occurrence count still flagged as low-sample.
const LowSampleMax = 4

// Stat is the outcome for one tag.
type Stat struct {
	Tag         signal.Tag       `json:"tag"`
	Direction   signal.Direction `json:"direction"`
	Occurrences int              `json:"occurrences"`
	Successes   int              `json:"successes"`
	RatePct     float64          `json:"rate_pct"`
	LowSample   bool             `json:"low_sample"`
}

// Table holds the per-tag stats in catalogue order.
type Table struct {
	Stats []Stat `json:"stats"`
	byTag map[signal.Tag]int
}

// Evaluate scores every directional tag observed in the history. Neutral
// tags carry no prediction and are skipped. The last bar has no next bar,
// so its tags are not counted.
func Evaluate(bars []model.Bar, tags []signal.Set) *Table {
	occ := make(map[signal.Tag]int)
	hits := make(map[signal.Tag]int)

	n := len(bars)
	if len(tags) < n {
		n = len(tags)
	}
	for i := 0; i+1 < n; i++ {
		next, cur := bars[i+1].Close, bars[i].Close
		for _, tag := range tags[i] {
			dir := tag.Direction()
			if dir == signal.Neutral {
				continue
			}
			occ[tag]++
			if (dir == signal.Bullish && next > cur) || (dir == signal.Bearish && next < cur) {
				hits[tag]++
			}
		}
	}

	t := &Table{byTag: make(map[signal.Tag]int)}
	for _, tag := range signal.All() {
		if occ[tag] == 0 {
			continue
		}
		t.byTag[tag] = len(t.Stats)
		t.Stats = append(t.Stats, Stat{
			Tag:         tag,
			Direction:   tag.Direction(),
			Occurrences: occ[tag],
			Successes:   hits[tag],
			RatePct:     math.Round(float64(hits[tag])/float64(occ[tag])*10000) / 100,
			LowSample:   occ[tag] <= LowSampleMax,
		})
	}
	return t
}

// Get returns the stat for a tag. Unseen tags report zero occurrences and a
// zero rate.
func (t *Table) Get(tag signal.Tag) Stat {
	if i, ok := t.byTag[tag]; ok {
		return t.Stats[i]
	}
	return Stat{Tag: tag, Direction: tag.Direction()}
}

// Rate returns the success rate of a tag in percent, 0 when unseen.
func (t *Table) Rate(tag signal.Tag) float64 { return t.Get(tag).RatePct }
