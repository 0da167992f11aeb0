package signal

import "github.com/appigoo/stock-trend-monitor/internal/indicator"

// GapPct returns the opening gap of bar i vs the previous close, in percent.
func GapPct(res *indicator.Result, i int) (float64, bool) {
	if i <= 0 || i >= res.Len() {
		return 0, false
	}
	prevClose := res.Bar(i - 1).Close
	if prevClose == 0 {
		return 0, false
	}
	return (res.Bar(i).Open - prevClose) / prevClose * 100, true
}

// classifyGap returns the gap tag of bar i, if the bar gaps past the
// threshold. The sub-class is decided in order:
//
//	Exhaustion: bar i+1 closes back against the gap, on above-average volume
//	Runaway:    trailing close mean moving with the gap, on above-average volume
//	Breakaway:  bar i clears the previous bar's extreme, on above-average volume
//	Common:     anything else
func classifyGap(res *indicator.Result, i int, cfg Config) (Tag, bool) {
	gap, ok := GapPct(res, i)
	if !ok {
		return 0, false
	}

	var up bool
	switch {
	case gap > cfg.GapThreshold:
		up = true
	case gap < -cfg.GapThreshold:
		up = false
	default:
		return 0, false
	}

	cur, prev := res.Bar(i), res.Bar(i-1)
	highVolume := aboveAverageVolume(cur.Volume, res.Fields[i].VolumeAvg)
	if !highVolume {
		return pick(up, UpGapCommon, DownGapCommon), true
	}

	if i+1 < res.Len() {
		next := res.Bar(i + 1)
		if (up && next.Close < cur.Close) || (!up && next.Close > cur.Close) {
			return pick(up, UpGapExhaustion, DownGapExhaustion), true
		}
	}

	if now, before, ok := trailingMeans(res, i, cfg.RunawayWindow); ok {
		if (up && now > before) || (!up && now < before) {
			return pick(up, UpGapRunaway, DownGapRunaway), true
		}
	}

	if (up && cur.High > prev.High) || (!up && cur.Low < prev.Low) {
		return pick(up, UpGapBreakaway, DownGapBreakaway), true
	}

	return pick(up, UpGapCommon, DownGapCommon), true
}

// trailingMeans returns the mean close of the window ending at i and of the
// window ending at i-1. ok is false until both windows are full.
func trailingMeans(res *indicator.Result, i, window int) (now, before float64, ok bool) {
	if window < 1 || i < window {
		return 0, 0, false
	}
	var sumNow, sumBefore float64
	for k := 0; k < window; k++ {
		sumNow += res.Bar(i - k).Close
		sumBefore += res.Bar(i - 1 - k).Close
	}
	w := float64(window)
	return sumNow / w, sumBefore / w, true
}

func pick(up bool, a, b Tag) Tag {
	if up {
		return a
	}
	return b
}
