package pairwise

import (
	"fmt"
	"time"

	"github.com/franz/fuga/internal/util"
)

// Progress is a snapshot of a running orchestrator
type Progress struct {
	Done    int64
	Total   int64
	Percent float64
	Rate    float64 // pairs per second
	ETA     time.Duration
}

// computeProgress derives percentage, rate and ETA. The ETA is negative
// while no rate is known yet.
func computeProgress(done, total int64, elapsed time.Duration) Progress {
	p := Progress{Done: done, Total: total, ETA: -1}
	if total > 0 {
		p.Percent = float64(done) / float64(total) * 100
	} else {
		p.Percent = 100
	}
	if secs := elapsed.Seconds(); secs > 0 && done > 0 {
		p.Rate = float64(done) / secs
		remaining := total - done
		if remaining < 0 {
			remaining = 0
		}
		p.ETA = time.Duration(float64(remaining) / p.Rate * float64(time.Second))
	}
	return p
}

// String formats the snapshot as a progress log line
func (p Progress) String() string {
	return fmt.Sprintf("%s/%s pairs (%.1f%%) - %s pairs/s - ETA %s",
		util.FormatCount(p.Done), util.FormatCount(p.Total), p.Percent,
		util.FormatRate(p.Rate), util.FormatETA(p.ETA))
}
