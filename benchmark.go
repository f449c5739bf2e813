package camera

import "time"

// benchmarkWarmupFrames is the number of initial frames excluded from the
// benchmark average. Device negotiation and cache population make the first
// few frames unrepresentative.
const benchmarkWarmupFrames = 5

// BenchmarkWarmupFrames returns the fixed warm-up window size.
func BenchmarkWarmupFrames() int { return benchmarkWarmupFrames }

// benchmarkStats accumulates per-frame processing durations. It carries no
// lock of its own; the owning Camera guards it with the registry mutex.
type benchmarkStats struct {
	enabled bool
	frames  int
	elapsed time.Duration
}

// record counts one processed frame. Frames inside the warm-up window are
// counted but their duration is discarded.
func (b *benchmarkStats) record(d time.Duration) {
	b.frames++
	if b.frames > benchmarkWarmupFrames {
		b.elapsed += d
	}
}

// average returns the mean per-frame duration over the post-warm-up frames,
// or 0 if no frame has cleared the warm-up window yet.
func (b *benchmarkStats) average() time.Duration {
	n := b.frames - benchmarkWarmupFrames
	if n <= 0 {
		return 0
	}
	return b.elapsed / time.Duration(n)
}

// reset zeroes the counters. The enabled flag and warm-up window are
// untouched.
func (b *benchmarkStats) reset() {
	b.frames = 0
	b.elapsed = 0
}
