package fetcher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"
)

// sampleWindow bounds how many recent throughput samples Tracker retains
// for its rolling CurrentBps estimate.
const sampleWindow = 20

// streamChunkBytes is the read buffer size streamBody consumes bandwidth
// budget for on each iteration; the limiter's burst must be at least this
// many kilobytes or a single chunk's WaitN call fails outright instead of
// throttling.
const streamChunkBytes = 64 * 1024

// Tracker accumulates total bytes transferred and exposes a rolling
// current-throughput estimate, the figure progress observers render as a
// human-readable string.
type Tracker struct {
	total   atomic.Uint64
	mu      sync.Mutex
	samples []sample
}

type sample struct {
	at    time.Time
	bytes uint64
}

// NewTracker creates an empty bandwidth tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Add records n more bytes transferred.
func (t *Tracker) Add(n uint64) {
	t.total.Add(n)
	t.mu.Lock()
	t.samples = append(t.samples, sample{at: time.Now(), bytes: n})
	if len(t.samples) > sampleWindow {
		t.samples = t.samples[len(t.samples)-sampleWindow:]
	}
	t.mu.Unlock()
}

// TotalBytes returns the cumulative byte count seen so far.
func (t *Tracker) TotalBytes() uint64 {
	return t.total.Load()
}

// CurrentBps returns bytes/second averaged over the retained sample
// window, 0 if fewer than two samples have been recorded.
func (t *Tracker) CurrentBps() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.samples) < 2 {
		return 0
	}
	first, last := t.samples[0], t.samples[len(t.samples)-1]
	elapsed := last.at.Sub(first.at).Seconds()
	if elapsed <= 0 {
		return 0
	}
	var sum uint64
	for _, s := range t.samples {
		sum += s.bytes
	}
	return float64(sum) / elapsed
}

// HumanRate renders CurrentBps as a human-readable throughput string,
// e.g. "1.2 MB/s".
func (t *Tracker) HumanRate() string {
	return humanize.Bytes(uint64(t.CurrentBps())) + "/s"
}

// Reset clears all accumulated state.
func (t *Tracker) Reset() {
	t.total.Store(0)
	t.mu.Lock()
	t.samples = nil
	t.mu.Unlock()
}

// BandwidthLimiter throttles chunk consumption to a configured kB/s rate.
// Chunk sizes are rounded up to the nearest kilobyte before being drawn
// from the underlying token bucket, since the limiter operates in
// kB-denominated cells rather than raw bytes.
type BandwidthLimiter struct {
	limiter *rate.Limiter
}

// NewBandwidthLimiter creates a limiter capped at kbps kilobytes/second,
// with a burst of at least one second's budget and at least one
// streamed chunk. A kbps of 0 means unlimited.
func NewBandwidthLimiter(kbps int, burstKB int) *BandwidthLimiter {
	if kbps <= 0 {
		return &BandwidthLimiter{limiter: nil}
	}
	minBurstKB := streamChunkBytes / 1024
	if burstKB < kbps {
		burstKB = kbps
	}
	if burstKB < minBurstKB {
		burstKB = minBurstKB
	}
	return &BandwidthLimiter{limiter: rate.NewLimiter(rate.Limit(kbps), burstKB)}
}

// Consume blocks until chunkBytes (rounded up to the nearest kilobyte) of
// bandwidth budget is available.
func (b *BandwidthLimiter) Consume(ctx context.Context, chunkBytes int) error {
	if b.limiter == nil {
		return nil
	}
	kb := (chunkBytes + 1023) / 1024
	if kb <= 0 {
		kb = 1
	}
	return b.limiter.WaitN(ctx, kb)
}
