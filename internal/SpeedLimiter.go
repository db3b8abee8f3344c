package internal

import (
	"context"
	"io"
	"sync/atomic"

	"golang.org/x/time/rate"
)

// minimumSpeed is the floor applied to any non-zero speed limit (64 KiB/s)
const minimumSpeed = 64 << 10

// InFlightChangedHandler is called whenever the number of bundles being fetched changes
type InFlightChangedHandler func(sender interface{}, inFlight int)

// DownloadSpeedLimiter shares one byte budget between every concurrent bundle fetch
// and tracks how many fetches are in flight.
type DownloadSpeedLimiter struct {
	InFlightChangedEvent InFlightChangedHandler

	limiter  *rate.Limiter
	inFlight atomic.Int32
}

// NewDownloadSpeedLimiter creates a limiter allowing bytesPerSecond in total.
// A value of 0 or less means unlimited. The burst is one BufferSize block,
// which is always below minimumSpeed.
func NewDownloadSpeedLimiter(bytesPerSecond int64) *DownloadSpeedLimiter {
	s := &DownloadSpeedLimiter{limiter: rate.NewLimiter(rate.Inf, BufferSize)}
	s.SetSpeed(bytesPerSecond)
	return s
}

// SetSpeed changes the limit while downloads are running.
func (s *DownloadSpeedLimiter) SetSpeed(bytesPerSecond int64) {
	if bytesPerSecond <= 0 {
		s.limiter.SetLimit(rate.Inf)
		return
	}
	bytesPerSecond = max(int64(minimumSpeed), bytesPerSecond)
	s.limiter.SetLimit(rate.Limit(bytesPerSecond))
}

// Limit returns the current limit in bytes per second, or 0 when unlimited.
func (s *DownloadSpeedLimiter) Limit() int64 {
	limit := s.limiter.Limit()
	if limit == rate.Inf {
		return 0
	}
	return int64(limit)
}

// IncrementInFlight marks one more fetch as running
func (s *DownloadSpeedLimiter) IncrementInFlight() {
	s.notify(int(s.inFlight.Add(1)))
}

// DecrementInFlight marks one fetch as finished
func (s *DownloadSpeedLimiter) DecrementInFlight() {
	s.notify(int(s.inFlight.Add(-1)))
}

// InFlight returns the number of fetches currently running
func (s *DownloadSpeedLimiter) InFlight() int {
	return int(s.inFlight.Load())
}

func (s *DownloadSpeedLimiter) notify(count int) {
	if s.InFlightChangedEvent != nil {
		s.InFlightChangedEvent(s, count)
	}
}

// Reader wraps r so that reads consume the shared budget. A nil limiter
// returns r unchanged.
func (s *DownloadSpeedLimiter) Reader(ctx context.Context, r io.Reader) io.Reader {
	if s == nil {
		return r
	}
	return &throttledReader{ctx: ctx, r: r, limiter: s.limiter}
}

type throttledReader struct {
	ctx     context.Context
	r       io.Reader
	limiter *rate.Limiter
}

func (t *throttledReader) Read(p []byte) (int, error) {
	if t.limiter.Limit() != rate.Inf {
		if burst := t.limiter.Burst(); len(p) > burst {
			p = p[:burst]
		}
	}

	n, err := t.r.Read(p)
	if n > 0 && t.limiter.Limit() != rate.Inf {
		if werr := t.limiter.WaitN(t.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
