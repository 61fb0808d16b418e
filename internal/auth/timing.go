package auth

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// TimingConfig holds configuration for timing attack prevention
type TimingConfig struct {
	BaseDelayMs   int
	RandomDelayMs int
}

// TimingDelay pads authentication failures so "no such user" and "wrong
// PIN" take approximately the same time.
type TimingDelay struct {
	config TimingConfig
}

// NewTimingDelay creates a new TimingDelay instance
func NewTimingDelay(config TimingConfig) *TimingDelay {
	return &TimingDelay{config: config}
}

// Wait applies the delay on failure. Successes return immediately.
func (td *TimingDelay) Wait(success bool) {
	if success {
		return
	}
	time.Sleep(td.delay())
}

// WaitFrom pads relative to a start time so total elapsed time is at least
// the target delay; operations that already consumed time sleep less.
func (td *TimingDelay) WaitFrom(startTime time.Time, success bool) {
	if success {
		return
	}
	if elapsed := time.Since(startTime); elapsed < td.delay() {
		time.Sleep(td.delay() - elapsed)
	}
}

func (td *TimingDelay) delay() time.Duration {
	base := time.Duration(td.config.BaseDelayMs) * time.Millisecond
	if td.config.RandomDelayMs <= 0 {
		return base
	}
	return base + time.Duration(cryptoRandIntn(td.config.RandomDelayMs))*time.Millisecond
}

// cryptoRandIntn returns a secure random number in [0, max). Uses
// crypto/rand because the jitter defeats timing analysis.
func cryptoRandIntn(max int) int {
	if max <= 0 {
		return 0
	}

	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return 0
	}

	return int(binary.BigEndian.Uint64(buf) % uint64(max))
}
