package backend

import (
	"sync"
	"time"

	"github.com/vietddude/mcroute/internal/core/domain"
)

// HealthConfig controls TKO marking.
type HealthConfig struct {
	// Threshold is the number of consecutive transient failures that mark a
	// destination TKO. Zero disables tracking.
	Threshold int
	// Cooldown is how long a TKO destination is skipped before a probe.
	Cooldown time.Duration
}

// Health tracks consecutive failures for one destination. Once the
// threshold is reached the destination is TKO: requests are answered
// locally until the cooldown passes, then a single probe is let through.
type Health struct {
	cfg HealthConfig
	now func() time.Time

	mu               sync.Mutex
	consecutiveFails int
	tko              bool
	tkoSince         time.Time
	probing          bool
}

// NewHealth creates a tracker. A nil *Health allows everything.
func NewHealth(cfg HealthConfig) *Health {
	if cfg.Threshold <= 0 {
		return nil
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = time.Second
	}
	return &Health{cfg: cfg, now: time.Now}
}

// Allow reports whether a request may be sent to the destination.
func (h *Health) Allow() bool {
	if h == nil {
		return true
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.tko {
		return true
	}
	if h.probing || h.now().Sub(h.tkoSince) < h.cfg.Cooldown {
		return false
	}
	h.probing = true
	return true
}

// Record updates the tracker with the outcome of a request. Only transient
// transport failures count toward TKO; protocol answers reset the count.
func (h *Health) Record(result domain.Result) (becameTko, recovered bool) {
	if h == nil {
		return false, false
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !countsAsFailure(result) {
		recovered = h.tko
		h.consecutiveFails = 0
		h.tko = false
		h.probing = false
		return false, recovered
	}

	h.consecutiveFails++
	if h.probing {
		// Failed probe: stay TKO for another cooldown.
		h.probing = false
		h.tkoSince = h.now()
		return false, false
	}
	if !h.tko && h.consecutiveFails >= h.cfg.Threshold {
		h.tko = true
		h.tkoSince = h.now()
		return true, false
	}
	return false, false
}

// IsTko reports whether the destination is currently marked TKO.
func (h *Health) IsTko() bool {
	if h == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.tko
}

func countsAsFailure(r domain.Result) bool {
	switch r {
	case domain.ResultTimeout, domain.ResultConnectTimeout, domain.ResultConnectError:
		return true
	default:
		return false
	}
}
