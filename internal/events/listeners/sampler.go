package listeners

import (
	"math/rand/v2"
	"sync"

	"supplydash/internal/events"
)

// Sampler decides per event whether a high-volume listener should act on it.
// Rates range from 0.0 (never) to 1.0 (always).
type Sampler struct {
	mu          sync.RWMutex
	defaultRate float64
	rateByName  map[events.Name]float64
	float       func() float64
}

func NewSampler(defaultRate float64) *Sampler {
	return &Sampler{
		defaultRate: clamp(defaultRate),
		rateByName:  make(map[events.Name]float64),
		float:       rand.Float64, //nolint:gosec // sampling doesn't need crypto rand
	}
}

// ShouldSample reports whether the event should be kept.
func (s *Sampler) ShouldSample(name events.Name) bool {
	rate := s.rateFor(name)
	if rate >= 1 {
		return true
	}
	if rate <= 0 {
		return false
	}
	return s.float() < rate
}

// SetRate overrides the default for one event name.
func (s *Sampler) SetRate(name events.Name, rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateByName[name] = clamp(rate)
}

func (s *Sampler) SetDefaultRate(rate float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultRate = clamp(rate)
}

func (s *Sampler) rateFor(name events.Name) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rate, ok := s.rateByName[name]; ok {
		return rate
	}
	return s.defaultRate
}

func clamp(rate float64) float64 {
	return min(max(rate, 0), 1)
}
