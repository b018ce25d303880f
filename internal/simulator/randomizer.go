// Package simulator randomizes the fleet in the background while clients are active.
package simulator

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/vesaa/fleetsim/internal/models"
)

// Range is an inclusive integer interval.
type Range struct {
	Min, Max int
}

func (r Range) draw(rng *rand.Rand) int {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + rng.IntN(r.Max-r.Min+1)
}

// Policy fixes the distributions used by Randomize.
type Policy struct {
	Statuses      []models.Status
	CPU           Range // online / degraded
	Memory        Range
	ResponseTime  Range
	Errors        Range
	OfflineErrors Range
}

// DefaultPolicy is the fleet's fixed randomization policy.
var DefaultPolicy = Policy{
	Statuses:      models.Statuses,
	CPU:           Range{20, 90},
	Memory:        Range{200, 1024},
	ResponseTime:  Range{80, 300},
	Errors:        Range{0, 5},
	OfflineErrors: Range{5, 20},
}

// Mutator maps a fleet to a freshly randomized fleet.
type Mutator interface {
	Randomize(in models.ServiceCollection) models.ServiceCollection
}

// Randomizer implements Mutator. It is safe for concurrent use.
type Randomizer struct {
	mu     sync.Mutex
	rng    *rand.Rand
	policy Policy
}

var _ Mutator = (*Randomizer)(nil)

// NewRandomizer returns a Randomizer drawing from src; a nil src is seeded from the clock.
func NewRandomizer(policy Policy, src rand.Source) *Randomizer {
	if src == nil {
		now := uint64(time.Now().UnixNano())
		src = rand.NewPCG(now, now>>17|1)
	}
	return &Randomizer{rng: rand.New(src), policy: policy}
}

// Randomize returns a new collection of the same length and order. Identity
// fields and unknown fixture keys are copied; status and load are redrawn
// independently per record. in is not modified.
func (r *Randomizer) Randomize(in models.ServiceCollection) models.ServiceCollection {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(models.ServiceCollection, len(in))
	for i, rec := range in {
		s := rec.Clone()
		s.Status = r.policy.Statuses[r.rng.IntN(len(r.policy.Statuses))]
		if s.Status == models.StatusOffline {
			s.CPU, s.Memory, s.ResponseTime = 0, 0, 0
			s.Errors = r.policy.OfflineErrors.draw(r.rng)
		} else {
			s.CPU = r.policy.CPU.draw(r.rng)
			s.Memory = r.policy.Memory.draw(r.rng)
			s.ResponseTime = r.policy.ResponseTime.draw(r.rng)
			s.Errors = r.policy.Errors.draw(r.rng)
		}
		out[i] = s
	}
	return out
}
