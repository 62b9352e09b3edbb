package lifecycle

import (
	"math/rand"
	"sync"
	"time"
)

const (
	baseFare    = 40
	minDistance = 10
	maxDistance = 40
)

// FareQuoter computes the fare for a new ride request: base fare plus a
// simulated distance component, uniform in [minDistance, maxDistance].
// The fare is drawn once at submission and never reused; a re-submitted
// request gets a fresh draw. The seed is injectable so tests can assert
// exact fares.
type FareQuoter struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewFareQuoter builds a quoter from the given seed. Seed 0 means
// time-based.
func NewFareQuoter(seed int64) *FareQuoter {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &FareQuoter{rng: rand.New(rand.NewSource(seed))}
}

// Quote returns a fare in [50, 80].
func (q *FareQuoter) Quote() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return baseFare + minDistance + q.rng.Intn(maxDistance-minDistance+1)
}
