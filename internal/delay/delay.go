package delay

import (
	"math"
	"math/rand"
	"time"

	"chatery/internal/constants"
	"chatery/internal/models"
)

// Resolver turns a user-supplied delay specification into a concrete
// duration. It is pure given its random source and has no side effects.
type Resolver struct {
	rng *rand.Rand
}

// NewResolver creates a resolver seeded from the current time.
func NewResolver() *Resolver {
	return NewResolverWithSource(rand.New(rand.NewSource(time.Now().UnixNano())))
}

// NewResolverWithSource creates a resolver with an explicit random source,
// which makes the "auto" behavior deterministic in tests.
func NewResolverWithSource(rng *rand.Rand) *Resolver {
	return &Resolver{rng: rng}
}

// Resolve maps a delay spec to milliseconds:
//
//	0 or "0"                      -> 0
//	absent, "", "auto"            -> random whole seconds in [1s, 15s]
//	finite number >= 0            -> rounded to the nearest millisecond
//	anything else                 -> same random fallback as "auto"
func (r *Resolver) Resolve(spec models.DelaySpec) time.Duration {
	if !spec.IsSet() || spec.Raw() == "" || spec.Raw() == "auto" {
		return r.random()
	}
	n, ok := spec.Number()
	if !ok || n < 0 {
		return r.random()
	}
	ms := int64(math.Round(n))
	return time.Duration(ms) * time.Millisecond
}

func (r *Resolver) random() time.Duration {
	span := constants.AutoDelayMaxSec - constants.AutoDelayMinSec + 1
	secs := r.rng.Intn(span) + constants.AutoDelayMinSec
	return time.Duration(secs) * time.Second
}
