package sim

import (
	"time"

	"golang.org/x/exp/rand"
)

// Entropy hands out one independent random stream per path. Streams are
// path-local, so paths can be simulated in parallel without locking and
// the result does not depend on how paths are split across workers.
type Entropy interface {
	Stream(path int) rand.Source
}

// Seed is a reproducible Entropy: the same seed always yields the same
// streams.
type Seed uint64

func (s Seed) Stream(path int) rand.Source {
	return rand.NewSource(mix(uint64(s) + uint64(path)*golden))
}

// NewEntropy returns a time-seeded Entropy.
func NewEntropy() Entropy {
	return Seed(uint64(time.Now().UnixNano()))
}

// Child derives an independent Entropy for asset index i, so multi-asset
// contracts do not reuse the same draws for every underlying.
func Child(e Entropy, i int) Entropy {
	return child{parent: e, index: uint64(i)}
}

type child struct {
	parent Entropy
	index  uint64
}

func (c child) Stream(path int) rand.Source {
	base := c.parent.Stream(path).Uint64()
	return rand.NewSource(mix(base ^ mix(c.index+1)))
}

const golden = 0x9e3779b97f4a7c15

// mix is the splitmix64 finaliser.
func mix(z uint64) uint64 {
	z += golden
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}
