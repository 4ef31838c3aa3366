// Package rng provides the single seedable random stream shared by a run.
// The stream state can be marshalled so a checkpointed run resumes with the
// exact same draws.
package rng

import (
	"fmt"
	"math/rand/v2"
)

// golden mixes the seed into the second PCG word.
const golden = 0x9e3779b97f4a7c15

type Stream struct {
	*rand.Rand
	pcg  *rand.PCG
	seed uint64
}

func New(seed uint64) *Stream {
	pcg := rand.NewPCG(seed, seed^golden)
	return &Stream{Rand: rand.New(pcg), pcg: pcg, seed: seed}
}

func (s *Stream) Seed() uint64 { return s.seed }

func (s *Stream) MarshalBinary() ([]byte, error) {
	return s.pcg.MarshalBinary()
}

// Restore rebuilds a stream at a previously marshalled position.
func Restore(seed uint64, state []byte) (*Stream, error) {
	s := New(seed)
	if err := s.pcg.UnmarshalBinary(state); err != nil {
		return nil, fmt.Errorf("rng: restore state: %w", err)
	}
	return s, nil
}
