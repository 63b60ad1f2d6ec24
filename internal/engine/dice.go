package engine

import "math/rand/v2"

// WeightedDie draws 1-6 from the fixed non-uniform distribution
// P(1..4)=20% each, P(5)=15%, P(6)=5%.
type WeightedDie struct {
	rng *rand.Rand
}

func NewWeightedDie(seed uint64) *WeightedDie {
	return &WeightedDie{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (d *WeightedDie) Roll() int {
	n := d.rng.IntN(100)
	switch {
	case n < 20:
		return 1
	case n < 40:
		return 2
	case n < 60:
		return 3
	case n < 80:
		return 4
	case n < 95:
		return 5
	default:
		return 6
	}
}
