package loop

import (
	"math/rand/v2"
	"time"
)

// RandSource yields uniformly distributed values in [0, 1).
// *rand.Rand from math/rand/v2 satisfies it.
type RandSource interface {
	Float64() float64
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }

// Delay computes the pause between two iterations:
//
//	uniform(0, minDelay) + (maxDelay - minDelay)
//
// The result therefore lies in [maxDelay-minDelay, maxDelay) when
// minDelay <= maxDelay. It is negative when minDelay > maxDelay; the
// Runner sleeps zero in that case.
func Delay(minDelay, maxDelay time.Duration, src RandSource) time.Duration {
	return time.Duration(src.Float64()*float64(minDelay)) + (maxDelay - minDelay)
}
