package ndp

//
// Pluggable delay/jitter sampling for the network model (spec.md §4.4:
// "jitter is the only stochastic element and is injected via a pluggable
// DistGenerator").
//

import (
	"math"
	"math/rand"
	"time"

	"github.com/montanaflynn/stats"
)

// DistGeneratorRNG is the view of a [rand.Rand] the distributions in this
// file depend on, abstracted for testability the way ooni-netem's
// LinkFwdRNG abstracts math/rand for its link delay/loss model.
type DistGeneratorRNG interface {
	// Float64 is like [rand.Rand.Float64].
	Float64() float64

	// ExpFloat64 is like [rand.Rand.ExpFloat64].
	ExpFloat64() float64

	// Intn is like [rand.Rand.Intn].
	Intn(n int) int
}

var _ DistGeneratorRNG = &rand.Rand{}

// NewDefaultRNG creates the default, real-entropy [DistGeneratorRNG]. It
// draws from math/rand's top-level source, which is safe for concurrent
// use.
func NewDefaultRNG() DistGeneratorRNG {
	return globalRNG{}
}

// globalRNG is a [DistGeneratorRNG] backed by math/rand's top-level
// functions.
type globalRNG struct{}

func (globalRNG) Float64() float64    { return rand.Float64() }
func (globalRNG) ExpFloat64() float64 { return rand.ExpFloat64() }
func (globalRNG) Intn(n int) int      { return rand.Intn(n) }

// DistGenerator samples one delay value, in nanoseconds, each time Next is
// called. Implementations MUST be safe for concurrent use, since
// [Network] samples from one goroutine per in-flight packet.
type DistGenerator interface {
	Next() time.Duration
}

// ConstantDist always returns the same delay. Useful for deterministic
// tests and for a "no jitter" configuration.
type ConstantDist struct {
	Delay time.Duration
}

// Next implements [DistGenerator].
func (d ConstantDist) Next() time.Duration { return d.Delay }

// UniformDist samples uniformly from [Min, Max].
type UniformDist struct {
	Min, Max time.Duration
	RNG      DistGeneratorRNG
}

// NewUniformDist creates a [UniformDist] with the default RNG.
func NewUniformDist(min, max time.Duration) *UniformDist {
	return &UniformDist{Min: min, Max: max, RNG: NewDefaultRNG()}
}

// Next implements [DistGenerator].
func (d *UniformDist) Next() time.Duration {
	if d.Max <= d.Min {
		return d.Min
	}
	span := d.Max - d.Min
	return d.Min + time.Duration(d.RNG.Float64()*float64(span))
}

// ExponentialDist samples from an exponential distribution with the given
// mean, a common model for queueing/propagation jitter.
type ExponentialDist struct {
	Mean time.Duration
	RNG  DistGeneratorRNG
}

// NewExponentialDist creates an [ExponentialDist] with the default RNG.
func NewExponentialDist(mean time.Duration) *ExponentialDist {
	return &ExponentialDist{Mean: mean, RNG: NewDefaultRNG()}
}

// Next implements [DistGenerator].
func (d *ExponentialDist) Next() time.Duration {
	if d.Mean <= 0 {
		return 0
	}
	return time.Duration(d.RNG.ExpFloat64() * float64(d.Mean))
}

// EmpiricalDist replays delay samples drawn from a recorded trace,
// reporting the trace's summary statistics via github.com/montanaflynn/stats
// so operators can sanity-check a configured trace before using it.
type EmpiricalDist struct {
	samples []time.Duration
	mean    float64
	stddev  float64
	rng     DistGeneratorRNG
}

// NewEmpiricalDist creates an [EmpiricalDist] that replays samplesNs
// (nanosecond delay observations) in random order.
func NewEmpiricalDist(samplesNs []float64, rng DistGeneratorRNG) (*EmpiricalDist, error) {
	data := stats.LoadRawData(samplesNs)
	mean, err := data.Mean()
	if err != nil {
		return nil, err
	}
	stddev, err := data.StandardDeviation()
	if err != nil {
		return nil, err
	}
	samples := make([]time.Duration, len(samplesNs))
	for i, ns := range samplesNs {
		samples[i] = time.Duration(math.Round(ns)) * time.Nanosecond
	}
	if rng == nil {
		rng = NewDefaultRNG()
	}
	return &EmpiricalDist{samples: samples, mean: mean, stddev: stddev, rng: rng}, nil
}

// Mean returns the trace's sample mean, in nanoseconds.
func (d *EmpiricalDist) Mean() float64 { return d.mean }

// StandardDeviation returns the trace's sample standard deviation, in
// nanoseconds.
func (d *EmpiricalDist) StandardDeviation() float64 { return d.stddev }

// Next implements [DistGenerator].
func (d *EmpiricalDist) Next() time.Duration {
	if len(d.samples) == 0 {
		return 0
	}
	return d.samples[d.rng.Intn(len(d.samples))]
}
