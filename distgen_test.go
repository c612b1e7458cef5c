package ndp

import (
	"testing"
	"time"
)

// stubRNG is a deterministic DistGeneratorRNG stand-in for tests.
type stubRNG struct {
	float64s []float64
	ints     []int
	fi, ii   int
}

func (s *stubRNG) Float64() float64 {
	v := s.float64s[s.fi%len(s.float64s)]
	s.fi++
	return v
}

func (s *stubRNG) ExpFloat64() float64 {
	v := s.float64s[s.fi%len(s.float64s)]
	s.fi++
	return v
}

func (s *stubRNG) Intn(n int) int {
	v := s.ints[s.ii%len(s.ints)]
	s.ii++
	return v % n
}

func TestConstantDist(t *testing.T) {
	d := ConstantDist{Delay: 42 * time.Nanosecond}
	if got := d.Next(); got != 42*time.Nanosecond {
		t.Errorf("got %s, want 42ns", got)
	}
}

func TestUniformDistBounds(t *testing.T) {
	rng := &stubRNG{float64s: []float64{0, 0.5, 0.999}}
	d := UniformDist{Min: 100 * time.Nanosecond, Max: 200 * time.Nanosecond, RNG: rng}

	if got := d.Next(); got != 100*time.Nanosecond {
		t.Errorf("Float64()=0: got %s, want 100ns", got)
	}
	if got := d.Next(); got != 150*time.Nanosecond {
		t.Errorf("Float64()=0.5: got %s, want 150ns", got)
	}
}

func TestUniformDistDegenerate(t *testing.T) {
	d := UniformDist{Min: 50 * time.Nanosecond, Max: 50 * time.Nanosecond, RNG: &stubRNG{float64s: []float64{0.9}}}
	if got := d.Next(); got != 50*time.Nanosecond {
		t.Errorf("degenerate [Min,Max]: got %s, want 50ns", got)
	}
}

func TestExponentialDistZeroMean(t *testing.T) {
	d := ExponentialDist{Mean: 0, RNG: &stubRNG{float64s: []float64{1}}}
	if got := d.Next(); got != 0 {
		t.Errorf("zero mean: got %s, want 0", got)
	}
}

func TestExponentialDistScalesByMean(t *testing.T) {
	rng := &stubRNG{float64s: []float64{2}}
	d := ExponentialDist{Mean: 10 * time.Nanosecond, RNG: rng}
	if got := d.Next(); got != 20*time.Nanosecond {
		t.Errorf("got %s, want 20ns", got)
	}
}

func TestEmpiricalDistStats(t *testing.T) {
	samples := []float64{100, 200, 300}
	rng := &stubRNG{ints: []int{0, 1, 2}}
	d, err := NewEmpiricalDist(samples, rng)
	if err != nil {
		t.Fatal(err)
	}
	if got := d.Mean(); got != 200 {
		t.Errorf("Mean(): got %v, want 200", got)
	}
	if d.StandardDeviation() <= 0 {
		t.Errorf("StandardDeviation(): expected > 0, got %v", d.StandardDeviation())
	}

	want := []time.Duration{100 * time.Nanosecond, 200 * time.Nanosecond, 300 * time.Nanosecond}
	for i, w := range want {
		if got := d.Next(); got != w {
			t.Errorf("Next() #%d: got %s, want %s", i, got, w)
		}
	}
}
