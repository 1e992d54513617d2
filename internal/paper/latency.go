package paper

import (
	"math/rand"
	"time"
)

// Latency bounds the simulated delays for one venue profile, in
// milliseconds. Rest delays apply to submit/cancel acknowledgement,
// stream delays to fill notifications. Immutable once constructed.
type Latency struct {
	RestMin   int
	RestMax   int
	StreamMin int
	StreamMax int
}

// Zero is the no-delay profile, useful for deterministic tests.
var Zero = Latency{}

func sample(min, max int) time.Duration {
	if max < min {
		max = min
	}
	ms := min
	if span := max - min; span > 0 {
		ms += rand.Intn(span + 1)
	}
	return time.Duration(ms) * time.Millisecond
}

// RestDelay samples a submit/cancel acknowledgement delay.
func (l Latency) RestDelay() time.Duration {
	return sample(l.RestMin, l.RestMax)
}

// StreamDelay samples a fill notification delay.
func (l Latency) StreamDelay() time.Duration {
	return sample(l.StreamMin, l.StreamMax)
}
