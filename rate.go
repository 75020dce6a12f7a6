package main

import (
	"fmt"
	"math/rand"
	"time"
)

// A RatePolicy bounds the random sleep between appends for a writer. It is
// resolved once at startup and shared read-only by every writer in a session.
type RatePolicy struct {
	Min time.Duration
	Max time.Duration
}

var ratePresets = map[string]RatePolicy{
	"slow":   {Min: 2 * time.Second, Max: 5 * time.Second},
	"medium": {Min: 500 * time.Millisecond, Max: 2 * time.Second},
	"fast":   {Min: 100 * time.Millisecond, Max: 500 * time.Millisecond},
	"burst":  {Min: 10 * time.Millisecond, Max: 100 * time.Millisecond},
}

// ResolveRatePolicy turns a preset name or an explicit min/max override into
// a RatePolicy. The override only applies when both bounds are set: a
// one-sided override is ambiguous and is rejected rather than guessed at.
func ResolveRatePolicy(preset string, min, max time.Duration) (RatePolicy, error) {
	if (min == 0) != (max == 0) {
		return RatePolicy{}, fmt.Errorf(
			"rate override requires both min and max intervals, got min=%s max=%s", min, max,
		)
	}

	if min != 0 && max != 0 {
		if min < 0 || max < 0 {
			return RatePolicy{}, fmt.Errorf("rate intervals must not be negative: min=%s max=%s", min, max)
		}
		if min > max {
			return RatePolicy{}, fmt.Errorf("rate min interval %s exceeds max interval %s", min, max)
		}
		return RatePolicy{Min: min, Max: max}, nil
	}

	policy, ok := ratePresets[preset]
	if !ok {
		return RatePolicy{}, fmt.Errorf("unknown rate preset %q", preset)
	}

	return policy, nil
}

// Interval draws a uniformly distributed sleep from [Min, Max].
func (p RatePolicy) Interval(rng *rand.Rand) time.Duration {
	if p.Max <= p.Min {
		return p.Min
	}
	return p.Min + time.Duration(rng.Int63n(int64(p.Max-p.Min)+1))
}

func (p RatePolicy) String() string {
	return fmt.Sprintf("%s-%s", p.Min, p.Max)
}
