// Package media holds the value types that flow between frame sources,
// converters, codecs and muxers.
package media

import (
	"fmt"
	"math"
	"math/big"
	"time"
)

// NoPTS marks a frame or packet without a presentation timestamp.
// Rescaling leaves it unchanged.
const NoPTS int64 = math.MinInt64

// Rational is a num/den pair used for time bases and frame rates.
type Rational struct {
	Num int
	Den int
}

// MicrosecondTimeBase is the encoder-side time base (1/1000000 s per tick).
var MicrosecondTimeBase = Rational{Num: 1, Den: 1_000_000}

// MPEGTimeBase is the 90 kHz clock used by MPEG containers.
var MPEGTimeBase = Rational{Num: 1, Den: 90_000}

// NewRational returns num/den.
func NewRational(num, den int) Rational {
	return Rational{Num: num, Den: den}
}

// Valid reports whether the rational has a positive denominator and
// non-negative numerator.
func (r Rational) Valid() bool {
	return r.Den > 0 && r.Num >= 0
}

// Float64 returns the value as a float.
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Invert returns den/num.
func (r Rational) Invert() Rational {
	return Rational{Num: r.Den, Den: r.Num}
}

func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Rescale converts v expressed in ticks of from into ticks of to, rounding
// to the nearest tick with ties away from zero.
func Rescale(v int64, from, to Rational) int64 {
	if v == NoPTS {
		return v
	}
	if from == to {
		return v
	}
	// v * from.Num * to.Den / (from.Den * to.Num)
	num := int64(from.Num) * int64(to.Den)
	den := int64(from.Den) * int64(to.Num)
	if den == 0 {
		return NoPTS
	}
	if n, ok := mulFits(v, num); ok {
		return roundDiv(n, den)
	}
	b := new(big.Int).Mul(big.NewInt(v), big.NewInt(num))
	d := big.NewInt(den)
	half := new(big.Int).Quo(d, big.NewInt(2))
	if b.Sign() < 0 {
		b.Sub(b, half)
	} else {
		b.Add(b, half)
	}
	b.Quo(b, d)
	if !b.IsInt64() {
		return NoPTS
	}
	return b.Int64()
}

// DurationToTicks expresses d in ticks of tb.
func DurationToTicks(d time.Duration, tb Rational) int64 {
	return Rescale(d.Nanoseconds(), Rational{Num: 1, Den: int(time.Second)}, tb)
}

// TicksToDuration converts ticks of tb into a duration.
func TicksToDuration(v int64, tb Rational) time.Duration {
	if v == NoPTS {
		return 0
	}
	return time.Duration(Rescale(v, tb, Rational{Num: 1, Den: int(time.Second)}))
}

func mulFits(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if c/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	return c, true
}

func roundDiv(n, d int64) int64 {
	if d < 0 {
		n, d = -n, -d
	}
	if n >= 0 {
		return (n + d/2) / d
	}
	return -((-n + d/2) / d)
}
