package sim

import (
	"fmt"
	"math"
	"math/big"
	"strings"
)

// TimeUnit is the unit in which a model expresses its simulated time.
type TimeUnit int

const (
	Nanosecond TimeUnit = iota
	Microsecond
	Millisecond
	Second
	Minute
	Hour
)

var unitNanos = map[TimeUnit]int64{
	Nanosecond:  1,
	Microsecond: 1_000,
	Millisecond: 1_000_000,
	Second:      1_000_000_000,
	Minute:      60 * 1_000_000_000,
	Hour:        3600 * 1_000_000_000,
}

var unitNames = map[TimeUnit]string{
	Nanosecond:  "ns",
	Microsecond: "us",
	Millisecond: "ms",
	Second:      "s",
	Minute:      "min",
	Hour:        "h",
}

// String returns the short unit suffix ("ns", "ms", "s", ...).
func (u TimeUnit) String() string {
	if name, ok := unitNames[u]; ok {
		return name
	}
	return fmt.Sprintf("TimeUnit(%d)", int(u))
}

// Valid reports whether u is one of the declared units.
func (u TimeUnit) Valid() bool {
	_, ok := unitNanos[u]
	return ok
}

// ParseTimeUnit accepts short ("ms") and long ("milliseconds") unit names.
func ParseTimeUnit(s string) (TimeUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ns", "nanosecond", "nanoseconds":
		return Nanosecond, nil
	case "us", "µs", "microsecond", "microseconds":
		return Microsecond, nil
	case "ms", "millisecond", "milliseconds":
		return Millisecond, nil
	case "s", "sec", "second", "seconds":
		return Second, nil
	case "min", "minute", "minutes":
		return Minute, nil
	case "h", "hour", "hours":
		return Hour, nil
	}
	return 0, fmt.Errorf("unknown time unit %q; valid: ns, us, ms, s, min, h", s)
}

// quantity is the shared representation of Time and Duration: an exact
// rational amount of some unit, or infinity. A nil amount means zero, so
// the zero value is a valid zero quantity. Amounts are never mutated after
// construction; every operation allocates a fresh big.Rat.
type quantity struct {
	amount   *big.Rat
	unit     TimeUnit
	infinite bool
}

func (q quantity) rat() *big.Rat {
	if q.amount == nil {
		return new(big.Rat)
	}
	return q.amount
}

func (q quantity) nanos() *big.Rat {
	return new(big.Rat).Mul(q.rat(), big.NewRat(unitNanos[q.unit], 1))
}

func (q quantity) in(unit TimeUnit) quantity {
	if q.infinite {
		return quantity{unit: unit, infinite: true}
	}
	if q.unit == unit {
		return q
	}
	r := new(big.Rat).Quo(q.nanos(), big.NewRat(unitNanos[unit], 1))
	return quantity{amount: r, unit: unit}
}

func (q quantity) cmp(o quantity) int {
	switch {
	case q.infinite && o.infinite:
		return 0
	case q.infinite:
		return 1
	case o.infinite:
		return -1
	}
	return q.nanos().Cmp(o.nanos())
}

// add saturates at infinity and expresses the result in q's unit.
func (q quantity) add(o quantity) quantity {
	if q.infinite || o.infinite {
		return quantity{unit: q.unit, infinite: true}
	}
	sum := new(big.Rat).Add(q.nanos(), o.nanos())
	return quantity{amount: sum.Quo(sum, big.NewRat(unitNanos[q.unit], 1)), unit: q.unit}
}

// sub treats inf - x (x finite or not) as inf. A finite minuend with an
// infinite subtrahend has no representable result.
func (q quantity) sub(o quantity) quantity {
	if q.infinite {
		return quantity{unit: q.unit, infinite: true}
	}
	if o.infinite {
		panic(fmt.Sprintf("sim: cannot subtract infinity from finite %s", q.String()))
	}
	diff := new(big.Rat).Sub(q.nanos(), o.nanos())
	return quantity{amount: diff.Quo(diff, big.NewRat(unitNanos[q.unit], 1)), unit: q.unit}
}

func (q quantity) seconds() float64 {
	if q.infinite {
		return math.Inf(1)
	}
	f, _ := new(big.Rat).Quo(q.nanos(), big.NewRat(unitNanos[Second], 1)).Float64()
	return f
}

func (q quantity) float() float64 {
	if q.infinite {
		return math.Inf(1)
	}
	f, _ := q.rat().Float64()
	return f
}

func (q quantity) String() string {
	if q.infinite {
		return "inf" + q.unit.String()
	}
	r := q.rat()
	if r.IsInt() {
		return r.Num().String() + q.unit.String()
	}
	return r.RatString() + q.unit.String()
}

func fromFloat(v float64, unit TimeUnit) quantity {
	if math.IsInf(v, 1) {
		return quantity{unit: unit, infinite: true}
	}
	r := new(big.Rat)
	if r.SetFloat64(v) == nil {
		panic(fmt.Sprintf("sim: %v is not a valid time amount", v))
	}
	return quantity{amount: r, unit: unit}
}

// === Duration ===

// Duration is an exact, unit-aware span of simulated time. Infinity is the
// greatest Duration and signals "no further internal event".
type Duration struct {
	q quantity
}

// NewDuration returns amount units.
func NewDuration(amount int64, unit TimeUnit) Duration {
	return Duration{quantity{amount: big.NewRat(amount, 1), unit: unit}}
}

// NewRationalDuration returns num/den units. den must not be zero.
func NewRationalDuration(num, den int64, unit TimeUnit) Duration {
	return Duration{quantity{amount: big.NewRat(num, den), unit: unit}}
}

// DurationFromFloat converts a float amount exactly; +Inf maps to infinity.
func DurationFromFloat(amount float64, unit TimeUnit) Duration {
	return Duration{fromFloat(amount, unit)}
}

// ZeroDuration returns an empty span in unit.
func ZeroDuration(unit TimeUnit) Duration {
	return Duration{quantity{unit: unit}}
}

// InfiniteDuration returns the infinity sentinel in unit.
func InfiniteDuration(unit TimeUnit) Duration {
	return Duration{quantity{unit: unit, infinite: true}}
}

func (d Duration) Unit() TimeUnit          { return d.q.unit }
func (d Duration) IsInfinite() bool        { return d.q.infinite }
func (d Duration) IsZero() bool            { return !d.q.infinite && d.q.rat().Sign() == 0 }
func (d Duration) Seconds() float64        { return d.q.seconds() }
func (d Duration) Float64() float64        { return d.q.float() }
func (d Duration) String() string          { return d.q.String() }
func (d Duration) In(u TimeUnit) Duration  { return Duration{d.q.in(u)} }
func (d Duration) Cmp(o Duration) int      { return d.q.cmp(o.q) }
func (d Duration) Less(o Duration) bool    { return d.q.cmp(o.q) < 0 }
func (d Duration) Equal(o Duration) bool   { return d.q.cmp(o.q) == 0 }
func (d Duration) Add(o Duration) Duration { return Duration{d.q.add(o.q)} }

// Sign returns -1, 0 or +1; infinity is positive.
func (d Duration) Sign() int {
	if d.q.infinite {
		return 1
	}
	return d.q.rat().Sign()
}

// Subtract returns d-o with the same saturation rules as Time.Subtract.
func (d Duration) Subtract(o Duration) Duration { return Duration{d.q.sub(o.q)} }

// Rat returns a copy of the exact amount in d's unit (zero when infinite).
func (d Duration) Rat() *big.Rat { return new(big.Rat).Set(d.q.rat()) }

// === Time ===

// Time is an exact, unit-aware simulated instant. InfiniteTime is the
// greatest instant: a model whose next event is at infinity never fires.
type Time struct {
	q quantity
}

// NewTime returns the instant at amount units from the origin.
func NewTime(amount int64, unit TimeUnit) Time {
	return Time{quantity{amount: big.NewRat(amount, 1), unit: unit}}
}

// NewRationalTime returns the instant at num/den units.
func NewRationalTime(num, den int64, unit TimeUnit) Time {
	return Time{quantity{amount: big.NewRat(num, den), unit: unit}}
}

// TimeFromFloat converts a float amount exactly; +Inf maps to infinity.
func TimeFromFloat(amount float64, unit TimeUnit) Time {
	return Time{fromFloat(amount, unit)}
}

// ZeroTime returns the origin expressed in unit.
func ZeroTime(unit TimeUnit) Time {
	return Time{quantity{unit: unit}}
}

// InfiniteTime returns the infinity sentinel in unit.
func InfiniteTime(unit TimeUnit) Time {
	return Time{quantity{unit: unit, infinite: true}}
}

func (t Time) Unit() TimeUnit     { return t.q.unit }
func (t Time) IsInfinite() bool   { return t.q.infinite }
func (t Time) Seconds() float64   { return t.q.seconds() }
func (t Time) Float64() float64   { return t.q.float() }
func (t Time) String() string     { return t.q.String() }
func (t Time) In(u TimeUnit) Time { return Time{t.q.in(u)} }
func (t Time) Cmp(o Time) int     { return t.q.cmp(o.q) }
func (t Time) Less(o Time) bool   { return t.q.cmp(o.q) < 0 }
func (t Time) Equal(o Time) bool  { return t.q.cmp(o.q) == 0 }
func (t Time) After(o Time) bool  { return t.q.cmp(o.q) > 0 }

// Add returns t+d in t's unit; either operand infinite gives infinity.
func (t Time) Add(d Duration) Time { return Time{t.q.add(d.q)} }

// Subtract returns t-o in t's unit. inf-finite and inf-inf are both infinity.
// Subtracting an infinite instant from a finite one panics.
func (t Time) Subtract(o Time) Duration { return Duration{t.q.sub(o.q)} }

// MinTime returns the smaller instant, preferring a on ties.
func MinTime(a, b Time) Time {
	if b.Less(a) {
		return b
	}
	return a
}
