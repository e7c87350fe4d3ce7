package vm

import "math"

// Numeric semantics helpers. All integer arithmetic wraps in
// two's-complement; Go's fixed-width operators already behave that way,
// including MIN_VALUE / -1, which wraps back to MIN_VALUE instead of
// trapping. Division by zero is the only condition surfaced to callers.

// intDiv implements idiv. ok is false for a zero divisor.
func intDiv(a, b int32) (int32, bool) {
	if b == 0 {
		return 0, false
	}
	return a / b, true
}

// intRem implements irem. The result's sign follows the dividend, and
// (a/b)*b + a%b == a holds for every defined pair.
func intRem(a, b int32) (int32, bool) {
	if b == 0 {
		return 0, false
	}
	return a % b, true
}

// longDiv implements ldiv.
func longDiv(a, b int64) (int64, bool) {
	if b == 0 {
		return 0, false
	}
	return a / b, true
}

// longRem implements lrem.
func longRem(a, b int64) (int64, bool) {
	if b == 0 {
		return 0, false
	}
	return a % b, true
}

// Shift distances are masked before use: low 5 bits for int shifts,
// low 6 bits for long shifts.

func intShl(a, dist int32) int32  { return a << (uint32(dist) & 31) }
func intShr(a, dist int32) int32  { return a >> (uint32(dist) & 31) }
func intUshr(a, dist int32) int32 { return int32(uint32(a) >> (uint32(dist) & 31)) }

func longShl(a int64, dist int32) int64  { return a << (uint32(dist) & 63) }
func longShr(a int64, dist int32) int64  { return a >> (uint32(dist) & 63) }
func longUshr(a int64, dist int32) int64 { return int64(uint64(a) >> (uint32(dist) & 63)) }

// longCmp implements lcmp: -1, 0, or 1.
func longCmp(a, b int64) int32 {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// floatCmp implements fcmpl/fcmpg; nan is the result when either operand
// is NaN (-1 for fcmpl, +1 for fcmpg).
func floatCmp(a, b float32, nan int32) int32 {
	switch {
	case a != a || b != b:
		return nan
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// doubleCmp implements dcmpl/dcmpg.
func doubleCmp(a, b float64, nan int32) int32 {
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		return nan
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// Narrowing float-to-integer conversions saturate at the target range and
// map NaN to zero.

func floatToInt(f float32) int32 {
	switch {
	case f != f:
		return 0
	case f >= float32(math.MaxInt32):
		return math.MaxInt32
	case f <= float32(math.MinInt32):
		return math.MinInt32
	}
	return int32(f)
}

func floatToLong(f float32) int64 {
	switch {
	case f != f:
		return 0
	case f >= float32(math.MaxInt64):
		return math.MaxInt64
	case f <= float32(math.MinInt64):
		return math.MinInt64
	}
	return int64(f)
}

func doubleToInt(d float64) int32 {
	switch {
	case math.IsNaN(d):
		return 0
	case d >= float64(math.MaxInt32):
		return math.MaxInt32
	case d <= float64(math.MinInt32):
		return math.MinInt32
	}
	return int32(d)
}

func doubleToLong(d float64) int64 {
	switch {
	case math.IsNaN(d):
		return 0
	case d >= float64(math.MaxInt64):
		return math.MaxInt64
	case d <= float64(math.MinInt64):
		return math.MinInt64
	}
	return int64(d)
}
