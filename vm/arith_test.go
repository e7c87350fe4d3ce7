package vm

import (
	"math"
	"testing"
)

func TestIntDivRemIdentity(t *testing.T) {
	pairs := []struct{ a, b int32 }{
		{7, 2}, {-7, 2}, {7, -2}, {-7, -2},
		{math.MaxInt32, 3}, {math.MinInt32, 3}, {math.MinInt32, -1},
		{0, 5}, {1, math.MinInt32},
	}
	for _, p := range pairs {
		q, ok := intDiv(p.a, p.b)
		r, _ := intRem(p.a, p.b)
		if !ok {
			t.Fatalf("intDiv(%d, %d) reported zero divisor", p.a, p.b)
		}
		if q*p.b+r != p.a {
			t.Errorf("(%d/%d)*%d + %d%%%d = %d, want %d", p.a, p.b, p.b, p.a, p.b, q*p.b+r, p.a)
		}
		if r != 0 && (r < 0) != (p.a < 0) {
			t.Errorf("%d %% %d = %d: sign does not follow dividend", p.a, p.b, r)
		}
	}
}

func TestDivByZeroReported(t *testing.T) {
	if _, ok := intDiv(1, 0); ok {
		t.Error("intDiv(1, 0) succeeded")
	}
	if _, ok := intRem(1, 0); ok {
		t.Error("intRem(1, 0) succeeded")
	}
	if _, ok := longDiv(1, 0); ok {
		t.Error("longDiv(1, 0) succeeded")
	}
	if _, ok := longRem(1, 0); ok {
		t.Error("longRem(1, 0) succeeded")
	}
}

func TestMinDividedByMinusOneWraps(t *testing.T) {
	if q, _ := intDiv(math.MinInt32, -1); q != math.MinInt32 {
		t.Errorf("MinInt32 / -1 = %d, want MinInt32", q)
	}
	if r, _ := intRem(math.MinInt32, -1); r != 0 {
		t.Errorf("MinInt32 %% -1 = %d, want 0", r)
	}
	if q, _ := longDiv(math.MinInt64, -1); q != math.MinInt64 {
		t.Errorf("MinInt64 / -1 = %d, want MinInt64", q)
	}
}

func TestShiftDistanceMasking(t *testing.T) {
	for _, a := range []int32{1, -1, math.MinInt32, 0x12345678} {
		for _, s := range []int32{0, 1, 5, 31} {
			if intShl(a, s) != intShl(a, s+32) {
				t.Errorf("intShl(%d, %d) != intShl(%d, %d)", a, s, a, s+32)
			}
			if intShr(a, s) != intShr(a, s+32) {
				t.Errorf("intShr(%d, %d) != intShr(%d, %d)", a, s, a, s+32)
			}
			if intUshr(a, s) != intUshr(a, s+32) {
				t.Errorf("intUshr(%d, %d) != intUshr(%d, %d)", a, s, a, s+32)
			}
		}
	}
	for _, a := range []int64{1, -1, math.MinInt64} {
		for _, s := range []int32{0, 1, 63} {
			if longShl(a, s) != longShl(a, s+64) {
				t.Errorf("longShl(%d, %d) != longShl(%d, %d)", a, s, a, s+64)
			}
			if longUshr(a, s) != longUshr(a, s+64) {
				t.Errorf("longUshr(%d, %d) != longUshr(%d, %d)", a, s, a, s+64)
			}
		}
	}
}

func TestSignedVersusUnsignedShift(t *testing.T) {
	if got := intShr(-16, 2); got != -4 {
		t.Errorf("intShr(-16, 2) = %d, want -4", got)
	}
	if got := intUshr(-16, 2); got != 0x3ffffffc {
		t.Errorf("intUshr(-16, 2) = %#x, want 0x3ffffffc", got)
	}
	if got := intUshr(-1, 1); got != math.MaxInt32 {
		t.Errorf("intUshr(-1, 1) = %d, want MaxInt32", got)
	}
	if got := longUshr(-1, 1); got != math.MaxInt64 {
		t.Errorf("longUshr(-1, 1) = %d, want MaxInt64", got)
	}
}

func TestFloatCompareNaN(t *testing.T) {
	nan := float32(math.NaN())
	if got := floatCmp(nan, 1, -1); got != -1 {
		t.Errorf("fcmpl(NaN, 1) = %d, want -1", got)
	}
	if got := floatCmp(1, nan, 1); got != 1 {
		t.Errorf("fcmpg(1, NaN) = %d, want 1", got)
	}
	if got := doubleCmp(math.NaN(), math.NaN(), -1); got != -1 {
		t.Errorf("dcmpl(NaN, NaN) = %d, want -1", got)
	}
	if got := floatCmp(2, 2, -1); got != 0 {
		t.Errorf("fcmpl(2, 2) = %d, want 0", got)
	}
}

func TestLongCompare(t *testing.T) {
	tests := []struct {
		a, b int64
		want int32
	}{
		{1, 2, -1}, {2, 1, 1}, {5, 5, 0},
		{math.MinInt64, math.MaxInt64, -1},
	}
	for _, tt := range tests {
		if got := longCmp(tt.a, tt.b); got != tt.want {
			t.Errorf("longCmp(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestNarrowingSaturates(t *testing.T) {
	if got := floatToInt(float32(math.Inf(1))); got != math.MaxInt32 {
		t.Errorf("f2i(+Inf) = %d", got)
	}
	if got := floatToInt(float32(math.NaN())); got != 0 {
		t.Errorf("f2i(NaN) = %d", got)
	}
	if got := doubleToLong(-1e300); got != math.MinInt64 {
		t.Errorf("d2l(-1e300) = %d", got)
	}
	if got := doubleToInt(2.9); got != 2 {
		t.Errorf("d2i(2.9) = %d, want 2 (truncation)", got)
	}
	if got := doubleToInt(-2.9); got != -2 {
		t.Errorf("d2i(-2.9) = %d, want -2 (truncation)", got)
	}
	if got := floatToLong(1e30); got != math.MaxInt64 {
		t.Errorf("f2l(1e30) = %d", got)
	}
}
