package softfp

import (
	"math"
	"testing"
)

func TestAddS(t *testing.T) {
	var k ReferenceKernel
	a := math.Float32bits(1.5)
	b := math.Float32bits(2.25)
	r, flags := k.AddS(a, b, RoundNearestEven)
	if math.Float32frombits(r) != 3.75 {
		t.Fatalf("got %v", math.Float32frombits(r))
	}
	if flags != 0 {
		t.Fatalf("unexpected flags %#x", flags)
	}
}

func TestDivSByZeroSetsFlag(t *testing.T) {
	var k ReferenceKernel
	a := math.Float32bits(1.0)
	b := math.Float32bits(0.0)
	_, flags := k.DivS(a, b, RoundNearestEven)
	if flags&FlagDivByZero == 0 {
		t.Fatalf("expected divide-by-zero flag")
	}
}

func TestSqrtDNegativeInvalid(t *testing.T) {
	var k ReferenceKernel
	_, flags := k.SqrtD(math.Float64bits(-4.0), RoundNearestEven)
	if flags&FlagInvalid == 0 {
		t.Fatalf("expected invalid flag for sqrt of negative")
	}
}

func TestCompareDNaN(t *testing.T) {
	var k ReferenceKernel
	lt, eq, flags := k.CompareD(math.Float64bits(math.NaN()), math.Float64bits(1.0))
	if lt || eq {
		t.Fatalf("NaN compare should be neither lt nor eq")
	}
	if flags&FlagInvalid == 0 {
		t.Fatalf("expected invalid flag")
	}
}

func TestWideningConversions(t *testing.T) {
	var k ReferenceKernel
	s := math.Float32bits(3.5)
	d := k.S2D(s)
	if math.Float64frombits(d) != 3.5 {
		t.Fatalf("S2D got %v", math.Float64frombits(d))
	}
	back, flags := k.D2S(d, RoundNearestEven)
	if math.Float32frombits(back) != 3.5 || flags != 0 {
		t.Fatalf("D2S roundtrip failed")
	}
}

func TestIntegerConversions(t *testing.T) {
	var k ReferenceKernel
	bits := k.I2D(-7)
	v, flags := k.D2I(bits, RoundNearestEven)
	if v != -7 || flags != 0 {
		t.Fatalf("I2D/D2I roundtrip: got %d flags %#x", v, flags)
	}

	ubits := k.UI2D(42)
	uv, _ := k.D2UI(ubits, RoundNearestEven)
	if uv != 42 {
		t.Fatalf("UI2D/D2UI roundtrip: got %d", uv)
	}

	if _, flags := k.D2UI(math.Float64bits(-1.0), RoundNearestEven); flags&FlagInvalid == 0 {
		t.Fatalf("expected invalid flag converting negative to unsigned")
	}
}
