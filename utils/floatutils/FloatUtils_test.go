package floatutils

import (
	"math"
	"testing"
)

func TestClip(t *testing.T) {
	if got := Clip(1.5, 0, 1); got != 1 {
		t.Errorf("clip: want(1) have(%v)", got)
	}
	if got := Clip(-0.5, 0, 1); got != 0 {
		t.Errorf("clip: want(0) have(%v)", got)
	}
	if got := Clip(0.25, 0, 1); got != 0.25 {
		t.Errorf("clip: want(0.25) have(%v)", got)
	}
}

func TestIsFinite(t *testing.T) {
	if !IsFinite(0, 1, -1e300) {
		t.Error("isFinite: finite values reported as non-finite")
	}
	if IsFinite(0, math.NaN()) {
		t.Error("isFinite: NaN reported as finite")
	}
	if IsFinite(math.Inf(-1)) {
		t.Error("isFinite: -Inf reported as finite")
	}
}

func TestAbs(t *testing.T) {
	in := []float64{-2, 0, 3}
	out := Abs(in)
	want := []float64{2, 0, 3}
	for i := range want {
		if out[i] != want[i] {
			t.Errorf("abs[%v]: want(%v) have(%v)", i, want[i], out[i])
		}
	}
	if in[0] != -2 {
		t.Error("abs: input modified")
	}
}
