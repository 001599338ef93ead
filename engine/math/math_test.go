package math

import "testing"

func TestClamp(t *testing.T) {
	tests := []struct {
		f, low, high, want float32
	}{
		{0.5, 0, 1, 0.5},
		{-1, 0, 1, 0},
		{2, 0, 1, 1},
		{1, 0, 1, 1},
	}
	for _, tt := range tests {
		if got := Clamp(tt.f, tt.low, tt.high); got != tt.want {
			t.Errorf("Clamp(%v, %v, %v) = %v, want %v", tt.f, tt.low, tt.high, got, tt.want)
		}
	}
	if got := Clamp(300, 0, 255); got != 255 {
		t.Errorf("Clamp(int) = %d", got)
	}
}

func TestDivCeil(t *testing.T) {
	tests := []struct {
		n, d, want uint32
	}{
		{0, 32, 0},
		{1, 32, 1},
		{32, 32, 1},
		{33, 32, 2},
		{640, 64, 10},
	}
	for _, tt := range tests {
		if got := DivCeil(tt.n, tt.d); got != tt.want {
			t.Errorf("DivCeil(%d, %d) = %d, want %d", tt.n, tt.d, got, tt.want)
		}
	}
}

func TestMinMax3(t *testing.T) {
	if got := Min3(3, -2, 7); got != -2 {
		t.Errorf("Min3 = %d", got)
	}
	if got := Max3(float32(0.1), 0.5, 0.3); got != 0.5 {
		t.Errorf("Max3 = %v", got)
	}
}

func TestVec2(t *testing.T) {
	a, b := NewVec2(1, 2), NewVec2(3, -4)
	if got := a.Add(b); got != (Vec2{X: 4, Y: -2}) {
		t.Errorf("Add = %v", got)
	}
	if got := a.Mul(b); got != (Vec2{X: 3, Y: -8}) {
		t.Errorf("Mul = %v", got)
	}
	if got := NewVec2FromScalars[int16](-3, 9); got != (Vec2{X: -3, Y: 9}) {
		t.Errorf("NewVec2FromScalars = %v", got)
	}
	if !a.Compare(NewVec2(1.0000001, 2), 1e-6) || a.Compare(b, 0.5) {
		t.Error("Compare mismatch")
	}
}

func TestVec4(t *testing.T) {
	v := NewVec4(1, 2, 3, 4)
	if got := v.Mul(NewVec4(2, 0, 1, 0.25)); got != NewVec4(2, 0, 3, 1) {
		t.Errorf("Mul = %v", got)
	}
	if got := v.ToArray(); got != [4]float32{1, 2, 3, 4} {
		t.Errorf("ToArray = %v", got)
	}
	if got := NewVec3(1, 2, 3).ToVec4(1); got != NewVec4(1, 2, 3, 1) {
		t.Errorf("ToVec4 = %v", got)
	}
}

func TestBarycentric(t *testing.T) {
	a, b, c := NewVec4(1, 0, 0, 1), NewVec4(0, 1, 0, 1), NewVec4(0, 0, 1, 1)
	got := Barycentric(a, b, c, 0.5, 0.25, 0.25)
	if !got.Compare(NewVec4(0.5, 0.25, 0.25, 1), 1e-6) {
		t.Errorf("Barycentric = %v", got)
	}
	if got := Barycentric(a, b, c, 0, 1, 0); got != b {
		t.Errorf("Barycentric at a vertex = %v", got)
	}
}
