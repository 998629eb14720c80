package bytecode

import (
	"math"
	"testing"
)

func TestNumberValue(t *testing.T) {
	v := NumberValue(2.5)
	if !v.IsNumber() {
		t.Fatal("NumberValue should be a number")
	}
	if v.Kind() != KindNumber {
		t.Errorf("Kind() = %s, want number", v.Kind())
	}
	if v.AsNumber() != 2.5 {
		t.Errorf("AsNumber() = %v, want 2.5", v.AsNumber())
	}
}

func TestZeroValueIsNumberZero(t *testing.T) {
	var v Value
	if !v.IsNumber() || v.AsNumber() != 0 {
		t.Errorf("zero Value = %v, want number 0", v)
	}
}

func TestValueString(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{NumberValue(7), "7"},
		{NumberValue(0.5), "0.5"},
		{NumberValue(-3.25), "-3.25"},
		{NumberValue(math.Inf(1)), "+Inf"},
		{NumberValue(math.Inf(-1)), "-Inf"},
		{NumberValue(math.NaN()), "NaN"},
		{NumberValue(1e21), "1e+21"},
	}

	for _, tt := range tests {
		if got := tt.v.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestValueKindString(t *testing.T) {
	if KindNumber.String() != "number" {
		t.Errorf("KindNumber.String() = %q", KindNumber.String())
	}
	if ValueKind(9).Valid() {
		t.Error("ValueKind(9) should not be valid")
	}
	if got := ValueKind(9).String(); got != "ValueKind(9)" {
		t.Errorf("ValueKind(9).String() = %q", got)
	}
}
