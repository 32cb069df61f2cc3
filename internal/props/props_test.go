package props

import (
	"encoding/json"
	"testing"
)

func TestFloat(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{float64(12.5), 12.5, true},
		{json.Number("7"), 7, true},
		{"45", 45, true},
		{"45.5", 45.5, true},
		{"45,5%", 45.5, true},
		{"$ 1.200.000", 1200000, true},
		{"$1.200.000,50", 1200000.5, true},
		{"1.200", 1200, true},
		{"0.125", 0.125, true},
		{"-3.5", -3.5, true},
		{"", 0, false},
		{"n/a", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, tc := range cases {
		got, ok := Float(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Fatalf("Float(%#v)=(%v,%v) want (%v,%v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestString(t *testing.T) {
	if got := String(float64(3)); got != "3" {
		t.Fatalf("got=%q", got)
	}
	if got := String("  En ejecución "); got != "En ejecución" {
		t.Fatalf("got=%q", got)
	}
	if got := String(nil); got != "" {
		t.Fatalf("got=%q", got)
	}
}

func TestFirst_SkipsBlankAliases(t *testing.T) {
	m := map[string]any{"nombre_up": " ", "nombre": "Parque", "name": "x"}
	if got := FirstString(m, "nombre_up", "nombre", "name"); got != "Parque" {
		t.Fatalf("got=%q want Parque", got)
	}
	if _, ok := First(m, "missing"); ok {
		t.Fatal("expected no value")
	}
	f := FirstFloat(map[string]any{"a": "x", "b": "12"}, "a", "b")
	if f == nil || *f != 12 {
		t.Fatalf("got=%v want 12", f)
	}
}
