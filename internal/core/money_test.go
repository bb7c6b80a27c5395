package core

import "testing"

func TestMoneyEuros(t *testing.T) {
	cases := []struct {
		cents int64
		want  float64
	}{
		{4500, 45.0},
		{1, 0.01},
		{0, 0},
		{123456, 1234.56},
	}
	for _, tc := range cases {
		if got := (Money{Cents: tc.cents}).Euros(); got != tc.want {
			t.Fatalf("Euros(%d cents) = %v, want %v", tc.cents, got, tc.want)
		}
	}
}
