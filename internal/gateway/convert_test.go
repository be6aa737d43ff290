package gateway

import "testing"

func TestScaleAmount(t *testing.T) {
	cases := []struct {
		name     string
		v        float64
		decimals int
		want     int64
	}{
		{"whole units", 5, 4, 50000},
		{"exact fraction", 0.1234, 4, 1234},
		{"truncates excess precision", 0.12349, 4, 1234},
		{"never rounds up", 0.99999, 4, 9999},
		{"binary float artifact", 0.1, 1, 1},
		{"price with two decimals", 101.015, 2, 10101},
		{"zero", 0, 4, 0},
		{"negative truncates toward zero", -0.12349, 4, -1234},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := scaleAmount(tc.v, tc.decimals); got != tc.want {
				t.Fatalf("scaleAmount(%v, %d) = %d, want %d", tc.v, tc.decimals, got, tc.want)
			}
		})
	}
}
