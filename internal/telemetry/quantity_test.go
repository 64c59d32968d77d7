package telemetry

import "testing"

func TestPercentile(t *testing.T) {
	cases := []struct {
		v    uint
		want uint
	}{
		{7, 0},
		{0, 0},
		{29, 50},
		{51, 100},
		{80, 100},
		{8, 2},
	}
	for _, tc := range cases {
		if got := temp.Percentile(tc.v); got != tc.want {
			t.Errorf("Percentile(%d) = %d, want %d", tc.v, got, tc.want)
		}
	}
	if got := (Spec{Min: 5, Max: 5}).Percentile(5); got != 0 {
		t.Errorf("degenerate range percentile = %d", got)
	}
}

func TestTopic(t *testing.T) {
	if got := co2.Topic("SafeTunnels"); got != "SafeTunnels/C02" {
		t.Fatalf("got %q", got)
	}
}
