package rag

import (
	"math"
	"testing"
)

func TestParseMetric(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input   string
		want    Metric
		wantErr bool
	}{
		{input: "cosine", want: MetricCosine},
		{input: "l2", want: MetricL2},
		{input: "ip", want: MetricIP},
		{input: "euclidean", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			got, err := ParseMetric(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseMetric(%q) returned nil error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMetric(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseMetric(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestMetricOperatorOpclass(t *testing.T) {
	t.Parallel()

	tests := []struct {
		metric  Metric
		op      string
		opclass string
	}{
		{MetricCosine, "<=>", "vector_cosine_ops"},
		{MetricL2, "<->", "vector_l2_ops"},
		{MetricIP, "<#>", "vector_ip_ops"},
	}

	for _, tt := range tests {
		if got := tt.metric.operator(); got != tt.op {
			t.Errorf("%s.operator() = %q, want %q", tt.metric, got, tt.op)
		}
		if got := tt.metric.opclass(); got != tt.opclass {
			t.Errorf("%s.opclass() = %q, want %q", tt.metric, got, tt.opclass)
		}
	}
}

func TestMetricScore(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		metric   Metric
		distance float64
		want     float64
	}{
		{name: "cosine identical", metric: MetricCosine, distance: 0, want: 1},
		{name: "cosine orthogonal", metric: MetricCosine, distance: 1, want: 0},
		{name: "cosine opposite clamps", metric: MetricCosine, distance: 2, want: 0},
		{name: "l2 identical", metric: MetricL2, distance: 0, want: 1},
		{name: "l2 unit distance", metric: MetricL2, distance: 1, want: 0.5},
		{name: "ip perfect", metric: MetricIP, distance: -1, want: 1},
		{name: "ip opposite", metric: MetricIP, distance: 1, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := tt.metric.score(tt.distance)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("%s.score(%v) = %v, want %v", tt.metric, tt.distance, got, tt.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("score %v outside [0, 1]", got)
			}
		})
	}
}
