package rag

import "fmt"

// Metric selects the distance function used for similarity search and the
// operator class backing the collection index.
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricL2     Metric = "l2"
	MetricIP     Metric = "ip"
)

// ParseMetric maps a configuration string to a Metric.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricCosine, MetricL2, MetricIP:
		return Metric(s), nil
	default:
		return "", fmt.Errorf("unknown distance metric %q (want cosine, l2 or ip)", s)
	}
}

// operator returns the pgvector distance operator for ORDER BY clauses.
func (m Metric) operator() string {
	switch m {
	case MetricL2:
		return "<->"
	case MetricIP:
		return "<#>"
	default:
		return "<=>"
	}
}

// opclass returns the index operator class matching the operator.
func (m Metric) opclass() string {
	switch m {
	case MetricL2:
		return "vector_l2_ops"
	case MetricIP:
		return "vector_ip_ops"
	default:
		return "vector_cosine_ops"
	}
}

// score converts a raw distance into a similarity in [0, 1], larger meaning
// closer. The inner-product operator returns the negated product, which for
// unit-length embeddings lies in [-1, 1].
func (m Metric) score(distance float64) float64 {
	var s float64
	switch m {
	case MetricL2:
		s = 1 / (1 + distance)
	case MetricIP:
		s = (1 - distance) / 2
	default:
		s = 1 - distance
	}
	return clamp01(s)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
