package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMetrics(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}

	assert.InDelta(t, 1.0, Cosine.Distance(a, b), 1e-9)
	assert.InDelta(t, 1.4142135, Euclidean.Distance(a, b), 1e-5)
	assert.InDelta(t, 0.0, InnerProduct.Distance(a, b), 1e-9)
	assert.InDelta(t, 2.0, Manhattan.Distance(a, b), 1e-9)
}

func TestMetricStringRoundTrip(t *testing.T) {
	for _, m := range []Metric{Cosine, Euclidean, InnerProduct, Manhattan} {
		parsed, ok := ParseMetric(m.String())
		assert.True(t, ok)
		assert.Equal(t, m, parsed)
	}
	_, ok := ParseMetric("bogus")
	assert.False(t, ok)
}

func TestScopeEncodeParseRoundTrip(t *testing.T) {
	for _, s := range []Scope{Global(), Session("s1"), Tenant("acme"), Workflow("w1"), Component("c1")} {
		parsed, err := ParseScope(s.Encode())
		assert.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
}

func TestParseScopeRejectsMalformed(t *testing.T) {
	_, err := ParseScope("not-a-valid-scope")
	assert.Error(t, err)
	_, err = ParseScope("unknownkind:x")
	assert.Error(t, err)
}
