package batch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func magnitude(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestNormalizeVector(t *testing.T) {
	inv := float32(1 / math.Sqrt2)
	cases := map[string]struct {
		in, want []float32
	}{
		"already unit": {[]float32{0, 1, 0}, []float32{0, 1, 0}},
		"3-4-5":        {[]float32{3, 4}, []float32{0.6, 0.8}},
		"negative":     {[]float32{-2, 2}, []float32{-inv, inv}},
		"tiny values":  {[]float32{1e-4, 0, 1e-4}, []float32{inv, 0, inv}},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got := NormalizeVector(tc.in)
			require.Len(t, got, len(tc.want))
			assert.InDeltaSlice(t, tc.want, got, 1e-6)
			assert.InDelta(t, 1.0, magnitude(got), 1e-6)
		})
	}
}

func TestNormalizeVector_DoesNotMutateInput(t *testing.T) {
	in := []float32{3, 4}
	_ = NormalizeVector(in)
	assert.Equal(t, []float32{3, 4}, in)
}

func TestNormalizeVector_Degenerate(t *testing.T) {
	assert.Equal(t, []float32{0, 0}, NormalizeVector([]float32{0, 0}))
	assert.Empty(t, NormalizeVector(nil))
}

func TestDotProduct(t *testing.T) {
	assert.InDelta(t, 11.0, DotProduct([]float32{1, 2}, []float32{3, 4}), 1e-6)
	assert.InDelta(t, 3.0, DotProduct([]float32{1, 2, 9}, []float32{3}), 1e-6, "uses shared prefix")
	assert.Equal(t, float32(0), DotProduct(nil, []float32{1}))
}

func TestDotProduct_RanksByCosine(t *testing.T) {
	query := NormalizeVector([]float32{1, 1, 0})
	near := NormalizeVector([]float32{1, 0.9, 0.1})
	far := NormalizeVector([]float32{0, 0.2, 1})

	assert.InDelta(t, 1.0, DotProduct(query, query), 1e-6)
	assert.Greater(t, DotProduct(query, near), DotProduct(query, far))
}
