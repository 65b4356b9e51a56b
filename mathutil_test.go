package csb

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mathext"
)

func TestLogSumExpGuardsOverflow(t *testing.T) {
	got := logSumExp([]float64{1000, 1000})
	assert.InDelta(t, 1000+math.Log(2), got, 1e-12)
	assert.False(t, math.IsInf(got, 1))

	assert.InDelta(t, math.Log(math.Exp(-1)+math.Exp(-2)), logSumExp([]float64{-1, -2}), 1e-12)
}

func TestClip(t *testing.T) {
	assert.Equal(t, 1e-300, clip(0, 1e-300, 1e300))
	assert.Equal(t, 1e300, clip(math.Inf(1), 1e-300, 1e300))
	assert.Equal(t, 0.5, clip(0.5, 1e-300, 1e300))
}

func TestMultinomialCountsSumToN(t *testing.T) {
	rng := rand.New(rand.NewSource(71))
	counts := multinomial(rng, 100, []float64{0.2, 0.3, 0.5})

	sum := 0
	for _, c := range counts {
		sum += c
	}
	assert.Equal(t, 100, sum)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, median([]float64{4, 1, 2, 3}))
}

func TestInvDigammaInvertsDigamma(t *testing.T) {
	for _, x := range []float64{0.3, 1, 5, 20} {
		y := mathext.Digamma(x)
		assert.InDelta(t, x, invDigamma(y), 1e-8)
	}
}
