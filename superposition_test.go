package csb_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	csb "github.com/khasinski/csb"
)

func TestFitRecoversRigidTransform(t *testing.T) {
	rng := rand.New(rand.NewSource(59))
	Y := randomCoords(rng, 12)
	Rtrue := randomRotation(rng)
	ttrue := []float64{1.5, -2.0, 0.75}

	X := rigidCopy(Y, Rtrue, ttrue)

	R, tr := csb.Fit(X, Y)
	require.InDelta(t, 1.0, mat.Det(R), 1e-9)
	for i := 0; i < 3; i++ {
		assert.InDelta(t, ttrue[i], tr[i], 1e-9)
		for j := 0; j < 3; j++ {
			assert.InDelta(t, Rtrue.At(i, j), R.At(i, j), 1e-9)
		}
	}

	assert.Less(t, rmsdAfterFit(X, Y), 1e-10)
}

func TestFitReturnsProperRotationForPlanarPoints(t *testing.T) {
	// planar configurations invite reflections; the fit must still return a
	// rotation with determinant +1
	Y := mat.NewDense(4, 3, []float64{
		0, 0, 0,
		1, 0, 0,
		0, 1, 0,
		1, 1, 0,
	})
	X := mat.NewDense(4, 3, []float64{
		0, 0, 0,
		-1, 0, 0,
		0, 1, 0,
		-1, 1, 0,
	})

	R, _ := csb.Fit(X, Y)
	assert.InDelta(t, 1.0, mat.Det(R), 1e-9)
}

func TestWFitIgnoresZeroWeightPoints(t *testing.T) {
	rng := rand.New(rand.NewSource(61))
	Y := randomCoords(rng, 10)
	Rtrue := randomRotation(rng)
	ttrue := []float64{-0.5, 3.0, 1.0}

	X := rigidCopy(Y, Rtrue, ttrue)
	// corrupt the last point; give it zero weight
	X.Set(9, 0, X.At(9, 0)+100)

	w := make([]float64, 10)
	for i := 0; i < 9; i++ {
		w[i] = 1
	}

	R, tr := csb.WFit(X, Y, w)
	require.InDelta(t, 1.0, mat.Det(R), 1e-9)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			assert.InDelta(t, Rtrue.At(i, j), R.At(i, j), 1e-9)
		}
		assert.InDelta(t, ttrue[i], tr[i], 1e-9)
	}
}

func TestWFitMatchesFitUnderUniformWeights(t *testing.T) {
	rng := rand.New(rand.NewSource(67))
	Y := randomCoords(rng, 7)
	X := randomCoords(rng, 7)

	Rf, tf := csb.Fit(X, Y)

	w := make([]float64, 7)
	for i := range w {
		w[i] = 2.5
	}
	Rw, tw := csb.WFit(X, Y, w)

	require.True(t, mat.EqualApprox(Rf, Rw, 1e-12))
	for i := 0; i < 3; i++ {
		assert.InDelta(t, tf[i], tw[i], 1e-12)
	}
}
