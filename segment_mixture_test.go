package csb_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	csb "github.com/khasinski/csb"
)

// twoSegmentEnsemble builds m structures of 2*half atoms in which the first
// half and the second half each move rigidly, but independently of one
// another, across the ensemble.
func twoSegmentEnsemble(rng *rand.Rand, half, m int) []*mat.Dense {
	base := randomCoords(rng, 2*half)
	blockA := base.Slice(0, half, 0, 3).(*mat.Dense)
	blockB := base.Slice(half, 2*half, 0, 3).(*mat.Dense)

	X := make([]*mat.Dense, m)
	for i := range X {
		ta := []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
		tb := []float64{rng.NormFloat64(), rng.NormFloat64(), rng.NormFloat64()}
		a := rigidCopy(blockA, randomRotation(rng), ta)
		b := rigidCopy(blockB, randomRotation(rng), tb)

		x := mat.NewDense(2*half, 3, nil)
		for r := 0; r < half; r++ {
			for c := 0; c < 3; c++ {
				x.Set(r, c, a.At(r, c))
				x.Set(half+r, c, b.At(r, c))
			}
		}
		X[i] = x
	}
	return X
}

// splitRecovered reports whether the membership labels separate the first
// half of the atoms from the second half.
func splitRecovered(member []int, half int) bool {
	for i := 1; i < half; i++ {
		if member[i] != member[0] {
			return false
		}
	}
	for i := half + 1; i < len(member); i++ {
		if member[i] != member[half] {
			return false
		}
	}
	return member[0] != member[half]
}

func TestSegmentMixtureRecoversRigidSegments(t *testing.T) {
	dataRng := rand.New(rand.NewSource(29))
	X := twoSegmentEnsemble(dataRng, 5, 5)

	cfg := csb.DefaultEMConfig()
	cfg.MaxIter = 50

	// the initial partition is random; allow a few restarts
	recovered := false
	for seed := int64(1); seed <= 8 && !recovered; seed++ {
		mix := csb.NewSegmentMixture(10, 5, 2, 1)
		mix.Rand = rand.New(rand.NewSource(seed))
		mix.EM(X, cfg)
		recovered = splitRecovered(csb.Memberships(mix.Z), 5)
	}
	assert.True(t, recovered, "no restart recovered the true 5/5 atom partition")
}

func TestSegmentMixtureClustersShape(t *testing.T) {
	rng := rand.New(rand.NewSource(31))
	X := twoSegmentEnsemble(rng, 5, 4)

	mix := csb.NewSegmentMixture(10, 4, 2, 1)
	mix.Rand = rng

	cfg := csb.DefaultEMConfig()
	cfg.MaxIter = 10
	mix.EM(X, cfg)

	C := mix.Clusters(X)
	require.Len(t, C, 2)
	for _, ensemble := range C {
		require.Len(t, ensemble, 4)
		for _, structure := range ensemble {
			r, c := structure.Dims()
			assert.Equal(t, 10, r)
			assert.Equal(t, 3, c)
		}
	}
}

func TestSegmentMixture2SharedTemplate(t *testing.T) {
	rng := rand.New(rand.NewSource(37))
	X := twoSegmentEnsemble(rng, 5, 4)

	mix := csb.NewSegmentMixture2(10, 4, 2, 1)
	mix.Rand = rng
	require.Len(t, mix.Y, 1)

	template := mix.Y[0]

	cfg := csb.DefaultEMConfig()
	cfg.MaxIter = 20
	cfg.TrackLikelihood = true
	trace := mix.EM(X, cfg)

	// the template buffer is updated in place, never reallocated
	assert.Same(t, template, mix.Y[0])

	require.NotEmpty(t, trace)
	for _, ll := range trace {
		assert.False(t, ll != ll, "log-likelihood is NaN")
	}

	// indicators remain distributions under the shared template
	rows, _ := mix.Z.Dims()
	require.Equal(t, 10, rows)
	for i := 0; i < rows; i++ {
		sum := 0.
		for k := 0; k < 2; k++ {
			sum += mix.Z.At(i, k)
		}
		assert.InDelta(t, 1.0, sum, 1e-12)
	}
}
