package csb_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	csb "github.com/khasinski/csb"
)

func TestConformerMixtureSingleComponentRecoversTemplate(t *testing.T) {
	rng := rand.New(rand.NewSource(41))
	template := randomCoords(rng, 8)
	X := rigidEnsemble(rng, template, 5)

	mix := csb.NewConformerMixture(8, 5, 1, 1)
	mix.Rand = rng
	mix.EM(X, csb.DefaultEMConfig())

	// noise-free rigid copies: the variance collapses to the prior floor and
	// the estimated conformer matches the template up to a rigid move
	assert.Less(t, mix.Sigma[0], 0.02)
	assert.Less(t, rmsdAfterFit(mix.Y[0], template), 1e-6)

	sum := 0.
	for _, w := range mix.W {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestConformerMixtureGroupsDuplicatePairs(t *testing.T) {
	dataRng := rand.New(rand.NewSource(43))
	ta := randomCoords(dataRng, 8)
	tb := randomCoords(dataRng, 8)

	// two exact duplicate pairs: structures 0,1 from template A, 2,3 from B
	X := append(rigidEnsemble(dataRng, ta, 2), rigidEnsemble(dataRng, tb, 2)...)

	cfg := csb.DefaultEMConfig()
	cfg.MaxIter = 50

	grouped := false
	for seed := int64(1); seed <= 8 && !grouped; seed++ {
		mix := csb.NewConformerMixture(8, 4, 2, 1)
		mix.Rand = rand.New(rand.NewSource(seed))
		mix.EM(X, cfg)

		member := csb.Memberships(mix.Z)
		grouped = member[0] == member[1] && member[2] == member[3] && member[0] != member[2]
	}
	assert.True(t, grouped, "no restart grouped the duplicate pairs together")
}

func TestConformerMixtureClustersPartitionEnsemble(t *testing.T) {
	rng := rand.New(rand.NewSource(47))
	ta := randomCoords(rng, 6)
	tb := randomCoords(rng, 6)
	X := append(rigidEnsemble(rng, ta, 3), rigidEnsemble(rng, tb, 3)...)

	mix := csb.NewConformerMixture(6, 6, 2, 1)
	mix.Rand = rng

	cfg := csb.DefaultEMConfig()
	cfg.MaxIter = 30
	mix.EM(X, cfg)

	C := mix.Clusters(X)
	require.Len(t, C, 2)

	total := 0
	for _, members := range C {
		total += len(members)
		for _, structure := range members {
			r, c := structure.Dims()
			assert.Equal(t, 6, r)
			assert.Equal(t, 3, c)
		}
	}
	assert.Equal(t, 6, total)
}

func TestConformerMixtureReinitialize(t *testing.T) {
	rng := rand.New(rand.NewSource(53))
	template := randomCoords(rng, 6)
	X := rigidEnsemble(rng, template, 4)

	mix := csb.NewConformerMixture(6, 4, 1, 1)
	mix.Rand = rng
	mix.EM(X, csb.DefaultEMConfig())

	// a second initialization must not see a stale distance cache
	mix.Initialize(X)
	got := mix.GetDelta(X, false)
	want := mix.CalculateDelta(X)
	require.True(t, mat.EqualApprox(got, want, 1e-13))
}
