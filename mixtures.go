package csb

import (
	"math"
	"math/rand"
	"time"

	"gonum.org/v1/gonum/mat"
)

//MixtureVariant supplies the operations that differ between the concrete
//mixture models: the squared-distance computation between data and
//components, the mean geometry update, the superposition update and the
//initial seeding. The shared EM machinery in GaussianMixture is implemented
//once against this interface.
type MixtureVariant interface {
	CalculateDelta(X []*mat.Dense) *mat.Dense
	EstimateY(X []*mat.Dense, Z *mat.Dense)
	EstimateT(X []*mat.Dense, Z *mat.Dense)
	Initialize(X []*mat.Dense)
}

//IterationObserver is called once per E/M cycle with the iteration index
//(EM) or the scheduled inverse temperature (Anneal), and the current
//complete-data log-likelihood.
type IterationObserver func(step, logLikelihood float64)

//EMConfig controls the EM driver.
type EMConfig struct {
	MaxIter         int     // iteration budget
	Eps             float64 // convergence tolerance on the log-likelihood; negative disables the check
	Initialize      bool    // seed the model before the first E-step
	TrackLikelihood bool    // record the log-likelihood trace
	Observer        IterationObserver
	ObserveEvery    int // invoke the observer every this many iterations (<= 1 means every iteration)
}

//DefaultEMConfig returns the standard EM settings.
func DefaultEMConfig() EMConfig {
	return EMConfig{
		MaxIter:    100,
		Eps:        1e-9,
		Initialize: true,
	}
}

//GaussianMixture is the shared state and EM machinery of a mixture model
//for protein structure ensembles. It is abstract: all work goes through a
//MixtureVariant, and an engine constructed without one fails on first use.
//
//The generative model has K components. Component k carries a mean geometry
//Y[k], a standard deviation Sigma[k] and a mixing weight W[k]; structure m
//is related to component k by the rigid superposition (R[m][k], T[m][k]).
//Z holds the soft assignment of items (atoms or structures, depending on
//the variant) to components.
type GaussianMixture struct {
	N int // atoms per structure
	M int // structures
	K int // mixture components

	Beta float64 // inverse temperature for annealed EM

	Y     []*mat.Dense   // mean geometries, N x 3 each
	R     [][]*mat.Dense // rotations, M x K of 3 x 3
	T     [][][]float64  // translations, M x K of length 3
	Sigma []float64      // component standard deviations
	W     []float64      // mixing weights
	Z     *mat.Dense     // indicators from the most recent E-step
	LL    []float64      // log-likelihood trace from the most recent EM run, if tracked

	NInner     int     // repetitions of the Y/T update inside one M-step
	AlphaSigma float64 // inverse-Gamma prior on the variances
	BetaSigma  float64
	UseCache   bool       // memoize the distance matrix
	Rand       *rand.Rand // source for the randomized initializations

	variant MixtureVariant
	cache   *mat.Dense
}

//NewGaussianMixture assembles an engine around a caller-supplied variant.
//Most callers want NewSegmentMixture, NewSegmentMixture2 or
//NewConformerMixture instead; beta is the inverse temperature and should be
//1 for plain EM.
func NewGaussianMixture(nAtoms, nStructures, nComponents int, beta float64, variant MixtureVariant) *GaussianMixture {
	g := &GaussianMixture{
		N:          nAtoms,
		M:          nStructures,
		K:          nComponents,
		Beta:       beta,
		NInner:     1,
		AlphaSigma: 1e-4,
		BetaSigma:  1e-2,
		UseCache:   true,
		Rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
		variant:    variant,
	}

	g.Y = make([]*mat.Dense, g.K)
	for k := range g.Y {
		g.Y[k] = mat.NewDense(g.N, 3, nil)
	}
	g.R = make([][]*mat.Dense, g.M)
	g.T = make([][][]float64, g.M)
	for m := 0; m < g.M; m++ {
		g.R[m] = make([]*mat.Dense, g.K)
		g.T[m] = make([][]float64, g.K)
		for k := 0; k < g.K; k++ {
			g.R[m][k] = mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
			g.T[m][k] = make([]float64, 3)
		}
	}
	g.Sigma = make([]float64, g.K)
	g.W = make([]float64, g.K)
	for k := 0; k < g.K; k++ {
		g.Sigma[k] = 1
		g.W[k] = 1 / float64(g.K)
	}
	return g
}

func (g *GaussianMixture) strategy() MixtureVariant {
	if g.variant == nil {
		panic("csb: GaussianMixture has no concrete variant")
	}
	return g.variant
}

//DelCache drops the memoized distance matrix, forcing the next GetDelta to
//recompute.
func (g *GaussianMixture) DelCache() {
	g.cache = nil
}

//GetDimension returns the dimensionality of the mixture domain: 3N when the
//indicators run over structures, 3M when they run over atoms.
func (g *GaussianMixture) GetDimension(Z mat.Matrix) int {
	rows, _ := Z.Dims()
	switch rows {
	case g.M:
		return 3 * g.N
	case g.N:
		return 3 * g.M
	}
	panic("csb: indicator matrix matches neither the atom nor the structure axis")
}

//GetDelta returns the squared distance matrix between data and components,
//consulting the cache when one is present. With updateCache the matrix is
//recomputed from the current parameters and memoized.
func (g *GaussianMixture) GetDelta(X []*mat.Dense, updateCache bool) *mat.Dense {
	if updateCache && g.UseCache {
		g.cache = g.strategy().CalculateDelta(X)
	}
	if g.cache != nil {
		return g.cache
	}
	return g.strategy().CalculateDelta(X)
}

//LogLikelihoodReduced will compute the log-likelihood of the marginalized
//model, with the indicator variables integrated out.
func (g *GaussianMixture) LogLikelihoodReduced(X []*mat.Dense) float64 {
	D := g.GetDelta(X, false)
	rows, _ := D.Dims()
	dim := float64(g.GetDimension(D))

	logp := make([]float64, g.K)
	sum := 0.
	for i := 0; i < rows; i++ {
		for k := 0; k < g.K; k++ {
			s2 := g.Sigma[k] * g.Sigma[k]
			logp[k] = -0.5*D.At(i, k)/clip(s2, 1e-300, 1e300) -
				0.5*dim*math.Log(2*math.Pi*s2) +
				math.Log(g.W[k])
		}
		sum += logSumExp(logp)
	}
	return sum
}

//LogLikelihood will compute the log-likelihood of the extended model, with
//indicators, including a Jeffreys prior correction on the variances. This is
//the quantity EM monitors for convergence.
func (g *GaussianMixture) LogLikelihood(X []*mat.Dense, Z *mat.Dense) float64 {
	D := g.GetDelta(X, false)
	dim := float64(g.GetDimension(Z))
	rows, _ := Z.Dims()

	ll := 0.
	for k := 0; k < g.K; k++ {
		s2 := g.Sigma[k] * g.Sigma[k]
		n := 0.
		for i := 0; i < rows; i++ {
			n += Z.At(i, k)
			ll -= 0.5 * Z.At(i, k) * D.At(i, k) / clip(s2, 1e-300, 1e300)
		}
		ll += n*math.Log(g.W[k]) - 0.5*dim*n*math.Log(2*math.Pi*s2)
		ll -= 0.5 * math.Log(s2)
	}
	return ll
}

//EStep computes the indicator matrix: for every item and component the
//log-posterior contribution, scaled by the inverse temperature and
//normalized per item with a max-shifted log-sum-exp. The distance cache is
//dropped afterwards, since the M-step is about to change the parameters.
func (g *GaussianMixture) EStep(X []*mat.Dense) *mat.Dense {
	D := g.GetDelta(X, false)
	rows, _ := D.Dims()
	dim := float64(g.GetDimension(D))

	Z := mat.NewDense(rows, g.K, nil)
	logp := make([]float64, g.K)
	for i := 0; i < rows; i++ {
		for k := 0; k < g.K; k++ {
			s2 := g.Sigma[k] * g.Sigma[k]
			logp[k] = g.Beta * (-0.5*D.At(i, k)/clip(s2, 1e-300, 1e300) -
				0.5*dim*math.Log(s2) +
				math.Log(g.W[k]))
		}
		norm := logSumExp(logp)
		for k := 0; k < g.K; k++ {
			Z.Set(i, k, math.Exp(logp[k]-norm))
		}
	}

	g.DelCache()
	return Z
}

//MStep maximizes the posterior given the indicators: NInner rounds of the
//mean and superposition updates, then the closed-form weight and variance
//updates. The distance cache is invalidated after every parameter mutation.
func (g *GaussianMixture) MStep(X []*mat.Dense, Z *mat.Dense) {
	v := g.strategy()
	for i := 0; i < g.NInner; i++ {
		v.EstimateY(X, Z)
		g.DelCache()
		v.EstimateT(X, Z)
		g.DelCache()
	}
	g.EstimateW(Z)
	g.EstimateSigma(X, Z)
}

//EstimateW will estimate the component weights as the fraction of total
//responsibility claimed by each component.
func (g *GaussianMixture) EstimateW(Z *mat.Dense) {
	rows, _ := Z.Dims()
	total := 0.
	n := make([]float64, g.K)
	for k := 0; k < g.K; k++ {
		for i := 0; i < rows; i++ {
			n[k] += Z.At(i, k)
		}
		total += n[k]
	}
	for k := 0; k < g.K; k++ {
		g.W[k] = n[k] / total
	}
}

//EstimateSigma will estimate the component variances as the posterior mode
//under a weak inverse-Gamma prior, which guards against degenerate
//zero-variance solutions when a component collapses onto few points.
func (g *GaussianMixture) EstimateSigma(X []*mat.Dense, Z *mat.Dense) {
	D := g.GetDelta(X, true)
	dim := float64(g.GetDimension(Z))
	rows, _ := Z.Dims()

	for k := 0; k < g.K; k++ {
		var n, zd float64
		for i := 0; i < rows; i++ {
			n += Z.At(i, k)
			zd += Z.At(i, k) * D.At(i, k)
		}
		alpha := dim*n + g.AlphaSigma
		beta := zd + g.BetaSigma
		g.Sigma[k] = math.Sqrt(beta / alpha)
	}
}

//EM runs expectation maximization on the coordinate ensemble X (M matrices
//of N x 3). Iteration stops when the budget is exhausted or the absolute
//change in the complete-data log-likelihood drops below cfg.Eps. The
//log-likelihood trace is returned (and stored in LL) when tracking is
//requested; when the convergence check is disabled and nobody observes, the
//likelihood is not computed at all.
func (g *GaussianMixture) EM(X []*mat.Dense, cfg EMConfig) []float64 {
	if cfg.Initialize {
		g.strategy().Initialize(X)
	}

	var trace []float64
	prev := 1e10

	for i := 0; i < cfg.MaxIter; i++ {
		g.Z = g.EStep(X)
		g.MStep(X, g.Z)

		observe := cfg.Observer != nil && (cfg.ObserveEvery <= 1 || i%cfg.ObserveEvery == 0)
		if !cfg.TrackLikelihood && !observe && cfg.Eps < 0 {
			continue
		}

		ll := g.LogLikelihood(X, g.Z)
		if cfg.TrackLikelihood {
			trace = append(trace, ll)
		}
		if observe {
			cfg.Observer(float64(i), ll)
		}

		if cfg.Eps >= 0 && math.Abs(ll-prev) < cfg.Eps {
			break
		}
		prev = ll
	}

	if cfg.TrackLikelihood {
		g.LL = trace
	}
	return trace
}

//Anneal runs deterministic annealing: exactly one E/M cycle per entry of
//the inverse temperature schedule, with no convergence check. Ramping the
//temperature lets the model escape local optima that fixed-temperature EM
//gets stuck in.
func (g *GaussianMixture) Anneal(X []*mat.Dense, betas []float64, obs IterationObserver) {
	g.Beta = betas[0]
	g.strategy().Initialize(X)

	for _, beta := range betas {
		g.Beta = beta
		g.Z = g.EStep(X)
		g.MStep(X, g.Z)
		if obs != nil {
			obs(beta, g.LogLikelihood(X, g.Z))
		}
	}
}

//Memberships returns the hard component assignment per item, the argmax of
//each indicator row.
func Memberships(Z mat.Matrix) []int {
	rows, cols := Z.Dims()
	out := make([]int, rows)
	for i := 0; i < rows; i++ {
		best := 0
		for k := 1; k < cols; k++ {
			if Z.At(i, k) > Z.At(i, best) {
				best = k
			}
		}
		out[i] = best
	}
	return out
}
