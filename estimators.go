package csb

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

//Estimator is a density parameter estimation strategy: it fits a
//distribution to a univariate sample and returns it.
type Estimator interface {
	Estimate(data []float64) (Density, error)
}

//NullEstimator estimates nothing.
type NullEstimator struct{}

func (NullEstimator) Estimate([]float64) (Density, error) {
	return nil, ErrNoEstimator
}

//LaplaceMLEstimator fits a Laplace density: location at the sample median,
//scale at the mean absolute deviation from it.
type LaplaceMLEstimator struct{}

func (LaplaceMLEstimator) Estimate(data []float64) (Density, error) {
	mu := median(data)
	b := 0.
	for _, x := range data {
		b += math.Abs(x - mu)
	}
	b /= float64(len(data))
	return NewLaplace(b, mu)
}

//GaussianMLEstimator fits a Normal density with the sample mean and the
//(biased) maximum-likelihood standard deviation.
type GaussianMLEstimator struct{}

func (GaussianMLEstimator) Estimate(data []float64) (Density, error) {
	mu := stat.Mean(data, nil)
	v := 0.
	for _, x := range data {
		v += (x - mu) * (x - mu)
	}
	v /= float64(len(data))
	return &Normal{Mu: mu, Sigma: math.Sqrt(v)}, nil
}

//GammaMLEstimator fits a Gamma density by fixed-point iteration on the
//inverse digamma function.
type GammaMLEstimator struct {
	NIter int // defaults to 1000
}

func (e GammaMLEstimator) Estimate(data []float64) (Density, error) {
	mu := stat.Mean(data, nil)
	logmean := 0.
	for _, x := range data {
		logmean += math.Log(x)
	}
	logmean /= float64(len(data))

	a := 0.5 / (math.Log(mu) - logmean)
	n := e.NIter
	if n == 0 {
		n = 1000
	}
	for i := 0; i < n; i++ {
		a = invDigamma(logmean - math.Log(mu) + math.Log(a))
	}
	return &Gamma{Alpha: a, Beta: a / mu}, nil
}

//GenNormalBruteForceEstimator fits a GeneralizedNormal density by scanning a
//grid of shape parameters and keeping the one with the highest sample
//log-likelihood; location and scale have closed forms at fixed shape.
type GenNormalBruteForceEstimator struct {
	MinBeta, MaxBeta, Step float64 // defaults: 0.5, 8.0, 0.1
}

func (e GenNormalBruteForceEstimator) Estimate(data []float64) (Density, error) {
	min, max, step := e.MinBeta, e.MaxBeta, e.Step
	if min == 0 {
		min = 0.5
	}
	if max == 0 {
		max = 8.0
	}
	if step == 0 {
		step = 0.1
	}

	var best *GeneralizedNormal
	bestLL := math.Inf(-1)
	for beta := min; beta < max; beta += step {
		mu, alpha := genNormalFixedBeta(data, beta)
		pdf := &GeneralizedNormal{Mu: mu, Alpha: alpha, Beta: beta}
		ll := 0.
		for _, x := range data {
			ll += pdf.LogProb(x)
		}
		if ll > bestLL {
			bestLL = ll
			best = pdf
		}
	}
	return best, nil
}

//genNormalFixedBeta gives the closed-form location and scale of a
//generalized normal at a fixed shape parameter.
func genNormalFixedBeta(data []float64, beta float64) (mu, alpha float64) {
	mu = median(data)
	v := 0.
	for _, x := range data {
		v += (x - mu) * (x - mu)
	}
	v /= float64(len(data))

	lg1, _ := math.Lgamma(1 / beta)
	lg3, _ := math.Lgamma(3 / beta)
	alpha = math.Sqrt(v * math.Exp(lg1-lg3))
	return mu, alpha
}

//MultivariateGaussianMLEstimator fits a multivariate normal with the sample
//mean and covariance. Rows of data are observations, columns dimensions.
type MultivariateGaussianMLEstimator struct{}

func (MultivariateGaussianMLEstimator) Estimate(data *mat.Dense) (*MultivariateGaussian, error) {
	rows, cols := data.Dims()

	mu := make([]float64, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, data)
		mu[j] = stat.Mean(col, nil)
	}

	cov := mat.NewSymDense(cols, nil)
	stat.CovarianceMatrix(cov, data, nil)

	return &MultivariateGaussian{Mu: mu, Sigma: cov}, nil
}
