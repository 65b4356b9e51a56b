package csb

import (
	"errors"
	"fmt"
	"math"
	"strings"

	xrand "golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	//ErrParameterValue reports a distribution parameter outside its domain.
	ErrParameterValue = errors.New("csb: invalid parameter value")
	//ErrNoEstimator reports a density without a parameter estimator.
	ErrNoEstimator = errors.New("csb: density has no estimator")
)

//Density is a parametric probability density function over the reals.
type Density interface {
	//LogProb evaluates the logarithm of the density at x.
	LogProb(x float64) float64
	//Params lists the distribution parameters in declaration order.
	Params() *OrderedDict[string, float64]
}

//Sampler is a density that can generate random variates. Not every density
//implements it.
type Sampler interface {
	Rand() float64
}

//Evaluate returns the probability density of d at x.
func Evaluate(d Density, x float64) float64 {
	return math.Exp(d.LogProb(x))
}

func densityString(name string, params *OrderedDict[string, float64]) string {
	parts := make([]string, 0, params.Len())
	params.Each(func(k string, v float64) {
		parts = append(parts, fmt.Sprintf("%s=%g", k, v))
	})
	return name + "(" + strings.Join(parts, ", ") + ")"
}

//Laplace is the double-exponential distribution with scale B and location Mu.
type Laplace struct {
	B, Mu float64
	Src   xrand.Source
}

//NewLaplace validates the scale parameter and returns the density.
func NewLaplace(b, mu float64) (*Laplace, error) {
	if b < 0 {
		return nil, fmt.Errorf("%w: b = %g", ErrParameterValue, b)
	}
	return &Laplace{B: b, Mu: mu}, nil
}

func (l *Laplace) LogProb(x float64) float64 {
	return math.Log(1/(2*l.B)) - math.Abs(x-l.Mu)/l.B
}

func (l *Laplace) Rand() float64 {
	return distuv.Laplace{Mu: l.Mu, Scale: l.B, Src: l.Src}.Rand()
}

func (l *Laplace) Params() *OrderedDict[string, float64] {
	p := NewOrderedDict[string, float64]()
	p.Set("b", l.B)
	p.Set("mu", l.Mu)
	return p
}

func (l *Laplace) String() string { return densityString("Laplace", l.Params()) }

//Normal is the Gaussian distribution with mean Mu and standard deviation Sigma.
type Normal struct {
	Mu, Sigma float64
	Src       xrand.Source
}

func (n *Normal) LogProb(x float64) float64 {
	s2 := n.Sigma * n.Sigma
	return -0.5*math.Log(2*math.Pi*s2) - (x-n.Mu)*(x-n.Mu)/(2*s2)
}

func (n *Normal) Rand() float64 {
	return distuv.Normal{Mu: n.Mu, Sigma: n.Sigma, Src: n.Src}.Rand()
}

func (n *Normal) Params() *OrderedDict[string, float64] {
	p := NewOrderedDict[string, float64]()
	p.Set("mu", n.Mu)
	p.Set("sigma", n.Sigma)
	return p
}

func (n *Normal) String() string { return densityString("Normal", n.Params()) }

//GeneralizedNormal is the exponential-power distribution with location Mu,
//scale Alpha and shape Beta. Beta of 2 recovers the Gaussian, 1 the Laplace.
//It has no closed-form sampler here.
type GeneralizedNormal struct {
	Mu, Alpha, Beta float64
}

func (g *GeneralizedNormal) LogProb(x float64) float64 {
	lg, _ := math.Lgamma(1 / g.Beta)
	return math.Log(g.Beta/(2*g.Alpha)) - lg - math.Pow(math.Abs(x-g.Mu)/g.Alpha, g.Beta)
}

func (g *GeneralizedNormal) Params() *OrderedDict[string, float64] {
	p := NewOrderedDict[string, float64]()
	p.Set("mu", g.Mu)
	p.Set("alpha", g.Alpha)
	p.Set("beta", g.Beta)
	return p
}

func (g *GeneralizedNormal) String() string {
	return densityString("GeneralizedNormal", g.Params())
}

//Gamma is the Gamma distribution with shape Alpha and rate Beta.
type Gamma struct {
	Alpha, Beta float64
	Src         xrand.Source
}

func (g *Gamma) LogProb(x float64) float64 {
	lg, _ := math.Lgamma(clip(g.Alpha, 1e-308, 1e308))
	return g.Alpha*math.Log(g.Beta) - lg +
		(g.Alpha-1)*math.Log(clip(x, 1e-308, 1e308)) - g.Beta*x
}

func (g *Gamma) Rand() float64 {
	return distuv.Gamma{Alpha: g.Alpha, Beta: g.Beta, Src: g.Src}.Rand()
}

func (g *Gamma) Params() *OrderedDict[string, float64] {
	p := NewOrderedDict[string, float64]()
	p.Set("alpha", g.Alpha)
	p.Set("beta", g.Beta)
	return p
}

func (g *Gamma) String() string { return densityString("Gamma", g.Params()) }

//InverseGamma is the inverse-Gamma distribution with shape Alpha and scale
//Beta. It has no maximum-likelihood estimator.
type InverseGamma struct {
	Alpha, Beta float64
	Src         xrand.Source
}

func (g *InverseGamma) LogProb(x float64) float64 {
	lg, _ := math.Lgamma(g.Alpha)
	return g.Alpha*math.Log(g.Beta) - lg - (g.Alpha+1)*math.Log(x) - g.Beta/x
}

func (g *InverseGamma) Rand() float64 {
	return 1 / distuv.Gamma{Alpha: g.Alpha, Beta: g.Beta, Src: g.Src}.Rand()
}

func (g *InverseGamma) Params() *OrderedDict[string, float64] {
	p := NewOrderedDict[string, float64]()
	p.Set("alpha", g.Alpha)
	p.Set("beta", g.Beta)
	return p
}

func (g *InverseGamma) String() string { return densityString("InverseGamma", g.Params()) }

//MultivariateGaussian is the multivariate normal distribution with mean Mu
//and covariance Sigma.
type MultivariateGaussian struct {
	Mu    []float64
	Sigma *mat.SymDense
}

//LogProb evaluates the log density at the point x.
func (g *MultivariateGaussian) LogProb(x []float64) float64 {
	dim := len(g.Mu)

	var chol mat.Cholesky
	if !chol.Factorize(g.Sigma) {
		panic("csb: covariance matrix is not positive definite")
	}

	diff := mat.NewVecDense(dim, nil)
	for i := 0; i < dim; i++ {
		diff.SetVec(i, x[i]-g.Mu[i])
	}
	sol := mat.NewVecDense(dim, nil)
	if err := chol.SolveVecTo(sol, diff); err != nil {
		panic("csb: covariance matrix is not invertible")
	}

	q2 := clip(mat.Dot(diff, sol), 0, 1e308)
	return -0.5*(float64(dim)*math.Log(2*math.Pi)+chol.LogDet()) - 0.5*q2
}

//Conditional returns the distribution over the dimensions dims conditioned
//on the remaining entries of x.
func (g *MultivariateGaussian) Conditional(x []float64, dims []int) (*MultivariateGaussian, error) {
	dim := len(g.Mu)
	kept := make(map[int]bool, len(dims))
	for _, i := range dims {
		kept[i] = true
	}
	var rest []int
	for i := 0; i < dim; i++ {
		if !kept[i] {
			rest = append(rest, i)
		}
	}

	a := submatrix(g.Sigma, dims, dims)
	b := submatrix(g.Sigma, rest, rest)
	c := submatrix(g.Sigma, dims, rest)

	var binv mat.Dense
	if err := binv.Inverse(b); err != nil {
		return nil, err
	}

	// mu1 + C B^-1 (x2 - mu2)
	d2 := mat.NewVecDense(len(rest), nil)
	for i, j := range rest {
		d2.SetVec(i, x[j]-g.Mu[j])
	}
	var cb mat.Dense
	cb.Mul(c, &binv)
	shift := mat.NewVecDense(len(dims), nil)
	shift.MulVec(&cb, d2)

	mu := make([]float64, len(dims))
	for i, j := range dims {
		mu[i] = g.Mu[j] + shift.AtVec(i)
	}

	// A - C B^-1 C^T
	var cov mat.Dense
	cov.Mul(&cb, c.T())
	cov.Sub(a, &cov)

	return &MultivariateGaussian{Mu: mu, Sigma: toSymDense(&cov)}, nil
}

func (g *MultivariateGaussian) String() string {
	return fmt.Sprintf("MultivariateGaussian(mu=%v, sigma=%v)",
		g.Mu, mat.Formatted(g.Sigma, mat.Prefix(""), mat.Squeeze()))
}

func submatrix(a mat.Matrix, rows, cols []int) *mat.Dense {
	out := mat.NewDense(len(rows), len(cols), nil)
	for i, r := range rows {
		for j, c := range cols {
			out.Set(i, j, a.At(r, c))
		}
	}
	return out
}

//toSymDense symmetrizes a square matrix into a *mat.SymDense.
func toSymDense(a *mat.Dense) *mat.SymDense {
	n, _ := a.Dims()
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, 0.5*(a.At(i, j)+a.At(j, i)))
		}
	}
	return out
}
