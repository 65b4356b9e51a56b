package csb

import (
	"gonum.org/v1/gonum/mat"
)

//Fit will return the rotation matrix R and translation vector t that
//minimize sum ||X_i - (Y R^T)_i - t||^2 over all rotations and translations
//(Kabsch superposition). The fitted configuration is recovered either as
//Y*R^T + t in the frame of X, or as (X - t)*R in the frame of Y.
func Fit(X, Y *mat.Dense) (*mat.Dense, []float64) {
	n, _ := X.Dims()
	w := make([]float64, n)
	for i := range w {
		w[i] = 1
	}
	return WFit(X, Y, w)
}

//WFit is the per-point weighted form of Fit, minimizing
//sum w_i ||X_i - (Y R^T)_i - t||^2
func WFit(X, Y *mat.Dense, w []float64) (*mat.Dense, []float64) {
	n, _ := X.Dims()

	norm := 0.
	for _, wi := range w {
		norm += wi
	}
	norm = clip(norm, 1e-300, 1e300)

	// weighted centroids
	var xc, yc [3]float64
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			xc[j] += w[i] * X.At(i, j) / norm
			yc[j] += w[i] * Y.At(i, j) / norm
		}
	}

	// weighted covariance of the centered configurations
	c := mat.NewDense(3, 3, nil)
	for i := 0; i < n; i++ {
		for a := 0; a < 3; a++ {
			for b := 0; b < 3; b++ {
				c.Set(a, b, c.At(a, b)+w[i]*(X.At(i, a)-xc[a])*(Y.At(i, b)-yc[b]))
			}
		}
	}

	var svd mat.SVD
	if !svd.Factorize(c, mat.SVDFull) {
		panic("csb: SVD of covariance matrix failed")
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	r := mat.NewDense(3, 3, nil)
	r.Mul(&u, v.T())
	if mat.Det(r) < 0 {
		// proper rotation only: flip the last right-singular vector
		for a := 0; a < 3; a++ {
			v.Set(a, 2, -v.At(a, 2))
		}
		r.Mul(&u, v.T())
	}

	t := make([]float64, 3)
	for a := 0; a < 3; a++ {
		t[a] = xc[a]
		for b := 0; b < 3; b++ {
			t[a] -= r.At(a, b) * yc[b]
		}
	}
	return r, t
}

//backtransform maps observed coordinates X into the template frame of a
//fitted superposition, computing (X - t) * R row by row
func backtransform(X, R *mat.Dense, t []float64) *mat.Dense {
	n, _ := X.Dims()
	shifted := mat.NewDense(n, 3, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < 3; j++ {
			shifted.Set(i, j, X.At(i, j)-t[j])
		}
	}
	out := mat.NewDense(n, 3, nil)
	out.Mul(shifted, R)
	return out
}
