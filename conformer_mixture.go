package csb

import (
	"gonum.org/v1/gonum/mat"
)

//ConformerMixture partitions the structures of an ensemble into K
//conformers. Each component carries a full mean structure, and every
//observed structure belongs softly to one conformer. Indicators run over
//structures (Z is M x K).
type ConformerMixture struct {
	*GaussianMixture
}

//NewConformerMixture creates a conformer mixture for N atoms, M structures
//and K components; beta is the inverse temperature (1 for plain EM).
func NewConformerMixture(nAtoms, nStructures, nComponents int, beta float64) *ConformerMixture {
	c := &ConformerMixture{}
	c.GaussianMixture = NewGaussianMixture(nAtoms, nStructures, nComponents, beta, c)
	return c
}

//CalculateDelta returns the M x K matrix of squared distances between each
//conformer template and the backtransformed structures, summed over atoms.
func (c *ConformerMixture) CalculateDelta(X []*mat.Dense) *mat.Dense {
	D := mat.NewDense(c.M, c.K, nil)
	for m := 0; m < c.M; m++ {
		for k := 0; k < c.K; k++ {
			B := backtransform(X[m], c.R[m][k], c.T[m][k])
			var d float64
			for i := 0; i < c.N; i++ {
				for j := 0; j < 3; j++ {
					diff := c.Y[k].At(i, j) - B.At(i, j)
					d += diff * diff
				}
			}
			D.Set(m, k, d)
		}
	}
	return D
}

//EstimateY updates each conformer template as the responsibility-weighted
//average of the backtransformed structures, guarded against components with
//vanishing total responsibility.
func (c *ConformerMixture) EstimateY(X []*mat.Dense, Z *mat.Dense) {
	B := mat.NewDense(c.N, 3, nil)
	for k := 0; k < c.K; k++ {
		n := 0.
		for m := 0; m < c.M; m++ {
			n += Z.At(m, k)
		}
		n = clip(n, 1e-300, 1e300)

		c.Y[k].Zero()
		for m := 0; m < c.M; m++ {
			B.Scale(Z.At(m, k), backtransform(X[m], c.R[m][k], c.T[m][k]))
			c.Y[k].Add(c.Y[k], B)
		}
		c.Y[k].Scale(1/n, c.Y[k])
	}
}

//EstimateT refits every structure onto each conformer template with an
//unweighted rigid fit; each structure is fit once regardless of its soft
//membership, the responsibility weighting enters at the mean update.
func (c *ConformerMixture) EstimateT(X []*mat.Dense, Z *mat.Dense) {
	for m := 0; m < c.M; m++ {
		for k := 0; k < c.K; k++ {
			c.R[m][k], c.T[m][k] = Fit(X[m], c.Y[k])
		}
	}
}

//Initialize seeds the K templates with a random subset of the observed
//structures, fits the superpositions, then bootstraps the weights and
//variances from one E-step.
func (c *ConformerMixture) Initialize(X []*mat.Dense) {
	perm := c.Rand.Perm(c.M)
	for k := 0; k < c.K; k++ {
		c.Y[k].Copy(X[perm[k]])
	}
	c.EstimateT(X, nil)
	c.DelCache()

	Z := c.EStep(X)
	c.EstimateW(Z)
	c.EstimateSigma(X, Z)
}

//Clusters returns K coordinate ensembles, one per conformer: the structures
//hard-assigned to each component, superposed on its template.
func (c *ConformerMixture) Clusters(X []*mat.Dense) [][]*mat.Dense {
	Z := c.EStep(X)
	assign := Memberships(Z)

	C := make([][]*mat.Dense, c.K)
	for m := 0; m < c.M; m++ {
		k := assign[m]
		C[k] = append(C[k], backtransform(X[m], c.R[m][k], c.T[m][k]))
	}
	return C
}
