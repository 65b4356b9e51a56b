package csb

import (
	"gonum.org/v1/gonum/mat"
)

//SegmentMixture partitions the atoms of an ensemble into K rigid segments.
//Each segment has its own mean conformer Y[k], and every structure carries a
//separate rigid superposition onto each segment. Indicators run over atoms
//(Z is N x K).
//
//For an ensemble X decomposable into 2 rigid segments:
//
//	m := csb.NewSegmentMixture(nAtoms, nStructures, 2, 1)
//	m.EM(X, csb.DefaultEMConfig())
//	membership := csb.Memberships(m.Z)
type SegmentMixture struct {
	*GaussianMixture
}

//NewSegmentMixture creates a segment mixture for N atoms, M structures and
//K components; beta is the inverse temperature (1 for plain EM).
func NewSegmentMixture(nAtoms, nStructures, nComponents int, beta float64) *SegmentMixture {
	s := &SegmentMixture{}
	s.GaussianMixture = NewGaussianMixture(nAtoms, nStructures, nComponents, beta, s)
	return s
}

//CalculateDelta returns the N x K matrix of squared deviations between each
//segment template and the backtransformed atom positions, summed over
//structures.
func (s *SegmentMixture) CalculateDelta(X []*mat.Dense) *mat.Dense {
	D := mat.NewDense(s.N, s.K, nil)
	for m := 0; m < s.M; m++ {
		for k := 0; k < s.K; k++ {
			B := backtransform(X[m], s.R[m][k], s.T[m][k])
			for i := 0; i < s.N; i++ {
				var d float64
				for j := 0; j < 3; j++ {
					diff := s.Y[k].At(i, j) - B.At(i, j)
					d += diff * diff
				}
				D.Set(i, k, D.At(i, k)+d)
			}
		}
	}
	return D
}

//EstimateY updates each segment template as the unweighted average of the
//backtransformed structures. Responsibilities attach to atoms here, so the
//template update needs no reweighting.
func (s *SegmentMixture) EstimateY(X []*mat.Dense, Z *mat.Dense) {
	for k := 0; k < s.K; k++ {
		s.Y[k].Zero()
		for m := 0; m < s.M; m++ {
			s.Y[k].Add(s.Y[k], backtransform(X[m], s.R[m][k], s.T[m][k]))
		}
		s.Y[k].Scale(1/float64(s.M), s.Y[k])
	}
}

//EstimateT refits every structure onto each segment template with a rigid
//least-squares fit, weighting atoms by their responsibility for the segment.
func (s *SegmentMixture) EstimateT(X []*mat.Dense, Z *mat.Dense) {
	w := make([]float64, s.N)
	for k := 0; k < s.K; k++ {
		mat.Col(w, k, Z)
		for m := 0; m < s.M; m++ {
			s.R[m][k], s.T[m][k] = WFit(X[m], s.Y[k], w)
		}
	}
}

//Initialize seeds a hard random partition of the atoms over the segments (a
//multinomial draw over random segment weights) and bootstraps the remaining
//parameters with one M-step.
func (s *SegmentMixture) Initialize(X []*mat.Dense) {
	w := make([]float64, s.K)
	sum := 0.
	for k := range w {
		w[k] = s.Rand.Float64()
		sum += w[k]
	}
	for k := range w {
		w[k] /= sum
	}

	counts := multinomial(s.Rand, s.N, w)
	Z := mat.NewDense(s.N, s.K, nil)
	i := 0
	for k, c := range counts {
		for j := 0; j < c; j++ {
			Z.Set(i, k, 1)
			i++
		}
	}

	s.Z = Z
	s.MStep(X, Z)
}

//Clusters returns K copies of the ensemble coordinate array, each superposed
//on a different segment.
func (s *SegmentMixture) Clusters(X []*mat.Dense) [][]*mat.Dense {
	C := make([][]*mat.Dense, s.K)
	for k := 0; k < s.K; k++ {
		C[k] = make([]*mat.Dense, s.M)
		for m := 0; m < s.M; m++ {
			C[k][m] = backtransform(X[m], s.R[m][k], s.T[m][k])
		}
	}
	return C
}

//SegmentMixture2 is the segment mixture with a single shared template: all
//components write into one coordinate array (Y[0]), and the template update
//pools evidence across components weighted by responsibility and by each
//component's Gaussian precision. This is the statistically correct
//combination rule when the components have different variances.
type SegmentMixture2 struct {
	*SegmentMixture
}

//NewSegmentMixture2 creates a shared-template segment mixture.
func NewSegmentMixture2(nAtoms, nStructures, nComponents int, beta float64) *SegmentMixture2 {
	s := &SegmentMixture2{&SegmentMixture{}}
	s.GaussianMixture = NewGaussianMixture(nAtoms, nStructures, nComponents, beta, s)
	s.Y = s.Y[:1]
	return s
}

//CalculateDelta is as in SegmentMixture but compares every component
//against the shared template.
func (s *SegmentMixture2) CalculateDelta(X []*mat.Dense) *mat.Dense {
	D := mat.NewDense(s.N, s.K, nil)
	for m := 0; m < s.M; m++ {
		for k := 0; k < s.K; k++ {
			B := backtransform(X[m], s.R[m][k], s.T[m][k])
			for i := 0; i < s.N; i++ {
				var d float64
				for j := 0; j < 3; j++ {
					diff := s.Y[0].At(i, j) - B.At(i, j)
					d += diff * diff
				}
				D.Set(i, k, D.At(i, k)+d)
			}
		}
	}
	return D
}

//EstimateY updates the shared template as the responsibility- and
//precision-weighted average of the backtransformed structures. The template
//buffer is reused in place; its identity is stable across calls.
func (s *SegmentMixture2) EstimateY(X []*mat.Dense, Z *mat.Dense) {
	prec := make([]float64, s.K)
	for k := 0; k < s.K; k++ {
		prec[k] = 1 / clip(s.Sigma[k]*s.Sigma[k], 1e-308, 1e308)
	}

	// per-atom normalizer: M * sum_k Z[i,k] / sigma[k]^2
	n := make([]float64, s.N)
	for i := 0; i < s.N; i++ {
		for k := 0; k < s.K; k++ {
			n[i] += Z.At(i, k) * prec[k]
		}
		n[i] *= float64(s.M)
	}

	Y := s.Y[0]
	Y.Zero()
	sum := mat.NewDense(s.N, 3, nil)
	for k := 0; k < s.K; k++ {
		sum.Zero()
		for m := 0; m < s.M; m++ {
			sum.Add(sum, backtransform(X[m], s.R[m][k], s.T[m][k]))
		}
		for i := 0; i < s.N; i++ {
			scale := Z.At(i, k) * prec[k]
			for j := 0; j < 3; j++ {
				Y.Set(i, j, Y.At(i, j)+sum.At(i, j)*scale)
			}
		}
	}
	for i := 0; i < s.N; i++ {
		for j := 0; j < 3; j++ {
			Y.Set(i, j, Y.At(i, j)/n[i])
		}
	}
}

//EstimateT refits every structure onto the shared template, weighting atoms
//by their responsibility for each component.
func (s *SegmentMixture2) EstimateT(X []*mat.Dense, Z *mat.Dense) {
	w := make([]float64, s.N)
	for k := 0; k < s.K; k++ {
		mat.Col(w, k, Z)
		for m := 0; m < s.M; m++ {
			s.R[m][k], s.T[m][k] = WFit(X[m], s.Y[0], w)
		}
	}
}
