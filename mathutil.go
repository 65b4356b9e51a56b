package csb

import (
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mathext"
)

const eulerGamma = 0.57721566490153286

//clip bounds x to the interval [lo, hi]
func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

//logSumExp will compute log(sum(exp(x))) with the max subtracted out first,
//so that large log-probabilities do not overflow the exponential
func logSumExp(x []float64) float64 {
	max := floats.Max(x)
	if math.IsInf(max, -1) {
		return max
	}
	sum := 0.
	for _, v := range x {
		sum += math.Exp(v - max)
	}
	return max + math.Log(sum)
}

//multinomial will draw counts for n items falling into len(w) categories
//with the given (unnormalized) weights
func multinomial(rng *rand.Rand, n int, w []float64) []int {
	counts := make([]int, len(w))
	total := floats.Sum(w)
	for i := 0; i < n; i++ {
		u := rng.Float64() * total
		k := len(w) - 1
		acc := 0.
		for j, wj := range w {
			acc += wj
			if u < acc {
				k = j
				break
			}
		}
		counts[k]++
	}
	return counts
}

//median will return the sample median, averaging the two central order
//statistics for samples of even length
func median(data []float64) float64 {
	s := make([]float64, len(data))
	copy(s, data)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return 0.5 * (s[n/2-1] + s[n/2])
}

//trigamma evaluates the derivative of the digamma function, pushing the
//argument into the asymptotic regime by the recurrence psi'(x) = psi'(x+1) + 1/x^2
func trigamma(x float64) float64 {
	s := 0.
	for x < 6 {
		s += 1 / (x * x)
		x++
	}
	inv := 1 / x
	inv2 := inv * inv
	return s + inv*(1+0.5*inv+inv2*(1./6-inv2*(1./30-inv2/42)))
}

//invDigamma will solve digamma(x) = y for x by Newton iteration, starting
//from Minka's initial guess
func invDigamma(y float64) float64 {
	var x float64
	if y >= -2.22 {
		x = math.Exp(y) + 0.5
	} else {
		x = -1 / (y + eulerGamma)
	}
	for i := 0; i < 8; i++ {
		x -= (mathext.Digamma(x) - y) / trigamma(x)
	}
	return x
}
