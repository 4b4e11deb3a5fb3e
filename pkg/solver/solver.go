// Package solver fits linear models by an ordinary least-squares seed
// followed by a weighted, iteration-capped gradient refinement.
package solver

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// Iteration budgets used by the estimation and network stages
const (
	PairIterations    = 50
	NetworkIterations = 500
)

// rcond is the relative singular-value cutoff used to determine the rank
// of the design matrix for the minimum-norm seed
const rcond = 1e-12

var (
	// ErrEmpty is returned when the system has no observations or unknowns
	ErrEmpty = errors.New("solver: empty system")

	// ErrSingular is returned when the least-squares seed cannot be computed
	ErrSingular = errors.New("solver: least-squares seed failed")
)

// Result is the outcome of a weighted fit.
type Result struct {
	// X is the retained parameter vector
	X []float64

	// Seed is the unweighted least-squares solution
	Seed []float64

	// Converged is true when the refinement met its convergence criteria
	Converged bool

	// Fallback is true when the refinement was discarded and X == Seed
	Fallback bool

	// Iterations is the number of refinement iterations performed
	Iterations int

	// Cost is the weighted objective at X
	Cost float64

	// Reason explains a fallback or an unconverged refinement
	Reason string
}

// Solve fits G x ≈ d. sigma holds one uncertainty per observation; the
// refinement minimises sum(((G x - d) / sigma)^2). A nil sigma means
// uniform unit uncertainties. maxIter caps the refinement.
//
// A failed refinement is not an error: the seed is returned with
// Fallback set. An error is returned only when no seed can be computed.
func Solve(G *mat.Dense, d, sigma []float64, maxIter int) (Result, error) {
	n, k := G.Dims()
	if n == 0 || k == 0 {
		return Result{}, ErrEmpty
	}
	if len(d) != n {
		return Result{}, fmt.Errorf("solver: %d observations for %d rows", len(d), n)
	}
	if sigma == nil {
		sigma = make([]float64, n)
		for i := range sigma {
			sigma[i] = 1
		}
	} else if len(sigma) != n {
		return Result{}, fmt.Errorf("solver: %d uncertainties for %d rows", len(sigma), n)
	}

	seed, err := LeastSquares(G, d)
	if err != nil {
		return Result{}, err
	}

	obj := newObjective(G, d, sigma)
	res := Result{
		X:    seed,
		Seed: seed,
		Cost: obj.value(seed),
	}
	if math.IsNaN(res.Cost) || math.IsInf(res.Cost, 0) {
		res.Fallback = true
		res.Reason = "non-finite objective at seed"
		return res, nil
	}

	refined, status, iters, rerr := refine(obj, seed, maxIter)
	res.Iterations = iters
	switch {
	case rerr != nil:
		res.Fallback = true
		res.Reason = rerr.Error()
	case !allFinite(refined):
		res.Fallback = true
		res.Reason = "non-finite refinement"
	default:
		cost := obj.value(refined)
		if cost > res.Cost {
			res.Fallback = true
			res.Reason = "refinement increased the objective"
			break
		}
		res.X = refined
		res.Cost = cost
		res.Converged = status != optimize.IterationLimit
		if !res.Converged {
			res.Reason = fmt.Sprintf("iteration limit %d reached", maxIter)
		}
	}
	return res, nil
}

// LeastSquares returns the minimum-norm solution of G x ≈ d using a thin
// SVD, which also covers rank-deficient design matrices.
func LeastSquares(G *mat.Dense, d []float64) ([]float64, error) {
	n, k := G.Dims()
	if n == 0 || k == 0 {
		return nil, ErrEmpty
	}
	var svd mat.SVD
	if ok := svd.Factorize(G, mat.SVDThin); !ok {
		return nil, ErrSingular
	}
	rank := svd.Rank(rcond)
	if rank == 0 {
		// Zero matrix: the minimum-norm solution is zero
		return make([]float64, k), nil
	}
	var x mat.VecDense
	svd.SolveVecTo(&x, mat.NewVecDense(n, d), rank)
	out := make([]float64, k)
	for i := range out {
		out[i] = x.AtVec(i)
	}
	if !allFinite(out) {
		return nil, ErrSingular
	}
	return out, nil
}

// objective evaluates the weighted misfit and its gradient
type objective struct {
	G     *mat.Dense
	d     []float64
	inv   []float64 // 1/sigma
	resid *mat.VecDense
}

func newObjective(G *mat.Dense, d, sigma []float64) *objective {
	n, _ := G.Dims()
	inv := make([]float64, n)
	for i, s := range sigma {
		inv[i] = 1 / s
	}
	return &objective{G: G, d: d, inv: inv, resid: mat.NewVecDense(n, nil)}
}

// residuals stores (G x - d) / sigma in o.resid
func (o *objective) residuals(x []float64) {
	o.resid.MulVec(o.G, mat.NewVecDense(len(x), x))
	raw := o.resid.RawVector().Data
	for i := range raw {
		raw[i] = (raw[i] - o.d[i]) * o.inv[i]
	}
}

func (o *objective) value(x []float64) float64 {
	o.residuals(x)
	return floats.Dot(o.resid.RawVector().Data, o.resid.RawVector().Data)
}

// gradient computes 2 G^T ((G x - d) / sigma^2)
func (o *objective) gradient(grad, x []float64) {
	o.residuals(x)
	raw := o.resid.RawVector().Data
	scaled := make([]float64, len(raw))
	for i := range raw {
		scaled[i] = 2 * raw[i] * o.inv[i]
	}
	g := mat.NewVecDense(len(grad), grad)
	g.MulVec(o.G.T(), mat.NewVecDense(len(scaled), scaled))
}

// refine runs a BFGS minimisation capped at maxIter major iterations
func refine(o *objective, x0 []float64, maxIter int) ([]float64, optimize.Status, int, error) {
	problem := optimize.Problem{
		Func: o.value,
		Grad: func(grad, x []float64) {
			o.gradient(grad, x)
		},
	}
	settings := &optimize.Settings{
		MajorIterations: maxIter,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-12,
			Relative:   1e-10,
			Iterations: 20,
		},
	}
	start := make([]float64, len(x0))
	copy(start, x0)

	result, err := optimize.Minimize(problem, start, settings, &optimize.BFGS{})
	if err != nil {
		return nil, optimize.Failure, 0, err
	}
	if result == nil {
		return nil, optimize.Failure, 0, errors.New("solver: no refinement result")
	}
	return result.X, result.Status, result.Stats.MajorIterations, nil
}

func allFinite(x []float64) bool {
	for _, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
