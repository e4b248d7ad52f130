// Package decay predicts activity over time for decay chains using the
// closed-form Bateman solution. Given a starting nuclide and its initial
// activity, it evolves every downstream chain member across a requested time
// grid. Chains with incomplete half-life data degrade to the solvable prefix
// instead of failing.
package decay

import (
	"math"

	"github.com/tkarvo/gammalyze/internal/errors"
	"github.com/tkarvo/gammalyze/internal/nuclide"
)

// Near-equal decay constants make the Bateman denominators vanish. Constants
// closer than relEpsilon (relative) are nudged apart by nudgeFactor, which
// perturbs half-lives by one part in 1e8, far below data precision.
const (
	relEpsilon  = 1e-9
	nudgeFactor = 1 + 1e-8
)

// Series is the activity curve of one chain member.
type Series struct {
	Nuclide      nuclide.ID `json:"nuclide"`
	Name         string     `json:"name"`
	ActivitiesBq []float64  `json:"activities_bq"`
}

// Result is a full chain prediction over one time grid.
type Result struct {
	TimesSeconds []float64 `json:"times_seconds"`
	Series       []Series  `json:"series"`
	// Degraded marks a chain truncated at a member with unknown half-life.
	Degraded bool `json:"degraded"`
}

// Predictor evolves chain activities against the registry.
type Predictor struct {
	registry *nuclide.Registry
}

// NewPredictor builds a predictor over a loaded registry.
func NewPredictor(registry *nuclide.Registry) *Predictor {
	return &Predictor{registry: registry}
}

// Predict returns the activity of every solvable chain member at each time
// point. The starting nuclide carries initialActivityBq at t=0, downstream
// members start at zero. Times are seconds, must be non-negative and
// ascending. Standalone nuclides yield a single exponential curve.
func (p *Predictor) Predict(id nuclide.ID, initialActivityBq float64, times []float64) (*Result, error) {
	start, ok := p.registry.Nuclide(id)
	if !ok {
		return nil, errors.Newf("unknown nuclide %q", id).
			Component("decay").
			Category(errors.CategoryNotFound).
			Build()
	}
	if start.Stable {
		return nil, errors.Newf("%s is stable and has no activity to predict", start.Name).
			Component("decay").
			Category(errors.CategoryValidation).
			NuclideContext(start.Name).
			Build()
	}
	if !start.KnownHalfLife() {
		return nil, errors.Newf("half-life of %s is unknown", start.Name).
			Component("decay").
			Category(errors.CategoryValidation).
			NuclideContext(start.Name).
			Build()
	}
	if initialActivityBq <= 0 || math.IsNaN(initialActivityBq) || math.IsInf(initialActivityBq, 0) {
		return nil, errors.Newf("initial activity must be positive and finite, got %g Bq", initialActivityBq).
			Component("decay").
			Category(errors.CategoryValidation).
			Build()
	}
	if err := validateTimes(times); err != nil {
		return nil, err
	}

	members, branching, degraded := p.solvableChain(start)

	lambdas := make([]float64, len(members))
	for i, m := range members {
		lambdas[i] = m.DecayConstant()
	}
	separateClose(lambdas)

	result := &Result{
		TimesSeconds: times,
		Series:       make([]Series, len(members)),
		Degraded:     degraded,
	}

	// Cumulative branching into each member and the partial-fraction
	// coefficients of each prefix.
	branchProduct := 1.0
	for m := range members {
		if m > 0 {
			branchProduct *= branching[m]
		}
		coeffs := batemanCoefficients(lambdas[:m+1])

		activities := make([]float64, len(times))
		for ti, t := range times {
			activities[ti] = activityAt(initialActivityBq, lambdas[:m+1], coeffs, branchProduct, t)
		}
		result.Series[m] = Series{
			Nuclide:      members[m].ID,
			Name:         members[m].Name,
			ActivitiesBq: activities,
		}
	}
	return result, nil
}

// solvableChain returns the chain members from the starting nuclide down to
// the last one with a known half-life. Stable end members carry no activity
// and are dropped; a gap in half-life data truncates the chain and flags the
// result as degraded.
func (p *Predictor) solvableChain(start *nuclide.Nuclide) (members []*nuclide.Nuclide, branching []float64, degraded bool) {
	tail := p.registry.ChainTail(start.ID)
	if tail == nil {
		return []*nuclide.Nuclide{start}, []float64{1}, false
	}
	fractions := p.registry.BranchingFor(start.ID)

	for i, n := range tail {
		if n.Stable {
			break
		}
		if !n.KnownHalfLife() {
			degraded = true
			break
		}
		members = append(members, n)
		branching = append(branching, fractions[i])
	}
	return members, branching, degraded
}

func validateTimes(times []float64) error {
	if len(times) == 0 {
		return errors.Newf("at least one time point is required").
			Component("decay").
			Category(errors.CategoryValidation).
			Build()
	}
	prev := math.Inf(-1)
	for i, t := range times {
		if t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
			return errors.Newf("time point %d is invalid: %g", i, t).
				Component("decay").
				Category(errors.CategoryValidation).
				Build()
		}
		if t <= prev && i > 0 {
			return errors.Newf("time points must be strictly ascending at index %d", i).
				Component("decay").
				Category(errors.CategoryValidation).
				Build()
		}
		prev = t
	}
	return nil
}

// separateClose nudges near-equal decay constants apart so the Bateman
// denominators stay finite. The limiting form of the solution is approached
// continuously, so the nudge changes the result by at most one part in 1e8.
func separateClose(lambdas []float64) {
	for i := 1; i < len(lambdas); i++ {
		for j := 0; j < i; j++ {
			larger := math.Max(lambdas[i], lambdas[j])
			for math.Abs(lambdas[i]-lambdas[j]) <= relEpsilon*larger {
				lambdas[i] *= nudgeFactor
			}
		}
	}
}

// batemanCoefficients computes the partial-fraction coefficients of the last
// member of a chain prefix. Factors are paired as lambda ratios so the
// products stay within float64 range despite decay constants spanning twenty
// orders of magnitude.
func batemanCoefficients(lambdas []float64) []float64 {
	n := len(lambdas)
	coeffs := make([]float64, n)
	for i := 0; i < n; i++ {
		c := 1.0
		for j := 0; j < n-1; j++ {
			if j == i {
				continue
			}
			c *= lambdas[j] / (lambdas[j] - lambdas[i])
		}
		if i < n-1 {
			c *= lambdas[i] / (lambdas[n-1] - lambdas[i])
		}
		coeffs[i] = c
	}
	return coeffs
}

// activityAt evaluates the activity of the prefix's last member at time t.
func activityAt(a0 float64, lambdas, coeffs []float64, branchProduct, t float64) float64 {
	n := len(lambdas)

	// At t=0 the closed form cancels exactly: all activity sits in the
	// parent. Evaluate directly instead of relying on float cancellation.
	if t == 0 {
		if n == 1 {
			return a0
		}
		return 0
	}

	sum := 0.0
	for i := 0; i < n; i++ {
		sum += coeffs[i] * math.Exp(-lambdas[i]*t)
	}

	a := a0 * (lambdas[n-1] / lambdas[0]) * branchProduct * sum
	if a < 0 || math.IsNaN(a) {
		return 0
	}
	return a
}

// LinearTimes returns points evenly spaced from 0 to duration inclusive.
func LinearTimes(duration float64, points int) []float64 {
	if points < 2 || duration <= 0 {
		return []float64{0}
	}
	out := make([]float64, points)
	step := duration / float64(points-1)
	for i := range out {
		out[i] = float64(i) * step
	}
	out[points-1] = duration
	return out
}

// LogTimes returns points log-spaced from duration/1e6 to duration, with a
// leading zero so curves start at the initial condition.
func LogTimes(duration float64, points int) []float64 {
	if points < 2 || duration <= 0 {
		return []float64{0}
	}
	if points == 2 {
		return []float64{0, duration}
	}
	out := make([]float64, 0, points)
	out = append(out, 0)
	first := duration / 1e6
	ratio := math.Pow(duration/first, 1/float64(points-2))
	t := first
	for i := 1; i < points; i++ {
		out = append(out, t)
		t *= ratio
	}
	out[points-1] = duration
	return out
}
