// Package scoring computes the composite lead score and its advisory quality
// gate. Everything here is pure; results are recomputed whenever an input
// changes and never cached apart from the lead they describe.
package scoring

import (
	"math"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-cli/internal/model"
)

// Weights and thresholds of the composite formula.
const (
	LikelihoodWeight = 0.4
	NeedWeight       = 0.4
	SizeWeight       = 0.2

	AutoApproveThreshold = 7.0
	ReviewThreshold      = 4.0

	// MaxComposite is the score of a 10/10 lead with a large fleet.
	MaxComposite = 10*LikelihoodWeight + 10*NeedWeight + 2*SizeWeight
)

// Input holds the scoring attributes of a lead.
type Input struct {
	FleetLikelihood int
	TrackingNeed    int
	FleetSize       model.FleetSize
}

// InputOf extracts the scoring attributes from a lead.
func InputOf(l *model.Lead) Input {
	return Input{
		FleetLikelihood: l.FleetLikelihood,
		TrackingNeed:    l.TrackingNeed,
		FleetSize:       l.FleetSize,
	}
}

// Result is a composite score with its gate.
type Result struct {
	Composite float64
	Gate      model.QualityGate
}

// SizeBonus maps a fleet-size bucket to its ordinal bonus.
func SizeBonus(size model.FleetSize) (int, error) {
	switch size {
	case model.FleetSizeSmall, model.FleetSizeUnknown:
		return 0, nil
	case model.FleetSizeMedium:
		return 1, nil
	case model.FleetSizeLarge:
		return 2, nil
	}
	return 0, eris.Wrapf(model.ErrInvalidScoreInput, "fleet_size: unrecognised bucket %q", size)
}

// Compute returns the composite score and gate for in. Out-of-range inputs
// fail with model.ErrInvalidScoreInput instead of being clamped.
func Compute(in Input) (Result, error) {
	if in.FleetLikelihood < 0 || in.FleetLikelihood > 10 {
		return Result{}, eris.Wrapf(model.ErrInvalidScoreInput, "fleet_likelihood: %d outside 0-10", in.FleetLikelihood)
	}
	if in.TrackingNeed < 0 || in.TrackingNeed > 10 {
		return Result{}, eris.Wrapf(model.ErrInvalidScoreInput, "tracking_need: %d outside 0-10", in.TrackingNeed)
	}
	bonus, err := SizeBonus(in.FleetSize)
	if err != nil {
		return Result{}, err
	}

	composite := float64(in.FleetLikelihood)*LikelihoodWeight +
		float64(in.TrackingNeed)*NeedWeight +
		float64(bonus)*SizeWeight
	composite = round(composite)

	return Result{Composite: composite, Gate: Gate(composite)}, nil
}

// Gate classifies a composite score. It is monotonic in composite.
func Gate(composite float64) model.QualityGate {
	switch {
	case composite >= AutoApproveThreshold:
		return model.GateAutoApprove
	case composite >= ReviewThreshold:
		return model.GateReview
	default:
		return model.GateAutoReject
	}
}

// Apply recomputes the derived fields of l from its current inputs. On error
// l is left unchanged.
func Apply(l *model.Lead) error {
	res, err := Compute(InputOf(l))
	if err != nil {
		return err
	}
	l.CompositeScore = res.Composite
	l.QualityGate = res.Gate
	return nil
}

// round keeps two decimals; float noise must not move a lead across a gate
// threshold.
func round(v float64) float64 {
	return math.Round(v*100) / 100
}
