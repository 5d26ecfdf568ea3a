package scoring

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadgen-cli/internal/model"
)

func TestCompute_Examples(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		in        Input
		composite float64
		gate      model.QualityGate
	}{
		{"medium fleet approve", Input{9, 8, model.FleetSizeMedium}, 7.0, model.GateAutoApprove},
		{"small fleet reject", Input{5, 4, model.FleetSizeSmall}, 3.6, model.GateAutoReject},
		{"large fleet max", Input{10, 10, model.FleetSizeLarge}, 8.0, model.GateAutoApprove},
		{"unknown fleet zero bonus", Input{5, 5, model.FleetSizeUnknown}, 4.0, model.GateReview},
		{"all zero", Input{0, 0, model.FleetSizeSmall}, 0, model.GateAutoReject},
		{"just under approve", Input{8, 9, model.FleetSizeSmall}, 6.8, model.GateReview},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, err := Compute(tt.in)
			require.NoError(t, err)
			assert.InDelta(t, tt.composite, res.Composite, 1e-9)
			assert.Equal(t, tt.gate, res.Gate)
		})
	}
}

func TestCompute_InvalidInputs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Input
		msg  string
	}{
		{"likelihood high", Input{11, 5, model.FleetSizeSmall}, "fleet_likelihood"},
		{"likelihood negative", Input{-1, 5, model.FleetSizeSmall}, "fleet_likelihood"},
		{"need high", Input{5, 12, model.FleetSizeSmall}, "tracking_need"},
		{"bad bucket", Input{5, 5, "Huge"}, "fleet_size"},
		{"empty bucket", Input{5, 5, ""}, "fleet_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Compute(tt.in)
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrInvalidScoreInput))
			assert.Contains(t, err.Error(), tt.msg)
		})
	}
}

func TestCompute_RangeForAllValidInputs(t *testing.T) {
	t.Parallel()
	for _, size := range model.FleetSizes {
		for l := 0; l <= 10; l++ {
			for n := 0; n <= 10; n++ {
				res, err := Compute(Input{l, n, size})
				require.NoError(t, err)
				assert.GreaterOrEqual(t, res.Composite, 0.0)
				assert.LessOrEqual(t, res.Composite, MaxComposite)
				assert.Equal(t, Gate(res.Composite), res.Gate)
			}
		}
	}
}

func TestGate_Monotonic(t *testing.T) {
	t.Parallel()
	rank := map[model.QualityGate]int{
		model.GateAutoReject:  0,
		model.GateReview:      1,
		model.GateAutoApprove: 2,
	}
	prev := rank[Gate(0)]
	for c := 0.0; c <= MaxComposite; c += 0.05 {
		r := rank[Gate(c)]
		assert.GreaterOrEqual(t, r, prev, "gate decreased at composite %v", c)
		prev = r
	}
}

func TestGate_Thresholds(t *testing.T) {
	t.Parallel()
	assert.Equal(t, model.GateAutoApprove, Gate(7))
	assert.Equal(t, model.GateReview, Gate(6.99))
	assert.Equal(t, model.GateReview, Gate(4))
	assert.Equal(t, model.GateAutoReject, Gate(3.99))
}

func TestApply(t *testing.T) {
	t.Parallel()
	l := &model.Lead{FleetLikelihood: 9, TrackingNeed: 8, FleetSize: model.FleetSizeMedium}
	require.NoError(t, Apply(l))
	assert.InDelta(t, 7.0, l.CompositeScore, 1e-9)
	assert.Equal(t, model.GateAutoApprove, l.QualityGate)

	l.TrackingNeed = 42
	require.Error(t, Apply(l))
	assert.InDelta(t, 7.0, l.CompositeScore, 1e-9, "failed apply must not touch derived fields")
}
