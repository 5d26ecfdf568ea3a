package lifecycle

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/internal/scoring"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// DefaultMaxStaleRetries bounds re-reads after a conflicting write.
const DefaultMaxStaleRetries = 3

// Service persists workflow actions on leads.
type Service struct {
	repo       *store.Repository
	staleRetry resilience.RetryConfig
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMaxStaleRetries sets how many times a write is attempted against
// fresh state before StaleWrite is returned.
func WithMaxStaleRetries(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.staleRetry = resilience.StaleWriteRetry(n)
		}
	}
}

// WithClock overrides the time source used for stamped dates.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService returns a Service over repo.
func NewService(repo *store.Repository, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		staleRetry: resilience.StaleWriteRetry(DefaultMaxStaleRetries),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.staleRetry.OnRetry = resilience.RetryLogger("lifecycle", "write")
	return s
}

// Transition applies req to the lead and writes only the workflow fields it
// changed. A conflicting concurrent write is retried against fresh state;
// an illegal transition leaves the record unchanged.
func (s *Service) Transition(ctx context.Context, leadID string, req Request) (*model.Lead, error) {
	var from model.LeadStatus
	lead, err := resilience.DoVal(ctx, s.staleRetry, func(ctx context.Context) (*model.Lead, error) {
		l, err := s.repo.GetLead(ctx, leadID)
		if err != nil {
			return nil, err
		}
		from = l.Status
		keys, err := Apply(l, req, s.now())
		if err != nil {
			return nil, err
		}
		if err := s.repo.UpdateLead(ctx, l, keys); err != nil {
			return nil, err
		}
		return l, nil
	})
	if err != nil {
		zap.L().Warn("lifecycle: transition refused",
			zap.String("lead_id", leadID),
			zap.String("from", string(from)),
			zap.String("to", string(req.To)),
			zap.String("actor", req.Actor.String()),
			zap.Error(err),
		)
		return nil, err
	}

	zap.L().Info("lifecycle: transition",
		zap.String("lead_id", leadID),
		zap.String("from", string(from)),
		zap.String("to", string(lead.Status)),
		zap.String("actor", req.Actor.String()),
	)
	return lead, nil
}

// Rescore replaces the scoring inputs of a lead and recomputes its
// composite score and quality gate in the same write. The status is never
// touched; the gate is advisory.
func (s *Service) Rescore(ctx context.Context, leadID string, in scoring.Input) (*model.Lead, error) {
	keys := []string{
		model.FieldFleetLikelihood, model.FieldTrackingNeed, model.FieldFleetSize,
		model.FieldCompositeScore, model.FieldQualityGate,
	}
	lead, err := resilience.DoVal(ctx, s.staleRetry, func(ctx context.Context) (*model.Lead, error) {
		l, err := s.repo.GetLead(ctx, leadID)
		if err != nil {
			return nil, err
		}
		l.FleetLikelihood, l.TrackingNeed, l.FleetSize = in.FleetLikelihood, in.TrackingNeed, in.FleetSize
		if err := scoring.Apply(l); err != nil {
			return nil, err
		}
		if err := s.repo.UpdateLead(ctx, l, keys); err != nil {
			return nil, err
		}
		return l, nil
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("lifecycle: rescored",
		zap.String("lead_id", leadID),
		zap.Float64("composite", lead.CompositeScore),
		zap.String("gate", string(lead.QualityGate)),
	)
	return lead, nil
}
