package ingest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadgen-cli/internal/cost"
	"github.com/sells-group/leadgen-cli/internal/dedup"
	"github.com/sells-group/leadgen-cli/internal/lifecycle"
	"github.com/sells-group/leadgen-cli/internal/model"
	"github.com/sells-group/leadgen-cli/internal/resilience"
	"github.com/sells-group/leadgen-cli/internal/review"
	"github.com/sells-group/leadgen-cli/internal/schema"
	"github.com/sells-group/leadgen-cli/internal/scoring"
	"github.com/sells-group/leadgen-cli/internal/store"
)

// Per-lead outcome labels reported in a Summary.
const (
	OutcomeNew       = "new"
	OutcomeUpdate    = "update"
	OutcomeDuplicate = "duplicate"
	OutcomeResumed   = "resumed"
	OutcomeRejected  = "rejected"
)

// LeadResult is the outcome of one candidate.
type LeadResult struct {
	Index   int    `json:"index"`
	Company string `json:"company_name"`
	Outcome string `json:"outcome"`
	LeadID  string `json:"lead_id,omitempty"`
	Kind    string `json:"error_kind,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Summary is the batch processing summary returned to the sender.
type Summary struct {
	BatchID         string            `json:"batch_id"`
	Status          model.BatchStatus `json:"status"`
	LeadsFound      int               `json:"leads_found"`
	LeadsAfterDedup int               `json:"leads_after_dedup"`
	Accepted        int               `json:"accepted"`
	Updated         int               `json:"updated"`
	Duplicates      int               `json:"duplicates"`
	Rejected        int               `json:"rejected"`
	Replayed        bool              `json:"replayed,omitempty"`
	APICost         float64           `json:"api_cost_usd"`
	Errors          []string          `json:"errors"`
	Results         []LeadResult      `json:"results"`
}

// Gateway applies inbound batches to the workspace. Batches are processed
// one at a time and the leads of a batch in payload order, so dedup always
// sees every earlier insertion.
type Gateway struct {
	mu         sync.Mutex
	repo       *store.Repository
	schema     *schema.Schema
	policy     []dedup.Key
	review     review.Queue
	staleRetry resilience.RetryConfig
	pricing    *cost.Calculator
	now        func() time.Time
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithPolicy sets the dedup identity-key policy.
func WithPolicy(policy []dedup.Key) Option {
	return func(g *Gateway) {
		if len(policy) > 0 {
			g.policy = policy
		}
	}
}

// WithReviewQueue sets where ambiguous duplicates are routed.
func WithReviewQueue(q review.Queue) Option {
	return func(g *Gateway) { g.review = q }
}

// WithMaxStaleRetries bounds re-reads after a conflicting lead update.
func WithMaxStaleRetries(n int) Option {
	return func(g *Gateway) {
		if n > 0 {
			g.staleRetry = resilience.StaleWriteRetry(n)
		}
	}
}

// WithPricing sets the calculator that prices payload usage.
func WithPricing(c *cost.Calculator) Option {
	return func(g *Gateway) {
		if c != nil {
			g.pricing = c
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// NewGateway returns a Gateway over repo.
func NewGateway(repo *store.Repository, opts ...Option) *Gateway {
	g := &Gateway{
		repo:       repo,
		schema:     schema.Current(),
		policy:     dedup.DefaultPolicy,
		review:     review.LogQueue{},
		staleRetry: resilience.StaleWriteRetry(lifecycle.DefaultMaxStaleRetries),
		pricing:    cost.NewCalculator(cost.DefaultRates()),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.staleRetry.OnRetry = resilience.RetryLogger("ingest", "update_lead")
	return g
}

// run holds the state of one Ingest call.
type run struct {
	// closed marks a replay into a finalised batch: its status is kept and
	// no lead counts as resumed.
	closed   bool
	batch    *model.Batch
	sources  map[string]*model.Source
	resolver *dedup.Resolver
	// seen marks leads this call created or re-claimed; a later match on
	// one of them is a genuine in-payload duplicate.
	seen    map[string]bool
	crawled []string
	summary *Summary
	// cost is the priced payload usage; nil leaves the batch's cost as is.
	cost *float64
}

// Ingest processes p. Per-lead failures are recorded and never abort the
// batch. An error is returned only when the batch cannot be processed at
// all: a malformed batch id or a workspace-store failure, in which case the
// batch stays Running and a retry of the same payload resumes it. A payload
// for a finalised batch is processed as a replay: its leads resolve against
// the workspace as usual, the batch keeps its status and only its counters,
// error log and cost take in what the replay added.
func (g *Gateway) Ingest(ctx context.Context, p *Payload) (*Summary, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, u := range p.Usage {
		if err := u.Validate(); err != nil {
			return nil, err
		}
	}

	r, err := g.begin(ctx, p.BatchID)
	if err != nil {
		return nil, err
	}
	log := zap.L().With(zap.String("batch_id", p.BatchID))
	if len(p.Usage) > 0 {
		r.cost = g.price(p.BatchID, p.Usage)
	}
	log.Info("ingest: batch started", zap.Int("leads", len(p.Leads)))

	for i := range p.Leads {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrapf(err, "ingest: batch %s interrupted", p.BatchID)
		}
		res, err := g.processLead(ctx, r, i, p.Leads[i])
		if err != nil {
			if model.ErrorKind(err) == "InternalError" {
				log.Error("ingest: batch aborted", zap.Int("index", i), zap.Error(err))
				return nil, eris.Wrapf(err, "ingest: lead %d", i)
			}
			res = g.reject(r, i, p.Leads[i], err)
		}
		r.summary.Results = append(r.summary.Results, res)
	}

	if err := g.finish(ctx, r, len(p.Leads)); err != nil {
		return nil, err
	}
	log.Info("ingest: batch finished",
		zap.String("status", string(r.summary.Status)),
		zap.Int("accepted", r.summary.Accepted),
		zap.Int("updated", r.summary.Updated),
		zap.Int("duplicates", r.summary.Duplicates),
		zap.Int("rejected", r.summary.Rejected),
	)
	return r.summary, nil
}

// begin loads or creates the batch and the dedup index.
func (g *Gateway) begin(ctx context.Context, batchID string) (*run, error) {
	runDate, err := model.ParseBatchID(batchID)
	if err != nil {
		return nil, err
	}

	batch, err := g.repo.FindBatch(ctx, batchID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		started := g.now().UTC()
		batch = &model.Batch{BatchID: batchID, RunDate: runDate, Status: model.BatchRunning, StartedAt: &started}
		if err := g.repo.CreateBatch(ctx, batch); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case batch.Status.Terminal():
		zap.L().Info("ingest: replaying finalised batch",
			zap.String("batch_id", batchID),
			zap.String("status", string(batch.Status)),
		)
	default:
		zap.L().Info("ingest: resuming batch", zap.String("batch_id", batchID))
	}

	sources, err := g.repo.ListSources(ctx)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*model.Source, len(sources))
	for _, s := range sources {
		byName[s.Name] = s
	}

	leads, err := g.repo.ListLeads(ctx, nil)
	if err != nil {
		return nil, err
	}

	return &run{
		closed:   batch.Status.Terminal(),
		batch:    batch,
		sources:  byName,
		resolver: dedup.NewResolver(g.policy, leads),
		seen:     make(map[string]bool),
		summary:  &Summary{BatchID: batchID, Errors: []string{}},
	}, nil
}

func (g *Gateway) processLead(ctx context.Context, r *run, i int, lp LeadPayload) (LeadResult, error) {
	res := LeadResult{Index: i, Company: lp.Company()}
	if lp.Err != nil {
		return res, lp.Err
	}
	if err := g.schema.ValidateInput(schema.Leads, lp.inputFields()); err != nil {
		return res, err
	}

	src := r.sources[lp.SourceName()]
	if src == nil {
		return res, eris.Wrapf(model.ErrUnknownSourceReference, "ingest: no source named %q", lp.SourceName())
	}
	if err := src.CheckReferenceable(); err != nil {
		return res, err
	}
	if !slices.Contains(r.crawled, src.Name) {
		r.crawled = append(r.crawled, src.Name)
	}

	cand := lp.toLead()
	cand.SourceID = src.ID
	cand.BatchID = r.batch.ID

	out, err := r.resolver.Resolve(cand)
	if err != nil {
		if errors.Is(err, model.ErrAmbiguousDuplicate) {
			g.sendToReview(ctx, r, i, cand, out.Candidates, err)
		}
		return res, err
	}

	resumed := false
	if out.Kind != dedup.New {
		existing, _ := r.resolver.Get(out.ExistingID)
		resumed = !r.closed && existing.BatchID == r.batch.ID && !r.seen[existing.ID]
		r.seen[existing.ID] = true
		res.LeadID = existing.ID
	}

	switch out.Kind {
	case dedup.New:
		if err := g.create(ctx, r, cand); err != nil {
			return res, err
		}
		res.LeadID, res.Outcome = cand.ID, OutcomeNew
		r.summary.Accepted++

	case dedup.Update:
		updated, err := g.update(ctx, r, out.ExistingID, cand)
		if err != nil {
			return res, err
		}
		if resumed {
			res.Outcome = OutcomeResumed
			r.summary.Accepted++
		} else if updated {
			res.Outcome = OutcomeUpdate
			r.summary.Updated++
		} else {
			res.Outcome = OutcomeDuplicate
			r.summary.Duplicates++
		}

	case dedup.Duplicate:
		if resumed {
			res.Outcome = OutcomeResumed
			r.summary.Accepted++
		} else {
			res.Outcome = OutcomeDuplicate
			r.summary.Duplicates++
		}
	}

	zap.L().Debug("ingest: lead processed",
		zap.String("batch_id", r.batch.BatchID),
		zap.Int("index", i),
		zap.String("company", res.Company),
		zap.String("lead_id", res.LeadID),
		zap.String("outcome", res.Outcome),
	)
	return res, nil
}

func (g *Gateway) create(ctx context.Context, r *run, l *model.Lead) error {
	if err := scoring.Apply(l); err != nil {
		return err
	}
	found := g.now().UTC()
	l.Status = lifecycle.Initial()
	l.DateFound = &found
	if err := g.repo.CreateLead(ctx, l); err != nil {
		return err
	}
	r.resolver.Put(l)
	r.seen[l.ID] = true
	return nil
}

// update merges the changed fields of cand into the stored lead and
// rescores it. Workflow fields are never written. It reports false when the
// fresh record already carries every incoming value.
func (g *Gateway) update(ctx context.Context, r *run, id string, cand *model.Lead) (bool, error) {
	var wrote bool
	merged, err := resilience.DoVal(ctx, g.staleRetry, func(ctx context.Context) (*model.Lead, error) {
		l, err := g.repo.GetLead(ctx, id)
		if err != nil {
			return nil, err
		}
		changed := dedup.ChangedFields(l, cand)
		if len(changed) == 0 {
			wrote = false
			return l, nil
		}
		for _, k := range changed {
			l.CopyField(cand, k)
		}
		if err := scoring.Apply(l); err != nil {
			return nil, err
		}
		keys := append(changed, model.FieldCompositeScore, model.FieldQualityGate)
		if err := g.repo.UpdateLead(ctx, l, keys); err != nil {
			return nil, err
		}
		wrote = true
		return l, nil
	})
	if err != nil {
		return false, err
	}
	r.resolver.Put(merged)
	return wrote, nil
}

func (g *Gateway) reject(r *run, i int, lp LeadPayload, err error) LeadResult {
	kind := model.ErrorKind(err)
	company := lp.Company()
	if company == "" {
		company = "(unnamed)"
	}
	entry := fmt.Sprintf("lead %d (%s): %s: %v", i, company, kind, err)
	r.summary.Errors = append(r.summary.Errors, entry)
	r.summary.Rejected++

	zap.L().Warn("ingest: lead rejected",
		zap.String("batch_id", r.batch.BatchID),
		zap.Int("index", i),
		zap.String("company", company),
		zap.String("outcome", OutcomeRejected),
		zap.Error(err),
	)
	return LeadResult{Index: i, Company: lp.Company(), Outcome: OutcomeRejected, Kind: kind, Error: err.Error()}
}

func (g *Gateway) sendToReview(ctx context.Context, r *run, i int, cand *model.Lead, candidates []string, cause error) {
	item := review.Item{
		BatchID:    r.batch.BatchID,
		Index:      i,
		Company:    cand.CompanyName,
		Kind:       model.ErrorKind(cause),
		Reason:     cause.Error(),
		Candidates: candidates,
		Timestamp:  g.now().UTC(),
	}
	if err := g.review.Enqueue(ctx, item); err != nil {
		zap.L().Error("ingest: review queue unavailable",
			zap.String("batch_id", r.batch.BatchID),
			zap.String("company", cand.CompanyName),
			zap.Error(err),
		)
	}
}

// price totals usage. Replaying a payload prices it again rather than
// adding to the batch's cost.
func (g *Gateway) price(batchID string, usage []cost.Usage) *float64 {
	for _, u := range usage {
		if !g.pricing.Known(u.Model) {
			zap.L().Warn("ingest: no rate for model, token usage priced at 0",
				zap.String("batch_id", batchID),
				zap.String("model", u.Model),
			)
		}
	}
	total := g.pricing.Total(usage)
	return &total
}

// finish writes the counters and the final status onto the batch. It is
// the only write that moves the batch out of Running.
func (g *Gateway) finish(ctx context.Context, r *run, found int) error {
	s := r.summary
	s.LeadsFound = found
	s.LeadsAfterDedup = s.Accepted + s.Updated
	if r.closed {
		return g.finishReplay(ctx, r)
	}
	s.Status = model.FinalStatus(s.Accepted+s.Updated+s.Duplicates, s.Rejected)

	apply := func(b *model.Batch) {
		b.LeadsFound = s.LeadsFound
		b.LeadsAfterDedup = s.LeadsAfterDedup
		b.Errors = s.Errors
		b.SourcesCrawled = r.crawled
		b.Status = s.Status
		if r.cost != nil {
			b.APICost = *r.cost
		}
	}

	return resilience.Do(ctx, g.staleRetry, func(ctx context.Context) error {
		b, err := g.repo.GetBatch(ctx, r.batch.ID)
		if err != nil {
			return err
		}
		if b.Status.Terminal() {
			return eris.Wrapf(model.ErrBatchClosed, "ingest: batch %s was finalised concurrently", b.BatchID)
		}
		apply(b)
		if err := g.repo.SaveBatch(ctx, b); err != nil {
			return err
		}
		r.batch = b
		s.APICost = b.APICost
		return nil
	})
}

// finishReplay folds a replay into its finalised batch. Duplicates were
// counted by the run that brought them, so only created, updated and
// rejected leads add to the counters. A pure-duplicate replay writes
// nothing.
func (g *Gateway) finishReplay(ctx context.Context, r *run) error {
	s := r.summary
	s.Replayed = true
	added := s.Accepted + s.Updated

	return resilience.Do(ctx, g.staleRetry, func(ctx context.Context) error {
		b, err := g.repo.GetBatch(ctx, r.batch.ID)
		if err != nil {
			return err
		}
		s.Status = b.Status
		s.APICost = b.APICost

		costChanged := r.cost != nil && *r.cost != b.APICost
		if added == 0 && s.Rejected == 0 && !costChanged {
			r.batch = b
			return nil
		}
		b.LeadsFound += added + s.Rejected
		b.LeadsAfterDedup += added
		b.Errors = append(b.Errors, s.Errors...)
		for _, name := range r.crawled {
			if !slices.Contains(b.SourcesCrawled, name) {
				b.SourcesCrawled = append(b.SourcesCrawled, name)
			}
		}
		if r.cost != nil {
			b.APICost = *r.cost
		}
		if err := g.repo.SaveBatch(ctx, b); err != nil {
			return err
		}
		r.batch = b
		s.APICost = b.APICost
		return nil
	})
}

