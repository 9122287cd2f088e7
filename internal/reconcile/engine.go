// Package reconcile archives stored findings that the current run no longer
// reproduces and publishes the ones it does.
package reconcile

import (
	"context"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/chukul/cloudaudit/internal/auditerr"
	"github.com/chukul/cloudaudit/internal/findings"
)

const (
	MaxBatchSize       = 100
	DefaultConcurrency = 4
)

// Store is the external finding store.
type Store interface {
	DescribeHub(ctx context.Context, region string) error
	IntegrationEnabled(ctx context.Context, region string) (bool, error)
	Findings(ctx context.Context, filter findings.Filter) ([]findings.Finding, error)
	Submit(ctx context.Context, region string, batch []findings.Finding) (findings.SubmitResult, error)
}

// Attribution names the audited account; session.AuditContext satisfies it.
type Attribution interface {
	Account() string
}

// Engine reconciles and publishes findings region by region. Regions run in
// parallel; batches within a region are submitted in order.
type Engine struct {
	store       Store
	product     string
	batchSize   int
	concurrency int
	now         func() time.Time
	logger      *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithBatchSize caps each submission. Values outside 1..100 are ignored.
func WithBatchSize(n int) Option {
	return func(e *Engine) {
		if n > 0 && n <= MaxBatchSize {
			e.batchSize = n
		}
	}
}

// WithConcurrency bounds how many regions are processed at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithClock overrides the time source for archive timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithProductName sets the product filter used when querying the store.
func WithProductName(name string) Option {
	return func(e *Engine) { e.product = name }
}

// New creates an Engine over store.
func New(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		product:     "CloudAudit",
		batchSize:   MaxBatchSize,
		concurrency: DefaultConcurrency,
		now:         time.Now,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Reconcile archives, in every region that has current findings, each
// ACTIVE stored finding whose id is not among that region's current ids.
// Regions absent from current are not visited. Per-region and per-batch
// failures are logged and skipped; the returned slice holds the archived
// findings the store accepted, in region then store order.
func (e *Engine) Reconcile(ctx context.Context, current []findings.Finding, attr Attribution) ([]findings.Finding, error) {
	e.logger.Info("Checking previous findings in Security Hub to archive them")

	ts := findings.Timestamp(e.now())
	groups := findings.GroupByRegion(current)

	results := make(map[string][]findings.Finding, len(groups))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for region, regional := range groups {
		g.Go(func() error {
			archived := e.reconcileRegion(gctx, region, regional, attr.Account(), ts)
			mu.Lock()
			results[region] = archived
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var out []findings.Finding
	for _, region := range sortedKeys(results) {
		out = append(out, results[region]...)
	}
	e.logger.Info("Reconciliation finished", zap.Int("archived", len(out)), zap.Int("regions", len(groups)))
	return out, nil
}

func (e *Engine) reconcileRegion(ctx context.Context, region string, current []findings.Finding, account, ts string) []findings.Finding {
	logger := e.logger.With(zap.String("region", region))
	if region == "" {
		logger.Warn("Skipping findings without a region", zap.Int("count", len(current)))
		return nil
	}
	if !e.preflight(ctx, region, logger) {
		return nil
	}

	stored, err := e.store.Findings(ctx, findings.Filter{
		Product: e.product,
		Account: account,
		Region:  region,
		State:   findings.StateActive,
	})
	if err != nil {
		logger.Error("Failed to query previous findings", auditerr.Fields(err)...)
		return nil
	}

	ids := findings.IDs(current)
	var stale []findings.Finding
	for _, f := range stored {
		if _, ok := ids[f.ID]; ok {
			continue
		}
		stale = append(stale, f.Archived(ts))
	}

	logger.Info("Archiving findings", zap.Int("archived", len(stale)), zap.Int("current", len(current)), zap.Int("stored", len(stored)))
	return e.submit(ctx, region, stale, logger)
}

// Publish submits the current findings, stamped ACTIVE with the run
// timestamp, and returns how many the store accepted.
func (e *Engine) Publish(ctx context.Context, current []findings.Finding) (int, error) {
	e.logger.Info("Sending findings to Security Hub", zap.Int("count", len(current)))

	ts := findings.Timestamp(e.now())
	groups := findings.GroupByRegion(current)

	var (
		mu       sync.Mutex
		accepted int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for region, regional := range groups {
		g.Go(func() error {
			logger := e.logger.With(zap.String("region", region))
			if region == "" || !e.preflight(gctx, region, logger) {
				return nil
			}
			batch := make([]findings.Finding, 0, len(regional))
			for _, f := range regional {
				batch = append(batch, f.Active(ts))
			}
			sent := e.submit(gctx, region, batch, logger)
			mu.Lock()
			accepted += len(sent)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return accepted, nil
}

// preflight reports whether region has an enabled hub. A missing integration
// only warns.
func (e *Engine) preflight(ctx context.Context, region string, logger *zap.Logger) bool {
	if err := e.store.DescribeHub(ctx, region); err != nil {
		logger.Error("Security Hub is not enabled, skipping region", auditerr.Fields(err)...)
		return false
	}

	ok, err := e.store.IntegrationEnabled(ctx, region)
	switch {
	case err != nil:
		logger.Warn("Unable to list enabled integrations", auditerr.Fields(err)...)
	case !ok:
		logger.Warn("Security Hub is enabled but the integration does not accept findings")
	}
	return true
}

// submit sends fs in consecutive batches and returns the findings the store
// accepted. A failed batch does not stop the rest.
func (e *Engine) submit(ctx context.Context, region string, fs []findings.Finding, logger *zap.Logger) []findings.Finding {
	var accepted []findings.Finding
	for i, batch := range Batches(fs, e.batchSize) {
		res, err := e.store.Submit(ctx, region, batch)
		if err != nil {
			logger.Error("Failed to send findings to Security Hub",
				append(auditerr.Fields(err), zap.Int("batch", i), zap.Int("size", len(batch)))...)
			continue
		}
		if res.FailedCount > 0 {
			fields := []zap.Field{
				zap.Int("batch", i),
				zap.Int("failed", res.FailedCount),
				zap.Int("accepted", res.Accepted(len(batch))),
			}
			if len(res.Failed) > 0 {
				fields = append(fields,
					zap.String("error_code", res.Failed[0].ErrorCode),
					zap.String("error_message", res.Failed[0].ErrorMessage))
			}
			logger.Error("Failed to send findings to Security Hub", fields...)
		}
		accepted = append(accepted, acceptedFindings(batch, res)...)
	}
	return accepted
}

func acceptedFindings(batch []findings.Finding, res findings.SubmitResult) []findings.Finding {
	if res.FailedCount == 0 {
		return batch
	}
	failed := make(map[string]struct{}, len(res.Failed))
	for _, f := range res.Failed {
		failed[f.ID] = struct{}{}
	}
	if len(failed) < res.FailedCount {
		// The store did not say which ones failed.
		return nil
	}
	out := make([]findings.Finding, 0, len(batch)-len(failed))
	for _, f := range batch {
		if _, ok := failed[f.ID]; !ok {
			out = append(out, f)
		}
	}
	return out
}

// Batches splits fs into consecutive chunks of at most size, preserving order.
func Batches(fs []findings.Finding, size int) [][]findings.Finding {
	if size <= 0 || size > MaxBatchSize {
		size = MaxBatchSize
	}
	var out [][]findings.Finding
	for chunk := range slices.Chunk(fs, size) {
		out = append(out, chunk)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
