package validator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"proxyrotation/internal/shared/logger"
	"proxyrotation/internal/shared/types"
	"proxyrotation/proxypool/model"
)

// Classifier receives validation results. *pool.Pool implements it.
type Classifier interface {
	Register(endpoints ...model.Endpoint)
	Record(r model.ValidationResult) bool
}

// Reporter records validation results for later inspection. Errors are logged
// and never influence classification.
type Reporter interface {
	Record(runID string, r model.ValidationResult) error
}

// Summary describes one ValidateAll run.
type Summary struct {
	RunID      string
	Submitted  int // endpoints passed in, duplicates included
	Checked    int // distinct endpoints checked
	Valid      int
	Invalid    int
	Duration   time.Duration
	Duplicates int
	Skipped    int // results for endpoints the pool had already classified
}

// Coordinator fans endpoints out to a Checker with bounded concurrency.
type Coordinator struct {
	checker     Checker
	concurrency int
	reporter    Reporter
}

// NewCoordinator 创建验证协调器。concurrency <= 0 时使用默认值。
func NewCoordinator(checker Checker, concurrency int) *Coordinator {
	if concurrency <= 0 {
		concurrency = types.DefaultMaxConcurrency
	}
	return &Coordinator{
		checker:     checker,
		concurrency: concurrency,
	}
}

// WithReporter attaches a reporter and returns the coordinator.
func (c *Coordinator) WithReporter(r Reporter) *Coordinator {
	c.reporter = r
	return c
}

// Concurrency returns the maximum number of checks in flight.
func (c *Coordinator) Concurrency() int { return c.concurrency }

// ValidateAll checks every distinct endpoint once and records the outcome in
// dst as results complete. It returns after all checks have finished; each
// check is bounded only by the checker's own timeout.
func (c *Coordinator) ValidateAll(dst Classifier, endpoints []model.Endpoint) Summary {
	l := logger.WithComponent("ProxyPool/Coordinator")
	start := time.Now()

	distinct := dedupe(endpoints)
	summary := Summary{
		RunID:      uuid.NewString(),
		Submitted:  len(endpoints),
		Checked:    len(distinct),
		Duplicates: len(endpoints) - len(distinct),
	}
	if len(distinct) == 0 {
		l.Info().Msg("No proxies to validate.")
		return summary
	}

	dst.Register(distinct...)

	l.Info().
		Str("run_id", summary.RunID).
		Int("count", len(distinct)).
		Int("duplicates", summary.Duplicates).
		Int("concurrency", c.concurrency).
		Msg("Starting validation batch...")

	results := make(chan model.ValidationResult, len(distinct))
	collected := make(chan struct{})

	// 按完成顺序处理结果
	go func() {
		defer close(collected)
		for r := range results {
			switch {
			case !dst.Record(r):
				summary.Skipped++
			case r.Live:
				summary.Valid++
			default:
				summary.Invalid++
			}
			if c.reporter != nil {
				if err := c.reporter.Record(summary.RunID, r); err != nil {
					l.Warn().Err(err).Str("proxy", r.Endpoint.String()).Msg("Failed to record validation result.")
				}
			}
		}
	}()

	var g errgroup.Group
	g.SetLimit(c.concurrency)
	for _, e := range distinct {
		e := e
		g.Go(func() error {
			results <- c.checkOne(e)
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	<-collected

	summary.Duration = time.Since(start)
	l.Info().
		Str("run_id", summary.RunID).
		Int("valid", summary.Valid).
		Int("invalid", summary.Invalid).
		Int("skipped", summary.Skipped).
		Dur("elapsed", summary.Duration).
		Msg("Validation batch finished.")
	return summary
}

// checkOne runs a single check. A panicking checker counts as a dead proxy so
// that every endpoint still gets exactly one result.
func (c *Coordinator) checkOne(e model.Endpoint) (r model.ValidationResult) {
	r.Endpoint = e
	started := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			l := logger.WithComponent("ProxyPool/Coordinator")
			l.Error().Interface("panic", rec).Str("proxy", e.String()).Msg("Checker panicked, marking proxy dead.")
			r.Live = false
			r.Latency = 0
		}
		r.CheckedAt = time.Now()
	}()

	r.Live = c.checker.Check(context.Background(), e)
	if r.Live {
		r.Latency = time.Since(started)
	}
	return r
}

func dedupe(endpoints []model.Endpoint) []model.Endpoint {
	seen := make(map[model.Endpoint]struct{}, len(endpoints))
	out := make([]model.Endpoint, 0, len(endpoints))
	for _, e := range endpoints {
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		out = append(out, e)
	}
	return out
}
