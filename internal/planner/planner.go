// Package planner runs the full pipeline from an aggregate order to rendered
// pie diagrams and memoises the result by the order's fingerprint.
package planner

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/pizzaparty/slices/internal/count"
	"github.com/pizzaparty/slices/internal/diagram"
	"github.com/pizzaparty/slices/internal/division"
)

const defaultCacheSize = 128

// Recorder receives pipeline measurements.
type Recorder interface {
	PlanComputed(pies, uncovered int, elapsed time.Duration)
	PlanCache(hit bool)
}

// Result is an allocated and rendered order.
type Result struct {
	Fingerprint uint64
	Plan        division.Plan
	Diagrams    []diagram.Diagram
	Demand      int
}

// ETag renders the fingerprint as an HTTP entity tag.
func (r Result) ETag() string {
	return fmt.Sprintf(`"%016x"`, r.Fingerprint)
}

// Planner is safe for concurrent use.
type Planner struct {
	alloc    division.Allocator
	radius   float64
	cache    *lru.Cache[uint64, Result]
	recorder Recorder
	logger   *zap.Logger
}

// Option configures a Planner.
type Option func(*options)

type options struct {
	radius    float64
	cacheSize int
	recorder  Recorder
	logger    *zap.Logger
}

// WithRadius sets the diagram radius.
func WithRadius(r float64) Option {
	return func(o *options) {
		o.radius = r
	}
}

// WithCacheSize bounds the number of memoised plans; 0 disables the cache.
func WithCacheSize(n int) Option {
	return func(o *options) {
		o.cacheSize = n
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// New validates cfg and builds a Planner.
func New(cfg division.PieConfig, opts ...Option) (*Planner, error) {
	o := options{
		radius:    diagram.DefaultRadius,
		cacheSize: defaultCacheSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	alloc, err := division.New(cfg)
	if err != nil {
		return nil, err
	}

	p := &Planner{
		alloc:    alloc,
		radius:   o.radius,
		recorder: o.recorder,
		logger:   o.logger,
	}
	if o.cacheSize > 0 {
		cache, err := lru.New[uint64, Result](o.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("create plan cache: %w", err)
		}
		p.cache = cache
	}
	return p, nil
}

// Plan allocates demand and renders one diagram per pie, including the
// uncovered residue. Identical demand yields the identical Result.
func (p *Planner) Plan(demand count.Count) (Result, error) {
	fingerprint := count.Fingerprint(demand)
	if p.cache != nil {
		if res, ok := p.cache.Get(fingerprint); ok {
			p.recordCache(true)
			return res, nil
		}
		p.recordCache(false)
	}

	start := time.Now()
	plan, err := p.alloc.Allocate(demand)
	if err != nil {
		return Result{}, fmt.Errorf("allocate: %w", err)
	}
	res := Result{
		Fingerprint: fingerprint,
		Plan:        plan,
		Diagrams:    diagram.RenderPlan(plan, p.radius),
		Demand:      demand.Total(),
	}
	elapsed := time.Since(start)

	uncovered := plan.Uncovered.Total()
	if p.recorder != nil {
		p.recorder.PlanComputed(len(plan.Pies), uncovered, elapsed)
	}
	if uncovered > 0 {
		p.logger.Debug("order does not fill the last pie",
			zap.Int("pies", len(plan.Pies)),
			zap.Int("uncovered_slices", uncovered),
			zap.Int("slices_per_pie", plan.Config.SlicesPerPie()),
		)
	}

	if p.cache != nil {
		p.cache.Add(fingerprint, res)
	}
	return res, nil
}

func (p *Planner) recordCache(hit bool) {
	if p.recorder != nil {
		p.recorder.PlanCache(hit)
	}
}
