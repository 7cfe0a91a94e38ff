package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/maypok86/otter"
	"github.com/sifan077/redirector/internal/app/model"
	"github.com/sifan077/redirector/internal/app/nginx"
	"github.com/sifan077/redirector/internal/app/redirect"
	"github.com/sifan077/redirector/internal/app/reload"
	"github.com/sifan077/redirector/internal/app/repository"
	"go.uber.org/zap"
)

const (
	defaultPlanCacheSize = 10000
	planCacheTTL         = time.Minute
)

// ConfigStatus is the configuration outcome reported next to a successful mutation.
type ConfigStatus struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RegenerateResult is the outcome of one emission cycle followed by a proxy reload.
type RegenerateResult struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Report  *nginx.Report `json:"report,omitempty"`
	Reload  reload.Result `json:"reload"`
}

// Regenerator rebuilds every emitted config file and reloads the edge proxy.
type Regenerator interface {
	RegenerateAndReload(ctx context.Context) (*RegenerateResult, error)
}

// ConfigEmitter renders domain rule sets into the proxy configuration directory.
type ConfigEmitter interface {
	Emit(sets []model.DomainRuleSet) (*nginx.Report, error)
	RenderDomain(set model.DomainRuleSet) []byte
}

// Metrics receives engine observations.
type Metrics interface {
	ObserveEmission(success bool, written, removed, skipped int, duration time.Duration)
	ObserveDecision(kind, crawler string)
}

type nopMetrics struct{}

func (nopMetrics) ObserveEmission(bool, int, int, int, time.Duration) {}
func (nopMetrics) ObserveDecision(string, string)                     {}

// RedirectService exposes the redirect engine to the administrative layer and the live surface.
type RedirectService interface {
	Regenerator
	// TestRedirect resolves against the current store state without touching emitted files.
	TestRedirect(ctx context.Context, domain, path, userAgent string) (redirect.Decision, error)
	// Resolve answers a live request. Plans are cached briefly and dropped after every cycle.
	Resolve(ctx context.Context, host, path, userAgent string) (redirect.Decision, error)
	// Preview renders the config file a domain would get, active or not.
	Preview(ctx context.Context, domain string) ([]byte, error)
}

// RedirectDeps groups dependencies required by the redirect service.
type RedirectDeps struct {
	Logger        *zap.Logger
	Domains       repository.DomainRepository
	Backlinks     repository.BacklinkRepository
	Rules         repository.RuleRepository
	Snapshot      repository.SnapshotReader
	Emitter       ConfigEmitter
	Reloader      reload.Reloader
	Filter        *ActiveDomainFilter
	Patterns      *redirect.PatternCache
	Metrics       Metrics
	PlanCacheSize int
}

type redirectService struct {
	logger    *zap.Logger
	domains   repository.DomainRepository
	backlinks repository.BacklinkRepository
	rules     repository.RuleRepository
	snapshot  repository.SnapshotReader
	emitter   ConfigEmitter
	reloader  reload.Reloader
	filter    *ActiveDomainFilter
	patterns  *redirect.PatternCache
	metrics   Metrics
	plans     otter.Cache[string, *redirect.Plan]

	// cycle serializes emission cycles so reloads follow the writes they announce.
	cycle sync.Mutex
}

// NewRedirectService wires the engine around deps.
func NewRedirectService(deps RedirectDeps) (RedirectService, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	reloader := deps.Reloader
	if reloader == nil {
		reloader = reload.Nop{}
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	size := deps.PlanCacheSize
	if size <= 0 {
		size = defaultPlanCacheSize
	}
	plans, err := otter.MustBuilder[string, *redirect.Plan](size).
		Cost(func(_ string, _ *redirect.Plan) uint32 { return 1 }).
		WithTTL(planCacheTTL).
		Build()
	if err != nil {
		return nil, fmt.Errorf("redirect service: build plan cache: %w", err)
	}

	return &redirectService{
		logger:    logger,
		domains:   deps.Domains,
		backlinks: deps.Backlinks,
		rules:     deps.Rules,
		snapshot:  deps.Snapshot,
		emitter:   deps.Emitter,
		reloader:  reloader,
		filter:    deps.Filter,
		patterns:  deps.Patterns,
		metrics:   metrics,
		plans:     plans,
	}, nil
}

func (s *redirectService) TestRedirect(ctx context.Context, domain, path, userAgent string) (redirect.Decision, error) {
	set, err := s.loadSet(ctx, redirect.NormalizeHost(domain))
	if err != nil {
		return redirect.Decision{}, fmt.Errorf("test redirect: %w", err)
	}
	if set == nil {
		return redirect.Unresolved(redirect.ReasonDomainNotFound, path, userAgent), nil
	}
	if !set.Domain.IsActive() {
		return redirect.Unresolved(redirect.ReasonDomainInactive, path, userAgent), nil
	}
	return redirect.Compile(*set, s.patterns).Resolve(path, userAgent), nil
}

func (s *redirectService) Resolve(ctx context.Context, host, path, userAgent string) (redirect.Decision, error) {
	name := redirect.NormalizeHost(host)
	decision, err := s.resolveLive(ctx, name, path, userAgent)
	if err != nil {
		return redirect.Decision{}, err
	}
	s.metrics.ObserveDecision(string(decision.Type), string(decision.Crawler))
	return decision, nil
}

func (s *redirectService) resolveLive(ctx context.Context, name, path, userAgent string) (redirect.Decision, error) {
	if !s.filter.MayContain(name) {
		return redirect.Unresolved(redirect.ReasonDomainNotFound, path, userAgent), nil
	}
	if plan, ok := s.plans.Get(name); ok {
		return plan.Resolve(path, userAgent), nil
	}

	set, err := s.loadSet(ctx, name)
	if err != nil {
		return redirect.Decision{}, fmt.Errorf("resolve: %w", err)
	}
	if set == nil {
		return redirect.Unresolved(redirect.ReasonDomainNotFound, path, userAgent), nil
	}
	if !set.Domain.IsActive() {
		return redirect.Unresolved(redirect.ReasonDomainInactive, path, userAgent), nil
	}
	plan := redirect.Compile(*set, s.patterns)
	s.plans.Set(name, plan)
	return plan.Resolve(path, userAgent), nil
}

func (s *redirectService) Preview(ctx context.Context, domain string) ([]byte, error) {
	name := redirect.NormalizeHost(domain)
	set, err := s.loadSet(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("preview: %w", err)
	}
	if set == nil {
		return nil, fmt.Errorf("preview: %w", repository.ErrDomainNotFound)
	}
	return s.emitter.RenderDomain(*set), nil
}

// RegenerateAndReload reads every active domain fresh, rewrites the config directory and
// signals the proxy. Emission failures are returned; reload failures only mark the result.
func (s *redirectService) RegenerateAndReload(ctx context.Context) (*RegenerateResult, error) {
	s.cycle.Lock()
	defer s.cycle.Unlock()

	start := time.Now()
	sets, err := s.snapshot.LoadActive(ctx)
	if err != nil {
		s.metrics.ObserveEmission(false, 0, 0, 0, time.Since(start))
		return nil, fmt.Errorf("regenerate: load active domains: %w", err)
	}

	report, err := s.emitter.Emit(sets)
	if err != nil {
		s.metrics.ObserveEmission(false, 0, 0, 0, time.Since(start))
		return nil, fmt.Errorf("regenerate: emit: %w", err)
	}
	s.metrics.ObserveEmission(true, len(report.Written), len(report.Removed), report.Skipped, report.Duration)

	names := make([]string, 0, len(sets))
	for _, set := range sets {
		names = append(names, set.Domain.Name)
	}
	s.filter.Reset(names)
	s.plans.Clear()

	res := s.reloader.Reload(ctx)
	result := &RegenerateResult{Success: res.Success, Report: report, Reload: res}
	summary := fmt.Sprintf("%d domain configs written (%d changed), %d removed", len(report.Written), report.Changed, len(report.Removed))
	if res.Success {
		result.Message = summary + "; " + res.Message
	} else {
		result.Message = summary + "; reload failed: " + res.Message
	}
	return result, nil
}

// loadSet returns nil without error when the domain does not exist.
func (s *redirectService) loadSet(ctx context.Context, name string) (*model.DomainRuleSet, error) {
	domain, err := s.domains.GetByName(ctx, name)
	if err != nil {
		if errors.Is(err, repository.ErrDomainNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load domain %s: %w", name, err)
	}
	paths, err := s.backlinks.PathSet(ctx, domain.ID)
	if err != nil {
		return nil, fmt.Errorf("load backlink paths of %s: %w", name, err)
	}
	rules, err := s.rules.ListByDomain(ctx, domain.ID)
	if err != nil {
		return nil, fmt.Errorf("load rules of %s: %w", name, err)
	}
	return &model.DomainRuleSet{Domain: *domain, BacklinkPaths: paths, Rules: rules}, nil
}

// regenerate runs a cycle on behalf of a mutation. The mutation already persisted, so
// failures are reported in the status instead of the error return.
func regenerate(ctx context.Context, r Regenerator, logger *zap.Logger, cause string) *ConfigStatus {
	if r == nil {
		return nil
	}
	res, err := r.RegenerateAndReload(ctx)
	if err != nil {
		logger.Error("config regeneration failed", zap.String("cause", cause), zap.Error(err))
		return &ConfigStatus{Message: "change saved but configuration was not regenerated: " + err.Error()}
	}
	return &ConfigStatus{Success: res.Success, Message: res.Message}
}
